package sessions

import "time"

// Timer is a cancelable scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler arms timers. The wall-clock implementation wraps time.AfterFunc.
type Scheduler interface {
	AfterFunc(delay time.Duration, callback func()) Timer
}

type wallScheduler struct{}

// NewWallScheduler returns a Scheduler backed by the runtime timer heap.
func NewWallScheduler() Scheduler {
	return wallScheduler{}
}

func (wallScheduler) AfterFunc(delay time.Duration, callback func()) Timer {
	return time.AfterFunc(delay, callback)
}
