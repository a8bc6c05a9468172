package main

import "fmt"

// goGuarded runs fn on its own goroutine and turns a panic into a reported fault, so the
// emergency snapshot still runs before exit.
func goGuarded(name string, reportFault func(error), fn func()) {
	go func() {
		defer func() {
			if recovered := recover(); recovered != nil {
				reportFault(fmt.Errorf("%s panic: %v", name, recovered))
			}
		}()
		fn()
	}()
}
