package timecode

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FrameRate enumerates the SMPTE frame rates carried by MTC.
type FrameRate float64

const (
	FrameRate24   FrameRate = 24
	FrameRate25   FrameRate = 25
	FrameRate2997 FrameRate = 29.97
	FrameRate30   FrameRate = 30
)

// frameRateFromCode maps the two rate bits of quarter frame 7. Unknown codes fall back to 30.
func frameRateFromCode(code uint8) FrameRate {
	switch code {
	case 0:
		return FrameRate24
	case 1:
		return FrameRate25
	case 2:
		return FrameRate2997
	default:
		return FrameRate30
	}
}

// String renders the rate the way operators read it ("29.97", "25").
func (r FrameRate) String() string {
	return strconv.FormatFloat(float64(r), 'f', -1, 64)
}

// Source identifies where a timecode value came from.
type Source string

const (
	SourceMTC    Source = "mtc"
	SourceManual Source = "manual"
	SourceNone   Source = ""
)

// Timecode is an immutable decoded timecode value.
type Timecode struct {
	Hours     int       `json:"hours"`
	Minutes   int       `json:"minutes"`
	Seconds   int       `json:"seconds"`
	Frames    int       `json:"frames"`
	FrameRate FrameRate `json:"frameRate"`
	Source    Source    `json:"source"`
}

// Zero returns the timecode used before any quarter frame has been decoded.
func Zero() Timecode {
	return Timecode{FrameRate: FrameRate30, Source: SourceNone}
}

// SamePosition reports whether both values point at the same frame. Rate and source are ignored.
func (t Timecode) SamePosition(other Timecode) bool {
	return t.Hours == other.Hours &&
		t.Minutes == other.Minutes &&
		t.Seconds == other.Seconds &&
		t.Frames == other.Frames
}

// Format renders HH:MM:SS:FF.
func (t Timecode) Format() string {
	return fmt.Sprintf("%02d:%02d:%02d:%02d", t.Hours, t.Minutes, t.Seconds, t.Frames)
}

func (t Timecode) String() string {
	return t.Format()
}

// MarshalJSON adds the formatted value so clients do not have to pad fields themselves.
func (t Timecode) MarshalJSON() ([]byte, error) {
	type plain Timecode
	return json.Marshal(struct {
		plain
		Formatted string `json:"formatted"`
	}{plain: plain(t), Formatted: t.Format()})
}

// Valid reports whether every field is inside its range and the rate is a known MTC rate.
func (t Timecode) Valid() bool {
	switch t.FrameRate {
	case FrameRate24, FrameRate25, FrameRate2997, FrameRate30:
	default:
		return false
	}
	maxFrames := int(t.FrameRate + 0.5)
	return t.Hours >= 0 && t.Hours <= 23 &&
		t.Minutes >= 0 && t.Minutes <= 59 &&
		t.Seconds >= 0 && t.Seconds <= 59 &&
		t.Frames >= 0 && t.Frames < maxFrames
}
