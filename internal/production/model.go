package production

import (
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
)

// TimeMode selects which clock clients display and stamp notes with.
type TimeMode string

const (
	// TimeModeSource follows the decoded MTC stream.
	TimeModeSource TimeMode = "mtc"
	// TimeModeWall follows the local wall clock.
	TimeModeWall TimeMode = "clock"
)

// Valid reports whether the mode is one of the known modes.
func (m TimeMode) Valid() bool {
	return m == TimeModeSource || m == TimeModeWall
}

// Author snapshots a session at the moment it authored something.
// SessionID is a weak reference; the session may be gone.
type Author struct {
	SessionID string
	Name      string
}

// Tag is a colour-coded label notes can reference by id.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Comment is owned by its parent note.
type Comment struct {
	ID              string     `json:"id"`
	AuthorName      string     `json:"authorName"`
	AuthorSessionID string     `json:"authorSessionId"`
	Text            string     `json:"text"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastEditedAt    *time.Time `json:"lastEditedAt,omitempty"`
	LastEditedBy    string     `json:"lastEditedBy,omitempty"`
}

// Note is pinned to the timecode, cue and act current when it was submitted.
type Note struct {
	ID              string             `json:"id"`
	AuthorName      string             `json:"authorName"`
	AuthorSessionID string             `json:"authorSessionId"`
	Text            string             `json:"text"`
	Timecode        timecode.Timecode  `json:"timecode"`
	CueLabel        string             `json:"cue"`
	ActLabel        string             `json:"act"`
	FrameRate       timecode.FrameRate `json:"frameRate"`
	Tags            []string           `json:"tags"`
	Comments        []Comment          `json:"comments"`
	CreatedAt       time.Time          `json:"createdAt"`
	LastEditedAt    *time.Time         `json:"lastEditedAt,omitempty"`
	LastEditedBy    string             `json:"lastEditedBy,omitempty"`
}

func (n Note) clone() Note {
	copied := n
	copied.Tags = append([]string(nil), n.Tags...)
	if copied.Tags == nil {
		copied.Tags = []string{}
	}
	copied.Comments = append([]Comment(nil), n.Comments...)
	if copied.Comments == nil {
		copied.Comments = []Comment{}
	}
	return copied
}

// ChatMessage is one entry of the bounded chat log.
type ChatMessage struct {
	ID              string    `json:"id"`
	AuthorName      string    `json:"authorName"`
	AuthorSessionID string    `json:"authorSessionId"`
	Text            string    `json:"text"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NoteInput describes a note submission. Nil Timecode and Cue default to the canonical values.
type NoteInput struct {
	Author   Author
	Text     string
	Tags     []string
	Timecode *timecode.Timecode
	Cue      *string
}

// View is a read-only copy of the whole state.
type View struct {
	Timecode          timecode.Timecode
	Cue               string
	Act               string
	TimeMode          TimeMode
	CueSourceAttached bool
	Notes             []Note
	Tags              []Tag
	Chat              []ChatMessage
}
