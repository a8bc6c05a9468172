package protocol

import (
	"encoding/json"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
)

// Outbound message types sent by the server.
const (
	TypeWelcome          = "welcome"
	TypeUsers            = "users"
	TypeUserJoined       = "user-joined"
	TypeUserLeft         = "user-left"
	TypeChatHistory      = "chat-history"
	TypeChatMessage      = "chat-message"
	TypeNotes            = "notes"
	TypeTags             = "tags"
	TypeTimeModeState    = "time-mode"
	TypeCue              = "cue"
	TypeAct              = "act"
	TypeTimecode         = "timecode"
	TypeStatus           = "status"
	TypeNameChangeResult = "name-change-result"
	TypeExport           = "export"
	TypeError            = "error"
)

type Welcome struct {
	SessionID   string `json:"sessionId"`
	Name        string `json:"name"`
	IsAnonymous bool   `json:"isAnonymous"`
}

// User is the participant roster entry. Overlays never appear in it.
type User struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	IsAnonymous   bool               `json:"isAnonymous"`
	IsTyping      bool               `json:"isTyping"`
	DraftTimecode *timecode.Timecode `json:"draftTimecode,omitempty"`
	DraftCue      *string            `json:"draftCue,omitempty"`
	JoinedAt      time.Time          `json:"joinedAt"`
}

type Users struct {
	Users []User `json:"users"`
}

type UserNotice struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ChatHistory struct {
	Messages []production.ChatMessage `json:"messages"`
}

type Notes struct {
	Notes []production.Note `json:"notes"`
}

type Tags struct {
	Tags []production.Tag `json:"tags"`
}

type TimeModeState struct {
	Mode production.TimeMode `json:"mode"`
}

type Label struct {
	Label string `json:"label"`
}

type Status struct {
	CueSourceAttached bool      `json:"cueSourceAttached"`
	Participants      int       `json:"participants"`
	ServerTime        time.Time `json:"serverTime"`
}

type NameChangeResult struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Error   string `json:"error,omitempty"`
}

type Export struct {
	Format      string `json:"format"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Error reports a validation failure to the session that caused it.
type Error struct {
	Request string `json:"request"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Encode serializes an outbound message.
func Encode(messageType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: messageType, Payload: raw})
}
