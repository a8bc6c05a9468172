package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
)

// Inbound message types sent by clients.
const (
	TypeTagUpsert     = "tag-upsert"
	TypeTagDelete     = "tag-delete"
	TypeTypingStart   = "typing-start"
	TypeTypingStop    = "typing-stop"
	TypeTimeMode      = "time-mode"
	TypeCueOverride   = "cue-override"
	TypeNoteSubmit    = "note-submit"
	TypeNoteEdit      = "note-edit"
	TypeNoteDelete    = "note-delete"
	TypeCommentSubmit = "comment-submit"
	TypeCommentEdit   = "comment-edit"
	TypeCommentDelete = "comment-delete"
	TypeChatSubmit    = "chat-submit"
	TypeNameChange    = "name-change"
	TypeExportRequest = "export-request"
)

var (
	// ErrUnknownType indicates an envelope type outside the protocol.
	ErrUnknownType = errors.New("protocol: unknown message type")
	// ErrMalformedPayload indicates a payload that does not match its type.
	ErrMalformedPayload = errors.New("protocol: malformed payload")
)

// Envelope wraps every message on the websocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound is the closed set of client messages.
type Inbound interface {
	MessageType() string
}

type TagUpsert struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type TagDelete struct {
	ID string `json:"id"`
}

type TypingStart struct{}

type TypingStop struct{}

type TimeModeChange struct {
	Mode string `json:"mode"`
}

type CueOverride struct {
	Label string `json:"label"`
}

// NoteSubmit optionally pins the note to an explicit position.
type NoteSubmit struct {
	Text     string             `json:"text"`
	Tags     []string           `json:"tags"`
	Timecode *timecode.Timecode `json:"timecode,omitempty"`
	Cue      *string            `json:"cue,omitempty"`
}

type NoteEdit struct {
	NoteID string `json:"noteId"`
	Text   string `json:"text"`
}

type NoteDelete struct {
	NoteID string `json:"noteId"`
}

type CommentSubmit struct {
	NoteID string `json:"noteId"`
	Text   string `json:"text"`
}

type CommentEdit struct {
	NoteID    string `json:"noteId"`
	CommentID string `json:"commentId"`
	Text      string `json:"text"`
}

type CommentDelete struct {
	NoteID    string `json:"noteId"`
	CommentID string `json:"commentId"`
}

type ChatSubmit struct {
	Text string `json:"text"`
}

type NameChange struct {
	Name string `json:"name"`
}

type ExportRequest struct {
	Format string `json:"format"`
}

func (TagUpsert) MessageType() string      { return TypeTagUpsert }
func (TagDelete) MessageType() string      { return TypeTagDelete }
func (TypingStart) MessageType() string    { return TypeTypingStart }
func (TypingStop) MessageType() string     { return TypeTypingStop }
func (TimeModeChange) MessageType() string { return TypeTimeMode }
func (CueOverride) MessageType() string    { return TypeCueOverride }
func (NoteSubmit) MessageType() string     { return TypeNoteSubmit }
func (NoteEdit) MessageType() string       { return TypeNoteEdit }
func (NoteDelete) MessageType() string     { return TypeNoteDelete }
func (CommentSubmit) MessageType() string  { return TypeCommentSubmit }
func (CommentEdit) MessageType() string    { return TypeCommentEdit }
func (CommentDelete) MessageType() string  { return TypeCommentDelete }
func (ChatSubmit) MessageType() string     { return TypeChatSubmit }
func (NameChange) MessageType() string     { return TypeNameChange }
func (ExportRequest) MessageType() string  { return TypeExportRequest }

// Decode parses one client frame into its typed message. Shape problems are rejected here so
// handlers never see partially populated payloads.
func Decode(data []byte) (Inbound, error) {
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	var (
		message Inbound
		err     error
	)
	switch envelope.Type {
	case TypeTagUpsert:
		message, err = decodeAs[TagUpsert](envelope.Payload, func(m TagUpsert) bool { return strings.TrimSpace(m.Name) != "" })
	case TypeTagDelete:
		message, err = decodeAs[TagDelete](envelope.Payload, func(m TagDelete) bool { return m.ID != "" })
	case TypeTypingStart:
		message = TypingStart{}
	case TypeTypingStop:
		message = TypingStop{}
	case TypeTimeMode:
		message, err = decodeAs[TimeModeChange](envelope.Payload, func(m TimeModeChange) bool { return m.Mode != "" })
	case TypeCueOverride:
		message, err = decodeAs[CueOverride](envelope.Payload, nil)
	case TypeNoteSubmit:
		message, err = decodeAs[NoteSubmit](envelope.Payload, func(m NoteSubmit) bool {
			return m.Timecode == nil || m.Timecode.Valid()
		})
	case TypeNoteEdit:
		message, err = decodeAs[NoteEdit](envelope.Payload, func(m NoteEdit) bool { return m.NoteID != "" })
	case TypeNoteDelete:
		message, err = decodeAs[NoteDelete](envelope.Payload, func(m NoteDelete) bool { return m.NoteID != "" })
	case TypeCommentSubmit:
		message, err = decodeAs[CommentSubmit](envelope.Payload, func(m CommentSubmit) bool { return m.NoteID != "" })
	case TypeCommentEdit:
		message, err = decodeAs[CommentEdit](envelope.Payload, func(m CommentEdit) bool { return m.NoteID != "" && m.CommentID != "" })
	case TypeCommentDelete:
		message, err = decodeAs[CommentDelete](envelope.Payload, func(m CommentDelete) bool { return m.NoteID != "" && m.CommentID != "" })
	case TypeChatSubmit:
		message, err = decodeAs[ChatSubmit](envelope.Payload, nil)
	case TypeNameChange:
		message, err = decodeAs[NameChange](envelope.Payload, nil)
	case TypeExportRequest:
		message, err = decodeAs[ExportRequest](envelope.Payload, func(m ExportRequest) bool {
			return m.Format == "json" || m.Format == "csv"
		})
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, envelope.Type)
	}
	if err != nil {
		return nil, err
	}
	return message, nil
}

func decodeAs[T Inbound](payload json.RawMessage, valid func(T) bool) (Inbound, error) {
	var message T
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: missing payload for %s", ErrMalformedPayload, message.MessageType())
	}
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedPayload, message.MessageType(), err)
	}
	if valid != nil && !valid(message) {
		return nil, fmt.Errorf("%w: %s: required field missing or out of range", ErrMalformedPayload, message.MessageType())
	}
	return message, nil
}
