package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
)

func TestDecodeKnownMessages(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
		check func(t *testing.T, message Inbound)
	}{
		{
			name:  "note submit with explicit position",
			frame: `{"type":"note-submit","payload":{"text":"late go","tags":["t1"],"timecode":{"hours":1,"minutes":2,"seconds":3,"frames":4,"frameRate":25},"cue":"12"}}`,
			check: func(t *testing.T, message Inbound) {
				submit, ok := message.(NoteSubmit)
				if !ok {
					t.Fatalf("expected NoteSubmit, got %T", message)
				}
				if submit.Timecode == nil || submit.Timecode.Frames != 4 || submit.Cue == nil || *submit.Cue != "12" {
					t.Fatalf("unexpected submit %#v", submit)
				}
			},
		},
		{
			name:  "typing start without payload",
			frame: `{"type":"typing-start"}`,
			check: func(t *testing.T, message Inbound) {
				if _, ok := message.(TypingStart); !ok {
					t.Fatalf("expected TypingStart, got %T", message)
				}
			},
		},
		{
			name:  "comment edit",
			frame: `{"type":"comment-edit","payload":{"noteId":"n1","commentId":"c1","text":"x"}}`,
			check: func(t *testing.T, message Inbound) {
				edit := message.(CommentEdit)
				if edit.NoteID != "n1" || edit.CommentID != "c1" {
					t.Fatalf("unexpected edit %#v", edit)
				}
			},
		},
		{
			name:  "export csv",
			frame: `{"type":"export-request","payload":{"format":"csv"}}`,
			check: func(t *testing.T, message Inbound) {
				if message.MessageType() != TypeExportRequest {
					t.Fatalf("unexpected type %s", message.MessageType())
				}
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			message, err := Decode([]byte(testCase.frame))
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			testCase.check(t, message)
		})
	}
}

func TestDecodeRejectsMalformedFrames(t *testing.T) {
	testCases := []struct {
		name  string
		frame string
		want  error
	}{
		{name: "not json", frame: `{`, want: ErrMalformedPayload},
		{name: "unknown type", frame: `{"type":"drop-table","payload":{}}`, want: ErrUnknownType},
		{name: "missing payload", frame: `{"type":"chat-submit"}`, want: ErrMalformedPayload},
		{name: "wrong field type", frame: `{"type":"chat-submit","payload":{"text":5}}`, want: ErrMalformedPayload},
		{name: "missing note id", frame: `{"type":"note-edit","payload":{"text":"x"}}`, want: ErrMalformedPayload},
		{name: "frames out of range", frame: `{"type":"note-submit","payload":{"text":"x","timecode":{"frames":30,"frameRate":30}}}`, want: ErrMalformedPayload},
		{name: "unknown export format", frame: `{"type":"export-request","payload":{"format":"xml"}}`, want: ErrMalformedPayload},
		{name: "tag without name", frame: `{"type":"tag-upsert","payload":{"color":"#fff"}}`, want: ErrMalformedPayload},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := Decode([]byte(testCase.frame))
			if !errors.Is(err, testCase.want) {
				t.Fatalf("expected %v, got %v", testCase.want, err)
			}
		})
	}
}

func TestEncodeWrapsPayload(t *testing.T) {
	data, err := Encode(TypeTags, Tags{Tags: []production.Tag{{ID: "t1", Name: "Sound", Color: "#00ff00"}}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	var envelope Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if envelope.Type != TypeTags {
		t.Fatalf("unexpected type %s", envelope.Type)
	}
	var payload Tags
	if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if len(payload.Tags) != 1 || payload.Tags[0].Name != "Sound" {
		t.Fatalf("unexpected payload %#v", payload)
	}
}
