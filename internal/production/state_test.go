package production

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
)

type sequenceProvider struct {
	next int
}

func (p *sequenceProvider) NewID() (string, error) {
	p.next++
	return fmt.Sprintf("id-%d", p.next), nil
}

type failingProvider struct{}

func (failingProvider) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func newTestState(t *testing.T) *State {
	t.Helper()
	state, err := NewState(StateConfig{
		Clock: func() time.Time {
			return time.Unix(1700000000, 0)
		},
		IDProvider: &sequenceProvider{},
	})
	if err != nil {
		t.Fatalf("failed to construct state: %v", err)
	}
	return state
}

var (
	alice = Author{SessionID: "session-alice", Name: "Alice"}
	bob   = Author{SessionID: "session-bob", Name: "Bob"}
)

func TestNewStateRequiresIDProvider(t *testing.T) {
	_, err := NewState(StateConfig{})
	if ErrorCode(err) != "production.new.missing_id_provider" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestSubmitNoteDefaultsToCanonicalPosition(t *testing.T) {
	state := newTestState(t)
	canonical := timecode.Timecode{Hours: 1, Minutes: 2, Seconds: 3, Frames: 4, FrameRate: timecode.FrameRate25, Source: timecode.SourceMTC}
	state.SetTimecode(canonical)
	state.SetCue("42 Sunrise")
	state.SetAct("Act 1")

	note, err := state.SubmitNote(NoteInput{Author: alice, Text: "  spot late  ", Tags: []string{"t1", "t1", "t2", ""}})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if note.Text != "spot late" || note.Timecode != canonical || note.CueLabel != "42 Sunrise" || note.ActLabel != "Act 1" {
		t.Fatalf("unexpected note %#v", note)
	}
	if note.FrameRate != timecode.FrameRate25 {
		t.Fatalf("expected frame rate to be copied, got %v", note.FrameRate)
	}
	if len(note.Tags) != 2 || note.Tags[0] != "t1" || note.Tags[1] != "t2" {
		t.Fatalf("expected deduplicated tags, got %v", note.Tags)
	}
	if note.AuthorName != "Alice" || note.AuthorSessionID != "session-alice" {
		t.Fatalf("unexpected author %#v", note)
	}

	state.SetTimecode(timecode.Timecode{Hours: 5, FrameRate: timecode.FrameRate30})
	if state.Notes()[0].Timecode != canonical {
		t.Fatalf("note timecode must be copied at submission")
	}
}

func TestSubmitNoteUsesExplicitPosition(t *testing.T) {
	state := newTestState(t)
	state.SetCue("1 Preset")
	explicit := timecode.Timecode{Minutes: 9, FrameRate: timecode.FrameRate24}
	cue := "7 Storm"
	note, err := state.SubmitNote(NoteInput{Author: alice, Text: "rain", Timecode: &explicit, Cue: &cue})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if note.Timecode.Minutes != 9 || note.CueLabel != "7 Storm" || note.FrameRate != timecode.FrameRate24 {
		t.Fatalf("unexpected note %#v", note)
	}
	if note.Timecode.Source != timecode.SourceManual {
		t.Fatalf("explicit timecode must be marked manual, got %q", note.Timecode.Source)
	}
}

func TestSubmitNoteValidation(t *testing.T) {
	state := newTestState(t)
	_, err := state.SubmitNote(NoteInput{Author: alice, Text: "   "})
	if !errors.Is(err, ErrInvalidInput) || ErrorCode(err) != "production.submit_note.empty_text" {
		t.Fatalf("unexpected error %v", err)
	}
	if len(state.Notes()) != 0 {
		t.Fatalf("failed submit must not store a note")
	}

	failing, err := NewState(StateConfig{IDProvider: failingProvider{}})
	if err != nil {
		t.Fatalf("failed to construct state: %v", err)
	}
	if _, err := failing.SubmitNote(NoteInput{Author: alice, Text: "x"}); ErrorCode(err) != "production.submit_note.id_generation_failed" {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestEditAndDeleteNote(t *testing.T) {
	state := newTestState(t)
	note, _ := state.SubmitNote(NoteInput{Author: alice, Text: "first"})

	edited, err := state.EditNoteText(note.ID, bob, "second")
	if err != nil {
		t.Fatalf("edit failed: %v", err)
	}
	if edited.Text != "second" || edited.LastEditedBy != "Bob" || edited.LastEditedAt == nil {
		t.Fatalf("unexpected edited note %#v", edited)
	}
	if edited.AuthorName != "Alice" {
		t.Fatalf("edit must not change the author")
	}

	if _, err := state.EditNoteText("missing", bob, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := state.DeleteNote("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := state.DeleteNote(note.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if len(state.Notes()) != 0 {
		t.Fatalf("expected note to be deleted")
	}
}

func TestCommentLifecycle(t *testing.T) {
	state := newTestState(t)
	note, _ := state.SubmitNote(NoteInput{Author: alice, Text: "note"})

	comment, err := state.SubmitComment(note.ID, bob, "agreed")
	if err != nil {
		t.Fatalf("comment failed: %v", err)
	}
	if _, err := state.SubmitComment("missing", bob, "x"); ErrorCode(err) != "production.submit_comment.note_not_found" {
		t.Fatalf("unexpected error %v", err)
	}

	edited, err := state.EditComment(note.ID, comment.ID, alice, "agreed, fix in tech")
	if err != nil {
		t.Fatalf("edit comment failed: %v", err)
	}
	if edited.Text != "agreed, fix in tech" || edited.LastEditedBy != "Alice" || edited.AuthorName != "Bob" {
		t.Fatalf("unexpected edited comment %#v", edited)
	}
	if _, err := state.EditComment(note.ID, "missing", alice, "x"); ErrorCode(err) != "production.edit_comment.comment_not_found" {
		t.Fatalf("unexpected error %v", err)
	}

	if err := state.DeleteComment(note.ID, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := state.DeleteComment(note.ID, comment.ID); err != nil {
		t.Fatalf("delete comment failed: %v", err)
	}
	if len(state.Notes()[0].Comments) != 0 {
		t.Fatalf("expected comment to be deleted")
	}
}

func TestNotesReturnsCopies(t *testing.T) {
	state := newTestState(t)
	note, _ := state.SubmitNote(NoteInput{Author: alice, Text: "note", Tags: []string{"t1"}})
	_, _ = state.SubmitComment(note.ID, bob, "c")

	view := state.Notes()
	view[0].Tags[0] = "mutated"
	view[0].Comments[0].Text = "mutated"

	fresh := state.Notes()
	if fresh[0].Tags[0] != "t1" || fresh[0].Comments[0].Text != "c" {
		t.Fatalf("callers must not be able to mutate state through copies")
	}
}

func TestRenameAuthorPropagatesToNotesAndComments(t *testing.T) {
	state := newTestState(t)
	first, _ := state.SubmitNote(NoteInput{Author: alice, Text: "one"})
	_, _ = state.SubmitNote(NoteInput{Author: bob, Text: "two"})
	_, _ = state.SubmitComment(first.ID, alice, "self reply")
	_, _ = state.SubmitComment(first.ID, bob, "reply")

	updated := state.RenameAuthor(alice.SessionID, "Alice (SM)")
	if updated != 2 {
		t.Fatalf("expected 2 records updated, got %d", updated)
	}
	notes := state.Notes()
	if notes[0].AuthorName != "Alice (SM)" || notes[0].Comments[0].AuthorName != "Alice (SM)" {
		t.Fatalf("expected alice records to be renamed: %#v", notes[0])
	}
	if notes[1].AuthorName != "Bob" || notes[0].Comments[1].AuthorName != "Bob" {
		t.Fatalf("other authors must be untouched")
	}
	if state.RenameAuthor("", "x") != 0 {
		t.Fatalf("empty session id must not match anything")
	}
}

func TestTagUpsertAndDelete(t *testing.T) {
	state := newTestState(t)
	created, err := state.UpsertTag("", " Lighting ", "#F00")
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if created.ID == "" || created.Name != "Lighting" || created.Color != "#ff0000" {
		t.Fatalf("unexpected tag %#v", created)
	}

	updated, err := state.UpsertTag(created.ID, "Lights", "00ff00")
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.ID != created.ID || updated.Color != "#00ff00" || len(state.Tags()) != 1 {
		t.Fatalf("expected in-place update, got %#v / %#v", updated, state.Tags())
	}

	withID, err := state.UpsertTag("sound", "Sound", "")
	if err != nil {
		t.Fatalf("upsert with id failed: %v", err)
	}
	if withID.ID != "sound" || withID.Color != DefaultTagColor {
		t.Fatalf("unexpected tag %#v", withID)
	}

	if _, err := state.UpsertTag("", "Bad", "#zzz"); ErrorCode(err) != "production.upsert_tag.invalid_color" {
		t.Fatalf("unexpected error %v", err)
	}
	if _, err := state.UpsertTag("", "  ", "#fff"); ErrorCode(err) != "production.upsert_tag.empty_name" {
		t.Fatalf("unexpected error %v", err)
	}

	note, _ := state.SubmitNote(NoteInput{Author: alice, Text: "tagged", Tags: []string{created.ID}})
	if err := state.DeleteTag(created.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := state.DeleteTag(created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if state.Notes()[0].Tags[0] != created.ID || note.Tags[0] != created.ID {
		t.Fatalf("deleting a tag must not rewrite notes")
	}
}

func TestChatKeepsLastHundredInOrder(t *testing.T) {
	state := newTestState(t)
	for index := 1; index <= 105; index++ {
		if _, err := state.SubmitChat(alice, fmt.Sprintf("message %d", index)); err != nil {
			t.Fatalf("chat failed: %v", err)
		}
	}
	chat := state.Chat()
	if len(chat) != MaxChatMessages {
		t.Fatalf("expected %d messages, got %d", MaxChatMessages, len(chat))
	}
	for index, message := range chat {
		expected := fmt.Sprintf("message %d", index+6)
		if message.Text != expected {
			t.Fatalf("expected %q at %d, got %q", expected, index, message.Text)
		}
	}
}

func TestOverrideCueHonoursLiveSource(t *testing.T) {
	state := newTestState(t)
	if !state.OverrideCue(" 3 Manual ") || state.Cue() != "3 Manual" {
		t.Fatalf("expected override without live source to apply, cue=%q", state.Cue())
	}
	state.SetCueSourceAttached(true)
	if state.OverrideCue("4 Ignored") {
		t.Fatalf("override must be discarded while a live source is attached")
	}
	if state.Cue() != "3 Manual" {
		t.Fatalf("cue changed despite live source: %q", state.Cue())
	}
}

func TestTimeModeAndLabels(t *testing.T) {
	state := newTestState(t)
	if state.TimeMode() != TimeModeSource {
		t.Fatalf("expected default mode mtc")
	}
	changed, err := state.SetTimeMode(TimeModeWall)
	if err != nil || !changed {
		t.Fatalf("expected mode change, got %v %v", changed, err)
	}
	if changed, _ := state.SetTimeMode(TimeModeWall); changed {
		t.Fatalf("same mode must not report change")
	}
	if _, err := state.SetTimeMode("smpte"); ErrorCode(err) != "production.set_time_mode.invalid_mode" {
		t.Fatalf("unexpected error %v", err)
	}
	if !state.SetAct("Act 2") || state.SetAct("Act 2") {
		t.Fatalf("act change detection failed")
	}
	if !state.SetCue("1") || state.SetCue("1") {
		t.Fatalf("cue change detection failed")
	}
}

func TestRestoreReplacesNotesAndTags(t *testing.T) {
	state := newTestState(t)
	_, _ = state.SubmitNote(NoteInput{Author: alice, Text: "old"})
	state.Restore(
		[]Note{{ID: "n1", Text: "restored"}},
		[]Tag{{ID: "t1", Name: "Props", Color: "#123456"}},
	)
	view := state.View()
	if len(view.Notes) != 1 || view.Notes[0].Text != "restored" || view.Notes[0].Comments == nil {
		t.Fatalf("unexpected restored notes %#v", view.Notes)
	}
	if len(view.Tags) != 1 || view.Tags[0].Name != "Props" {
		t.Fatalf("unexpected restored tags %#v", view.Tags)
	}
}
