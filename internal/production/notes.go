package production

import "github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"

// Notes returns copies of every note in submission order.
func (s *State) Notes() []Note {
	notes := make([]Note, 0, len(s.notes))
	for _, note := range s.notes {
		notes = append(notes, note.clone())
	}
	return notes
}

// SubmitNote stamps a note with the supplied or canonical timecode and cue.
func (s *State) SubmitNote(input NoteInput) (Note, error) {
	text, err := validateText(opSubmitNote, input.Text)
	if err != nil {
		return Note{}, err
	}
	id, err := s.newID(opSubmitNote)
	if err != nil {
		return Note{}, err
	}

	stamp := s.timecode
	if input.Timecode != nil {
		stamp = *input.Timecode
		stamp.Source = timecode.SourceManual
	}
	cue := s.cue
	if input.Cue != nil {
		cue = *input.Cue
	}

	note := Note{
		ID:              id,
		AuthorName:      input.Author.Name,
		AuthorSessionID: input.Author.SessionID,
		Text:            text,
		Timecode:        stamp,
		CueLabel:        cue,
		ActLabel:        s.act,
		FrameRate:       stamp.FrameRate,
		Tags:            uniqueTagIDs(input.Tags),
		Comments:        []Comment{},
		CreatedAt:       s.now(),
	}
	s.notes = append(s.notes, note)
	return note.clone(), nil
}

// EditNoteText replaces the text of a note and records the editor.
func (s *State) EditNoteText(noteID string, editor Author, rawText string) (Note, error) {
	index := s.noteIndex(noteID)
	if index < 0 {
		return Note{}, newError(opEditNote, reasonNoteNotFound, ErrNotFound)
	}
	text, err := validateText(opEditNote, rawText)
	if err != nil {
		return Note{}, err
	}
	editedAt := s.now()
	note := &s.notes[index]
	note.Text = text
	note.LastEditedAt = &editedAt
	note.LastEditedBy = editor.Name
	return note.clone(), nil
}

// DeleteNote removes a note and its comments.
func (s *State) DeleteNote(noteID string) error {
	index := s.noteIndex(noteID)
	if index < 0 {
		return newError(opDeleteNote, reasonNoteNotFound, ErrNotFound)
	}
	s.notes = append(s.notes[:index], s.notes[index+1:]...)
	return nil
}

// SubmitComment appends a comment to a note.
func (s *State) SubmitComment(noteID string, author Author, rawText string) (Comment, error) {
	index := s.noteIndex(noteID)
	if index < 0 {
		return Comment{}, newError(opSubmitComment, reasonNoteNotFound, ErrNotFound)
	}
	text, err := validateText(opSubmitComment, rawText)
	if err != nil {
		return Comment{}, err
	}
	id, err := s.newID(opSubmitComment)
	if err != nil {
		return Comment{}, err
	}
	comment := Comment{
		ID:              id,
		AuthorName:      author.Name,
		AuthorSessionID: author.SessionID,
		Text:            text,
		CreatedAt:       s.now(),
	}
	s.notes[index].Comments = append(s.notes[index].Comments, comment)
	return comment, nil
}

// EditComment replaces the text of a comment and records the editor.
func (s *State) EditComment(noteID, commentID string, editor Author, rawText string) (Comment, error) {
	noteIndex, commentIndex, err := s.commentIndex(opEditComment, noteID, commentID)
	if err != nil {
		return Comment{}, err
	}
	text, err := validateText(opEditComment, rawText)
	if err != nil {
		return Comment{}, err
	}
	editedAt := s.now()
	comment := &s.notes[noteIndex].Comments[commentIndex]
	comment.Text = text
	comment.LastEditedAt = &editedAt
	comment.LastEditedBy = editor.Name
	return *comment, nil
}

// DeleteComment removes one comment from a note.
func (s *State) DeleteComment(noteID, commentID string) error {
	noteIndex, commentIndex, err := s.commentIndex(opDeleteComment, noteID, commentID)
	if err != nil {
		return err
	}
	comments := s.notes[noteIndex].Comments
	s.notes[noteIndex].Comments = append(comments[:commentIndex], comments[commentIndex+1:]...)
	return nil
}

// RenameAuthor rewrites the author snapshot on every note and comment written by the session.
// It returns how many records changed.
func (s *State) RenameAuthor(sessionID, name string) int {
	if sessionID == "" {
		return 0
	}
	updated := 0
	for noteIndex := range s.notes {
		note := &s.notes[noteIndex]
		if note.AuthorSessionID == sessionID && note.AuthorName != name {
			note.AuthorName = name
			updated++
		}
		for commentIndex := range note.Comments {
			comment := &note.Comments[commentIndex]
			if comment.AuthorSessionID == sessionID && comment.AuthorName != name {
				comment.AuthorName = name
				updated++
			}
		}
	}
	return updated
}

func (s *State) noteIndex(noteID string) int {
	for index := range s.notes {
		if s.notes[index].ID == noteID {
			return index
		}
	}
	return -1
}

func (s *State) commentIndex(operation, noteID, commentID string) (int, int, error) {
	noteIndex := s.noteIndex(noteID)
	if noteIndex < 0 {
		return -1, -1, newError(operation, reasonNoteNotFound, ErrNotFound)
	}
	for commentIndex, comment := range s.notes[noteIndex].Comments {
		if comment.ID == commentID {
			return noteIndex, commentIndex, nil
		}
	}
	return -1, -1, newError(operation, reasonCommentNotFound, ErrNotFound)
}

func uniqueTagIDs(ids []string) []string {
	unique := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
