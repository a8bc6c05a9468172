package production

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a referenced note, comment or tag does not exist.
	ErrNotFound = errors.New("production: not found")
	// ErrInvalidInput indicates a request that failed validation.
	ErrInvalidInput = errors.New("production: invalid input")

	errMissingIDProvider = errors.New("id provider is required")
)

const (
	opNew           = "production.new"
	opUpsertTag     = "production.upsert_tag"
	opDeleteTag     = "production.delete_tag"
	opSetTimeMode   = "production.set_time_mode"
	opSubmitNote    = "production.submit_note"
	opEditNote      = "production.edit_note"
	opDeleteNote    = "production.delete_note"
	opSubmitComment = "production.submit_comment"
	opEditComment   = "production.edit_comment"
	opDeleteComment = "production.delete_comment"
	opSubmitChat    = "production.submit_chat"

	reasonNoteNotFound    = "note_not_found"
	reasonCommentNotFound = "comment_not_found"
	reasonTagNotFound     = "tag_not_found"
	reasonEmptyText       = "empty_text"
	reasonTextTooLong     = "text_too_long"
	reasonEmptyName       = "empty_name"
	reasonInvalidColor    = "invalid_color"
	reasonInvalidMode     = "invalid_mode"
	reasonIDFailed        = "id_generation_failed"
	reasonMissingProvider = "missing_id_provider"
)

// Error carries a stable "operation.reason" code that is reported to the originating client.
type Error struct {
	code string
	err  error
}

func (e *Error) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *Error) Code() string {
	return e.code
}

func newError(operation, reason string, cause error) error {
	return &Error{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ErrorCode extracts the code of a production error, or "" for foreign errors.
func ErrorCode(err error) string {
	var productionErr *Error
	if errors.As(err, &productionErr) {
		return productionErr.Code()
	}
	return ""
}
