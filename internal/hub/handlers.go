package hub

import (
	"context"
	"errors"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/export"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/sessions"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const (
	errorCodeNameTaken   = "sessions.rename.name_taken"
	errorCodeInvalidName = "sessions.rename.invalid_name"
	errorCodeExport      = "export.render.failed"
	errorCodeUnknown     = "request.failed"
)

// HandleMessage applies one decoded client message on behalf of a session.
func (h *Hub) HandleMessage(ctx context.Context, sessionID string, message protocol.Inbound) error {
	return h.exec(ctx, func() {
		h.handle(sessionID, message)
	})
}

func (h *Hub) handle(sessionID string, message protocol.Inbound) {
	session, ok := h.registry.Get(sessionID)
	if !ok {
		return
	}
	// Overlays are display-only.
	if session.IsOverlay() {
		h.logger.Debug("overlay message ignored",
			zap.String("session_id", sessionID),
			zap.String("type", message.MessageType()),
		)
		return
	}
	h.handled.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", message.MessageType())))

	author := production.Author{SessionID: session.ID, Name: session.DisplayName}
	switch typed := message.(type) {
	case protocol.TagUpsert:
		if _, err := h.state.UpsertTag(typed.ID, typed.Name, typed.Color); err != nil {
			h.sendError(sessionID, message, err)
			return
		}
		h.broadcastTags()
	case protocol.TagDelete:
		if err := h.state.DeleteTag(typed.ID); err != nil {
			h.sendError(sessionID, message, err)
			return
		}
		h.broadcastTags()
	case protocol.TypingStart:
		draftTimecode := h.state.Timecode()
		draftCue := h.state.Cue()
		h.setTyping(sessionID, true, &draftTimecode, &draftCue)
	case protocol.TypingStop:
		h.setTyping(sessionID, false, nil, nil)
	case protocol.TimeModeChange:
		changed, err := h.state.SetTimeMode(production.TimeMode(typed.Mode))
		if err != nil {
			h.sendError(sessionID, message, err)
			return
		}
		if changed {
			h.broadcastAll(protocol.TypeTimeModeState, protocol.TimeModeState{Mode: h.state.TimeMode()})
		}
	case protocol.CueOverride:
		if h.state.OverrideCue(typed.Label) {
			h.broadcastAll(protocol.TypeCue, protocol.Label{Label: h.state.Cue()})
		}
	case protocol.NoteSubmit:
		_, err := h.state.SubmitNote(production.NoteInput{
			Author:   author,
			Text:     typed.Text,
			Tags:     typed.Tags,
			Timecode: typed.Timecode,
			Cue:      typed.Cue,
		})
		if err != nil {
			h.sendError(sessionID, message, err)
			return
		}
		h.broadcastNotes()
		if session.IsTyping {
			h.setTyping(sessionID, false, nil, nil)
		}
	case protocol.NoteEdit:
		h.mutateNotes(sessionID, message, func() error {
			_, err := h.state.EditNoteText(typed.NoteID, author, typed.Text)
			return err
		})
	case protocol.NoteDelete:
		h.mutateNotes(sessionID, message, func() error {
			return h.state.DeleteNote(typed.NoteID)
		})
	case protocol.CommentSubmit:
		h.mutateNotes(sessionID, message, func() error {
			_, err := h.state.SubmitComment(typed.NoteID, author, typed.Text)
			return err
		})
	case protocol.CommentEdit:
		h.mutateNotes(sessionID, message, func() error {
			_, err := h.state.EditComment(typed.NoteID, typed.CommentID, author, typed.Text)
			return err
		})
	case protocol.CommentDelete:
		h.mutateNotes(sessionID, message, func() error {
			return h.state.DeleteComment(typed.NoteID, typed.CommentID)
		})
	case protocol.ChatSubmit:
		chatMessage, err := h.state.SubmitChat(author, typed.Text)
		if err != nil {
			h.sendError(sessionID, message, err)
			return
		}
		h.broadcastParticipants(protocol.TypeChatMessage, chatMessage, "")
	case protocol.NameChange:
		h.rename(session, typed.Name)
	case protocol.ExportRequest:
		h.export(sessionID, message, export.Format(typed.Format))
	default:
		h.logger.Warn("unhandled message type", zap.String("type", message.MessageType()))
	}
}

func (h *Hub) mutateNotes(sessionID string, message protocol.Inbound, mutate func() error) {
	if err := mutate(); err != nil {
		h.sendError(sessionID, message, err)
		return
	}
	h.broadcastNotes()
}

func (h *Hub) setTyping(sessionID string, typing bool, draftTimecode *timecode.Timecode, draftCue *string) {
	if _, err := h.registry.SetTyping(sessionID, typing, draftTimecode, draftCue); err != nil {
		h.logger.Debug("typing update rejected", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	h.broadcastRoster("")
}

// rename claims a name, then rewrites authorship and refreshes every view that shows it.
func (h *Hub) rename(session sessions.Session, name string) {
	renamed, err := h.registry.Rename(session.ID, name)
	if err != nil {
		h.sendTo(session.ID, protocol.TypeNameChangeResult, protocol.NameChangeResult{
			Success: false,
			Name:    session.DisplayName,
			Error:   renameErrorCode(err),
		})
		return
	}
	if h.state.RenameAuthor(renamed.ID, renamed.DisplayName) > 0 {
		h.broadcastNotes()
	}
	h.broadcastRoster("")
	h.sendTo(session.ID, protocol.TypeNameChangeResult, protocol.NameChangeResult{
		Success: true,
		Name:    renamed.DisplayName,
	})
	h.logger.Info("session renamed",
		zap.String("session_id", renamed.ID),
		zap.String("name", renamed.DisplayName),
	)
}

func (h *Hub) export(sessionID string, message protocol.Inbound, format export.Format) {
	result, err := export.Render(format, h.exportInput())
	if err != nil {
		h.logger.Error("export render failed", zap.String("format", string(format)), zap.Error(err))
		h.sendTo(sessionID, protocol.TypeError, protocol.Error{
			Request: message.MessageType(),
			Code:    errorCodeExport,
			Message: err.Error(),
		})
		return
	}
	h.sendTo(sessionID, protocol.TypeExport, protocol.Export{
		Format:      string(result.Format),
		Filename:    result.Filename,
		ContentType: result.ContentType,
		Content:     string(result.Content),
	})
}

func (h *Hub) sendError(sessionID string, message protocol.Inbound, err error) {
	code := production.ErrorCode(err)
	if code == "" {
		code = errorCodeUnknown
	}
	h.sendTo(sessionID, protocol.TypeError, protocol.Error{
		Request: message.MessageType(),
		Code:    code,
		Message: err.Error(),
	})
}

func renameErrorCode(err error) string {
	switch {
	case errors.Is(err, sessions.ErrNameTaken):
		return errorCodeNameTaken
	case errors.Is(err, sessions.ErrInvalidName):
		return errorCodeInvalidName
	default:
		return errorCodeUnknown
	}
}
