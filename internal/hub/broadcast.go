package hub

import (
	"context"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/sessions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

func (h *Hub) encode(messageType string, payload any) ([]byte, bool) {
	message, err := protocol.Encode(messageType, payload)
	if err != nil {
		h.logger.Error("outbound encode failed", zap.String("type", messageType), zap.Error(err))
		return nil, false
	}
	return message, true
}

func (h *Hub) deliver(sessionID string, client Client, messageType string, message []byte) {
	if client.Send(message) {
		return
	}
	h.dropped.Add(context.Background(), 1, metric.WithAttributes(attribute.String("type", messageType)))
	h.logger.Debug("outbound message dropped",
		zap.String("session_id", sessionID),
		zap.String("type", messageType),
	)
}

// sendTo delivers one message to a single session.
func (h *Hub) sendTo(sessionID, messageType string, payload any) {
	client, ok := h.clients[sessionID]
	if !ok {
		return
	}
	message, ok := h.encode(messageType, payload)
	if !ok {
		return
	}
	h.deliver(sessionID, client, messageType, message)
}

// broadcastAll delivers to participants and overlays alike.
func (h *Hub) broadcastAll(messageType string, payload any) {
	message, ok := h.encode(messageType, payload)
	if !ok {
		return
	}
	for sessionID, client := range h.clients {
		h.deliver(sessionID, client, messageType, message)
	}
}

// broadcastParticipants skips overlays and the excluded session, if any.
func (h *Hub) broadcastParticipants(messageType string, payload any, excludeID string) {
	message, ok := h.encode(messageType, payload)
	if !ok {
		return
	}
	for sessionID, client := range h.clients {
		if sessionID == excludeID {
			continue
		}
		session, found := h.registry.Get(sessionID)
		if !found || session.IsOverlay() {
			continue
		}
		h.deliver(sessionID, client, messageType, message)
	}
}

func (h *Hub) broadcastRoster(excludeID string) {
	h.broadcastParticipants(protocol.TypeUsers, h.roster(), excludeID)
}

func (h *Hub) broadcastStatus(excludeID string) {
	h.broadcastParticipants(protocol.TypeStatus, h.status(), excludeID)
}

func (h *Hub) broadcastNotes() {
	h.broadcastAll(protocol.TypeNotes, protocol.Notes{Notes: h.state.Notes()})
}

func (h *Hub) broadcastTags() {
	tags := h.state.Tags()
	h.broadcastAll(protocol.TypeTags, protocol.Tags{Tags: tags})
	if h.tags != nil {
		h.tags.Persist(tags)
	}
}

// sendSnapshot replays the state a newly connected session needs. Overlays get the display
// subset only.
func (h *Hub) sendSnapshot(session sessions.Session) {
	view := h.state.View()
	if session.IsOverlay() {
		h.sendTo(session.ID, protocol.TypeTimecode, view.Timecode)
		h.sendTo(session.ID, protocol.TypeCue, protocol.Label{Label: view.Cue})
		h.sendTo(session.ID, protocol.TypeAct, protocol.Label{Label: view.Act})
		h.sendTo(session.ID, protocol.TypeTags, protocol.Tags{Tags: view.Tags})
		h.sendTo(session.ID, protocol.TypeNotes, protocol.Notes{Notes: view.Notes})
		h.sendTo(session.ID, protocol.TypeTimeModeState, protocol.TimeModeState{Mode: view.TimeMode})
		return
	}
	h.sendTo(session.ID, protocol.TypeWelcome, protocol.Welcome{
		SessionID:   session.ID,
		Name:        session.DisplayName,
		IsAnonymous: session.IsAnonymous,
	})
	h.sendTo(session.ID, protocol.TypeUsers, h.roster())
	h.sendTo(session.ID, protocol.TypeChatHistory, protocol.ChatHistory{Messages: view.Chat})
	h.sendTo(session.ID, protocol.TypeNotes, protocol.Notes{Notes: view.Notes})
	h.sendTo(session.ID, protocol.TypeTags, protocol.Tags{Tags: view.Tags})
	h.sendTo(session.ID, protocol.TypeTimeModeState, protocol.TimeModeState{Mode: view.TimeMode})
	h.sendTo(session.ID, protocol.TypeCue, protocol.Label{Label: view.Cue})
	h.sendTo(session.ID, protocol.TypeAct, protocol.Label{Label: view.Act})
	h.sendTo(session.ID, protocol.TypeTimecode, view.Timecode)
	h.sendTo(session.ID, protocol.TypeStatus, h.status())
}

func (h *Hub) roster() protocol.Users {
	roster := h.registry.Roster()
	users := make([]protocol.User, 0, len(roster))
	for _, session := range roster {
		users = append(users, protocol.User{
			ID:            session.ID,
			Name:          session.DisplayName,
			IsAnonymous:   session.IsAnonymous,
			IsTyping:      session.IsTyping,
			DraftTimecode: session.DraftTimecode,
			DraftCue:      session.DraftCue,
			JoinedAt:      session.JoinedAt,
		})
	}
	return protocol.Users{Users: users}
}

func (h *Hub) status() protocol.Status {
	return protocol.Status{
		CueSourceAttached: h.state.CueSourceAttached(),
		Participants:      len(h.registry.Roster()),
		ServerTime:        h.clock().UTC(),
	}
}

func userNotice(session sessions.Session) protocol.UserNotice {
	return protocol.UserNotice{ID: session.ID, Name: session.DisplayName}
}
