package hub

import (
	"context"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/backup"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/export"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
)

// ApplyTimecode queues a decoded timecode from the MTC listener.
func (h *Hub) ApplyTimecode(value timecode.Timecode) {
	h.post(func() {
		if h.state.SetTimecode(value) {
			h.broadcastAll(protocol.TypeTimecode, value)
		}
	})
}

// ApplyCue queues a cue change from the OSC listener.
func (h *Hub) ApplyCue(label string) {
	h.post(func() {
		if h.state.SetCue(label) {
			h.broadcastAll(protocol.TypeCue, protocol.Label{Label: label})
		}
	})
}

// ApplyAct queues an act change from the OSC listener.
func (h *Hub) ApplyAct(label string) {
	h.post(func() {
		if h.state.SetAct(label) {
			h.broadcastAll(protocol.TypeAct, protocol.Label{Label: label})
		}
	})
}

// Snapshot captures the recoverable state for the backup manager.
func (h *Hub) Snapshot(ctx context.Context) (backup.Payload, error) {
	var payload backup.Payload
	err := h.exec(ctx, func() {
		roster := h.registry.Roster()
		users := make([]backup.User, 0, len(roster))
		for _, session := range roster {
			users = append(users, backup.User{Name: session.DisplayName, JoinedAt: session.JoinedAt})
		}
		payload = backup.Payload{
			Notes:      h.state.Notes(),
			Tags:       h.state.Tags(),
			Users:      users,
			ExportedAt: h.clock().UTC(),
		}
	})
	return payload, err
}

// Restore replaces notes and tags and pushes them to every connected client.
func (h *Hub) Restore(ctx context.Context, notes []production.Note, tags []production.Tag) error {
	return h.exec(ctx, func() {
		h.state.Restore(notes, tags)
		h.broadcastAll(protocol.TypeNotes, protocol.Notes{Notes: h.state.Notes()})
		h.broadcastAll(protocol.TypeTags, protocol.Tags{Tags: h.state.Tags()})
	})
}

// Export renders the current notes for an operator download.
func (h *Hub) Export(ctx context.Context, format export.Format) (export.Result, error) {
	var (
		result    export.Result
		renderErr error
	)
	err := h.exec(ctx, func() {
		result, renderErr = export.Render(format, h.exportInput())
	})
	if err != nil {
		return export.Result{}, err
	}
	return result, renderErr
}

func (h *Hub) exportInput() export.Input {
	roster := h.registry.Roster()
	participants := make([]export.Participant, 0, len(roster))
	for _, session := range roster {
		participants = append(participants, export.Participant{Name: session.DisplayName, JoinedAt: session.JoinedAt})
	}
	return export.Input{
		Notes:        h.state.Notes(),
		Tags:         h.state.Tags(),
		Participants: participants,
		Cue:          h.state.Cue(),
		Act:          h.state.Act(),
		TimeMode:     h.state.TimeMode(),
		ExportedAt:   h.clock().UTC(),
	}
}
