// Package hub serializes every input of the live production onto one goroutine and fans the
// resulting state out to connected clients.
package hub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/protocol"
	"github.com/MarcoPoloResearchLab/showcall/backend/internal/sessions"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const defaultInboxSize = 256

var (
	// ErrStopped indicates the hub loop is no longer running.
	ErrStopped = errors.New("hub: stopped")

	errMissingState = errors.New("hub: production state is required")
)

// Client is one connected websocket. Send must not block; it reports false when the
// message was dropped. Close must be safe to call more than once.
type Client interface {
	Send(message []byte) bool
	Close()
}

// TagPersister stores the tag registry after each tag mutation.
type TagPersister interface {
	Persist(tags []production.Tag)
}

// Config describes hub dependencies.
type Config struct {
	State            *production.State
	AnonymousTimeout time.Duration
	Scheduler        sessions.Scheduler
	Clock            func() time.Time
	SessionIDs       sessions.IDProvider
	Tags             TagPersister
	// OnFault runs on its own goroutine after a handler panicked.
	OnFault   func(error)
	InboxSize int
	Logger    *zap.Logger
}

// Hub is the single writer of the production state and the session registry.
type Hub struct {
	inbox   chan func()
	stopped chan struct{}

	state    *production.State
	registry *sessions.Registry
	clients  map[string]Client
	clock    func() time.Time
	tags     TagPersister
	onFault  func(error)
	logger   *zap.Logger

	handled metric.Int64Counter
	dropped metric.Int64Counter
}

// New constructs a hub. Run must be started before any other method is used.
func New(cfg Config) (*Hub, error) {
	if cfg.State == nil {
		return nil, errMissingState
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	inboxSize := cfg.InboxSize
	if inboxSize <= 0 {
		inboxSize = defaultInboxSize
	}
	onFault := cfg.OnFault
	if onFault == nil {
		onFault = func(error) {}
	}

	handled, err := meter().Int64Counter(
		"hub.events.handled",
		metric.WithDescription("Client messages handled by the hub"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating handled counter: %w", err)
	}
	dropped, err := meter().Int64Counter(
		"hub.sends.dropped",
		metric.WithDescription("Outbound messages dropped because a client buffer was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	h := &Hub{
		inbox:   make(chan func(), inboxSize),
		stopped: make(chan struct{}),
		state:   cfg.State,
		clients: make(map[string]Client),
		clock:   clock,
		tags:    cfg.Tags,
		onFault: onFault,
		logger:  logger,
		handled: handled,
		dropped: dropped,
	}
	h.registry = sessions.NewRegistry(sessions.RegistryConfig{
		AnonymousTimeout: cfg.AnonymousTimeout,
		Scheduler:        cfg.Scheduler,
		Clock:            clock,
		IDProvider:       cfg.SessionIDs,
		OnAnonymousExpired: func(sessionID string) {
			h.post(func() { h.expire(sessionID) })
		},
	})
	return h, nil
}

// Run processes queued events until ctx is cancelled. Every event runs to completion before
// the next one starts.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.stopped)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case task := <-h.inbox:
			h.runTask(task)
		}
	}
}

func (h *Hub) runTask(task func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err := fmt.Errorf("hub: handler panic: %v", recovered)
			h.logger.Error("hub handler panicked", zap.Error(err), zap.Stack("stack"))
			go h.onFault(err)
		}
	}()
	task()
}

// exec queues fn and waits until the hub loop has run it.
func (h *Hub) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	task := func() {
		defer close(done)
		fn()
	}
	select {
	case h.inbox <- task:
	case <-h.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-h.stopped:
		return ErrStopped
	}
}

// post queues fn without waiting for it to run. Callers keep their own ordering.
func (h *Hub) post(fn func()) {
	select {
	case h.inbox <- fn:
	case <-h.stopped:
	}
}

// Connect registers a client and sends it the snapshot its role is entitled to.
func (h *Hub) Connect(ctx context.Context, client Client, remoteAddr string, role sessions.Role) (sessions.Session, error) {
	var (
		session sessions.Session
		err     error
	)
	execErr := h.exec(ctx, func() {
		session, err = h.registry.Connect(remoteAddr, role)
		if err != nil {
			return
		}
		h.clients[session.ID] = client
		h.sendSnapshot(session)
		if !session.IsOverlay() {
			h.broadcastParticipants(protocol.TypeUserJoined, userNotice(session), session.ID)
			h.broadcastRoster(session.ID)
			h.broadcastStatus(session.ID)
		}
		h.logger.Info("session connected",
			zap.String("session_id", session.ID),
			zap.String("role", string(session.Role)),
			zap.String("remote_addr", remoteAddr),
		)
	})
	if execErr != nil {
		return sessions.Session{}, execErr
	}
	return session, err
}

// Disconnect removes the session. Unknown sessions are ignored.
func (h *Hub) Disconnect(ctx context.Context, sessionID string) error {
	return h.exec(ctx, func() {
		h.removeSession(sessionID, "disconnected")
	})
}

// SetCueSourceAttached records whether a live console feed is running.
func (h *Hub) SetCueSourceAttached(ctx context.Context, attached bool) error {
	return h.exec(ctx, func() {
		if h.state.CueSourceAttached() == attached {
			return
		}
		h.state.SetCueSourceAttached(attached)
		h.broadcastStatus("")
	})
}

// Sessions lists every connected session in join order.
func (h *Hub) Sessions(ctx context.Context) ([]sessions.Session, error) {
	var all []sessions.Session
	err := h.exec(ctx, func() {
		all = h.registry.All()
	})
	return all, err
}

func (h *Hub) removeSession(sessionID, reason string) (sessions.Session, bool) {
	session, ok := h.registry.Disconnect(sessionID)
	if !ok {
		return sessions.Session{}, false
	}
	delete(h.clients, sessionID)
	if !session.IsOverlay() {
		h.broadcastParticipants(protocol.TypeUserLeft, userNotice(session), "")
		h.broadcastRoster("")
		h.broadcastStatus("")
	}
	h.logger.Info("session removed",
		zap.String("session_id", session.ID),
		zap.String("role", string(session.Role)),
		zap.String("reason", reason),
	)
	return session, true
}

func (h *Hub) expire(sessionID string) {
	if !h.registry.Expire(sessionID) {
		return
	}
	client := h.clients[sessionID]
	if _, ok := h.removeSession(sessionID, "anonymous_timeout"); ok && client != nil {
		client.Close()
	}
}

func (h *Hub) closeAll() {
	for id, client := range h.clients {
		client.Close()
		delete(h.clients, id)
	}
}
