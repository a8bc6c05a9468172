package sessions

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
	"github.com/google/uuid"
)

// Role is fixed at connect time.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleOverlay     Role = "overlay"
)

// DefaultAnonymousTimeout is how long a participant may stay unnamed.
const DefaultAnonymousTimeout = 15 * time.Minute

const (
	maxNameLength     = 64
	placeholderPrefix = "Guest-"
)

var (
	// ErrSessionNotFound indicates the session is not connected.
	ErrSessionNotFound = errors.New("sessions: session not found")
	// ErrNameTaken indicates another participant already holds the name.
	ErrNameTaken = errors.New("sessions: name already in use")
	// ErrInvalidName indicates an empty or oversized display name.
	ErrInvalidName = errors.New("sessions: invalid display name")
	// ErrForbidden indicates an overlay attempted a participant-only action.
	ErrForbidden = errors.New("sessions: action not allowed for overlay sessions")
)

// ParseRole maps the connection hint to a role. Anything but "overlay" is a participant.
func ParseRole(hint string) Role {
	if strings.EqualFold(strings.TrimSpace(hint), string(RoleOverlay)) {
		return RoleOverlay
	}
	return RoleParticipant
}

// Session is the registry's record of one connected client.
type Session struct {
	ID            string             `json:"id"`
	DisplayName   string             `json:"name"`
	Role          Role               `json:"role"`
	IsAnonymous   bool               `json:"isAnonymous"`
	IsTyping      bool               `json:"isTyping"`
	DraftTimecode *timecode.Timecode `json:"draftTimecode,omitempty"`
	DraftCue      *string            `json:"draftCue,omitempty"`
	JoinedAt      time.Time          `json:"joinedAt"`
}

// IsOverlay reports whether the session is a display overlay.
func (s Session) IsOverlay() bool {
	return s.Role == RoleOverlay
}

// IDProvider issues session identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// RegistryConfig describes registry dependencies. OnAnonymousExpired runs on the scheduler's goroutine.
type RegistryConfig struct {
	AnonymousTimeout   time.Duration
	Scheduler          Scheduler
	Clock              func() time.Time
	IDProvider         IDProvider
	OnAnonymousExpired func(sessionID string)
}

// Registry tracks connected sessions. It is not safe for concurrent use; the hub serializes access.
type Registry struct {
	sessions  map[string]*Session
	order     []string
	timers    map[string]Timer
	timeout   time.Duration
	scheduler Scheduler
	clock     func() time.Time
	ids       IDProvider
	onExpired func(string)
}

// NewRegistry constructs a registry with wall-clock defaults.
func NewRegistry(cfg RegistryConfig) *Registry {
	timeout := cfg.AnonymousTimeout
	if timeout <= 0 {
		timeout = DefaultAnonymousTimeout
	}
	scheduler := cfg.Scheduler
	if scheduler == nil {
		scheduler = NewWallScheduler()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	onExpired := cfg.OnAnonymousExpired
	if onExpired == nil {
		onExpired = func(string) {}
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		timers:    make(map[string]Timer),
		timeout:   timeout,
		scheduler: scheduler,
		clock:     clock,
		ids:       cfg.IDProvider,
		onExpired: onExpired,
	}
}

// Connect registers a session. Participants start anonymous with one expiry timer armed.
func (r *Registry) Connect(remoteAddr string, role Role) (Session, error) {
	id, err := r.newID()
	if err != nil {
		return Session{}, fmt.Errorf("sessions: generate id: %w", err)
	}
	session := &Session{
		ID:       id,
		Role:     role,
		JoinedAt: r.clock().UTC(),
	}
	if role == RoleParticipant {
		session.DisplayName = placeholderName(remoteAddr)
		session.IsAnonymous = true
		r.timers[id] = r.scheduler.AfterFunc(r.timeout, func() {
			r.onExpired(id)
		})
	}
	r.sessions[id] = session
	r.order = append(r.order, id)
	return *session, nil
}

// Get returns a copy of the session.
func (r *Registry) Get(id string) (Session, bool) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	return *session, true
}

// Rename claims a display name for a participant and cancels its anonymity timer.
func (r *Registry) Rename(id, name string) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if session.IsOverlay() {
		return Session{}, ErrForbidden
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength {
		return Session{}, ErrInvalidName
	}
	for otherID, other := range r.sessions {
		if otherID == id || other.IsOverlay() {
			continue
		}
		if strings.EqualFold(other.DisplayName, trimmed) {
			return Session{}, ErrNameTaken
		}
	}
	r.stopTimer(id)
	session.DisplayName = trimmed
	session.IsAnonymous = false
	return *session, nil
}

// SetTyping records typing state and the draft position captured when typing began.
func (r *Registry) SetTyping(id string, typing bool, draftTimecode *timecode.Timecode, draftCue *string) (Session, error) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if session.IsOverlay() {
		return Session{}, ErrForbidden
	}
	session.IsTyping = typing
	if typing {
		session.DraftTimecode = draftTimecode
		session.DraftCue = draftCue
	} else {
		session.DraftTimecode = nil
		session.DraftCue = nil
	}
	return *session, nil
}

// Expire consumes the anonymity timer of a session. It reports true only when the session is
// still connected and anonymous, and only once per session.
func (r *Registry) Expire(id string) bool {
	if _, armed := r.timers[id]; !armed {
		return false
	}
	delete(r.timers, id)
	session, ok := r.sessions[id]
	return ok && session.IsAnonymous
}

// Disconnect removes the session and cancels any pending timer.
func (r *Registry) Disconnect(id string) (Session, bool) {
	session, ok := r.sessions[id]
	if !ok {
		return Session{}, false
	}
	r.stopTimer(id)
	delete(r.sessions, id)
	for index, orderedID := range r.order {
		if orderedID == id {
			r.order = append(r.order[:index], r.order[index+1:]...)
			break
		}
	}
	return *session, true
}

// Roster lists participant sessions in join order. Overlays are never listed.
func (r *Registry) Roster() []Session {
	roster := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		session := r.sessions[id]
		if session.IsOverlay() {
			continue
		}
		roster = append(roster, *session)
	}
	return roster
}

// All lists every session in join order.
func (r *Registry) All() []Session {
	all := make([]Session, 0, len(r.order))
	for _, id := range r.order {
		all = append(all, *r.sessions[id])
	}
	return all
}

// Len returns the number of connected sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}

// PendingTimers returns the number of armed anonymity timers.
func (r *Registry) PendingTimers() int {
	return len(r.timers)
}

func (r *Registry) stopTimer(id string) {
	if timer, ok := r.timers[id]; ok {
		timer.Stop()
		delete(r.timers, id)
	}
}

func (r *Registry) newID() (string, error) {
	if r.ids == nil {
		return uuid.NewString(), nil
	}
	return r.ids.NewID()
}

func placeholderName(remoteAddr string) string {
	host := strings.TrimSpace(remoteAddr)
	if parsedHost, _, err := net.SplitHostPort(host); err == nil {
		host = parsedHost
	}
	if host == "" {
		host = "unknown"
	}
	return placeholderPrefix + host
}
