package production

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/timecode"
	"go.uber.org/zap"
)

const (
	// MaxChatMessages bounds the chat log; older entries slide out.
	MaxChatMessages = 100
	maxTextLength   = 5000
)

var noOpLogger = zap.NewNop()

// StateConfig describes the dependencies of the production state.
type StateConfig struct {
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// IDProvider issues identifiers for notes, comments, tags and chat messages.
type IDProvider interface {
	NewID() (string, error)
}

// State is the single authoritative record of the live production.
// It is not safe for concurrent use: the hub applies every mutation from one goroutine.
type State struct {
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger

	timecode          timecode.Timecode
	cue               string
	act               string
	timeMode          TimeMode
	cueSourceAttached bool

	notes []Note
	tags  []Tag
	chat  []ChatMessage
}

// NewState constructs an empty production state.
func NewState(cfg StateConfig) (*State, error) {
	if cfg.IDProvider == nil {
		return nil, newError(opNew, reasonMissingProvider, errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &State{
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		timecode:   timecode.Zero(),
		timeMode:   TimeModeSource,
		notes:      make([]Note, 0),
		tags:       make([]Tag, 0),
		chat:       make([]ChatMessage, 0, MaxChatMessages),
	}, nil
}

// SetTimecode replaces the canonical timecode wholesale.
func (s *State) SetTimecode(value timecode.Timecode) bool {
	if s.timecode == value {
		return false
	}
	s.timecode = value
	return true
}

// SetCue replaces the canonical cue label when it differs.
func (s *State) SetCue(label string) bool {
	if s.cue == label {
		return false
	}
	s.cue = label
	return true
}

// SetAct replaces the canonical act label when it differs.
func (s *State) SetAct(label string) bool {
	if s.act == label {
		return false
	}
	s.act = label
	return true
}

// SetCueSourceAttached marks whether a live console feed owns the cue label.
func (s *State) SetCueSourceAttached(attached bool) {
	s.cueSourceAttached = attached
}

// CueSourceAttached reports whether a live console feed owns the cue label.
func (s *State) CueSourceAttached() bool {
	return s.cueSourceAttached
}

// OverrideCue sets the cue manually. While a live source is attached the request is accepted
// but discarded, since the console stays authoritative. The result reports whether it applied.
func (s *State) OverrideCue(label string) bool {
	if s.cueSourceAttached {
		s.logger.Debug("manual cue override discarded", zap.String("label", label))
		return false
	}
	return s.SetCue(strings.TrimSpace(label))
}

// SetTimeMode switches the displayed clock.
func (s *State) SetTimeMode(mode TimeMode) (bool, error) {
	if !mode.Valid() {
		return false, newError(opSetTimeMode, reasonInvalidMode, ErrInvalidInput)
	}
	if s.timeMode == mode {
		return false, nil
	}
	s.timeMode = mode
	return true, nil
}

// Timecode returns the canonical timecode.
func (s *State) Timecode() timecode.Timecode {
	return s.timecode
}

// Cue returns the canonical cue label.
func (s *State) Cue() string {
	return s.cue
}

// Act returns the canonical act label.
func (s *State) Act() string {
	return s.act
}

// TimeMode returns the active time mode.
func (s *State) TimeMode() TimeMode {
	return s.timeMode
}

// View copies the entire state.
func (s *State) View() View {
	return View{
		Timecode:          s.timecode,
		Cue:               s.cue,
		Act:               s.act,
		TimeMode:          s.timeMode,
		CueSourceAttached: s.cueSourceAttached,
		Notes:             s.Notes(),
		Tags:              s.Tags(),
		Chat:              s.Chat(),
	}
}

// Restore replaces notes and tags, typically from the latest durable snapshot.
func (s *State) Restore(notes []Note, tags []Tag) {
	s.notes = make([]Note, 0, len(notes))
	for _, note := range notes {
		s.notes = append(s.notes, note.clone())
	}
	s.tags = append(make([]Tag, 0, len(tags)), tags...)
}

func (s *State) now() time.Time {
	return s.clock().UTC()
}

func (s *State) newID(operation string) (string, error) {
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logger.Error("production id generation failed", zap.String("operation", operation), zap.Error(err))
		return "", newError(operation, reasonIDFailed, err)
	}
	return id, nil
}

func validateText(operation, raw string) (string, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return "", newError(operation, reasonEmptyText, ErrInvalidInput)
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		return "", newError(operation, reasonTextTooLong, ErrInvalidInput)
	}
	return text, nil
}
