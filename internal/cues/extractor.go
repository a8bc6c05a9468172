package cues

import (
	"strings"

	"go.uber.org/zap"
)

const (
	// ActiveCueAddress carries the console's currently running cue.
	ActiveCueAddress = "/eos/out/active/cue/text"
	// PendingCueAddress carries the next cue. It is parsed but never applied.
	PendingCueAddress = "/eos/out/pending/cue/text"
	// DefaultActPrefix namespaces act announcements.
	DefaultActPrefix = "/bts/"
)

// ChangeKind identifies which label changed.
type ChangeKind string

const (
	ChangeCue ChangeKind = "cue"
	ChangeAct ChangeKind = "act"
)

// Change is a deduplicated label update.
type Change struct {
	Kind  ChangeKind
	Value string
}

// Extractor turns console address/payload pairs into cue and act changes.
// The console re-announces its state periodically, so only differing values are emitted.
type Extractor struct {
	actPrefix string
	cue       string
	act       string
	logger    *zap.Logger
}

// NewExtractor constructs an extractor. An empty prefix selects DefaultActPrefix.
func NewExtractor(actPrefix string, logger *zap.Logger) *Extractor {
	if strings.TrimSpace(actPrefix) == "" {
		actPrefix = DefaultActPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{actPrefix: actPrefix, logger: logger}
}

// Handle classifies one message. The boolean is false when nothing changed or the message is ignored.
func (e *Extractor) Handle(address, payload string) (Change, bool) {
	switch {
	case address == ActiveCueAddress:
		label, ok := parseCueLabel(payload)
		if !ok || label == e.cue {
			return Change{}, false
		}
		e.cue = label
		return Change{Kind: ChangeCue, Value: label}, true
	case address == PendingCueAddress:
		if label, ok := parseCueLabel(payload); ok {
			e.logger.Debug("pending cue observed", zap.String("label", label))
		}
		return Change{}, false
	case strings.HasPrefix(address, e.actPrefix):
		if payload == e.act {
			return Change{}, false
		}
		e.act = payload
		return Change{Kind: ChangeAct, Value: payload}, true
	default:
		return Change{}, false
	}
}

// Cue returns the last emitted cue label.
func (e *Extractor) Cue() string {
	return e.cue
}

// Act returns the last emitted act label.
func (e *Extractor) Act() string {
	return e.act
}

// parseCueLabel returns the trimmed text after the first "/" of an Eos cue payload such as "1/23 Intro".
func parseCueLabel(payload string) (string, bool) {
	_, label, found := strings.Cut(payload, "/")
	if !found {
		return "", false
	}
	return strings.TrimSpace(label), true
}
