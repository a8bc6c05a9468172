package backup

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultInterval is the periodic snapshot cadence.
	DefaultInterval = 60 * time.Second
	// DefaultRetention is how long records are kept.
	DefaultRetention = 24 * time.Hour
	// DefaultPruneInterval is how often expired records are deleted.
	DefaultPruneInterval = 24 * time.Hour
)

// Reasons recorded on each snapshot.
const (
	ReasonPeriodic  = "periodic"
	ReasonInterrupt = "interrupt"
	ReasonFatal     = "fatal"
	ReasonAsync     = "async_failure"
)

var errMissingSource = errors.New("backup: snapshot source is required")

// Source produces the payload to persist.
type Source interface {
	Snapshot(ctx context.Context) (Payload, error)
}

// ManagerConfig describes the backup manager dependencies.
type ManagerConfig struct {
	Source        Source
	Store         *Store
	Clock         func() time.Time
	Interval      time.Duration
	Retention     time.Duration
	PruneInterval time.Duration
	Logger        *zap.Logger
}

// Manager takes periodic and on-demand snapshots. Every failure is logged and dropped.
type Manager struct {
	source        Source
	store         *Store
	clock         func() time.Time
	interval      time.Duration
	retention     time.Duration
	pruneInterval time.Duration
	logger        *zap.Logger

	saveMu sync.Mutex
}

// NewManager validates the configuration and applies defaults.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Source == nil {
		return nil, errMissingSource
	}
	if cfg.Store == nil {
		return nil, ErrMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}
	pruneInterval := cfg.PruneInterval
	if pruneInterval <= 0 {
		pruneInterval = DefaultPruneInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		source:        cfg.Source,
		store:         cfg.Store,
		clock:         clock,
		interval:      interval,
		retention:     retention,
		pruneInterval: pruneInterval,
		logger:        logger,
	}, nil
}

// Run snapshots every interval and prunes every prune interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	snapshotTicker := time.NewTicker(m.interval)
	defer snapshotTicker.Stop()
	pruneTicker := time.NewTicker(m.pruneInterval)
	defer pruneTicker.Stop()

	m.logger.Info("backup manager started",
		zap.Duration("interval", m.interval),
		zap.Duration("retention", m.retention),
		zap.Duration("prune_interval", m.pruneInterval),
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-snapshotTicker.C:
			m.SaveNow(ctx, ReasonPeriodic)
		case <-pruneTicker.C:
			m.Prune(ctx)
		}
	}
}

// SaveNow takes one snapshot and reports whether it was stored.
func (m *Manager) SaveNow(ctx context.Context, reason string) bool {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	payload, err := m.source.Snapshot(ctx)
	if err != nil {
		m.logger.Error("snapshot capture failed", zap.String("reason", reason), zap.Error(err))
		return false
	}
	now := m.clock().UTC()
	if payload.ExportedAt.IsZero() {
		payload.ExportedAt = now
	}
	record, err := m.store.Save(ctx, payload, reason, now)
	if err != nil {
		m.logger.Error("snapshot write failed", zap.String("reason", reason), zap.Error(err))
		return false
	}
	m.logger.Debug("snapshot saved",
		zap.Int64("id", record.ID),
		zap.String("reason", reason),
		zap.Int("notes", len(payload.Notes)),
	)
	return true
}

// Prune deletes records older than the retention window.
func (m *Manager) Prune(ctx context.Context) {
	cutoff := m.clock().UTC().Add(-m.retention)
	removed, err := m.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		m.logger.Error("snapshot prune failed", zap.Error(err))
		return
	}
	if removed > 0 {
		m.logger.Info("expired snapshots pruned", zap.Int64("removed", removed))
	}
}

// Latest returns the most recent stored payload.
func (m *Manager) Latest(ctx context.Context) (Payload, bool, error) {
	return m.store.Latest(ctx)
}
