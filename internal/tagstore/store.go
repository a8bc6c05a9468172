// Package tagstore persists the tag registry as a flat JSON file.
package tagstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MarcoPoloResearchLab/showcall/backend/internal/production"
	"go.uber.org/zap"
)

// ErrPathRequired indicates the store was built without a file path.
var ErrPathRequired = errors.New("tagstore: path is required")

type document struct {
	Tags []production.Tag `json:"tags"`
}

// Store reads and rewrites the tag file.
type Store struct {
	path   string
	logger *zap.Logger
}

// New constructs a Store for the given path.
func New(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, ErrPathRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: path, logger: logger}, nil
}

// Path returns the file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the tag file. A missing file yields an empty registry.
func (s *Store) Load() ([]production.Tag, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return []production.Tag{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tagstore: read %s: %w", s.path, err)
	}
	var decoded document
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("tagstore: decode %s: %w", s.path, err)
	}
	if decoded.Tags == nil {
		decoded.Tags = []production.Tag{}
	}
	return decoded.Tags, nil
}

// Save rewrites the file through a temporary sibling so readers never see a partial file.
func (s *Store) Save(tags []production.Tag) error {
	if tags == nil {
		tags = []production.Tag{}
	}
	data, err := json.MarshalIndent(document{Tags: tags}, "", "  ")
	if err != nil {
		return fmt.Errorf("tagstore: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("tagstore: create directory: %w", err)
	}
	temporary := s.path + ".tmp"
	if err := os.WriteFile(temporary, data, 0o644); err != nil {
		return fmt.Errorf("tagstore: write %s: %w", temporary, err)
	}
	if err := os.Rename(temporary, s.path); err != nil {
		return fmt.Errorf("tagstore: replace %s: %w", s.path, err)
	}
	return nil
}

// Persist saves the tags and logs a failure instead of returning it.
func (s *Store) Persist(tags []production.Tag) {
	if err := s.Save(tags); err != nil {
		s.logger.Error("tag registry write failed", zap.String("path", s.path), zap.Error(err))
	}
}
