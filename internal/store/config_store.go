package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go-data-pipeline/internal/model"
)

// ConfigFileName is the document array kept under the store directory.
const ConfigFileName = "pipelines.json"

// ConfigStore persists pipeline definitions keyed by name.
type ConfigStore interface {
	AllConfigs() ([]model.Definition, error)
	EnabledConfigs() ([]model.Definition, error)
	Config(name string) (*model.Definition, error)
	SaveConfig(def *model.Definition) (*model.Definition, error)
	DeleteConfig(name string) (bool, error)
	EnableConfig(name string) error
	DisableConfig(name string) error
	UpdateSchedule(name, schedule string) error
	ValidateConfig(def *model.Definition) model.ValidationResult
}

// FileStore keeps definitions in one JSON file, cached in memory and
// rewritten atomically on every change. The file is re-read whenever its
// contents differ from what this store last read or wrote, so changes made by
// another process are picked up instead of overwritten.
type FileStore struct {
	path string
	mu   sync.Mutex
	defs []model.Definition
	raw  []byte
	now  func() time.Time
}

var _ ConfigStore = (*FileStore)(nil)

// NewFileStore opens (or creates) the store under dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	s := &FileStore{path: filepath.Join(dir, ConfigFileName), now: time.Now, defs: []model.Definition{}}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload discards the cache and reads the file again.
func (s *FileStore) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.raw = nil
	return s.syncLocked()
}

// syncLocked refreshes the cache when the file changed on disk. Callers hold mu.
func (s *FileStore) syncLocked() error {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		data = nil
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", s.path, err)
	}
	if s.raw != nil && bytes.Equal(data, s.raw) {
		return nil
	}

	defs := []model.Definition{}
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &defs); err != nil {
			return fmt.Errorf("failed to decode %s: %w", s.path, err)
		}
	}
	s.defs = defs
	s.raw = data
	if s.raw == nil {
		s.raw = []byte{}
	}
	return nil
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) AllConfigs() ([]model.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return nil, err
	}

	out := make([]model.Definition, len(s.defs))
	copy(out, s.defs)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *FileStore) EnabledConfigs() ([]model.Definition, error) {
	all, err := s.AllConfigs()
	if err != nil {
		return nil, err
	}
	enabled := all[:0]
	for _, def := range all {
		if def.Enabled {
			enabled = append(enabled, def)
		}
	}
	return enabled, nil
}

func (s *FileStore) Config(name string) (*model.Definition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return nil, err
	}

	if i := s.indexOf(name); i >= 0 {
		def := s.defs[i]
		return &def, nil
	}
	return nil, fmt.Errorf("%w: %s", model.ErrPipelineNotFound, name)
}

// SaveConfig validates and upserts def, maintaining its timestamps.
func (s *FileStore) SaveConfig(def *model.Definition) (*model.Definition, error) {
	if err := s.ValidateConfig(def).Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return nil, err
	}

	saved := *def
	now := s.now().UTC()
	saved.UpdatedAt = now
	if i := s.indexOf(def.Name); i >= 0 {
		saved.CreatedAt = s.defs[i].CreatedAt
		if err := s.commit(func(defs []model.Definition) []model.Definition {
			defs[i] = saved
			return defs
		}); err != nil {
			return nil, err
		}
		return &saved, nil
	}

	saved.CreatedAt = now
	if err := s.commit(func(defs []model.Definition) []model.Definition {
		return append(defs, saved)
	}); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *FileStore) DeleteConfig(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return false, err
	}

	i := s.indexOf(name)
	if i < 0 {
		return false, nil
	}
	err := s.commit(func(defs []model.Definition) []model.Definition {
		return append(defs[:i], defs[i+1:]...)
	})
	return err == nil, err
}

func (s *FileStore) EnableConfig(name string) error {
	return s.update(name, func(def *model.Definition) error {
		def.Enabled = true
		return nil
	})
}

func (s *FileStore) DisableConfig(name string) error {
	return s.update(name, func(def *model.Definition) error {
		def.Enabled = false
		return nil
	})
}

// UpdateSchedule replaces the cron expression. An empty expression makes the
// pipeline manual-only.
func (s *FileStore) UpdateSchedule(name, schedule string) error {
	if schedule != "" {
		if err := model.ValidateCronExpression(schedule); err != nil {
			return err
		}
	}
	return s.update(name, func(def *model.Definition) error {
		def.Schedule = schedule
		return nil
	})
}

func (s *FileStore) ValidateConfig(def *model.Definition) model.ValidationResult {
	return model.ValidateDefinition(def)
}

func (s *FileStore) update(name string, fn func(def *model.Definition) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.syncLocked(); err != nil {
		return err
	}

	i := s.indexOf(name)
	if i < 0 {
		return fmt.Errorf("%w: %s", model.ErrPipelineNotFound, name)
	}
	def := s.defs[i]
	if err := fn(&def); err != nil {
		return err
	}
	def.UpdatedAt = s.now().UTC()
	return s.commit(func(defs []model.Definition) []model.Definition {
		defs[i] = def
		return defs
	})
}

func (s *FileStore) indexOf(name string) int {
	for i := range s.defs {
		if s.defs[i].Name == name {
			return i
		}
	}
	return -1
}

// commit applies fn to a copy of the definitions, persists the result and
// only then swaps it in. Callers hold mu and have synced.
func (s *FileStore) commit(fn func([]model.Definition) []model.Definition) error {
	next := make([]model.Definition, len(s.defs))
	copy(next, s.defs)
	next = fn(next)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode definitions: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.defs = next
	s.raw = data
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pipelines-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
