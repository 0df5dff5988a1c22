package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"switchmonitor/internal/models"
)

// Sink durably records transition events.
type Sink interface {
	Name() string
	Record(ctx context.Context, ev models.TransitionEvent) error
}

// History serves the most recent transitions, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]models.TransitionRecord, error)
}

// Store is a sink that can also be read back.
type Store interface {
	Sink
	History
	Close() error
}

// FileStore keeps the transition log as a JSON file on disk. Only the newest
// maxRecords transitions are kept; IDs keep increasing across trims.
type FileStore struct {
	mu         sync.RWMutex
	path       string
	maxRecords int
	history    []models.TransitionRecord
	nextID     int64
}

// NewFileStore creates a storage instance and loads existing history if
// present. maxRecords <= 0 keeps everything.
func NewFileStore(path string, maxRecords int) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure data directory: %w", err)
	}

	s := &FileStore{path: path, maxRecords: maxRecords, nextID: 1}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Name implements Sink.
func (s *FileStore) Name() string { return "file" }

// Record appends a transition and persists the log. On write failure the
// in-memory log is left unchanged.
func (s *FileStore) Record(_ context.Context, ev models.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := models.RecordFromEvent(s.nextID, ev)
	next := s.trim(append(s.history[:len(s.history):len(s.history)], rec))
	if err := persist(s.path, next); err != nil {
		return err
	}
	s.history = next
	s.nextID++
	return nil
}

// Recent returns up to limit records, newest first.
func (s *FileStore) Recent(_ context.Context, limit int) ([]models.TransitionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.TransitionRecord, 0, n)
	for i := len(s.history) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.history[i])
	}
	return out, nil
}

// trim drops the oldest records beyond maxRecords into a fresh slice.
func (s *FileStore) trim(history []models.TransitionRecord) []models.TransitionRecord {
	if s.maxRecords <= 0 || len(history) <= s.maxRecords {
		return history
	}
	kept := make([]models.TransitionRecord, s.maxRecords)
	copy(kept, history[len(history)-s.maxRecords:])
	return kept
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.history = []models.TransitionRecord{}
			return nil
		}
		return fmt.Errorf("read history: %w", err)
	}

	if len(data) == 0 {
		s.history = []models.TransitionRecord{}
		return nil
	}

	var entries []models.TransitionRecord
	if err := json.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse history: %w", err)
	}

	for _, e := range entries {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	s.history = s.trim(entries)
	return nil
}

func persist(path string, history []models.TransitionRecord) error {
	bytes, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmpPath := fmt.Sprintf("%s.%d.tmp", path, time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, bytes, 0o644); err != nil {
		return fmt.Errorf("write temp history: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
