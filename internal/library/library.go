// Package library provides the durable media library: an append-only
// collection of generated images and videos, independent of any
// conversation. Deleting a conversation never touches the library and
// deleting a library record never touches conversations.
package library

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/loomchat/loom/internal/log"
)

// ErrNotFound indicates the requested media record does not exist.
var ErrNotFound = errors.New("media record not found")

const (
	libraryFile = "library.json"
	lockSuffix  = ".lock"
)

// Kind identifies the media type of a record.
type Kind string

// Media kinds.
const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Record is one generated media item.
type Record struct {
	ID        uuid.UUID   `json:"id"`
	Kind      Kind        `json:"kind"`
	Prompt    string      `json:"prompt"`
	Payload   *genai.Blob `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewRecord creates a Record with a fresh id and timestamp.
func NewRecord(kind Kind, prompt string, payload *genai.Blob) Record {
	return Record{
		ID:        uuid.New(),
		Kind:      kind,
		Prompt:    prompt,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// Store owns all media records, persisted as one JSON document under an
// inter-process file lock. Mutations replace the whole in-memory slice
// (copy-on-write) so concurrent readers observe a consistent snapshot.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	path   string
	lock   *flock.Flock
	logger log.Logger

	mu      sync.RWMutex
	records []Record
}

// NewStore creates a Store backed by dir/library.json, loading any
// existing collection.
func NewStore(dir string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, libraryFile)
	s := &Store{
		path:   path,
		lock:   flock.New(path + lockSuffix),
		logger: logger,
	}

	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading library file: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("parsing library file: %w", err)
	}

	s.mu.Lock()
	s.records = records
	s.mu.Unlock()

	s.logger.Debug("loaded media library", "count", len(records))
	return nil
}

// List returns all records, newest first.
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Add appends a record and persists the collection. A persistence failure
// is returned after the in-memory state was updated; callers treat it as
// non-fatal.
func (s *Store) Add(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, 0, len(s.records)+1)
	next = append(next, s.records...)
	next = append(next, rec)
	s.records = next

	return s.persistLocked()
}

// Delete removes the record with the given id.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Record, 0, len(s.records))
	found := false
	for _, r := range s.records {
		if r.ID == id {
			found = true
			continue
		}
		next = append(next, r)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.records = next

	return s.persistLocked()
}

// persistLocked writes the collection atomically under the file lock.
// Caller holds s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding library: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking library file: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlocking library file", "error", err)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), libraryFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing library: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing library file: %w", err)
	}

	s.logger.Debug("persisted media library", "count", len(s.records))
	return nil
}
