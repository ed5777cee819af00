package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/loomchat/loom/internal/log"
)

const (
	sessionsFile = "sessions.json"
	lockSuffix   = ".lock"
)

// Store is the process-wide durable mapping from conversation id to
// Conversation. The full collection is kept in memory and written back as
// one JSON document on every mutation (copy-on-write replacement); an
// inter-process file lock guards the write so concurrent loom processes
// cannot interleave partial files.
//
// Store is safe for concurrent use by multiple goroutines. The in-memory
// state remains authoritative when a disk write fails.
type Store struct {
	path   string
	lock   *flock.Flock
	logger log.Logger

	mu            sync.RWMutex
	conversations []*Conversation
}

// NewStore creates a Store backed by dir/sessions.json, loading any
// existing collection.
func NewStore(dir string, logger log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	path := filepath.Join(dir, sessionsFile)
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

// load reads the collection from disk. A missing file is an empty store.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading sessions file: %w", err)
	}

	var conversations []*Conversation
	if err := json.Unmarshal(data, &conversations); err != nil {
		return fmt.Errorf("parsing sessions file: %w", err)
	}

	s.mu.Lock()
	s.conversations = conversations
	s.mu.Unlock()

	s.logger.Debug("loaded sessions", "count", len(conversations))
	return nil
}

// List returns clones of all conversations, most recently updated first.
func (s *Store) List() []*Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Conversation, len(s.conversations))
	for i, c := range s.conversations {
		out[i] = c.Clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// Get returns a clone of the conversation with the given id.
func (s *Store) Get(id uuid.UUID) (*Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.conversations {
		if c.ID == id {
			return c.Clone(), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Put stores a clone of conv, replacing any existing conversation with the
// same id, and persists the collection. A persistence failure is returned
// after the in-memory state was already updated; callers treat it as
// non-fatal and log it.
func (s *Store) Put(conv *Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := conv.Clone()
	replaced := false
	// Copy-on-write: build a fresh slice so concurrent List/Get callers
	// holding the old one observe a consistent snapshot.
	next := make([]*Conversation, 0, len(s.conversations)+1)
	for _, c := range s.conversations {
		if c.ID == cp.ID {
			next = append(next, cp)
			replaced = true
			continue
		}
		next = append(next, c)
	}
	if !replaced {
		next = append(next, cp)
	}
	s.conversations = next

	return s.persistLocked()
}

// Delete removes the conversation with the given id. Deleting an unknown id
// returns ErrNotFound. Media library records are never touched.
func (s *Store) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]*Conversation, 0, len(s.conversations))
	found := false
	for _, c := range s.conversations {
		if c.ID == id {
			found = true
			continue
		}
		next = append(next, c)
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.conversations = next

	return s.persistLocked()
}

// persistLocked writes the collection to disk atomically (temp file +
// rename) under the inter-process lock. Caller holds s.mu.
func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding sessions: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("locking sessions file: %w", err)
	}
	defer func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("unlocking sessions file", "error", err)
		}
	}()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), sessionsFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing sessions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing sessions file: %w", err)
	}

	s.logger.Debug("persisted sessions", "count", len(s.conversations))
	return nil
}
