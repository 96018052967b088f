package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"syscall"

	"github.com/mrzlfz/code-server-labs/internal/model"
)

var (
	// ErrNotFound is returned when a record is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a duplicate record.
	ErrAlreadyExists = errors.New("already exists")
)

// data represents the JSON file structure.
type data struct {
	Tunnels []model.TunnelRecord `json:"tunnels"`
}

// JSONStore implements TunnelStore using JSON file persistence.
type JSONStore struct {
	mu       sync.RWMutex
	path     string
	data     *data
	modified bool
}

// NewJSONStore creates a new JSON file-based store under configDir.
func NewJSONStore(configDir string) (*JSONStore, error) {
	// Ensure config directory exists
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, err
	}

	path := filepath.Join(configDir, "tunnels.json")
	s := &JSONStore{
		path: path,
		data: &data{Tunnels: []model.TunnelRecord{}},
	}

	// Load existing data if file exists
	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// load reads data from the JSON file. Records whose process is gone are
// dropped on load so stale entries from a crashed run do not accumulate.
func (s *JSONStore) load() error {
	content, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(content, s.data); err != nil {
		return err
	}
	if s.pruneDead() {
		return s.save()
	}
	return nil
}

// pruneDead removes records for processes that no longer exist. Returns
// whether anything was removed.
func (s *JSONStore) pruneDead() bool {
	kept := s.data.Tunnels[:0]
	for _, r := range s.data.Tunnels {
		if r.PID > 0 && syscall.Kill(r.PID, 0) == nil {
			kept = append(kept, r)
		}
	}
	changed := len(kept) != len(s.data.Tunnels)
	s.data.Tunnels = kept
	return changed
}

// save writes data to the JSON file.
func (s *JSONStore) save() error {
	content, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, content, 0644)
}

// Close persists any pending changes.
func (s *JSONStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.modified {
		return s.save()
	}
	return nil
}

// List returns all records sorted by StartedAt descending.
func (s *JSONStore) List(_ context.Context) ([]model.TunnelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.TunnelRecord, len(s.data.Tunnels))
	copy(result, s.data.Tunnels)

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt > result[j].StartedAt
	})

	return result, nil
}

// Get retrieves a record by ID.
func (s *JSONStore) Get(_ context.Context, id string) (*model.TunnelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.data.Tunnels {
		if s.data.Tunnels[i].ID == id {
			r := s.data.Tunnels[i]
			return &r, nil
		}
	}
	return nil, ErrNotFound
}

// FindByTool returns the records belonging to one tool.
func (s *JSONStore) FindByTool(_ context.Context, tool string) ([]model.TunnelRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TunnelRecord
	for _, r := range s.data.Tunnels {
		if r.Tool == tool {
			result = append(result, r)
		}
	}
	return result, nil
}

// Create adds a new record.
func (s *JSONStore) Create(_ context.Context, r *model.TunnelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.data.Tunnels {
		if existing.ID == r.ID {
			return ErrAlreadyExists
		}
	}

	s.data.Tunnels = append(s.data.Tunnels, *r)
	s.modified = true
	return s.save()
}

// Update modifies an existing record.
func (s *JSONStore) Update(_ context.Context, r *model.TunnelRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tunnels {
		if s.data.Tunnels[i].ID == r.ID {
			s.data.Tunnels[i] = *r
			s.modified = true
			return s.save()
		}
	}
	return ErrNotFound
}

// Delete removes a record by ID.
func (s *JSONStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data.Tunnels {
		if s.data.Tunnels[i].ID == id {
			s.data.Tunnels = append(s.data.Tunnels[:i], s.data.Tunnels[i+1:]...)
			s.modified = true
			return s.save()
		}
	}
	return ErrNotFound
}
