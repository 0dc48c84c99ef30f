package inventory

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

var (
	ErrExists   = errors.New("server already exists")
	ErrNotFound = errors.New("server not found")
)

// Status is the install/run state of a server
type Status string

const (
	StatusInstalling Status = "installing"
	StatusStopped    Status = "stopped"
	StatusError      Status = "error"
)

// Record describes one provisioned game server
type Record struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Name       string    `json:"name"`
	Port       int       `json:"port"`
	RAM        int       `json:"ram"`
	Status     Status    `json:"status"`
	Directory  string    `json:"directory"`
	ConfigFile string    `json:"configFile,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Store keeps server records in a JSON file. Every write replaces the
// file atomically so a crash never leaves it half written.
type Store struct {
	path string

	mu      sync.RWMutex
	records map[string]Record
}

// Open loads the inventory at path. A missing file is an empty inventory.
func Open(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]Record)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read inventory: %w", err)
	}

	var list []Record
	if len(data) > 0 {
		if err := sonic.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse inventory %s: %w", path, err)
		}
	}
	for _, r := range list {
		s.records[r.Name] = r
	}
	return s, nil
}

// List returns all records ordered by creation time
func (s *Store) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted()
}

// Get returns the record named name
func (s *Store) Get(name string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[name]
	return r, ok
}

// Exists reports whether name is taken
func (s *Store) Exists(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Create adds a record, assigning its ID and timestamps. Names are unique.
func (s *Store) Create(rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.Name]; ok {
		return Record{}, fmt.Errorf("%w: %s", ErrExists, rec.Name)
	}

	now := time.Now().UTC()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now

	s.records[rec.Name] = rec
	if err := s.persist(); err != nil {
		delete(s.records, rec.Name)
		return Record{}, err
	}
	return rec, nil
}

// SetStatus updates the status of name
func (s *Store) SetStatus(name string, status Status) error {
	return s.update(name, func(r *Record) { r.Status = status })
}

// SetTask records the most recent task for name
func (s *Store) SetTask(name, taskID string) error {
	return s.update(name, func(r *Record) { r.TaskID = taskID })
}

func (s *Store) update(name string, apply func(*Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	prev := rec
	apply(&rec)
	rec.UpdatedAt = time.Now().UTC()
	s.records[name] = rec

	if err := s.persist(); err != nil {
		s.records[name] = prev
		return err
	}
	return nil
}

func (s *Store) sorted() []Record {
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Name < out[j].Name
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// persist must be called with mu held
func (s *Store) persist() error {
	data, err := sonic.ConfigStd.MarshalIndent(s.sorted(), "", "  ")
	if err != nil {
		return fmt.Errorf("encode inventory: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create inventory dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".inventory-*.json")
	if err != nil {
		return fmt.Errorf("write inventory: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write inventory: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write inventory: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace inventory: %w", err)
	}
	return nil
}
