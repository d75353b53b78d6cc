// Package snapshot implements the durable, component-scoped byte-blob
// store. It is a thin wrapper over the filesystem — the
// core treats the payload as opaque and never inspects it.
package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned (or, for the Coordinator-facing bool/nil-return
// surface, translated to a zero value) when a snapshot id does not resolve
// to a readable file.
var ErrNotFound = errors.New("snapshot: not found")

// Info is the metadata returned by List, without the payload bytes.
type Info struct {
	SnapshotID  string
	ComponentID string
	Timestamp   time.Time
	Size        int64
}

// Store persists snapshots under ${base}/${componentId}/${snapshotId}.snap.
// Writes are serialized per componentId via a per-component mutex so two
// concurrent creates for the same component never interleave partial
// writes; different components proceed fully in parallel.
type Store struct {
	base string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open returns a Store rooted at base, creating the directory if needed. An
// empty base defaults to "snapshots".
func Open(base string) (*Store, error) {
	if base == "" {
		base = "snapshots"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create base dir: %w", err)
	}
	return &Store{base: base, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) componentLock(componentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[componentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[componentID] = l
	}
	return l
}

func (s *Store) componentDir(componentID string) string {
	return filepath.Join(s.base, componentID)
}

func (s *Store) path(componentID, snapshotID string) string {
	return filepath.Join(s.componentDir(componentID), snapshotID+".snap")
}

// Create writes payload under a freshly generated snapshotId scoped to
// componentID and returns that id.
func (s *Store) Create(componentID string, payload []byte) (string, error) {
	lock := s.componentLock(componentID)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(s.componentDir(componentID), 0o755); err != nil {
		return "", fmt.Errorf("snapshot: create component dir: %w", err)
	}

	snapshotID := uuid.Must(uuid.NewV7()).String()
	path := s.path(componentID, snapshotID)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: write: %w", err)
	}
	return snapshotID, nil
}

// Load returns the payload for snapshotID, scanning every component
// directory since the caller supplies only the snapshot id. An empty or
// unreadable file is treated as not-found.
func (s *Store) Load(snapshotID string) ([]byte, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read base dir: %w", err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		path := s.path(e.Name(), snapshotID)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if len(data) == 0 {
			return nil, ErrNotFound
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// Delete removes snapshotID's file, scoped to componentID. Reports false if
// the file did not exist.
func (s *Store) Delete(componentID, snapshotID string) bool {
	lock := s.componentLock(componentID)
	lock.Lock()
	defer lock.Unlock()

	err := os.Remove(s.path(componentID, snapshotID))
	return err == nil
}

// List returns every snapshot recorded for componentID, in insertion order
// (oldest first, by file modification time).
func (s *Store) List(componentID string) ([]Info, error) {
	entries, err := os.ReadDir(s.componentDir(componentID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list: %w", err)
	}

	var infos []Info
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".snap" {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, Info{
			SnapshotID:  name[:len(name)-len(ext)],
			ComponentID: componentID,
			Timestamp:   fi.ModTime(),
			Size:        fi.Size(),
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Timestamp.Before(infos[j].Timestamp) })
	return infos, nil
}

// ComponentIDs lists every component currently holding at least one
// snapshot, by scanning the store's base directory. Used by the retention
// scheduler to discover what to prune without the core ever enumerating
// snapshots itself.
func (s *Store) ComponentIDs() ([]string, error) {
	entries, err := os.ReadDir(s.base)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot: list components: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// Prune deletes every snapshot for componentID beyond the keep most recent,
// ordered oldest-first. This is the operation the background retention job
// calls; it is never invoked by the core itself.
func (s *Store) Prune(componentID string, keep int) (int, error) {
	infos, err := s.List(componentID)
	if err != nil {
		return 0, err
	}
	if len(infos) <= keep {
		return 0, nil
	}

	toRemove := infos[:len(infos)-keep]
	removed := 0
	for _, info := range toRemove {
		if s.Delete(componentID, info.SnapshotID) {
			removed++
		}
	}
	return removed, nil
}
