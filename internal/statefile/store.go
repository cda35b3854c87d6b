// Package statefile persists the map from canonical target name to the
// result recorded at its last successful build.
//
// The state file is a single JSON object. It is loaded once when the store
// opens and written back atomically (write-temp-then-rename) when the engine
// exits. A corrupt or missing file is treated as empty state so a damaged
// cache never blocks a build. A sidecar flock guards against two engine
// instances sharing one root.
package statefile

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/pakebuild/pake/internal/lock"
	"github.com/pakebuild/pake/internal/log"
)

// Result kinds as stored on disk.
const (
	KindFile   = "file"
	KindJSON   = "json"
	KindAbsent = "absent"
)

// Entry is the stored record for one target. Unknown fields in the file are
// tolerated and dropped on the next save.
type Entry struct {
	Kind     string          `json:"kind"`
	Value    json.RawMessage `json:"value"`
	InputSig string          `json:"input_sig,omitempty"`

	// Deps records the declared dependency results from the build that
	// produced this entry. Used only for reporting why a target went stale.
	Deps map[string]json.RawMessage `json:"deps,omitempty"`
}

// Store holds the in-memory state map between Open and Save.
type Store struct {
	path    string
	lk      *lock.FileLock
	entries map[string]Entry
}

// Open acquires the instance lock and loads the state file at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state file path is empty")
	}

	lk, err := lock.Acquire(path + ".lock")
	if err != nil {
		return nil, err
	}

	s := &Store{
		path:    path,
		lk:      lk,
		entries: make(map[string]Entry),
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		_ = lk.Release()
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := json.Unmarshal(raw, &s.entries); err != nil {
		log.WithComponent("statefile").Warn("state file is corrupt, starting with empty state",
			"path", path, "error", err)
		s.entries = make(map[string]Entry)
	}
	return s, nil
}

// Get returns the stored entry for a canonical target name.
func (s *Store) Get(target string) (Entry, bool) {
	e, ok := s.entries[target]
	return e, ok
}

// Set replaces the entry for target. Sibling entries are unaffected; targets
// not referenced this run keep their previous records across Save.
func (s *Store) Set(target string, e Entry) {
	s.entries[target] = e
}

// Delete removes the entry for target.
func (s *Store) Delete(target string) {
	delete(s.entries, target)
}

// Len reports the number of stored entries.
func (s *Store) Len() int { return len(s.entries) }

// Save writes the state map atomically: marshal to a uniquely named temp
// file next to the state file, then rename over it.
func (s *Store) Save() error {
	raw, err := json.Marshal(s.entries)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp := fmt.Sprintf("%s.%s.tmp", s.path, uuid.NewString())
	if err := os.WriteFile(tmp, append(raw, '\n'), 0o644); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

// Close releases the instance lock. It does not save.
func (s *Store) Close() error {
	return s.lk.Release()
}
