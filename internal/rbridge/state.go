package rbridge

import (
	"os"
	"path/filepath"
)

// StateStore tracks the RDS file where R persists the fitted netmeta object
// between operations. The file is written by the runnetmeta script's saveRDS
// call and read by every query script's readRDS preamble; Go never parses it.
//
// The path is one global slot shared by every bridge instance on the host.
// Concurrent runnetmeta calls race on it (last writer wins) and a concurrent
// reader can observe a missing or partially written file. That matches the
// single-analysis-in-flight assumption of the upstream design; see DESIGN.md.
type StateStore struct {
	path string
}

// DefaultStatePath returns the well-known state file location in the OS
// temp directory.
func DefaultStatePath() string {
	return filepath.Join(os.TempDir(), "netmeta_state.rds")
}

// NewStateStore creates a state store at path, or at DefaultStatePath when
// path is empty.
func NewStateStore(path string) *StateStore {
	if path == "" {
		path = DefaultStatePath()
	}
	return &StateStore{path: path}
}

// Path returns the state file location as handed to the R scripts.
func (s *StateStore) Path() string {
	return s.path
}

// Exists reports whether a fitted analysis has been persisted. Absence is a
// normal state before the first runnetmeta call.
func (s *StateStore) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && !info.IsDir()
}
