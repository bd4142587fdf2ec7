// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package state persists the session: which projects were open and which
// was active, so a restart restores the prior working set.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// OpenProject records one open project in the session file.
type OpenProject struct {
	ProjectDir string    `json:"projectDir"`
	LastOpened time.Time `json:"lastOpened"`
}

// SessionState is the persisted session record. Unknown fields in the
// on-disk JSON are ignored on read.
type SessionState struct {
	OpenProjects         []OpenProject `json:"openProjects"`
	LastActiveProjectDir *string       `json:"lastActiveProjectDir"`
}

// Store reads and writes the session state file. Persistence is best
// effort: losing the restore list is acceptable, so callers are expected
// to log and ignore returned errors rather than propagate them.
type Store struct {
	filePath string
}

// NewStore creates a store at the given file path.
func NewStore(filePath string) *Store {
	return &Store{filePath: filePath}
}

// Path returns the state file path.
func (s *Store) Path() string {
	return s.filePath
}

// Load reads the saved session from disk. A missing or unparseable file
// yields an empty state together with the underlying error; the empty
// state is always usable.
func (s *Store) Load() (SessionState, error) {
	var empty SessionState

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		return empty, fmt.Errorf("read session file: %w", err)
	}
	if len(data) == 0 {
		return empty, nil
	}

	var st SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return empty, fmt.Errorf("parse session file: %w", err)
	}
	return st, nil
}

// Save writes the session state to disk atomically (write tmp + rename).
func (s *Store) Save(st SessionState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp session file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}
