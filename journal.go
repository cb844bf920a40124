// Package main - journal.go
//
// This file implements the append-only session and catch logs under logs/.
//
// Files:
//   - sessions.json:    [{"id": "...", "start": RFC3339, "stop": RFC3339|null}]
//   - fishing_log.json: [{"timestamp": RFC3339, "catch": bool, "fish_type": "..."}]
//   - broken_rods.json: [{"timestamp": RFC3339, "broken": true}]
//
// Each write reads the whole array, appends one record and rewrites the file
// with 2-space indentation. The logs directory is created when missing.
//
// Every record is also mirrored to the SQLite store when one is attached.
// Mirror failures are logged and never surface to the control loop.
//
// Invariant: at most one session (the last one) has a null stop.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionActive is returned by OpenSession while the last session is still open
var ErrSessionActive = errors.New("session already active")

// Session is one continuous run between Start and Stop
type Session struct {
	ID    string  `json:"id,omitempty"`
	Start string  `json:"start"`
	Stop  *string `json:"stop"`
}

// Open reports whether the session has not been closed yet
func (s Session) Open() bool {
	return s.Stop == nil
}

// CatchEntry is one minigame outcome
type CatchEntry struct {
	Timestamp string  `json:"timestamp"`
	Catch     bool    `json:"catch"`
	FishType  *string `json:"fish_type,omitempty"`
}

// BrokenRodEntry is one broken rod event
type BrokenRodEntry struct {
	Timestamp string `json:"timestamp"`
	Broken    bool   `json:"broken"`
}

// journalMirror receives a copy of every journal record
type journalMirror interface {
	InsertSession(ctx context.Context, s Session) error
	CloseSession(ctx context.Context, id string, stop time.Time) error
	InsertCatch(ctx context.Context, at time.Time, caught bool, fishType string, xp int) error
	InsertBrokenRod(ctx context.Context, at time.Time) error
}

// Journal writes the JSON logs of one data directory.
type Journal struct {
	dir    string
	mirror journalMirror
	now    func() time.Time
	mu     sync.Mutex
}

// NewJournal creates a journal writing to dir (usually <data>/logs).
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

// AttachStore mirrors every subsequent record into s
func (j *Journal) AttachStore(s *Store) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if s == nil {
		j.mirror = nil
		return
	}
	j.mirror = s
}

func (j *Journal) sessionsPath() string { return filepath.Join(j.dir, "sessions.json") }
func (j *Journal) catchesPath() string  { return filepath.Join(j.dir, "fishing_log.json") }
func (j *Journal) rodsPath() string     { return filepath.Join(j.dir, "broken_rods.json") }

// Sessions returns every recorded session; unreadable files read as empty
func (j *Journal) Sessions() []Session {
	j.mu.Lock()
	defer j.mu.Unlock()
	var sessions []Session
	readJSONArray(j.sessionsPath(), &sessions)
	return sessions
}

// Catches returns every recorded catch entry
func (j *Journal) Catches() []CatchEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var entries []CatchEntry
	readJSONArray(j.catchesPath(), &entries)
	return entries
}

// BrokenRods returns every recorded broken rod entry
func (j *Journal) BrokenRods() []BrokenRodEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var entries []BrokenRodEntry
	readJSONArray(j.rodsPath(), &entries)
	return entries
}

// HasOpenSession reports whether the last session has no stop time
func (j *Journal) HasOpenSession() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	var sessions []Session
	readJSONArray(j.sessionsPath(), &sessions)
	return len(sessions) > 0 && sessions[len(sessions)-1].Open()
}

// OpenSession appends a new open session.
//
// Returns:
//   - Session: The appended record
//   - error: ErrSessionActive when the last session is still open, or a write error
func (j *Journal) OpenSession() (Session, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var sessions []Session
	readJSONArray(j.sessionsPath(), &sessions)
	if len(sessions) > 0 && sessions[len(sessions)-1].Open() {
		return sessions[len(sessions)-1], ErrSessionActive
	}

	now := j.now()
	s := Session{ID: uuid.NewString(), Start: now.Format(time.RFC3339)}
	sessions = append(sessions, s)
	if err := writeJSONArray(j.sessionsPath(), sessions); err != nil {
		return Session{}, err
	}

	if j.mirror != nil {
		if err := j.mirror.InsertSession(context.Background(), s); err != nil {
			LogWarn("[JOURNAL] Store mirror failed for session %s: %v", s.ID, err)
		}
	}
	LogInfo("[JOURNAL] Session %s opened", s.ID)
	return s, nil
}

// CloseSession stamps the open session with the current time.
// Returns false when there was no open session.
func (j *Journal) CloseSession() (bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked(j.now())
}

func (j *Journal) closeLocked(at time.Time) (bool, error) {
	var sessions []Session
	readJSONArray(j.sessionsPath(), &sessions)
	if len(sessions) == 0 || !sessions[len(sessions)-1].Open() {
		return false, nil
	}

	stop := at.Format(time.RFC3339)
	last := &sessions[len(sessions)-1]
	last.Stop = &stop
	if err := writeJSONArray(j.sessionsPath(), sessions); err != nil {
		return false, err
	}

	if j.mirror != nil && last.ID != "" {
		if err := j.mirror.CloseSession(context.Background(), last.ID, at); err != nil {
			LogWarn("[JOURNAL] Store mirror failed closing session %s: %v", last.ID, err)
		}
	}
	LogInfo("[JOURNAL] Session %s closed", last.ID)
	return true, nil
}

// CloseDangling closes a session left open by a previous crash.
func (j *Journal) CloseDangling() {
	j.mu.Lock()
	defer j.mu.Unlock()
	closed, err := j.closeLocked(j.now())
	if err != nil {
		LogWarn("[JOURNAL] Failed to close dangling session: %v", err)
		return
	}
	if closed {
		LogInfo("[JOURNAL] Closed session left open by previous run")
	}
}

// LogCatch appends one minigame outcome. An empty fishType is written as an
// absent fish_type. xp only reaches the store mirror.
func (j *Journal) LogCatch(caught bool, fishType string, xp int) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	entry := CatchEntry{Timestamp: now.Format(time.RFC3339), Catch: caught}
	if fishType != "" {
		ft := fishType
		entry.FishType = &ft
	}

	var entries []CatchEntry
	readJSONArray(j.catchesPath(), &entries)
	entries = append(entries, entry)
	if err := writeJSONArray(j.catchesPath(), entries); err != nil {
		LogWarn("[JOURNAL] Failed to log catch: %v", err)
	}

	if j.mirror != nil {
		if err := j.mirror.InsertCatch(context.Background(), now, caught, fishType, xp); err != nil {
			LogWarn("[JOURNAL] Store mirror failed for catch: %v", err)
		}
	}
}

// LogBrokenRod appends one broken rod event
func (j *Journal) LogBrokenRod() {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	var entries []BrokenRodEntry
	readJSONArray(j.rodsPath(), &entries)
	entries = append(entries, BrokenRodEntry{Timestamp: now.Format(time.RFC3339), Broken: true})
	if err := writeJSONArray(j.rodsPath(), entries); err != nil {
		LogWarn("[JOURNAL] Failed to log broken rod: %v", err)
	}

	if j.mirror != nil {
		if err := j.mirror.InsertBrokenRod(context.Background(), now); err != nil {
			LogWarn("[JOURNAL] Store mirror failed for broken rod: %v", err)
		}
	}
}

// readJSONArray decodes path into v; a missing or corrupt file leaves v empty.
// A corrupt file is moved aside to <path>.bak so the next write starts fresh
// without destroying it.
func readJSONArray(path string, v interface{}) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(data, v); err != nil {
		LogWarn("[JOURNAL] Ignoring unreadable %s: %v", filepath.Base(path), err)
		if err := os.Rename(path, path+".bak"); err != nil {
			LogWarn("[JOURNAL] Failed to back up %s: %v", filepath.Base(path), err)
		} else {
			LogInfo("[JOURNAL] Moved unreadable %s to %s.bak", filepath.Base(path), filepath.Base(path))
		}
	}
}

// writeJSONArray rewrites path with 2-space indented JSON through a temp file
// and a rename, so the file on disk is always either the old or the new array.
func writeJSONArray(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		LogDebug("[JOURNAL] chmod %s: %v", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
