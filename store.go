// Package main - store.go
//
// This file implements the SQLite mirror of the journal. The JSON logs remain the
// compatibility format; the store makes hourly and daily summaries cheap to query
// for the stats report.
//
// Tables:
//   - sessions(id TEXT PK, started_at, stopped_at NULL)
//   - catches(id INTEGER PK, at, day, hour, caught, fish_type NULL, xp)
//   - broken_rods(id INTEGER PK, at, day, hour)
//
// day ("2006-01-02") and hour (0-23) are derived from the timestamp in its own
// offset at insert time, the same way the log timestamps are bucketed.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session and catch data.
type Store struct {
	db *sql.DB
}

// OpenStore opens or creates the SQLite database and applies migrations.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			stopped_at TEXT
		);`,
		`CREATE TABLE IF NOT EXISTS catches (
			id INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			day TEXT NOT NULL,
			hour INTEGER NOT NULL,
			caught INTEGER NOT NULL,
			fish_type TEXT,
			xp INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS broken_rods (
			id INTEGER PRIMARY KEY,
			at TEXT NOT NULL,
			day TEXT NOT NULL,
			hour INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_catches_day ON catches(day);`,
		`CREATE INDEX IF NOT EXISTS idx_broken_rods_day ON broken_rods(day);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertSession stores a newly opened session
func (s *Store) InsertSession(ctx context.Context, sess Session) error {
	var stopped interface{}
	if sess.Stop != nil {
		stopped = *sess.Stop
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO sessions (id, started_at, stopped_at) VALUES (?, ?, ?)`,
		sess.ID, sess.Start, stopped)
	return err
}

// CloseSession stamps the stop time of a session
func (s *Store) CloseSession(ctx context.Context, id string, stop time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET stopped_at = ? WHERE id = ?`,
		stop.Format(time.RFC3339), id)
	return err
}

// InsertCatch stores one minigame outcome. An empty fishType is stored as NULL.
func (s *Store) InsertCatch(ctx context.Context, at time.Time, caught bool, fishType string, xp int) error {
	var ft interface{}
	if fishType != "" {
		ft = fishType
	}
	c := 0
	if caught {
		c = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO catches (at, day, hour, caught, fish_type, xp) VALUES (?, ?, ?, ?, ?, ?)`,
		at.Format(time.RFC3339), at.Format("2006-01-02"), at.Hour(), c, ft, xp)
	return err
}

// InsertBrokenRod stores one broken rod event
func (s *Store) InsertBrokenRod(ctx context.Context, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO broken_rods (at, day, hour) VALUES (?, ?, ?)`,
		at.Format(time.RFC3339), at.Format("2006-01-02"), at.Hour())
	return err
}

// CountCatches returns the number of catch rows
func (s *Store) CountCatches(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM catches`).Scan(&n)
	return n, err
}

// ImportJournal backfills an empty store from the JSON logs.
//
// Parameters:
//   - catches, rods: Records read from fishing_log.json and broken_rods.json
//   - xpFor: xp lookup for a fish id; unknown and unidentified fish count 1
//
// Returns:
//   - int: Number of catch rows imported (0 when the store already had data)
func (s *Store) ImportJournal(ctx context.Context, catches []CatchEntry, rods []BrokenRodEntry, xpFor func(string) int) (int, error) {
	n, err := s.CountCatches(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	imported := 0
	for _, e := range catches {
		at, err := time.Parse(time.RFC3339, e.Timestamp)
		if err != nil {
			continue
		}
		fishType := ""
		if e.FishType != nil {
			fishType = *e.FishType
		}
		xp := 0
		if e.Catch {
			xp = 1
			if fishType != "" && xpFor != nil {
				if v := xpFor(fishType); v > 0 {
					xp = v
				}
			}
		}
		if err := s.InsertCatch(ctx, at, e.Catch, fishType, xp); err != nil {
			return imported, err
		}
		imported++
	}
	for _, r := range rods {
		at, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil || !r.Broken {
			continue
		}
		if err := s.InsertBrokenRod(ctx, at); err != nil {
			return imported, err
		}
	}
	return imported, nil
}

// HourStats aggregates one hour of one day
type HourStats struct {
	Hour       int
	Catch      int
	Fail       int
	XP         int
	BrokenRods int
	FishTypes  map[string]int
}

// FishCount is one row of the per-fish breakdown
type FishCount struct {
	Type  string
	Count int
}

// DaySummary is the daily report data
type DaySummary struct {
	Date       string
	Hours      []HourStats
	Caught     int
	Missed     int
	XP         int
	BrokenRods int
	XPPerHour  float64
	CatchRate  float64
	Fish       []FishCount
}

// DailySummary aggregates one day ("2006-01-02").
//
// Algorithm:
//   1. Group catches by hour: catch/fail counts, xp sum
//   2. Count caught fish per type per hour ("undefined" for unidentified)
//   3. Count broken rods per hour
//   4. XP/hour = total xp / number of hours with catch data
//   5. Per-fish totals sorted by count descending, then name
func (s *Store) DailySummary(ctx context.Context, date string) (DaySummary, error) {
	sum := DaySummary{Date: date}
	hours := map[int]*HourStats{}
	hour := func(h int) *HourStats {
		if hs, ok := hours[h]; ok {
			return hs
		}
		hs := &HourStats{Hour: h, FishTypes: map[string]int{}}
		hours[h] = hs
		return hs
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, SUM(caught), SUM(1 - caught), SUM(CASE WHEN caught = 1 THEN xp ELSE 0 END)
		 FROM catches WHERE day = ? GROUP BY hour`, date)
	if err != nil {
		return sum, fmt.Errorf("failed to query catches: %w", err)
	}
	for rows.Next() {
		var h, c, f, xp int
		if err := rows.Scan(&h, &c, &f, &xp); err != nil {
			rows.Close()
			return sum, err
		}
		hs := hour(h)
		hs.Catch, hs.Fail, hs.XP = c, f, xp
	}
	rows.Close()
	dataHours := len(hours)

	rows, err = s.db.QueryContext(ctx,
		`SELECT hour, COALESCE(fish_type, 'undefined'), COUNT(*)
		 FROM catches WHERE day = ? AND caught = 1 GROUP BY hour, fish_type`, date)
	if err != nil {
		return sum, fmt.Errorf("failed to query fish types: %w", err)
	}
	fish := map[string]int{}
	for rows.Next() {
		var h, n int
		var ft string
		if err := rows.Scan(&h, &ft, &n); err != nil {
			rows.Close()
			return sum, err
		}
		hour(h).FishTypes[ft] += n
		fish[ft] += n
	}
	rows.Close()

	rows, err = s.db.QueryContext(ctx,
		`SELECT hour, COUNT(*) FROM broken_rods WHERE day = ? GROUP BY hour`, date)
	if err != nil {
		return sum, fmt.Errorf("failed to query broken rods: %w", err)
	}
	for rows.Next() {
		var h, n int
		if err := rows.Scan(&h, &n); err != nil {
			rows.Close()
			return sum, err
		}
		hour(h).BrokenRods = n
	}
	rows.Close()

	for _, hs := range hours {
		sum.Hours = append(sum.Hours, *hs)
		sum.Caught += hs.Catch
		sum.Missed += hs.Fail
		sum.XP += hs.XP
		sum.BrokenRods += hs.BrokenRods
	}
	sort.Slice(sum.Hours, func(i, j int) bool { return sum.Hours[i].Hour < sum.Hours[j].Hour })

	if dataHours > 0 {
		sum.XPPerHour = float64(sum.XP) / float64(dataHours)
	}
	sum.CatchRate = computeRate(sum.Caught, sum.Missed)

	for ft, n := range fish {
		sum.Fish = append(sum.Fish, FishCount{Type: ft, Count: n})
	}
	sort.Slice(sum.Fish, func(i, j int) bool {
		if sum.Fish[i].Count != sum.Fish[j].Count {
			return sum.Fish[i].Count > sum.Fish[j].Count
		}
		return sum.Fish[i].Type < sum.Fish[j].Type
	})
	return sum, nil
}

// Dates lists the days that have catch data, oldest first
func (s *Store) Dates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT day FROM catches ORDER BY day`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dates: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
