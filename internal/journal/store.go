// Package journal persists gate hits in SQLite.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/cwbudde/algo-gate/event"
)

// Hit is one recorded hit.
type Hit struct {
	ID    int64
	Sound string
	RMS   float64
	Time  time.Time
}

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Hits arrive on the tick goroutine while readers query; one connection
	// serialises them.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS hits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			sound TEXT NOT NULL,
			rms REAL NOT NULL,
			at_ns INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_hits_sound_at ON hits(sound, at_ns DESC);
	`)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one hit event.
func (s *Store) Record(e event.HitEvent) error {
	_, err := s.db.Exec("INSERT INTO hits (sound, rms, at_ns) VALUES (?, ?, ?)",
		e.ID, e.RMS, e.Time.UnixNano())
	return err
}

// Recent returns up to limit hits, newest first. An empty sound matches all
// sounds.
func (s *Store) Recent(sound string, limit int) ([]Hit, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := "SELECT id, sound, rms, at_ns FROM hits"
	args := []any{}
	if sound != "" {
		query += " WHERE sound = ?"
		args = append(args, sound)
	}
	query += " ORDER BY at_ns DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var ns int64
		if err := rows.Scan(&h.ID, &h.Sound, &h.RMS, &ns); err != nil {
			return nil, err
		}
		h.Time = time.Unix(0, ns)
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// Counts returns the number of recorded hits per sound.
func (s *Store) Counts() (map[string]int, error) {
	rows, err := s.db.Query("SELECT sound, COUNT(*) FROM hits GROUP BY sound")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var sound string
		var n int
		if err := rows.Scan(&sound, &n); err != nil {
			return nil, err
		}
		counts[sound] = n
	}
	return counts, rows.Err()
}

// Attach records every hit published on bus until the subscription is
// cancelled. Write failures are logged and dropped.
func (s *Store) Attach(bus *event.Bus) event.Subscription {
	return bus.OnHit(func(e event.HitEvent) {
		if err := s.Record(e); err != nil {
			slog.Error("journal record failed", "sound", e.ID, "err", err)
		}
	})
}
