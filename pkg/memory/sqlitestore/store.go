// PicoClaw - Ultra-lightweight personal AI agent
// Inspired by and based on nanobot: https://github.com/HKUDS/nanobot
// License: MIT
//
// Copyright (c) 2026 PicoClaw contributors

// Package sqlitestore is a reference implementation of
// pkg/agentcore/core.MemoryBackend, backed by the teacher's pure-Go sqlite
// driver. Memory backends are external collaborators per spec.md §1 — the
// ReAct loop is constructed against the MemoryBackend interface and never
// imports this package directly — so this store exists to exercise
// modernc.org/sqlite and to give the recall/auto-save paths something
// concrete to run against in cmd/agentcored and integration tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/sipeed/picoclaw/pkg/agentcore/core"
)

// Store persists core.MemoryEntry rows in a single SQLite table and ranks
// Search results with a naive keyword-overlap score — good enough as the
// reference backend the core is built against, not a production vector
// store (spec.md §1 treats those as external collaborators too).
type Store struct {
	db *sql.DB
}

// Open creates (or reuses) a sqlite database at dbPath and ensures the
// memory_entries table exists.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS memory_entries (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			source TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			last_accessed DATETIME
		)`)
	return err
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Store inserts entry, assigning an ID if one wasn't set, and stamping
// CreatedAt if it's zero.
func (s *Store) Store(entry core.MemoryEntry) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	tags, err := json.Marshal(entry.Tags)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(context.Background(),
		`INSERT INTO memory_entries (id, content, tags, source, created_at, last_accessed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Content, string(tags), entry.Source, entry.CreatedAt, nil,
	)
	if err != nil {
		return "", fmt.Errorf("sqlitestore: insert: %w", err)
	}
	return entry.ID, nil
}

// Search ranks every row by keyword overlap with query.Text (case
// insensitive substring match counts as one hit), filters by query.Tags if
// given, and returns up to query.Limit entries sorted by score descending.
// Mode is accepted but ignored — this reference store only ever does a
// keyword match, regardless of Keyword/Vector/Hybrid.
func (s *Store) Search(query core.MemoryQuery) ([]core.MemoryEntry, error) {
	rows, err := s.db.QueryContext(context.Background(),
		`SELECT id, content, tags, source, created_at, last_accessed FROM memory_entries`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: query: %w", err)
	}
	defer rows.Close()

	needle := strings.ToLower(strings.TrimSpace(query.Text))
	var matches []core.MemoryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if len(query.Tags) > 0 && !hasAnyTag(entry.Tags, query.Tags) {
			continue
		}
		entry.Score = keywordScore(entry.Content, needle)
		if entry.Score < query.MinScore {
			continue
		}
		matches = append(matches, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sortByScoreDesc(matches)
	if query.Limit > 0 && len(matches) > query.Limit {
		matches = matches[:query.Limit]
	}

	// Search touches last_accessed on every returned entry, per the data
	// model's "last_accessed updated on read" invariant.
	now := time.Now().UTC()
	for i := range matches {
		matches[i].LastAccessed = now
		_, _ = s.db.ExecContext(context.Background(),
			`UPDATE memory_entries SET last_accessed = ? WHERE id = ?`, now, matches[i].ID)
	}
	return matches, nil
}

// Get returns one entry by ID, stamping LastAccessed.
func (s *Store) Get(id string) (core.MemoryEntry, bool, error) {
	row := s.db.QueryRowContext(context.Background(),
		`SELECT id, content, tags, source, created_at, last_accessed FROM memory_entries WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return core.MemoryEntry{}, false, nil
	}
	if err != nil {
		return core.MemoryEntry{}, false, err
	}
	now := time.Now().UTC()
	entry.LastAccessed = now
	_, _ = s.db.ExecContext(context.Background(),
		`UPDATE memory_entries SET last_accessed = ? WHERE id = ?`, now, id)
	return entry, true, nil
}

// Delete removes one entry by ID. Deleting a nonexistent ID is not an
// error.
func (s *Store) Delete(id string) error {
	_, err := s.db.ExecContext(context.Background(), `DELETE FROM memory_entries WHERE id = ?`, id)
	return err
}

// Count returns the total number of stored entries.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM memory_entries`).Scan(&n)
	return n, err
}

// Clear deletes every entry.
func (s *Store) Clear() error {
	_, err := s.db.ExecContext(context.Background(), `DELETE FROM memory_entries`)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.MemoryEntry, error) {
	var entry core.MemoryEntry
	var tagsJSON string
	var lastAccessed sql.NullTime
	err := row.Scan(&entry.ID, &entry.Content, &tagsJSON, &entry.Source, &entry.CreatedAt, &lastAccessed)
	if err != nil {
		return core.MemoryEntry{}, err
	}
	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return core.MemoryEntry{}, fmt.Errorf("sqlitestore: unmarshal tags: %w", err)
	}
	if lastAccessed.Valid {
		entry.LastAccessed = lastAccessed.Time
	}
	return entry, nil
}

func hasAnyTag(entryTags, wanted []string) bool {
	for _, w := range wanted {
		for _, t := range entryTags {
			if t == w {
				return true
			}
		}
	}
	return false
}

func keywordScore(content, needle string) float64 {
	if needle == "" {
		return 0
	}
	if strings.Contains(strings.ToLower(content), needle) {
		return 1
	}
	return 0
}

// sortByScoreDesc is a small insertion sort — entry counts in this
// reference store are never large enough to need better than O(n^2).
func sortByScoreDesc(entries []core.MemoryEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Score > entries[j-1].Score; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
