package reengage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStatsStore keeps topic outcomes in a local SQLite database.
type SQLiteStatsStore struct {
	db *sql.DB
}

func NewSQLiteStatsStore(path string) (*SQLiteStatsStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create stats db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &SQLiteStatsStore{db: db}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStatsStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStatsStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS topic_stats (
			topic_id TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL DEFAULT 0,
			successes INTEGER NOT NULL DEFAULT 0,
			success_rate REAL NOT NULL DEFAULT 0.5,
			updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init stats db: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStatsStore) Load(ctx context.Context) (map[string]TopicStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT topic_id, attempts, successes, success_rate, updated_at_ms FROM topic_stats`)
	if err != nil {
		return nil, fmt.Errorf("load topic stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]TopicStats)
	for rows.Next() {
		var (
			st        TopicStats
			updatedMS int64
		)
		if err := rows.Scan(&st.TopicID, &st.Attempts, &st.Successes, &st.SuccessRate, &updatedMS); err != nil {
			return nil, fmt.Errorf("scan topic stats: %w", err)
		}
		st.UpdatedAt = time.UnixMilli(updatedMS)
		out[st.TopicID] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate topic stats: %w", err)
	}
	return out, nil
}

func (s *SQLiteStatsStore) Record(ctx context.Context, topicID string, success bool, rate float64) error {
	won := 0
	if success {
		won = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO topic_stats(topic_id, attempts, successes, success_rate, updated_at_ms)
VALUES(?, 1, ?, ?, ?)
ON CONFLICT(topic_id) DO UPDATE SET
	attempts = topic_stats.attempts + 1,
	successes = topic_stats.successes + excluded.successes,
	success_rate = excluded.success_rate,
	updated_at_ms = excluded.updated_at_ms`,
		topicID, won, rate, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("record topic stats: %w", err)
	}
	return nil
}
