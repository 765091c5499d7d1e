package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS user_interactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		iteration INTEGER NOT NULL,
		is_final_analysis INTEGER NOT NULL DEFAULT 0,
		question_text TEXT,
		user_choice TEXT,
		avoided_metaphors TEXT,
		derived_parameters TEXT,
		llm_debug_info TEXT,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_interactions_session ON user_interactions(session_id);
	CREATE INDEX IF NOT EXISTS idx_interactions_created ON user_interactions(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// LogInteraction inserts one interaction record.
func (s *SQLiteStore) LogInteraction(ctx context.Context, rec *InteractionRecord) error {
	query := `
	INSERT INTO user_interactions
		(session_id, iteration, is_final_analysis, question_text, user_choice,
		 avoided_metaphors, derived_parameters, llm_debug_info, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	var avoided interface{}
	if len(rec.AvoidedMetaphors) > 0 {
		raw, err := json.Marshal(rec.AvoidedMetaphors)
		if err != nil {
			return fmt.Errorf("encode avoided metaphors: %w", err)
		}
		avoided = string(raw)
	}

	var derived interface{}
	if len(rec.DerivedParameters) > 0 {
		derived = string(rec.DerivedParameters)
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.SessionID, rec.Iteration, boolToInt(rec.IsFinalAnalysis),
		nullable(rec.QuestionText), nullable(rec.UserChoice),
		avoided, derived, nullable(rec.LLMDebugInfo),
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullable(s string) interface{} {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
