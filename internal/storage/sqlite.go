package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/arturoyo/Quoorum-sub007/internal/core"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// NewSQLiteStorage opens (or creates) the database at dbPath.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &SQLiteStorage{
		db:   db,
		path: dbPath,
	}, nil
}

// Initialize creates the database schema.
func (s *SQLiteStorage) Initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS debates (
		session_id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		state TEXT NOT NULL,
		synthesis TEXT NOT NULL,
		consensus_score REAL NOT NULL,
		panel_json TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		completed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS rounds (
		session_id TEXT NOT NULL,
		round INTEGER NOT NULL,
		opinions_json TEXT NOT NULL,
		quality_json TEXT,
		PRIMARY KEY (session_id, round),
		FOREIGN KEY (session_id) REFERENCES debates(session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_debates_created_at ON debates(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// SaveResult stores a finished debate with its rounds in one transaction.
func (s *SQLiteStorage) SaveResult(ctx context.Context, result *core.DebateResult) error {
	panelJSON, err := json.Marshal(result.Panel)
	if err != nil {
		return fmt.Errorf("failed to marshal panel: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO debates (session_id, question, state, synthesis, consensus_score, panel_json, created_at, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		result.SessionID,
		result.Question,
		string(result.State),
		result.Synthesis,
		result.ConsensusScore,
		string(panelJSON),
		result.CreatedAt,
		result.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert debate: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE session_id = ?`, result.SessionID); err != nil {
		return fmt.Errorf("failed to clear rounds: %w", err)
	}

	for _, round := range result.Rounds {
		opinionsJSON, err := json.Marshal(round.Opinions)
		if err != nil {
			return fmt.Errorf("failed to marshal round %d opinions: %w", round.Round, err)
		}

		var qualityJSON *string
		if round.Quality != nil {
			data, err := json.Marshal(round.Quality)
			if err != nil {
				return fmt.Errorf("failed to marshal round %d quality: %w", round.Round, err)
			}
			str := string(data)
			qualityJSON = &str
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO rounds (session_id, round, opinions_json, quality_json)
		VALUES (?, ?, ?, ?)
		`, result.SessionID, round.Round, string(opinionsJSON), qualityJSON)
		if err != nil {
			return fmt.Errorf("failed to insert round %d: %w", round.Round, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// GetResult loads one debate with its rounds.
func (s *SQLiteStorage) GetResult(ctx context.Context, sessionID string) (*core.DebateResult, error) {
	row := s.db.QueryRowContext(ctx, `
	SELECT session_id, question, state, synthesis, consensus_score, panel_json, created_at, completed_at
	FROM debates WHERE session_id = ?
	`, sessionID)

	result, err := scanResult(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load debate: %w", err)
	}

	rounds, err := s.loadRounds(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	result.Rounds = rounds

	return result, nil
}

// ListResults returns the most recent debates, without their rounds.
func (s *SQLiteStorage) ListResults(ctx context.Context, limit int) ([]*core.DebateResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT session_id, question, state, synthesis, consensus_score, panel_json, created_at, completed_at
	FROM debates ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list debates: %w", err)
	}
	defer rows.Close()

	var results []*core.DebateResult
	for rows.Next() {
		result, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan debate: %w", err)
		}
		results = append(results, result)
	}

	return results, rows.Err()
}

func (s *SQLiteStorage) loadRounds(ctx context.Context, sessionID string) ([]core.RoundRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT round, opinions_json, quality_json FROM rounds WHERE session_id = ? ORDER BY round
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rounds: %w", err)
	}
	defer rows.Close()

	var rounds []core.RoundRecord
	for rows.Next() {
		var (
			record      core.RoundRecord
			opinions    string
			qualityJSON sql.NullString
		)
		if err := rows.Scan(&record.Round, &opinions, &qualityJSON); err != nil {
			return nil, fmt.Errorf("failed to scan round: %w", err)
		}
		if err := json.Unmarshal([]byte(opinions), &record.Opinions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal opinions: %w", err)
		}
		if qualityJSON.Valid {
			var qa core.QualityAnalysis
			if err := json.Unmarshal([]byte(qualityJSON.String), &qa); err != nil {
				return nil, fmt.Errorf("failed to unmarshal quality: %w", err)
			}
			record.Quality = &qa
		}
		rounds = append(rounds, record)
	}

	return rounds, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanResult(row scannable) (*core.DebateResult, error) {
	var (
		result      core.DebateResult
		state       string
		panelJSON   string
		completedAt sql.NullTime
	)

	err := row.Scan(
		&result.SessionID,
		&result.Question,
		&state,
		&result.Synthesis,
		&result.ConsensusScore,
		&panelJSON,
		&result.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	result.State = core.SessionState(state)
	if err := json.Unmarshal([]byte(panelJSON), &result.Panel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal panel: %w", err)
	}
	if completedAt.Valid {
		t := completedAt.Time.UTC()
		result.CompletedAt = &t
	}

	return &result, nil
}
