package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/store"
)

// SqliteHistoryStore implements store.HistoryStore using SQLite
type SqliteHistoryStore struct {
	db        *sql.DB
	tableName string
}

// SqliteOptions configuration for SQLite connection
type SqliteOptions struct {
	Path      string
	TableName string // Default "turns"
}

// NewSqliteHistoryStore opens the database file and creates the table.
func NewSqliteHistoryStore(opts SqliteOptions) (*SqliteHistoryStore, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	tableName := opts.TableName
	if tableName == "" {
		tableName = "turns"
	}

	s := &SqliteHistoryStore{
		db:        db,
		tableName: tableName,
	}

	if err := s.InitSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// InitSchema creates the necessary table if it doesn't exist
func (s *SqliteHistoryStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			context TEXT NOT NULL,
			intent TEXT NOT NULL,
			entities TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SqliteHistoryStore) Close() error {
	return s.db.Close()
}

// Append inserts a turn.
func (s *SqliteHistoryStore) Append(ctx context.Context, turn *store.Turn) error {
	if err := store.Prepare(turn); err != nil {
		return err
	}
	entities, err := json.Marshal(turn.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, mode, query, answer, context, intent, entities, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		turn.ID,
		turn.SessionID,
		string(turn.Mode),
		turn.Query,
		turn.Answer,
		turn.Context,
		string(turn.Intent),
		string(entities),
		turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// List returns the session's turns in insertion order.
func (s *SqliteHistoryStore) List(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, mode, query, answer, context, intent, entities, timestamp
		FROM %s
		WHERE session_id = ?
		ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := []*store.Turn{}
	for rows.Next() {
		var t store.Turn
		var mode, intent, entities string
		if err := rows.Scan(&t.ID, &t.SessionID, &mode, &t.Query, &t.Answer, &t.Context, &intent, &entities, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.Mode = rag.Mode(mode)
		t.Intent = rag.Intent(intent)
		if err := json.Unmarshal([]byte(entities), &t.Entities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal entities: %w", err)
		}
		turns = append(turns, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating turn rows: %w", err)
	}
	return turns, nil
}

// Clear removes all turns of a session
func (s *SqliteHistoryStore) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE session_id = ?", s.tableName)
	if _, err := s.db.ExecContext(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
