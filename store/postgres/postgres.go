package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sentinel-zero/sentinel/rag"
	"github.com/sentinel-zero/sentinel/store"
)

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// PostgresHistoryStore implements store.HistoryStore using PostgreSQL
type PostgresHistoryStore struct {
	pool      DBPool
	tableName string
}

// PostgresOptions configuration for Postgres connection
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "turns"
}

// NewPostgresHistoryStore connects and creates the table.
func NewPostgresHistoryStore(ctx context.Context, opts PostgresOptions) (*PostgresHistoryStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	s := NewPostgresHistoryStoreWithPool(pool, opts.TableName)
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresHistoryStoreWithPool creates a store over an existing pool
// without touching the schema.
func NewPostgresHistoryStoreWithPool(pool DBPool, tableName string) *PostgresHistoryStore {
	if tableName == "" {
		tableName = "turns"
	}
	return &PostgresHistoryStore{
		pool:      pool,
		tableName: tableName,
	}
}

// InitSchema creates the necessary table if it doesn't exist
func (s *PostgresHistoryStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			session_id TEXT NOT NULL,
			mode TEXT NOT NULL,
			query TEXT NOT NULL,
			answer TEXT NOT NULL,
			context TEXT NOT NULL,
			intent TEXT NOT NULL,
			entities JSONB NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_session_id ON %s (session_id);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (s *PostgresHistoryStore) Close() error {
	s.pool.Close()
	return nil
}

// Append inserts a turn.
func (s *PostgresHistoryStore) Append(ctx context.Context, turn *store.Turn) error {
	if err := store.Prepare(turn); err != nil {
		return err
	}
	entities, err := json.Marshal(turn.Entities)
	if err != nil {
		return fmt.Errorf("failed to marshal entities: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, session_id, mode, query, answer, context, intent, entities, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		turn.ID,
		turn.SessionID,
		string(turn.Mode),
		turn.Query,
		turn.Answer,
		turn.Context,
		string(turn.Intent),
		entities,
		turn.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

// List returns the session's turns in insertion order.
func (s *PostgresHistoryStore) List(ctx context.Context, sessionID string) ([]*store.Turn, error) {
	query := fmt.Sprintf(`
		SELECT id, session_id, mode, query, answer, context, intent, entities, timestamp
		FROM %s
		WHERE session_id = $1
		ORDER BY seq ASC
	`, s.tableName)

	rows, err := s.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list turns: %w", err)
	}
	defer rows.Close()

	turns := []*store.Turn{}
	for rows.Next() {
		var t store.Turn
		var mode, intent string
		var entities []byte
		if err := rows.Scan(&t.ID, &t.SessionID, &mode, &t.Query, &t.Answer, &t.Context, &intent, &entities, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan turn row: %w", err)
		}
		t.Mode = rag.Mode(mode)
		t.Intent = rag.Intent(intent)
		if err := json.Unmarshal(entities, &t.Entities); err != nil {
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
func (s *PostgresHistoryStore) Clear(ctx context.Context, sessionID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE session_id = $1", s.tableName)
	if _, err := s.pool.Exec(ctx, query, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
