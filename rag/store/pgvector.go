package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/sentinel-zero/sentinel/rag"
)

// maxIndexedDimension is the largest vector pgvector can put in an HNSW index.
const maxIndexedDimension = 2000

// DBPool defines the interface for database connection pool
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PGVectorStore keeps chunks in Postgres with a pgvector embedding column,
// joined to documents and topics tables.
type PGVectorStore struct {
	pool DBPool
}

var (
	_ rag.VectorStore   = (*PGVectorStore)(nil)
	_ rag.SchemaManager = (*PGVectorStore)(nil)
	_ rag.ChunkWriter   = (*PGVectorStore)(nil)
	_ rag.Resetter      = (*PGVectorStore)(nil)
)

// NewPGVectorStore creates a connection pool for connString.
func NewPGVectorStore(ctx context.Context, connString string) (*PGVectorStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &PGVectorStore{pool: pool}, nil
}

// NewPGVectorStoreWithPool creates a store over an existing pool.
// Useful for testing with mocks
func NewPGVectorStoreWithPool(pool DBPool) *PGVectorStore {
	return &PGVectorStore{pool: pool}
}

const schemaSQL = `
	CREATE EXTENSION IF NOT EXISTS vector;
	CREATE TABLE IF NOT EXISTS documents (
		doc_id TEXT PRIMARY KEY,
		title TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS topics (
		name TEXT PRIMARY KEY,
		paper TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS entities (
		name TEXT PRIMARY KEY,
		entity_type TEXT NOT NULL DEFAULT ''
	);
	CREATE TABLE IF NOT EXISTS pyqs (
		pyq_id TEXT PRIMARY KEY,
		year INTEGER NOT NULL,
		text TEXT NOT NULL
	);
	DROP INDEX IF EXISTS chunks_embedding_idx;
	CREATE TABLE IF NOT EXISTS chunks (
		chunk_id TEXT PRIMARY KEY,
		doc_id TEXT NOT NULL REFERENCES documents (doc_id),
		topic TEXT NOT NULL REFERENCES topics (name),
		text TEXT NOT NULL,
		embedding vector(%[1]d) NOT NULL
	);
	ALTER TABLE chunks ALTER COLUMN embedding TYPE vector(%[1]d);
`

const resetSQL = `DROP TABLE IF EXISTS chunks, pyqs, entities, topics, documents CASCADE`

const indexSQL = `CREATE INDEX chunks_embedding_idx ON chunks USING hnsw (embedding vector_cosine_ops)`

// Setup creates the tables and rebuilds the embedding index for dim. pgvector
// cannot index vectors above 2000 dimensions, so larger ones are searched
// exactly.
func (s *PGVectorStore) Setup(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(schemaSQL, dim)); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if dim <= maxIndexedDimension {
		if _, err := s.pool.Exec(ctx, indexSQL); err != nil {
			return fmt.Errorf("failed to create embedding index: %w", err)
		}
	}
	return nil
}

// Reset drops every table Setup creates.
func (s *PGVectorStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, resetSQL); err != nil {
		return fmt.Errorf("failed to drop tables: %w", err)
	}
	return nil
}

const searchSQL = `SELECT c.text, 1 - (c.embedding <=> $1) AS score, d.title, t.name
	FROM chunks c
	JOIN documents d ON d.doc_id = c.doc_id
	JOIN topics t ON t.name = c.topic
	ORDER BY c.embedding <=> $1
	LIMIT $2`

// Search returns the k chunks nearest by cosine distance.
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, k int) ([]rag.Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, searchSQL, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	defer rows.Close()

	var passages []rag.Passage
	for rows.Next() {
		var p rag.Passage
		var score float64
		if err := rows.Scan(&p.Text, &score, &p.DocumentTitle, &p.TopicName); err != nil {
			return nil, fmt.Errorf("pgvector search: scan: %w", err)
		}
		p.Score = clamp01(score)
		passages = append(passages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector search: %w", err)
	}
	return passages, nil
}

const (
	upsertDocumentSQL = `INSERT INTO documents (doc_id, title) VALUES ($1, $2)
		ON CONFLICT (doc_id) DO UPDATE SET title = EXCLUDED.title`
	upsertTopicSQL = `INSERT INTO topics (name, paper) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET paper = EXCLUDED.paper`
	upsertChunkSQL = `INSERT INTO chunks (chunk_id, doc_id, topic, text, embedding) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id) DO UPDATE SET doc_id = EXCLUDED.doc_id, topic = EXCLUDED.topic,
		text = EXCLUDED.text, embedding = EXCLUDED.embedding`
)

// AddChunks upserts chunks with their documents and topics in one transaction.
func (s *PGVectorStore) AddChunks(ctx context.Context, chunks []rag.ChunkRecord) (err error) {
	if len(chunks) == 0 {
		return nil
	}
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ChunkID)
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, c := range chunks {
		if _, err = tx.Exec(ctx, upsertDocumentSQL, c.Document.DocID, c.Document.Title); err != nil {
			return fmt.Errorf("upsert document %s: %w", c.Document.DocID, err)
		}
		if _, err = tx.Exec(ctx, upsertTopicSQL, c.Topic.Name, c.Topic.Paper); err != nil {
			return fmt.Errorf("upsert topic %s: %w", c.Topic.Name, err)
		}
		if _, err = tx.Exec(ctx, upsertChunkSQL, c.ChunkID, c.Document.DocID, c.Topic.Name, c.Text, pgvector.NewVector(c.Embedding)); err != nil {
			return fmt.Errorf("upsert chunk %s: %w", c.ChunkID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the pool.
func (s *PGVectorStore) Close() {
	s.pool.Close()
}
