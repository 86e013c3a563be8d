package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/sentinel-zero/sentinel/rag"
)

// DefaultGraphName is used when a connection string names no graph.
const DefaultGraphName = "sentinel"

const searchQuery = `CALL db.idx.vector.queryNodes('Chunk', 'embedding', $k, vecf32($vec)) YIELD node, score
MATCH (node)-[:FROM_DOCUMENT]->(d:Document)
MATCH (node)-[:COVERS_TOPIC]->(t:Topic)
RETURN node.text AS text, score, d.title AS document, t.name AS topic
ORDER BY score ASC
LIMIT $k`

const addChunksQuery = `UNWIND $chunks AS ch
MERGE (d:Document {doc_id: ch.doc_id}) SET d.title = ch.title
MERGE (t:Topic {name: ch.topic}) SET t.paper = ch.paper
MERGE (c:Chunk {chunk_id: ch.chunk_id})
SET c.text = ch.text, c.embedding = vecf32(ch.embedding)
MERGE (c)-[:FROM_DOCUMENT]->(d)
MERGE (c)-[:COVERS_TOPIC]->(t)`

// uniqueKeys are the node keys enforced by Setup.
var uniqueKeys = []struct{ label, property string }{
	{"Document", "doc_id"},
	{"Chunk", "chunk_id"},
	{"Topic", "name"},
	{"Entity", "name"},
	{"PYQ", "pyq_id"},
}

// FalkorDBStore keeps chunks as graph nodes linked to their Document and
// Topic, with a cosine vector index on Chunk.embedding.
type FalkorDBStore struct {
	graph  Graph
	closer func() error
}

var (
	_ rag.VectorStore   = (*FalkorDBStore)(nil)
	_ rag.SchemaManager = (*FalkorDBStore)(nil)
	_ rag.ChunkWriter   = (*FalkorDBStore)(nil)
	_ rag.Resetter      = (*FalkorDBStore)(nil)
)

// NewFalkorDBStore connects using a connection string of the form
// falkordb://[:password@]host:port/graph_name.
func NewFalkorDBStore(connectionString string) (*FalkorDBStore, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}

	addr := u.Host
	if addr == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}
	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = DefaultGraphName
	}

	opts := &redis.Options{Addr: addr}
	if u.User != nil {
		opts.Username = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			opts.Password = pw
		}
	}
	client := redis.NewClient(opts)

	s := NewFalkorDBStoreWithClient(client, graphName)
	s.closer = client.Close
	return s, nil
}

// NewFalkorDBStoreWithClient uses an existing connection. Close does not
// close conn.
func NewFalkorDBStoreWithClient(conn Doer, graphName string) *FalkorDBStore {
	if graphName == "" {
		graphName = DefaultGraphName
	}
	return &FalkorDBStore{graph: NewGraph(graphName, conn)}
}

// Search returns the k nearest chunks. FalkorDB reports cosine distance, so
// the relevance is 1 - distance.
func (s *FalkorDBStore) Search(ctx context.Context, vector []float32, k int) ([]rag.Passage, error) {
	if k <= 0 {
		return nil, nil
	}
	qr, err := s.graph.Query(ctx, searchQuery, map[string]any{"k": k, "vec": vector})
	if err != nil {
		return nil, fmt.Errorf("falkordb vector search: %w", err)
	}

	passages := make([]rag.Passage, 0, len(qr.Results))
	for i, row := range qr.Results {
		if len(row) < 4 {
			return nil, fmt.Errorf("falkordb vector search: row %d has %d columns", i, len(row))
		}
		distance, err := asFloat(row[1])
		if err != nil {
			return nil, fmt.Errorf("falkordb vector search: row %d score: %w", i, err)
		}
		passages = append(passages, rag.Passage{
			Text:          asString(row[0]),
			Score:         relevance(distance),
			DocumentTitle: asString(row[2]),
			TopicName:     asString(row[3]),
		})
	}
	return passages, nil
}

// Reset deletes the graph with every node, constraint and index in it.
func (s *FalkorDBStore) Reset(ctx context.Context) error {
	if err := s.graph.Delete(ctx); err != nil {
		return fmt.Errorf("delete graph %s: %w", s.graph.Name, err)
	}
	return nil
}

// Setup drops any existing chunk vector index, creates the unique keys and
// builds a new cosine index of dimension dim.
func (s *FalkorDBStore) Setup(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}

	_, err := s.graph.Query(ctx, "DROP VECTOR INDEX FOR (c:Chunk) ON (c.embedding)", nil)
	if err != nil && !missingIndex(err) {
		return fmt.Errorf("drop vector index: %w", err)
	}

	for _, key := range uniqueKeys {
		if err := s.graph.Constraint(ctx, key.label, key.property); err != nil {
			return err
		}
	}

	create := fmt.Sprintf("CREATE VECTOR INDEX FOR (c:Chunk) ON (c.embedding) OPTIONS {dimension:%d, similarityFunction:'cosine'}", dim)
	if _, err := s.graph.Query(ctx, create, nil); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// AddChunks upserts chunks with their document and topic in one query.
func (s *FalkorDBStore) AddChunks(ctx context.Context, chunks []rag.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	rows := make([]any, len(chunks))
	for i, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ChunkID)
		}
		rows[i] = map[string]any{
			"chunk_id":  c.ChunkID,
			"text":      c.Text,
			"embedding": c.Embedding,
			"doc_id":    c.Document.DocID,
			"title":     c.Document.Title,
			"topic":     c.Topic.Name,
			"paper":     c.Topic.Paper,
		}
	}
	if _, err := s.graph.Query(ctx, addChunksQuery, map[string]any{"chunks": rows}); err != nil {
		return fmt.Errorf("falkordb add chunks: %w", err)
	}
	return nil
}

// Close closes the connection opened by NewFalkorDBStore.
func (s *FalkorDBStore) Close() error {
	if s.closer != nil {
		return s.closer()
	}
	return nil
}

func missingIndex(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such index") || strings.Contains(msg, "unable to drop")
}

// relevance maps a cosine distance in [0,2] to a score in [0,1].
func relevance(distance float64) float64 {
	return clamp01(1 - distance)
}

func clamp01(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
