package store

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sentinel-zero/sentinel/rag"
)

// InMemoryVectorStore is a simple in-memory vector store implementation
type InMemoryVectorStore struct {
	mu        sync.RWMutex
	chunks    []rag.ChunkRecord
	index     map[string]int
	dimension int
}

var (
	_ rag.VectorStore   = (*InMemoryVectorStore)(nil)
	_ rag.SchemaManager = (*InMemoryVectorStore)(nil)
	_ rag.ChunkWriter   = (*InMemoryVectorStore)(nil)
	_ rag.Resetter      = (*InMemoryVectorStore)(nil)
)

// NewInMemoryVectorStore creates a new InMemoryVectorStore
func NewInMemoryVectorStore() *InMemoryVectorStore {
	return &InMemoryVectorStore{index: make(map[string]int)}
}

// Setup clears the store and fixes the vector dimension.
func (s *InMemoryVectorStore) Setup(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("vector dimension must be positive, got %d", dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.index = make(map[string]int)
	s.dimension = dim
	return nil
}

// Reset drops every chunk and forgets the dimension.
func (s *InMemoryVectorStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.index = make(map[string]int)
	s.dimension = 0
	return nil
}

// AddChunks upserts chunks by ChunkID.
func (s *InMemoryVectorStore) AddChunks(ctx context.Context, chunks []rag.ChunkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ChunkID)
		}
		if s.dimension > 0 && len(c.Embedding) != s.dimension {
			return fmt.Errorf("chunk %s has dimension %d, expected %d", c.ChunkID, len(c.Embedding), s.dimension)
		}
		if i, ok := s.index[c.ChunkID]; ok {
			s.chunks[i] = c
			continue
		}
		s.index[c.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Search performs similarity search
func (s *InMemoryVectorStore) Search(ctx context.Context, vector []float32, k int) ([]rag.Passage, error) {
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk rag.ChunkRecord
		score float64
	}
	results := make([]scored, 0, len(s.chunks))
	for _, c := range s.chunks {
		if len(c.Embedding) != len(vector) {
			return nil, fmt.Errorf("query dimension %d does not match stored dimension %d", len(vector), len(c.Embedding))
		}
		results = append(results, scored{chunk: c, score: cosineSimilarity(vector, c.Embedding)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})
	if len(results) > k {
		results = results[:k]
	}

	passages := make([]rag.Passage, len(results))
	for i, r := range results {
		passages[i] = rag.Passage{
			Text:          r.chunk.Text,
			Score:         clamp01(r.score),
			DocumentTitle: r.chunk.Document.Title,
			TopicName:     r.chunk.Topic.Name,
		}
	}
	return passages, nil
}

// Len returns the number of stored chunks.
func (s *InMemoryVectorStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
