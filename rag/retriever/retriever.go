// Package retriever embeds a query, runs a top-k similarity search and
// formats the matches into a single context string for generation.
package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
)

// DefaultTopK is the number of passages retrieved when no option is given.
const DefaultTopK = 5

// Separator joins passage blocks in the context string.
const Separator = "\n\n---\n\n"

// Retriever implements document retrieval using vector similarity
type Retriever struct {
	embedder rag.Embedder
	store    rag.VectorStore
	topK     int
	logger   log.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithTopK sets how many passages Retrieve asks for. Values below one are ignored.
func WithTopK(k int) Option {
	return func(r *Retriever) {
		if k > 0 {
			r.topK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// New creates a new vector retriever
func New(embedder rag.Embedder, store rag.VectorStore, opts ...Option) *Retriever {
	r := &Retriever{
		embedder: embedder,
		store:    store,
		topK:     DefaultTopK,
		logger:   &log.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// TopK returns the configured passage count.
func (r *Retriever) TopK() int {
	return r.topK
}

// Retrieve returns the formatted context for query, or rag.NoContextSentinel
// when nothing matched. Failures are rag.KindRetrieval errors.
func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	passages, err := r.Search(ctx, query, r.topK)
	if err != nil {
		return "", err
	}
	r.logger.Info("retrieved %d passages", len(passages))
	return Format(passages), nil
}

// Search returns at most k passages in the store's order.
func (r *Retriever) Search(ctx context.Context, query string, k int) ([]rag.Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, rag.NewRetrievalError("retriever.search", rag.ErrEmptyQuery)
	}
	if k <= 0 {
		return nil, rag.NewRetrievalError("retriever.search", errors.New("k must be positive"))
	}

	vector, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, rag.NewRetrievalError("retriever.embed", fmt.Errorf("failed to embed query: %w", err))
	}

	passages, err := r.store.Search(ctx, vector, k)
	if err != nil {
		return nil, rag.NewRetrievalError("retriever.search", err)
	}
	if len(passages) > k {
		r.logger.Warn("vector store returned %d passages for k=%d, truncating", len(passages), k)
		passages = passages[:k]
	}
	return passages, nil
}

// FormatPassage renders one block:
//
//	[Source: <title> | Topic: <topic> | Relevance: 0.91]
//	<text>
func FormatPassage(p rag.Passage) string {
	return fmt.Sprintf("[Source: %s | Topic: %s | Relevance: %.2f]\n%s", p.DocumentTitle, p.TopicName, p.Score, p.Text)
}

// Format joins passages with Separator, or returns rag.NoContextSentinel for none.
func Format(passages []rag.Passage) string {
	if len(passages) == 0 {
		return rag.NoContextSentinel
	}
	blocks := make([]string, len(passages))
	for i, p := range passages {
		blocks[i] = FormatPassage(p)
	}
	return strings.Join(blocks, Separator)
}
