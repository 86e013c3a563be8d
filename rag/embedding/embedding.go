// Package embedding adapts langchaingo embedders to rag.Embedder.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/sentinel-zero/sentinel/rag"
)

// DefaultBatchSize matches the ingestion batch used against free-tier quotas.
const DefaultBatchSize = 15

// LangChainEmbedder adapts langchaingo's embeddings.Embedder and checks that
// every vector has the expected dimension.
type LangChainEmbedder struct {
	embedder  embeddings.Embedder
	dimension int
}

var _ rag.Embedder = (*LangChainEmbedder)(nil)

// NewLangChainEmbedder creates a new adapter. A dimension of zero disables
// the check.
func NewLangChainEmbedder(embedder embeddings.Embedder, dimension int) *LangChainEmbedder {
	return &LangChainEmbedder{
		embedder:  embedder,
		dimension: dimension,
	}
}

// OpenAICompatible builds an embedder for an OpenAI-compatible embeddings
// endpoint, such as Gemini's.
func OpenAICompatible(baseURL, token, model string, dimension, batchSize int) (*LangChainEmbedder, error) {
	clientOpts := []openai.Option{
		openai.WithToken(token),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, openai.WithBaseURL(baseURL))
	}
	client, err := openai.New(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("create embedding client for %s: %w", model, err)
	}

	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(batchSize))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}
	return NewLangChainEmbedder(e, dimension), nil
}

// EmbedQuery embeds a single search query
func (l *LangChainEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vec, err := l.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := l.check(vec); err != nil {
		return nil, err
	}
	return vec, nil
}

// EmbedDocuments embeds multiple documents using the underlying langchaingo embedder
func (l *LangChainEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	vecs, err := l.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))
	}
	for _, v := range vecs {
		if err := l.check(v); err != nil {
			return nil, err
		}
	}
	return vecs, nil
}

// GetDimension returns the expected vector dimension, zero if unchecked.
func (l *LangChainEmbedder) GetDimension() int {
	return l.dimension
}

func (l *LangChainEmbedder) check(vec []float32) error {
	if len(vec) == 0 {
		return fmt.Errorf("embedder returned an empty vector")
	}
	if l.dimension > 0 && len(vec) != l.dimension {
		return fmt.Errorf("embedding dimension %d, expected %d", len(vec), l.dimension)
	}
	return nil
}
