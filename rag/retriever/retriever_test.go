package retriever

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-zero/sentinel/rag"
)

type mockEmbedder struct {
	err     error
	queries []string
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.queries = append(m.queries, text)
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.1, 0.2, 0.3}
	}
	return out, nil
}

type mockStore struct {
	passages []rag.Passage
	err      error
	lastK    int
	calls    int
}

func (m *mockStore) Search(ctx context.Context, vector []float32, k int) ([]rag.Passage, error) {
	m.calls++
	m.lastK = k
	return m.passages, m.err
}

func TestRetrieve_FormatsBlocks(t *testing.T) {
	store := &mockStore{passages: []rag.Passage{
		{Text: "Protection of life and personal liberty.", Score: 0.9134, DocumentTitle: "Constitution of India", TopicName: "Fundamental Rights"},
		{Text: "Maneka Gandhi widened Article 21.", Score: 0.8, DocumentTitle: "Landmark Judgments", TopicName: "Judiciary"},
	}}
	r := New(&mockEmbedder{}, store)

	out, err := r.Retrieve(context.Background(), "What is Article 21?")
	require.NoError(t, err)

	want := "[Source: Constitution of India | Topic: Fundamental Rights | Relevance: 0.91]\nProtection of life and personal liberty." +
		"\n\n---\n\n" +
		"[Source: Landmark Judgments | Topic: Judiciary | Relevance: 0.80]\nManeka Gandhi widened Article 21."
	assert.Equal(t, want, out)
	assert.Equal(t, DefaultTopK, store.lastK)
}

func TestRetrieve_NoMatches(t *testing.T) {
	r := New(&mockEmbedder{}, &mockStore{})

	out, err := r.Retrieve(context.Background(), "Rajasthan stepwells")
	require.NoError(t, err)
	assert.Equal(t, rag.NoContextSentinel, out)
	assert.Equal(t, "No relevant constitutional context found in the database.", out)
}

func TestRetrieve_TruncatesToTopK(t *testing.T) {
	var passages []rag.Passage
	for i := 0; i < 8; i++ {
		passages = append(passages, rag.Passage{Text: fmt.Sprintf("chunk %d", i), Score: 1 - float64(i)/10, DocumentTitle: "D", TopicName: "T"})
	}
	r := New(&mockEmbedder{}, &mockStore{passages: passages}, WithTopK(5))

	out, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)

	blocks := strings.Split(out, Separator)
	require.Len(t, blocks, 5)
	for i, b := range blocks {
		assert.True(t, strings.HasSuffix(b, fmt.Sprintf("chunk %d", i)), b)
	}
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	store := &mockStore{}
	r := New(&mockEmbedder{err: errors.New("quota exhausted")}, store)

	_, err := r.Retrieve(context.Background(), "q")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rag.ErrRetrieval))
	assert.Contains(t, err.Error(), "quota exhausted")
	assert.Zero(t, store.calls)
}

func TestRetrieve_StoreFailure(t *testing.T) {
	down := errors.New("dial tcp: connection refused")
	r := New(&mockEmbedder{}, &mockStore{err: down})

	_, err := r.Retrieve(context.Background(), "q")
	assert.True(t, errors.Is(err, rag.ErrRetrieval))
	assert.True(t, errors.Is(err, down))
}

func TestSearch_Validation(t *testing.T) {
	r := New(&mockEmbedder{}, &mockStore{})

	_, err := r.Search(context.Background(), "", 5)
	assert.True(t, errors.Is(err, rag.ErrEmptyQuery))

	_, err = r.Search(context.Background(), "q", 0)
	assert.True(t, errors.Is(err, rag.ErrRetrieval))
}

func TestWithTopK_IgnoresNonPositive(t *testing.T) {
	assert.Equal(t, DefaultTopK, New(nil, nil, WithTopK(0)).TopK())
	assert.Equal(t, 3, New(nil, nil, WithTopK(3)).TopK())
}

func TestFormatPassage_Rounding(t *testing.T) {
	assert.Equal(t, "[Source: A | Topic: B | Relevance: 1.00]\ntext", FormatPassage(rag.Passage{Text: "text", Score: 0.999, DocumentTitle: "A", TopicName: "B"}))
}
