package rag

import "context"

// Embedder turns text into vectors. Implementations must return one vector
// per input text, all of the same dimension.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore runs a top-k similarity search. Results are ordered by
// descending Score and hold at most k passages.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, k int) ([]Passage, error)
}

// InferenceProvider completes a conversation made of one system instruction
// and one or more user turns.
type InferenceProvider interface {
	Complete(ctx context.Context, system string, userTurns []string) (string, error)

	// CompleteJSON asks for a JSON object conforming to schema, a JSON Schema
	// document. Validation of the returned text is left to the caller.
	CompleteJSON(ctx context.Context, system string, userTurns []string, schema map[string]any) (string, error)
}

// SchemaManager prepares a store for vectors of the given dimension,
// replacing any existing vector index.
type SchemaManager interface {
	Setup(ctx context.Context, dim int) error
}

// Resetter deletes everything a store holds, vector index included. Setup
// must run again before the store is used.
type Resetter interface {
	Reset(ctx context.Context) error
}

// ChunkWriter persists embedded chunks together with their document and topic.
type ChunkWriter interface {
	AddChunks(ctx context.Context, chunks []ChunkRecord) error
}
