// Package store provides rag.VectorStore backends.
//
// FalkorDBStore speaks GRAPH.QUERY over a go-redis connection and keeps each
// Chunk linked to its Document and Topic nodes. PGVectorStore does the same
// with Postgres tables and a pgvector column. InMemoryVectorStore is for tests
// and small local corpora.
//
// All backends report Passage.Score as 1 - cosine distance, clamped to [0,1].
package store
