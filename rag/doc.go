// Package rag holds the domain types shared by the Sentinel pipeline: modes
// and intents, the per-invocation PipelineState with its write-once merge
// schema, the collaborator interfaces for embedding, vector search and
// inference, and the typed Error used at every stage boundary.
//
// Stages live in subpackages: router, retriever and generator, with provider
// adapters in embedding and inference, store backends in store and document
// ingestion in ingest. The agent package wires them into a graph.
package rag
