// Package ingest loads text and PDF documents, splits them into overlapping
// chunks, embeds the chunks in batches and writes them to a rag.ChunkWriter.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"

	"github.com/sentinel-zero/sentinel/log"
	"github.com/sentinel-zero/sentinel/rag"
)

const (
	DefaultChunkSize    = 1200
	DefaultChunkOverlap = 200
	DefaultBatchSize    = 15
)

// ErrNoChunks is returned when a document yields no text, typically a
// scanned PDF without a text layer.
var ErrNoChunks = errors.New("document produced no chunks")

// Source describes where a document belongs in the graph. DocID defaults to
// a stable id derived from Title.
type Source struct {
	DocID string
	Title string
	Topic rag.TopicNode
}

// Result summarises one ingestion.
type Result struct {
	DocID   string
	Pages   int
	Chunks  int
	Batches int
}

// Ingester is safe for sequential use.
type Ingester struct {
	embedder  rag.Embedder
	writer    rag.ChunkWriter
	splitter  textsplitter.TextSplitter
	batchSize int
	logger    log.Logger
}

// Option configures an Ingester.
type Option func(*Ingester)

// WithChunking replaces the default 1200/200 recursive splitter.
func WithChunking(size, overlap int) Option {
	return func(in *Ingester) {
		in.splitter = textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(size),
			textsplitter.WithChunkOverlap(overlap),
		)
	}
}

// WithBatchSize sets how many chunks are embedded and written per call.
func WithBatchSize(n int) Option {
	return func(in *Ingester) {
		if n > 0 {
			in.batchSize = n
		}
	}
}

// WithLogger sets the progress logger.
func WithLogger(l log.Logger) Option {
	return func(in *Ingester) { in.logger = l }
}

// New creates an Ingester.
func New(embedder rag.Embedder, writer rag.ChunkWriter, opts ...Option) *Ingester {
	in := &Ingester{
		embedder:  embedder,
		writer:    writer,
		batchSize: DefaultBatchSize,
		logger:    &log.NoOpLogger{},
	}
	WithChunking(DefaultChunkSize, DefaultChunkOverlap)(in)
	for _, opt := range opts {
		opt(in)
	}
	return in
}

// IngestFile loads path as PDF when it ends in .pdf and as plain text otherwise.
func (in *Ingester) IngestFile(ctx context.Context, path string, src Source) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, err
	}
	defer f.Close()

	if src.Title == "" {
		src.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	var loader documentloaders.Loader
	if strings.EqualFold(filepath.Ext(path), ".pdf") {
		info, err := f.Stat()
		if err != nil {
			return Result{}, err
		}
		loader = documentloaders.NewPDF(f, info.Size())
	} else {
		loader = documentloaders.NewText(f)
	}
	return in.ingestLoader(ctx, loader, src)
}

// IngestText ingests plain text from r.
func (in *Ingester) IngestText(ctx context.Context, r io.Reader, src Source) (Result, error) {
	return in.ingestLoader(ctx, documentloaders.NewText(r), src)
}

func (in *Ingester) ingestLoader(ctx context.Context, loader documentloaders.Loader, src Source) (Result, error) {
	docs, err := loader.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("load %q: %w", src.Title, err)
	}
	in.logger.Info("extracted %d pages from %q", len(docs), src.Title)
	return in.Ingest(ctx, docs, src)
}

// Ingest splits docs, embeds the chunks batch by batch and writes each batch.
// A failed batch aborts the run; earlier batches stay written.
func (in *Ingester) Ingest(ctx context.Context, docs []schema.Document, src Source) (Result, error) {
	if strings.TrimSpace(src.Title) == "" {
		return Result{}, errors.New("document title is required")
	}
	if src.DocID == "" {
		src.DocID = DocumentID(src.Title)
	}

	chunks, err := textsplitter.SplitDocuments(in.splitter, docs)
	if err != nil {
		return Result{}, fmt.Errorf("split %q: %w", src.Title, err)
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.PageContent); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		return Result{}, fmt.Errorf("%w: %q", ErrNoChunks, src.Title)
	}
	in.logger.Info("generated %d chunks from %q", len(texts), src.Title)

	res := Result{DocID: src.DocID, Pages: len(docs)}
	total := (len(texts) + in.batchSize - 1) / in.batchSize
	for start := 0; start < len(texts); start += in.batchSize {
		end := min(start+in.batchSize, len(texts))
		batch := texts[start:end]
		res.Batches++
		in.logger.Info("pushing batch %d of %d (%d chunks)", res.Batches, total, len(batch))

		vectors, err := in.embedder.EmbedDocuments(ctx, batch)
		if err != nil {
			return res, fmt.Errorf("embed batch %d: %w", res.Batches, err)
		}
		if len(vectors) != len(batch) {
			return res, fmt.Errorf("embed batch %d: got %d vectors for %d chunks", res.Batches, len(vectors), len(batch))
		}

		records := make([]rag.ChunkRecord, len(batch))
		for i, text := range batch {
			records[i] = rag.ChunkRecord{
				ChunkID:   ChunkID(src.DocID, start+i),
				Text:      text,
				Embedding: vectors[i],
				Document:  rag.DocumentNode{DocID: src.DocID, Title: src.Title},
				Topic:     src.Topic,
			}
		}
		if err := in.writer.AddChunks(ctx, records); err != nil {
			return res, fmt.Errorf("write batch %d: %w", res.Batches, err)
		}
		res.Chunks += len(batch)
	}

	in.logger.Info("ingestion complete: %q, %d chunks", src.Title, res.Chunks)
	return res, nil
}

// DocumentID derives a stable id from a title, so re-ingesting a document
// upserts instead of duplicating.
func DocumentID(title string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("sentinel:document:"+strings.TrimSpace(title))).String()
}

// ChunkID derives the id of the n-th chunk of a document.
func ChunkID(docID string, n int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, fmt.Appendf(nil, "sentinel:chunk:%s:%d", docID, n)).String()
}
