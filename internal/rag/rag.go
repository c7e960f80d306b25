// Package rag indexes uploaded business documents and retrieves relevant
// excerpts for the advisor's prompts. Retrieval is scoped per user: an
// expert only ever sees material the same user uploaded.
package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tidewater/bmc/internal/embedding"
	"github.com/tidewater/bmc/internal/vectorstore"
)

// CollDocuments is the Qdrant collection holding uploaded document chunks.
const CollDocuments = "bmc_documents"

const (
	chunkSize    = 1200
	chunkOverlap = 150
	defaultTopK  = 4
)

// Service coordinates embedding generation and vector search for uploaded
// documents.
type Service struct {
	embedder embedding.Provider
	qdrant   *vectorstore.Client
	logger   *zap.Logger
}

// New creates a document retrieval service.
func New(embedder embedding.Provider, qdrant *vectorstore.Client, logger *zap.Logger) *Service {
	return &Service{embedder: embedder, qdrant: qdrant, logger: logger}
}

// Init ensures the documents collection exists.
func (s *Service) Init(ctx context.Context) error {
	dim := uint64(s.embedder.Dimension())
	if dim == 0 {
		dim = 1024
	}
	if err := s.qdrant.EnsureCollection(ctx, CollDocuments, dim); err != nil {
		return fmt.Errorf("init collection %s: %w", CollDocuments, err)
	}
	return nil
}

// Ingest splits a document into overlapping chunks, embeds them, and indexes
// them under the user's token. Returns the number of chunks stored.
func (s *Service) Ingest(ctx context.Context, token, filename, text string) (int, error) {
	chunks := splitChunks(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := s.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed document %s: %w", filename, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("embed document %s: got %d vectors for %d chunks", filename, len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		payload := map[string]string{
			"content":  chunk,
			"filename": filename,
			"chunk":    fmt.Sprintf("%d", i),
		}
		if err := s.qdrant.Upsert(ctx, CollDocuments, token, uuid.New().String(), vectors[i], payload); err != nil {
			return i, fmt.Errorf("index chunk %d of %s: %w", i, filename, err)
		}
	}
	s.logger.Info("document indexed",
		zap.String("token", token),
		zap.String("filename", filename),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// Context retrieves the most relevant excerpts for a query and renders them
// as a prompt fragment. An empty string means nothing relevant was found.
func (s *Service) Context(ctx context.Context, token, query string) (string, error) {
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) == 0 {
		return "", nil
	}

	hits, err := s.qdrant.Search(ctx, CollDocuments, token, vectors[0], defaultTopK)
	if err != nil {
		return "", fmt.Errorf("search documents: %w", err)
	}

	var b strings.Builder
	for i, h := range hits {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, h.Payload["filename"], h.Payload["content"])
	}
	return b.String(), nil
}

// Close tears down the vector store connection.
func (s *Service) Close() error {
	return s.qdrant.Close()
}

// Forget removes all indexed documents for a user.
func (s *Service) Forget(ctx context.Context, token string) error {
	return s.qdrant.DeleteByToken(ctx, CollDocuments, token)
}

// splitChunks cuts text into overlapping windows, preferring to break at
// paragraph or sentence boundaries near the window edge.
func splitChunks(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= chunkSize {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + chunkSize
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}
		cut := end
		if idx := strings.LastIndex(text[start:end], "\n\n"); idx > chunkSize/2 {
			cut = start + idx
		} else if idx := strings.LastIndex(text[start:end], ". "); idx > chunkSize/2 {
			cut = start + idx + 1
		}
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))
		start = cut - chunkOverlap
		if start < 0 {
			start = 0
		}
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}
