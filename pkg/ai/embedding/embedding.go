// Package embedding turns conversation summaries into vectors for
// semantic recall. The provider behind the interface is interchangeable;
// the rest of the system only sees float32 slices.
package embedding

import (
	"context"

	"github.com/IAMSamuelRodda/zero-agent-sub003/pkg/config"
)

// Embedder represents an interface for text embedding operations
type Embedder interface {
	// EmbedDocuments converts a slice of documents into vector embeddings
	EmbedDocuments(ctx context.Context, documents []string, opts ...Option) ([]Embedding, error)

	// EmbedQuery converts a single query text into a vector embedding
	EmbedQuery(ctx context.Context, text string, opts ...Option) (Embedding, error)
}

// Embedding represents a vector embedding result
type Embedding struct {
	// Vector is the embedding vector
	Vector []float32

	// Usage contains token usage statistics
	Usage Usage
}

// Usage represents token usage statistics for embeddings
type Usage struct {
	PromptTokens int
	TotalTokens  int
}

// Service binds an Embedder to the deployment's model and dimension
// settings and applies the configured timeout on every call. It is the
// concrete enrichment collaborator the memory tier depends on.
type Service struct {
	embedder Embedder
	cfg      config.EmbeddingConfig
}

func NewService(embedder Embedder, cfg config.EmbeddingConfig) *Service {
	return &Service{embedder: embedder, cfg: cfg}
}

// EmbedText embeds one text with the deployment's fixed model and
// dimensions. Stored vectors and query vectors must share dimensions or
// similarity scores are meaningless.
func (s *Service) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	opts := []Option{WithModel(s.cfg.Model)}
	if s.cfg.Dimensions > 0 {
		opts = append(opts, WithDimensions(s.cfg.Dimensions))
	}

	result, err := s.embedder.EmbedQuery(ctx, text, opts...)
	if err != nil {
		return nil, err
	}
	return result.Vector, nil
}

// EmbedBatch embeds several texts in one provider round trip
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	opts := []Option{WithModel(s.cfg.Model)}
	if s.cfg.Dimensions > 0 {
		opts = append(opts, WithDimensions(s.cfg.Dimensions))
	}

	results, err := s.embedder.EmbedDocuments(ctx, texts, opts...)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(results))
	for i, r := range results {
		vectors[i] = r.Vector
	}
	return vectors, nil
}
