// Package service holds domain services that coordinate embedders and stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/search"
)

// Batch defaults.
const (
	DefaultBatchSize  = 100
	MaxBatchSize      = 100
	DefaultBatchDelay = 100 * time.Millisecond
)

// EmbeddingService turns text into validated embeddings and attaches
// embeddings to catalog items.
type EmbeddingService struct {
	embedder   search.Embedder
	dimensions int
	batchSize  int
	batchDelay time.Duration
}

// EmbeddingOption configures an EmbeddingService.
type EmbeddingOption func(*EmbeddingService)

// WithDimensions sets the expected embedding length.
func WithDimensions(n int) EmbeddingOption {
	return func(s *EmbeddingService) {
		if n > 0 {
			s.dimensions = n
		}
	}
}

// WithBatchSize sets the default chunk size for batch embedding.
func WithBatchSize(n int) EmbeddingOption {
	return func(s *EmbeddingService) { s.batchSize = clampBatch(n) }
}

// WithBatchDelay sets the pause between consecutive chunks.
func WithBatchDelay(d time.Duration) EmbeddingOption {
	return func(s *EmbeddingService) {
		if d >= 0 {
			s.batchDelay = d
		}
	}
}

// NewEmbedding creates a new embedding service.
func NewEmbedding(embedder search.Embedder, opts ...EmbeddingOption) (*EmbeddingService, error) {
	if embedder == nil {
		return nil, fmt.Errorf("NewEmbedding: nil embedder")
	}
	s := &EmbeddingService{
		embedder:   embedder,
		dimensions: search.Dimensions,
		batchSize:  DefaultBatchSize,
		batchDelay: DefaultBatchDelay,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dimensions returns the expected embedding length.
func (s *EmbeddingService) Dimensions() int { return s.dimensions }

// Embed embeds a single text. Blank text is rejected before any provider call.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, search.ErrEmptyInput
	}

	vectors, err := s.embedChunk(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in sequential chunks of batchSize, pausing between
// chunks, and returns one vector per text in input order. A non-positive
// batchSize uses the configured default; sizes above 100 are capped.
// No texts means no provider call.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string, batchSize int) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	batchSize = clampBatch(batchSize)

	result := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if start > 0 {
			if err := s.pause(ctx); err != nil {
				return nil, err
			}
		}
		end := min(start+batchSize, len(texts))

		vectors, err := s.embedChunk(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		result = append(result, vectors...)
	}
	return result, nil
}

// IndexOption configures a single Index call.
type IndexOption func(*indexConfig)

type indexConfig struct {
	batchSize  int
	progress   func(done, total int)
	batchError func(start, end int, err error)
}

// WithIndexBatchSize overrides the chunk size for one Index call.
// Non-positive sizes keep the service default.
func WithIndexBatchSize(n int) IndexOption {
	return func(c *indexConfig) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithProgress registers a callback invoked after every saved chunk.
func WithProgress(fn func(done, total int)) IndexOption {
	return func(c *indexConfig) { c.progress = fn }
}

// WithBatchError registers a callback invoked for every failed chunk.
func WithBatchError(fn func(start, end int, err error)) IndexOption {
	return func(c *indexConfig) { c.batchError = fn }
}

// Index embeds the items that lack an embedding and stores the results.
// A failed chunk does not stop later chunks; all failures are returned
// together. The number of items embedded is returned either way.
func (s *EmbeddingService) Index(ctx context.Context, store catalog.Store, items []catalog.Item, opts ...IndexOption) (int, error) {
	cfg := indexConfig{batchSize: s.batchSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	size := clampBatch(cfg.batchSize)

	pending := make([]catalog.Item, 0, len(items))
	for _, it := range items {
		if !it.HasEmbedding() && strings.TrimSpace(it.EmbeddingText()) != "" {
			pending = append(pending, it)
		}
	}
	if len(pending) == 0 {
		return 0, nil
	}

	total := len(pending)
	done := 0
	chunks := 0
	var batchErrors []error

	for start := 0; start < total; start += size {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if start > 0 {
			if err := s.pause(ctx); err != nil {
				return done, err
			}
		}
		chunks++
		end := min(start+size, total)
		chunk := pending[start:end]

		if err := s.indexChunk(ctx, store, chunk); err != nil {
			batchErrors = append(batchErrors, fmt.Errorf("index batch [%d:%d]: %w", start, end, err))
			if cfg.batchError != nil {
				cfg.batchError(start, end, err)
			}
			continue
		}

		done += len(chunk)
		if cfg.progress != nil {
			cfg.progress(done, total)
		}
	}

	if len(batchErrors) > 0 {
		return done, fmt.Errorf("%d of %d embedding batches failed: %w", len(batchErrors), chunks, errors.Join(batchErrors...))
	}
	return done, nil
}

func (s *EmbeddingService) indexChunk(ctx context.Context, store catalog.Store, chunk []catalog.Item) error {
	texts := make([]string, len(chunk))
	for i, it := range chunk {
		texts[i] = it.EmbeddingText()
	}

	vectors, err := s.embedChunk(ctx, texts)
	if err != nil {
		return err
	}

	for i, it := range chunk {
		if err := store.SaveEmbedding(ctx, it.ID(), vectors[i]); err != nil {
			return fmt.Errorf("save embedding for item %d: %w", it.ID(), err)
		}
	}
	return nil
}

func (s *EmbeddingService) embedChunk(ctx context.Context, texts []string) ([][]float64, error) {
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embed: count mismatch: got %d, expected %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if err := search.Validate(v, s.dimensions); err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
	}
	return vectors, nil
}

func (s *EmbeddingService) pause(ctx context.Context) error {
	if s.batchDelay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(s.batchDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clampBatch(n int) int {
	if n <= 0 {
		return DefaultBatchSize
	}
	return min(n, MaxBatchSize)
}
