package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/helixml/cinerag/internal/config"
)

// MissingEmbedder embeds catalog items that have no embedding yet.
type MissingEmbedder interface {
	EmbedMissing(ctx context.Context, batchSize int) (IndexResult, error)
}

// PeriodicIndex embeds newly added catalog items on a timer.
type PeriodicIndex struct {
	indexer  MissingEmbedder
	logger   *slog.Logger
	interval time.Duration
	enabled  bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPeriodicIndex creates a new PeriodicIndex from config and dependencies.
func NewPeriodicIndex(cfg config.PeriodicIndexConfig, indexer MissingEmbedder, logger *slog.Logger) *PeriodicIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &PeriodicIndex{
		indexer:  indexer,
		logger:   logger,
		interval: cfg.Interval(),
		enabled:  cfg.Enabled(),
	}
}

// Start begins periodic indexing in a background goroutine.
// If disabled, this is a no-op.
func (p *PeriodicIndex) Start(ctx context.Context) {
	if !p.enabled {
		p.logger.Info("periodic indexing disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Go(func() {
		p.run(ctx)
	})

	p.logger.Info("periodic indexing started", slog.Duration("interval", p.interval))
}

// Stop cancels the background goroutine and waits for it to finish.
func (p *PeriodicIndex) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	p.logger.Info("periodic indexing stopped")
}

func (p *PeriodicIndex) run(ctx context.Context) {
	p.index(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.index(ctx)
		}
	}
}

func (p *PeriodicIndex) index(ctx context.Context) {
	result, err := p.indexer.EmbedMissing(ctx, 0)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.logger.Error("periodic indexing failed",
			slog.Int("processed", result.Processed()),
			slog.Int("failed", result.Failed()),
			slog.String("error", err.Error()),
		)
		return
	}

	p.logger.Debug("periodic indexing finished", slog.Int("processed", result.Processed()))
}
