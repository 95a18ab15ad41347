package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/internal/metrics"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultOpenTimeout      = 30 * time.Second
	DefaultHalfOpenRequests = 1
)

// BreakerOption configures a circuit breaker.
type BreakerOption func(*breakerConfig)

type breakerConfig struct {
	failureThreshold uint32
	openTimeout      time.Duration
	halfOpenRequests uint32
	metrics          *metrics.Metrics
	logger           *slog.Logger
}

// WithFailureThreshold sets how many consecutive upstream failures open the circuit.
func WithFailureThreshold(n uint32) BreakerOption {
	return func(c *breakerConfig) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithOpenTimeout sets how long the circuit stays open before probing again.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(c *breakerConfig) {
		if d > 0 {
			c.openTimeout = d
		}
	}
}

// WithBreakerMetrics records state and outcomes in m.
func WithBreakerMetrics(m *metrics.Metrics) BreakerOption {
	return func(c *breakerConfig) { c.metrics = m }
}

// WithBreakerLogger sets the logger for state transitions.
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(c *breakerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newBreakerConfig(opts []BreakerOption) breakerConfig {
	cfg := breakerConfig{
		failureThreshold: DefaultFailureThreshold,
		openTimeout:      DefaultOpenTimeout,
		halfOpenRequests: DefaultHalfOpenRequests,
		logger:           slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// guard wraps a gobreaker circuit breaker. Only upstream unavailability
// counts as a failure; bad requests and caller cancellation do not trip it.
type guard[T any] struct {
	name    string
	cb      *gobreaker.CircuitBreaker[T]
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func newGuard[T any](name string, cfg breakerConfig) *guard[T] {
	g := &guard[T]{name: name, metrics: cfg.metrics, logger: cfg.logger}
	threshold := cfg.failureThreshold

	g.cb = gobreaker.NewCircuitBreaker[T](gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.halfOpenRequests,
		Timeout:     cfg.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, search.ErrUpstreamUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
			if g.metrics != nil {
				g.metrics.BreakerState.WithLabelValues(name).Set(stateValue(to))
				g.metrics.BreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			}
		},
	})
	if g.metrics != nil {
		g.metrics.BreakerState.WithLabelValues(name).Set(stateValue(gobreaker.StateClosed))
	}
	return g
}

func (g *guard[T]) execute(fn func() (T, error)) (T, error) {
	result, err := g.cb.Execute(fn)
	if err == nil {
		g.record("success")
		return result, nil
	}

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		g.record("rejected")
		var zero T
		return zero, fmt.Errorf("%w: %s circuit %s", search.ErrUpstreamUnavailable, g.name, err.Error())
	}

	g.record("failure")
	return result, err
}

func (g *guard[T]) record(result string) {
	if g.metrics != nil {
		g.metrics.BreakerRequests.WithLabelValues(g.name, result).Inc()
	}
}

func (g *guard[T]) state() gobreaker.State { return g.cb.State() }

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// BreakerEmbedder guards an Embedder with a circuit breaker.
type BreakerEmbedder struct {
	inner Embedder
	guard *guard[[][]float64]
}

// NewBreakerEmbedder wraps inner.
func NewBreakerEmbedder(inner Embedder, opts ...BreakerOption) *BreakerEmbedder {
	return &BreakerEmbedder{
		inner: inner,
		guard: newGuard[[][]float64]("embedding", newBreakerConfig(opts)),
	}
}

// Embed forwards to the wrapped embedder unless the circuit is open.
func (b *BreakerEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	return b.guard.execute(func() ([][]float64, error) {
		return b.inner.Embed(ctx, texts)
	})
}

// State returns the current circuit state.
func (b *BreakerEmbedder) State() gobreaker.State { return b.guard.state() }

// BreakerGenerator guards a TextGenerator with a circuit breaker.
type BreakerGenerator struct {
	inner TextGenerator
	guard *guard[ChatCompletionResponse]
}

// NewBreakerGenerator wraps inner.
func NewBreakerGenerator(inner TextGenerator, opts ...BreakerOption) *BreakerGenerator {
	return &BreakerGenerator{
		inner: inner,
		guard: newGuard[ChatCompletionResponse]("chat", newBreakerConfig(opts)),
	}
}

// ChatCompletion forwards to the wrapped generator unless the circuit is open.
func (b *BreakerGenerator) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	return b.guard.execute(func() (ChatCompletionResponse, error) {
		return b.inner.ChatCompletion(ctx, req)
	})
}

// State returns the current circuit state.
func (b *BreakerGenerator) State() gobreaker.State { return b.guard.state() }

var (
	_ Embedder      = (*BreakerEmbedder)(nil)
	_ TextGenerator = (*BreakerGenerator)(nil)
)
