package cache

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/helixml/cinerag/domain/cache"
	"github.com/helixml/cinerag/domain/catalog"
	"github.com/helixml/cinerag/domain/search"
	"github.com/helixml/cinerag/internal/metrics"
	"golang.org/x/sync/singleflight"
)

var _ cache.Results = (*ResultCache)(nil)

// LoadFunc computes a result on a cache miss.
type LoadFunc = cache.LoadFunc

// ResultCache stores ranked candidate lists in a cache.Store. Store and
// codec failures degrade to a miss or a skipped write and are never
// returned to callers.
//
// A load that is still running when its key is invalidated never writes
// its result, and later callers do not join it.
type ResultCache struct {
	store    cache.Store
	metrics  *metrics.Metrics
	logger   *slog.Logger
	coalesce bool
	group    singleflight.Group

	mu      sync.Mutex
	flights map[*flight]struct{}
}

// flight is one running load. stale is set when an invalidation matched
// its key after the load began.
type flight struct {
	key   string
	stale bool
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithMetrics records hits, misses and errors in m.
func WithMetrics(m *metrics.Metrics) ResultCacheOption {
	return func(c *ResultCache) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ResultCacheOption {
	return func(c *ResultCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCoalescing toggles sharing one load between concurrent misses on the same key.
func WithCoalescing(enabled bool) ResultCacheOption {
	return func(c *ResultCache) { c.coalesce = enabled }
}

// NewResultCache creates a ResultCache over store. Coalescing is on by default.
func NewResultCache(store cache.Store, opts ...ResultCacheOption) *ResultCache {
	c := &ResultCache{
		store:    store,
		logger:   slog.Default(),
		coalesce: true,
		flights:  make(map[*flight]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Store returns the underlying store.
func (c *ResultCache) Store() cache.Store { return c.store }

// Get returns the cached candidates for key. Any failure reads as a miss.
func (c *ResultCache) Get(ctx context.Context, key string) ([]search.Candidate, bool) {
	ns := cache.Namespace(key)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			c.logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
			c.countError(ns, "get")
		}
		c.countMiss(ns)
		return nil, false
	}

	cands, err := decodeCandidates(data)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry undecodable", slog.String("key", key), slog.String("error", err.Error()))
		c.countError(ns, "decode")
		c.countMiss(ns)
		return nil, false
	}

	c.countHit(ns)
	return cands, true
}

// Set stores candidates under key. Failures are logged and counted.
func (c *ResultCache) Set(ctx context.Context, key string, cands []search.Candidate, ttl time.Duration) {
	ns := cache.Namespace(key)

	data, err := encodeCandidates(cands)
	if err != nil {
		c.logger.WarnContext(ctx, "cache entry unencodable", slog.String("key", key), slog.String("error", err.Error()))
		c.countError(ns, "encode")
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
		c.countError(ns, "set")
	}
}

// Fetch returns the cached value for key or runs load, storing its result
// when load reports it cacheable. Load errors are returned unchanged.
func (c *ResultCache) Fetch(ctx context.Context, key string, ttl time.Duration, load LoadFunc) ([]search.Candidate, error) {
	if cands, ok := c.Get(ctx, key); ok {
		return cands, nil
	}

	run := func() ([]search.Candidate, error) {
		f := c.begin(key)
		defer c.end(f)

		cands, cacheable, err := load(ctx)
		if err != nil {
			return nil, err
		}
		if cacheable && !c.isStale(f) {
			c.Set(ctx, key, cands, ttl)
			// An invalidation that ran while Set was in flight may have
			// listed keys before the write landed.
			if c.isStale(f) {
				c.drop(ctx, key)
			}
		}
		return cands, nil
	}

	if !c.coalesce {
		return run()
	}

	v, err, shared := c.group.Do(key, func() (any, error) { return run() })
	if err != nil {
		return nil, err
	}
	cands := v.([]search.Candidate)
	if shared {
		cands = slices.Clone(cands)
	}
	return cands, nil
}

// Invalidate deletes every key matching pattern. The removed count is
// recorded per namespace.
func (c *ResultCache) Invalidate(ctx context.Context, pattern string) (int, error) {
	c.markStale(pattern)

	n, err := cache.Invalidate(ctx, c.store, pattern)
	ns := cache.Namespace(pattern)
	if err != nil {
		c.countError(ns, "invalidate")
		return 0, err
	}
	if c.metrics != nil && n > 0 {
		c.metrics.CacheInvalidated.WithLabelValues(ns).Add(float64(n))
	}
	return n, nil
}

func (c *ResultCache) begin(key string) *flight {
	f := &flight{key: key}
	c.mu.Lock()
	c.flights[f] = struct{}{}
	c.mu.Unlock()
	return f
}

func (c *ResultCache) end(f *flight) {
	c.mu.Lock()
	delete(c.flights, f)
	c.mu.Unlock()
}

func (c *ResultCache) isStale(f *flight) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return f.stale
}

// markStale flags running loads whose key matches pattern and detaches
// them from the coalescing group so new callers start a fresh load.
func (c *ResultCache) markStale(pattern string) {
	var keys []string
	c.mu.Lock()
	for f := range c.flights {
		if cache.Match(pattern, f.key) {
			f.stale = true
			keys = append(keys, f.key)
		}
	}
	c.mu.Unlock()

	for _, key := range keys {
		c.group.Forget(key)
	}
}

func (c *ResultCache) drop(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.WarnContext(ctx, "cache delete failed", slog.String("key", key), slog.String("error", err.Error()))
		c.countError(cache.Namespace(key), "delete")
	}
}

func (c *ResultCache) countHit(ns string) {
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(ns).Inc()
	}
}

func (c *ResultCache) countMiss(ns string) {
	if c.metrics != nil {
		c.metrics.CacheMisses.WithLabelValues(ns).Inc()
	}
}

func (c *ResultCache) countError(ns, op string) {
	if c.metrics != nil {
		c.metrics.CacheErrors.WithLabelValues(ns, op).Inc()
	}
}

type itemDTO struct {
	ID          int64     `json:"id"`
	Kind        string    `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tagline     string    `json:"tagline,omitempty"`
	Genres      []string  `json:"genres,omitempty"`
	Keywords    []string  `json:"keywords,omitempty"`
	Cast        []string  `json:"cast,omitempty"`
	Director    string    `json:"director,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
	VoteAverage float64   `json:"vote_average"`
	VoteCount   int       `json:"vote_count"`
	Popularity  float64   `json:"popularity"`
}

type candidateDTO struct {
	Item                 itemDTO `json:"item"`
	Similarity           float64 `json:"similarity"`
	MoodScore            float64 `json:"mood_score,omitempty"`
	NormalizedPopularity float64 `json:"normalized_popularity,omitempty"`
	FusedScore           float64 `json:"fused_score,omitempty"`
}

func encodeCandidates(cands []search.Candidate) ([]byte, error) {
	dtos := make([]candidateDTO, len(cands))
	for i, c := range cands {
		it := c.Item()
		dtos[i] = candidateDTO{
			Item: itemDTO{
				ID:          it.ID(),
				Kind:        string(it.Kind()),
				Title:       it.Title(),
				Description: it.Description(),
				Tagline:     it.Tagline(),
				Genres:      it.Genres(),
				Keywords:    it.Keywords(),
				Cast:        it.Cast(),
				Director:    it.Director(),
				ReleaseDate: it.ReleaseDate(),
				VoteAverage: it.VoteAverage(),
				VoteCount:   it.VoteCount(),
				Popularity:  it.Popularity(),
			},
			Similarity:           c.Similarity(),
			MoodScore:            c.MoodScore(),
			NormalizedPopularity: c.NormalizedPopularity(),
			FusedScore:           c.FusedScore(),
		}
	}
	return json.Marshal(dtos)
}

func decodeCandidates(data []byte) ([]search.Candidate, error) {
	var dtos []candidateDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, err
	}
	cands := make([]search.Candidate, len(dtos))
	for i, d := range dtos {
		kind := catalog.Kind(d.Item.Kind)
		if kind == "" {
			kind = catalog.KindMovie
		}
		item := catalog.NewItem(d.Item.ID, d.Item.Title,
			catalog.WithKind(kind),
			catalog.WithDescription(d.Item.Description),
			catalog.WithTagline(d.Item.Tagline),
			catalog.WithGenres(d.Item.Genres...),
			catalog.WithKeywords(d.Item.Keywords...),
			catalog.WithCast(d.Item.Cast...),
			catalog.WithDirector(d.Item.Director),
			catalog.WithReleaseDate(d.Item.ReleaseDate),
			catalog.WithVotes(d.Item.VoteAverage, d.Item.VoteCount),
			catalog.WithPopularity(d.Item.Popularity),
		)
		cands[i] = search.RestoreCandidate(item, d.Similarity, d.MoodScore, d.NormalizedPopularity, d.FusedScore)
	}
	return cands, nil
}
