// Package cache defines the similarity cache contract, its key scheme and
// expiry policy.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/helixml/cinerag/domain/search"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Expiry policy per namespace.
const (
	SearchTTL          = 3600 * time.Second
	RecommendationsTTL = 600 * time.Second
	PopularTTL         = 86400 * time.Second
)

// Namespaces used as the first key segment.
const (
	NamespaceSearch          = "search"
	NamespaceRecommendations = "recommendations"
	NamespacePopular         = "popular"
)

// Store is a TTL-aware key-value store. Expiry is enforced by the store:
// Get never returns an entry past its TTL.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Keys lists keys matching a glob pattern where * matches any run of characters.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// LoadFunc computes a result on a cache miss. The boolean reports whether
// the result may be stored under the requested key.
type LoadFunc func(ctx context.Context) ([]search.Candidate, bool, error)

// Results caches ranked candidate lists on top of a Store.
type Results interface {
	// Fetch returns the cached list for key, or runs load and stores its
	// result for ttl when load reports it cacheable.
	Fetch(ctx context.Context, key string, ttl time.Duration, load LoadFunc) ([]search.Candidate, error)

	// Invalidate deletes every key matching pattern and returns how many were removed.
	Invalidate(ctx context.Context, pattern string) (int, error)
}

// SearchKey is the key of a free-text search result.
func SearchKey(query string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", NamespaceSearch, strings.ToLower(query), limit)
}

// RecommendationsKey is the key of a personalized recommendation list.
func RecommendationsKey(userID string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", NamespaceRecommendations, userID, limit)
}

// HybridKey is the key of a hybrid recommendation list. It lives in the
// user's recommendations namespace so profile invalidation covers it.
func HybridKey(userID string, limit int) string {
	return fmt.Sprintf("%s:%s:hybrid:%d", NamespaceRecommendations, userID, limit)
}

// PopularKey is the key of the popularity listing.
func PopularKey(limit int) string {
	return fmt.Sprintf("%s:%d", NamespacePopular, limit)
}

// UserPattern matches every recommendation key of a user.
func UserPattern(userID string) string {
	return fmt.Sprintf("%s:%s:*", NamespaceRecommendations, userID)
}

// NamespacePattern matches every key in a namespace.
func NamespacePattern(namespace string) string {
	return namespace + ":*"
}

// Namespace returns the namespace segment of a key.
func Namespace(key string) string {
	ns, _, _ := strings.Cut(key, ":")
	return ns
}

// Invalidate deletes every key matching pattern and returns how many were removed.
func Invalidate(ctx context.Context, store Store, pattern string) (int, error) {
	keys, err := store.Keys(ctx, pattern)
	if err != nil {
		return 0, fmt.Errorf("list keys %q: %w", pattern, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete keys %q: %w", pattern, err)
	}
	return len(keys), nil
}

// Match reports whether key matches a glob pattern with Redis semantics for
// * (any run, including separators) and ? (one character). A backslash
// escapes the next character.
func Match(pattern, key string) bool {
	p, k := 0, 0
	starP, starK := -1, 0
	for k < len(key) {
		switch {
		case p < len(pattern) && pattern[p] == '*':
			starP, starK = p, k
			p++
		case p < len(pattern) && pattern[p] == '\\' && p+1 < len(pattern) && pattern[p+1] == key[k]:
			p += 2
			k++
		case p < len(pattern) && (pattern[p] == '?' || (pattern[p] != '\\' && pattern[p] == key[k])):
			p++
			k++
		case starP >= 0:
			starK++
			p, k = starP+1, starK
		default:
			return false
		}
	}
	for p < len(pattern) && pattern[p] == '*' {
		p++
	}
	return p == len(pattern)
}
