package patients

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"

	"nephro-assistant/internal/core"
	"nephro-assistant/pkg"
)

// DefaultCacheSize bounds the number of cached name lookups.
const DefaultCacheSize = 1024

// CachedLookup memoizes lookups by normalized name in front of a slower
// store such as Postgres.  Errors and empty results are never cached, so a
// patient imported while the service runs is found on the next lookup.
type CachedLookup struct {
	next  core.PatientLookup
	cache *lru.Cache[string, []pkg.PatientRecord]
}

// NewCachedLookup wraps next with an LRU cache of the given size; sizes
// <= 0 use DefaultCacheSize.
func NewCachedLookup(next core.PatientLookup, size int) (*CachedLookup, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []pkg.PatientRecord](size)
	if err != nil {
		return nil, err
	}
	return &CachedLookup{next: next, cache: cache}, nil
}

// FindByName implements core.PatientLookup.
func (c *CachedLookup) FindByName(ctx context.Context, name string) ([]pkg.PatientRecord, error) {
	key := NormalizeName(name)
	if recs, ok := c.cache.Get(key); ok {
		return recs, nil
	}
	recs, err := c.next.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		c.cache.Add(key, recs)
	}
	return recs, nil
}

// Len returns the number of cached entries.
func (c *CachedLookup) Len() int { return c.cache.Len() }
