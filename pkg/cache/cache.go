package cache

import (
	"container/list"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/harun/guardian/internal/observability"
)

// Category is a named cache partition with its own base TTL policy.
type Category string

const (
	// CategoryCore holds rarely-changing records (profile, tech stack).
	CategoryCore Category = "core"
	// CategoryIndexed holds occasionally-changing records (structure, modules).
	CategoryIndexed Category = "indexed"
	// CategoryHistory holds real-time records that are never cached.
	CategoryHistory Category = "history"
)

const (
	// maxChangeHistory bounds the per-key change timestamps used for
	// adaptive TTL.
	maxChangeHistory = 10
	// minAdaptiveTTL is the floor for a computed adaptive TTL.
	minAdaptiveTTL = 60 * time.Second
)

// DefaultBaseTTL returns the default per-category base TTLs. A zero TTL
// means the category is never cached.
func DefaultBaseTTL() map[Category]time.Duration {
	return map[Category]time.Duration{
		CategoryCore:    time.Hour,
		CategoryIndexed: 30 * time.Minute,
		CategoryHistory: 0,
	}
}

// Config holds cache construction parameters.
type Config struct {
	// KBPath is the root of the knowledge base, used by Warm.
	KBPath string
	// MaxSize bounds the number of cached entries.
	MaxSize int
	// BaseTTL overrides per-category base TTLs; nil uses DefaultBaseTTL.
	BaseTTL map[Category]time.Duration
}

type entry struct {
	path        string
	data        any
	insertedAt  time.Time
	fingerprint string
	accessCount int
}

// Stats is a snapshot of the cache counters. Counters are process-lifetime
// and only reset by restart.
type Stats struct {
	Size          int     `json:"size"`
	MaxSize       int     `json:"max_size"`
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	HitRate       float64 `json:"hit_rate"`
	Invalidations int     `json:"invalidations"`
	Evictions     int     `json:"evictions"`
	TotalRequests int     `json:"total_requests"`
}

// Cache is an in-memory, LRU-bounded, content-validated record cache.
//
// Entries are validated on every Get in a fixed order: file existence,
// content fingerprint, adaptive TTL. The first failing check evicts the
// entry and reports a miss.
//
// The cache performs no internal locking. It is built for a single
// cooperative goroutine; cross-process consistency is entirely the job of
// the on-disk lock in pkg/store. Do not share an instance across goroutines
// without external synchronization.
type Cache struct {
	kbPath  string
	maxSize int

	items *list.List // front = most recently used
	index map[string]*list.Element

	changeHistory map[string][]time.Time
	baseTTL       map[Category]time.Duration

	hits          int
	misses        int
	invalidations int
	evictions     int

	logger zerolog.Logger
	now    func() time.Time
}

// New creates a cache. It is constructed explicitly and passed by reference
// to whichever loader needs it; there is no process-wide singleton.
func New(cfg Config, logger zerolog.Logger) *Cache {
	observability.EnsureRegistered()

	if cfg.MaxSize <= 0 {
		cfg.MaxSize = 100
	}
	ttl := cfg.BaseTTL
	if ttl == nil {
		ttl = DefaultBaseTTL()
	}

	return &Cache{
		kbPath:        cfg.KBPath,
		maxSize:       cfg.MaxSize,
		items:         list.New(),
		index:         make(map[string]*list.Element),
		changeHistory: make(map[string][]time.Time),
		baseTTL:       ttl,
		logger:        logger.With().Str("component", "cache").Logger(),
		now:           time.Now,
	}
}

// Get returns the cached document for path, validating the entry against
// the file on disk. A failed check evicts the entry, counts as both an
// invalidation and a miss, and records a change timestamp when the failure
// was a content mismatch.
func (c *Cache) Get(path string, category Category) (any, bool) {
	elem, ok := c.index[path]
	if !ok {
		c.misses++
		observability.RecordCacheMiss()
		return nil, false
	}
	e := elem.Value.(*entry)

	if _, err := os.Stat(path); err != nil {
		c.remove(elem)
		c.invalidations++
		c.misses++
		observability.RecordCacheInvalidation()
		observability.RecordCacheMiss()
		return nil, false
	}

	if fp := Fingerprint(path); fp != e.fingerprint {
		c.remove(elem)
		c.invalidations++
		c.misses++
		c.recordChange(path)
		observability.RecordCacheInvalidation()
		observability.RecordCacheMiss()
		return nil, false
	}

	if ttl := c.adaptiveTTL(path, category); ttl > 0 && c.now().Sub(e.insertedAt) > ttl {
		c.remove(elem)
		c.invalidations++
		c.misses++
		observability.RecordCacheInvalidation()
		observability.RecordCacheMiss()
		return nil, false
	}

	c.items.MoveToFront(elem)
	e.accessCount++
	c.hits++
	observability.RecordCacheHit()
	return e.data, true
}

// Set stores a document for path, fingerprinting the file's current bytes.
// When the cache is full the least-recently-used entry is evicted first.
func (c *Cache) Set(path string, data any, category Category) {
	if elem, ok := c.index[path]; ok {
		e := elem.Value.(*entry)
		e.data = data
		e.insertedAt = c.now()
		e.fingerprint = Fingerprint(path)
		e.accessCount = 1
		c.items.MoveToFront(elem)
		return
	}

	if c.items.Len() >= c.maxSize {
		if back := c.items.Back(); back != nil {
			c.remove(back)
			c.evictions++
			observability.RecordCacheEviction()
		}
	}

	elem := c.items.PushFront(&entry{
		path:        path,
		data:        data,
		insertedAt:  c.now(),
		fingerprint: Fingerprint(path),
		accessCount: 1,
	})
	c.index[path] = elem
	observability.SetCacheSize(c.items.Len())
}

// Invalidate removes entries by pattern: "*" clears everything, any other
// pattern removes every key containing it as a substring. Returns the
// number of entries removed.
func (c *Cache) Invalidate(pattern string) int {
	if pattern == "*" {
		count := c.items.Len()
		c.items.Init()
		c.index = make(map[string]*list.Element)
		c.invalidations += count
		for i := 0; i < count; i++ {
			observability.RecordCacheInvalidation()
		}
		observability.SetCacheSize(0)
		return count
	}

	removed := 0
	for path, elem := range c.index {
		if strings.Contains(path, pattern) {
			c.remove(elem)
			c.invalidations++
			removed++
			observability.RecordCacheInvalidation()
		}
	}
	return removed
}

// Len returns the current number of cached entries.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total) * 100
	}
	return Stats{
		Size:          c.items.Len(),
		MaxSize:       c.maxSize,
		Hits:          c.hits,
		Misses:        c.misses,
		HitRate:       rate,
		Invalidations: c.invalidations,
		Evictions:     c.evictions,
		TotalRequests: total,
	}
}

func (c *Cache) remove(elem *list.Element) {
	e := elem.Value.(*entry)
	c.items.Remove(elem)
	delete(c.index, e.path)
	observability.SetCacheSize(c.items.Len())
}

// recordChange appends an observed content change for adaptive TTL, keeping
// only the last maxChangeHistory timestamps.
func (c *Cache) recordChange(path string) {
	history := append(c.changeHistory[path], c.now())
	if len(history) > maxChangeHistory {
		history = history[len(history)-maxChangeHistory:]
	}
	c.changeHistory[path] = history
}

// adaptiveTTL derives the effective TTL for a key from its observed change
// frequency: half the mean interval between recorded changes, capped at the
// category base TTL and floored at minAdaptiveTTL. With fewer than two
// recorded changes the base TTL is used unchanged. A zero base means the
// category is never cached.
func (c *Cache) adaptiveTTL(path string, category Category) time.Duration {
	base := c.baseTTL[category]
	if base == 0 {
		return 0
	}

	changes := c.changeHistory[path]
	if len(changes) < 2 {
		return base
	}

	var total time.Duration
	for i := 1; i < len(changes); i++ {
		total += changes[i].Sub(changes[i-1])
	}
	mean := total / time.Duration(len(changes)-1)

	adaptive := mean / 2
	if adaptive > base {
		adaptive = base
	}
	if adaptive < minAdaptiveTTL {
		adaptive = minAdaptiveTTL
	}
	return adaptive
}

// Fingerprint returns a short non-cryptographic digest of the file's bytes,
// used purely for change detection. Returns "" when the file cannot be read.
func Fingerprint(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}
