// Package pathfind provides cached A* search over a metadata-aware tile grid.
package pathfind

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
)

const (
	DefaultMaxIterations = 4000
	DefaultCacheTTL      = 5 * time.Second
	DefaultCacheSize     = 256

	// evictFraction of the cache is dropped, oldest first, when it is full.
	evictFraction = 0.3
)

// Navigator is the grid view searched by the pathfinder.
type Navigator interface {
	grid.Navigable
	MoveCost(p grid.Point) float64
}

// Config controls search and caching behavior.
type Config struct {
	Diagonal      bool          // 8-directional expansion when true
	MaxIterations int           // node expansions before a search gives up
	CacheTTL      time.Duration // age after which a cached path is recomputed
	CacheSize     int           // cached paths before eviction
	Smooth        bool          // collapse waypoints with mutual line of sight
	NearestHops   int           // BFS radius for rescuing unwalkable endpoints
}

// DefaultConfig returns the standard pathfinder configuration.
func DefaultConfig() Config {
	return Config{
		Diagonal:      true,
		MaxIterations: DefaultMaxIterations,
		CacheTTL:      DefaultCacheTTL,
		CacheSize:     DefaultCacheSize,
		NearestHops:   grid.DefaultNearestHops,
	}
}

type cacheKey struct {
	start, goal int
	class       grid.ActorClass
}

type cacheEntry struct {
	path    []grid.Point
	tiles   map[int]struct{} // every tile of the unsmoothed route
	created time.Time
}

// Pathfinder finds and caches tile paths. It is not safe for concurrent use.
type Pathfinder struct {
	nav   Navigator
	cfg   Config
	cache map[cacheKey]*cacheEntry
	now   func() time.Time
	log   logr.Logger

	hits     metric.Int64Counter
	misses   metric.Int64Counter
	failures metric.Int64Counter

	search searchState
}

// Option configures a Pathfinder.
type Option func(*Pathfinder)

// WithLogger sets the pathfinder's logger.
func WithLogger(l logr.Logger) Option {
	return func(p *Pathfinder) { p.log = l }
}

// WithClock replaces time.Now for cache age checks.
func WithClock(now func() time.Time) Option {
	return func(p *Pathfinder) { p.now = now }
}

// New creates a pathfinder over nav.
func New(nav Navigator, cfg Config, opts ...Option) *Pathfinder {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.NearestHops <= 0 {
		cfg.NearestHops = grid.DefaultNearestHops
	}
	p := &Pathfinder{
		nav:   nav,
		cfg:   cfg,
		cache: make(map[cacheKey]*cacheEntry),
		now:   time.Now,
		log:   logr.Discard(),
	}
	for _, opt := range opts {
		opt(p)
	}

	meter := telemetry.Meter("pathfind")
	p.hits = counter(meter, "pathfind.cache.hits", p.log)
	p.misses = counter(meter, "pathfind.cache.misses", p.log)
	p.failures = counter(meter, "pathfind.search.failures", p.log)
	return p
}

func counter(meter metric.Meter, name string, log logr.Logger) metric.Int64Counter {
	c, err := meter.Int64Counter(name)
	if err != nil {
		log.Error(err, "creating counter", "name", name)
		return metricnoop.Int64Counter{}
	}
	return c
}

// Config returns the active configuration.
func (p *Pathfinder) Config() Config { return p.cfg }

// FindPath returns the tile path from start to goal, both inclusive, for the
// actor class. Unwalkable endpoints are replaced by the nearest walkable tile.
// It reports false when no path exists or the search budget runs out.
func (p *Pathfinder) FindPath(start, goal grid.Point, class grid.ActorClass) ([]grid.Point, bool) {
	if !p.nav.InBounds(start) || !p.nav.InBounds(goal) {
		return nil, false
	}
	key := cacheKey{start: p.index(start), goal: p.index(goal), class: class}
	ctx := context.Background()

	if e, ok := p.cache[key]; ok {
		if p.now().Sub(e.created) < p.cfg.CacheTTL {
			p.hits.Add(ctx, 1)
			return clonePath(e.path), true
		}
		delete(p.cache, key)
	}
	p.misses.Add(ctx, 1)

	from, ok := grid.FindNearestWalkable(p.nav, start, class, p.cfg.NearestHops)
	if !ok {
		p.fail(ctx, "no walkable start", start, goal)
		return nil, false
	}
	to, ok := grid.FindNearestWalkable(p.nav, goal, class, p.cfg.NearestHops)
	if !ok {
		p.fail(ctx, "no walkable goal", start, goal)
		return nil, false
	}

	route, ok := p.astar(from, to, class)
	if !ok {
		p.fail(ctx, "search exhausted", start, goal)
		return nil, false
	}

	entry := &cacheEntry{
		path:    route,
		tiles:   make(map[int]struct{}, len(route)),
		created: p.now(),
	}
	for _, pt := range route {
		entry.tiles[p.index(pt)] = struct{}{}
	}
	if p.cfg.Smooth {
		entry.path = p.smooth(route, class)
	}
	p.insert(key, entry)
	return clonePath(entry.path), true
}

func (p *Pathfinder) fail(ctx context.Context, reason string, start, goal grid.Point) {
	p.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
	p.log.V(2).Info("no path", "reason", reason, "start", start, "goal", goal)
}

func (p *Pathfinder) insert(key cacheKey, e *cacheEntry) {
	if len(p.cache) >= p.cfg.CacheSize {
		p.evict()
	}
	p.cache[key] = e
}

// evict drops the oldest ~30% of cached paths.
func (p *Pathfinder) evict() {
	type aged struct {
		key     cacheKey
		created time.Time
	}
	entries := make([]aged, 0, len(p.cache))
	for k, e := range p.cache {
		entries = append(entries, aged{key: k, created: e.created})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].created.Equal(entries[j].created) {
			if entries[i].key.start != entries[j].key.start {
				return entries[i].key.start < entries[j].key.start
			}
			return entries[i].key.goal < entries[j].key.goal
		}
		return entries[i].created.Before(entries[j].created)
	})
	n := int(math.Ceil(float64(len(entries)) * evictFraction))
	if n < 1 {
		n = 1
	}
	for _, e := range entries[:n] {
		delete(p.cache, e.key)
	}
	p.log.V(1).Info("evicted cached paths", "evicted", n, "remaining", len(p.cache))
}

// Invalidate drops every cached path that passes through tile and returns
// how many were removed.
func (p *Pathfinder) Invalidate(tile grid.Point) int {
	if !p.nav.InBounds(tile) {
		return 0
	}
	idx := p.index(tile)
	n := 0
	for k, e := range p.cache {
		if _, ok := e.tiles[idx]; ok || k.start == idx || k.goal == idx {
			delete(p.cache, k)
			n++
		}
	}
	return n
}

// ClearCache drops every cached path.
func (p *Pathfinder) ClearCache() {
	clear(p.cache)
}

// CacheLen returns the number of cached paths.
func (p *Pathfinder) CacheLen() int {
	return len(p.cache)
}

// HasLineOfSight reports whether no sight-blocking tile lies between a and b.
func (p *Pathfinder) HasLineOfSight(a, b grid.Point) bool {
	return grid.HasLineOfSight(p.nav, a, b)
}

func (p *Pathfinder) index(pt grid.Point) int {
	return pt.Y*p.nav.Width() + pt.X
}

func clonePath(path []grid.Point) []grid.Point {
	out := make([]grid.Point, len(path))
	copy(out, path)
	return out
}
