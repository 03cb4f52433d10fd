// Package dungeon provides procedural room-and-corridor level generation.
package dungeon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
)

const (
	// Default dungeon dimensions
	DefaultWidth  = 64
	DefaultHeight = 40
)

var (
	// ErrInvalidConfig is returned when a generator configuration cannot produce any room.
	ErrInvalidConfig = errors.New("invalid dungeon config")
	// ErrTooFewRooms is returned by GenerateAtLeast when no seed reached the room minimum.
	ErrTooFewRooms = errors.New("dungeon has too few rooms")
)

// Config controls room placement and corridor carving.
type Config struct {
	Width, Height int
	TargetRooms   int // soft target; fewer rooms are produced when placement runs out of attempts
	MinRoomSize   int
	MaxRoomSize   int
	RoomPadding   int // minimum wall gap between rooms
	BorderPadding int // minimum gap between rooms and the outer wall
	MaxAttempts   int // room placement attempts before giving up on the target
	LoopChance    float64
	DoorChance    float64
	WideCorridors bool
}

// DefaultConfig returns the standard generator configuration.
func DefaultConfig() Config {
	return Config{
		Width:         DefaultWidth,
		Height:        DefaultHeight,
		TargetRooms:   8,
		MinRoomSize:   4,
		MaxRoomSize:   10,
		RoomPadding:   2,
		BorderPadding: 1,
		MaxAttempts:   200,
		LoopChance:    0.3,
		DoorChance:    0.5,
	}
}

// Validate reports configuration values that make generation impossible.
func (c Config) Validate() error {
	switch {
	case c.Width < 3 || c.Height < 3:
		return fmt.Errorf("%w: dimensions %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.MinRoomSize < 1 || c.MaxRoomSize < c.MinRoomSize:
		return fmt.Errorf("%w: room size range %d..%d", ErrInvalidConfig, c.MinRoomSize, c.MaxRoomSize)
	case c.RoomPadding < 0 || c.BorderPadding < 0:
		return fmt.Errorf("%w: negative padding", ErrInvalidConfig)
	case c.Width-2-2*c.BorderPadding < c.MinRoomSize || c.Height-2-2*c.BorderPadding < c.MinRoomSize:
		return fmt.Errorf("%w: %dx%d cannot fit a %d-tile room", ErrInvalidConfig, c.Width, c.Height, c.MinRoomSize)
	case c.TargetRooms < 1 || c.MaxAttempts < 1:
		return fmt.Errorf("%w: need a positive room target and attempt budget", ErrInvalidConfig)
	}
	return nil
}

// Generator builds dungeons from a seeded random source.
type Generator struct {
	cfg Config
	rng *rand.Rand
	log logr.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the generator's logger.
func WithLogger(l logr.Logger) Option {
	return func(g *Generator) { g.log = l }
}

// NewGenerator creates a generator. A nil rng is seeded from the clock.
func NewGenerator(cfg Config, rng *rand.Rand, opts ...Option) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	g := &Generator{cfg: cfg, rng: rng, log: logr.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// build holds the state of one generation run.
type build struct {
	cfg       Config
	rng       *rand.Rand
	grid      *grid.Grid
	rooms     []Room
	corridors []Corridor
	// corridorAt maps a tile index to the first corridor that recorded it.
	corridorAt map[int]int
}

// Generate creates a dungeon layout: place rooms, join them with a minimum
// spanning tree of corridors, add optional loops, then doors.
func (g *Generator) Generate(ctx context.Context) (*Dungeon, error) {
	tracer := telemetry.Tracer("dungeon")
	_, span := tracer.Start(ctx, "dungeon.generate")
	defer span.End()

	if err := g.cfg.Validate(); err != nil {
		span.RecordError(err)
		return nil, err
	}
	startTime := time.Now()

	tiles, err := grid.NewFilled(g.cfg.Width, g.cfg.Height, grid.TileWall)
	if err != nil {
		return nil, err
	}
	b := &build{
		cfg:        g.cfg,
		rng:        g.rng,
		grid:       tiles,
		corridorAt: make(map[int]int),
	}

	attempts := b.placeRooms()
	for _, e := range b.spanningTree() {
		b.connect(e[0], e[1])
	}
	loops := 0
	if len(b.rooms) > 2 && b.rng.Float64() < b.cfg.LoopChance {
		loops = b.addLoops(1 + b.rng.Intn(2))
	}
	doors := b.placeDoors()
	b.reclassify()

	span.SetAttributes(
		attribute.Int("dungeon.width", g.cfg.Width),
		attribute.Int("dungeon.height", g.cfg.Height),
		attribute.Int("dungeon.room_count", len(b.rooms)),
		attribute.Int("dungeon.room_target", g.cfg.TargetRooms),
		attribute.Int("dungeon.placement_attempts", attempts),
		attribute.Int("dungeon.corridor_count", len(b.corridors)),
		attribute.Int("dungeon.loop_count", loops),
		attribute.Int("dungeon.door_count", doors),
		attribute.Int64("dungeon.generation_ms", time.Since(startTime).Milliseconds()),
	)
	if len(b.rooms) < g.cfg.TargetRooms {
		g.log.V(1).Info("room target not reached", "rooms", len(b.rooms), "target", g.cfg.TargetRooms, "attempts", attempts)
	}
	g.log.V(0).Info("dungeon generated", "rooms", len(b.rooms), "corridors", len(b.corridors), "doors", doors)

	return &Dungeon{Grid: b.grid, Rooms: b.rooms, Corridors: b.corridors}, nil
}

// GenerateAtLeast generates dungeons from consecutive seeds starting at
// seed until one has at least minRooms rooms or maxTries runs have been made.
// It returns the dungeon and the seed that produced it.
func GenerateAtLeast(ctx context.Context, cfg Config, seed int64, minRooms int, maxTries uint, opts ...Option) (*Dungeon, int64, error) {
	if maxTries == 0 {
		maxTries = 1
	}
	next := seed
	used := seed
	op := func() (*Dungeon, error) {
		used = next
		next++
		d, err := NewGenerator(cfg, rand.New(rand.NewSource(used)), opts...).Generate(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if len(d.Rooms) < minRooms {
			return nil, fmt.Errorf("%w: seed %d produced %d of %d", ErrTooFewRooms, used, len(d.Rooms), minRooms)
		}
		return d, nil
	}
	d, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(maxTries),
	)
	if err != nil {
		return nil, used, err
	}
	return d, used, nil
}

// placeRooms samples rooms until the target count or the attempt budget is
// reached and returns the number of attempts used.
func (b *build) placeRooms() int {
	c := b.cfg
	attempts := 0
	for attempts < c.MaxAttempts && len(b.rooms) < c.TargetRooms {
		attempts++
		w := c.MinRoomSize + b.rng.Intn(c.MaxRoomSize-c.MinRoomSize+1)
		h := c.MinRoomSize + b.rng.Intn(c.MaxRoomSize-c.MinRoomSize+1)
		spanX := c.Width - 2 - 2*c.BorderPadding - w
		spanY := c.Height - 2 - 2*c.BorderPadding - h
		if spanX < 0 || spanY < 0 {
			continue
		}
		candidate := grid.Rect{
			X:      1 + c.BorderPadding + b.rng.Intn(spanX+1),
			Y:      1 + c.BorderPadding + b.rng.Intn(spanY+1),
			Width:  w,
			Height: h,
		}
		if b.overlaps(candidate) {
			continue
		}
		room := Room{ID: len(b.rooms), Rect: candidate}
		b.rooms = append(b.rooms, room)
		b.carveRoom(candidate)
	}
	return attempts
}

func (b *build) overlaps(r grid.Rect) bool {
	padded := r.Expand(b.cfg.RoomPadding)
	for _, other := range b.rooms {
		if padded.Intersects(other.Rect) {
			return true
		}
	}
	return false
}

// carveRoom sets all tiles within the room to floor.
func (b *build) carveRoom(r grid.Rect) {
	for y := r.Y; y < r.Y+r.Height; y++ {
		for x := r.X; x < r.X+r.Width; x++ {
			b.grid.Set(grid.Pt(x, y), grid.TileFloor)
		}
	}
}

// spanningTree grows a minimum spanning tree over room centers by
// repeatedly attaching the unconnected room nearest to the connected set.
func (b *build) spanningTree() [][2]int {
	if len(b.rooms) < 2 {
		return nil
	}
	connected := make([]bool, len(b.rooms))
	connected[0] = true
	edges := make([][2]int, 0, len(b.rooms)-1)
	for len(edges) < len(b.rooms)-1 {
		bestFrom, bestTo, bestDist := -1, -1, 0
		for i := range b.rooms {
			if !connected[i] {
				continue
			}
			for j := range b.rooms {
				if connected[j] {
					continue
				}
				d := b.rooms[i].Center().Manhattan(b.rooms[j].Center())
				if bestTo < 0 || d < bestDist {
					bestFrom, bestTo, bestDist = i, j, d
				}
			}
		}
		connected[bestTo] = true
		edges = append(edges, [2]int{bestFrom, bestTo})
		b.link(bestFrom, bestTo)
	}
	return edges
}

// addLoops links up to n nearest room pairs that are not yet directly
// connected and returns how many were added. Links only add to the tree.
func (b *build) addLoops(n int) int {
	added := 0
	for ; added < n; added++ {
		bestA, bestB, bestDist := -1, -1, 0
		for i := range b.rooms {
			for j := i + 1; j < len(b.rooms); j++ {
				if b.rooms[i].ConnectedTo(j) {
					continue
				}
				d := b.rooms[i].Center().Manhattan(b.rooms[j].Center())
				if bestA < 0 || d < bestDist {
					bestA, bestB, bestDist = i, j, d
				}
			}
		}
		if bestA < 0 {
			break
		}
		b.link(bestA, bestB)
		b.connect(bestA, bestB)
	}
	return added
}

func (b *build) link(a, c int) {
	b.rooms[a].Connections = append(b.rooms[a].Connections, c)
	b.rooms[c].Connections = append(b.rooms[c].Connections, a)
}

// connect carves an L-shaped corridor between the centers of two rooms.
func (b *build) connect(a, c int) {
	from, to := b.rooms[a], b.rooms[c]
	p1, p2 := from.Center(), to.Center()

	var route []grid.Point
	// Randomly choose to go horizontal-then-vertical or vertical-then-horizontal
	if b.rng.Intn(2) == 0 {
		route = appendRun(route, p1, grid.Pt(p2.X, p1.Y))
		route = appendRun(route, grid.Pt(p2.X, p1.Y), p2)
	} else {
		route = appendRun(route, p1, grid.Pt(p1.X, p2.Y))
		route = appendRun(route, grid.Pt(p1.X, p2.Y), p2)
	}

	corridor := Corridor{From: a, To: c}
	id := len(b.corridors)
	for _, p := range route {
		b.carve(p)
		if from.Contains(p) || to.Contains(p) {
			continue
		}
		corridor.Tiles = b.record(corridor.Tiles, p, id)
	}
	if b.cfg.WideCorridors {
		for _, p := range append([]grid.Point(nil), corridor.Tiles...) {
			for _, d := range grid.CardinalOffsets() {
				n := p.Add(d)
				if b.carve(n) {
					corridor.Tiles = b.record(corridor.Tiles, n, id)
				}
			}
		}
	}
	b.corridors = append(b.corridors, corridor)
}

// appendRun appends the straight run from a to b, skipping a when it
// duplicates the last appended tile.
func appendRun(route []grid.Point, a, b grid.Point) []grid.Point {
	dx, dy := sign(b.X-a.X), sign(b.Y-a.Y)
	p := a
	for {
		if len(route) == 0 || route[len(route)-1] != p {
			route = append(route, p)
		}
		if p == b {
			return route
		}
		p = grid.Pt(p.X+dx, p.Y+dy)
	}
}

// carve converts a wall tile inside the border to floor. Existing floor and
// doors are never changed. It reports whether the tile was converted.
func (b *build) carve(p grid.Point) bool {
	if p.X <= 0 || p.Y <= 0 || p.X >= b.cfg.Width-1 || p.Y >= b.cfg.Height-1 {
		return false
	}
	if b.grid.At(p) != grid.TileWall {
		return false
	}
	b.grid.Set(p, grid.TileFloor)
	return true
}

func (b *build) record(tiles []grid.Point, p grid.Point, corridor int) []grid.Point {
	idx := b.grid.Index(p)
	if _, ok := b.corridorAt[idx]; !ok {
		b.corridorAt[idx] = corridor
	}
	for _, t := range tiles {
		if t == p {
			return tiles
		}
	}
	return append(tiles, p)
}

// placeDoors finds corridor tiles touching each room's boundary and turns
// each into a door with the configured probability. Returns the door count.
func (b *build) placeDoors() int {
	doors := 0
	for i := range b.rooms {
		for _, p := range entryRing(b.rooms[i].Rect) {
			if b.insideAnyRoom(p) {
				continue
			}
			ci, ok := b.corridorAt[b.grid.Index(p)]
			if !ok {
				continue
			}
			switch b.grid.At(p) {
			case grid.TileDoor:
				b.rooms[i].Doors = append(b.rooms[i].Doors, p)
			case grid.TileFloor:
				if b.rng.Float64() >= b.cfg.DoorChance {
					continue
				}
				b.grid.Set(p, grid.TileDoor)
				b.rooms[i].Doors = append(b.rooms[i].Doors, p)
				b.corridors[ci].Doors = append(b.corridors[ci].Doors, p)
				doors++
			}
		}
	}
	return doors
}

// entryRing lists the tiles 4-adjacent to the outside of r, corners excluded.
func entryRing(r grid.Rect) []grid.Point {
	out := make([]grid.Point, 0, 2*(r.Width+r.Height))
	for x := r.X; x < r.X+r.Width; x++ {
		out = append(out, grid.Pt(x, r.Y-1), grid.Pt(x, r.Y+r.Height))
	}
	for y := r.Y; y < r.Y+r.Height; y++ {
		out = append(out, grid.Pt(r.X-1, y), grid.Pt(r.X+r.Width, y))
	}
	return out
}

func (b *build) insideAnyRoom(p grid.Point) bool {
	for _, r := range b.rooms {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

// reclassify marks room interiors as room floor and recorded corridor
// tiles as corridor floor. Doors are left unchanged.
func (b *build) reclassify() {
	for _, r := range b.rooms {
		for y := r.Y; y < r.Y+r.Height; y++ {
			for x := r.X; x < r.X+r.Width; x++ {
				if p := grid.Pt(x, y); b.grid.At(p) == grid.TileFloor {
					b.grid.Set(p, grid.TileRoomFloor)
				}
			}
		}
	}
	for _, c := range b.corridors {
		for _, p := range c.Tiles {
			if b.grid.At(p) == grid.TileFloor {
				b.grid.Set(p, grid.TileCorridorFloor)
			}
		}
	}
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}
