package grid

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInvalidDimensions is returned when a grid would be smaller than 3x3.
var ErrInvalidDimensions = errors.New("grid dimensions must be at least 3x3")

// Grid is a fixed-size, row-major array of tile types.
type Grid struct {
	width  int
	height int
	tiles  []TileType
}

// New creates a grid filled with floor and surrounded by a one-tile wall border.
func New(width, height int) (*Grid, error) {
	g, err := NewFilled(width, height, TileFloor)
	if err != nil {
		return nil, err
	}
	g.stampBorder()
	return g, nil
}

// NewFilled creates a grid with every tile set to t.
func NewFilled(width, height int, t TileType) (*Grid, error) {
	if width < 3 || height < 3 {
		return nil, fmt.Errorf("%w: got %dx%d", ErrInvalidDimensions, width, height)
	}
	tiles := make([]TileType, width*height)
	for i := range tiles {
		tiles[i] = t
	}
	return &Grid{width: width, height: height, tiles: tiles}, nil
}

// FromLayout builds the grid for an authored layout. Obstacles become
// obstacle tiles; start, exit, objectives and hazards are stamped as marker
// tiles only where the underlying tile is not already solid.
func FromLayout(l Layout) (*Grid, error) {
	g, err := New(l.Width, l.Height)
	if err != nil {
		return nil, err
	}
	for _, p := range l.Obstacles {
		if g.interior(p) {
			g.tiles[g.Index(p)] = TileObstacle
		}
	}
	for _, p := range l.Hazards() {
		g.stampMarker(p, TileHazard)
	}
	for _, o := range l.Objectives() {
		g.stampMarker(o.Pos, TileObjectiveSlot)
	}
	if l.PlayerStart != nil {
		g.stampMarker(*l.PlayerStart, TileStart)
	}
	if l.ExitZone != nil {
		g.stampMarker(*l.ExitZone, TileExit)
	}
	return g, nil
}

func (g *Grid) stampBorder() {
	for x := 0; x < g.width; x++ {
		g.tiles[x] = TileWall
		g.tiles[(g.height-1)*g.width+x] = TileWall
	}
	for y := 0; y < g.height; y++ {
		g.tiles[y*g.width] = TileWall
		g.tiles[y*g.width+g.width-1] = TileWall
	}
}

func (g *Grid) stampMarker(p Point, t TileType) {
	if !g.InBounds(p) {
		return
	}
	idx := g.Index(p)
	if g.tiles[idx].IsSolid() {
		return
	}
	g.tiles[idx] = t
}

func (g *Grid) interior(p Point) bool {
	return p.X > 0 && p.Y > 0 && p.X < g.width-1 && p.Y < g.height-1
}

// Width returns the grid width in tiles.
func (g *Grid) Width() int { return g.width }

// Height returns the grid height in tiles.
func (g *Grid) Height() int { return g.height }

// Len returns the number of tiles.
func (g *Grid) Len() int { return len(g.tiles) }

// InBounds reports whether p lies on the grid.
func (g *Grid) InBounds(p Point) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < g.width && p.Y < g.height
}

// Index converts a point to its row-major tile index. p must be in bounds.
func (g *Grid) Index(p Point) int {
	return p.Y*g.width + p.X
}

// PointAt converts a tile index back to a point.
func (g *Grid) PointAt(idx int) Point {
	return Point{X: idx % g.width, Y: idx / g.width}
}

// At returns the tile at p. Out-of-bounds positions read as wall.
func (g *Grid) At(p Point) TileType {
	if !g.InBounds(p) {
		return TileWall
	}
	return g.tiles[g.Index(p)]
}

// Set replaces the tile at p. It returns false for out-of-bounds positions.
func (g *Grid) Set(p Point, t TileType) bool {
	if !g.InBounds(p) {
		return false
	}
	g.tiles[g.Index(p)] = t
	return true
}

// IsWalkable applies the built-in walkability rules for the actor class.
func (g *Grid) IsWalkable(p Point, class ActorClass) bool {
	return g.At(p).WalkableBy(class)
}

// BlocksLineOfSight reports whether the tile type at p blocks sight.
func (g *Grid) BlocksLineOfSight(p Point) bool {
	return g.At(p).BlocksSight()
}

// Count returns how many tiles satisfy the predicate.
func (g *Grid) Count(match func(TileType) bool) int {
	n := 0
	for _, t := range g.tiles {
		if match(t) {
			n++
		}
	}
	return n
}

// Tiles returns a copy of the row-major tile array.
func (g *Grid) Tiles() []TileType {
	out := make([]TileType, len(g.tiles))
	copy(out, g.tiles)
	return out
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	return &Grid{width: g.width, height: g.height, tiles: g.Tiles()}
}

// String renders the grid as one line of glyphs per row.
func (g *Grid) String() string {
	var b strings.Builder
	b.Grow((g.width + 1) * g.height)
	for y := 0; y < g.height; y++ {
		for x := 0; x < g.width; x++ {
			b.WriteRune(g.tiles[y*g.width+x].Rune())
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// TileCenter returns the world-space center of a tile for the given tile edge length.
func TileCenter(p Point, tileSize float64) (float64, float64) {
	return (float64(p.X) + 0.5) * tileSize, (float64(p.Y) + 0.5) * tileSize
}

// WorldToTile converts a world-space position to the tile containing it.
func WorldToTile(x, y, tileSize float64) Point {
	return Point{X: int(math.Floor(x / tileSize)), Y: int(math.Floor(y / tileSize))}
}
