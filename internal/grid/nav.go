package grid

import "math"

// DefaultNearestHops bounds FindNearestWalkable searches.
const DefaultNearestHops = 10

// Navigable is a grid view that answers walkability and sight questions.
// Both Grid and the metadata store implement it.
type Navigable interface {
	Width() int
	Height() int
	InBounds(p Point) bool
	IsWalkable(p Point, class ActorClass) bool
	BlocksLineOfSight(p Point) bool
}

// Step is one legal move to a neighboring tile.
type Step struct {
	To       Point
	Cost     float64 // 1 for cardinal, √2 for diagonal
	Diagonal bool
}

var cardinalOffsets = [...]Point{
	{X: 0, Y: -1},
	{X: 1, Y: 0},
	{X: 0, Y: 1},
	{X: -1, Y: 0},
}

var diagonalOffsets = [...]Point{
	{X: 1, Y: -1},
	{X: 1, Y: 1},
	{X: -1, Y: 1},
	{X: -1, Y: -1},
}

// CardinalOffsets returns the four orthogonal unit offsets (N, E, S, W).
func CardinalOffsets() [4]Point {
	return cardinalOffsets
}

// Neighbors appends every legal step from p to buf and returns it.
// A diagonal step is legal only when both orthogonal corner tiles are
// independently walkable, so paths never cut a wall corner.
func Neighbors(n Navigable, p Point, class ActorClass, diagonal bool, buf []Step) []Step {
	for _, d := range cardinalOffsets {
		to := p.Add(d)
		if n.InBounds(to) && n.IsWalkable(to, class) {
			buf = append(buf, Step{To: to, Cost: 1})
		}
	}
	if !diagonal {
		return buf
	}
	for _, d := range diagonalOffsets {
		to := p.Add(d)
		if !n.InBounds(to) || !n.IsWalkable(to, class) {
			continue
		}
		if !n.IsWalkable(Point{X: p.X + d.X, Y: p.Y}, class) || !n.IsWalkable(Point{X: p.X, Y: p.Y + d.Y}, class) {
			continue
		}
		buf = append(buf, Step{To: to, Cost: math.Sqrt2, Diagonal: true})
	}
	return buf
}

// IsLegalStep reports whether moving from a to b is a single legal neighbor step.
func IsLegalStep(n Navigable, a, b Point, class ActorClass, diagonal bool) bool {
	dx, dy := b.X-a.X, b.Y-a.Y
	if abs(dx) > 1 || abs(dy) > 1 || (dx == 0 && dy == 0) {
		return false
	}
	if !n.InBounds(b) || !n.IsWalkable(b, class) {
		return false
	}
	if dx != 0 && dy != 0 {
		if !diagonal {
			return false
		}
		return n.IsWalkable(Point{X: a.X + dx, Y: a.Y}, class) && n.IsWalkable(Point{X: a.X, Y: a.Y + dy}, class)
	}
	return true
}

// FindNearestWalkable runs a breadth-first search of at most maxHops rings
// around p and returns the closest tile walkable by class.
func FindNearestWalkable(n Navigable, p Point, class ActorClass, maxHops int) (Point, bool) {
	if n.InBounds(p) && n.IsWalkable(p, class) {
		return p, true
	}
	if maxHops <= 0 {
		return Point{}, false
	}
	type node struct {
		p    Point
		hops int
	}
	visited := map[Point]struct{}{p: {}}
	queue := []node{{p: p}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.hops >= maxHops {
			continue
		}
		for _, d := range cardinalOffsets {
			next := current.p.Add(d)
			if !n.InBounds(next) {
				continue
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			if n.IsWalkable(next, class) {
				return next, true
			}
			queue = append(queue, node{p: next, hops: current.hops + 1})
		}
	}
	return Point{}, false
}

// Line returns the tiles on the integer line from a to b, both inclusive.
func Line(a, b Point) []Point {
	dx := abs(b.X - a.X)
	dy := -abs(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}
	err := dx + dy
	out := make([]Point, 0, max(dx, -dy)+1)
	x, y := a.X, a.Y
	for {
		out = append(out, Point{X: x, Y: y})
		if x == b.X && y == b.Y {
			return out
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// HasLineOfSight reports whether no tile on the line between a and b blocks sight.
func HasLineOfSight(n Navigable, a, b Point) bool {
	for _, p := range Line(a, b) {
		if !n.InBounds(p) || n.BlocksLineOfSight(p) {
			return false
		}
	}
	return true
}
