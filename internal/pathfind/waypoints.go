package pathfind

import "github.com/samdwyer/stealthgrid/internal/grid"

// smooth greedily replaces runs of waypoints with the farthest later
// waypoint reachable along a clear straight line.
func (p *Pathfinder) smooth(path []grid.Point, class grid.ActorClass) []grid.Point {
	if len(path) <= 2 {
		return clonePath(path)
	}
	out := []grid.Point{path[0]}
	for i := 0; i < len(path)-1; {
		next := i + 1
		for j := len(path) - 1; j > i+1; j-- {
			if p.clearLine(path[i], path[j], class) {
				next = j
				break
			}
		}
		out = append(out, path[next])
		i = next
	}
	return out
}

// clearLine reports whether every tile on the line from a to b is
// walkable by class and does not block sight.
func (p *Pathfinder) clearLine(a, b grid.Point, class grid.ActorClass) bool {
	for _, t := range grid.Line(a, b) {
		if !p.nav.InBounds(t) || p.nav.BlocksLineOfSight(t) || !p.nav.IsWalkable(t, class) {
			return false
		}
	}
	return true
}

// NextWaypoint returns the waypoint an agent at current should head for and
// its index in path. An agent on the path gets the following node (or the
// last node once it is there); an agent off the path is sent back to the
// path node closest to it by Manhattan distance.
func NextWaypoint(path []grid.Point, current grid.Point) (grid.Point, int, bool) {
	if len(path) == 0 {
		return grid.Point{}, -1, false
	}
	for i, wp := range path {
		if wp == current {
			if i+1 < len(path) {
				return path[i+1], i + 1, true
			}
			return wp, i, true
		}
	}
	best, bestDist := 0, current.Manhattan(path[0])
	for i := 1; i < len(path); i++ {
		if d := current.Manhattan(path[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return path[best], best, true
}

// Simplify removes waypoints that lie on a straight run between their
// neighbors, keeping both endpoints and every turn.
func Simplify(path []grid.Point) []grid.Point {
	if len(path) <= 2 {
		return clonePath(path)
	}
	out := []grid.Point{path[0]}
	for i := 1; i < len(path)-1; i++ {
		prev, cur, next := path[i-1], path[i], path[i+1]
		d1 := grid.Point{X: sign(cur.X - prev.X), Y: sign(cur.Y - prev.Y)}
		d2 := grid.Point{X: sign(next.X - cur.X), Y: sign(next.Y - cur.Y)}
		if d1 != d2 {
			out = append(out, cur)
		}
	}
	return append(out, path[len(path)-1])
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
