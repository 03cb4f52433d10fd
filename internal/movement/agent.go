package movement

import "github.com/samdwyer/stealthgrid/internal/grid"

// Agent is a non-player entity moving between tile centers.
type Agent struct {
	id   string
	tile grid.Point
	x, y float64

	path     []grid.Point
	cursor   int // index of the next waypoint to commit to
	from, to grid.Point
	moving   bool // between from and to
	progress float64
	arrived  bool

	patrol    []grid.Point
	patrolIdx int

	reserved   int // tile index held in the reservation table, -1 when none
	stuckTicks int
}

// ID returns the agent's identity.
func (a *Agent) ID() string { return a.id }

// Tile returns the last tile the agent fully reached.
func (a *Agent) Tile() grid.Point { return a.tile }

// Position returns the agent's continuous world position.
func (a *Agent) Position() (float64, float64) { return a.x, a.y }

// Moving reports whether the agent is between two tiles.
func (a *Agent) Moving() bool { return a.moving }

// Progress returns linear progress through the current segment.
func (a *Agent) Progress() float64 { return a.progress }

// Arrived reports whether the agent finished its last path.
func (a *Agent) Arrived() bool { return a.arrived }

// HasPath reports whether the agent has waypoints left.
func (a *Agent) HasPath() bool { return a.path != nil }

// Path returns a copy of the active path.
func (a *Agent) Path() []grid.Point {
	if a.path == nil {
		return nil
	}
	out := make([]grid.Point, len(a.path))
	copy(out, a.path)
	return out
}

// Cursor returns the index of the next waypoint the agent will commit to.
func (a *Agent) Cursor() int { return a.cursor }

// Destination returns the final tile of the active path.
func (a *Agent) Destination() (grid.Point, bool) {
	if len(a.path) == 0 {
		return grid.Point{}, false
	}
	return a.path[len(a.path)-1], true
}

// Patrol returns a copy of the patrol route.
func (a *Agent) Patrol() []grid.Point {
	out := make([]grid.Point, len(a.patrol))
	copy(out, a.patrol)
	return out
}

// PatrolIndex returns the index of the current patrol point.
func (a *Agent) PatrolIndex() int { return a.patrolIdx }

// origin is where a newly planned path must start: the committed tile while
// moving, the current tile otherwise.
func (a *Agent) origin() grid.Point {
	if a.moving {
		return a.to
	}
	return a.tile
}

// setPath installs path and positions the cursor relative to the origin.
func (a *Agent) setPath(path []grid.Point) {
	a.stuckTicks = 0
	if len(path) == 0 {
		a.path = nil
		a.cursor = 0
		return
	}
	a.path = path
	a.arrived = false
	origin := a.origin()
	a.cursor = -1
	for i, p := range path {
		if p == origin {
			a.cursor = i + 1
			break
		}
	}
	if a.cursor < 0 {
		best, bestDist := 0, origin.Manhattan(path[0])
		for i := 1; i < len(path); i++ {
			if d := origin.Manhattan(path[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		a.cursor = best
	}
	if a.cursor >= len(path) && !a.moving {
		a.finish()
	}
}

func (a *Agent) finish() {
	a.path = nil
	a.cursor = 0
	a.arrived = true
}

// remaining returns the route still ahead of the agent, starting at its origin.
func (a *Agent) remaining() []grid.Point {
	if a.path == nil {
		return nil
	}
	out := []grid.Point{a.origin()}
	if a.cursor < len(a.path) {
		out = append(out, a.path[a.cursor:]...)
	}
	return out
}
