// Package tilemeta resolves per-tile navigation properties from layered
// type defaults, type-wide modifiers and per-tile overrides.
package tilemeta

import (
	"math"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// Impassable is the move cost of a tile that must never be expanded.
var Impassable = math.Inf(1)

// Opt is a field value that may be unset.
type Opt[T any] struct {
	value T
	set   bool
}

// Some returns a set Opt holding v.
func Some[T any](v T) Opt[T] {
	return Opt[T]{value: v, set: true}
}

// Get returns the value and whether it is set.
func (o Opt[T]) Get() (T, bool) {
	return o.value, o.set
}

// IsSet reports whether the option carries a value.
func (o Opt[T]) IsSet() bool {
	return o.set
}

// Record is the fully resolved metadata of one tile.
type Record struct {
	WalkableByPlayer  bool
	WalkableByAgent   bool
	BlocksLineOfSight bool
	AgentMoveCost     float64 // in (0, +Inf]; +Inf means never expanded
	Tag               string
	BlockedBy         string // agent id holding a temporary occupancy mark
}

// WalkableBy returns the walkability flag for the actor class.
func (r Record) WalkableBy(class grid.ActorClass) bool {
	if class == grid.ActorPlayer {
		return r.WalkableByPlayer
	}
	return r.WalkableByAgent
}

// Patch is a partial record. Unset fields leave the lower layer untouched.
type Patch struct {
	WalkableByPlayer  Opt[bool]
	WalkableByAgent   Opt[bool]
	BlocksLineOfSight Opt[bool]
	AgentMoveCost     Opt[float64]
	Tag               Opt[string]
	BlockedBy         Opt[string]
}

// IsEmpty reports whether no field of the patch is set.
func (p Patch) IsEmpty() bool {
	return !p.WalkableByPlayer.set && !p.WalkableByAgent.set && !p.BlocksLineOfSight.set &&
		!p.AgentMoveCost.set && !p.Tag.set && !p.BlockedBy.set
}

// Merge returns p with every set field of q taking precedence.
func (p Patch) Merge(q Patch) Patch {
	if q.WalkableByPlayer.set {
		p.WalkableByPlayer = q.WalkableByPlayer
	}
	if q.WalkableByAgent.set {
		p.WalkableByAgent = q.WalkableByAgent
	}
	if q.BlocksLineOfSight.set {
		p.BlocksLineOfSight = q.BlocksLineOfSight
	}
	if q.AgentMoveCost.set {
		p.AgentMoveCost = q.AgentMoveCost
	}
	if q.Tag.set {
		p.Tag = q.Tag
	}
	if q.BlockedBy.set {
		p.BlockedBy = q.BlockedBy
	}
	return p
}

// Apply overlays the set fields of the patch onto r.
func (p Patch) Apply(r Record) Record {
	if v, ok := p.WalkableByPlayer.Get(); ok {
		r.WalkableByPlayer = v
	}
	if v, ok := p.WalkableByAgent.Get(); ok {
		r.WalkableByAgent = v
	}
	if v, ok := p.BlocksLineOfSight.Get(); ok {
		r.BlocksLineOfSight = v
	}
	if v, ok := p.AgentMoveCost.Get(); ok {
		r.AgentMoveCost = v
	}
	if v, ok := p.Tag.Get(); ok {
		r.Tag = v
	}
	if v, ok := p.BlockedBy.Get(); ok {
		r.BlockedBy = v
	}
	return r
}

// DefaultRecord returns the built-in metadata of a tile type.
func DefaultRecord(t grid.TileType) Record {
	r := Record{
		WalkableByPlayer:  t.WalkableBy(grid.ActorPlayer),
		WalkableByAgent:   t.WalkableBy(grid.ActorAgent),
		BlocksLineOfSight: t.BlocksSight(),
		AgentMoveCost:     1,
		Tag:               t.String(),
	}
	switch t {
	case grid.TileWall, grid.TileObstacle, grid.TileLockedDoor:
		r.AgentMoveCost = Impassable
	case grid.TileWater:
		r.AgentMoveCost = 2
	case grid.TileDoor:
		// Closed by default; opening a door is a per-tile override.
		r.BlocksLineOfSight = true
		r.AgentMoveCost = 1.5
	case grid.TileHazard:
		r.AgentMoveCost = 2
	}
	return r
}
