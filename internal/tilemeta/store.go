package tilemeta

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// ErrInvalidCost is returned for agent move costs outside (0, +Inf].
var ErrInvalidCost = errors.New("agent move cost must be in (0, +Inf]")

// ChangeFunc is notified with the tiles whose type, override or type
// modifier changed.
type ChangeFunc func(ps []grid.Point)

// Store wraps a grid and resolves metadata as
// type default < type modifier < per-tile override < occupancy mark.
// Resolved records are cached per tile and invalidated on mutation.
type Store struct {
	grid      *grid.Grid
	defaults  map[grid.TileType]Record
	modifiers map[grid.TileType]Patch
	overrides map[int]Patch
	occupancy map[int]string
	cache     []Record
	valid     []bool
	listeners []ChangeFunc
	log       logr.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store's logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithDefault replaces the built-in default record of a tile type.
func WithDefault(t grid.TileType, r Record) Option {
	return func(s *Store) { s.defaults[t] = r }
}

// NewStore creates a metadata store over g.
func NewStore(g *grid.Grid, opts ...Option) *Store {
	s := &Store{
		grid:      g,
		defaults:  make(map[grid.TileType]Record),
		modifiers: make(map[grid.TileType]Patch),
		overrides: make(map[int]Patch),
		occupancy: make(map[int]string),
		cache:     make([]Record, g.Len()),
		valid:     make([]bool, g.Len()),
		log:       logr.Discard(),
	}
	for _, t := range grid.TileTypes() {
		s.defaults[t] = DefaultRecord(t)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Grid returns the underlying tile grid.
func (s *Store) Grid() *grid.Grid { return s.grid }

// Width returns the grid width.
func (s *Store) Width() int { return s.grid.Width() }

// Height returns the grid height.
func (s *Store) Height() int { return s.grid.Height() }

// At returns the tile type at p.
func (s *Store) At(p grid.Point) grid.TileType { return s.grid.At(p) }

// InBounds reports whether p lies on the grid.
func (s *Store) InBounds(p grid.Point) bool { return s.grid.InBounds(p) }

// Resolve returns the merged metadata of the tile at p.
// Out-of-bounds positions resolve as wall.
func (s *Store) Resolve(p grid.Point) Record {
	if !s.grid.InBounds(p) {
		return s.typeRecord(grid.TileWall)
	}
	idx := s.grid.Index(p)
	if s.valid[idx] {
		return s.cache[idx]
	}
	r := s.typeRecord(s.grid.At(p))
	if o, ok := s.overrides[idx]; ok {
		r = o.Apply(r)
	}
	if id, ok := s.occupancy[idx]; ok {
		r.WalkableByAgent = false
		r.BlockedBy = id
	}
	s.cache[idx] = r
	s.valid[idx] = true
	return r
}

func (s *Store) typeRecord(t grid.TileType) Record {
	r, ok := s.defaults[t]
	if !ok {
		r = DefaultRecord(t)
	}
	if m, ok := s.modifiers[t]; ok {
		r = m.Apply(r)
	}
	return r
}

// IsWalkable reports whether the actor class may enter p.
func (s *Store) IsWalkable(p grid.Point, class grid.ActorClass) bool {
	return s.Resolve(p).WalkableBy(class)
}

// BlocksLineOfSight reports whether p blocks sight after all overrides.
func (s *Store) BlocksLineOfSight(p grid.Point) bool {
	return s.Resolve(p).BlocksLineOfSight
}

// MoveCost returns the agent move cost of p. +Inf means impassable.
func (s *Store) MoveCost(p grid.Point) float64 {
	return s.Resolve(p).AgentMoveCost
}

// SetTypeModifier installs a type-wide patch, replacing any previous one.
func (s *Store) SetTypeModifier(t grid.TileType, patch Patch) error {
	if err := checkPatch(patch); err != nil {
		return fmt.Errorf("modifier for %s: %w", t, err)
	}
	s.modifiers[t] = patch
	s.notify(s.invalidateType(t)...)
	return nil
}

// ClearTypeModifier removes the type-wide patch of t.
func (s *Store) ClearTypeModifier(t grid.TileType) {
	if _, ok := s.modifiers[t]; !ok {
		return
	}
	delete(s.modifiers, t)
	s.notify(s.invalidateType(t)...)
}

// SetOverride merges patch into the per-tile override at p.
func (s *Store) SetOverride(p grid.Point, patch Patch) error {
	if !s.grid.InBounds(p) {
		return fmt.Errorf("override at %v: out of bounds", p)
	}
	if err := checkPatch(patch); err != nil {
		return fmt.Errorf("override at %v: %w", p, err)
	}
	idx := s.grid.Index(p)
	s.overrides[idx] = s.overrides[idx].Merge(patch)
	s.valid[idx] = false
	s.notify(p)
	return nil
}

// ClearOverride removes the per-tile override at p.
func (s *Store) ClearOverride(p grid.Point) {
	if !s.grid.InBounds(p) {
		return
	}
	idx := s.grid.Index(p)
	if _, ok := s.overrides[idx]; !ok {
		return
	}
	delete(s.overrides, idx)
	s.valid[idx] = false
	s.notify(p)
}

// Override returns the per-tile override at p, if any.
func (s *Store) Override(p grid.Point) (Patch, bool) {
	if !s.grid.InBounds(p) {
		return Patch{}, false
	}
	o, ok := s.overrides[s.grid.Index(p)]
	return o, ok
}

// MarkBlocked marks p as temporarily occupied by agentID. Agents cannot
// walk onto the tile until the same agent clears the mark.
func (s *Store) MarkBlocked(p grid.Point, agentID string) {
	if !s.grid.InBounds(p) {
		return
	}
	idx := s.grid.Index(p)
	s.occupancy[idx] = agentID
	s.valid[idx] = false
}

// ClearBlocked removes the occupancy mark at p when it was set by agentID.
// Clears from any other agent are ignored and report false.
func (s *Store) ClearBlocked(p grid.Point, agentID string) bool {
	if !s.grid.InBounds(p) {
		return false
	}
	idx := s.grid.Index(p)
	owner, ok := s.occupancy[idx]
	if !ok || owner != agentID {
		if ok {
			s.log.V(1).Info("ignored stale occupancy clear", "tile", p, "owner", owner, "caller", agentID)
		}
		return false
	}
	delete(s.occupancy, idx)
	s.valid[idx] = false
	return true
}

// BlockedBy returns the agent holding an occupancy mark on p.
func (s *Store) BlockedBy(p grid.Point) (string, bool) {
	if !s.grid.InBounds(p) {
		return "", false
	}
	id, ok := s.occupancy[s.grid.Index(p)]
	return id, ok
}

// SetTile changes the tile type at p and notifies change listeners.
func (s *Store) SetTile(p grid.Point, t grid.TileType) bool {
	if !s.grid.Set(p, t) {
		return false
	}
	s.valid[s.grid.Index(p)] = false
	s.notify(p)
	return true
}

// OnChange registers fn to be called after tile type, override or type
// modifier changes.
func (s *Store) OnChange(fn ChangeFunc) {
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(ps ...grid.Point) {
	if len(ps) == 0 {
		return
	}
	for _, fn := range s.listeners {
		fn(ps)
	}
}

// invalidateType drops cached records of every tile of type t and returns them.
func (s *Store) invalidateType(t grid.TileType) []grid.Point {
	var ps []grid.Point
	for i := range s.valid {
		p := s.grid.PointAt(i)
		if s.grid.At(p) == t {
			s.valid[i] = false
			ps = append(ps, p)
		}
	}
	s.log.V(1).Info("invalidated tile metadata", "type", t.String(), "tiles", len(ps))
	return ps
}

func checkPatch(p Patch) error {
	if c, ok := p.AgentMoveCost.Get(); ok {
		if math.IsNaN(c) || c <= 0 {
			return fmt.Errorf("%w: got %v", ErrInvalidCost, c)
		}
	}
	return nil
}
