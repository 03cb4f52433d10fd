// Package spawn chooses objective positions inside room interiors, away
// from guards, hazards and the player start.
package spawn

import (
	"context"
	"math"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/go-logr/logr"
	"github.com/zyedidia/generic/mapset"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
	"github.com/samdwyer/stealthgrid/internal/validate"
)

// Radii holds Manhattan radii per placement category.
type Radii struct {
	Patrol int `json:"patrol"`
	Start  int `json:"start"`
	Exit   int `json:"exit"`
	Hazard int `json:"hazard"`
}

// Distances holds minimum Manhattan distances checked by ValidatePlacement.
type Distances struct {
	Patrol int `json:"patrol"`
	Laser  int `json:"laser"`
	Sensor int `json:"sensor"`
	Start  int `json:"start"`
	Exit   int `json:"exit"`
}

// Weights scale the components of a candidate score.
type Weights struct {
	Base       float64 `json:"base"`
	Clearance  float64 `json:"clearance"`
	Centrality float64 `json:"centrality"`
	Neighbors  float64 `json:"neighbors"`
}

// Config tunes candidate selection and placement checks.
type Config struct {
	Class               grid.ActorClass
	Forbidden           Radii
	MinDistance         Distances
	MinClearance        int
	MinObjectiveSpacing int
	Weights             Weights
	// Objectives are the types Repair makes sure are placed.
	Objectives []string
}

// DefaultConfig returns the standard spawner configuration.
func DefaultConfig() Config {
	return Config{
		Class:               grid.ActorPlayer,
		Forbidden:           Radii{Patrol: 2, Start: 3, Exit: 2, Hazard: 2},
		MinDistance:         Distances{Patrol: 3, Laser: 2, Sensor: 2, Start: 4, Exit: 3},
		MinClearance:        1,
		MinObjectiveSpacing: 5,
		Weights:             Weights{Base: 10, Clearance: 1.5, Centrality: 4, Neighbors: 0.5},
		Objectives:          []string{grid.ObjectiveDataCore, grid.ObjectiveKeyCard, grid.ObjectiveHackTerminal},
	}
}

// Candidate is a scored spawn tile.
type Candidate struct {
	Pos   grid.Point `json:"pos"`
	Score float64    `json:"score"`
}

// Spawner holds the candidate list for one layout.
type Spawner struct {
	cfg    Config
	nav    grid.Navigable
	layout grid.Layout
	log    logr.Logger

	forbidden  mapset.Set[grid.Point]
	candidates []Candidate
	placed     map[string]grid.Point
}

// Option configures a Spawner.
type Option func(*Spawner)

// WithLogger sets the spawner's logger.
func WithLogger(l logr.Logger) Option {
	return func(s *Spawner) { s.log = l }
}

// New precomputes forbidden zones and the sorted candidate list for l.
// Objectives already present in l count as placed.
func New(nav grid.Navigable, l grid.Layout, cfg Config, opts ...Option) *Spawner {
	s := &Spawner{
		cfg:    cfg,
		nav:    nav,
		layout: l,
		log:    logr.Discard(),
		placed: make(map[string]grid.Point),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, o := range l.Objectives() {
		s.placed[o.Type] = o.Pos
	}
	s.forbidden = s.forbiddenZones()
	s.candidates = s.scoreCandidates()
	s.log.V(1).Info("spawn candidates computed", "candidates", len(s.candidates), "forbidden", s.forbidden.Size())
	return s
}

func (s *Spawner) forbiddenZones() mapset.Set[grid.Point] {
	zones := mapset.New[grid.Point]()
	mark := func(c grid.Point, r int) {
		for dy := -r; dy <= r; dy++ {
			for dx := -r; dx <= r; dx++ {
				p := grid.Pt(c.X+dx, c.Y+dy)
				if c.Manhattan(p) <= r && s.nav.InBounds(p) {
					zones.Put(p)
				}
			}
		}
	}
	for _, p := range s.layout.GuardPatrol {
		mark(p, s.cfg.Forbidden.Patrol)
	}
	if s.layout.PlayerStart != nil {
		mark(*s.layout.PlayerStart, s.cfg.Forbidden.Start)
	}
	if s.layout.ExitZone != nil {
		mark(*s.layout.ExitZone, s.cfg.Forbidden.Exit)
	}
	for _, p := range s.layout.Hazards() {
		mark(p, s.cfg.Forbidden.Hazard)
	}
	return zones
}

func (s *Spawner) scoreCandidates() []Candidate {
	var out []Candidate
	for y := 0; y < s.nav.Height(); y++ {
		for x := 0; x < s.nav.Width(); x++ {
			p := grid.Pt(x, y)
			if !s.IsInterior(p) || s.forbidden.Has(p) {
				continue
			}
			out = append(out, Candidate{Pos: p, Score: s.Score(p)})
		}
	}
	// Row-major order breaks ties.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// IsInterior reports whether p and all four cardinal neighbors are walkable.
func (s *Spawner) IsInterior(p grid.Point) bool {
	if !s.nav.IsWalkable(p, s.cfg.Class) {
		return false
	}
	for _, d := range grid.CardinalOffsets() {
		if !s.nav.IsWalkable(p.Add(d), s.cfg.Class) {
			return false
		}
	}
	return true
}

// IsForbidden reports whether p lies inside a forbidden zone.
func (s *Spawner) IsForbidden(p grid.Point) bool {
	return s.forbidden.Has(p)
}

// Clearance returns the smallest number of straight steps from p to a
// non-walkable tile in any cardinal direction.
func (s *Spawner) Clearance(p grid.Point) int {
	best := math.MaxInt
	for _, d := range grid.CardinalOffsets() {
		n := 0
		q := p
		for {
			q = q.Add(d)
			n++
			if !s.nav.IsWalkable(q, s.cfg.Class) {
				break
			}
		}
		best = min(best, n)
	}
	return best
}

// Score rates p as an objective position. Higher is better.
func (s *Spawner) Score(p grid.Point) float64 {
	w := s.cfg.Weights
	cx := float64(s.nav.Width()-1) / 2
	cy := float64(s.nav.Height()-1) / 2
	centrality := 1.0
	if maxDist := math.Hypot(cx, cy); maxDist > 0 {
		centrality = 1 - math.Hypot(float64(p.X)-cx, float64(p.Y)-cy)/maxDist
	}
	neighbors := 0
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if (dx != 0 || dy != 0) && s.nav.IsWalkable(grid.Pt(p.X+dx, p.Y+dy), s.cfg.Class) {
				neighbors++
			}
		}
	}
	return w.Base +
		float64(s.Clearance(p))*w.Clearance +
		centrality*w.Centrality +
		float64(neighbors)*w.Neighbors
}

// Candidates returns a copy of the candidate list, best first.
func (s *Spawner) Candidates() []Candidate {
	out := make([]Candidate, len(s.candidates))
	copy(out, s.candidates)
	return out
}

// Place records the position of an objective.
func (s *Spawner) Place(objType string, p grid.Point) {
	s.placed[objType] = p
}

// Placed returns a copy of the placed objectives.
func (s *Spawner) Placed() map[string]grid.Point {
	out := make(map[string]grid.Point, len(s.placed))
	for k, v := range s.placed {
		out[k] = v
	}
	return out
}

// Layout returns the layout with every placed objective applied.
func (s *Spawner) Layout() grid.Layout {
	l := s.layout
	for k, p := range s.placed {
		l.SetObjective(k, p)
	}
	return l
}

// ValidatePlacement checks p as the position of objType.
func (s *Spawner) ValidatePlacement(objType string, p grid.Point) validate.Result {
	res := validate.NewResult()
	if !s.nav.InBounds(p) {
		res.AddError(validate.CodeOutOfBounds, objType, &p, "(%d,%d) is outside the grid", p.X, p.Y)
		return res
	}
	if !s.nav.IsWalkable(p, s.cfg.Class) {
		res.AddError(validate.CodeNotWalkable, objType, &p, "(%d,%d) is not walkable", p.X, p.Y)
		return res
	}
	if c := s.Clearance(p); c < s.cfg.MinClearance {
		res.AddError(validate.CodeLowClearance, objType, &p, "wall clearance %d below %d", c, s.cfg.MinClearance)
	}
	res.Stats["clearance"] = float64(s.Clearance(p))

	near := func(role string, others []grid.Point, minDist int) {
		for _, o := range others {
			if d := p.Manhattan(o); d < minDist {
				res.AddError(validate.CodeTooClose, objType, &p, "%d from %s at (%d,%d), want at least %d", d, role, o.X, o.Y, minDist)
			}
		}
	}
	l := s.layout
	near("guardPatrol", l.GuardPatrol, s.cfg.MinDistance.Patrol)
	near("laserGrid", l.LaserGrids, s.cfg.MinDistance.Laser)
	near("motionSensor", l.MotionSensors, s.cfg.MinDistance.Sensor)
	if l.PlayerStart != nil {
		near(validate.RoleStart, []grid.Point{*l.PlayerStart}, s.cfg.MinDistance.Start)
	}
	if l.ExitZone != nil {
		near(validate.RoleExit, []grid.Point{*l.ExitZone}, s.cfg.MinDistance.Exit)
	}

	if !s.IsInterior(p) {
		res.AddWarning(validate.CodeNotInterior, objType, &p, "(%d,%d) touches a wall or doorway", p.X, p.Y)
	}
	return res
}

// Relocate moves objType to the best candidate at least MinObjectiveSpacing
// away from every other placed objective. When no candidate qualifies it
// falls back to the highest-scoring candidate. It reports false only when
// there are no candidates at all.
func (s *Spawner) Relocate(objType string) (grid.Point, bool) {
	if len(s.candidates) == 0 {
		return grid.Point{}, false
	}
	for _, c := range s.candidates {
		if s.spacedFromOthers(objType, c.Pos) {
			s.placed[objType] = c.Pos
			return c.Pos, true
		}
	}
	best := s.candidates[0].Pos
	s.log.V(1).Info("no spaced candidate, using best score", "objective", objType, "pos", best)
	s.placed[objType] = best
	return best, true
}

func (s *Spawner) spacedFromOthers(objType string, p grid.Point) bool {
	for k, o := range s.placed {
		if k != objType && p.Manhattan(o) < s.cfg.MinObjectiveSpacing {
			return false
		}
	}
	return true
}

// DeterministicSpawn picks a candidate from a stable hash of objType plus
// seed. The result does not depend on call order or prior placements.
func (s *Spawner) DeterministicSpawn(objType string, seed int64) (grid.Point, bool) {
	if len(s.candidates) == 0 {
		return grid.Point{}, false
	}
	idx := (xxhash.Sum64String(objType) + uint64(seed)) % uint64(len(s.candidates))
	return s.candidates[idx].Pos, true
}

// Repair validates every placed objective, relocates failures and spawns
// configured objectives that are missing. The returned result describes the
// final placements.
func (s *Spawner) Repair(ctx context.Context, seed int64) (grid.Layout, validate.Result) {
	_, span := telemetry.Tracer("spawn").Start(ctx, "spawn.repair")
	defer span.End()

	final := validate.NewResult()
	relocated, spawned := 0, 0
	for _, objType := range s.cfg.Objectives {
		if _, ok := s.placed[objType]; ok {
			continue
		}
		p, ok := s.DeterministicSpawn(objType, seed)
		if !ok {
			final.AddError(validate.CodeMissingObjective, objType, nil, "no spawn candidates for %s", objType)
			continue
		}
		s.placed[objType] = p
		spawned++
	}

	for _, objType := range s.order() {
		res := s.ValidatePlacement(objType, s.placed[objType])
		if !res.Valid || !s.spacedFromOthers(objType, s.placed[objType]) {
			from := s.placed[objType]
			if p, ok := s.Relocate(objType); ok {
				relocated++
				s.log.V(1).Info("objective relocated", "objective", objType, "from", from, "to", p)
				res = s.ValidatePlacement(objType, p)
			}
		}
		res.Stats = nil
		final.Merge(res)
	}

	span.SetAttributes(
		attribute.Int("spawn.candidates", len(s.candidates)),
		attribute.Int("spawn.relocated", relocated),
		attribute.Int("spawn.spawned", spawned),
		attribute.Bool("spawn.valid", final.Valid),
	)
	final.Stats["relocated"] = float64(relocated)
	final.Stats["spawned"] = float64(spawned)
	final.Stats["candidates"] = float64(len(s.candidates))
	return s.Layout(), final
}

// order lists placed objective types in a fixed order.
func (s *Spawner) order() []string {
	var out []string
	seen := mapset.New[string]()
	for _, t := range append(append([]string{}, grid.ObjectiveDataCore, grid.ObjectiveKeyCard, grid.ObjectiveHackTerminal), s.cfg.Objectives...) {
		if _, ok := s.placed[t]; ok && !seen.Has(t) {
			seen.Put(t)
			out = append(out, t)
		}
	}
	return out
}
