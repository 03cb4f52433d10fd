package validate

import (
	"context"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/zyedidia/generic/mapset"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
)

// Roles name the declared positions a layout carries.
const (
	RoleStart  = "playerStart"
	RoleExit   = "exitZone"
	RolePatrol = "guardPatrol"
)

// Surface is a grid whose tile types and walkability can be queried.
// Both *grid.Grid and *tilemeta.Store satisfy it.
type Surface interface {
	grid.Navigable
	At(p grid.Point) grid.TileType
}

// Config tunes the validator.
type Config struct {
	// Class is the actor class used for walkability and path checks.
	Class grid.ActorClass
	// DisconnectedSamples caps how many unreachable tiles are reported.
	DisconnectedSamples int
	// MinObjectiveSpacing is the Manhattan distance below which two objectives draw a warning.
	MinObjectiveSpacing int
	// RequiredObjectives lists objective types that must be present.
	RequiredObjectives []string
}

// DefaultConfig returns the standard validator configuration.
func DefaultConfig() Config {
	return Config{
		Class:               grid.ActorPlayer,
		DisconnectedSamples: 10,
		MinObjectiveSpacing: 5,
	}
}

// Validator runs layout checks.
type Validator struct {
	cfg Config
	log logr.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithLogger sets the validator's logger.
func WithLogger(l logr.Logger) Option {
	return func(v *Validator) { v.log = l }
}

// New creates a validator.
func New(cfg Config, opts ...Option) *Validator {
	if cfg.DisconnectedSamples <= 0 {
		cfg.DisconnectedSamples = DefaultConfig().DisconnectedSamples
	}
	v := &Validator{cfg: cfg, log: logr.Discard()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the connectivity, walkability/path and objective-slot checks
// and merges their results. rooms, when given, enables room-membership warnings.
func (v *Validator) Validate(ctx context.Context, s Surface, l grid.Layout, rooms ...grid.Rect) Result {
	_, span := telemetry.Tracer("validate").Start(ctx, "validate.layout")
	defer span.End()

	res := v.CheckConnectivity(s)
	res.Merge(v.CheckWalkability(s, l))
	res.Merge(v.CheckObjectiveSlots(s, l, rooms))

	span.SetAttributes(
		attribute.Bool("validate.valid", res.Valid),
		attribute.Int("validate.errors", len(res.Errors)),
		attribute.Int("validate.warnings", len(res.Warnings)),
		attribute.Float64("validate.connectivity_percent", res.Stats["connectivity_percent"]),
	)
	v.log.V(0).Info("layout validated", "name", l.Name, "valid", res.Valid, "errors", len(res.Errors), "warnings", len(res.Warnings))
	return res
}

// CheckConnectivity flood-fills from the first walkable tile in row-major
// order and reports every walkable tile the fill does not reach.
func (v *Validator) CheckConnectivity(s Surface) Result {
	res := NewResult()
	w, h := s.Width(), s.Height()
	walkable := 0
	seed := -1
	for i := 0; i < w*h; i++ {
		if s.IsWalkable(grid.Pt(i%w, i/w), v.cfg.Class) {
			walkable++
			if seed < 0 {
				seed = i
			}
		}
	}
	res.Stats["walkable_tiles"] = float64(walkable)
	if walkable == 0 {
		res.AddError(CodeNoWalkable, "", nil, "grid has no walkable tiles")
		res.Stats["connectivity_percent"] = 0
		return res
	}

	reached := v.flood(s, grid.Pt(seed%w, seed/w))
	res.Stats["reachable_tiles"] = float64(reached.Size())
	res.Stats["connectivity_percent"] = 100 * float64(reached.Size()) / float64(walkable)

	disconnected := 0
	for i := 0; i < w*h; i++ {
		p := grid.Pt(i%w, i/w)
		if reached.Has(p) || !s.IsWalkable(p, v.cfg.Class) {
			continue
		}
		disconnected++
		if len(res.Disconnected) < v.cfg.DisconnectedSamples {
			res.Disconnected = append(res.Disconnected, p)
		}
	}
	res.Stats["disconnected_tiles"] = float64(disconnected)
	if disconnected > 0 {
		first := res.Disconnected[0]
		res.AddError(CodeDisconnected, "", &first, "%d walkable tiles unreachable (%.1f%% connected)",
			disconnected, res.Stats["connectivity_percent"])
	}
	return res
}

func (v *Validator) flood(s Surface, seed grid.Point) mapset.Set[grid.Point] {
	seen := mapset.New[grid.Point]()
	seen.Put(seed)
	queue := []grid.Point{seed}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range grid.CardinalOffsets() {
			n := p.Add(d)
			if seen.Has(n) || !s.IsWalkable(n, v.cfg.Class) {
				continue
			}
			seen.Put(n)
			queue = append(queue, n)
		}
	}
	return seen
}

// CheckWalkability verifies every declared position is walkable and that
// the exit and each objective can be reached from the start.
func (v *Validator) CheckWalkability(s Surface, l grid.Layout) Result {
	res := NewResult()
	check := func(role string, p grid.Point) bool {
		switch {
		case !s.InBounds(p):
			res.AddError(CodeOutOfBounds, role, &p, "%s (%d,%d) is outside the %dx%d grid", role, p.X, p.Y, s.Width(), s.Height())
			return false
		case !s.IsWalkable(p, v.cfg.Class):
			res.AddError(CodeNotWalkable, role, &p, "%s (%d,%d) is not walkable", role, p.X, p.Y)
			return false
		}
		return true
	}

	startOK := l.PlayerStart != nil && check(RoleStart, *l.PlayerStart)
	exitOK := l.ExitZone != nil && check(RoleExit, *l.ExitZone)
	objectives := l.Objectives()
	objOK := make([]bool, len(objectives))
	for i, o := range objectives {
		objOK[i] = check(o.Type, o.Pos)
	}
	for i, p := range l.GuardPatrol {
		check(fmt.Sprintf("%s[%d]", RolePatrol, i), p)
	}

	if !startOK {
		return res
	}
	dist := v.distances(s, *l.PlayerStart)
	route := func(role string, p grid.Point) {
		n, ok := dist[index(s, p)]
		if !ok {
			res.AddError(CodeNoPath, role, &p, "no path from %s to %s", RoleStart, role)
			return
		}
		res.Stats["path_length_"+role] = float64(n)
	}
	if exitOK {
		route(RoleExit, *l.ExitZone)
	}
	for i, o := range objectives {
		if objOK[i] {
			route(o.Type, o.Pos)
		}
	}
	return res
}

// distances returns the BFS step count from start to every reachable tile.
func (v *Validator) distances(s Surface, start grid.Point) map[int]int {
	dist := map[int]int{index(s, start): 0}
	queue := []grid.Point{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		d := dist[index(s, p)]
		for _, off := range grid.CardinalOffsets() {
			n := p.Add(off)
			if !s.IsWalkable(n, v.cfg.Class) {
				continue
			}
			idx := index(s, n)
			if _, seen := dist[idx]; seen {
				continue
			}
			dist[idx] = d + 1
			queue = append(queue, n)
		}
	}
	return dist
}

// CheckObjectiveSlots counts slot tiles and checks each objective for
// walkability, room membership, clearance and spacing from the others.
func (v *Validator) CheckObjectiveSlots(s Surface, l grid.Layout, rooms []grid.Rect) Result {
	res := NewResult()
	slots := 0
	for y := 0; y < s.Height(); y++ {
		for x := 0; x < s.Width(); x++ {
			if s.At(grid.Pt(x, y)) == grid.TileObjectiveSlot {
				slots++
			}
		}
	}
	res.Stats["objective_slots"] = float64(slots)

	objectives := l.Objectives()
	res.Stats["objectives"] = float64(len(objectives))
	present := mapset.New[string]()
	for _, o := range objectives {
		present.Put(o.Type)
	}
	for _, req := range v.cfg.RequiredObjectives {
		if !present.Has(req) {
			res.AddError(CodeMissingObjective, req, nil, "required objective %s is not placed", req)
		}
	}

	for _, o := range objectives {
		p := o.Pos
		if !s.InBounds(p) || !s.IsWalkable(p, v.cfg.Class) {
			res.AddError(CodeNotWalkable, o.Type, &p, "objective %s at (%d,%d) is not walkable", o.Type, p.X, p.Y)
			continue
		}
		if len(rooms) > 0 && !insideAny(rooms, p) {
			res.AddWarning(CodeOutsideRoom, o.Type, &p, "objective %s is not inside a room", o.Type)
		}
		for _, d := range grid.CardinalOffsets() {
			if !s.IsWalkable(p.Add(d), v.cfg.Class) {
				res.AddWarning(CodeLowClearance, o.Type, &p, "objective %s has no 1-tile clearance", o.Type)
				break
			}
		}
	}

	for i := 0; i < len(objectives); i++ {
		for j := i + 1; j < len(objectives); j++ {
			a, b := objectives[i], objectives[j]
			if d := a.Pos.Manhattan(b.Pos); d < v.cfg.MinObjectiveSpacing {
				p := b.Pos
				res.AddWarning(CodeObjectiveSpacing, b.Type, &p, "objectives %s and %s are %d apart, want at least %d",
					a.Type, b.Type, d, v.cfg.MinObjectiveSpacing)
			}
		}
	}
	return res
}

func insideAny(rooms []grid.Rect, p grid.Point) bool {
	for _, r := range rooms {
		if r.Contains(p) {
			return true
		}
	}
	return false
}

func index(s Surface, p grid.Point) int {
	return p.Y*s.Width() + p.X
}
