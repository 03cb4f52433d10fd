package movement

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/pathfind"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
	"github.com/samdwyer/stealthgrid/internal/tilemeta"
)

var (
	// ErrDuplicateAgent is returned when an agent id is already registered.
	ErrDuplicateAgent = errors.New("agent already exists")
	// ErrUnknownAgent is returned for operations on an unregistered agent.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrTileReserved is returned when an agent is placed on a tile another agent holds.
	ErrTileReserved = errors.New("tile reserved by another agent")
	// ErrUnsupportedStrategy is returned for movement strategies this package does not provide.
	ErrUnsupportedStrategy = errors.New("unsupported movement strategy")
)

// arrivalEpsilon absorbs floating-point drift when summing tick durations.
const arrivalEpsilon = 1e-9

// Strategy selects how agents move. It is fixed for the lifetime of a Manager.
type Strategy int

const (
	// StrategyTile moves agents tile to tile along planned paths.
	StrategyTile Strategy = iota
	// StrategyLegacy is the unconstrained continuous fallback, not provided here.
	StrategyLegacy
)

func (s Strategy) String() string {
	switch s {
	case StrategyTile:
		return "tile"
	case StrategyLegacy:
		return "legacy"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// ParseStrategy returns the strategy with the given name.
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "tile":
		return StrategyTile, nil
	case "legacy":
		return StrategyLegacy, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedStrategy, name)
}

// Config controls agent motion.
type Config struct {
	Strategy       Strategy
	TilesPerSecond float64
	TileSize       float64 // world units per tile edge
	Easing         Easing
	StuckEpsilon   float64 // world units per tick below which an agent counts as not moving
	StuckTicks     int     // consecutive stalled ticks before a forced replan
	Class          grid.ActorClass
	MarkOccupancy  bool // mirror reservations into tile metadata occupancy marks
}

// DefaultConfig returns the standard movement configuration.
func DefaultConfig() Config {
	return Config{
		Strategy:       StrategyTile,
		TilesPerSecond: 4,
		TileSize:       32,
		Easing:         EaseLinear,
		StuckEpsilon:   0.01,
		StuckTicks:     30,
		Class:          grid.ActorAgent,
	}
}

// Update is the per-tick output for one agent.
type Update struct {
	ID      string
	X, Y    float64
	Tile    grid.Point
	Arrived bool
}

// Manager owns every agent and ticks them in registration order. Earlier
// agents win reservation conflicts within a tick.
type Manager struct {
	store        *tilemeta.Store
	finder       *pathfind.Pathfinder
	cfg          Config
	agents       map[string]*Agent
	order        []*Agent
	reservations *ReservationTable
	log          logr.Logger

	replans metric.Int64Counter
	stuck   metric.Int64Counter
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(l logr.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// NewManager creates a manager and subscribes it to tile changes in store.
func NewManager(store *tilemeta.Store, finder *pathfind.Pathfinder, cfg Config, opts ...Option) (*Manager, error) {
	if cfg.Strategy != StrategyTile {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedStrategy, cfg.Strategy)
	}
	if cfg.TilesPerSecond <= 0 || cfg.TileSize <= 0 {
		return nil, fmt.Errorf("tiles per second and tile size must be positive, got %v and %v", cfg.TilesPerSecond, cfg.TileSize)
	}
	m := &Manager{
		store:        store,
		finder:       finder,
		cfg:          cfg,
		agents:       make(map[string]*Agent),
		reservations: NewReservationTable(),
		log:          logr.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	meter := telemetry.Meter("movement")
	var err error
	if m.replans, err = meter.Int64Counter("movement.replans"); err != nil {
		m.replans = metricnoop.Int64Counter{}
	}
	if m.stuck, err = meter.Int64Counter("movement.stuck_recoveries"); err != nil {
		m.stuck = metricnoop.Int64Counter{}
	}

	store.OnChange(m.TilesChanged)
	return m, nil
}

// Reservations exposes the reservation table.
func (m *Manager) Reservations() *ReservationTable { return m.reservations }

// AddAgent registers an agent standing on tile. An empty id is replaced by a
// generated one. The agent reserves its starting tile.
func (m *Manager) AddAgent(id string, tile grid.Point) (*Agent, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := m.agents[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateAgent, id)
	}
	if !m.store.InBounds(tile) {
		return nil, fmt.Errorf("agent %s: tile %v out of bounds", id, tile)
	}
	a := &Agent{id: id, tile: tile, reserved: -1}
	if !m.reserve(a, tile) {
		owner, _ := m.reservations.Owner(m.index(tile))
		return nil, fmt.Errorf("%w: %v held by %s", ErrTileReserved, tile, owner)
	}
	a.x, a.y = grid.TileCenter(tile, m.cfg.TileSize)
	m.agents[id] = a
	m.order = append(m.order, a)
	m.log.V(1).Info("agent added", "id", id, "tile", tile)
	return a, nil
}

// Agent returns the agent with the given id.
func (m *Manager) Agent(id string) (*Agent, bool) {
	a, ok := m.agents[id]
	return a, ok
}

// Agents returns every agent in registration order.
func (m *Manager) Agents() []*Agent {
	out := make([]*Agent, len(m.order))
	copy(out, m.order)
	return out
}

// RemoveAgent unregisters an agent and releases its reservations.
func (m *Manager) RemoveAgent(id string) bool {
	a, ok := m.agents[id]
	if !ok {
		return false
	}
	m.release(a)
	m.reservations.ReleaseAll(id)
	delete(m.agents, id)
	for i, o := range m.order {
		if o == a {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// MoveTo plans a path for the agent to goal. It reports false when no path exists.
func (m *Manager) MoveTo(id string, goal grid.Point) bool {
	a, ok := m.agents[id]
	if !ok {
		return false
	}
	path, ok := m.findPath(a, goal)
	if !ok {
		return false
	}
	a.setPath(path)
	return true
}

// SetPath gives the agent an explicit path.
func (m *Manager) SetPath(id string, path []grid.Point) error {
	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	cp := make([]grid.Point, len(path))
	copy(cp, path)
	a.setPath(cp)
	return nil
}

// SetPatrol replaces the agent's patrol route and resets its cursor.
func (m *Manager) SetPatrol(id string, points []grid.Point) error {
	a, ok := m.agents[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownAgent, id)
	}
	a.patrol = make([]grid.Point, len(points))
	copy(a.patrol, points)
	a.patrolIdx = 0
	return nil
}

// FollowPatrol plans a path to the agent's current patrol point.
func (m *Manager) FollowPatrol(id string) bool {
	a, ok := m.agents[id]
	if !ok || len(a.patrol) == 0 {
		return false
	}
	return m.MoveTo(id, a.patrol[a.patrolIdx])
}

// AdvancePatrol moves the patrol cursor forward, wrapping at the end.
func (m *Manager) AdvancePatrol(id string) int {
	a, ok := m.agents[id]
	if !ok || len(a.patrol) == 0 {
		return -1
	}
	a.patrolIdx = (a.patrolIdx + 1) % len(a.patrol)
	return a.patrolIdx
}

// Tick advances every agent by dt seconds and returns their positions.
func (m *Manager) Tick(dt float64) []Update {
	for _, a := range m.order {
		m.step(a, dt)
	}
	return m.Positions()
}

// Positions reports every agent's position in registration order.
func (m *Manager) Positions() []Update {
	out := make([]Update, 0, len(m.order))
	for _, a := range m.order {
		out = append(out, Update{ID: a.id, X: a.x, Y: a.y, Tile: a.tile, Arrived: a.arrived})
	}
	return out
}

func (m *Manager) step(a *Agent, dt float64) {
	prevX, prevY := a.x, a.y
	remaining := dt
	for remaining > 0 {
		if !a.moving && !m.commitNext(a) {
			break
		}
		segment := a.from.Euclidean(a.to)
		need := (1 - a.progress) * segment / m.cfg.TilesPerSecond
		if remaining+arrivalEpsilon >= need {
			remaining -= need
			m.arrive(a)
			continue
		}
		a.progress += m.cfg.TilesPerSecond * remaining / segment
		remaining = 0
		m.place(a)
	}
	m.detectStuck(a, prevX, prevY)
}

// commitNext reserves the next waypoint and starts the segment toward it.
// It reports false when there is nothing to do or the tile is taken.
func (m *Manager) commitNext(a *Agent) bool {
	for a.path != nil && a.cursor < len(a.path) && a.path[a.cursor] == a.tile {
		a.cursor++
	}
	if a.path == nil || a.cursor >= len(a.path) {
		if a.path != nil {
			a.finish()
		}
		return false
	}
	next := a.path[a.cursor]
	if !m.reserve(a, next) {
		return false
	}
	a.from = a.tile
	a.to = next
	a.progress = 0
	a.moving = true
	a.cursor++
	return true
}

// arrive snaps the agent onto the destination center and advances its path.
func (m *Manager) arrive(a *Agent) {
	a.tile = a.to
	a.x, a.y = grid.TileCenter(a.to, m.cfg.TileSize)
	a.moving = false
	a.progress = 0
	if a.path != nil && a.cursor >= len(a.path) {
		a.finish()
	}
}

func (m *Manager) place(a *Agent) {
	t := m.cfg.Easing.Apply(a.progress)
	fx, fy := grid.TileCenter(a.from, m.cfg.TileSize)
	tx, ty := grid.TileCenter(a.to, m.cfg.TileSize)
	a.x = fx + (tx-fx)*t
	a.y = fy + (ty-fy)*t
}

// reserve moves the agent's single reservation to tile, releasing the old one.
func (m *Manager) reserve(a *Agent, tile grid.Point) bool {
	idx := m.index(tile)
	if a.reserved == idx {
		return true
	}
	if !m.reservations.Reserve(idx, a.id) {
		return false
	}
	m.release(a)
	a.reserved = idx
	if m.cfg.MarkOccupancy {
		m.store.MarkBlocked(tile, a.id)
	}
	return true
}

func (m *Manager) release(a *Agent) {
	if a.reserved < 0 {
		return
	}
	m.reservations.Release(a.reserved, a.id)
	if m.cfg.MarkOccupancy {
		m.store.ClearBlocked(m.store.Grid().PointAt(a.reserved), a.id)
	}
	a.reserved = -1
}

// detectStuck forces a replan after the agent has failed to move for
// StuckTicks consecutive ticks while it still has a path.
func (m *Manager) detectStuck(a *Agent, prevX, prevY float64) {
	if a.path == nil || m.cfg.StuckTicks <= 0 {
		a.stuckTicks = 0
		return
	}
	if math.Hypot(a.x-prevX, a.y-prevY) >= m.cfg.StuckEpsilon {
		a.stuckTicks = 0
		return
	}
	a.stuckTicks++
	if a.stuckTicks < m.cfg.StuckTicks {
		return
	}
	if a.cursor < len(a.path) {
		m.finder.Invalidate(a.path[a.cursor])
	}
	m.stuck.Add(context.Background(), 1)
	m.log.V(1).Info("agent stuck, replanning", "id", a.id, "tile", a.tile, "ticks", a.stuckTicks)
	m.replan(a)
}

// TileChanged invalidates cached paths through p and replans every agent
// whose remaining route crosses it.
func (m *Manager) TileChanged(p grid.Point) {
	m.TilesChanged([]grid.Point{p})
}

// TilesChanged is TileChanged for a batch of tiles. Each affected agent
// replans once.
func (m *Manager) TilesChanged(ps []grid.Point) {
	for _, p := range ps {
		m.finder.Invalidate(p)
	}
	for _, a := range m.order {
		route := a.remaining()
		for _, p := range ps {
			if routeTouches(route, p) {
				m.replan(a)
				break
			}
		}
	}
}

func (m *Manager) replan(a *Agent) {
	dest, ok := a.Destination()
	if !ok {
		return
	}
	m.replans.Add(context.Background(), 1)
	path, ok := m.findPath(a, dest)
	if !ok {
		m.log.V(1).Info("replan failed, dropping path", "id", a.id, "destination", dest)
		a.setPath(nil)
		return
	}
	a.setPath(path)
}

// findPath plans from the agent's origin. The agent's own occupancy mark is
// lifted for the search so it never blocks its own start tile.
func (m *Manager) findPath(a *Agent, goal grid.Point) ([]grid.Point, bool) {
	if m.cfg.MarkOccupancy && a.reserved >= 0 {
		held := m.store.Grid().PointAt(a.reserved)
		if m.store.ClearBlocked(held, a.id) {
			defer m.store.MarkBlocked(held, a.id)
		}
	}
	return m.finder.FindPath(a.origin(), goal, m.cfg.Class)
}

func routeTouches(route []grid.Point, p grid.Point) bool {
	for i, wp := range route {
		if wp == p {
			return true
		}
		if i == 0 {
			continue
		}
		if route[i-1].Manhattan(wp) > 1 {
			for _, t := range grid.Line(route[i-1], wp) {
				if t == p {
					return true
				}
			}
		}
	}
	return false
}

func (m *Manager) index(p grid.Point) int {
	return p.Y*m.store.Width() + p.X
}
