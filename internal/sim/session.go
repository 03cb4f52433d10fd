package sim

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"

	"github.com/samdwyer/stealthgrid/internal/config"
	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/leveldata"
	"github.com/samdwyer/stealthgrid/internal/movement"
	"github.com/samdwyer/stealthgrid/internal/pathfind"
	"github.com/samdwyer/stealthgrid/internal/telemetry"
	"github.com/samdwyer/stealthgrid/internal/tilemeta"
	"github.com/samdwyer/stealthgrid/internal/ui"
)

// ErrNoPatrol is returned when a layout has no guard patrol to preview.
var ErrNoPatrol = errors.New("layout has no guard patrol")

// FrameRate is the number of steps per second in Run.
const FrameRate = 30

// Session owns the navigation stack for one layout and moves guards along
// its patrol route.
type Session struct {
	layout  grid.Layout
	grid    *grid.Grid
	store   *tilemeta.Store
	finder  *pathfind.Pathfinder
	manager *movement.Manager
	guards  []string

	profiles   *leveldata.ProfileRegistry
	guardCount int
	tileSize   float64
	state      State
	ticks      int
	log        logr.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session's logger. It is passed on to every subsystem.
func WithLogger(l logr.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithProfiles applies tile profiles to the metadata store and colors the display.
func WithProfiles(r *leveldata.ProfileRegistry) Option {
	return func(s *Session) { s.profiles = r }
}

// WithGuards sets how many guards share the patrol route. They start
// evenly spaced along it.
func WithGuards(n int) Option {
	return func(s *Session) { s.guardCount = n }
}

// NewSession builds the grid, metadata, pathfinder and movement manager for
// layout and places guards on its patrol route.
func NewSession(ctx context.Context, cfg config.Config, layout grid.Layout, opts ...Option) (*Session, error) {
	tracer := telemetry.Tracer("sim")
	_, span := tracer.Start(ctx, "sim.init")
	defer span.End()

	s := &Session{layout: layout, guardCount: 1, log: logr.Discard(), tileSize: cfg.TileSize}
	for _, opt := range opts {
		opt(s)
	}
	if len(layout.GuardPatrol) == 0 {
		return nil, ErrNoPatrol
	}

	g, err := grid.FromLayout(layout)
	if err != nil {
		return nil, fmt.Errorf("build grid: %w", err)
	}
	s.grid = g
	s.store = tilemeta.NewStore(g, tilemeta.WithLogger(s.log.WithName("tilemeta")))
	if s.profiles != nil {
		if err := s.profiles.Apply(s.store); err != nil {
			return nil, fmt.Errorf("apply tile profiles: %w", err)
		}
	}
	s.finder = pathfind.New(s.store, cfg.Pathfind(), pathfind.WithLogger(s.log.WithName("pathfind")))
	s.manager, err = movement.NewManager(s.store, s.finder, cfg.MovementConfig(), movement.WithLogger(s.log.WithName("movement")))
	if err != nil {
		return nil, err
	}

	if err := s.placeGuards(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("sim.layout", layout.Name),
		attribute.Int("sim.guards", len(s.guards)),
		attribute.Int("sim.patrol_points", len(layout.GuardPatrol)),
	)
	s.log.V(0).Info("session ready", "layout", layout.Name, "guards", len(s.guards))
	return s, nil
}

func (s *Session) placeGuards() error {
	route := s.layout.GuardPatrol
	n := min(max(s.guardCount, 1), len(route))
	for i := 0; i < n; i++ {
		startIdx := i * len(route) / n
		start, ok := grid.FindNearestWalkable(s.store, route[startIdx], grid.ActorAgent, grid.DefaultNearestHops)
		if !ok {
			return fmt.Errorf("guard %d: no walkable tile near %v", i+1, route[startIdx])
		}
		id := fmt.Sprintf("guard-%d", i+1)
		if _, err := s.manager.AddAgent(id, start); err != nil {
			return err
		}
		// Each guard walks the same loop, beginning with the point after its start.
		rotated := make([]grid.Point, 0, len(route))
		rotated = append(rotated, route[(startIdx+1)%len(route):]...)
		rotated = append(rotated, route[:(startIdx+1)%len(route)]...)
		if err := s.manager.SetPatrol(id, rotated); err != nil {
			return err
		}
		if !s.manager.FollowPatrol(id) {
			s.log.V(1).Info("guard cannot reach first patrol point", "guard", id, "target", rotated[0])
		}
		s.guards = append(s.guards, id)
	}
	return nil
}

// Step advances the session by dt seconds and returns every guard's position.
// Guards that reached their patrol point head for the next one.
func (s *Session) Step(dt float64) []movement.Update {
	if s.state == StatePaused {
		return s.manager.Positions()
	}
	s.ticks++
	updates := s.manager.Tick(dt)
	for _, u := range updates {
		if !u.Arrived {
			continue
		}
		s.manager.AdvancePatrol(u.ID)
		if !s.manager.FollowPatrol(u.ID) {
			s.log.V(1).Info("patrol point unreachable, skipping", "guard", u.ID)
		}
	}
	return updates
}

// TogglePause switches between running and paused.
func (s *Session) TogglePause() {
	if s.state == StatePaused {
		s.state = StateRunning
	} else {
		s.state = StatePaused
	}
}

// ToggleObstacle places or removes an obstacle at p. Guards whose routes
// cross p replan.
func (s *Session) ToggleObstacle(p grid.Point) bool {
	switch t := s.grid.At(p); {
	case t == grid.TileObstacle:
		return s.store.SetTile(p, grid.TileFloor)
	case t.IsFloorLike():
		return s.store.SetTile(p, grid.TileObstacle)
	}
	return false
}

// State returns the session state.
func (s *Session) State() State { return s.state }

// Ticks returns the number of steps taken while running.
func (s *Session) Ticks() int { return s.ticks }

// Guards returns the guard ids in placement order.
func (s *Session) Guards() []string {
	out := make([]string, len(s.guards))
	copy(out, s.guards)
	return out
}

// Grid returns the session's tile grid.
func (s *Session) Grid() *grid.Grid { return s.grid }

// Store returns the tile metadata store.
func (s *Session) Store() *tilemeta.Store { return s.store }

// Manager returns the movement manager.
func (s *Session) Manager() *movement.Manager { return s.manager }

// Run draws the session on screen at FrameRate until ctx is done or the
// user quits.
func (s *Session) Run(ctx context.Context, screen *ui.Screen) error {
	renderer := ui.NewRenderer(screen, s.profiles, s.tileSize)
	events := screen.Events()
	ticker := time.NewTicker(time.Second / FrameRate)
	defer ticker.Stop()

	dt := 1.0 / FrameRate
	updates := s.manager.Positions()
	cursor := grid.Pt(s.grid.Width()/2, s.grid.Height()/2)
	for {
		renderer.Render(s.grid, updates, s.status(cursor))
		screen.SetContent(cursor.X, cursor.Y, 'X', tcell.StyleDefault.Foreground(tcell.ColorRed))
		screen.Show()

		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if s.handleEvent(ev, screen, &cursor) {
				return nil
			}
		case <-ticker.C:
			updates = s.Step(dt)
		}
	}
}

func (s *Session) status(cursor grid.Point) string {
	return fmt.Sprintf("%s  tick %d  guards %d  cursor (%d,%d)  [arrows] move  [o] obstacle  [space] pause  [q] quit",
		s.state, s.ticks, len(s.guards), cursor.X, cursor.Y)
}

// handleEvent processes a single input event and reports whether to quit.
func (s *Session) handleEvent(ev tcell.Event, screen *ui.Screen, cursor *grid.Point) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()
	case *tcell.EventKey:
		move := func(dx, dy int) {
			if p := grid.Pt(cursor.X+dx, cursor.Y+dy); s.grid.InBounds(p) {
				*cursor = p
			}
		}
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return true
		case tcell.KeyUp:
			move(0, -1)
		case tcell.KeyDown:
			move(0, 1)
		case tcell.KeyLeft:
			move(-1, 0)
		case tcell.KeyRight:
			move(1, 0)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q', 'Q':
				return true
			case ' ':
				s.TogglePause()
			case 'o', 'O':
				s.ToggleObstacle(*cursor)
			}
		}
	}
	return false
}
