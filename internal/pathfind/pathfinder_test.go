package pathfind

import (
	"reflect"
	"testing"
	"time"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/tilemeta"
)

// storeFromRows builds a metadata store from ASCII rows: '#' wall, 'O' obstacle, '~' water.
func storeFromRows(t *testing.T, rows ...string) *tilemeta.Store {
	t.Helper()
	g, err := grid.NewFilled(len(rows[0]), len(rows), grid.TileFloor)
	if err != nil {
		t.Fatalf("grid: %v", err)
	}
	for y, row := range rows {
		for x, ch := range row {
			switch ch {
			case '#':
				g.Set(grid.Pt(x, y), grid.TileWall)
			case 'O':
				g.Set(grid.Pt(x, y), grid.TileObstacle)
			case '~':
				g.Set(grid.Pt(x, y), grid.TileWater)
			}
		}
	}
	return tilemeta.NewStore(g)
}

var mazeRows = []string{
	"##########",
	"#........#",
	"#.####...#",
	"#....#...#",
	"#.##.#.#.#",
	"#........#",
	"##########",
}

type fakeClock struct{ t time.Time }

func newFakeClock() *fakeClock { return &fakeClock{t: time.Unix(1000, 0)} }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func pathsEqual(a, b []grid.Point) bool { return reflect.DeepEqual(a, b) }

func newFinder(s *tilemeta.Store, cfg Config) *Pathfinder { return New(s, cfg) }

func TestFindPathEndpointsAndLegalSteps(t *testing.T) {
	s := storeFromRows(t, mazeRows...)
	pairs := [][2]grid.Point{
		{grid.Pt(1, 1), grid.Pt(8, 5)},
		{grid.Pt(2, 3), grid.Pt(6, 3)},
		{grid.Pt(4, 4), grid.Pt(8, 1)},
		{grid.Pt(1, 5), grid.Pt(1, 5)},
	}
	for _, diagonal := range []bool{true, false} {
		cfg := DefaultConfig()
		cfg.Diagonal = diagonal
		pf := newFinder(s, cfg)
		for _, pair := range pairs {
			path, ok := pf.FindPath(pair[0], pair[1], grid.ActorAgent)
			if !ok {
				t.Fatalf("diagonal=%v: no path %v -> %v", diagonal, pair[0], pair[1])
			}
			if path[0] != pair[0] || path[len(path)-1] != pair[1] {
				t.Errorf("diagonal=%v: path %v does not run %v -> %v", diagonal, path, pair[0], pair[1])
			}
			for i := 1; i < len(path); i++ {
				if !grid.IsLegalStep(s, path[i-1], path[i], grid.ActorAgent, diagonal) {
					t.Errorf("diagonal=%v: illegal step %v -> %v", diagonal, path[i-1], path[i])
				}
			}
		}
	}
}

func TestFindPathShortestCardinal(t *testing.T) {
	s := storeFromRows(t,
		"#######",
		"#.....#",
		"#.....#",
		"#######",
	)
	cfg := DefaultConfig()
	cfg.Diagonal = false
	path, ok := newFinder(s, cfg).FindPath(grid.Pt(1, 1), grid.Pt(5, 2), grid.ActorAgent)
	if !ok {
		t.Fatal("expected path")
	}
	if len(path) != 6 {
		t.Errorf("path length = %d, want 6 (5 steps)", len(path))
	}
}

func TestInfiniteCostChangesPath(t *testing.T) {
	s := storeFromRows(t, mazeRows...)
	pf := newFinder(s, DefaultConfig())
	start, goal := grid.Pt(1, 1), grid.Pt(8, 5)

	first, ok := pf.FindPath(start, goal, grid.ActorAgent)
	if !ok {
		t.Fatal("expected initial path")
	}
	blocked := first[len(first)/2]
	if err := s.SetOverride(blocked, tilemeta.Patch{AgentMoveCost: tilemeta.Some(tilemeta.Impassable)}); err != nil {
		t.Fatal(err)
	}
	if n := pf.Invalidate(blocked); n == 0 {
		t.Error("Invalidate should drop the cached path through the blocked tile")
	}

	second, ok := pf.FindPath(start, goal, grid.ActorAgent)
	if ok && pathsEqual(first, second) {
		t.Fatal("path through an impassable tile was returned again")
	}
	for _, p := range second {
		if p == blocked {
			t.Errorf("new path %v still traverses %v", second, blocked)
		}
	}
}

func TestCacheReturnsEqualCopies(t *testing.T) {
	s := storeFromRows(t, mazeRows...)
	pf := newFinder(s, DefaultConfig())

	a, _ := pf.FindPath(grid.Pt(1, 1), grid.Pt(8, 5), grid.ActorAgent)
	b, _ := pf.FindPath(grid.Pt(1, 1), grid.Pt(8, 5), grid.ActorAgent)
	if !pathsEqual(a, b) {
		t.Fatalf("cached path differs: %v vs %v", a, b)
	}
	a[1] = grid.Pt(99, 99)
	c, _ := pf.FindPath(grid.Pt(1, 1), grid.Pt(8, 5), grid.ActorAgent)
	if !pathsEqual(b, c) {
		t.Error("mutating a returned path leaked into the cache")
	}
	if pf.CacheLen() != 1 {
		t.Errorf("CacheLen = %d, want 1", pf.CacheLen())
	}
}

func TestCacheTTL(t *testing.T) {
	s := storeFromRows(t,
		"#######",
		"#.....#",
		"#.....#",
		"#######",
	)
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.Diagonal = false
	cfg.CacheTTL = time.Second
	pf := New(s, cfg, WithClock(clock.Now))

	first, _ := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 1), grid.ActorAgent)
	// Block the straight corridor without telling the pathfinder.
	s.SetTile(grid.Pt(3, 1), grid.TileObstacle)

	clock.Advance(500 * time.Millisecond)
	stale, _ := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 1), grid.ActorAgent)
	if !pathsEqual(first, stale) {
		t.Error("path within TTL should come from the cache")
	}

	clock.Advance(time.Second)
	fresh, ok := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 1), grid.ActorAgent)
	if !ok {
		t.Fatal("expected a detour")
	}
	for _, p := range fresh {
		if p == grid.Pt(3, 1) {
			t.Errorf("expired entry was reused: %v", fresh)
		}
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	s := storeFromRows(t,
		"##############",
		"#............#",
		"##############",
	)
	clock := newFakeClock()
	cfg := DefaultConfig()
	cfg.CacheSize = 10
	pf := New(s, cfg, WithClock(clock.Now))

	for x := 2; x <= 11; x++ {
		clock.Advance(time.Millisecond)
		if _, ok := pf.FindPath(grid.Pt(1, 1), grid.Pt(x, 1), grid.ActorAgent); !ok {
			t.Fatalf("no path to x=%d", x)
		}
	}
	if pf.CacheLen() != 10 {
		t.Fatalf("CacheLen = %d, want 10", pf.CacheLen())
	}
	clock.Advance(time.Millisecond)
	pf.FindPath(grid.Pt(1, 1), grid.Pt(12, 1), grid.ActorAgent)
	if pf.CacheLen() != 8 {
		t.Errorf("CacheLen after eviction = %d, want 8", pf.CacheLen())
	}
	if _, ok := pf.cache[cacheKey{start: pf.index(grid.Pt(1, 1)), goal: pf.index(grid.Pt(2, 1)), class: grid.ActorAgent}]; ok {
		t.Error("oldest entry should have been evicted")
	}
}

func TestUnwalkableGoalIsSubstituted(t *testing.T) {
	s := storeFromRows(t,
		"#######",
		"#.....#",
		"#...O.#",
		"#.....#",
		"#######",
	)
	path, ok := newFinder(s, DefaultConfig()).FindPath(grid.Pt(1, 1), grid.Pt(4, 2), grid.ActorAgent)
	if !ok {
		t.Fatal("expected substituted goal")
	}
	end := path[len(path)-1]
	if end.Manhattan(grid.Pt(4, 2)) != 1 {
		t.Errorf("substituted goal %v is not adjacent to the obstacle", end)
	}
}

func TestNoPathIsNotAnError(t *testing.T) {
	s := storeFromRows(t,
		"#######",
		"#..#..#",
		"#..#..#",
		"#######",
	)
	pf := newFinder(s, DefaultConfig())
	if path, ok := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 2), grid.ActorAgent); ok || path != nil {
		t.Errorf("expected failure, got %v", path)
	}
	if pf.CacheLen() != 0 {
		t.Error("failures should not be cached")
	}
	if _, ok := pf.FindPath(grid.Pt(-1, 1), grid.Pt(5, 2), grid.ActorAgent); ok {
		t.Error("out-of-bounds start should fail")
	}
}

func TestWaterOnlyBlocksAgents(t *testing.T) {
	s := storeFromRows(t,
		"#######",
		"#..~..#",
		"#######",
	)
	pf := newFinder(s, DefaultConfig())
	if _, ok := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 1), grid.ActorAgent); ok {
		t.Error("agents cannot wade through water")
	}
	if _, ok := pf.FindPath(grid.Pt(1, 1), grid.Pt(5, 1), grid.ActorPlayer); !ok {
		t.Error("the player may cross water")
	}
}

func TestIterationBudget(t *testing.T) {
	g, _ := grid.New(60, 60)
	s := tilemeta.NewStore(g)
	cfg := DefaultConfig()
	cfg.MaxIterations = 5
	if _, ok := New(s, cfg).FindPath(grid.Pt(1, 1), grid.Pt(58, 58), grid.ActorAgent); ok {
		t.Error("search should give up after the iteration budget")
	}
}

func TestSmoothing(t *testing.T) {
	s := storeFromRows(t,
		"#########",
		"#.......#",
		"#.......#",
		"#.......#",
		"#########",
	)
	cfg := DefaultConfig()
	cfg.Diagonal = false
	cfg.Smooth = true
	path, ok := New(s, cfg).FindPath(grid.Pt(1, 1), grid.Pt(7, 3), grid.ActorAgent)
	if !ok {
		t.Fatal("expected path")
	}
	if len(path) != 2 || path[0] != grid.Pt(1, 1) || path[1] != grid.Pt(7, 3) {
		t.Errorf("smoothed path = %v, want direct segment", path)
	}

	blocked := storeFromRows(t,
		"#########",
		"#.......#",
		"#...O...#",
		"#.......#",
		"#########",
	)
	path, ok = New(blocked, cfg).FindPath(grid.Pt(1, 2), grid.Pt(7, 2), grid.ActorAgent)
	if !ok {
		t.Fatal("expected path around obstacle")
	}
	for i := 1; i < len(path); i++ {
		if !grid.HasLineOfSight(blocked, path[i-1], path[i]) {
			t.Errorf("smoothed segment %v -> %v has no line of sight", path[i-1], path[i])
		}
	}
	if len(path) < 3 {
		t.Errorf("smoothed path %v should bend around the obstacle", path)
	}
}

func TestNextWaypoint(t *testing.T) {
	path := []grid.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 2}}
	tests := []struct {
		name    string
		current grid.Point
		want    grid.Point
		idx     int
	}{
		{"on path", grid.Pt(2, 1), grid.Pt(3, 1), 2},
		{"at end", grid.Pt(3, 2), grid.Pt(3, 2), 3},
		{"off path", grid.Pt(2, 4), grid.Pt(3, 2), 3},
		{"off path near start", grid.Pt(0, 1), grid.Pt(1, 1), 0},
	}
	for _, tt := range tests {
		got, idx, ok := NextWaypoint(path, tt.current)
		if !ok || got != tt.want || idx != tt.idx {
			t.Errorf("%s: NextWaypoint = %v,%d,%v want %v,%d", tt.name, got, idx, ok, tt.want, tt.idx)
		}
	}
	if _, _, ok := NextWaypoint(nil, grid.Pt(0, 0)); ok {
		t.Error("empty path should report false")
	}
}

func TestSimplify(t *testing.T) {
	path := []grid.Point{{X: 1, Y: 1}, {X: 2, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 2}, {X: 3, Y: 3}, {X: 4, Y: 4}, {X: 5, Y: 5}}
	want := []grid.Point{{X: 1, Y: 1}, {X: 3, Y: 1}, {X: 3, Y: 3}, {X: 5, Y: 5}}
	if got := Simplify(path); !pathsEqual(got, want) {
		t.Errorf("Simplify = %v, want %v", got, want)
	}
}

func TestHasLineOfSight(t *testing.T) {
	s := storeFromRows(t, mazeRows...)
	pf := newFinder(s, DefaultConfig())
	if !pf.HasLineOfSight(grid.Pt(1, 1), grid.Pt(8, 1)) {
		t.Error("top corridor should be visible end to end")
	}
	if pf.HasLineOfSight(grid.Pt(1, 1), grid.Pt(1, 5)) == pf.HasLineOfSight(grid.Pt(2, 1), grid.Pt(2, 5)) {
		t.Error("column 1 is open while column 2 is walled")
	}
}
