package validate

import (
	"context"
	"testing"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/tilemeta"
)

func pt(x, y int) *grid.Point {
	p := grid.Pt(x, y)
	return &p
}

// gridFromRows builds a grid from '#' walls, '~' water, 'D' doors and '.' floor.
func gridFromRows(t *testing.T, rows ...string) *grid.Grid {
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
			case '~':
				g.Set(grid.Pt(x, y), grid.TileWater)
			case 'D':
				g.Set(grid.Pt(x, y), grid.TileDoor)
			case 'S':
				g.Set(grid.Pt(x, y), grid.TileObjectiveSlot)
			}
		}
	}
	return g
}

func TestSingleRoomFullyConnected(t *testing.T) {
	g, err := grid.New(7, 7)
	if err != nil {
		t.Fatal(err)
	}
	res := New(DefaultConfig()).CheckConnectivity(g)
	if !res.Valid {
		t.Fatalf("errors: %v", res.Errors)
	}
	if res.Stats["connectivity_percent"] != 100 || res.Stats["disconnected_tiles"] != 0 {
		t.Errorf("stats = %v", res.Stats)
	}
	if len(res.Disconnected) != 0 {
		t.Errorf("disconnected sample = %v", res.Disconnected)
	}
}

func TestSeparatedRoomsReportDisconnected(t *testing.T) {
	g := gridFromRows(t,
		"#########",
		"#...#...#",
		"#...#...#",
		"#########",
	)
	res := New(DefaultConfig()).CheckConnectivity(g)
	if res.Valid || !res.HasError(CodeDisconnected) {
		t.Fatalf("expected a disconnected error, got %+v", res)
	}
	if res.Stats["disconnected_tiles"] < 1 || res.Stats["connectivity_percent"] != 50 {
		t.Errorf("stats = %v", res.Stats)
	}
	if len(res.Disconnected) == 0 || res.Disconnected[0] != grid.Pt(5, 1) {
		t.Errorf("sample = %v", res.Disconnected)
	}
}

func TestDisconnectedSampleIsCapped(t *testing.T) {
	g := gridFromRows(t,
		"##########",
		"#.#......#",
		"#.#......#",
		"##########",
	)
	cfg := DefaultConfig()
	cfg.DisconnectedSamples = 3
	res := New(cfg).CheckConnectivity(g)
	if len(res.Disconnected) != 3 || res.Stats["disconnected_tiles"] != 12 {
		t.Errorf("sample=%d disconnected=%v", len(res.Disconnected), res.Stats["disconnected_tiles"])
	}
}

func TestNoWalkableTiles(t *testing.T) {
	g, _ := grid.NewFilled(4, 4, grid.TileWall)
	res := New(DefaultConfig()).CheckConnectivity(g)
	if res.Valid || !res.HasError(CodeNoWalkable) {
		t.Errorf("expected no-walkable error, got %+v", res.Errors)
	}
}

func TestRoomWithDoorToExit(t *testing.T) {
	g := gridFromRows(t,
		"#########",
		"#.....#.#",
		"#.....#.#",
		"#.....D.#",
		"#.....#.#",
		"#.....#.#",
		"#########",
	)
	l := grid.Layout{Width: 9, Height: 7, PlayerStart: pt(3, 3), ExitZone: pt(7, 3)}
	res := New(DefaultConfig()).Validate(context.Background(), g, l)
	if !res.Valid || len(res.Errors) != 0 {
		t.Fatalf("valid=%v errors=%v", res.Valid, res.Errors)
	}
	want := float64(l.PlayerStart.Manhattan(*l.ExitZone))
	if got := res.Stats["path_length_"+RoleExit]; got != want {
		t.Errorf("path length = %v, want %v", got, want)
	}
}

func TestDeclaredPositionsMustBeWalkable(t *testing.T) {
	g := gridFromRows(t,
		"#######",
		"#.....#",
		"#.#...#",
		"#.....#",
		"#######",
	)
	l := grid.Layout{
		Width: 7, Height: 5,
		PlayerStart: pt(1, 1),
		ExitZone:    pt(2, 2),
		DataCore:    pt(9, 9),
		GuardPatrol: []grid.Point{{X: 3, Y: 1}, {X: 0, Y: 0}},
	}
	res := New(DefaultConfig()).CheckWalkability(g, l)
	if res.Valid {
		t.Fatal("expected errors")
	}
	roles := map[string]string{}
	for _, e := range res.Errors {
		roles[e.Role] = e.Code
		if e.Point == nil {
			t.Errorf("error %v has no coordinate", e)
		}
	}
	if roles[RoleExit] != CodeNotWalkable {
		t.Errorf("exit error = %q", roles[RoleExit])
	}
	if roles[grid.ObjectiveDataCore] != CodeOutOfBounds {
		t.Errorf("data core error = %q", roles[grid.ObjectiveDataCore])
	}
	if roles["guardPatrol[1]"] != CodeNotWalkable {
		t.Errorf("patrol error = %q", roles["guardPatrol[1]"])
	}
	if _, ok := roles["guardPatrol[0]"]; ok {
		t.Error("walkable patrol point reported")
	}
}

func TestMissingPathIsAnError(t *testing.T) {
	g := gridFromRows(t,
		"#########",
		"#...#...#",
		"#...#...#",
		"#########",
	)
	l := grid.Layout{Width: 9, Height: 4, PlayerStart: pt(1, 1), ExitZone: pt(7, 1), KeyCard: pt(2, 2)}
	res := New(DefaultConfig()).CheckWalkability(g, l)
	if !res.HasError(CodeNoPath) {
		t.Fatalf("expected no_path error, got %v", res.Errors)
	}
	if got := res.Stats["path_length_"+grid.ObjectiveKeyCard]; got != 2 {
		t.Errorf("key card path length = %v, want 2", got)
	}
}

func TestPathUsesActorClass(t *testing.T) {
	g := gridFromRows(t,
		"#######",
		"#..~..#",
		"#######",
	)
	l := grid.Layout{Width: 7, Height: 3, PlayerStart: pt(1, 1), ExitZone: pt(5, 1)}
	if res := New(DefaultConfig()).CheckWalkability(g, l); !res.Valid {
		t.Errorf("player should wade through water: %v", res.Errors)
	}
	cfg := DefaultConfig()
	cfg.Class = grid.ActorAgent
	if res := New(cfg).CheckWalkability(g, l); !res.HasError(CodeNoPath) {
		t.Errorf("agent should not find a path across water: %v", res.Errors)
	}
}

func TestObjectiveSlotChecks(t *testing.T) {
	g := gridFromRows(t,
		"##########",
		"#S.......#",
		"#........#",
		"#.....S..#",
		"#........#",
		"##########",
	)
	l := grid.Layout{
		Width: 10, Height: 6,
		DataCore:     pt(1, 1),
		KeyCard:      pt(3, 2),
		HackTerminal: pt(6, 3),
	}
	rooms := []grid.Rect{{X: 4, Y: 2, Width: 4, Height: 3}}
	res := New(DefaultConfig()).CheckObjectiveSlots(g, l, rooms)
	if !res.Valid {
		t.Fatalf("warnings only expected, got errors %v", res.Errors)
	}
	if res.Stats["objective_slots"] != 2 || res.Stats["objectives"] != 3 {
		t.Errorf("stats = %v", res.Stats)
	}
	for _, code := range []string{CodeLowClearance, CodeOutsideRoom, CodeObjectiveSpacing} {
		if !res.HasWarning(code) {
			t.Errorf("missing %s warning in %v", code, res.Warnings)
		}
	}
	for _, w := range res.Warnings {
		if w.Code == CodeOutsideRoom && w.Role == grid.ObjectiveHackTerminal {
			t.Error("hack terminal lies inside the room")
		}
	}
}

func TestRequiredObjectives(t *testing.T) {
	g, _ := grid.New(6, 6)
	cfg := DefaultConfig()
	cfg.RequiredObjectives = []string{grid.ObjectiveDataCore, grid.ObjectiveKeyCard}
	l := grid.Layout{Width: 6, Height: 6, DataCore: pt(2, 2)}
	res := New(cfg).CheckObjectiveSlots(g, l, nil)
	if !res.HasError(CodeMissingObjective) || len(res.Errors) != 1 || res.Errors[0].Role != grid.ObjectiveKeyCard {
		t.Errorf("errors = %v", res.Errors)
	}
}

func TestValidateDeduplicatesAndUsesMetadata(t *testing.T) {
	g, _ := grid.New(8, 5)
	store := tilemeta.NewStore(g)
	if err := store.SetOverride(grid.Pt(4, 2), tilemeta.Patch{WalkableByPlayer: tilemeta.Some(false)}); err != nil {
		t.Fatal(err)
	}
	l := grid.Layout{Width: 8, Height: 5, PlayerStart: pt(1, 1), HackTerminal: pt(4, 2)}
	res := New(DefaultConfig()).Validate(context.Background(), store, l)
	n := 0
	for _, e := range res.Errors {
		if e.Code == CodeNotWalkable && e.Role == grid.ObjectiveHackTerminal {
			n++
		}
	}
	if n != 1 {
		t.Errorf("not_walkable reported %d times for the override, want 1: %v", n, res.Errors)
	}
}
