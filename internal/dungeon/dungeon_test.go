package dungeon

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

func generate(t *testing.T, cfg Config, seed int64) *Dungeon {
	t.Helper()
	d, err := NewGenerator(cfg, rand.New(rand.NewSource(seed))).Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate(seed=%d): %v", seed, err)
	}
	return d
}

// reachable counts walkable tiles reachable from start with 4-directional moves.
func reachable(g *grid.Grid, start grid.Point) int {
	seen := map[grid.Point]bool{start: true}
	queue := []grid.Point{start}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		for _, d := range grid.CardinalOffsets() {
			n := p.Add(d)
			if seen[n] || !g.IsWalkable(n, grid.ActorAgent) {
				continue
			}
			seen[n] = true
			queue = append(queue, n)
		}
	}
	return len(seen)
}

func TestDungeonReproducibility(t *testing.T) {
	// Generate two dungeons with the same seed
	seed := int64(12345)
	d1 := generate(t, DefaultConfig(), seed)
	d2 := generate(t, DefaultConfig(), seed)

	if len(d1.Rooms) != len(d2.Rooms) {
		t.Fatalf("Room count mismatch: %d != %d", len(d1.Rooms), len(d2.Rooms))
	}
	for i := range d1.Rooms {
		if d1.Rooms[i].Rect != d2.Rooms[i].Rect {
			t.Errorf("Room %d mismatch: %+v != %+v", i, d1.Rooms[i].Rect, d2.Rooms[i].Rect)
		}
	}
	if d1.Grid.String() != d2.Grid.String() {
		t.Error("Tiles differ for the same seed")
	}
}

func TestDungeonDifferentSeeds(t *testing.T) {
	d1 := generate(t, DefaultConfig(), 12345)
	d2 := generate(t, DefaultConfig(), 54321)

	// Very unlikely to be identical by chance
	if d1.Grid.String() == d2.Grid.String() {
		t.Error("Dungeons with different seeds should not be identical")
	}
}

func TestRoomsRespectPaddingAndBorder(t *testing.T) {
	cfg := DefaultConfig()
	for seed := int64(1); seed <= 20; seed++ {
		d := generate(t, cfg, seed)
		if len(d.Rooms) == 0 {
			t.Fatalf("seed %d: no rooms placed", seed)
		}
		for i, r := range d.Rooms {
			if r.ID != i {
				t.Errorf("seed %d: room %d has id %d", seed, i, r.ID)
			}
			if r.Width < cfg.MinRoomSize || r.Width > cfg.MaxRoomSize || r.Height < cfg.MinRoomSize || r.Height > cfg.MaxRoomSize {
				t.Errorf("seed %d: room %d size %dx%d out of range", seed, i, r.Width, r.Height)
			}
			inner := grid.Rect{X: 1, Y: 1, Width: cfg.Width - 2, Height: cfg.Height - 2}.Expand(-cfg.BorderPadding)
			if r.X < inner.X || r.Y < inner.Y || r.X+r.Width > inner.X+inner.Width || r.Y+r.Height > inner.Y+inner.Height {
				t.Errorf("seed %d: room %d %+v violates border padding", seed, i, r.Rect)
			}
			for j := i + 1; j < len(d.Rooms); j++ {
				if r.Expand(cfg.RoomPadding).Intersects(d.Rooms[j].Rect) {
					t.Errorf("seed %d: rooms %d and %d are closer than the padding", seed, i, j)
				}
			}
		}
	}
}

func TestDungeonIsFullyConnected(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		d := generate(t, DefaultConfig(), seed)
		walkable := d.Grid.Count(func(tt grid.TileType) bool { return tt.WalkableBy(grid.ActorAgent) })
		if got := reachable(d.Grid, d.Rooms[0].Center()); got != walkable {
			t.Errorf("seed %d: reached %d of %d walkable tiles\n%s", seed, got, walkable, d.Grid)
		}
		for _, r := range d.Rooms[1:] {
			if len(r.Connections) == 0 {
				t.Errorf("seed %d: room %d has no connections", seed, r.ID)
			}
		}
	}
}

func TestTilesAreReclassified(t *testing.T) {
	d := generate(t, DefaultConfig(), 7)
	if n := d.Grid.Count(func(tt grid.TileType) bool { return tt == grid.TileFloor }); n != 0 {
		t.Errorf("%d generic floor tiles left after reclassification", n)
	}
	for _, r := range d.Rooms {
		if got := d.Grid.At(r.Center()); got != grid.TileRoomFloor {
			t.Errorf("room %d center is %v, want room floor", r.ID, got)
		}
	}
	for _, c := range d.Corridors {
		for _, p := range c.Tiles {
			switch d.Grid.At(p) {
			case grid.TileCorridorFloor, grid.TileDoor, grid.TileRoomFloor:
			default:
				t.Errorf("corridor %d->%d tile %v is %v", c.From, c.To, p, d.Grid.At(p))
			}
		}
	}
	for x := 0; x < d.Grid.Width(); x++ {
		if d.Grid.At(grid.Pt(x, 0)) != grid.TileWall || d.Grid.At(grid.Pt(x, d.Grid.Height()-1)) != grid.TileWall {
			t.Fatalf("border breached at column %d", x)
		}
	}
}

func TestDoorChance(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DoorChance = 0
	d := generate(t, cfg, 99)
	if n := d.Grid.Count(func(tt grid.TileType) bool { return tt == grid.TileDoor }); n != 0 {
		t.Errorf("DoorChance 0 produced %d doors", n)
	}

	cfg.DoorChance = 1
	d = generate(t, cfg, 99)
	doors := 0
	for _, r := range d.Rooms {
		for _, p := range r.Doors {
			if d.Grid.At(p) != grid.TileDoor {
				t.Errorf("room %d door %v is %v", r.ID, p, d.Grid.At(p))
			}
			if d.RoomIndexAt(p) != -1 {
				t.Errorf("door %v lies inside a room", p)
			}
			doors++
		}
	}
	if len(d.Rooms) > 1 && doors == 0 {
		t.Error("DoorChance 1 produced no doors")
	}
}

func TestWideCorridors(t *testing.T) {
	cfg := DefaultConfig()
	narrow := generate(t, cfg, 3)
	cfg.WideCorridors = true
	wide := generate(t, cfg, 3)
	count := func(d *Dungeon) int {
		return d.Grid.Count(func(tt grid.TileType) bool { return tt.WalkableBy(grid.ActorAgent) })
	}
	if count(wide) <= count(narrow) {
		t.Errorf("wide corridors carved %d walkable tiles, narrow %d", count(wide), count(narrow))
	}
}

func TestInvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"tiny", func(c *Config) { c.Width, c.Height = 2, 2 }},
		{"inverted sizes", func(c *Config) { c.MinRoomSize, c.MaxRoomSize = 6, 3 }},
		{"room too large", func(c *Config) { c.Width, c.Height, c.MinRoomSize = 8, 8, 7 }},
		{"no target", func(c *Config) { c.TargetRooms = 0 }},
		{"negative padding", func(c *Config) { c.RoomPadding = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewGenerator(cfg, rand.New(rand.NewSource(1))).Generate(context.Background())
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSingleRoomLayout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 12, 12
	cfg.TargetRooms = 1
	d := generate(t, cfg, 5)
	if len(d.Rooms) != 1 || len(d.Corridors) != 0 {
		t.Fatalf("rooms=%d corridors=%d, want 1 and 0", len(d.Rooms), len(d.Corridors))
	}
	l := d.Layout()
	if l.PlayerStart == nil || l.ExitZone == nil {
		t.Fatal("layout is missing start or exit")
	}
	if *l.PlayerStart == *l.ExitZone {
		t.Error("start and exit share a tile")
	}
	if d.RoomIndexAt(*l.ExitZone) != 0 {
		t.Errorf("exit %v outside the room", *l.ExitZone)
	}
}

func TestGenerateAtLeast(t *testing.T) {
	cfg := DefaultConfig()
	d, seed, err := GenerateAtLeast(context.Background(), cfg, 42, 3, 10)
	if err != nil {
		t.Fatalf("GenerateAtLeast: %v", err)
	}
	if len(d.Rooms) < 3 || seed < 42 {
		t.Errorf("rooms=%d seed=%d", len(d.Rooms), seed)
	}

	_, _, err = GenerateAtLeast(context.Background(), cfg, 42, cfg.TargetRooms+1, 3)
	if !errors.Is(err, ErrTooFewRooms) {
		t.Errorf("unreachable minimum: err = %v, want ErrTooFewRooms", err)
	}

	cfg.TargetRooms = 0
	_, _, err = GenerateAtLeast(context.Background(), cfg, 42, 1, 5)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("invalid config: err = %v, want ErrInvalidConfig", err)
	}
}

func pairKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

func TestNoLoopsGivesSpanningTree(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopChance = 0
	for seed := int64(1); seed <= 20; seed++ {
		d := generate(t, cfg, seed)
		if want := len(d.Rooms) - 1; len(d.Corridors) != want {
			t.Errorf("seed %d: %d corridors for %d rooms, want %d", seed, len(d.Corridors), len(d.Rooms), want)
		}
		pairs := map[[2]int]bool{}
		for _, c := range d.Corridors {
			k := pairKey(c.From, c.To)
			if pairs[k] {
				t.Errorf("seed %d: rooms %v joined twice", seed, k)
			}
			pairs[k] = true
		}
	}
}

func TestLoopsJoinUnconnectedPairs(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LoopChance = 1
	checked := 0
	for seed := int64(1); seed <= 20; seed++ {
		d := generate(t, cfg, seed)
		if len(d.Rooms) < 3 {
			continue
		}
		checked++
		tree := len(d.Rooms) - 1
		loops := len(d.Corridors) - tree
		if loops < 1 || loops > 2 {
			t.Errorf("seed %d: %d loop corridors, want 1 or 2", seed, loops)
			continue
		}

		pairs := map[[2]int]bool{}
		for _, c := range d.Corridors[:tree] {
			pairs[pairKey(c.From, c.To)] = true
		}
		for _, c := range d.Corridors[tree:] {
			k := pairKey(c.From, c.To)
			if c.From == c.To || pairs[k] {
				t.Errorf("seed %d: loop %v duplicates an existing connection", seed, k)
			}
			pairs[k] = true
			if !d.Rooms[c.From].ConnectedTo(c.To) || !d.Rooms[c.To].ConnectedTo(c.From) {
				t.Errorf("seed %d: loop %v not recorded on both rooms", seed, k)
			}
		}
	}
	if checked == 0 {
		t.Fatal("no seed produced three rooms")
	}
}
