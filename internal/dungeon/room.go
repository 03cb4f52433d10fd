package dungeon

import "github.com/samdwyer/stealthgrid/internal/grid"

// Room represents a rectangular room in the dungeon.
type Room struct {
	ID int
	grid.Rect
	Doors       []grid.Point // door tiles just outside the room boundary
	Connections []int        // ids of rooms joined to this one by a corridor
}

// ConnectedTo reports whether a corridor joins this room to room id.
func (r Room) ConnectedTo(id int) bool {
	for _, c := range r.Connections {
		if c == id {
			return true
		}
	}
	return false
}

// Corridor is a carved passage between two rooms.
type Corridor struct {
	From, To int          // endpoint room ids
	Tiles    []grid.Point // carved tiles outside both endpoint rooms
	Doors    []grid.Point
}

// Dungeon is the output of a generation run.
type Dungeon struct {
	Grid      *grid.Grid
	Rooms     []Room
	Corridors []Corridor
}

// RoomIndexAt returns the index of the room containing p, or -1 if not in a room.
func (d *Dungeon) RoomIndexAt(p grid.Point) int {
	for i, room := range d.Rooms {
		if room.Contains(p) {
			return i
		}
	}
	return -1
}

// RoomRects returns the footprint of every room.
func (d *Dungeon) RoomRects() []grid.Rect {
	out := make([]grid.Rect, len(d.Rooms))
	for i, r := range d.Rooms {
		out[i] = r.Rect
	}
	return out
}

// Layout describes the generated dungeon in the authored layout format.
// The player starts in the first room, the exit sits in the last room and
// guards patrol the centers of the rooms in between.
func (d *Dungeon) Layout() grid.Layout {
	l := grid.Layout{Width: d.Grid.Width(), Height: d.Grid.Height()}
	if len(d.Rooms) == 0 {
		return l
	}
	start := d.Rooms[0].Center()
	l.PlayerStart = &start
	last := d.Rooms[len(d.Rooms)-1]
	exit := last.Center()
	if len(d.Rooms) == 1 {
		exit = grid.Pt(last.X+last.Width-1, last.Y+last.Height-1)
	}
	l.ExitZone = &exit
	for _, r := range d.Rooms[1:] {
		if r.ID == last.ID {
			continue
		}
		l.GuardPatrol = append(l.GuardPatrol, r.Center())
	}
	return l
}
