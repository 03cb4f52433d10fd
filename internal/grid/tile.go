// Package grid provides the navigation tile grid and its spatial queries.
package grid

// TileType identifies what occupies a single tile. Behavior beyond the
// built-in walkability rules is resolved through tile metadata.
type TileType uint8

const (
	// TileFloor is plain walkable floor.
	TileFloor TileType = iota
	// TileRoomFloor is floor inside a generated room.
	TileRoomFloor
	// TileCorridorFloor is floor on a generated corridor path.
	TileCorridorFloor
	// TileWall is an impassable wall.
	TileWall
	// TileObstacle is an impassable authored obstacle.
	TileObstacle
	// TileDoor is a walkable doorway.
	TileDoor
	// TileLockedDoor is a door nobody can pass.
	TileLockedDoor
	// TileWater is liquid only the player can wade through.
	TileWater
	// TileRestricted is floor guards will not enter.
	TileRestricted
	// TileStart marks the player start.
	TileStart
	// TileExit marks the exit zone.
	TileExit
	// TileObjectiveSlot marks a tile eligible for objective placement.
	TileObjectiveSlot
	// TileHazard marks a camera, sensor or laser emitter position.
	TileHazard

	tileTypeCount
)

// TileTypes lists every known tile type in declaration order.
func TileTypes() []TileType {
	types := make([]TileType, 0, tileTypeCount)
	for t := TileType(0); t < tileTypeCount; t++ {
		types = append(types, t)
	}
	return types
}

var tileNames = [...]string{
	TileFloor:         "floor",
	TileRoomFloor:     "room_floor",
	TileCorridorFloor: "corridor_floor",
	TileWall:          "wall",
	TileObstacle:      "obstacle",
	TileDoor:          "door",
	TileLockedDoor:    "locked_door",
	TileWater:         "water",
	TileRestricted:    "restricted",
	TileStart:         "start",
	TileExit:          "exit",
	TileObjectiveSlot: "objective_slot",
	TileHazard:        "hazard",
}

var tileRunes = [...]rune{
	TileFloor:         '.',
	TileRoomFloor:     '.',
	TileCorridorFloor: ',',
	TileWall:          '#',
	TileObstacle:      'O',
	TileDoor:          '+',
	TileLockedDoor:    'L',
	TileWater:         '~',
	TileRestricted:    'x',
	TileStart:         'S',
	TileExit:          'E',
	TileObjectiveSlot: '*',
	TileHazard:        '!',
}

// String returns the tile type's identifier.
func (t TileType) String() string {
	if int(t) < len(tileNames) {
		return tileNames[t]
	}
	return "unknown"
}

// ParseTileType returns the tile type with the given identifier.
func ParseTileType(name string) (TileType, bool) {
	for i, n := range tileNames {
		if n == name {
			return TileType(i), true
		}
	}
	return 0, false
}

// Rune returns the tile's display character.
func (t TileType) Rune() rune {
	if int(t) < len(tileRunes) {
		return tileRunes[t]
	}
	return '?'
}

// IsSolid reports whether the tile is a wall or obstacle.
func (t TileType) IsSolid() bool {
	return t == TileWall || t == TileObstacle
}

// IsFloorLike reports whether the tile is one of the floor variants.
func (t TileType) IsFloorLike() bool {
	switch t {
	case TileFloor, TileRoomFloor, TileCorridorFloor:
		return true
	default:
		return false
	}
}

// ActorClass distinguishes who is asking a walkability question.
type ActorClass uint8

const (
	// ActorPlayer is the player character.
	ActorPlayer ActorClass = iota
	// ActorAgent is any non-player agent such as a guard.
	ActorAgent
)

// String returns a human-readable class name.
func (c ActorClass) String() string {
	switch c {
	case ActorPlayer:
		return "player"
	case ActorAgent:
		return "agent"
	default:
		return "unknown"
	}
}

// WalkableBy applies the built-in walkability rules of the tile type.
func (t TileType) WalkableBy(class ActorClass) bool {
	switch t {
	case TileWall, TileObstacle, TileLockedDoor:
		return false
	case TileWater:
		return class == ActorPlayer
	case TileRestricted:
		return class == ActorPlayer
	default:
		return true
	}
}

// BlocksSight reports whether the tile type blocks line of sight on its own.
func (t TileType) BlocksSight() bool {
	return t == TileWall || t == TileObstacle || t == TileLockedDoor
}
