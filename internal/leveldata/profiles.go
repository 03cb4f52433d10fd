package leveldata

import (
	"errors"
	"fmt"

	"github.com/gdamore/tcell/v2"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/tilemeta"
)

// TileProfile is the authored description of one tile type: its display
// color and the metadata fields that differ from the built-in defaults.
type TileProfile struct {
	Type              string   `json:"type"`
	Color             string   `json:"color"`
	Tag               string   `json:"tag,omitempty"`
	WalkableByPlayer  *bool    `json:"walkableByPlayer,omitempty"`
	WalkableByAgent   *bool    `json:"walkableByAgent,omitempty"`
	BlocksLineOfSight *bool    `json:"blocksLineOfSight,omitempty"`
	AgentMoveCost     *float64 `json:"agentMoveCost,omitempty"`
}

// Patch converts the profile's metadata fields into a type modifier.
func (p TileProfile) Patch() tilemeta.Patch {
	var patch tilemeta.Patch
	if p.Tag != "" {
		patch.Tag = tilemeta.Some(p.Tag)
	}
	if p.WalkableByPlayer != nil {
		patch.WalkableByPlayer = tilemeta.Some(*p.WalkableByPlayer)
	}
	if p.WalkableByAgent != nil {
		patch.WalkableByAgent = tilemeta.Some(*p.WalkableByAgent)
	}
	if p.BlocksLineOfSight != nil {
		patch.BlocksLineOfSight = tilemeta.Some(*p.BlocksLineOfSight)
	}
	if p.AgentMoveCost != nil {
		patch.AgentMoveCost = tilemeta.Some(*p.AgentMoveCost)
	}
	return patch
}

// LoadTileProfiles loads the embedded tiles.json.
func LoadTileProfiles() ([]TileProfile, error) {
	return Load[[]TileProfile]("tiles.json")
}

// ProfileRegistry holds tile profiles indexed by tile type.
type ProfileRegistry struct {
	profiles map[grid.TileType]TileProfile
	colors   map[grid.TileType]tcell.Color
}

// NewProfileRegistry creates a registry from loaded profiles. Every profile
// must name a known tile type and carry a valid color.
func NewProfileRegistry(profiles []TileProfile) (*ProfileRegistry, error) {
	r := &ProfileRegistry{
		profiles: make(map[grid.TileType]TileProfile, len(profiles)),
		colors:   make(map[grid.TileType]tcell.Color, len(profiles)),
	}
	for _, p := range profiles {
		t, ok := grid.ParseTileType(p.Type)
		if !ok {
			return nil, fmt.Errorf("tile profile: unknown tile type %q", p.Type)
		}
		color, err := ParseHexColor(p.Color)
		if err != nil {
			return nil, fmt.Errorf("tile profile %s: %w", p.Type, err)
		}
		r.profiles[t] = p
		r.colors[t] = color
	}
	return r, nil
}

// LoadProfileRegistry loads and creates a registry from the embedded tiles.json.
func LoadProfileRegistry() (*ProfileRegistry, error) {
	profiles, err := LoadTileProfiles()
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, errors.New("no tile profiles loaded from tiles.json")
	}
	return NewProfileRegistry(profiles)
}

// MustLoadProfileRegistry loads a registry, panicking on error.
func MustLoadProfileRegistry() *ProfileRegistry {
	registry, err := LoadProfileRegistry()
	if err != nil {
		panic(err)
	}
	return registry
}

// Get returns the profile of a tile type.
func (r *ProfileRegistry) Get(t grid.TileType) (TileProfile, bool) {
	p, ok := r.profiles[t]
	return p, ok
}

// Color returns the display color of a tile type, or tcell.ColorDefault.
func (r *ProfileRegistry) Color(t grid.TileType) tcell.Color {
	if c, ok := r.colors[t]; ok {
		return c
	}
	return tcell.ColorDefault
}

// Count returns the number of profiles in the registry.
func (r *ProfileRegistry) Count() int {
	return len(r.profiles)
}

// Apply installs every profile's metadata as a type modifier on store.
// Profiles without metadata fields are skipped.
func (r *ProfileRegistry) Apply(store *tilemeta.Store) error {
	for _, t := range grid.TileTypes() {
		p, ok := r.profiles[t]
		if !ok {
			continue
		}
		patch := p.Patch()
		if patch.IsEmpty() {
			continue
		}
		if err := store.SetTypeModifier(t, patch); err != nil {
			return err
		}
	}
	return nil
}
