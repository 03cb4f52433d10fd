package ui

import (
	"github.com/gdamore/tcell/v2"

	"github.com/samdwyer/stealthgrid/internal/grid"
	"github.com/samdwyer/stealthgrid/internal/leveldata"
	"github.com/samdwyer/stealthgrid/internal/movement"
)

// AgentGlyph is drawn at every agent's tile.
const AgentGlyph = 'G'

// Renderer draws a tile grid and agent positions to the screen.
type Renderer struct {
	screen   *Screen
	profiles *leveldata.ProfileRegistry
	tileSize float64
}

// NewRenderer creates a renderer. profiles may be nil, in which case
// walls and floors use fixed colors.
func NewRenderer(screen *Screen, profiles *leveldata.ProfileRegistry, tileSize float64) *Renderer {
	return &Renderer{screen: screen, profiles: profiles, tileSize: tileSize}
}

// Render draws the grid, then every agent on top, then the status line
// below the grid.
func (r *Renderer) Render(g *grid.Grid, agents []movement.Update, status string) {
	r.screen.Clear()

	for y := 0; y < g.Height(); y++ {
		for x := 0; x < g.Width(); x++ {
			t := g.At(grid.Pt(x, y))
			r.screen.SetContent(x, y, t.Rune(), r.tileStyle(t))
		}
	}

	agentStyle := tcell.StyleDefault.
		Foreground(tcell.ColorYellow).
		Bold(true)
	for _, a := range agents {
		p := grid.WorldToTile(a.X, a.Y, r.tileSize)
		if g.InBounds(p) {
			r.screen.SetContent(p.X, p.Y, AgentGlyph, agentStyle)
		}
	}

	r.RenderMessage(status, g.Height()+1)
	r.screen.Show()
}

// tileStyle returns the style for a tile type.
func (r *Renderer) tileStyle(t grid.TileType) tcell.Style {
	if r.profiles != nil {
		if c := r.profiles.Color(t); c != tcell.ColorDefault {
			return tcell.StyleDefault.Foreground(c)
		}
	}
	switch {
	case t.IsSolid():
		return tcell.StyleDefault.Foreground(tcell.ColorDarkGray)
	case t.IsFloorLike():
		return tcell.StyleDefault.Foreground(tcell.ColorGray)
	default:
		return tcell.StyleDefault
	}
}

// RenderMessage displays a message on row y.
func (r *Renderer) RenderMessage(msg string, y int) {
	style := tcell.StyleDefault.Foreground(tcell.ColorWhite)
	x := 0
	for _, ch := range msg {
		r.screen.SetContent(x, y, ch, style)
		x++
	}
}
