package grid

// Objective type identifiers used by layouts and the spawner.
const (
	ObjectiveDataCore     = "dataCore"
	ObjectiveKeyCard      = "keyCard"
	ObjectiveHackTerminal = "hackTerminal"
)

// Layout is the authored description of a level.
type Layout struct {
	Name          string  `json:"name,omitempty"`
	Width         int     `json:"width" jsonschema:"minimum=3"`
	Height        int     `json:"height" jsonschema:"minimum=3"`
	Obstacles     []Point `json:"obstacles,omitempty"`
	PlayerStart   *Point  `json:"playerStart,omitempty"`
	ExitZone      *Point  `json:"exitZone,omitempty"`
	DataCore      *Point  `json:"dataCore,omitempty"`
	KeyCard       *Point  `json:"keyCard,omitempty"`
	HackTerminal  *Point  `json:"hackTerminal,omitempty"`
	GuardPatrol   []Point `json:"guardPatrol,omitempty"`
	Cameras       []Point `json:"cameras,omitempty"`
	MotionSensors []Point `json:"motionSensors,omitempty"`
	LaserGrids    []Point `json:"laserGrids,omitempty"`
}

// Objective is a named objective position.
type Objective struct {
	Type string
	Pos  Point
}

// Objectives returns the objectives present in the layout in a fixed order.
func (l Layout) Objectives() []Objective {
	var out []Objective
	for _, o := range []struct {
		name string
		pos  *Point
	}{
		{ObjectiveDataCore, l.DataCore},
		{ObjectiveKeyCard, l.KeyCard},
		{ObjectiveHackTerminal, l.HackTerminal},
	} {
		if o.pos != nil {
			out = append(out, Objective{Type: o.name, Pos: *o.pos})
		}
	}
	return out
}

// SetObjective stores the position of the named objective. Unknown names are ignored.
func (l *Layout) SetObjective(name string, p Point) bool {
	pos := p
	switch name {
	case ObjectiveDataCore:
		l.DataCore = &pos
	case ObjectiveKeyCard:
		l.KeyCard = &pos
	case ObjectiveHackTerminal:
		l.HackTerminal = &pos
	default:
		return false
	}
	return true
}

// Hazards returns every camera, motion sensor and laser position.
func (l Layout) Hazards() []Point {
	out := make([]Point, 0, len(l.Cameras)+len(l.MotionSensors)+len(l.LaserGrids))
	out = append(out, l.Cameras...)
	out = append(out, l.MotionSensors...)
	out = append(out, l.LaserGrids...)
	return out
}
