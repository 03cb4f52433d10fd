// Package movement moves agents between tile centers along planned paths.
package movement

import (
	"fmt"
	"math"
	"strings"
)

// Easing shapes segment progress before it is applied to position.
type Easing int

const (
	// EaseLinear moves at constant speed.
	EaseLinear Easing = iota
	// EaseOutCubic decelerates into each tile.
	EaseOutCubic
	// EaseInOutCubic accelerates out of and decelerates into each tile.
	EaseInOutCubic
)

// String returns the easing's configuration name.
func (e Easing) String() string {
	switch e {
	case EaseLinear:
		return "linear"
	case EaseOutCubic:
		return "ease-out-cubic"
	case EaseInOutCubic:
		return "ease-in-out-cubic"
	default:
		return "unknown"
	}
}

// ParseEasing returns the easing with the given configuration name.
func ParseEasing(name string) (Easing, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return EaseLinear, nil
	case "ease-out-cubic":
		return EaseOutCubic, nil
	case "ease-in-out-cubic":
		return EaseInOutCubic, nil
	default:
		return EaseLinear, fmt.Errorf("unknown easing %q", name)
	}
}

// Apply maps linear progress t in [0,1] to eased progress in [0,1].
func (e Easing) Apply(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	switch e {
	case EaseOutCubic:
		return 1 - math.Pow(1-t, 3)
	case EaseInOutCubic:
		if t < 0.5 {
			return 4 * t * t * t
		}
		return 1 - math.Pow(-2*t+2, 3)/2
	default:
		return t
	}
}
