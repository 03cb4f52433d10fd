// Package validate checks tile grids and layouts for connectivity,
// reachability and objective placement problems.
package validate

import (
	"fmt"

	"github.com/samdwyer/stealthgrid/internal/grid"
)

// Issue codes.
const (
	CodeNoWalkable       = "no_walkable_tiles"
	CodeDisconnected     = "disconnected"
	CodeNotWalkable      = "not_walkable"
	CodeOutOfBounds      = "out_of_bounds"
	CodeNoPath           = "no_path"
	CodeMissingObjective = "missing_objective"
	CodeOutsideRoom      = "outside_room"
	CodeLowClearance     = "low_clearance"
	CodeObjectiveSpacing = "objective_spacing"
	CodeTooClose         = "too_close"
	CodeNotInterior      = "not_interior"
)

// Issue is a single validation finding.
type Issue struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Role    string      `json:"role,omitempty"`
	Point   *grid.Point `json:"point,omitempty"`
}

func (i Issue) String() string {
	if i.Point != nil {
		return fmt.Sprintf("%s at (%d,%d): %s", i.Code, i.Point.X, i.Point.Y, i.Message)
	}
	return fmt.Sprintf("%s: %s", i.Code, i.Message)
}

// Result collects the outcome of one or more checks. Valid is false as soon
// as any error is recorded; warnings never affect it.
type Result struct {
	Valid    bool               `json:"valid"`
	Errors   []Issue            `json:"errors"`
	Warnings []Issue            `json:"warnings"`
	Stats    map[string]float64 `json:"stats"`

	// Disconnected holds a sample of walkable tiles unreachable from the flood-fill seed.
	Disconnected []grid.Point `json:"disconnected,omitempty"`
}

// NewResult returns an empty, valid result.
func NewResult() Result {
	return Result{
		Valid:    true,
		Errors:   []Issue{},
		Warnings: []Issue{},
		Stats:    map[string]float64{},
	}
}

// AddError records a blocking issue.
func (r *Result) AddError(code, role string, p *grid.Point, format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, newIssue(code, role, p, format, args...))
}

// AddWarning records a non-blocking issue.
func (r *Result) AddWarning(code, role string, p *grid.Point, format string, args ...any) {
	r.Warnings = append(r.Warnings, newIssue(code, role, p, format, args...))
}

// Merge folds other into r. Validity is the logical AND of both.
func (r *Result) Merge(other Result) {
	r.Valid = r.Valid && other.Valid
	r.Errors = appendUnique(r.Errors, other.Errors)
	r.Warnings = appendUnique(r.Warnings, other.Warnings)
	if r.Stats == nil {
		r.Stats = map[string]float64{}
	}
	for k, v := range other.Stats {
		r.Stats[k] = v
	}
	r.Disconnected = append(r.Disconnected, other.Disconnected...)
}

// appendUnique appends issues not already present with the same code, role and point.
func appendUnique(dst, src []Issue) []Issue {
	for _, i := range src {
		dup := false
		for _, d := range dst {
			if d.Code == i.Code && d.Role == i.Role && samePoint(d.Point, i.Point) {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, i)
		}
	}
	return dst
}

func samePoint(a, b *grid.Point) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// HasError reports whether an error with the given code was recorded.
func (r Result) HasError(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	return false
}

// HasWarning reports whether a warning with the given code was recorded.
func (r Result) HasWarning(code string) bool {
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func newIssue(code, role string, p *grid.Point, format string, args ...any) Issue {
	i := Issue{Code: code, Role: role, Message: fmt.Sprintf(format, args...)}
	if p != nil {
		pt := *p
		i.Point = &pt
	}
	return i
}
