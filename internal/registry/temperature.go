package registry

import (
	"fmt"
	"math"
)

// TemperatureConstraint describes the allowed shape of a model's sampling
// temperature (spec.md §3, §4.B). Fixed/Range/Discrete are the three shapes
// every model falls into.
type TemperatureConstraint interface {
	// Validate reports whether t is an admissible temperature for this model.
	Validate(t float64) bool
	// Correct returns the nearest admissible temperature to t.
	Correct(t float64) float64
	// Default returns the temperature to use when the caller specified none.
	Default() float64
	// Describe returns a human-readable description, used in warning logs.
	Describe() string
}

// Fixed constrains a model to exactly one temperature value (e.g. some
// reasoning models that ignore sampling entirely).
type Fixed struct {
	Value float64
}

func (f Fixed) Validate(t float64) bool { return t == f.Value }
func (f Fixed) Correct(t float64) float64 { return f.Value }
func (f Fixed) Default() float64          { return f.Value }
func (f Fixed) Describe() string {
	return fmt.Sprintf("Only supports temperature=%g", f.Value)
}

// Range constrains a model to a closed interval [Low, High] with a Default.
type Range struct {
	Low, High, DefaultValue float64
}

func (r Range) Validate(t float64) bool { return t >= r.Low && t <= r.High }

func (r Range) Correct(t float64) float64 {
	return math.Max(r.Low, math.Min(r.High, t))
}

func (r Range) Default() float64 { return r.DefaultValue }

func (r Range) Describe() string {
	return fmt.Sprintf("Supports temperature in [%g, %g]", r.Low, r.High)
}

// Discrete constrains a model to a finite, sorted set of admissible values.
type Discrete struct {
	Values       []float64 // must be sorted ascending
	DefaultValue float64
}

func (d Discrete) Validate(t float64) bool {
	for _, v := range d.Values {
		if v == t {
			return true
		}
	}
	return false
}

// Correct returns the element of Values minimizing |t - v|; ties resolve to
// the lower value, per spec.md §4.B.
func (d Discrete) Correct(t float64) float64 {
	if len(d.Values) == 0 {
		return t
	}
	best := d.Values[0]
	bestDist := math.Abs(t - best)
	for _, v := range d.Values[1:] {
		dist := math.Abs(t - v)
		if dist < bestDist {
			best, bestDist = v, dist
		}
		// dist == bestDist: keep the earlier (lower, since Values is sorted) value.
	}
	return best
}

func (d Discrete) Default() float64 { return d.DefaultValue }

func (d Discrete) Describe() string {
	return fmt.Sprintf("Supports temperatures %v", d.Values)
}

// Resolve applies spec.md §4.B's 3-step correction policy: use the default
// when requested is nil, else validate-or-correct, returning the final
// temperature and whether a correction (and therefore a warning) occurred.
func Resolve(constraint TemperatureConstraint, requested *float64) (value float64, corrected bool) {
	if requested == nil {
		return constraint.Default(), false
	}
	if constraint.Validate(*requested) {
		return *requested, false
	}
	return constraint.Correct(*requested), true
}
