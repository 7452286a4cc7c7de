package airquality

import (
	"fmt"
	"math"
	"sort"
)

// AQI category labels.
const (
	Good                        = "Good"
	Moderate                    = "Moderate"
	UnhealthyForSensitiveGroups = "Unhealthy for Sensitive Groups"
	Unhealthy                   = "Unhealthy"
	VeryUnhealthy               = "Very Unhealthy"
	Hazardous                   = "Hazardous"
)

// Breakpoint maps AQI values up to and including Max onto Label.
type Breakpoint struct {
	Max   float64 `mapstructure:"max" yaml:"max"`
	Label string  `mapstructure:"label" yaml:"label"`
}

// DefaultBreakpoints returns the EPA AQI breakpoints. Values above the last
// breakpoint fall into DefaultOverflow.
func DefaultBreakpoints() []Breakpoint {
	return []Breakpoint{
		{Max: 50, Label: Good},
		{Max: 100, Label: Moderate},
		{Max: 150, Label: UnhealthyForSensitiveGroups},
		{Max: 200, Label: Unhealthy},
		{Max: 300, Label: VeryUnhealthy},
	}
}

// DefaultOverflow is the category for AQI values above every breakpoint.
const DefaultOverflow = Hazardous

// Scale is an immutable AQI categorization.
type Scale struct {
	breakpoints []Breakpoint
	overflow    string
}

// NewScale validates that breakpoints are strictly increasing and labelled.
func NewScale(breakpoints []Breakpoint, overflow string) (Scale, error) {
	if len(breakpoints) == 0 {
		return Scale{}, fmt.Errorf("aqi scale: no breakpoints")
	}
	if overflow == "" {
		return Scale{}, fmt.Errorf("aqi scale: overflow label is required")
	}
	bps := make([]Breakpoint, len(breakpoints))
	copy(bps, breakpoints)
	for i, bp := range bps {
		if bp.Label == "" {
			return Scale{}, fmt.Errorf("aqi scale: breakpoint %d has no label", i+1)
		}
		if i > 0 && bp.Max <= bps[i-1].Max {
			return Scale{}, fmt.Errorf("aqi scale: breakpoints must increase (%v after %v)", bp.Max, bps[i-1].Max)
		}
	}
	return Scale{breakpoints: bps, overflow: overflow}, nil
}

// DefaultScale returns the EPA scale.
func DefaultScale() Scale {
	s, err := NewScale(DefaultBreakpoints(), DefaultOverflow)
	if err != nil {
		panic(err)
	}
	return s
}

// Categorize returns the category for an AQI value. Boundary values resolve to
// the lower category.
func (s Scale) Categorize(aqi float64) string {
	i := sort.Search(len(s.breakpoints), func(i int) bool { return aqi <= s.breakpoints[i].Max })
	if i == len(s.breakpoints) {
		return s.overflow
	}
	return s.breakpoints[i].Label
}

// CategorizeNullable returns ("", false) for a missing or non-finite AQI.
func (s Scale) CategorizeNullable(aqi float64, valid bool) (string, bool) {
	if !valid || math.IsNaN(aqi) {
		return "", false
	}
	return s.Categorize(aqi), true
}

// Labels returns every category in severity order.
func (s Scale) Labels() []string {
	out := make([]string, 0, len(s.breakpoints)+1)
	for _, bp := range s.breakpoints {
		out = append(out, bp.Label)
	}
	return append(out, s.overflow)
}

// Breakpoints returns a copy of the breakpoint table.
func (s Scale) Breakpoints() []Breakpoint {
	out := make([]Breakpoint, len(s.breakpoints))
	copy(out, s.breakpoints)
	return out
}
