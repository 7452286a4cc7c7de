package airquality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategorizeBoundaries(t *testing.T) {
	s := DefaultScale()
	cases := map[float64]string{
		0:     Good,
		50:    Good,
		51:    Moderate,
		100:   Moderate,
		100.5: UnhealthyForSensitiveGroups,
		150:   UnhealthyForSensitiveGroups,
		151:   Unhealthy,
		200:   Unhealthy,
		300:   VeryUnhealthy,
		301:   Hazardous,
		999:   Hazardous,
	}
	for aqi, want := range cases {
		assert.Equal(t, want, s.Categorize(aqi), "aqi=%v", aqi)
	}
}

func TestCategorizeNullable(t *testing.T) {
	s := DefaultScale()
	_, ok := s.CategorizeNullable(0, false)
	assert.False(t, ok)
	_, ok = s.CategorizeNullable(math.NaN(), true)
	assert.False(t, ok)
	label, ok := s.CategorizeNullable(42, true)
	assert.True(t, ok)
	assert.Equal(t, Good, label)
}

func TestScaleLabelsInSeverityOrder(t *testing.T) {
	assert.Equal(t, []string{Good, Moderate, UnhealthyForSensitiveGroups, Unhealthy, VeryUnhealthy, Hazardous},
		DefaultScale().Labels())
}

func TestNewScaleRejectsBadBreakpoints(t *testing.T) {
	_, err := NewScale([]Breakpoint{{Max: 50, Label: "a"}, {Max: 50, Label: "b"}}, "c")
	require.Error(t, err)
	_, err = NewScale([]Breakpoint{{Max: 50}}, "c")
	require.Error(t, err)
	_, err = NewScale(DefaultBreakpoints(), "")
	require.Error(t, err)
}

func TestScaleIsImmutable(t *testing.T) {
	bps := DefaultBreakpoints()
	s, err := NewScale(bps, DefaultOverflow)
	require.NoError(t, err)
	bps[0].Label = "mutated"
	s.Breakpoints()[1].Label = "mutated"
	assert.Equal(t, Good, s.Categorize(10))
	assert.Equal(t, Moderate, s.Categorize(60))
}

func TestCatalogLookup(t *testing.T) {
	c := MustCatalog(DefaultPollutants())
	assert.Equal(t, 7, c.Len())

	p, ok := c.Lookup("pm2.5")
	require.True(t, ok)
	assert.Equal(t, "Daily Mean PM2.5 Concentration", p.Column)

	p, ok = c.Lookup("Daily Max 8-hour Ozone Concentration")
	require.True(t, ok)
	assert.Equal(t, "Ozone", p.Tag)

	_, ok = c.Lookup("radon")
	assert.False(t, ok)

	assert.Equal(t, []string{"PM2.5", "Ozone", "SO2", "NO2", "CO", "PM10", "Pb"}, c.Tags())
}

func TestCatalogDefaultsSuffix(t *testing.T) {
	c, err := NewCatalog([]Pollutant{{Tag: "CO", Column: "co"}, {Tag: "NO2", Column: "no2"}})
	require.NoError(t, err)
	assert.Equal(t, "_co", c.Pollutants()[0].Suffix)
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := NewCatalog([]Pollutant{{Tag: "CO", Column: "a"}, {Tag: "co", Column: "b"}})
	require.Error(t, err)
	_, err = NewCatalog([]Pollutant{{Tag: "CO", Column: "a"}, {Tag: "NO2", Column: "a"}})
	require.Error(t, err)
	_, err = NewCatalog(nil)
	require.Error(t, err)
}
