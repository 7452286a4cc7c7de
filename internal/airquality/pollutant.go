// Package airquality defines the pollutant catalog and AQI scale shared by
// every analysis. Both are immutable values built once from configuration and
// passed explicitly to the components that need them.
package airquality

import (
	"fmt"
	"strings"
)

// Source column names of the EPA daily files.
const (
	ColDate          = "Date"
	ColSiteID        = "Site ID"
	ColSiteName      = "Local Site Name"
	ColLatitude      = "Site Latitude"
	ColLongitude     = "Site Longitude"
	ColParameterDesc = "AQS Parameter Description"
	ColUnits         = "Units"
	ColDailyAQI      = "Daily AQI Value"
)

// Pollutant describes one tracked measurement category.
type Pollutant struct {
	Tag    string `mapstructure:"tag" yaml:"tag"`       // PM2.5, Ozone, ...
	Column string `mapstructure:"column" yaml:"column"` // canonical concentration column, e.g. "Daily Mean PM2.5 Concentration"
	Units  string `mapstructure:"units" yaml:"units"`
	Suffix string `mapstructure:"suffix" yaml:"suffix,omitempty"` // appended to colliding columns when merged, e.g. "_ozone"
	File   string `mapstructure:"file" yaml:"file"`               // source file name relative to the data directory
}

// DefaultPollutants returns the standard EPA criteria pollutant set.
func DefaultPollutants() []Pollutant {
	return []Pollutant{
		{Tag: "PM2.5", Column: "Daily Mean PM2.5 Concentration", Units: "ug/m3 LC", Suffix: "_pm2.5", File: "2023_PM25.csv"},
		{Tag: "Ozone", Column: "Daily Max 8-hour Ozone Concentration", Units: "ppm", Suffix: "_ozone", File: "2023_Ozone.csv"},
		{Tag: "SO2", Column: "Daily Max 1-hour SO2 Concentration", Units: "ppb", Suffix: "_so2", File: "2023_SO2.csv"},
		{Tag: "NO2", Column: "Daily Max 1-hour NO2 Concentration", Units: "ppb", Suffix: "_no2", File: "2023_NO2.csv"},
		{Tag: "CO", Column: "Daily Max 8-hour CO Concentration", Units: "ppm", Suffix: "_co", File: "2023_CO.csv"},
		{Tag: "PM10", Column: "Daily Mean PM10 Concentration", Units: "ug/m3 SC", Suffix: "_pm10", File: "2023_PM10.csv"},
		{Tag: "Pb", Column: "Daily Mean Pb Concentration", Units: "ug/m3 SC", Suffix: "_pb", File: "2023_Pb.csv"},
	}
}

// Catalog is an immutable, ordered pollutant set.
type Catalog struct {
	pollutants []Pollutant
	byTag      map[string]int
}

// NewCatalog validates the pollutants and returns a Catalog. Tags are matched
// case-insensitively; tags, columns and suffixes must be unique.
func NewCatalog(pollutants []Pollutant) (Catalog, error) {
	if len(pollutants) == 0 {
		return Catalog{}, fmt.Errorf("catalog: no pollutants configured")
	}
	c := Catalog{
		pollutants: make([]Pollutant, len(pollutants)),
		byTag:      make(map[string]int, len(pollutants)),
	}
	copy(c.pollutants, pollutants)
	columns := map[string]struct{}{}
	suffixes := map[string]struct{}{}
	for i, p := range c.pollutants {
		if strings.TrimSpace(p.Tag) == "" || strings.TrimSpace(p.Column) == "" {
			return Catalog{}, fmt.Errorf("catalog: pollutant %d needs a tag and a column", i+1)
		}
		if p.Suffix == "" {
			p.Suffix = "_" + strings.ToLower(p.Tag)
			c.pollutants[i] = p
		}
		key := strings.ToLower(p.Tag)
		if _, dup := c.byTag[key]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate pollutant tag %q", p.Tag)
		}
		if _, dup := columns[p.Column]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate concentration column %q", p.Column)
		}
		if _, dup := suffixes[p.Suffix]; dup {
			return Catalog{}, fmt.Errorf("catalog: duplicate merge suffix %q", p.Suffix)
		}
		c.byTag[key] = i
		columns[p.Column] = struct{}{}
		suffixes[p.Suffix] = struct{}{}
	}
	return c, nil
}

// MustCatalog is NewCatalog for static inputs known to be valid.
func MustCatalog(pollutants []Pollutant) Catalog {
	c, err := NewCatalog(pollutants)
	if err != nil {
		panic(err)
	}
	return c
}

// Pollutants returns a copy of the ordered pollutant list.
func (c Catalog) Pollutants() []Pollutant {
	out := make([]Pollutant, len(c.pollutants))
	copy(out, c.pollutants)
	return out
}

// Len reports how many pollutants are configured.
func (c Catalog) Len() int { return len(c.pollutants) }

// Lookup finds a pollutant by tag (case-insensitive) or by concentration column.
func (c Catalog) Lookup(name string) (Pollutant, bool) {
	if i, ok := c.byTag[strings.ToLower(strings.TrimSpace(name))]; ok {
		return c.pollutants[i], true
	}
	for _, p := range c.pollutants {
		if p.Column == name {
			return p, true
		}
	}
	return Pollutant{}, false
}

// Tags lists the pollutant tags in catalog order.
func (c Catalog) Tags() []string {
	out := make([]string, len(c.pollutants))
	for i, p := range c.pollutants {
		out[i] = p.Tag
	}
	return out
}

// Columns lists the concentration columns in catalog order.
func (c Catalog) Columns() []string {
	out := make([]string, len(c.pollutants))
	for i, p := range c.pollutants {
		out[i] = p.Column
	}
	return out
}
