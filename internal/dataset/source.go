// Package dataset merges the per-pollutant source files into one unified
// table and manages the merged artifact on disk.
package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

// Source is one pollutant's observation table.
type Source struct {
	Pollutant airquality.Pollutant
	Path      string
	Table     *table.Table
}

// dateLayouts are tried in order when parsing the Date join column.
var dateLayouts = []string{
	"01/02/2006", "2006-01-02", time.RFC3339, "1/2/2006", "2006/01/02",
	"2006-01-02 15:04:05", "01/02/2006 15:04",
}

// canonicalDate is the Date format of the merged table.
const canonicalDate = "2006-01-02"

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// csvOptions reads every column as text and recognises the usual null spellings.
func csvOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues([]string{"", "NA", "NaN", "<nil>"}),
	}
}

// decodeCSV parses a CSV stream with gota. A header without rows comes back
// as an empty table instead, since gota rejects those frames.
func decodeCSV(r io.Reader) (dataframe.DataFrame, *table.Table, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return dataframe.DataFrame{}, nil, errors.Wrap(err, "read csv")
	}
	df := dataframe.ReadCSV(bytes.NewReader(raw), csvOptions()...)
	if df.Err != nil {
		recs, cerr := csv.NewReader(bytes.NewReader(raw)).ReadAll()
		if cerr == nil && len(recs) == 1 {
			t, terr := table.FromRecords(recs)
			return dataframe.DataFrame{}, t, terr
		}
		return dataframe.DataFrame{}, nil, errors.Wrap(df.Err, "decode csv")
	}
	return df, nil, nil
}

// readFrame decodes a CSV stream into a table through gota.
func readFrame(r io.Reader) (*table.Table, error) {
	df, empty, err := decodeCSV(r)
	if err != nil || empty != nil {
		return empty, err
	}
	return table.FromRecords(df.Records())
}

// sourceColumns lists the columns kept from a pollutant file, in output order.
func sourceColumns(p airquality.Pollutant) []string {
	return []string{
		airquality.ColDate, airquality.ColSiteID, airquality.ColSiteName,
		airquality.ColLatitude, airquality.ColLongitude, airquality.ColParameterDesc,
		p.Column, airquality.ColUnits, airquality.ColDailyAQI,
	}
}

// ReadSource decodes one pollutant file and projects it onto the columns the
// merge uses; optional columns absent from the file are skipped. The Date and
// Site ID join columns are required and their absence is ErrMissingJoinKey.
func ReadSource(r io.Reader, p airquality.Pollutant) (Source, error) {
	df, t, err := decodeCSV(r)
	if err != nil {
		return Source{}, errors.Wrapf(err, "read %s source", p.Tag)
	}
	var names []string
	if t != nil {
		names = t.Columns()
	} else {
		names = df.Names()
	}
	have := make(map[string]struct{}, len(names))
	for _, n := range names {
		have[n] = struct{}{}
	}
	if err := requireKeys(func(c string) bool { _, ok := have[c]; return ok }, p.Tag); err != nil {
		return Source{}, err
	}
	var keep []string
	for _, c := range sourceColumns(p) {
		if _, ok := have[c]; ok {
			keep = append(keep, c)
		}
	}
	if t != nil {
		if t, err = t.Select(keep...); err != nil {
			return Source{}, err
		}
	} else {
		df = df.Select(keep)
		if df.Err != nil {
			return Source{}, errors.Wrapf(df.Err, "project %s columns", p.Tag)
		}
		if t, err = table.FromRecords(df.Records()); err != nil {
			return Source{}, err
		}
	}
	if !t.Has(p.Column) {
		return Source{}, errors.WithHintf(
			errors.InvalidInputf("%s source has no %q column", p.Tag, p.Column),
			"check the pollutants catalog column for %s", p.Tag)
	}
	return Source{Pollutant: p, Table: t}, nil
}

// OpenSource reads a pollutant file from disk.
func OpenSource(path string, p airquality.Pollutant) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return Source{}, errors.Wrapf(err, "open %s source", p.Tag)
	}
	defer f.Close()
	s, err := ReadSource(f, p)
	if err != nil {
		return Source{}, errors.Wrapf(err, "%s", path)
	}
	s.Path = path
	return s, nil
}

func requireKeys(has func(string) bool, tag string) error {
	for _, k := range []string{airquality.ColDate, airquality.ColSiteID} {
		if !has(k) {
			return errors.WithHint(
				errors.Wrapf(errors.ErrMissingJoinKey, "%s source lacks %q", tag, k),
				"every source file needs Date and Site ID columns")
		}
	}
	return nil
}
