package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/airstat-cli/internal/airquality"
	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/observability"
	"github.com/KaramelBytes/airstat-cli/internal/table"
)

const pm25CSV = `Date,Source,Site ID,POC,Daily Mean PM2.5 Concentration,Units,Daily AQI Value,Local Site Name
01/01/2023,AQS,60010007,1,8.5,ug/m3 LC,35,Livermore
01/02/2023,AQS,60010007,1,12.1,ug/m3 LC,51,Livermore
`

const ozoneCSV = `Date,Source,Site ID,POC,Daily Max 8-hour Ozone Concentration,Units,Daily AQI Value,Local Site Name
01/01/2023,AQS,60010007,1,0.031,ppm,29,Livermore
`

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func testStage(t *testing.T) (*Stage, *clockwork.FakeClock) {
	t.Helper()
	dir := t.TempDir()
	cat, err := airquality.NewCatalog([]airquality.Pollutant{
		{Tag: "PM2.5", Column: "Daily Mean PM2.5 Concentration", Units: "ug/m3 LC", Suffix: "_pm2.5", File: "pm25.csv"},
		{Tag: "Ozone", Column: "Daily Max 8-hour Ozone Concentration", Units: "ppm", Suffix: "_ozone", File: "ozone.csv"},
		{Tag: "CO", Column: "Daily Max 8-hour CO Concentration", Units: "ppm", Suffix: "_co", File: "co.csv"},
	})
	require.NoError(t, err)
	writeFile(t, filepath.Join(dir, "pm25.csv"), pm25CSV)
	writeFile(t, filepath.Join(dir, "ozone.csv"), ozoneCSV)

	fc := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	return &Stage{
		Catalog:    cat,
		DataDir:    dir,
		MergedPath: filepath.Join(dir, "out", "merged.csv"),
		Clock:      fc,
		Metrics:    observability.NewMetricsForTesting(),
	}, fc
}

func TestReadSourceProjectsColumns(t *testing.T) {
	src, err := ReadSource(strings.NewReader(pm25CSV), pollutant(t, "PM2.5"))
	require.NoError(t, err)
	assert.Equal(t, []string{"Date", "Site ID", "Local Site Name", "Daily Mean PM2.5 Concentration", "Units", "Daily AQI Value"},
		src.Table.Columns())
	assert.Equal(t, 2, src.Table.Len())
}

func TestReadSourceRequiresKeys(t *testing.T) {
	_, err := ReadSource(strings.NewReader("Site ID,Daily Mean PM2.5 Concentration\n1,2\n"), pollutant(t, "PM2.5"))
	assert.True(t, errors.IsMissingJoinKey(err))

	_, err = ReadSource(strings.NewReader("Date,Site ID,Units\n01/01/2023,1,x\n"), pollutant(t, "PM2.5"))
	assert.True(t, errors.IsInvalidInput(err))
}

func TestWriteReadPreservesNulls(t *testing.T) {
	tb, err := table.FromRecords([][]string{
		{"Date", "Site ID", "Value"},
		{"2023-01-01", "1", ""},
		{"2023-01-02", "1", "2.5"},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, tb))
	back, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, tb.Records(), back.Records())
	assert.True(t, back.Row(0).Get("Value").Null)
}

func TestWriteReadEmptyTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, table.MustNew("Date", "Site ID")))
	back, err := ReadTable(&buf)
	require.NoError(t, err)
	assert.Equal(t, 0, back.Len())
	assert.Equal(t, []string{"Date", "Site ID"}, back.Columns())
}

func TestLoadTableStaleUpstream(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTable(filepath.Join(dir, "missing.csv"))
	assert.True(t, errors.IsStaleUpstream(err))

	bad := filepath.Join(dir, "bad.csv")
	writeFile(t, bad, "a,b\n1\n")
	_, err = LoadTable(bad)
	assert.True(t, errors.IsStaleUpstream(err))

	noKeys := filepath.Join(dir, "nokeys.csv")
	writeFile(t, noKeys, "a,b\n1,2\n")
	_, err = LoadTable(noKeys)
	assert.True(t, errors.IsStaleUpstream(err))
}

func TestStageBuildWritesArtifactAndManifest(t *testing.T) {
	st, fc := testStage(t)
	res, err := st.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Table.Len())
	assert.Equal(t, []string{"CO"}, res.Skipped)
	assert.Equal(t, fc.Now().UTC(), res.Manifest.BuiltAt)
	assert.NotEmpty(t, res.Manifest.RunID)
	assert.Equal(t, "PM2.5", res.Manifest.Base)
	require.Len(t, res.Manifest.Sources, 2)
	assert.Len(t, res.Manifest.Sources[0].SHA256, 64)

	m, err := LoadManifest(st.MergedPath + ".manifest.json")
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.RunID, m.RunID)
	assert.InDelta(t, 2, testutil.ToFloat64(st.Metrics.MergedRows), 0)

	loaded, err := st.Load()
	require.NoError(t, err)
	assert.Equal(t, res.Table.Records(), loaded.Records())
}

func TestStageRoundTripQuotedSiteAndFanOut(t *testing.T) {
	st, _ := testStage(t)
	writeFile(t, filepath.Join(st.DataDir, "pm25.csv"), `Date,Source,Site ID,POC,Daily Mean PM2.5 Concentration,Units,Daily AQI Value,Local Site Name
01/01/2023,AQS,1,1,8.5,ug/m3 LC,35,"Oakland, West"
01/02/2023,AQS,1,1,12.1,ug/m3 LC,51,"Oakland, West"
`)
	writeFile(t, filepath.Join(st.DataDir, "ozone.csv"), `Date,Source,Site ID,POC,Daily Max 8-hour Ozone Concentration,Units,Daily AQI Value,Local Site Name
01/01/2023,AQS,1,1,0.031,ppm,29,"Oakland, West"
01/01/2023,AQS,1,2,0.033,ppm,30,"Oakland, West"
01/03/2023,AQS,1,1,0.040,ppm,37,"Oakland, West"
`)
	res, err := st.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.FanOut)

	loaded, err := st.Load()
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len(), "two base days plus one fan-out row; the ozone-only day is dropped")
	assert.Equal(t, res.Table.Records(), loaded.Records())

	for i := 0; i < loaded.Len(); i++ {
		r := loaded.Row(i)
		site, _ := r.Text(airquality.ColSiteName)
		assert.Equal(t, "Oakland, West", site)
		date, _ := r.Text(airquality.ColDate)
		assert.NotEqual(t, "2023-01-03", date)
		_, hasOzone := r.Float("Daily Max 8-hour Ozone Concentration")
		assert.Equal(t, date == "2023-01-01", hasOzone, "row %d (%s)", i, date)
	}
}

func TestStageLoadWithoutBuild(t *testing.T) {
	st, _ := testStage(t)
	_, err := st.Load()
	assert.True(t, errors.IsStaleUpstream(err))
}

func TestStageEnsureReusesUntilSourcesChange(t *testing.T) {
	st, _ := testStage(t)
	ctx := context.Background()

	_, rebuilt, err := st.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt, "no manifest yet")

	tb, rebuilt, err := st.Ensure(ctx)
	require.NoError(t, err)
	assert.False(t, rebuilt)
	assert.Equal(t, 2, tb.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(st.Metrics.StageCache.WithLabelValues("hit")), 0)

	writeFile(t, filepath.Join(st.DataDir, "ozone.csv"), ozoneCSV+"01/02/2023,AQS,60010007,1,0.040,ppm,37,Livermore\n")
	tb, rebuilt, err = st.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt)
	v, ok := tb.Row(1).Float("Daily Max 8-hour Ozone Concentration")
	require.True(t, ok)
	assert.Equal(t, 0.04, v)

	st.Mode = ModeOuter
	_, rebuilt, err = st.Ensure(ctx)
	require.NoError(t, err)
	assert.True(t, rebuilt, "mode change invalidates the artifact")
}

func TestStageUnknownBase(t *testing.T) {
	st, _ := testStage(t)
	st.Base = "radon"
	_, err := st.Build(context.Background())
	assert.True(t, errors.IsInvalidInput(err))
}

func TestWatchLoopDebouncesIntoOneBuild(t *testing.T) {
	st, fc := testStage(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	target := filepath.Clean(filepath.Join(st.DataDir, "ozone.csv"))
	events := make(chan fsnotify.Event)
	errs := make(chan error)
	built := make(chan error, 4)
	done := make(chan error, 1)
	go func() {
		done <- st.watchLoop(ctx, events, errs, map[string]struct{}{target: {}}, time.Second,
			func(_ *BuildResult, err error) { built <- err })
	}()

	events <- fsnotify.Event{Name: filepath.Join(st.DataDir, "notes.txt"), Op: fsnotify.Write}
	events <- fsnotify.Event{Name: target, Op: fsnotify.Write}
	require.NoError(t, fc.BlockUntilContext(ctx, 1))
	fc.Advance(time.Second)

	select {
	case err := <-built:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("rebuild never happened")
	}
	_, err := os.Stat(st.MergedPath)
	require.NoError(t, err)

	cancel()
	require.NoError(t, <-done)
	assert.Empty(t, built)
}
