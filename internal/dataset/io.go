package dataset

import (
	"bytes"
	"encoding/csv"
	"io"
	"io/fs"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/table"
	"github.com/KaramelBytes/airstat-cli/internal/utils"
)

// WriteTable encodes t as CSV. Null cells are written empty.
func WriteTable(w io.Writer, t *table.Table) error {
	if t.Len() == 0 {
		// gota refuses header-only frames.
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Columns()); err != nil {
			return errors.Wrap(err, "write merged header")
		}
		cw.Flush()
		return errors.Wrap(cw.Error(), "write merged header")
	}
	df := dataframe.LoadRecords(t.Records(),
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return errors.Wrap(df.Err, "encode merged table")
	}
	if err := df.WriteCSV(w); err != nil {
		return errors.Wrap(err, "write merged table")
	}
	return nil
}

// ReadTable decodes a merged CSV.
func ReadTable(r io.Reader) (*table.Table, error) {
	return readFrame(r)
}

// SaveTable writes t to path atomically.
func SaveTable(path string, t *table.Table) error {
	var buf bytes.Buffer
	if err := WriteTable(&buf, t); err != nil {
		return err
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}

// LoadTable reads a merged artifact. A missing or undecodable file is
// ErrStaleUpstream; it is never rebuilt here.
func LoadTable(path string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.WithHint(
				errors.Wrapf(errors.ErrStaleUpstream, "merged file %s does not exist", path),
				"run `airstat merge` first")
		}
		return nil, errors.Wrapf(errors.ErrStaleUpstream, "open merged file %s: %v", path, err)
	}
	defer f.Close()
	t, err := ReadTable(f)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(errors.ErrStaleUpstream, "merged file %s is unreadable: %v", path, err),
			"rebuild it with `airstat merge --force`")
	}
	if err := requireKeys(t.Has, "merged"); err != nil {
		return nil, errors.Wrapf(errors.ErrStaleUpstream, "merged file %s: %v", path, err)
	}
	return t, nil
}
