package dataset

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/airstat-cli/internal/errors"
	"github.com/KaramelBytes/airstat-cli/internal/utils"
)

// Manifest describes a merged artifact and the sources it was built from.
type Manifest struct {
	RunID   string        `json:"run_id"`
	BuiltAt time.Time     `json:"built_at"`
	Mode    Mode          `json:"mode"`
	Base    string        `json:"base"`
	Rows    int           `json:"rows"`
	Merged  string        `json:"merged"`
	Sources []Fingerprint `json:"sources"`
}

// Fingerprint identifies the content of one source file.
type Fingerprint struct {
	Pollutant string    `json:"pollutant"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
	SHA256    string    `json:"sha256"`
}

// NewManifest constructs a manifest for a fresh build. Call Save to persist.
func NewManifest(builtAt time.Time, mode Mode, base string, rows int, merged string, sources []Fingerprint) *Manifest {
	return &Manifest{
		RunID:   uuid.NewString(),
		BuiltAt: builtAt.UTC(),
		Mode:    mode,
		Base:    base,
		Rows:    rows,
		Merged:  merged,
		Sources: sources,
	}
}

// FingerprintFile hashes a source file.
func FingerprintFile(pollutant, path string) (Fingerprint, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return Fingerprint{}, errors.Wrapf(err, "stat %s", path)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return Fingerprint{}, errors.Wrapf(err, "hash %s", path)
	}
	return Fingerprint{
		Pollutant: pollutant,
		Path:      path,
		Size:      info.Size(),
		ModTime:   info.ModTime().UTC(),
		SHA256:    hex.EncodeToString(h.Sum(nil)),
	}, nil
}

// LoadManifest reads a manifest file. A missing file is ErrStaleUpstream.
func LoadManifest(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrapf(errors.ErrStaleUpstream, "manifest not found at %s", path)
		}
		return nil, errors.Wrap(err, "read manifest")
	}
	var m Manifest
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, errors.Wrapf(errors.ErrStaleUpstream, "parse manifest %s: %v", path, err)
	}
	return &m, nil
}

// Save writes the manifest using an atomic write.
func (m *Manifest) Save(path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return errors.Wrap(err, "ensure manifest dir")
	}
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, data)
}

// Matches reports whether the manifest was built from exactly these sources
// with the given mode and base. Content hashes decide; paths and sizes are
// compared first.
func (m *Manifest) Matches(mode Mode, base string, current []Fingerprint) bool {
	if m == nil || m.Mode != mode || m.Base != base || len(m.Sources) != len(current) {
		return false
	}
	for i, fp := range current {
		old := m.Sources[i]
		if old.Pollutant != fp.Pollutant || old.Path != fp.Path || old.Size != fp.Size || old.SHA256 != fp.SHA256 {
			return false
		}
	}
	return true
}
