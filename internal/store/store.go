// Package store reads and writes persisted result maps. An artifact for one
// (num_alts, k) configuration lives at <dir>/<num_alts>/info-<num_alts>-<k>
// with a .yaml or .db (SQLite) extension. Rationals are written as exact
// "p/q" strings.
package store

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/results"
)

var (
	// ErrNotFound is returned when no artifact exists for a configuration.
	ErrNotFound = errors.New("result artifact not found")
	// ErrMalformedArtifact wraps every decoding failure.
	ErrMalformedArtifact = errors.New("malformed result artifact")
)

// Format is an artifact encoding.
type Format string

const (
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// Ext returns the file extension of f including the dot.
func (f Format) Ext() string {
	if f == FormatSQLite {
		return ".db"
	}
	return ".yaml"
}

// Formats lists the encodings in lookup order.
var Formats = []Format{FormatYAML, FormatSQLite}

// FormatOf infers the encoding of path from its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	}
	return "", fmt.Errorf("unknown artifact format for %s", path)
}

// Path returns where the artifact for (numAlts, k) in format f lives.
func Path(dir string, numAlts, k int, f Format) string {
	name := fmt.Sprintf("info-%d-%d%s", numAlts, k, f.Ext())
	return filepath.Join(dir, strconv.Itoa(numAlts), name)
}

var artifactName = regexp.MustCompile(`^info-(\d+)-(\d+)\.(yaml|yml|db|sqlite|sqlite3)$`)

// ParseName extracts the configuration from an artifact file name.
func ParseName(name string) (numAlts, k int, ok bool) {
	m := artifactName.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, 0, false
	}
	numAlts, _ = strconv.Atoi(m[1])
	k, _ = strconv.Atoi(m[2])
	return numAlts, k, true
}

// Locate returns the path of the artifact for (numAlts, k), preferring YAML.
func Locate(dir string, numAlts, k int) (string, error) {
	for _, f := range Formats {
		path := Path(dir, numAlts, k, f)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat %s: %w", path, err)
		}
	}
	return "", fmt.Errorf("%w: num_alts=%d k=%d under %s", ErrNotFound, numAlts, k, dir)
}

// Open locates and loads the artifact for (numAlts, k). The map's
// configuration must match the one requested.
func Open(dir string, numAlts, k int) (*results.Map, string, error) {
	path, err := Locate(dir, numAlts, k)
	if err != nil {
		return nil, "", err
	}
	m, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	if m.NumAlts != numAlts || m.K != k {
		return nil, path, fmt.Errorf("%w: %s holds num_alts=%d k=%d", ErrMalformedArtifact, path, m.NumAlts, m.K)
	}
	return m, path, nil
}

// Load reads the artifact at path in the format its extension names.
func Load(path string) (*results.Map, error) {
	f, err := FormatOf(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if f == FormatSQLite {
		return loadSQLite(path)
	}
	return loadYAML(path)
}

// Save writes m to path in the format its extension names, replacing any
// existing file.
func Save(path string, m *results.Map) error {
	f, err := FormatOf(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if f == FormatSQLite {
		return saveSQLite(path, m)
	}
	return saveYAML(path, m)
}

func parseRat(text string) (*big.Rat, error) {
	r, ok := new(big.Rat).SetString(strings.TrimSpace(text))
	if !ok {
		return nil, fmt.Errorf("%w: bad rational %q", ErrMalformedArtifact, text)
	}
	return r, nil
}

func formatRat(r *big.Rat) string { return r.RatString() }

// sortedBeta returns the beta keys of c ordered by step, x, y so artifacts
// are written deterministically.
func sortedBeta(c *farkas.Certificate) []farkas.SwapIndex {
	keys := make([]farkas.SwapIndex, 0, len(c.Beta))
	for idx := range c.Beta {
		keys = append(keys, idx)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Step != b.Step {
			return a.Step < b.Step
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Y < b.Y
	})
	return keys
}
