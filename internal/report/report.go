// Package report writes a JSON record of a run: one entry per
// configuration with its outcome and the SHA-256 digest of the artifact
// that was checked.
package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
)

// Entry is one configuration's outcome.
type Entry struct {
	pipeline.Outcome
	SHA256 string `json:"sha256,omitempty"`
}

// Report is the JSON document written by --report.
type Report struct {
	Command    string    `json:"command"`
	ResultsDir string    `json:"results_dir"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Entries    []Entry   `json:"entries"`
	Passed     int       `json:"passed"`
	Skipped    int       `json:"skipped"`
	Failed     int       `json:"failed"`
}

// New starts a report for command.
func New(command, resultsDir string) *Report {
	return &Report{Command: command, ResultsDir: resultsDir, StartedAt: time.Now().UTC()}
}

// Add records an outcome, digesting its artifact if one was read.
func (r *Report) Add(out pipeline.Outcome) error {
	e := Entry{Outcome: out}
	if out.Path != "" {
		sum, err := Digest(out.Path)
		if err != nil {
			return err
		}
		e.SHA256 = sum
	}
	switch out.Status {
	case pipeline.StatusPass:
		r.Passed++
	case pipeline.StatusSkip:
		r.Skipped++
	case pipeline.StatusFail:
		r.Failed++
	}
	r.Entries = append(r.Entries, e)
	return nil
}

// Finish stamps the completion time.
func (r *Report) Finish() { r.FinishedAt = time.Now().UTC() }

// Digest returns the hex SHA-256 of the file at path.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Save writes r to path as indented JSON.
func Save(path string, r *Report) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Load reads a report written by Save.
func Load(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report: %w", err)
	}
	return &r, nil
}
