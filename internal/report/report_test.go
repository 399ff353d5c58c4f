package report

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Dicklesworthstone/pavcore/internal/pipeline"
)

func TestDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "info-3-1.yaml")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := Digest(path)
	if err != nil {
		t.Fatalf("Digest() error = %v", err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Errorf("Digest() = %s, want %s", got, want)
	}
}

func TestAddSaveLoad(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "info-3-1.yaml")
	if err := os.WriteFile(artifact, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}

	r := New("verify-certificates", dir)
	outcomes := []pipeline.Outcome{
		{Stage: pipeline.Stage{NumAlts: 3, K: 1}, Status: pipeline.StatusPass, Path: artifact, Verified: 4},
		{Stage: pipeline.Stage{NumAlts: 4, K: 1}, Status: pipeline.StatusSkip},
		{Stage: pipeline.Stage{NumAlts: 5, K: 1}, Status: pipeline.StatusFail, Err: errors.New("boom"), Error: "boom"},
	}
	for _, out := range outcomes {
		if err := r.Add(out); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	r.Finish()

	path := filepath.Join(dir, "out", "report.json")
	if err := Save(path, r); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Passed != 1 || loaded.Skipped != 1 || loaded.Failed != 1 {
		t.Errorf("counts = %d/%d/%d", loaded.Passed, loaded.Skipped, loaded.Failed)
	}
	if len(loaded.Entries) != 3 {
		t.Fatalf("entries = %d", len(loaded.Entries))
	}
	first := loaded.Entries[0]
	if first.NumAlts != 3 || first.Verified != 4 || first.SHA256 == "" {
		t.Errorf("first entry = %+v", first)
	}
	if loaded.Entries[2].Error != "boom" {
		t.Errorf("error text lost: %+v", loaded.Entries[2])
	}
}

func TestAddMissingArtifact(t *testing.T) {
	r := New("check-complete", t.TempDir())
	err := r.Add(pipeline.Outcome{Status: pipeline.StatusPass, Path: filepath.Join(t.TempDir(), "gone.yaml")})
	if err == nil {
		t.Fatal("Add() should fail when the artifact cannot be read")
	}
}
