package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParse_Overrides(t *testing.T) {
	t.Parallel()

	cfg, err := Parse(`
results_dir = "/data/pav"
log_level = "debug"

[verify]
min_k = 10
workers = "auto"
require_nonnegative = true

[watch]
debounce = "2s"
`)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.ResultsDir != "/data/pav" || cfg.LogLevel != "debug" {
		t.Errorf("top-level keys not applied: %+v", cfg)
	}
	if cfg.Verify.MinK != 10 || cfg.Verify.Workers != "auto" || !cfg.Verify.RequireNonNegative {
		t.Errorf("verify section not applied: %+v", cfg.Verify)
	}
	if cfg.Check.MinK != 8 {
		t.Errorf("check.min_k default lost: %d", cfg.Check.MinK)
	}
	if cfg.Watch.Debounce.Duration != 2*time.Second {
		t.Errorf("debounce = %v", cfg.Watch.Debounce)
	}
}

// ---------------------------------------------------------------------------
// Parse: error branches
// ---------------------------------------------------------------------------

func TestParse_MalformedTOML(t *testing.T) {
	t.Parallel()

	// missing closing bracket
	malformed := `[verify
workers = "4"`

	if _, err := Parse(malformed); err == nil {
		t.Error("Parse() should return error for malformed TOML")
	}
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"unquoted string", "log_level = debug"},
		{"unknown key", "colour = \"red\""},
		{"bad workers", "[verify]\nworkers = \"many\""},
		{"zero workers", "[verify]\nworkers = \"0\""},
		{"bad level", "log_level = \"loud\""},
		{"bad duration", "[watch]\ndebounce = \"soon\""},
		{"zero min_k", "[check]\nmin_k = 0"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := Parse(tt.text); err == nil {
				t.Errorf("Parse(%q) should fail", tt.text)
			}
		})
	}
}

func TestLoad_MissingDefaultIsFine(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("PAVCORE_RESULTS_DIR", "")
	t.Setenv("PAVCORE_LOG_LEVEL", "")
	t.Setenv("PAVCORE_WORKERS", "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResultsDir != "results" || cfg.Verify.Workers != "8" {
		t.Errorf("defaults not returned: %+v", cfg)
	}
}

func TestLoad_MissingExplicitFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Error("Load() should fail for a missing explicit path")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("results_dir = \"from-file\"\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PAVCORE_RESULTS_DIR", "from-env")
	t.Setenv("PAVCORE_LOG_LEVEL", "")
	t.Setenv("PAVCORE_WORKERS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ResultsDir != "from-env" {
		t.Errorf("ResultsDir = %q", cfg.ResultsDir)
	}
	n, err := cfg.Verify.WorkerCount()
	if err != nil || n != 3 {
		t.Errorf("WorkerCount() = %d, %v", n, err)
	}
}

func TestWorkerCount_Auto(t *testing.T) {
	t.Parallel()

	n, err := VerifyConfig{Workers: "auto"}.WorkerCount()
	if err != nil {
		t.Fatalf("WorkerCount() error = %v", err)
	}
	if n < 1 {
		t.Errorf("WorkerCount() = %d", n)
	}
}

func TestDefaultPath_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	if got, want := DefaultPath(), filepath.Join(dir, "pavcore", "config.toml"); got != want {
		t.Errorf("DefaultPath() = %q, want %q", got, want)
	}
}
