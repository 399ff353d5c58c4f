package pipeline

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Dicklesworthstone/pavcore/internal/completeness"
	"github.com/Dicklesworthstone/pavcore/internal/farkas"
	"github.com/Dicklesworthstone/pavcore/internal/history"
	"github.com/Dicklesworthstone/pavcore/internal/results"
	"github.com/Dicklesworthstone/pavcore/internal/store"
)

// writeArtifact stores the proof for three alternatives and k=1: the root
// has the single continuation 0>1, certified infeasible with alpha.
func writeArtifact(t *testing.T, dir string, alpha *big.Rat) {
	t.Helper()
	h, err := history.Parse("0>1")
	if err != nil {
		t.Fatal(err)
	}
	m, err := results.Build(3, 1, []results.Record{
		{History: history.Root(), Successful: true},
		{History: h, Certificate: &farkas.Certificate{
			Alpha: alpha,
			Beta:  map[farkas.SwapIndex]*big.Rat{{Step: 0, X: 0, Y: 1}: big.NewRat(1, 1)},
			Gamma: []*big.Rat{big.NewRat(2, 1)},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(store.Path(dir, 3, 1, store.FormatYAML), m); err != nil {
		t.Fatal(err)
	}
}

func statuses(outcomes []Outcome) []Status {
	out := make([]Status, len(outcomes))
	for i, o := range outcomes {
		out[i] = o.Status
	}
	return out
}

func TestRange(t *testing.T) {
	tests := []struct {
		numAlts, k, minK int
		want             []Stage
	}{
		{12, 9, 8, []Stage{{12, 9}}},
		{12, 0, 8, []Stage{{12, 8}, {12, 9}, {12, 10}}},
		{9, 0, 8, nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, Range(tt.numAlts, tt.k, tt.minK)); diff != "" {
			t.Errorf("Range(%d, %d, %d) mismatch (-want +got):\n%s", tt.numAlts, tt.k, tt.minK, diff)
		}
	}
}

func TestExecutePassAndSkip(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, big.NewRat(1, 1))
	stages := []Stage{{3, 1}, {4, 1}}

	for _, task := range []Task{TaskCheck, TaskVerify, TaskStats} {
		t.Run(string(task), func(t *testing.T) {
			var streamed int
			outcomes, err := Execute(context.Background(), Pipeline{Task: task, ResultsDir: dir, Stages: stages}, Options{
				OnOutcome: func(Outcome) { streamed++ },
			})
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if diff := cmp.Diff([]Status{StatusPass, StatusSkip}, statuses(outcomes)); diff != "" {
				t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
			}
			if streamed != 2 {
				t.Errorf("OnOutcome called %d times", streamed)
			}
			switch task {
			case TaskCheck:
				if outcomes[0].Completeness == nil || outcomes[0].Completeness.Certified != 1 {
					t.Errorf("completeness stats = %+v", outcomes[0].Completeness)
				}
			case TaskVerify:
				if outcomes[0].Verified != 1 {
					t.Errorf("verified = %d", outcomes[0].Verified)
				}
			case TaskStats:
				if outcomes[0].Summary == nil || outcomes[0].Summary.Histories != 2 {
					t.Errorf("summary = %+v", outcomes[0].Summary)
				}
			}
		})
	}
}

func TestExecuteReportsUnsoundCertificate(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, big.NewRat(1, 2))
	stages := []Stage{{3, 1}, {4, 1}}

	outcomes, err := Execute(context.Background(), Pipeline{Task: TaskVerify, ResultsDir: dir, Stages: stages}, Options{Workers: 2})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != StatusFail {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	var unsound *farkas.UnsoundError
	if !errors.As(outcomes[0].Err, &unsound) {
		t.Fatalf("stage error = %v", outcomes[0].Err)
	}
	if outcomes[0].Error == "" {
		t.Error("Error text not populated")
	}

	outcomes, _ = Execute(context.Background(), Pipeline{Task: TaskVerify, ResultsDir: dir, Stages: stages}, Options{KeepGoing: true})
	if diff := cmp.Diff([]Status{StatusFail, StatusSkip}, statuses(outcomes)); diff != "" {
		t.Fatalf("keep-going statuses mismatch (-want +got):\n%s", diff)
	}

	// the proof tree itself is still complete
	if _, err := Execute(context.Background(), Pipeline{Task: TaskCheck, ResultsDir: dir, Stages: stages}, Options{}); err != nil {
		t.Fatalf("check-complete: %v", err)
	}
}

func TestExecuteVerifyRejectsUncertifiedFailure(t *testing.T) {
	dir := t.TempDir()
	h, err := history.Parse("0>1")
	if err != nil {
		t.Fatal(err)
	}
	m, err := results.Build(3, 1, []results.Record{
		{History: history.Root(), Successful: true},
		{History: h, Successful: false},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(store.Path(dir, 3, 1, store.FormatYAML), m); err != nil {
		t.Fatal(err)
	}

	outcomes, err := Execute(context.Background(), Pipeline{Task: TaskVerify, ResultsDir: dir, Stages: []Stage{{3, 1}}}, Options{})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
	if len(outcomes) != 1 || outcomes[0].Status != StatusFail {
		t.Fatalf("outcomes = %+v", outcomes)
	}
	if !errors.Is(outcomes[0].Err, farkas.ErrMalformedCertificate) {
		t.Fatalf("stage error = %v, want ErrMalformedCertificate", outcomes[0].Err)
	}
	if outcomes[0].Verified != 0 {
		t.Errorf("verified = %d, want 0", outcomes[0].Verified)
	}
}

func TestExecuteReportsHole(t *testing.T) {
	dir := t.TempDir()
	m, err := results.Build(3, 1, []results.Record{{History: history.Root(), Successful: true}})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Save(store.Path(dir, 3, 1, store.FormatSQLite), m); err != nil {
		t.Fatal(err)
	}

	outcomes, err := Execute(context.Background(), Pipeline{Task: TaskCheck, ResultsDir: dir, Stages: []Stage{{3, 1}}}, Options{})
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("expected ErrFailed, got %v", err)
	}
	var v *completeness.Violation
	if !errors.As(outcomes[0].Err, &v) || v.Kind != completeness.KindMissingHistory {
		t.Fatalf("stage error = %v", outcomes[0].Err)
	}
}

func TestExecuteProgressPerStage(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, big.NewRat(1, 1))

	var seen []Stage
	var last int
	_, err := Execute(context.Background(), Pipeline{Task: TaskVerify, ResultsDir: dir, Stages: []Stage{{3, 1}}}, Options{
		Progress: func(s Stage) func(done, total int) {
			seen = append(seen, s)
			return func(done, total int) { last = done }
		},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(seen) != 1 || last != 1 {
		t.Errorf("progress stages %v, last %d", seen, last)
	}
}

func TestExecuteCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Execute(ctx, Pipeline{Task: TaskStats, ResultsDir: t.TempDir(), Stages: []Stage{{3, 1}}}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
