package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func waitForChanges(t *testing.T, ch <-chan []Change) []Change {
	t.Helper()
	select {
	case changes := <-ch:
		return changes
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for changes")
		return nil
	}
}

func newTestWatcher(t *testing.T, root string) (*Watcher, <-chan []Change) {
	t.Helper()
	ch := make(chan []Change, 16)
	w, err := New(root, func(changes []Change) { ch <- changes }, WithDebounceDuration(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w, ch
}

func TestWatcherReportsArtifactWrites(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "12"), 0755); err != nil {
		t.Fatal(err)
	}
	w, ch := newTestWatcher(t, root)
	if got := len(w.Dirs()); got != 2 {
		t.Fatalf("watching %d directories, want 2", got)
	}

	dir := filepath.Join(root, "12")
	for _, name := range []string{"notes.txt", "info-12-9.yaml", "info-12-8.db"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	changes := waitForChanges(t, ch)
	if len(changes) != 2 {
		t.Fatalf("changes = %+v, want two artifacts", changes)
	}
	if changes[0].K != 8 || changes[1].K != 9 || changes[0].NumAlts != 12 {
		t.Errorf("changes not ordered by configuration: %+v", changes)
	}
}

func TestWatcherPicksUpNewConfigDirectory(t *testing.T) {
	root := t.TempDir()
	_, ch := newTestWatcher(t, root)

	dir := filepath.Join(root, "10")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "info-10-8.yaml"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	changes := waitForChanges(t, ch)
	if len(changes) != 1 || changes[0].NumAlts != 10 || changes[0].K != 8 {
		t.Fatalf("changes = %+v", changes)
	}
}

func TestWatcherReportsRemoval(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "info-5-2.yaml")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, ch := newTestWatcher(t, root)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	changes := waitForChanges(t, ch)
	if len(changes) != 1 || !changes[0].Removed {
		t.Fatalf("changes = %+v", changes)
	}
}

func TestNewRejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := New(path, nil); err == nil {
		t.Fatal("New() accepted a file")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
}

func TestDebouncerCoalesces(t *testing.T) {
	d := NewDebouncer(30 * time.Millisecond)
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	for i := 0; i < 5; i++ {
		d.Trigger(func() {
			calls.Add(1)
			done <- struct{}{}
		})
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced function never ran")
	}
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("function ran %d times, want 1", n)
	}
}

func TestDebouncerCancel(t *testing.T) {
	d := NewDebouncer(20 * time.Millisecond)
	var calls atomic.Int32
	d.Trigger(func() { calls.Add(1) })
	d.Cancel()
	time.Sleep(60 * time.Millisecond)
	if n := calls.Load(); n != 0 {
		t.Fatalf("cancelled function ran %d times", n)
	}
}
