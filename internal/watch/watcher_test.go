package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/includeguard/includeguard/internal/config"
	"github.com/includeguard/includeguard/internal/parser"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(root string) *config.Config {
	cfg := config.Default()
	cfg.Project.Root = root
	cfg.Performance.Workers = 1
	cfg.Watch.DebounceMs = 50
	return cfg
}

func TestWatcherReportsChangedFile(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	scanner := parser.NewScanner(cfg)

	batches := make(chan []string, 1)
	w, err := New(cfg, scanner, func(paths []string) {
		select {
		case batches <- paths:
		default:
		}
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		if err := w.Stop(); err != nil {
			t.Errorf("Stop: %v", err)
		}
	}()

	path := filepath.Join(dir, "main.cpp")
	if err := os.WriteFile(path, []byte("int main() { return 0; }\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-batches:
		if len(paths) != 1 || paths[0] != path {
			t.Errorf("got batch %v, want [%s]", paths, path)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for change notification")
	}
}

func TestWatcherIgnoresNonSourceFiles(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	scanner := parser.NewScanner(cfg)

	batches := make(chan []string, 4)
	w, err := New(cfg, scanner, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case paths := <-batches:
		t.Errorf("unexpected notification for non-source file: %v", paths)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestDebounceCoalescesEvents(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	scanner := parser.NewScanner(cfg)

	batches := make(chan []string, 4)
	w, err := New(cfg, scanner, func(paths []string) {
		batches <- paths
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.watcher.Close()

	w.enqueue(filepath.Join(dir, "a.cpp"))
	w.enqueue(filepath.Join(dir, "b.cpp"))
	w.enqueue(filepath.Join(dir, "a.cpp"))

	select {
	case paths := <-batches:
		if len(paths) != 2 {
			t.Errorf("got %d paths, want 2 coalesced: %v", len(paths), paths)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("debounced flush never fired")
	}
}

func TestContentHashShortCircuit(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	scanner := parser.NewScanner(cfg)

	w, err := New(cfg, scanner, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.watcher.Close()

	path := filepath.Join(dir, "a.cpp")
	if err := os.WriteFile(path, []byte("int a;\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !w.contentChanged(path) {
		t.Error("first sighting should count as changed")
	}
	if w.contentChanged(path) {
		t.Error("identical bytes should be skipped")
	}

	if err := os.WriteFile(path, []byte("int b;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !w.contentChanged(path) {
		t.Error("modified bytes should count as changed")
	}
}
