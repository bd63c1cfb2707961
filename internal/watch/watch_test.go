package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Camiloez/postboard/pkg/logger"
)

func TestWatcherBatchesRelevantChanges(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "tmp"), 0o755); err != nil {
		t.Fatal(err)
	}
	w, err := New(Options{Root: root, Debounce: 50 * time.Millisecond}, logger.Discard())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	batches := make(chan []string, 4)
	go func() { _ = w.Run(ctx, func(paths []string) { batches <- paths }) }()

	write := func(name string) {
		if err := os.WriteFile(filepath.Join(root, name), []byte("package main\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	write("notes.txt")
	write(filepath.Join("tmp", "skip.go"))
	write("main.go")

	select {
	case batch := <-batches:
		if len(batch) != 1 || filepath.Base(batch[0]) != "main.go" {
			t.Fatalf("expected only main.go, got %v", batch)
		}
	case <-ctx.Done():
		t.Fatal("no change batch delivered")
	}
}

func TestRelevant(t *testing.T) {
	w := &Watcher{opts: Options{Root: ".", Extensions: DefaultExtensions, Ignore: DefaultIgnore}}
	cases := map[string]bool{
		"cmd/api/main.go":           true,
		"db/migrations/00001.sql":   true,
		"vendor/x/y.go":             false,
		"README.md":                 false,
		"node_modules/pkg/index.go": false,
	}
	for path, want := range cases {
		if got := w.relevant(path); got != want {
			t.Errorf("relevant(%q) = %v, want %v", path, got, want)
		}
	}
}
