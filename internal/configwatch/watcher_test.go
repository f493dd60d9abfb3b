package configwatch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherFiresOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("initial"), 0o600); err != nil {
		t.Fatalf("seeding config file: %v", err)
	}

	fired := make(chan struct{}, 1)
	w, err := New(path, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.debounce = 10 * time.Millisecond
	defer w.Close()

	if err := os.WriteFile(path, []byte("updated"), 0o600); err != nil {
		t.Fatalf("rewriting config file: %v", err)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was not called after the config file was rewritten")
	}
}

func TestWatcherDebouncesBurstsOfWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("initial"), 0o600); err != nil {
		t.Fatalf("seeding config file: %v", err)
	}

	var calls int
	fired := make(chan struct{}, 8)
	w, err := New(path, func() {
		calls++
		fired <- struct{}{}
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	w.debounce = 100 * time.Millisecond
	defer w.Close()

	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("rev"), 0o600); err != nil {
			t.Fatalf("rewriting config file: %v", err)
		}
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("onChange was never called for the write burst")
	}

	select {
	case <-fired:
		t.Fatal("onChange fired more than once for a single debounced burst")
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcherToleratesMissingFileAtStartup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist-yet.toml")

	w, err := New(path, func() {})
	if err != nil {
		t.Fatalf("New() error = %v, want nil even when the target file is absent", err)
	}
	defer w.Close()
}
