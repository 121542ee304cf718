package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestArtifactWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.md")
	if err := os.WriteFile(path, []byte("v1"), 0644); err != nil {
		t.Fatal(err)
	}

	changed := make(chan string, 4)
	aw, err := NewArtifactWatcher(func(p string) { changed <- p })
	if err != nil {
		t.Fatalf("NewArtifactWatcher: %v", err)
	}
	t.Cleanup(func() { aw.Close() })

	aw.Add(path)
	aw.Add(path) // duplicate is a no-op
	aw.Add("")   // empty path is ignored
	aw.Add(filepath.Join(t.TempDir(), "not-yet-written.md"))

	if err := os.WriteFile(path, []byte("v2"), 0644); err != nil {
		t.Fatal(err)
	}

	select {
	case p := <-changed:
		if p != path {
			t.Errorf("changed path = %q, want %q", p, path)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}
