package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stemtools/instrumentalize/internal/workspace"
)

func setupStems(t *testing.T, withMixTemp bool) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "htdemucs", "track")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	for _, name := range workspace.StemFileNames {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("pcm"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if withMixTemp {
		if err := os.WriteFile(filepath.Join(dir, workspace.MixFileName), []byte("pcm"), 0o644); err != nil {
			t.Fatalf("write mix temp: %v", err)
		}
	}
	return dir
}

func TestStore_MovesStemsAndDropsMixArtifact(t *testing.T) {
	stems := setupStems(t, true)
	dest := filepath.Join(t.TempDir(), "Artist", "1994 Album", "track")

	if err := Store(context.Background(), stems, dest); err != nil {
		t.Fatalf("Store: %v", err)
	}

	for _, name := range workspace.StemFileNames {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Fatalf("expected %s in archive: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, workspace.MixFileName)); !os.IsNotExist(err) {
		t.Fatalf("mix artifact must not be archived, got err=%v", err)
	}
	if _, err := os.Stat(stems); !os.IsNotExist(err) {
		t.Fatalf("expected source stem dir to be gone, got err=%v", err)
	}
}

func TestStore_RefusesExistingDestination(t *testing.T) {
	stems := setupStems(t, false)
	dest := filepath.Join(t.TempDir(), "track")
	if err := os.MkdirAll(dest, 0o755); err != nil {
		t.Fatalf("mkdir dest: %v", err)
	}

	if err := Store(context.Background(), stems, dest); err == nil {
		t.Fatal("expected error for existing destination")
	}
	// The source must be untouched on refusal.
	for _, name := range workspace.StemFileNames {
		if _, err := os.Stat(filepath.Join(stems, name)); err != nil {
			t.Fatalf("source stem %s should survive: %v", name, err)
		}
	}
}
