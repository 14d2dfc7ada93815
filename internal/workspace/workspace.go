// Package workspace manages the process-private temporary directory tree one
// input file owns while its pipeline runs.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stemtools/instrumentalize/internal/logging"
)

// MixFileName is the intermediate mixdown artifact written inside the stem
// directory before tagging.
const MixFileName = "mix.wav"

// StemFileNames are the files the separation model writes into the stem
// directory. Cleanup only ever deletes these by name.
var StemFileNames = []string{"bass.wav", "drums.wav", "other.wav", "vocals.wav"}

// NonVocalStemFileNames are the stems combined into the instrumental mix.
var NonVocalStemFileNames = []string{"bass.wav", "drums.wav", "other.wav"}

// Workspace is an exclusively-owned temp tree:
//
//	<root>/<model>/<input-basename>/{bass,drums,other,vocals}.wav
//
// The separation model creates the nested directories; the workspace only
// knows their names so it can clean up afterwards.
type Workspace struct {
	root  string
	model string
	base  string

	released bool
}

// Acquire creates a fresh, uniquely named workspace root for one input file.
func Acquire(model, base string) (*Workspace, error) {
	root, err := os.MkdirTemp("", "instrumentalize-")
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	return &Workspace{root: root, model: model, base: base}, nil
}

// Root returns the workspace root, handed to the separation model as its
// output directory.
func (w *Workspace) Root() string { return w.root }

// StemsDir returns the directory the separation model writes stems into.
func (w *Workspace) StemsDir() string {
	return filepath.Join(w.root, w.model, w.base)
}

// MixTempPath returns the path of the intermediate mixdown inside StemsDir.
func (w *Workspace) MixTempPath() string {
	return filepath.Join(w.StemsDir(), MixFileName)
}

// Release disposes of the workspace. It runs at most once; later calls are
// no-ops so it can sit in a defer and still be called early.
//
// With debug set nothing is removed and the path is surfaced to the operator.
// Otherwise the known intermediates are deleted by name and the three
// directory levels are removed non-recursively: a stray file left behind by a
// partial failure makes Release fail loudly rather than silently destroying
// evidence.
func (w *Workspace) Release(ctx context.Context, debug bool) error {
	if w.released {
		return nil
	}
	w.released = true

	log := logging.FromContext(ctx)

	if debug {
		log.Info("debug mode: workspace preserved", "workspace", w.root)
		return nil
	}

	stemsDir := w.StemsDir()
	known := append([]string{MixFileName}, StemFileNames...)
	for _, name := range known {
		if err := os.Remove(filepath.Join(stemsDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clean workspace: remove %s: %w", name, err)
		}
	}

	// Non-recursive on purpose: fails on anything untracked.
	for _, dir := range []string{stemsDir, filepath.Join(w.root, w.model), w.root} {
		if err := os.Remove(dir); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clean workspace: remove %s: %w", dir, err)
		}
	}

	log.Debug("workspace removed", "workspace", w.root)
	return nil
}
