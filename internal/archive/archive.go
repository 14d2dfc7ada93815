// Package archive relocates raw stem directories into the multitrack tree.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stemtools/instrumentalize/internal/fs"
	"github.com/stemtools/instrumentalize/internal/logging"
	"github.com/stemtools/instrumentalize/internal/workspace"
)

// Store moves the whole stem directory stemsDir to destDir, creating parent
// directories as needed and never overwriting an existing destination. Any
// temporary mixdown artifact is deleted first so only the raw stems travel.
func Store(ctx context.Context, stemsDir, destDir string) error {
	log := logging.FromContext(ctx)

	mixTemp := filepath.Join(stemsDir, workspace.MixFileName)
	if err := os.Remove(mixTemp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove mix artifact before archiving: %w", err)
	}

	if err := fs.EnsureDir(filepath.Dir(destDir)); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}
	if err := fs.MoveDirNoClobber(stemsDir, destDir); err != nil {
		return fmt.Errorf("archive multitrack: %w", err)
	}

	log.Info("multitrack archived", "path", destDir)
	return nil
}
