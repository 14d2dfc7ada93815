// Package separate invokes the external source-separation model.
package separate

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/stemtools/instrumentalize/internal/logging"
	"github.com/stemtools/instrumentalize/internal/workspace"
)

// ErrNoStems means the model exited zero but wrote none of the non-vocal
// stems. The model swallows some of its own failures, so exit status alone
// cannot be trusted.
var ErrNoStems = errors.New("separation produced no non-vocal stems")

type Options struct {
	InputPath string
	// OutputRoot is the workspace root the model writes its
	// <model>/<basename> tree under.
	OutputRoot string
	// StemsDir is where the stems are expected to land.
	StemsDir string

	Model string
	Jobs  int
	// HighRes selects 24-bit stem output for 24-bit sources.
	HighRes bool

	// InputDuration, when known, is used to report the processing rate.
	InputDuration time.Duration
}

// runSeparator is swappable for tests.
var runSeparator = runSeparatorCommand

func runSeparatorCommand(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "demucs", args...)
	return cmd.CombinedOutput()
}

// Run separates opts.InputPath into stems under opts.StemsDir.
// The model always runs on CPU; GPU execution is unsupported.
func Run(ctx context.Context, opts Options) error {
	log := logging.FromContext(ctx)

	args := []string{
		"-n", opts.Model,
		"-o", opts.OutputRoot,
		"-d", "cpu",
		"-j", strconv.Itoa(opts.Jobs),
	}
	if opts.HighRes {
		args = append(args, "--int24")
	}
	args = append(args, opts.InputPath)

	log.Info("separating", "input", opts.InputPath, "model", opts.Model, "jobs", opts.Jobs, "high_res", opts.HighRes)

	start := time.Now()
	output, err := runSeparator(ctx, args)
	elapsed := time.Since(start)
	if err != nil {
		trimmed := strings.TrimSpace(string(output))
		if trimmed == "" {
			return fmt.Errorf("run separation model: %w", err)
		}
		return fmt.Errorf("run separation model: %w: %s", err, trimmed)
	}
	log.Debug(string(output))

	if err := checkStems(opts.StemsDir); err != nil {
		return err
	}

	if opts.InputDuration > 0 && elapsed > 0 {
		rate := opts.InputDuration.Seconds() / elapsed.Seconds()
		log.Info("separation finished", "elapsed", elapsed.Round(time.Second), "rate", fmt.Sprintf("%.2fx", rate))
	} else {
		log.Info("separation finished", "elapsed", elapsed.Round(time.Second))
	}

	return nil
}

// checkStems requires at least one non-vocal stem to exist.
func checkStems(stemsDir string) error {
	for _, name := range workspace.NonVocalStemFileNames {
		if _, err := os.Stat(filepath.Join(stemsDir, name)); err == nil {
			return nil
		}
	}
	return fmt.Errorf("%w in %s", ErrNoStems, stemsDir)
}

// NonVocalStems returns the paths of the non-vocal stems that actually exist
// in stemsDir, in a fixed order.
func NonVocalStems(stemsDir string) []string {
	var stems []string
	for _, name := range workspace.NonVocalStemFileNames {
		p := filepath.Join(stemsDir, name)
		if _, err := os.Stat(p); err == nil {
			stems = append(stems, p)
		}
	}
	return stems
}
