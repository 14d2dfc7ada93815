// Package batch drives the per-file pipeline over the command-line inputs.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/stemtools/instrumentalize/internal/config"
	"github.com/stemtools/instrumentalize/internal/logging"
	"github.com/stemtools/instrumentalize/internal/pipeline"
)

// Report accumulates the outcome of one batch run.
type Report struct {
	Processed       int
	SkippedNonAudio int
	SkippedExisting int
	// Failed holds the resolved path of every input that failed a stage.
	Failed []string
}

// Ok reports whether the run finished without per-file errors.
func (r Report) Ok() bool { return len(r.Failed) == 0 }

// processFile is swappable for tests.
var processFile = pipeline.Run

// Run processes each argument in order. Directory arguments expand to their
// immediate children (non-recursive); file arguments are processed directly;
// anything else aborts the whole run.
//
// Per-file failures are recorded in the report and the batch moves on. The
// returned error is non-nil only for fatal conditions: an unknown argument or
// a cancelled context.
func Run(ctx context.Context, cfg config.Config, args []string) (Report, error) {
	log := logging.FromContext(ctx)
	report := Report{}

	// A deliberate pause between items so one file's teardown never overlaps
	// the next invocation's startup.
	limiter := rate.NewLimiter(rate.Every(cfg.Throttle), 1)

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return report, fmt.Errorf("argument is neither file nor directory: %s", arg)
		}

		if !info.IsDir() {
			if err := processOne(ctx, cfg, limiter, arg, &report); err != nil {
				return report, err
			}
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return report, fmt.Errorf("read directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				log.Debug("skipping nested directory", "path", filepath.Join(arg, entry.Name()))
				continue
			}
			if err := processOne(ctx, cfg, limiter, filepath.Join(arg, entry.Name()), &report); err != nil {
				return report, err
			}
		}
	}

	return report, nil
}

func processOne(ctx context.Context, cfg config.Config, limiter *rate.Limiter, path string, report *Report) error {
	log := logging.FromContext(ctx)

	if err := limiter.Wait(ctx); err != nil {
		return err
	}

	res, err := processFile(ctx, cfg, path)
	switch {
	case err != nil:
		log.Error("processing failed", "path", path, "err", err)
		report.Failed = append(report.Failed, path)
	case res.SkippedNonAudio:
		report.SkippedNonAudio++
	case res.SkippedExisting:
		report.SkippedExisting++
	default:
		report.Processed++
	}

	// An interrupt stops the batch, not just the in-flight file.
	return ctx.Err()
}
