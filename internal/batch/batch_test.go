package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stemtools/instrumentalize/internal/config"
	"github.com/stemtools/instrumentalize/internal/pipeline"
)

func interceptPipeline(t *testing.T, fn func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error)) {
	t.Helper()
	orig := processFile
	processFile = fn
	t.Cleanup(func() { processFile = orig })
}

func fastConfig() config.Config {
	return config.Config{Throttle: time.Millisecond}
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestRun_ProcessesFilesInOrder(t *testing.T) {
	dir := t.TempDir()
	a := touch(t, dir, "a.flac")
	b := touch(t, dir, "b.flac")

	var seen []string
	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		seen = append(seen, path)
		return pipeline.Result{MixPath: "out"}, nil
	})

	report, err := Run(context.Background(), fastConfig(), []string{a, b})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 2 || seen[0] != a || seen[1] != b {
		t.Fatalf("unexpected order: %v", seen)
	}
	if report.Processed != 2 || !report.Ok() {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRun_ExpandsDirectoryNonRecursively(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "b.flac")
	touch(t, dir, "a.flac")
	sub := filepath.Join(dir, "nested")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	touch(t, sub, "deep.flac")

	var seen []string
	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		seen = append(seen, filepath.Base(path))
		return pipeline.Result{}, nil
	})

	if _, err := Run(context.Background(), fastConfig(), []string{dir}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Immediate children only, in directory order; nothing from nested/.
	if len(seen) != 2 || seen[0] != "a.flac" || seen[1] != "b.flac" {
		t.Fatalf("unexpected expansion: %v", seen)
	}
}

func TestRun_UnknownArgumentIsFatal(t *testing.T) {
	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		t.Fatal("pipeline must not run for unknown arguments")
		return pipeline.Result{}, nil
	})

	_, err := Run(context.Background(), fastConfig(), []string{"/no/such/thing"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_FailuresAccumulateAndBatchContinues(t *testing.T) {
	dir := t.TempDir()
	bad := touch(t, dir, "bad.flac")
	good := touch(t, dir, "good.flac")

	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		if path == bad {
			return pipeline.Result{}, errors.New("separation failed")
		}
		return pipeline.Result{MixPath: "out"}, nil
	})

	report, err := Run(context.Background(), fastConfig(), []string{bad, good})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Processed != 1 {
		t.Fatalf("expected 1 processed, got %d", report.Processed)
	}
	if len(report.Failed) != 1 || report.Failed[0] != bad {
		t.Fatalf("unexpected failures: %v", report.Failed)
	}
	if report.Ok() {
		t.Fatal("report with failures must not be Ok")
	}
}

func TestRun_SkipsAreNotFailures(t *testing.T) {
	dir := t.TempDir()
	notAudio := touch(t, dir, "cover.jpg")
	done := touch(t, dir, "done.flac")

	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		if path == notAudio {
			return pipeline.Result{SkippedNonAudio: true}, nil
		}
		return pipeline.Result{SkippedExisting: true}, nil
	})

	report, err := Run(context.Background(), fastConfig(), []string{notAudio, done})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Ok() {
		t.Fatalf("skips must not be failures: %+v", report)
	}
	if report.SkippedNonAudio != 1 || report.SkippedExisting != 1 || report.Processed != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRun_StopsBetweenFilesOnCancel(t *testing.T) {
	dir := t.TempDir()
	first := touch(t, dir, "first.flac")
	second := touch(t, dir, "second.flac")

	ctx, cancel := context.WithCancel(context.Background())

	var seen int
	interceptPipeline(t, func(ctx context.Context, cfg config.Config, path string) (pipeline.Result, error) {
		seen++
		cancel() // interrupt arrives while the first file is in flight
		return pipeline.Result{}, errors.New("killed")
	})

	report, err := Run(ctx, fastConfig(), []string{first, second})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if seen != 1 {
		t.Fatalf("expected only the first file to run, got %d", seen)
	}
	if len(report.Failed) != 1 || report.Failed[0] != first {
		t.Fatalf("in-flight file must be recorded as failed: %v", report.Failed)
	}
}
