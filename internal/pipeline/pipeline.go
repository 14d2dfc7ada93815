// Package pipeline runs the whole per-file conversion: probe, separate,
// mix, tag, archive, clean up.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stemtools/instrumentalize/internal/archive"
	"github.com/stemtools/instrumentalize/internal/config"
	"github.com/stemtools/instrumentalize/internal/fs"
	"github.com/stemtools/instrumentalize/internal/library"
	"github.com/stemtools/instrumentalize/internal/logging"
	"github.com/stemtools/instrumentalize/internal/mix"
	"github.com/stemtools/instrumentalize/internal/probe"
	"github.com/stemtools/instrumentalize/internal/separate"
	"github.com/stemtools/instrumentalize/internal/workspace"
)

// Result reports what the pipeline did with one input.
type Result struct {
	// SkippedNonAudio is set when the file failed the audio gate. Not an error.
	SkippedNonAudio bool
	// SkippedExisting is set when every requested output already existed and
	// the separation model was never invoked.
	SkippedExisting bool

	// MixPath is the instrumental written this run, if any.
	MixPath string
	// ArchiveDir is the multitrack directory written this run, if any.
	ArchiveDir string
}

// Seams for the batch tests.
var (
	readMetadata  = probe.Read
	runSeparation = separate.Run
	runMixdown    = mix.Run
	storeStems    = archive.Store
)

// Run processes one input file under cfg. The returned error is a per-file
// batch error; gate rejections and idempotent skips return a nil error with
// the corresponding Result flag set.
func Run(ctx context.Context, cfg config.Config, inputPath string) (res Result, retErr error) {
	log := logging.FromContext(ctx)

	if !library.IsAudioFile(inputPath) {
		log.Warn("not an audio file, skipping", "path", inputPath)
		return Result{SkippedNonAudio: true}, nil
	}

	absInput, err := fs.ResolveAbsPath(inputPath)
	if err != nil {
		return Result{}, fmt.Errorf("resolve %s: %w", inputPath, err)
	}

	meta, err := readMetadata(ctx, absInput)
	if err != nil {
		return Result{}, err
	}

	base := library.BaseName(absInput)
	year := library.ReleaseYear(meta.Date)
	mixPath := library.MixPath(cfg.OutputRoot, meta.Artist, year, meta.Album, base, cfg.FileAppend)
	archiveDir := library.StemsDir(cfg.MultitrackRoot, meta.Artist, year, meta.Album, base)

	if cfg.SaveMultitrack && pathExists(archiveDir) {
		log.Info("multitrack already archived, skipping", "path", absInput, "archive", archiveDir)
		return Result{SkippedExisting: true}, nil
	}

	needMix := !cfg.OnlyMultitrack && !pathExists(mixPath)
	needArchive := cfg.SaveMultitrack
	if !cfg.OnlyMultitrack && !needMix {
		log.Info("instrumental already exists", "path", mixPath)
	}
	if !needMix && !needArchive {
		return Result{SkippedExisting: true}, nil
	}

	ws, err := workspace.Acquire(cfg.Model, base)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := ws.Release(ctx, cfg.Debug); err != nil {
			if retErr == nil {
				retErr = err
			} else {
				log.Error("workspace cleanup failed", "err", err)
			}
		}
	}()

	err = runSeparation(ctx, separate.Options{
		InputPath:     absInput,
		OutputRoot:    ws.Root(),
		StemsDir:      ws.StemsDir(),
		Model:         cfg.Model,
		Jobs:          cfg.Jobs,
		HighRes:       meta.HighRes(),
		InputDuration: meta.Duration,
	})
	if err != nil {
		return Result{}, err
	}

	if needMix {
		err = runMixdown(ctx, mix.Options{
			OriginalPath:   absInput,
			StemPaths:      separate.NonVocalStems(ws.StemsDir()),
			MixTempPath:    ws.MixTempPath(),
			TaggedTempPath: filepath.Join(ws.StemsDir(), base+cfg.FileAppend+".flac"),
			DestPath:       mixPath,
			Album:          meta.Album,
			AlbumAppend:    cfg.AlbumAppend,
		})
		if err != nil {
			return Result{}, err
		}
		res.MixPath = mixPath
	}

	if needArchive {
		if err := storeStems(ctx, ws.StemsDir(), archiveDir); err != nil {
			return Result{}, err
		}
		res.ArchiveDir = archiveDir
	}

	return res, nil
}

func pathExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, os.ErrNotExist)
}
