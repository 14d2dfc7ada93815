// Package mix combines non-vocal stems into one instrumental track, carries
// the source metadata over to it and places it at its final destination.
package mix

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/stemtools/instrumentalize/internal/fs"
	"github.com/stemtools/instrumentalize/internal/logging"
)

type Options struct {
	// OriginalPath is the source file whose tags are copied onto the output.
	OriginalPath string
	// StemPaths are the non-vocal stems to combine (at least one).
	StemPaths []string
	// MixTempPath is where the intermediate combined wav is written.
	MixTempPath string
	// TaggedTempPath is where the tagged flac is written before the move.
	TaggedTempPath string
	// DestPath is the final output location.
	DestPath string

	// Album is the source album tag; AlbumAppend is appended to it.
	Album       string
	AlbumAppend string
}

// runFFmpeg is swappable for tests.
var runFFmpeg = runFFmpegCommand

func runFFmpegCommand(ctx context.Context, args []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	return cmd.CombinedOutput()
}

// Run produces the final instrumental file at opts.DestPath.
//
// Stage one mixes the stems with equal weight, padding shorter stems with
// silence up to the longest. Stage two takes the audio from the mix and every
// metadata tag from the original, rewrites the album tag and encodes to FLAC.
// The result is then moved into place after the destination tree is created.
func Run(ctx context.Context, opts Options) error {
	log := logging.FromContext(ctx)

	if len(opts.StemPaths) == 0 {
		return errors.New("no stems to mix")
	}

	log.Info("mixing stems", "stems", len(opts.StemPaths), "dest", opts.DestPath)

	if output, err := runFFmpeg(ctx, mixArgs(opts.StemPaths, opts.MixTempPath)); err != nil {
		return ffmpegError("mix stems", output, err)
	}

	if output, err := runFFmpeg(ctx, tagArgs(opts.MixTempPath, opts.OriginalPath, opts.Album+opts.AlbumAppend, opts.TaggedTempPath)); err != nil {
		return ffmpegError("tag output", output, err)
	}

	if err := fs.EnsureDir(filepath.Dir(opts.DestPath)); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := fs.RenameOrMove(opts.TaggedTempPath, opts.DestPath); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}

	log.Info("instrumental written", "path", opts.DestPath)
	return nil
}

// mixArgs builds the equal-weight amplitude mix of the stems. amix with
// duration=longest implicitly pads shorter inputs with silence.
func mixArgs(stems []string, out string) []string {
	args := []string{"-y", "-v", "error"}
	for _, stem := range stems {
		args = append(args, "-i", stem)
	}
	filter := "amix=inputs=" + strconv.Itoa(len(stems)) + ":duration=longest:normalize=0"
	args = append(args,
		"-filter_complex", filter,
		out,
	)
	return args
}

// tagArgs remuxes: audio samples from the mixed track, all metadata from the
// original, album rewritten, encoded losslessly.
func tagArgs(mixPath, originalPath, album, out string) []string {
	return []string{
		"-y", "-v", "error",
		"-i", mixPath,
		"-i", originalPath,
		"-map", "0:a",
		"-map_metadata", "1",
		"-metadata", "album=" + album,
		"-c:a", "flac",
		out,
	}
}

func ffmpegError(what string, output []byte, err error) error {
	trimmed := strings.TrimSpace(string(output))
	if trimmed == "" {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%s: %w: %s", what, err, trimmed)
}
