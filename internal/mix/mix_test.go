package mix

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func interceptFFmpeg(t *testing.T, fn func(ctx context.Context, args []string) ([]byte, error)) {
	t.Helper()
	orig := runFFmpeg
	runFFmpeg = fn
	t.Cleanup(func() { runFFmpeg = orig })
}

func TestMixArgs(t *testing.T) {
	got := mixArgs([]string{"/w/bass.wav", "/w/drums.wav", "/w/other.wav"}, "/w/mix.wav")
	want := []string{
		"-y", "-v", "error",
		"-i", "/w/bass.wav",
		"-i", "/w/drums.wav",
		"-i", "/w/other.wav",
		"-filter_complex", "amix=inputs=3:duration=longest:normalize=0",
		"/w/mix.wav",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("mixArgs = %v, want %v", got, want)
	}
}

func TestMixArgs_TwoStems(t *testing.T) {
	got := mixArgs([]string{"/w/bass.wav", "/w/other.wav"}, "/w/mix.wav")
	if !slices.Contains(got, "amix=inputs=2:duration=longest:normalize=0") {
		t.Fatalf("expected 2-input amix filter, got %v", got)
	}
}

func TestTagArgs_RewritesAlbumOnly(t *testing.T) {
	got := tagArgs("/w/mix.wav", "/music/src.flac", "Dummy (Instrumental)", "/w/out.flac")
	want := []string{
		"-y", "-v", "error",
		"-i", "/w/mix.wav",
		"-i", "/music/src.flac",
		"-map", "0:a",
		"-map_metadata", "1",
		"-metadata", "album=Dummy (Instrumental)",
		"-c:a", "flac",
		"/w/out.flac",
	}
	if !slices.Equal(got, want) {
		t.Fatalf("tagArgs = %v, want %v", got, want)
	}
}

func TestRun_MovesTaggedFileIntoPlace(t *testing.T) {
	work := t.TempDir()
	out := t.TempDir()

	opts := Options{
		OriginalPath:   "/music/src.flac",
		StemPaths:      []string{filepath.Join(work, "bass.wav")},
		MixTempPath:    filepath.Join(work, "mix.wav"),
		TaggedTempPath: filepath.Join(work, "src_instrumental.flac"),
		DestPath:       filepath.Join(out, "Artist", "1994 Dummy", "src_instrumental.flac"),
		Album:          "Dummy",
		AlbumAppend:    " (Instrumental)",
	}

	var calls [][]string
	interceptFFmpeg(t, func(ctx context.Context, args []string) ([]byte, error) {
		calls = append(calls, args)
		// Second invocation writes the tagged artifact.
		if len(calls) == 2 {
			if err := os.WriteFile(opts.TaggedTempPath, []byte("flac"), 0o644); err != nil {
				t.Fatalf("write tagged temp: %v", err)
			}
		}
		return nil, nil
	})

	if err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 ffmpeg invocations, got %d", len(calls))
	}
	if !slices.Contains(calls[1], "album=Dummy (Instrumental)") {
		t.Fatalf("expected rewritten album tag in %v", calls[1])
	}
	if _, err := os.Stat(opts.DestPath); err != nil {
		t.Fatalf("expected final output at dest: %v", err)
	}
	if _, err := os.Stat(opts.TaggedTempPath); !os.IsNotExist(err) {
		t.Fatalf("expected tagged temp to be moved away, got err=%v", err)
	}
}

func TestRun_NoStemsFails(t *testing.T) {
	interceptFFmpeg(t, func(ctx context.Context, args []string) ([]byte, error) {
		t.Fatal("ffmpeg must not run without stems")
		return nil, nil
	})
	if err := Run(context.Background(), Options{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestRun_FFmpegFailureIncludesOutput(t *testing.T) {
	interceptFFmpeg(t, func(ctx context.Context, args []string) ([]byte, error) {
		return []byte("Invalid data found when processing input"), errors.New("exit status 1")
	})
	err := Run(context.Background(), Options{StemPaths: []string{"/w/bass.wav"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Fatalf("expected ffmpeg output in error, got %v", err)
	}
}
