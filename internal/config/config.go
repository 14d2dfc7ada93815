package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/stemtools/instrumentalize/internal/fs"
)

const (
	// DefaultModel is the separation model invoked when none is selected.
	DefaultModel = "htdemucs"

	DefaultAlbumAppend = " (Instrumental)"
	DefaultFileAppend  = "_instrumental"

	// DefaultThrottle is the pause between batch items. The separation model
	// saturates the CPU for minutes at a time; the pause just keeps back-to-back
	// invocations from overlapping teardown and startup.
	DefaultThrottle = 5 * time.Second
)

// Config is the immutable run configuration, built once from defaults overlaid
// by command-line flags and passed down into the batch driver.
type Config struct {
	// OutputRoot is the root of the instrumental output tree.
	OutputRoot string
	// MultitrackRoot is the root of the raw-stem archive tree.
	MultitrackRoot string

	Model string
	// Jobs is the worker count handed to the separation model.
	Jobs int

	SaveMultitrack bool
	OnlyMultitrack bool

	AlbumAppend string
	FileAppend  string

	// Throttle is the pause between batch items.
	Throttle time.Duration

	// Debug disables all workspace cleanup so intermediates can be inspected.
	Debug bool
}

// Default returns the built-in configuration. When the home directory cannot
// be determined the root paths are left empty and rejected by Normalize.
func Default() Config {
	var outputRoot, multitrackRoot string
	if home, err := os.UserHomeDir(); err == nil {
		outputRoot = filepath.Join(home, "Music", "Instrumentals")
		multitrackRoot = filepath.Join(home, "Music", "Multitracks")
	}
	return Config{
		OutputRoot:     outputRoot,
		MultitrackRoot: multitrackRoot,
		Model:          DefaultModel,
		Jobs:           DefaultJobs(),
		AlbumAppend:    DefaultAlbumAppend,
		FileAppend:     DefaultFileAppend,
		Throttle:       DefaultThrottle,
	}
}

// DefaultJobs is the separation worker count: all logical cores minus two,
// floored at one, so the host stays responsive while the model runs.
func DefaultJobs() int {
	n := runtime.NumCPU() - 2
	if n < 1 {
		n = 1
	}
	return n
}

// Normalize expands and absolutizes paths and applies flag implications.
// It returns the normalized copy; the receiver is not modified.
func (c Config) Normalize() (Config, error) {
	if c.Model == "" {
		return Config{}, errors.New("model must not be empty")
	}
	if c.Jobs < 1 {
		c.Jobs = 1
	}
	// Writing only the multitrack implies saving it.
	if c.OnlyMultitrack {
		c.SaveMultitrack = true
	}

	out, err := fs.ResolveAbsPath(fs.ExpandHome(c.OutputRoot))
	if err != nil {
		return Config{}, fmt.Errorf("resolve output dir: %w", err)
	}
	if out == "" {
		return Config{}, errors.New("output dir must not be empty")
	}
	c.OutputRoot = out

	multi, err := fs.ResolveAbsPath(fs.ExpandHome(c.MultitrackRoot))
	if err != nil {
		return Config{}, fmt.Errorf("resolve multitrack dir: %w", err)
	}
	if multi == "" {
		return Config{}, errors.New("multitrack dir must not be empty")
	}
	c.MultitrackRoot = multi

	return c, nil
}
