package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"log/slog"

	"github.com/spf13/cobra"

	"github.com/stemtools/instrumentalize/internal/batch"
	"github.com/stemtools/instrumentalize/internal/config"
	"github.com/stemtools/instrumentalize/internal/logging"
)

var verbose bool

// version and commit are set at build time via -ldflags.
// If left empty, they show as "dev".
var version = ""
var commit = ""

const (
	envVerbose        = "INSTRUMENTALIZE_VERBOSE"
	envOutputDir      = "INSTRUMENTALIZE_OUTPUT_DIR"
	envMultitrackDir  = "INSTRUMENTALIZE_MULTITRACK_DIR"
	envSaveMultitrack = "INSTRUMENTALIZE_SAVE_MULTITRACK"
	envOnlyMultitrack = "INSTRUMENTALIZE_ONLY_MULTITRACK"
	envModel          = "INSTRUMENTALIZE_MODEL"
	envJobs           = "INSTRUMENTALIZE_JOBS"
	envAppend         = "INSTRUMENTALIZE_APPEND"
	envFileAppend     = "INSTRUMENTALIZE_FILE_APPEND"
	envThrottle       = "INSTRUMENTALIZE_THROTTLE"
	envDebug          = "INSTRUMENTALIZE_DEBUG"
)

// lookPath is swappable for tests.
var lookPath = exec.LookPath

// requiredTools must be on PATH before any file is touched.
var requiredTools = []string{"ffprobe", "ffmpeg", "demucs"}

var rootCmd = &cobra.Command{
	Use:   "instrumentalize [flags] <file|dir>...",
	Short: "Batch-convert audio files into instrumental mixes and stem sets",
	Long: `instrumentalize separates each input into stems with an external
source-separation model, mixes the non-vocal stems back into an instrumental
track and files the result under <output-dir>/<artist>/[<year> ]<album>/.
Raw stems can optionally be archived to a parallel multitrack tree.`,
	Args:          cobra.MinimumNArgs(1),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Allow configuring verbosity via env var when the flag isn't provided.
		if err := resolveBoolFlagFromEnv(cmd, "verbose", envVerbose); err != nil {
			return err
		}

		logger := logging.New(os.Stderr, logging.Level(verbose))
		slog.SetDefault(logger)
		cmd.SetContext(logging.WithLogger(cmd.Context(), logger))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}

		if err := preflight(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log := logging.FromContext(ctx)

		report, runErr := batch.Run(ctx, cfg, args)

		for _, path := range report.Failed {
			fmt.Fprintf(os.Stderr, "failed: %s\n", path)
		}
		if runErr != nil {
			return runErr
		}
		if !report.Ok() {
			return fmt.Errorf("%d input(s) failed", len(report.Failed))
		}

		log.Info("batch finished",
			"processed", report.Processed,
			"already_done", report.SkippedExisting,
			"not_audio", report.SkippedNonAudio)
		return nil
	},
}

// addRunFlags registers the pipeline flags shared by the root and watch
// commands. Defaults come from the built-in configuration.
func addRunFlags(cmd *cobra.Command) {
	def := config.Default()

	cmd.Flags().StringP("output-dir", "o", def.OutputRoot, "Instrumental output root directory")
	cmd.Flags().String("multitrack-dir", def.MultitrackRoot, "Multitrack archive root directory")
	cmd.Flags().BoolP("save-multitrack", "s", false, "Also archive the raw stems to the multitrack root")
	cmd.Flags().BoolP("only-multitrack", "m", false, "Archive raw stems only; skip the instrumental mixdown (implies --save-multitrack)")
	cmd.Flags().StringP("append", "a", def.AlbumAppend, "String appended to the album tag of outputs")
	cmd.Flags().StringP("file-append", "f", def.FileAppend, "String appended to the output filename before the extension")
	cmd.Flags().String("model", def.Model, "Separation model name")
	cmd.Flags().IntP("jobs", "j", def.Jobs, "Worker count passed to the separation model")
	cmd.Flags().Duration("throttle", def.Throttle, "Pause between batch items")
	cmd.Flags().BoolP("debug", "d", false, "Keep all intermediate files and workspaces for inspection")
}

// configFromFlags applies the env overlay and builds the normalized run
// configuration.
func configFromFlags(cmd *cobra.Command) (config.Config, error) {
	overlays := []error{
		resolveStringFlagFromEnv(cmd, "output-dir", envOutputDir),
		resolveStringFlagFromEnv(cmd, "multitrack-dir", envMultitrackDir),
		resolveBoolFlagFromEnv(cmd, "save-multitrack", envSaveMultitrack),
		resolveBoolFlagFromEnv(cmd, "only-multitrack", envOnlyMultitrack),
		resolveStringFlagFromEnv(cmd, "append", envAppend),
		resolveStringFlagFromEnv(cmd, "file-append", envFileAppend),
		resolveStringFlagFromEnv(cmd, "model", envModel),
		resolveIntFlagFromEnv(cmd, "jobs", envJobs),
		resolveDurationFlagFromEnv(cmd, "throttle", envThrottle),
		resolveBoolFlagFromEnv(cmd, "debug", envDebug),
	}
	if err := errors.Join(overlays...); err != nil {
		return config.Config{}, err
	}

	cfg := config.Default()
	cfg.OutputRoot, _ = cmd.Flags().GetString("output-dir")
	cfg.MultitrackRoot, _ = cmd.Flags().GetString("multitrack-dir")
	cfg.SaveMultitrack, _ = cmd.Flags().GetBool("save-multitrack")
	cfg.OnlyMultitrack, _ = cmd.Flags().GetBool("only-multitrack")
	cfg.AlbumAppend, _ = cmd.Flags().GetString("append")
	cfg.FileAppend, _ = cmd.Flags().GetString("file-append")
	cfg.Model, _ = cmd.Flags().GetString("model")
	cfg.Jobs, _ = cmd.Flags().GetInt("jobs")
	cfg.Throttle, _ = cmd.Flags().GetDuration("throttle")
	cfg.Debug, _ = cmd.Flags().GetBool("debug")

	return cfg.Normalize()
}

// preflight verifies the external tools are installed before work starts.
func preflight() error {
	for _, tool := range requiredTools {
		if _, err := lookPath(tool); err != nil {
			return fmt.Errorf("%s not found in PATH", tool)
		}
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already formatted errors; keep it simple.
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging")
	addRunFlags(rootCmd)

	v := version
	if v == "" {
		v = "dev"
	}
	if commit != "" {
		rootCmd.Version = v + " (" + commit + ")"
	} else {
		rootCmd.Version = v
	}
	// Enable Cobra's built-in --version flag. This prints Version and exits.
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	rootCmd.AddCommand(watchCmd)
}
