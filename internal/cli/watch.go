package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/stemtools/instrumentalize/internal/fs"
	"github.com/stemtools/instrumentalize/internal/library"
	"github.com/stemtools/instrumentalize/internal/logging"
	"github.com/stemtools/instrumentalize/internal/pipeline"
)

const defaultSettleDelay = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch [flags] <dir>",
	Short: "Watch a drop directory and process audio files as they appear",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromFlags(cmd)
		if err != nil {
			return err
		}
		if err := preflight(); err != nil {
			return err
		}

		dir, err := fs.ResolveAbsPath(args[0])
		if err != nil {
			return err
		}
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("not a directory: %s", args[0])
		}

		settle, _ := cmd.Flags().GetDuration("settle")

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer fs.CloseOrLog(watcher, "watcher")

		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}

		log := logging.FromContext(ctx)
		log.Info("watching for new audio files", "dir", dir)

		for {
			select {
			case <-ctx.Done():
				log.Info("watch stopped")
				return ctx.Err()

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if !library.IsAudioFile(event.Name) {
					continue
				}
				if err := waitForSettle(ctx, event.Name, settle); err != nil {
					if errors.Is(err, context.Canceled) {
						return err
					}
					log.Debug("file vanished before settling", "path", event.Name, "err", err)
					continue
				}
				if _, err := pipeline.Run(ctx, cfg, event.Name); err != nil {
					log.Error("processing failed", "path", event.Name, "err", err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Error("watch error", "err", err)
			}
		}
	},
}

// waitForSettle waits until path's size stops changing, so a file still being
// copied into the drop directory isn't processed half-written.
func waitForSettle(ctx context.Context, path string, delay time.Duration) error {
	var lastSize int64 = -1
	for {
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.Size() == lastSize && info.Size() > 0 {
			return nil
		}
		lastSize = info.Size()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func init() {
	addRunFlags(watchCmd)
	watchCmd.Flags().Duration("settle", defaultSettleDelay, "How long a file's size must be stable before it is processed")
}
