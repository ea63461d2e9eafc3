package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/okubit/humid/internal/logging"
	"github.com/okubit/humid/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Rebuild the document whenever it or its imports change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindBuildFlags(cmd)
		mustBind("watch.debounce_ms", cmd.Flags().Lookup("debounce"))
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b := newBuilder(cfg, logger)
		rebuild := func() bool {
			out, err := b.buildFile(args[0])
			if err != nil {
				logger.Error("build failed", "error", err)
				return false
			}
			if err := writeOutput(cfg.Build.Output, out); err != nil {
				logger.Error("writing output", "error", err)
				return false
			}
			logger.Info("rebuilt", "file", args[0], "output", cfg.Build.Output)
			return true
		}

		return watchLoop(ctx, cfg.Watch.DebounceMS, b, args[0], rebuild)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addBuildFlags(watchCmd)
	watchCmd.Flags().Int("debounce", 5, "debounce window in milliseconds")
}

// watchLoop runs onChange (reporting success) once up front and again
// after every debounced change batch. The watch set is refreshed from
// the build's dependency graph only after a successful build: a failed
// rebuild keeps the previous set, so the file whose change broke the
// build stays watched and the fix triggers the next rebuild. The
// initial set is taken even from a failed first build, since import
// edges are recorded before the imported file is parsed.
func watchLoop(ctx context.Context, debounceMS int, b *builder, entry string, onChange func() bool) error {
	logger := logging.WithComponent(b.logger, "watcher")
	w, err := watcher.New(time.Duration(debounceMS)*time.Millisecond, logger)
	if err != nil {
		return err
	}
	defer w.Close()
	w.Start(ctx)

	onChange()
	if err := w.SetFiles(b.dependencies(entry)); err != nil {
		return err
	}
	logger.Info("watching", "files", len(b.dependencies(entry)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case batch := <-w.Changes():
			for _, ev := range batch {
				logger.Info("change detected", "file", ev.Path, "type", ev.Type.String())
			}
			if !onChange() {
				continue
			}
			if err := w.SetFiles(b.dependencies(entry)); err != nil {
				logger.Warn("updating watch set", "error", err)
			}
		}
	}
}
