package cmd

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/okubit/humid/internal/config"
	"github.com/okubit/humid/internal/emitter"
	"github.com/okubit/humid/internal/kdl"
	"github.com/okubit/humid/internal/template"
)

var buildCmd = &cobra.Command{
	Use:   "build <file>",
	Short: "Render a document to HTML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindBuildFlags(cmd)
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		b := newBuilder(cfg, logger)
		out, err := b.buildFile(args[0])
		if err != nil {
			return err
		}
		return writeOutput(cfg.Build.Output, out)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	addBuildFlags(buildCmd)
}

// Several commands carry the build flag set. Binding happens at run
// time so the executing command's flags are the ones viper consults.
func addBuildFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("output", "o", "-", `output path ("-" for stdout)`)
	cmd.Flags().Int("indent", 4, "spaces per nesting level")
	cmd.Flags().Bool("minify", false, "emit without whitespace")
	cmd.Flags().Bool("follow-formatting", false, "reproduce source indentation")
}

func bindBuildFlags(cmd *cobra.Command) {
	mustBind("build.output", cmd.Flags().Lookup("output"))
	mustBind("build.indent", cmd.Flags().Lookup("indent"))
	mustBind("build.minify", cmd.Flags().Lookup("minify"))
	mustBind("build.follow_formatting", cmd.Flags().Lookup("follow-formatting"))
}

// builder holds the pieces reused across rebuilds in watch mode: the
// emitter prototype and the template plugin, whose dependency graph
// feeds the watcher.
type builder struct {
	emitter *emitter.Builder
	tpl     *template.Plugin
	logger  *slog.Logger
}

func newBuilder(cfg *config.Config, logger *slog.Logger) *builder {
	tpl := template.New()
	eb := emitter.NewBuilder().
		Indent(cfg.Build.Indent).
		FollowFormatting(cfg.Build.FollowFormatting).
		Logger(logger)
	if cfg.Build.Minify {
		eb.Minify()
	}
	// Plugin names are validated by config.Load; order is dispatch
	// order.
	for _, name := range cfg.Plugins {
		switch name {
		case "template":
			eb.AddPlugin(tpl)
		}
	}
	return &builder{emitter: eb, tpl: tpl, logger: logger}
}

// buildFile renders one document from disk.
func (b *builder) buildFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	src, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := kdl.Parse(string(src))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	b.tpl.BeginBuild(abs)
	var buf bytes.Buffer
	if err := b.emitter.Build().Render(doc, &buf); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", path, err)
	}
	b.logger.Debug("document rendered", "file", path, "bytes", buf.Len())
	return buf.Bytes(), nil
}

// dependencies returns all files the last build read, entry included.
func (b *builder) dependencies(entry string) []string {
	abs, err := filepath.Abs(entry)
	if err != nil {
		abs = entry
	}
	return append(b.tpl.Dependencies(), abs)
}

// writeOutput writes rendered HTML to path, atomically so a watching
// browser never reads a half-written file. "-" writes to stdout.
func writeOutput(path string, data []byte) error {
	if path == "-" || path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}
