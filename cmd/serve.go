package cmd

import (
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/okubit/humid/internal/logging"
	"github.com/okubit/humid/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Watch the document and preview it with live reload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		bindBuildFlags(cmd)
		mustBind("watch.debounce_ms", cmd.Flags().Lookup("debounce"))
		mustBind("server.host", cmd.Flags().Lookup("host"))
		mustBind("server.port", cmd.Flags().Lookup("port"))
		mustBind("server.open", cmd.Flags().Lookup("open"))
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(cfg.Server.Host, cfg.Server.Port,
			logging.WithComponent(logger, "server"))
		b := newBuilder(cfg, logger)
		rebuild := func() bool {
			out, err := b.buildFile(args[0])
			if err != nil {
				logger.Error("build failed", "error", err)
				return false
			}
			srv.SetContent(out)
			logger.Info("rebuilt", "file", args[0])
			return true
		}

		errc := make(chan error, 1)
		go func() { errc <- srv.Run(ctx) }()
		go func() { errc <- watchLoop(ctx, cfg.Watch.DebounceMS, b, args[0], rebuild) }()

		logger.Info("preview server running", "url", srv.URL())
		if cfg.Server.Open {
			if err := openBrowser(srv.URL()); err != nil {
				logger.Warn("opening browser", "error", err)
			}
		}

		return <-errc
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addBuildFlags(serveCmd)
	serveCmd.Flags().Int("debounce", 5, "debounce window in milliseconds")
	serveCmd.Flags().String("host", "localhost", "host to bind")
	serveCmd.Flags().IntP("port", "p", 8080, "port to bind")
	serveCmd.Flags().Bool("open", false, "open the page in a browser")
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
