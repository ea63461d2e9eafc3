// Package cmd provides the humid command-line interface.
//
// Configuration is layered: command-line flags override HUMID_-prefixed
// environment variables (HUMID_BUILD_INDENT, HUMID_SERVER_PORT, ...),
// which override the .humid.yml configuration file.
package cmd

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/okubit/humid/internal/config"
	"github.com/okubit/humid/internal/logging"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "humid",
	Short: "A tree-structured document to HTML transpiler",
	Long: `Humid turns indentation-friendly node-tree documents into HTML.

Documents are plain text: each node becomes an element, entries become
attributes, $name nodes bind variables, and @-prefixed nodes invoke
templates, loops, imports and other plugins.

Quick start:
  humid init                 Write a starter .humid.yml
  humid build index.kdl      Render a document to HTML
  humid watch index.kdl      Rebuild whenever the document changes
  humid serve index.kdl      Watch and preview with live reload`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .humid.yml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	mustBind("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func mustBind(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".humid")
	}

	viper.SetEnvPrefix("HUMID")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	config.SetDefaults(viper.GetViper())

	// A missing config file is fine; defaults and environment apply.
	_ = viper.ReadInConfig()
}

// loadConfig resolves the effective configuration and its logger.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	format, _ := cmd.Flags().GetString("log-format")
	logger := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: format,
		Output: os.Stderr,
	})
	return cfg, logger, nil
}
