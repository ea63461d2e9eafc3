// Package config loads tool configuration with Viper: a .humid.yml
// file, HUMID_-prefixed environment variables, and command-line flags,
// in increasing order of precedence.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full tool configuration.
type Config struct {
	Build    BuildConfig  `mapstructure:"build" yaml:"build"`
	Watch    WatchConfig  `mapstructure:"watch" yaml:"watch"`
	Server   ServerConfig `mapstructure:"server" yaml:"server"`
	LogLevel string       `mapstructure:"log_level" yaml:"log_level"`
	// Plugins lists the enabled plugins in dispatch order.
	Plugins []string `mapstructure:"plugins" yaml:"plugins"`
}

// knownPlugins are the plugin names the tool can construct.
var knownPlugins = map[string]bool{"template": true}

// BuildConfig controls HTML emission.
type BuildConfig struct {
	// Indent is the number of spaces per nesting level.
	Indent int `mapstructure:"indent" yaml:"indent"`
	// Minify drops all whitespace; overrides Indent.
	Minify bool `mapstructure:"minify" yaml:"minify"`
	// FollowFormatting reproduces the source file's indentation.
	FollowFormatting bool `mapstructure:"follow_formatting" yaml:"follow_formatting"`
	// Output is the output path; "-" writes to stdout.
	Output string `mapstructure:"output" yaml:"output"`
}

// WatchConfig controls the rebuild-on-change loop.
type WatchConfig struct {
	DebounceMS int `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// ServerConfig controls the preview server.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
	Open bool   `mapstructure:"open" yaml:"open"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Build:    BuildConfig{Indent: 4, Output: "-"},
		Watch:    WatchConfig{DebounceMS: 5},
		Server:   ServerConfig{Host: "localhost", Port: 8080},
		LogLevel: "info",
		Plugins:  []string{"template"},
	}
}

// SetDefaults registers the default values on a viper instance so that
// file and environment lookups fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("build.indent", d.Build.Indent)
	v.SetDefault("build.minify", d.Build.Minify)
	v.SetDefault("build.follow_formatting", d.Build.FollowFormatting)
	v.SetDefault("build.output", d.Build.Output)
	v.SetDefault("watch.debounce_ms", d.Watch.DebounceMS)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.open", d.Server.Open)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("plugins", d.Plugins)
}

// Load unmarshals and validates the configuration from a viper
// instance that has already read its sources.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the tool cannot act on.
func (c *Config) Validate() error {
	if c.Build.Indent < 0 {
		return fmt.Errorf("build.indent must not be negative, got %d", c.Build.Indent)
	}
	if c.Watch.DebounceMS < 0 {
		return fmt.Errorf("watch.debounce_ms must not be negative, got %d", c.Watch.DebounceMS)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got %d", c.Server.Port)
	}
	switch c.LogLevel {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel)
	}
	for _, name := range c.Plugins {
		if !knownPlugins[name] {
			return fmt.Errorf("unknown plugin %q", name)
		}
	}
	return nil
}

// WriteDefault writes a commented starter configuration file. It
// refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	out, err := yaml.Marshal(Default())
	if err != nil {
		return err
	}
	header := []byte("# humid configuration\n# values here are overridden by HUMID_* environment variables and flags\n")
	return os.WriteFile(path, append(header, out...), 0o644)
}
