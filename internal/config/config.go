// Package config loads the lsmux configuration file.
//
// The configuration surface is deliberately small: a custom server binary
// path that bypasses acquisition entirely, the argument list the server is
// launched with, an enable/disable flag, and the knobs of the acquisition
// pipeline (release index URL, data directory, optional signing key).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// DefaultServeArg is the run-mode argument the language server is launched
// with when none is configured.
const DefaultServeArg = "serve"

// Config is the loaded lsmux configuration.
type Config struct {
	// Enabled toggles the whole tool. Disabled means no install and no
	// clients.
	Enabled bool `yaml:"enabled"`
	// BinaryPath overrides the managed binary; when set, acquisition is
	// bypassed and this path is spawned directly.
	BinaryPath string `yaml:"binary_path"`
	// ServeArgs is the argument list passed to the server process.
	ServeArgs []string `yaml:"serve_args"`
	// ReleasesURL overrides the release index location.
	ReleasesURL string `yaml:"releases_url"`
	// DataDir is where lsmux keeps its installed binary.
	DataDir string `yaml:"data_dir"`
	// SigningKey is a path to a PGP public keyring used to authenticate the
	// checksum manifest. Empty disables signature verification.
	SigningKey string `yaml:"signing_key"`
	// AutoApprove answers install confirmations affirmatively without
	// prompting. Intended for non-interactive serve mode.
	AutoApprove bool `yaml:"auto_approve"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Enabled:   true,
		ServeArgs: []string{DefaultServeArg},
	}
}

// DefaultPath returns the conventional config file location
// (~/.config/lsmux/config.yaml or the platform equivalent).
func DefaultPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve user config dir: %w", err)
	}
	return filepath.Join(base, "lsmux", "config.yaml"), nil
}

// Load reads the configuration at path, layering it over Default. A missing
// file yields the defaults without error; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Config{Enabled: true}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return withFallbacks(cfg)
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	return withFallbacks(cfg)
}

// withFallbacks fills unset fields with their defaults and validates the
// result.
func withFallbacks(cfg Config) (Config, error) {
	if len(cfg.ServeArgs) == 0 {
		cfg.ServeArgs = []string{DefaultServeArg}
	}
	if cfg.DataDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve user config dir: %w", err)
		}
		cfg.DataDir = filepath.Join(base, "lsmux")
	}
	return cfg, nil
}

// Equal reports whether two configurations are identical field for field.
func (c Config) Equal(o Config) bool {
	return c.Enabled == o.Enabled &&
		c.BinaryPath == o.BinaryPath &&
		slices.Equal(c.ServeArgs, o.ServeArgs) &&
		c.ReleasesURL == o.ReleasesURL &&
		c.DataDir == o.DataDir &&
		c.SigningKey == o.SigningKey &&
		c.AutoApprove == o.AutoApprove
}

// BinDir returns the directory the managed binary is installed into.
func (c Config) BinDir() string {
	return filepath.Join(c.DataDir, "bin")
}
