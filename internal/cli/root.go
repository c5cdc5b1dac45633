// Package cli implements the lsmux command-line interface.
//
// The main commands are:
//   - install: acquire and verify the latest terraform-ls release
//   - serve: watch workspace folders and manage language server clients
//   - doctor: print host, config, and installed-binary diagnostics
//
// All commands support --verbose (-v) for debug-level logging and --config
// to point at an alternate config file. Loggers are passed through
// context.Context.
package cli

import (
	"context"
	"fmt"
	"os"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lsmux/lsmux/internal/config"
)

var (
	version = "dev" // semantic version, injected via ldflags
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the build information displayed by --version. Called by
// the main package with values injected at build time.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// Execute runs the lsmux CLI.
func Execute(ctx context.Context) error {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "lsmux",
		Short:        "lsmux manages terraform-ls installation and workspace sessions",
		Long:         `lsmux keeps a verified terraform-ls binary installed and runs one language server instance per workspace root, multiplexing nested roots onto their outermost ancestor.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := charmlog.InfoLevel
			if verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("lsmux %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default is the platform config dir)")

	root.AddCommand(newInstallCmd(&configPath))
	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newDoctorCmd(&configPath))
	root.AddCommand(newVersionCmd(&configPath))

	return root.ExecuteContext(ctx)
}

// resolveConfigPath returns the flag value, falling back to the platform
// default location.
func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return config.DefaultPath()
}

// loadConfig resolves the config file path (flag value or platform default)
// and loads it.
func loadConfig(path string) (config.Config, error) {
	resolved, err := resolveConfigPath(path)
	if err != nil {
		return config.Config{}, err
	}
	return config.Load(resolved)
}
