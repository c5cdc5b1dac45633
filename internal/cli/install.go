package cli

import (
	"fmt"
	"os"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/lsmux/lsmux/internal/config"
	"github.com/lsmux/lsmux/internal/install"
	"github.com/lsmux/lsmux/internal/platform"
	"github.com/lsmux/lsmux/internal/releases"
	"github.com/lsmux/lsmux/internal/ui"
)

// stageProgress prints one line per completed pipeline stage.
type stageProgress struct {
	log *log.Logger
}

func (p stageProgress) Increment(stage string) {
	p.log.Info("stage complete", "stage", stage)
}

func newInstallCmd(configPath *string) *cobra.Command {
	var autoApprove bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Download, verify, and install the latest terraform-ls release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := loggerFromContext(cmd.Context())

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if autoApprove {
				cfg.AutoApprove = true
			}
			if cfg.BinaryPath != "" {
				return fmt.Errorf("binary_path is set to %s; nothing to install", cfg.BinaryPath)
			}

			prompter := &ui.Terminal{
				In:          cmd.InOrStdin(),
				Out:         cmd.OutOrStdout(),
				AutoApprove: cfg.AutoApprove,
				Log:         logger,
			}
			installer, err := buildInstaller(cfg, prompter, stageProgress{log: logger}, logger)
			if err != nil {
				return err
			}

			if err := ensureWritable(cfg.BinDir()); err != nil {
				return err
			}
			res, err := installer.Install(cmd.Context(), cfg.BinDir())
			if err != nil {
				return err
			}
			if res.Skipped {
				logger.Info("nothing to do", "version", res.Version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "terraform-ls %s installed to %s\n", res.Version, res.Path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "install without confirmation")
	return cmd
}

// buildInstaller assembles the acquisition pipeline from configuration.
func buildInstaller(cfg config.Config, prompter install.Prompter, progress install.Progress, logger *log.Logger) (*install.Installer, error) {
	indexURL := cfg.ReleasesURL
	if indexURL == "" {
		indexURL = releases.DefaultIndexURL
	}
	// Identifies lsmux to the release host.
	userAgent := "lsmux/" + version

	var keyring openpgp.EntityList
	if cfg.SigningKey != "" {
		var err error
		keyring, err = install.LoadKeyring(cfg.SigningKey)
		if err != nil {
			return nil, fmt.Errorf("load signing key: %w", err)
		}
	} else {
		logger.Warn("no signing key configured, manifest signature verification disabled")
	}

	fetcher := install.NewFetcher(userAgent)
	return install.New(install.Config{
		Releases: releases.NewClient(indexURL, userAgent),
		Fetcher:  fetcher,
		Verifier: install.NewVerifier(fetcher, keyring),
		Platform: platform.Host(),
		Prompter: prompter,
		Progress: progress,
		Logger:   logger,
	})
}

// ensureWritable fails early with a clear message when the data directory
// cannot be created.
func ensureWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}
