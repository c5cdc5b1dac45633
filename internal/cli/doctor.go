package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lsmux/lsmux/internal/install"
	"github.com/lsmux/lsmux/internal/platform"
)

func newDoctorCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Print host, configuration, and installed-binary diagnostics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			report, err := platform.Report(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "lsmux %s (commit %s)\n\n", version, commit)
			fmt.Fprintf(out, "host:\n")
			fmt.Fprintf(out, "  os/arch:  %s/%s\n", report.OS, report.Arch)
			if report.Hostname != "" {
				fmt.Fprintf(out, "  hostname: %s\n", report.Hostname)
			}
			if report.Platform != "" {
				fmt.Fprintf(out, "  platform: %s %s\n", report.Platform, report.Version)
			}
			if report.KernelVersion != "" {
				fmt.Fprintf(out, "  kernel:   %s\n", report.KernelVersion)
			}
			if report.Uptime > 0 {
				fmt.Fprintf(out, "  uptime:   %s\n", report.Uptime)
			}

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nconfig:\n")
			fmt.Fprintf(out, "  enabled:      %t\n", cfg.Enabled)
			fmt.Fprintf(out, "  data dir:     %s\n", cfg.DataDir)
			fmt.Fprintf(out, "  auto approve: %t\n", cfg.AutoApprove)
			if cfg.BinaryPath != "" {
				fmt.Fprintf(out, "  binary path:  %s (override)\n", cfg.BinaryPath)
			}
			if cfg.ReleasesURL != "" {
				fmt.Fprintf(out, "  releases url: %s\n", cfg.ReleasesURL)
			}
			if cfg.SigningKey != "" {
				fmt.Fprintf(out, "  signing key:  %s\n", cfg.SigningKey)
			}

			binPath := cfg.BinaryPath
			if binPath == "" {
				binPath = install.BinaryPath(cfg.BinDir())
			}
			fmt.Fprintf(out, "\nterraform-ls:\n")
			if _, err := os.Stat(binPath); err != nil {
				fmt.Fprintf(out, "  not installed (expected at %s)\n", binPath)
				return nil
			}
			installed := install.Probe(ctx, binPath)
			fmt.Fprintf(out, "  path:    %s\n", installed.Path)
			if installed.Version == "" {
				fmt.Fprintf(out, "  version: unknown (version probe failed)\n")
			} else {
				fmt.Fprintf(out, "  version: %s\n", installed.Version)
			}
			return nil
		},
	}
}
