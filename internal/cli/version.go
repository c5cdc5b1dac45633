package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lsmux/lsmux/internal/install"
)

func newVersionCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print lsmux and installed terraform-ls versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "lsmux %s\n", version)

			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			binPath := cfg.BinaryPath
			if binPath == "" {
				binPath = install.BinaryPath(cfg.BinDir())
			}
			if _, err := os.Stat(binPath); err != nil {
				fmt.Fprintln(out, "terraform-ls not installed")
				return nil
			}
			installed := install.Probe(cmd.Context(), binPath)
			if installed.Version == "" {
				fmt.Fprintln(out, "terraform-ls version unknown")
				return nil
			}
			fmt.Fprintf(out, "terraform-ls %s\n", installed.Version)
			return nil
		},
	}
}
