// Package ui implements the user-facing prompt surface: install
// confirmation, reload-required notices, changelog offers, and error
// display. The core pipeline and lifecycle manager talk to it through
// narrow interfaces and never depend on this package.
package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// changelogURL is where release notes for an installed version live.
const changelogURL = "https://github.com/hashicorp/terraform-ls/releases/tag/v%s"

// Terminal prompts on an interactive terminal. With AutoApprove set it
// answers confirmations affirmatively without reading input, which serve
// mode relies on.
type Terminal struct {
	In          io.Reader
	Out         io.Writer
	AutoApprove bool
	Log         *log.Logger
}

// ConfirmInstall asks whether the given version should be installed.
func (t *Terminal) ConfirmInstall(ctx context.Context, version string) (bool, error) {
	if t.AutoApprove {
		t.Log.Info("installing", "version", version)
		return true, nil
	}

	fmt.Fprintf(t.Out, "Install terraform-ls %s? [y/N] ", version)

	type answer struct {
		ok  bool
		err error
	}
	ch := make(chan answer, 1)
	go func() {
		line, err := bufio.NewReader(t.In).ReadString('\n')
		if err != nil && err != io.EOF {
			ch <- answer{err: err}
			return
		}
		reply := strings.ToLower(strings.TrimSpace(line))
		ch <- answer{ok: reply == "y" || reply == "yes"}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case a := <-ch:
		return a.ok, a.err
	}
}

// ShowChangelog offers the release notes for an installed version.
func (t *Terminal) ShowChangelog(version string) {
	fmt.Fprintf(t.Out, "terraform-ls %s installed. Changelog: "+changelogURL+"\n", version, version)
}

// ReloadRequired tells the user a configuration change only takes effect
// after a restart.
func (t *Terminal) ReloadRequired() {
	fmt.Fprintln(t.Out, "Configuration changed. Restart lsmux for the change to take effect.")
}

// ShowError surfaces a fatal pipeline or lifecycle error.
func (t *Terminal) ShowError(err error) {
	t.Log.Error("operation failed", "error", err)
	fmt.Fprintf(t.Out, "Error: %v\n", err)
}
