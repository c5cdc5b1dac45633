package platform

import (
	"context"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// HostReport contains detailed host information for diagnostics output.
type HostReport struct {
	Info
	Hostname      string
	Platform      string // distro ID on Linux (e.g. "ubuntu"), product name elsewhere
	Version       string // distro or OS version
	KernelVersion string
	Uptime        time.Duration
}

// Report gathers host details for the doctor command. Normalized OS/arch are
// always populated; the remaining fields fall back to empty values when host
// detection fails, which is not an error.
func Report(ctx context.Context) (*HostReport, error) {
	report := &HostReport{Info: Host()}

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("host detection cancelled: %w", ctx.Err())
		}
		// Graceful fallback: normalized OS/arch alone is enough for a report.
		return report, nil
	}

	report.Hostname = info.Hostname
	report.Platform = info.Platform
	report.Version = info.PlatformVersion
	report.KernelVersion = info.KernelVersion
	report.Uptime = time.Duration(info.Uptime) * time.Second

	return report, nil
}
