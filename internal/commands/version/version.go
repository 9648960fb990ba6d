// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package version

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
)

// VersionInfo contains version metadata
type VersionInfo struct {
	Version   string    `json:"version"`
	Commit    string    `json:"commit"`
	BuildDate string    `json:"build_date"`
	GoVersion string    `json:"go_version"`
	Host      *HostInfo `json:"host,omitempty"`
}

// HostInfo is the version reported by a running host.
type HostInfo struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	Address    string `json:"address"`
	APIVersion string `json:"api_version,omitempty"`
	Uptime     string `json:"uptime,omitempty"`
	BridgePath string `json:"bridge_path,omitempty"`
	Generation uint64 `json:"bridge_generation,omitempty"`
	// Stale is set when the host was built from a different commit than
	// this CLI, or speaks another API revision.
	Stale bool `json:"stale"`
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	var withHost bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display version, commit hash, and build date for bridgeshell.

With --host-version the running host is asked for its version as well.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(cmd, withHost)
		},
	}
	cmd.Flags().BoolVar(&withHost, "host-version", false, "Also show the running host's version")

	return cmd
}

func runVersion(cmd *cobra.Command, withHost bool) error {
	v, c, b := shared.GetVersion()
	info := VersionInfo{
		Version:   v,
		Commit:    c,
		BuildDate: b,
		GoVersion: runtime.Version(),
	}

	var hostErr error
	if withHost {
		info.Host, hostErr = hostVersion(cmd.Context(), c)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, info)
	}

	fmt.Fprintf(out, "bridgeshell version %s\n", info.Version)
	fmt.Fprintf(out, "  commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  build date: %s\n", info.BuildDate)
	fmt.Fprintf(out, "  go:         %s\n", info.GoVersion)
	switch {
	case info.Host != nil:
		fmt.Fprintf(out, "  host:       %s (%s) at %s\n", info.Host.Version, info.Host.Commit, info.Host.Address)
		if info.Host.BridgePath != "" {
			fmt.Fprintf(out, "  bridge:     %s (generation %d)\n", info.Host.BridgePath, info.Host.Generation)
		}
		if info.Host.Stale {
			fmt.Fprintf(out, "  %s\n", shared.RenderWarn("host was built from a different release; restart it with 'bridgeshell stop && bridgeshell start'"))
		}
	case hostErr != nil:
		fmt.Fprintf(out, "  host:       %s\n", shared.Muted.Render("unavailable: "+hostErr.Error()))
	}
	return nil
}

func hostVersion(ctx context.Context, commit string) (*HostInfo, error) {
	c, err := shared.NewClient()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	resp, err := c.Version(ctx)
	if err != nil {
		return nil, err
	}
	host := &HostInfo{
		Version:    resp.Version,
		Commit:     resp.Commit,
		Address:    c.Address(),
		APIVersion: resp.APIVersion,
		Uptime:     resp.Uptime,
		Stale:      !resp.Compatible() || (resp.Commit != "" && resp.Commit != commit),
	}
	if resp.Bridge != nil {
		host.BridgePath = resp.Bridge.Path
		host.Generation = resp.Bridge.Generation
	}
	return host, nil
}
