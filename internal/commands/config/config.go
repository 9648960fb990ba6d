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

package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/commands/shared"
	"github.com/tombee/bridgeshell/internal/config"
	"gopkg.in/yaml.v3"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View configuration",
		Long: `View the bridgeshell configuration.

Subcommands:
  show     - Display the effective configuration
  path     - Show config file location
  validate - Check the configuration for errors`,
		Annotations: map[string]string{
			"group": "config",
		},
	}

	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newConfigValidateCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd, args)
	}

	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults and environment overrides.

Bridge environment values whose names look like credentials are masked.
Use --json for machine-readable output.`,
		RunE: runConfigShow,
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		RunE:  runConfigPath,
	}
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration for errors",
		RunE:  runConfigValidate,
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, path, err := shared.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	masked := maskSensitiveConfig(cfg)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, masked)
	}
	return outputConfigYAML(out, path, masked)
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	path := shared.GetConfigPath()
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	_, path, err := shared.LoadConfig()
	out := cmd.OutOrStdout()
	if path == "" {
		path = "defaults"
	}

	if shared.GetJSON() {
		result := map[string]any{"path": path, "valid": err == nil}
		if err != nil {
			result["error"] = err.Error()
		}
		if emitErr := shared.EmitJSON(out, result); emitErr != nil {
			return emitErr
		}
		if err != nil {
			return &shared.ExitError{Code: shared.ExitFailed, Message: "configuration is invalid"}
		}
		return nil
	}

	if err != nil {
		return &shared.ExitError{Code: shared.ExitFailed, Message: "configuration is invalid", Cause: err}
	}
	fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("Configuration is valid (%s)", path)))
	return nil
}

// sensitiveMarkers select bridge environment variables to mask.
var sensitiveMarkers = []string{"TOKEN", "SECRET", "PASSWORD", "KEY", "CREDENTIAL"}

// maskSensitiveConfig returns a copy of cfg with credential-like bridge
// environment values masked.
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	if len(cfg.Bridge.Env) == 0 {
		return &masked
	}
	env := make(map[string]string, len(cfg.Bridge.Env))
	for k, v := range cfg.Bridge.Env {
		env[k] = v
		upper := strings.ToUpper(k)
		for _, marker := range sensitiveMarkers {
			if strings.Contains(upper, marker) {
				env[k] = maskValue(v)
				break
			}
		}
	}
	masked.Bridge.Env = env
	return &masked
}

// maskValue keeps the first and last four characters of long values.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return v
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}

func outputConfigYAML(w io.Writer, path string, cfg *config.Config) error {
	if path == "" {
		path = "(defaults)"
	}
	fmt.Fprintf(w, "# Configuration: %s\n", path)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return encoder.Close()
}
