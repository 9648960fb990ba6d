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

package shared

import (
	"fmt"

	"github.com/tombee/bridgeshell/internal/client"
	"github.com/tombee/bridgeshell/internal/config"
)

// LoadConfig loads the file named by --config, or the default location.
// The returned path is empty when only defaults were used.
func LoadConfig() (*config.Config, string, error) {
	if p := GetConfigPath(); p != "" {
		cfg, err := config.Load(p)
		return cfg, p, err
	}
	return config.LoadDefault()
}

// NewClient returns a host client. --host and BRIDGESHELL_HOST win,
// otherwise the listener from the loaded config is used.
func NewClient() (*client.Client, error) {
	if GetHost() != "" {
		return client.FromHost(GetHost())
	}
	if client.HostFromEnv() != "" {
		return client.FromHost("")
	}
	cfg, _, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return client.FromConfig(cfg.Controller.Listen)
}
