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

// Package listener provides Unix socket and TCP listener abstractions.
package listener

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/bridgeshell/internal/config"
)

// New creates a listener from configuration. TCP wins when configured,
// otherwise the Unix socket is used.
func New(cfg config.ListenConfig) (net.Listener, error) {
	if cfg.TCPAddr != "" {
		return newTCPListener(cfg)
	}
	if cfg.SocketPath == "" {
		return nil, fmt.Errorf("no socket path or TCP address configured")
	}
	return newUnixListener(cfg.SocketPath)
}

func newUnixListener(socketPath string) (net.Listener, error) {
	dir := filepath.Dir(socketPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create socket directory: %w", err)
	}

	// A previous host that died without cleanup leaves the socket behind.
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to remove existing socket: %w", err)
	}

	ln, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on Unix socket: %w", err)
	}

	if err := os.Chmod(socketPath, 0600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("failed to set socket permissions: %w", err)
	}
	return ln, nil
}

func newTCPListener(cfg config.ListenConfig) (net.Listener, error) {
	if !cfg.AllowRemote && IsRemoteAddr(cfg.TCPAddr) {
		return nil, fmt.Errorf(
			"binding to %s exposes the bridge to the network.\n"+
				"Anyone with network access could write to the bridge and restart it.\n\n"+
				"If you understand the risks, set controller.listen.allow_remote",
			cfg.TCPAddr,
		)
	}

	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on TCP: %w", err)
	}
	return ln, nil
}

// IsRemoteAddr reports whether addr binds to a non-loopback interface.
func IsRemoteAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
		if strings.HasPrefix(addr, ":") {
			host = ""
		}
	}

	switch host {
	case "", "0.0.0.0", "::":
		return true
	case "localhost":
		return false
	}
	if ip := net.ParseIP(host); ip != nil {
		return !ip.IsLoopback()
	}
	return true
}

// ParseHost parses a BRIDGESHELL_HOST value into listener config.
// Supports unix:///path/to/socket and tcp://host:port.
func ParseHost(host string) (*config.ListenConfig, error) {
	if host == "" {
		return nil, nil
	}

	cfg := &config.ListenConfig{}
	switch {
	case strings.HasPrefix(host, "unix://"):
		cfg.SocketPath = strings.TrimPrefix(host, "unix://")
	case strings.HasPrefix(host, "tcp://"):
		cfg.TCPAddr = strings.TrimPrefix(host, "tcp://")
	case strings.HasPrefix(host, "http://"):
		cfg.TCPAddr = strings.TrimPrefix(host, "http://")
	default:
		return nil, fmt.Errorf("invalid BRIDGESHELL_HOST format: %s (must start with unix://, tcp://, or http://)", host)
	}
	return cfg, nil
}
