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

package client

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/tombee/bridgeshell/internal/config"
	"github.com/tombee/bridgeshell/internal/controller/listener"
)

// HostEnv overrides the host address.
const HostEnv = "BRIDGESHELL_HOST"

// ParseHost parses a host address into a transport. An empty host uses
// the default socket path. Supported forms are unix:///path, tcp://host:port
// and http://host:port.
func ParseHost(host string) (*Transport, error) {
	if host == "" {
		return NewUnixTransport(config.DefaultSocketPath()), nil
	}
	lc, err := listener.ParseHost(host)
	if err != nil {
		return nil, err
	}
	if lc.SocketPath != "" {
		return NewUnixTransport(lc.SocketPath), nil
	}
	return NewTCPTransport(lc.TCPAddr), nil
}

// HostFromEnv returns the BRIDGESHELL_HOST value.
func HostFromEnv() string {
	return os.Getenv(HostEnv)
}

// FromHost creates a client for host, falling back to BRIDGESHELL_HOST and
// then the default socket.
func FromHost(host string) (*Client, error) {
	if host == "" {
		host = HostFromEnv()
	}
	transport, err := ParseHost(host)
	if err != nil {
		return nil, err
	}
	return New(WithTransport(transport))
}

// FromConfig creates a client for the listener in cfg.
func FromConfig(cfg config.ListenConfig) (*Client, error) {
	if cfg.TCPAddr != "" {
		return New(WithTransport(NewTCPTransport(cfg.TCPAddr)))
	}
	return New(WithTransport(NewUnixTransport(cfg.SocketPath)))
}

// DaemonNotRunningError indicates nothing is listening at the host address.
type DaemonNotRunningError struct {
	Address string
	Err     error
}

func (e *DaemonNotRunningError) Error() string {
	return fmt.Sprintf("bridgeshell host is not running (%s)", e.Address)
}

func (e *DaemonNotRunningError) Unwrap() error {
	return e.Err
}

// Guidance returns user-facing advice for starting the host.
func (e *DaemonNotRunningError) Guidance() string {
	return `The bridgeshell host is not running.

Start it with:
  bridgeshell start    # background
  bridgeshell serve    # foreground`
}

// IsDaemonNotRunning reports whether err means the host could not be reached.
func IsDaemonNotRunning(err error) bool {
	if err == nil {
		return false
	}
	var dnr *DaemonNotRunningError
	if errors.As(err, &dnr) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
}
