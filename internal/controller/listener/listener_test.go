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

package listener

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/bridgeshell/internal/config"
)

func TestNew_UnixSocket(t *testing.T) {
	// Socket paths have a short length limit, so avoid deep temp dirs.
	dir, err := os.MkdirTemp("", "bs")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "run", "b.sock")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0600))

	ln, err := New(config.ListenConfig{SocketPath: path})
	require.NoError(t, err)
	defer ln.Close()

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	assert.NotZero(t, info.Mode()&os.ModeSocket)

	conn, err := net.Dial("unix", path)
	require.NoError(t, err)
	conn.Close()
}

func TestNew_TCP(t *testing.T) {
	ln, err := New(config.ListenConfig{TCPAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer ln.Close()
	assert.Equal(t, "tcp", ln.Addr().Network())

	_, err = New(config.ListenConfig{TCPAddr: "0.0.0.0:0"})
	assert.ErrorContains(t, err, "allow_remote")

	_, err = New(config.ListenConfig{})
	assert.Error(t, err)
}

func TestIsRemoteAddr(t *testing.T) {
	tests := map[string]bool{
		":9000":          true,
		"0.0.0.0:9000":   true,
		"[::]:9000":      true,
		"10.0.0.5:9000":  true,
		"127.0.0.1:9000": false,
		"127.0.0.2:9000": false,
		"localhost:9000": false,
		"[::1]:9000":     false,
	}
	for addr, want := range tests {
		assert.Equal(t, want, IsRemoteAddr(addr), addr)
	}
}

func TestParseHost(t *testing.T) {
	cfg, err := ParseHost("")
	require.NoError(t, err)
	assert.Nil(t, cfg)

	cfg, err = ParseHost("unix:///tmp/b.sock")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/b.sock", cfg.SocketPath)

	cfg, err = ParseHost("tcp://127.0.0.1:9900")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9900", cfg.TCPAddr)

	cfg, err = ParseHost("http://localhost:9900")
	require.NoError(t, err)
	assert.Equal(t, "localhost:9900", cfg.TCPAddr)

	_, err = ParseHost("ftp://x")
	assert.Error(t, err)
}
