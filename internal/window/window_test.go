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

package window

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindow struct {
	devtools bool
	scripts  []string
	evalErr  error
}

func (w *fakeWindow) OpenDevtools()        { w.devtools = true }
func (w *fakeWindow) CloseDevtools()       { w.devtools = false }
func (w *fakeWindow) IsDevtoolsOpen() bool { return w.devtools }
func (w *fakeWindow) Eval(script string) error {
	w.scripts = append(w.scripts, script)
	return w.evalErr
}

func TestDelegate_NoWindow(t *testing.T) {
	d := NewDelegate(NewRegistry(), nil)

	actions := map[string]func() error{
		"open":    d.OpenDevtools,
		"close":   d.CloseDevtools,
		"reload":  d.Reload,
		"back":    d.Back,
		"forward": d.Forward,
		"is_open": func() error {
			_, err := d.IsDevtoolsOpen()
			return err
		},
	}
	for name, fn := range actions {
		t.Run(name, func(t *testing.T) {
			err := fn()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrWindowNotFound))
			assert.Equal(t, "main window not found", err.Error())
		})
	}
}

func TestDelegate_Devtools(t *testing.T) {
	reg := NewRegistry()
	w := &fakeWindow{}
	reg.Register(MainLabel, w)
	d := NewDelegate(reg, nil)

	open, err := d.IsDevtoolsOpen()
	require.NoError(t, err)
	assert.False(t, open)

	require.NoError(t, d.OpenDevtools())
	open, err = d.IsDevtoolsOpen()
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, d.CloseDevtools())
	open, err = d.IsDevtoolsOpen()
	require.NoError(t, err)
	assert.False(t, open)
}

func TestDelegate_Navigation(t *testing.T) {
	reg := NewRegistry()
	w := &fakeWindow{}
	reg.Register(MainLabel, w)
	d := NewDelegate(reg, nil)

	require.NoError(t, d.Reload())
	require.NoError(t, d.Back())
	require.NoError(t, d.Forward())
	assert.Equal(t, []string{
		"window.location.reload()",
		"window.history.back()",
		"window.history.forward()",
	}, w.scripts)

	w.evalErr = errors.New("webview gone")
	err := d.Reload()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webview gone")
}

func TestDelegate_OtherLabelsIgnored(t *testing.T) {
	reg := NewRegistry()
	reg.Register("settings", &fakeWindow{})
	d := NewDelegate(reg, nil)

	assert.ErrorIs(t, d.OpenDevtools(), ErrWindowNotFound)
	assert.Equal(t, []string{"settings"}, reg.Labels())
}

func TestRegistry_UnregisterOnlyOwnWindow(t *testing.T) {
	reg := NewRegistry()
	first := &fakeWindow{}
	second := &fakeWindow{}

	unregisterFirst := reg.Register(MainLabel, first)
	reg.Register(MainLabel, second)
	unregisterFirst()

	w, ok := reg.Window(MainLabel)
	require.True(t, ok)
	assert.Same(t, second, w)
}

func TestChannel(t *testing.T) {
	reg := NewRegistry()
	ch := NewChannel(reg, MainLabel)
	d := NewDelegate(reg, nil)

	// Not registered until a UI attaches.
	assert.ErrorIs(t, d.Reload(), ErrWindowNotFound)

	cmds, detach := ch.Attach(4)
	assert.Equal(t, 1, ch.Attached())

	require.NoError(t, d.OpenDevtools())
	require.NoError(t, d.Back())

	assert.Equal(t, Command{Action: ActionOpenDevtools}, <-cmds)
	assert.Equal(t, Command{Action: ActionEval, Script: ScriptBack}, <-cmds)

	open, err := d.IsDevtoolsOpen()
	require.NoError(t, err)
	assert.True(t, open)

	detach()
	_, ok := <-cmds
	assert.False(t, ok)
	assert.ErrorIs(t, d.Forward(), ErrWindowNotFound)
	assert.False(t, ch.IsDevtoolsOpen())
}

func TestChannel_FullSubscriber(t *testing.T) {
	reg := NewRegistry()
	ch := NewChannel(reg, MainLabel)
	_, detach := ch.Attach(1)
	defer detach()

	require.NoError(t, ch.Eval(ScriptReload))
	assert.ErrorIs(t, ch.Eval(ScriptReload), ErrNotDelivered)
}
