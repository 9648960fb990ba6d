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
	"sort"
	"sync"
)

// Registry is a Host backed by a map of labelled windows.
type Registry struct {
	mu      sync.RWMutex
	windows map[string]Window
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{windows: make(map[string]Window)}
}

// Register adds w under label, replacing any previous window. The returned
// function removes it again if it is still the registered window.
func (r *Registry) Register(label string, w Window) func() {
	r.mu.Lock()
	r.windows[label] = w
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.windows[label] == w {
			delete(r.windows, label)
		}
	}
}

// Window implements Host.
func (r *Registry) Window(label string) (Window, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.windows[label]
	return w, ok
}

// Labels returns the registered labels in sorted order.
func (r *Registry) Labels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	labels := make([]string, 0, len(r.windows))
	for l := range r.windows {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}
