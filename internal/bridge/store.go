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

package bridge

import (
	"sync"
)

// Store holds at most one bridge handle behind a mutex.
//
// The handle is only reachable from inside With or Query, so every read of
// liveness and every write to stdin happens while the lock is held. A panic
// inside a callback poisons the store: the lock is released, the panic
// continues, and every later acquisition fails with ErrStorePoisoned.
type Store struct {
	mu       sync.Mutex
	handle   *Handle
	poisoned bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Slot is the exclusive view of the store handed to a With callback.
// It must not be retained after the callback returns.
type Slot struct {
	store *Store
	valid bool
}

// Handle returns the held handle, or nil if the store is empty.
func (s *Slot) Handle() *Handle {
	s.check()
	return s.store.handle
}

// Empty reports whether the store holds no handle.
func (s *Slot) Empty() bool {
	s.check()
	return s.store.handle == nil
}

// Take removes and returns the held handle, leaving the store empty.
func (s *Slot) Take() *Handle {
	s.check()
	h := s.store.handle
	s.store.handle = nil
	return h
}

// Install places h in the store. The store must be empty.
func (s *Slot) Install(h *Handle) {
	s.check()
	if s.store.handle != nil {
		panic("bridge: install into occupied store")
	}
	s.store.handle = h
}

func (s *Slot) check() {
	if !s.valid {
		panic("bridge: slot used outside of Store.With")
	}
}

// With acquires the store for the duration of fn.
func (s *Store) With(fn func(*Slot) error) (err error) {
	s.mu.Lock()
	if s.poisoned {
		s.mu.Unlock()
		return ErrStorePoisoned
	}

	slot := &Slot{store: s, valid: true}
	completed := false
	defer func() {
		slot.valid = false
		if !completed {
			s.poisoned = true
		}
		s.mu.Unlock()
	}()

	err = fn(slot)
	completed = true
	return err
}

// Query acquires the store for the duration of fn and returns its result.
func Query[R any](s *Store, fn func(*Slot) (R, error)) (R, error) {
	var out R
	err := s.With(func(slot *Slot) error {
		r, err := fn(slot)
		out = r
		return err
	})
	return out, err
}

// Poisoned reports whether a callback panicked while holding the store.
func (s *Store) Poisoned() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.poisoned
}
