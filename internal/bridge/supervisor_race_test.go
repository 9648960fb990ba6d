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
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSupervisor_ConcurrentWriteRestart interleaves writers, status readers
// and restarts. Every write must land on a live process; none may observe a
// closed stdin. Run with -race.
func TestSupervisor_ConcurrentWriteRestart(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping concurrency test in short mode")
	}

	f := newFixture(t, "cat >/dev/null")
	f.start(t)

	const (
		writers  = 4
		writes   = 25
		restarts = 5
	)

	var wg sync.WaitGroup
	errs := make(chan error, writers*writes+restarts+writers*writes)

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				if err := f.sup.Write(context.Background(), fmt.Sprintf("w%d-%d", w, i)); err != nil {
					errs <- fmt.Errorf("write: %w", err)
				}
			}
		}(w)
	}

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < writes; i++ {
				st, err := f.sup.Status(context.Background())
				if err != nil {
					errs <- fmt.Errorf("status: %w", err)
					continue
				}
				if st.State != StateRunning {
					errs <- fmt.Errorf("status: unexpected %s", st)
				}
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < restarts; i++ {
			if _, err := f.sup.Restart(context.Background()); err != nil {
				errs <- fmt.Errorf("restart: %w", err)
			}
		}
	}()

	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	gen, err := Query(f.store, func(slot *Slot) (uint64, error) {
		return slot.Handle().Generation(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(restarts+1), gen)
}
