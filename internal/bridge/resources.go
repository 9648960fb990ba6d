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

	"github.com/shirou/gopsutil/v3/process"
)

// Resources is a resource usage sample for the bridge process.
type Resources struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// SampleResources reads resource usage for pid.
func SampleResources(ctx context.Context, pid int) (*Resources, error) {
	p, err := process.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect process %d: %w", pid, err)
	}

	mem, err := p.MemoryInfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read memory for process %d: %w", pid, err)
	}

	res := &Resources{RSSBytes: mem.RSS}
	// CPU and thread counts are not available on every platform.
	if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
		res.CPUPercent = cpu
	}
	if threads, err := p.NumThreadsWithContext(ctx); err == nil {
		res.Threads = threads
	}
	return res, nil
}
