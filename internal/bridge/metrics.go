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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// bridgeOperations tracks supervisor operations by outcome code
	bridgeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeshell_bridge_operations_total",
			Help: "Total bridge supervisor operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	// bridgeBytesWritten tracks bytes delivered to the bridge stdin
	bridgeBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridgeshell_bridge_stdin_bytes_total",
			Help: "Total bytes written to the bridge stdin, including newlines",
		},
	)

	// bridgeLaunches tracks launch attempts
	bridgeLaunches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeshell_bridge_launches_total",
			Help: "Total bridge launch attempts by result",
		},
		[]string{"result"},
	)

	// bridgeUp is 1 while a launched bridge has not been observed to exit
	bridgeUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bridgeshell_bridge_up",
			Help: "Whether the bridge process is running",
		},
	)

	// bridgeOutputLines tracks lines read from the child
	bridgeOutputLines = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridgeshell_bridge_output_lines_total",
			Help: "Total lines read from the bridge by stream and kind",
		},
		[]string{"stream", "kind"},
	)

	// bridgeMessagesDropped tracks messages not delivered to slow subscribers
	bridgeMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bridgeshell_bridge_messages_dropped_total",
			Help: "Total bridge messages dropped because a subscriber was full",
		},
	)

	// bridgeTeardownSeconds tracks how long it takes to reap the old process
	bridgeTeardownSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridgeshell_bridge_teardown_seconds",
			Help:    "Time spent terminating the bridge process by outcome",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"outcome"},
	)
)

// recordOperation increments the operation counter for err's code
func recordOperation(op string, err error) {
	result := "ok"
	if err != nil {
		if code := CodeOf(err); code != "" {
			result = string(code)
		} else {
			result = "error"
		}
	}
	bridgeOperations.WithLabelValues(op, result).Inc()
}

// recordLaunch increments the launch counter
func recordLaunch(err error) {
	if err != nil {
		bridgeLaunches.WithLabelValues("failure").Inc()
		return
	}
	bridgeLaunches.WithLabelValues("success").Inc()
}
