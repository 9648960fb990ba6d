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

package completion

import (
	"github.com/spf13/cobra"
	"github.com/tombee/bridgeshell/internal/bridge"
)

// CompleteStreams provides completion for --stream flag values.
func CompleteStreams(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			bridge.StreamStdout + "\tBridge standard output",
			bridge.StreamStderr + "\tBridge standard error",
			bridge.StreamSupervisor + "\tHost lifecycle messages",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteMessageKinds provides completion for --kind flag values.
func CompleteMessageKinds(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			string(bridge.KindNotification) + "\tJSON-RPC message with a method and no id",
			string(bridge.KindRequest) + "\tJSON-RPC message with a method and an id",
			string(bridge.KindResponse) + "\tJSON-RPC message with an id and no method",
			string(bridge.KindRaw) + "\tAny other output line",
			string(bridge.KindLifecycle) + "\tLaunches, exits and restarts",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// SafeCompletionWrapper wraps a completion function with panic recovery.
// Returns empty completion list on panic or error.
func SafeCompletionWrapper(fn func() ([]string, cobra.ShellCompDirective)) (results []string, directive cobra.ShellCompDirective) {
	results = []string{}
	directive = cobra.ShellCompDirectiveNoFileComp

	defer func() {
		if r := recover(); r != nil {
			results = []string{}
			directive = cobra.ShellCompDirectiveNoFileComp
		}
	}()

	results, directive = fn()
	if results == nil {
		return []string{}, cobra.ShellCompDirectiveNoFileComp
	}
	return results, directive
}
