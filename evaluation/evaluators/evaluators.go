// Copyright 2025 The AgentLand Authors
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

// Package evaluators provides the built-in evaluator implementations.
package evaluators

import (
	"context"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// judgeCallDelay spaces out consecutive judge calls. This is a
// rate-limit throttle, not a correctness requirement.
const judgeCallDelay = 100 * time.Millisecond

// RegisterDefaults registers all built-in evaluators.
func RegisterDefaults(r *evaluation.Registry) error {
	all := []evaluation.Evaluator{
		NewToolSuccess(),
		NewTranscriptQuality(),
		NewReasoningQuality(),
		NewRegression(),
	}
	for _, ev := range all {
		if err := r.Register(ev); err != nil {
			return err
		}
	}
	return nil
}

// sinceMillis converts a time-window option into an epoch-ms lower
// bound, zero when the window is unset.
func sinceMillis(windowHours int) int64 {
	if windowHours <= 0 {
		return 0
	}
	return time.Now().Add(-time.Duration(windowHours) * time.Hour).UnixMilli()
}

// truncateText bounds a judge prompt fragment to limit characters,
// marking the cut.
func truncateText(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func snippet(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// sleep waits for the throttle delay unless the run context is
// cancelled first.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
