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

package evaluators

import (
	"context"
	"testing"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage"
)

func addEvent(t *testing.T, store *storage.MemoryStorage, sourceApp, sessionID, hook, tool string) {
	t.Helper()
	err := store.AddToolEvent(context.Background(), &evaluation.ToolEvent{
		SourceApp:     sourceApp,
		SessionID:     sessionID,
		HookEventType: hook,
		Payload:       map[string]any{"tool_name": tool},
		Timestamp:     time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("AddToolEvent() error = %v", err)
	}
}

func TestToolSuccessAccounting(t *testing.T) {
	store := storage.NewMemoryStorage()
	addEvent(t, store, "agent-a", "s1", "PostToolUse", "Bash")
	addEvent(t, store, "agent-a", "s1", "PostToolUse", "Bash")
	addEvent(t, store, "agent-a", "s1", "PostToolUseFailure", "Bash")
	addEvent(t, store, "agent-b", "s2", "PostToolUse", "Read")

	rc := &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 7},
		Events: store,
		Store:  store,
	}

	out, err := NewToolSuccess().Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(out.Results) != 4 {
		t.Fatalf("len(Results) = %d, want 4", len(out.Results))
	}
	for _, res := range out.Results {
		if res.RunID != 7 {
			t.Errorf("result RunID = %d, want 7", res.RunID)
		}
		success, ok := res.Scores["success"].(bool)
		if !ok {
			t.Fatalf("result Scores missing success flag: %v", res.Scores)
		}
		if success && res.NumericScore != 1.0 {
			t.Errorf("success result NumericScore = %v, want 1.0", res.NumericScore)
		}
		if !success && res.NumericScore != 0.0 {
			t.Errorf("failure result NumericScore = %v, want 0.0", res.NumericScore)
		}
	}

	if got := out.Summary["overall_rate"].(float64); got != 0.75 {
		t.Errorf("overall_rate = %v, want 0.75", got)
	}
	if got := out.Summary["total_success"].(int); got != 3 {
		t.Errorf("total_success = %v, want 3", got)
	}
	if got := out.Summary["total_failure"].(int); got != 1 {
		t.Errorf("total_failure = %v, want 1", got)
	}

	byTool := out.Summary["by_tool"].(map[string]*successCounts)
	if bash := byTool["Bash"]; bash.Success != 2 || bash.Failure != 1 {
		t.Errorf("by_tool[Bash] = %+v, want 2 success / 1 failure", bash)
	}
	if read := byTool["Read"]; read.Success != 1 || read.Failure != 0 {
		t.Errorf("by_tool[Read] = %+v, want 1 success / 0 failure", read)
	}

	byAgent := out.Summary["by_agent"].(map[string]*successCounts)
	if len(byAgent) != 2 {
		t.Errorf("by_agent has %d entries, want 2", len(byAgent))
	}
}

func TestToolSuccessIgnoresLifecycleEvents(t *testing.T) {
	store := storage.NewMemoryStorage()
	addEvent(t, store, "agent-a", "s1", "PostToolUse", "Bash")
	addEvent(t, store, "agent-a", "s1", "PostToolUse", "Read")
	addEvent(t, store, "agent-a", "s1", "UserPromptSubmit", "")
	addEvent(t, store, "agent-a", "s1", "Stop", "")
	addEvent(t, store, "agent-a", "s1", "PreToolUse", "Bash")

	rc := &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 9},
		Events: store,
		Store:  store,
	}

	out, err := NewToolSuccess().Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("len(Results) = %d, lifecycle hooks must not count as invocations", len(out.Results))
	}
	if got := out.Summary["overall_rate"].(float64); got != 1.0 {
		t.Errorf("overall_rate = %v, want 1.0", got)
	}
	if got := out.Summary["total_failure"].(int); got != 0 {
		t.Errorf("total_failure = %v, want 0", got)
	}
}

func TestToolSuccessEmptyScope(t *testing.T) {
	store := storage.NewMemoryStorage()
	rc := &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 1},
		Events: store,
		Store:  store,
	}

	out, err := NewToolSuccess().Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 0 {
		t.Errorf("len(Results) = %d, want 0", len(out.Results))
	}
	if got := out.Summary["overall_rate"].(float64); got != 0.0 {
		t.Errorf("overall_rate = %v, want 0 without events", got)
	}
}

func TestToolSuccessSessionScope(t *testing.T) {
	store := storage.NewMemoryStorage()
	addEvent(t, store, "agent-a", "s1", "PostToolUse", "Bash")
	addEvent(t, store, "agent-a", "s2", "PostToolUse", "Bash")

	rc := &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 2},
		Scope:  evaluation.Scope{Type: evaluation.ScopeSession, SessionID: "s1"},
		Events: store,
		Store:  store,
	}

	out, err := NewToolSuccess().Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("len(Results) = %d, want only the scoped session's event", len(out.Results))
	}
	if out.Results[0].SessionID != "s1" {
		t.Errorf("result SessionID = %q, want s1", out.Results[0].SessionID)
	}
}
