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

package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	run := &evaluation.Run{
		EvaluatorType: evaluation.TypeToolSuccess,
		Scope:         evaluation.Scope{Type: evaluation.ScopeGlobal},
		Status:        evaluation.RunStatusPending,
		CreatedAt:     1000,
	}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	if run.ID == 0 {
		t.Fatal("CreateRun() did not assign an ID")
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetRun() mismatch (-want +got):\n%s", diff)
	}

	running := evaluation.RunStatusRunning
	startedAt := int64(2000)
	current, total := 3, 10
	err = store.UpdateRun(ctx, run.ID, evaluation.RunUpdate{
		Status:          &running,
		StartedAt:       &startedAt,
		ProgressCurrent: &current,
		ProgressTotal:   &total,
	})
	if err != nil {
		t.Fatalf("UpdateRun() error = %v", err)
	}

	got, err = store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Status != running || got.StartedAt != 2000 {
		t.Errorf("after update: status %s, startedAt %d", got.Status, got.StartedAt)
	}
	if got.ProgressCurrent != 3 || got.ProgressTotal != 10 {
		t.Errorf("after update: progress %d/%d, want 3/10", got.ProgressCurrent, got.ProgressTotal)
	}
	// Untouched fields survive a partial update.
	if got.EvaluatorType != evaluation.TypeToolSuccess || got.CreatedAt != 1000 {
		t.Errorf("partial update clobbered fields: %+v", got)
	}
}

func TestGetRunNotFound(t *testing.T) {
	store := NewMemoryStorage()
	if _, err := store.GetRun(context.Background(), 999); !errors.Is(err, evaluation.ErrNotFound) {
		t.Errorf("GetRun(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.UpdateRun(context.Background(), 999, evaluation.RunUpdate{}); !errors.Is(err, evaluation.ErrNotFound) {
		t.Errorf("UpdateRun(missing) error = %v, want ErrNotFound", err)
	}
	if err := store.DeleteRun(context.Background(), 999); !errors.Is(err, evaluation.ErrNotFound) {
		t.Errorf("DeleteRun(missing) error = %v, want ErrNotFound", err)
	}
}

func TestListRunsFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	mk := func(typ evaluation.EvaluatorType, status evaluation.RunStatus, createdAt int64) int64 {
		run := &evaluation.Run{EvaluatorType: typ, Status: status, CreatedAt: createdAt}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		return run.ID
	}
	mk(evaluation.TypeToolSuccess, evaluation.RunStatusCompleted, 100)
	newest := mk(evaluation.TypeToolSuccess, evaluation.RunStatusFailed, 300)
	mk(evaluation.TypeRegression, evaluation.RunStatusCompleted, 200)

	runs, err := store.ListRuns(ctx, evaluation.RunQuery{})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 3 || runs[0].ID != newest {
		t.Errorf("ListRuns() order wrong: %+v", runs)
	}

	runs, err = store.ListRuns(ctx, evaluation.RunQuery{EvaluatorType: evaluation.TypeRegression})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].EvaluatorType != evaluation.TypeRegression {
		t.Errorf("ListRuns(type filter) = %+v", runs)
	}

	runs, err = store.ListRuns(ctx, evaluation.RunQuery{Status: evaluation.RunStatusFailed})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 1 || runs[0].Status != evaluation.RunStatusFailed {
		t.Errorf("ListRuns(status filter) = %+v", runs)
	}

	runs, err = store.ListRuns(ctx, evaluation.RunQuery{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("ListRuns(limit 2) returned %d runs", len(runs))
	}
}

func TestDeleteRunCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	run := &evaluation.Run{EvaluatorType: evaluation.TypeToolSuccess, Status: evaluation.RunStatusCompleted}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	results := []evaluation.Result{
		{RunID: run.ID, ItemType: evaluation.ItemToolInvocation, NumericScore: 1},
		{RunID: run.ID, ItemType: evaluation.ItemToolInvocation, NumericScore: 0},
	}
	if err := store.InsertResults(ctx, results); err != nil {
		t.Fatalf("InsertResults() error = %v", err)
	}

	if err := store.DeleteRun(ctx, run.ID); err != nil {
		t.Fatalf("DeleteRun() error = %v", err)
	}
	if _, err := store.GetRun(ctx, run.ID); !errors.Is(err, evaluation.ErrNotFound) {
		t.Errorf("GetRun(deleted) error = %v, want ErrNotFound", err)
	}
	count, err := store.CountResults(ctx, run.ID)
	if err != nil {
		t.Fatalf("CountResults() error = %v", err)
	}
	if count != 0 {
		t.Errorf("CountResults(deleted run) = %d, want 0", count)
	}
}

func TestListResultsPagination(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	run := &evaluation.Run{EvaluatorType: evaluation.TypeToolSuccess}
	if err := store.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun() error = %v", err)
	}
	var results []evaluation.Result
	for i := 0; i < 7; i++ {
		results = append(results, evaluation.Result{
			RunID: run.ID, ItemType: evaluation.ItemToolInvocation, NumericScore: float64(i),
		})
	}
	if err := store.InsertResults(ctx, results); err != nil {
		t.Fatalf("InsertResults() error = %v", err)
	}

	page, err := store.ListResults(ctx, run.ID, evaluation.ResultPage{Limit: 3, Offset: 5})
	if err != nil {
		t.Fatalf("ListResults() error = %v", err)
	}
	if len(page) != 2 {
		t.Errorf("ListResults(limit 3, offset 5) returned %d results, want 2", len(page))
	}
}

func TestEventSourceExcludesRunnerActivity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	events := []*evaluation.ToolEvent{
		{SourceApp: "agent-a", SessionID: "s1", HookEventType: "PostToolUse", Timestamp: 100},
		{SourceApp: RunnerSourceApp, SessionID: "s1", HookEventType: "PostToolUse", Timestamp: 200},
	}
	for _, ev := range events {
		if err := store.AddToolEvent(ctx, ev); err != nil {
			t.Fatalf("AddToolEvent() error = %v", err)
		}
	}

	got, err := store.ToolEvents(ctx, evaluation.ToolEventQuery{})
	if err != nil {
		t.Fatalf("ToolEvents() error = %v", err)
	}
	if len(got) != 1 || got[0].SourceApp != "agent-a" {
		t.Errorf("ToolEvents() = %+v, runner-authored rows must not feed evaluators", got)
	}
}

func TestToolEventsOnlyToolHooks(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	for i, hook := range []string{
		"PostToolUse", "PostToolUseFailure",
		"UserPromptSubmit", "Stop", "PreToolUse", "Notification",
	} {
		err := store.AddToolEvent(ctx, &evaluation.ToolEvent{
			SourceApp: "agent-a", SessionID: "s1",
			HookEventType: hook, Timestamp: int64(100 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("AddToolEvent() error = %v", err)
		}
	}

	got, err := store.ToolEvents(ctx, evaluation.ToolEventQuery{})
	if err != nil {
		t.Fatalf("ToolEvents() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ToolEvents() returned %d events, want only the two tool hooks", len(got))
	}
	if got[0].HookEventType != evaluation.HookPostToolUse || got[1].HookEventType != evaluation.HookPostToolUseFailure {
		t.Errorf("ToolEvents() hooks = (%s, %s)", got[0].HookEventType, got[1].HookEventType)
	}

	// Lifecycle hooks still reach the event feed.
	feed, err := store.RecentEvents(ctx, 10)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(feed) != 6 {
		t.Errorf("RecentEvents() returned %d events, want all 6", len(feed))
	}
}

func TestToolEventsSessionFilter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	for i, session := range []string{"s1", "s2", "s3", "s1"} {
		err := store.AddToolEvent(ctx, &evaluation.ToolEvent{
			SourceApp: "agent-a", SessionID: session,
			HookEventType: evaluation.HookPostToolUse, Timestamp: int64(100 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("AddToolEvent() error = %v", err)
		}
	}

	got, err := store.ToolEvents(ctx, evaluation.ToolEventQuery{
		SessionIDs: []string{"s1", "s3"},
	})
	if err != nil {
		t.Fatalf("ToolEvents() error = %v", err)
	}
	var sessions []string
	for _, ev := range got {
		sessions = append(sessions, ev.SessionID)
	}
	if diff := cmp.Diff([]string{"s1", "s3", "s1"}, sessions); diff != "" {
		t.Errorf("ToolEvents() sessions mismatch (-want +got):\n%s", diff)
	}
}

func TestAddMessageDeduplicatesUUID(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	msg := &evaluation.Message{
		SessionID: "s1", SourceApp: "agent-a", Role: "assistant",
		Content: "hello", Timestamp: 100, UUID: "u-1",
	}
	if err := store.AddMessage(ctx, msg); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	dup := *msg
	if err := store.AddMessage(ctx, &dup); err != nil {
		t.Fatalf("AddMessage(duplicate) error = %v", err)
	}

	got, err := store.AssistantMessages(ctx, evaluation.MessageQuery{})
	if err != nil {
		t.Fatalf("AssistantMessages() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("AssistantMessages() returned %d messages after duplicate insert, want 1", len(got))
	}
}

func TestPrecedingUserMessage(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	for i, msg := range []*evaluation.Message{
		{SessionID: "s1", Role: "user", Content: "first", Timestamp: 100},
		{SessionID: "s1", Role: "user", Content: "second", Timestamp: 200},
		{SessionID: "s1", Role: "assistant", Content: "reply", Timestamp: 300},
		{SessionID: "s2", Role: "user", Content: "other session", Timestamp: 250},
	} {
		msg.SourceApp = "agent-a"
		msg.UUID = string(rune('a' + i))
		if err := store.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	got, err := store.PrecedingUserMessage(ctx, "s1", 300)
	if err != nil {
		t.Fatalf("PrecedingUserMessage() error = %v", err)
	}
	if got == nil || got.Content != "second" {
		t.Errorf("PrecedingUserMessage() = %+v, want the latest prior user message", got)
	}

	got, err = store.PrecedingUserMessage(ctx, "s1", 100)
	if err != nil {
		t.Fatalf("PrecedingUserMessage() error = %v", err)
	}
	if got != nil {
		t.Errorf("PrecedingUserMessage(before first) = %+v, want nil", got)
	}
}

func TestRecentEventsChronological(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	for i := 0; i < 5; i++ {
		err := store.AddToolEvent(ctx, &evaluation.ToolEvent{
			SourceApp: "agent-a", SessionID: "s1",
			HookEventType: "PostToolUse", Timestamp: int64(100 * (i + 1)),
		})
		if err != nil {
			t.Fatalf("AddToolEvent() error = %v", err)
		}
	}

	got, err := store.RecentEvents(ctx, 3)
	if err != nil {
		t.Fatalf("RecentEvents() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("RecentEvents(3) returned %d events", len(got))
	}
	// The newest three, but oldest first for feed rendering.
	if got[0].Timestamp != 300 || got[2].Timestamp != 500 {
		t.Errorf("RecentEvents() timestamps = [%d ... %d], want [300 ... 500]", got[0].Timestamp, got[2].Timestamp)
	}
}

func TestFilterOptions(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	seed := []struct{ app, session, hook string }{
		{"agent-b", "s2", "PostToolUse"},
		{"agent-a", "s1", "PreToolUse"},
		{"agent-a", "s1", "PostToolUse"},
	}
	for i, s := range seed {
		err := store.AddToolEvent(ctx, &evaluation.ToolEvent{
			SourceApp: s.app, SessionID: s.session,
			HookEventType: s.hook, Timestamp: int64(i + 1),
		})
		if err != nil {
			t.Fatalf("AddToolEvent() error = %v", err)
		}
	}

	got, err := store.FilterOptions(ctx)
	if err != nil {
		t.Fatalf("FilterOptions() error = %v", err)
	}
	want := &evaluation.FilterOptions{
		SourceApps:     []string{"agent-a", "agent-b"},
		SessionIDs:     []string{"s1", "s2"},
		HookEventTypes: []string{"PostToolUse", "PreToolUse"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FilterOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestCompletedRunIDsWindow(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStorage()

	mk := func(status evaluation.RunStatus, completedAt int64) int64 {
		run := &evaluation.Run{
			EvaluatorType: evaluation.TypeToolSuccess,
			Status:        status,
			CreatedAt:     completedAt,
			CompletedAt:   completedAt,
		}
		if err := store.CreateRun(ctx, run); err != nil {
			t.Fatalf("CreateRun() error = %v", err)
		}
		return run.ID
	}
	early := mk(evaluation.RunStatusCompleted, 100)
	mid := mk(evaluation.RunStatusCompleted, 200)
	mk(evaluation.RunStatusFailed, 250)
	mk(evaluation.RunStatusCompleted, 400)

	ids, err := store.CompletedRunIDs(ctx, evaluation.TypeToolSuccess, evaluation.CompletedRunQuery{
		Since: 100,
		Until: 400,
	})
	if err != nil {
		t.Fatalf("CompletedRunIDs() error = %v", err)
	}
	want := []int64{early, mid}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("CompletedRunIDs() mismatch (-want +got):\n%s", diff)
	}
}
