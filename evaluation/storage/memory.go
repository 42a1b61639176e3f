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

// Package storage provides the persistence backends for evaluation
// runs, results, baselines and the recorded agent activity they read.
package storage

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// RunnerSourceApp tags activity emitted by the evaluation system
// itself. Event queries exclude it so evaluations never score their
// own traffic.
const RunnerSourceApp = "evaluation-runner"

// MemoryStorage provides in-memory storage for runs, results, baselines
// and recorded events. This implementation is suitable for testing and
// development.
type MemoryStorage struct {
	mu sync.RWMutex

	runs      map[int64]*evaluation.Run
	results   map[int64][]evaluation.Result
	baselines []evaluation.Baseline
	events    []evaluation.ToolEvent
	messages  []evaluation.Message
	analyses  map[string]*analysis.SessionAnalysis
	insights  map[string]*analysis.Insight

	nextRunID      int64
	nextResultID   int64
	nextBaselineID int64
	nextEventID    int64
	nextMessageID  int64
}

// NewMemoryStorage creates a new in-memory storage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		runs:     make(map[int64]*evaluation.Run),
		results:  make(map[int64][]evaluation.Result),
		analyses: make(map[string]*analysis.SessionAnalysis),
		insights: make(map[string]*analysis.Insight),
	}
}

var (
	_ evaluation.Store       = (*MemoryStorage)(nil)
	_ evaluation.EventSource = (*MemoryStorage)(nil)
)

// CreateRun stores a new run and assigns its ID.
func (m *MemoryStorage) CreateRun(ctx context.Context, run *evaluation.Run) error {
	if run == nil {
		return evaluation.ErrInvalidInput
	}
	if run.EvaluatorType == "" {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRunID++
	run.ID = m.nextRunID
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixMilli()
	}

	copied := copyRun(run)
	m.runs[run.ID] = copied

	return nil
}

// GetRun retrieves a run by ID.
func (m *MemoryStorage) GetRun(ctx context.Context, id int64) (*evaluation.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, exists := m.runs[id]
	if !exists {
		return nil, evaluation.ErrNotFound
	}

	return copyRun(run), nil
}

// ListRuns returns runs matching the query, newest first.
func (m *MemoryStorage) ListRuns(ctx context.Context, q evaluation.RunQuery) ([]evaluation.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	runs := make([]evaluation.Run, 0, len(m.runs))
	for _, run := range m.runs {
		if q.EvaluatorType != "" && run.EvaluatorType != q.EvaluatorType {
			continue
		}
		if q.Status != "" && run.Status != q.Status {
			continue
		}
		runs = append(runs, *copyRun(run))
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].CreatedAt != runs[j].CreatedAt {
			return runs[i].CreatedAt > runs[j].CreatedAt
		}
		return runs[i].ID > runs[j].ID
	})

	return paginate(runs, q.Limit, q.Offset), nil
}

// UpdateRun applies the update to the stored run.
func (m *MemoryStorage) UpdateRun(ctx context.Context, id int64, upd evaluation.RunUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, exists := m.runs[id]
	if !exists {
		return evaluation.ErrNotFound
	}

	if upd.Status != nil {
		run.Status = *upd.Status
	}
	if upd.ProgressCurrent != nil {
		run.ProgressCurrent = *upd.ProgressCurrent
	}
	if upd.ProgressTotal != nil {
		run.ProgressTotal = *upd.ProgressTotal
	}
	if upd.Summary != nil {
		run.Summary = upd.Summary
	}
	if upd.ErrorMessage != nil {
		run.ErrorMessage = *upd.ErrorMessage
	}
	if upd.ModelName != nil {
		run.ModelName = *upd.ModelName
	}
	if upd.PromptVersion != nil {
		run.PromptVersion = *upd.PromptVersion
	}
	if upd.StartedAt != nil {
		run.StartedAt = *upd.StartedAt
	}
	if upd.CompletedAt != nil {
		run.CompletedAt = *upd.CompletedAt
	}

	return nil
}

// DeleteRun removes a run and its results.
func (m *MemoryStorage) DeleteRun(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.runs[id]; !exists {
		return evaluation.ErrNotFound
	}

	delete(m.runs, id)
	delete(m.results, id)

	return nil
}

// InsertResults appends a batch of results.
func (m *MemoryStorage) InsertResults(ctx context.Context, results []evaluation.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UnixMilli()
	for _, r := range results {
		if r.RunID == 0 {
			return evaluation.ErrInvalidInput
		}
		m.nextResultID++
		r.ID = m.nextResultID
		if r.CreatedAt == 0 {
			r.CreatedAt = now
		}
		m.results[r.RunID] = append(m.results[r.RunID], r)
	}

	return nil
}

// ListResults returns a run's results ordered by creation time.
func (m *MemoryStorage) ListResults(ctx context.Context, runID int64, page evaluation.ResultPage) ([]evaluation.Result, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.results[runID]
	results := make([]evaluation.Result, len(stored))
	copy(results, stored)

	return paginate(results, page.Limit, page.Offset), nil
}

// CountResults returns the number of results a run produced.
func (m *MemoryStorage) CountResults(ctx context.Context, runID int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.results[runID]), nil
}

// CompletedRunIDs returns completed run IDs of the given type inside
// the query window, oldest first.
func (m *MemoryStorage) CompletedRunIDs(ctx context.Context, t evaluation.EvaluatorType, q evaluation.CompletedRunQuery) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []*evaluation.Run
	for _, run := range m.runs {
		if run.EvaluatorType != t || run.Status != evaluation.RunStatusCompleted {
			continue
		}
		if q.Since != 0 && run.CompletedAt < q.Since {
			continue
		}
		if q.Until != 0 && run.CompletedAt >= q.Until {
			continue
		}
		if q.PromptVersion != "" && run.PromptVersion != q.PromptVersion {
			continue
		}
		matched = append(matched, run)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CompletedAt < matched[j].CompletedAt
	})

	ids := make([]int64, 0, len(matched))
	for _, run := range matched {
		ids = append(ids, run.ID)
	}

	return ids, nil
}

// ResultScores returns score projections for all results owned by the
// given runs.
func (m *MemoryStorage) ResultScores(ctx context.Context, runIDs []int64) ([]evaluation.RunScore, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var scores []evaluation.RunScore
	for _, id := range runIDs {
		for _, r := range m.results[id] {
			scores = append(scores, evaluation.RunScore{
				RunID:        r.RunID,
				NumericScore: r.NumericScore,
				Scores:       r.Scores,
			})
		}
	}

	return scores, nil
}

// InsertBaseline appends a baseline snapshot and assigns its ID.
func (m *MemoryStorage) InsertBaseline(ctx context.Context, b *evaluation.Baseline) error {
	if b == nil {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextBaselineID++
	b.ID = m.nextBaselineID
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixMilli()
	}
	m.baselines = append(m.baselines, *b)

	return nil
}

// ListBaselines returns baseline snapshots for an evaluator type,
// newest first.
func (m *MemoryStorage) ListBaselines(ctx context.Context, t evaluation.EvaluatorType, q evaluation.BaselineQuery) ([]evaluation.Baseline, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	baselines := make([]evaluation.Baseline, 0)
	for _, b := range m.baselines {
		if b.EvaluatorType != t {
			continue
		}
		if q.ModelName != "" && b.ModelName != q.ModelName {
			continue
		}
		if q.PromptVersion != "" && b.PromptVersion != q.PromptVersion {
			continue
		}
		baselines = append(baselines, b)
	}

	sort.Slice(baselines, func(i, j int) bool {
		return baselines[i].CreatedAt > baselines[j].CreatedAt
	})

	return baselines, nil
}

// TypeSummaries computes the per-type presentation summary from the
// latest run of each type.
func (m *MemoryStorage) TypeSummaries(ctx context.Context, types []evaluation.EvaluatorType) ([]evaluation.TypeSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	summaries := make([]evaluation.TypeSummary, 0, len(types))
	for _, t := range types {
		var latest *evaluation.Run
		for _, run := range m.runs {
			if run.EvaluatorType != t {
				continue
			}
			if latest == nil || run.CreatedAt > latest.CreatedAt ||
				(run.CreatedAt == latest.CreatedAt && run.ID > latest.ID) {
				latest = run
			}
		}

		summary := evaluation.TypeSummary{EvaluatorType: t}
		if latest != nil {
			summary.LastRunID = latest.ID
			summary.LastRunStatus = latest.Status
			summary.LastRunAt = latest.CreatedAt
			summary.LastRunModel = latest.ModelName
			summary.LastRunSampleCount = len(m.results[latest.ID])
			summary.Summary = latest.Summary
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// AddToolEvent records a tool invocation and assigns its ID.
func (m *MemoryStorage) AddToolEvent(ctx context.Context, ev *evaluation.ToolEvent) error {
	if ev == nil {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextEventID++
	ev.ID = m.nextEventID
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	m.events = append(m.events, *ev)

	return nil
}

// AddMessage records a transcript message and assigns its ID.
func (m *MemoryStorage) AddMessage(ctx context.Context, msg *evaluation.Message) error {
	if msg == nil {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Duplicate uuids are dropped silently, mirroring the database
	// store's conflict handling.
	if msg.UUID != "" {
		for _, existing := range m.messages {
			if existing.UUID == msg.UUID {
				return nil
			}
		}
	}

	m.nextMessageID++
	msg.ID = m.nextMessageID
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	m.messages = append(m.messages, *msg)

	return nil
}

// ToolEvents returns completed tool invocations in scope, oldest first.
func (m *MemoryStorage) ToolEvents(ctx context.Context, q evaluation.ToolEventQuery) ([]evaluation.ToolEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]evaluation.ToolEvent, 0)
	for _, ev := range m.events {
		if ev.SourceApp == RunnerSourceApp {
			continue
		}
		if ev.HookEventType != evaluation.HookPostToolUse && ev.HookEventType != evaluation.HookPostToolUseFailure {
			continue
		}
		if q.Since != 0 && ev.Timestamp < q.Since {
			continue
		}
		if q.SessionID != "" && ev.SessionID != q.SessionID {
			continue
		}
		if len(q.SessionIDs) > 0 && !slices.Contains(q.SessionIDs, ev.SessionID) {
			continue
		}
		if q.SourceApp != "" && ev.SourceApp != q.SourceApp {
			continue
		}
		events = append(events, ev)
	}

	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].ID < events[j].ID
	})

	return events, nil
}

// AssistantMessages returns assistant transcript messages in scope,
// oldest first.
func (m *MemoryStorage) AssistantMessages(ctx context.Context, q evaluation.MessageQuery) ([]evaluation.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]evaluation.Message, 0)
	for _, msg := range m.messages {
		if msg.Role != "assistant" || msg.SourceApp == RunnerSourceApp {
			continue
		}
		if q.Since != 0 && msg.Timestamp < q.Since {
			continue
		}
		if q.SessionID != "" && msg.SessionID != q.SessionID {
			continue
		}
		if q.SourceApp != "" && msg.SourceApp != q.SourceApp {
			continue
		}
		if q.WithThinking && msg.Thinking == "" {
			continue
		}
		messages = append(messages, msg)
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})

	return messages, nil
}

// PrecedingUserMessage returns the user message immediately before the
// given timestamp in a session, or nil when there is none.
func (m *MemoryStorage) PrecedingUserMessage(ctx context.Context, sessionID string, before int64) (*evaluation.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *evaluation.Message
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.SessionID != sessionID || msg.Role != "user" {
			continue
		}
		if msg.Timestamp >= before {
			continue
		}
		if latest == nil || msg.Timestamp > latest.Timestamp ||
			(msg.Timestamp == latest.Timestamp && msg.ID > latest.ID) {
			latest = msg
		}
	}

	if latest == nil {
		return nil, nil
	}

	copied := *latest
	return &copied, nil
}

// copyRun deep copies a run so callers cannot mutate stored state.
func copyRun(run *evaluation.Run) *evaluation.Run {
	copied := *run
	if run.Summary != nil {
		copied.Summary = make(map[string]any, len(run.Summary))
		for k, v := range run.Summary {
			copied.Summary[k] = v
		}
	}
	if run.Scope.SessionIDs != nil {
		copied.Scope.SessionIDs = append([]string(nil), run.Scope.SessionIDs...)
	}
	return &copied
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
