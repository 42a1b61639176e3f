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

// Package database implements SQLite-backed persistence for the
// evaluation subsystem using gorm.
package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/glebarez/sqlite"
	lru "github.com/hashicorp/golang-lru/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage"
)

// userMessageCacheSize bounds the number of sessions whose ordered user
// messages are kept hot for preceding-message lookups.
const userMessageCacheSize = 256

// Store is a SQLite-backed implementation of the evaluation persistence
// and event-source contracts.
type Store struct {
	db *gorm.DB

	// userMessages caches each session's user messages ordered by
	// timestamp. Invalidated when a user message is recorded for the
	// session.
	userMessages *lru.Cache[string, []evaluation.Message]
}

var (
	_ evaluation.Store       = (*Store)(nil)
	_ evaluation.EventSource = (*Store)(nil)
)

// Open opens (or creates) the SQLite database at path and migrates the
// schema. Pass ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	if err := db.AutoMigrate(
		&runRow{}, &resultRow{}, &baselineRow{},
		&eventRow{}, &messageRow{},
		&sessionAnalysisRow{}, &insightRow{},
	); err != nil {
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	cache, err := lru.New[string, []evaluation.Message](userMessageCacheSize)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, userMessages: cache}, nil
}

// DB exposes the underlying gorm handle for auxiliary persistence such
// as session analysis records.
func (s *Store) DB() *gorm.DB { return s.db }

// CreateRun stores a new run and assigns its ID.
func (s *Store) CreateRun(ctx context.Context, run *evaluation.Run) error {
	if run == nil || run.EvaluatorType == "" {
		return evaluation.ErrInvalidInput
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = time.Now().UnixMilli()
	}

	row := runToRow(run)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	run.ID = row.ID

	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(ctx context.Context, id int64) (*evaluation.Run, error) {
	var row runRow
	err := s.db.WithContext(ctx).First(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return rowToRun(&row), nil
}

// ListRuns returns runs matching the query, newest first.
func (s *Store) ListRuns(ctx context.Context, q evaluation.RunQuery) ([]evaluation.Run, error) {
	tx := s.db.WithContext(ctx).Model(&runRow{}).Order("created_at DESC, id DESC")
	if q.EvaluatorType != "" {
		tx = tx.Where("evaluator_type = ?", string(q.EvaluatorType))
	}
	if q.Status != "" {
		tx = tx.Where("status = ?", string(q.Status))
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}
	if q.Offset > 0 {
		tx = tx.Offset(q.Offset)
	}

	var rows []runRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	runs := make([]evaluation.Run, 0, len(rows))
	for i := range rows {
		runs = append(runs, *rowToRun(&rows[i]))
	}
	return runs, nil
}

// UpdateRun applies the update to the stored run.
func (s *Store) UpdateRun(ctx context.Context, id int64, upd evaluation.RunUpdate) error {
	updates := map[string]any{}
	if upd.Status != nil {
		updates["status"] = string(*upd.Status)
	}
	if upd.ProgressCurrent != nil {
		updates["progress_current"] = *upd.ProgressCurrent
	}
	if upd.ProgressTotal != nil {
		updates["progress_total"] = *upd.ProgressTotal
	}
	if upd.Summary != nil {
		updates["summary_json"] = JSONMap(upd.Summary)
	}
	if upd.ErrorMessage != nil {
		updates["error_message"] = *upd.ErrorMessage
	}
	if upd.ModelName != nil {
		updates["model_name"] = *upd.ModelName
	}
	if upd.PromptVersion != nil {
		updates["prompt_version"] = *upd.PromptVersion
	}
	if upd.StartedAt != nil {
		updates["started_at"] = *upd.StartedAt
	}
	if upd.CompletedAt != nil {
		updates["completed_at"] = *upd.CompletedAt
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&runRow{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return evaluation.ErrNotFound
	}

	return nil
}

// DeleteRun removes a run and cascades to its results.
func (s *Store) DeleteRun(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&runRow{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return evaluation.ErrNotFound
		}
		return tx.Where("run_id = ?", id).Delete(&resultRow{}).Error
	})
}

// InsertResults appends a batch of results.
func (s *Store) InsertResults(ctx context.Context, results []evaluation.Result) error {
	if len(results) == 0 {
		return nil
	}

	now := time.Now().UnixMilli()
	rows := make([]resultRow, 0, len(results))
	for i := range results {
		if results[i].RunID == 0 {
			return evaluation.ErrInvalidInput
		}
		row := resultToRow(&results[i])
		row.ID = 0
		if row.CreatedAt == 0 {
			row.CreatedAt = now
		}
		rows = append(rows, *row)
	}

	return s.db.WithContext(ctx).Create(&rows).Error
}

// ListResults returns a run's results ordered by creation time.
func (s *Store) ListResults(ctx context.Context, runID int64, page evaluation.ResultPage) ([]evaluation.Result, error) {
	tx := s.db.WithContext(ctx).Where("run_id = ?", runID).Order("created_at ASC, id ASC")
	if page.Limit > 0 {
		tx = tx.Limit(page.Limit)
	}
	if page.Offset > 0 {
		tx = tx.Offset(page.Offset)
	}

	var rows []resultRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]evaluation.Result, 0, len(rows))
	for i := range rows {
		results = append(results, rowToResult(&rows[i]))
	}
	return results, nil
}

// CountResults returns the number of results a run produced.
func (s *Store) CountResults(ctx context.Context, runID int64) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&resultRow{}).Where("run_id = ?", runID).Count(&count).Error
	return int(count), err
}

// CompletedRunIDs returns completed run IDs of the given type inside
// the query window, oldest first.
func (s *Store) CompletedRunIDs(ctx context.Context, t evaluation.EvaluatorType, q evaluation.CompletedRunQuery) ([]int64, error) {
	tx := s.db.WithContext(ctx).Model(&runRow{}).
		Where("evaluator_type = ? AND status = ?", string(t), string(evaluation.RunStatusCompleted)).
		Order("completed_at ASC")
	if q.Since != 0 {
		tx = tx.Where("completed_at >= ?", q.Since)
	}
	if q.Until != 0 {
		tx = tx.Where("completed_at < ?", q.Until)
	}
	if q.PromptVersion != "" {
		tx = tx.Where("prompt_version = ?", q.PromptVersion)
	}

	var ids []int64
	if err := tx.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ResultScores returns score projections for all results owned by the
// given runs.
func (s *Store) ResultScores(ctx context.Context, runIDs []int64) ([]evaluation.RunScore, error) {
	if len(runIDs) == 0 {
		return nil, nil
	}

	var rows []resultRow
	err := s.db.WithContext(ctx).
		Select("run_id", "numeric_score", "scores_json").
		Where("run_id IN ?", runIDs).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	scores := make([]evaluation.RunScore, 0, len(rows))
	for i := range rows {
		scores = append(scores, evaluation.RunScore{
			RunID:        rows[i].RunID,
			NumericScore: rows[i].NumericScore,
			Scores:       map[string]any(rows[i].ScoresJSON),
		})
	}
	return scores, nil
}

// InsertBaseline appends a baseline snapshot and assigns its ID.
func (s *Store) InsertBaseline(ctx context.Context, b *evaluation.Baseline) error {
	if b == nil {
		return evaluation.ErrInvalidInput
	}
	if b.CreatedAt == 0 {
		b.CreatedAt = time.Now().UnixMilli()
	}

	row := baselineToRow(b)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	b.ID = row.ID

	return nil
}

// ListBaselines returns baseline snapshots for an evaluator type,
// newest first.
func (s *Store) ListBaselines(ctx context.Context, t evaluation.EvaluatorType, q evaluation.BaselineQuery) ([]evaluation.Baseline, error) {
	tx := s.db.WithContext(ctx).
		Where("evaluator_type = ?", string(t)).
		Order("created_at DESC, id DESC")
	if q.ModelName != "" {
		tx = tx.Where("model_name = ?", q.ModelName)
	}
	if q.PromptVersion != "" {
		tx = tx.Where("prompt_version = ?", q.PromptVersion)
	}

	var rows []baselineRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	baselines := make([]evaluation.Baseline, 0, len(rows))
	for i := range rows {
		baselines = append(baselines, rowToBaseline(&rows[i]))
	}
	return baselines, nil
}

// TypeSummaries computes the per-type presentation summary from the
// latest run of each type.
func (s *Store) TypeSummaries(ctx context.Context, types []evaluation.EvaluatorType) ([]evaluation.TypeSummary, error) {
	summaries := make([]evaluation.TypeSummary, 0, len(types))
	for _, t := range types {
		summary := evaluation.TypeSummary{EvaluatorType: t}

		var row runRow
		err := s.db.WithContext(ctx).
			Where("evaluator_type = ?", string(t)).
			Order("created_at DESC, id DESC").
			First(&row).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil {
			count, err := s.CountResults(ctx, row.ID)
			if err != nil {
				return nil, err
			}
			run := rowToRun(&row)
			summary.LastRunID = run.ID
			summary.LastRunStatus = run.Status
			summary.LastRunAt = run.CreatedAt
			summary.LastRunModel = run.ModelName
			summary.LastRunSampleCount = count
			summary.Summary = run.Summary
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// AddToolEvent records a hook event and assigns its ID.
func (s *Store) AddToolEvent(ctx context.Context, ev *evaluation.ToolEvent) error {
	if ev == nil {
		return evaluation.ErrInvalidInput
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	row := eventToRow(ev)
	row.ID = 0
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	ev.ID = row.ID

	return nil
}

// AddMessage records a transcript message and assigns its ID.
func (s *Store) AddMessage(ctx context.Context, msg *evaluation.Message) error {
	if msg == nil {
		return evaluation.ErrInvalidInput
	}
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}

	// Duplicate uuids are dropped silently so transcript ingest can
	// resend overlapping batches.
	row := messageToRow(msg)
	row.ID = 0
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uuid"}},
			DoNothing: true,
		}).
		Create(row).Error
	if err != nil {
		return err
	}
	msg.ID = row.ID

	if msg.Role == "user" {
		s.userMessages.Remove(msg.SessionID)
	}

	return nil
}

// ToolEvents returns completed tool invocations in scope, oldest first.
func (s *Store) ToolEvents(ctx context.Context, q evaluation.ToolEventQuery) ([]evaluation.ToolEvent, error) {
	tx := s.db.WithContext(ctx).
		Where("source_app <> ?", storage.RunnerSourceApp).
		Where("hook_event_type IN ?", []string{evaluation.HookPostToolUse, evaluation.HookPostToolUseFailure}).
		Order("timestamp ASC, id ASC")
	if q.Since != 0 {
		tx = tx.Where("timestamp >= ?", q.Since)
	}
	if q.SessionID != "" {
		tx = tx.Where("session_id = ?", q.SessionID)
	}
	if len(q.SessionIDs) > 0 {
		tx = tx.Where("session_id IN ?", q.SessionIDs)
	}
	if q.SourceApp != "" {
		tx = tx.Where("source_app = ?", q.SourceApp)
	}

	var rows []eventRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	events := make([]evaluation.ToolEvent, 0, len(rows))
	for i := range rows {
		events = append(events, rowToEvent(&rows[i]))
	}
	return events, nil
}

// AssistantMessages returns assistant transcript messages in scope,
// oldest first.
func (s *Store) AssistantMessages(ctx context.Context, q evaluation.MessageQuery) ([]evaluation.Message, error) {
	tx := s.db.WithContext(ctx).
		Where("role = ?", "assistant").
		Where("source_app <> ?", storage.RunnerSourceApp).
		Order("timestamp ASC, id ASC")
	if q.Since != 0 {
		tx = tx.Where("timestamp >= ?", q.Since)
	}
	if q.SessionID != "" {
		tx = tx.Where("session_id = ?", q.SessionID)
	}
	if q.SourceApp != "" {
		tx = tx.Where("source_app = ?", q.SourceApp)
	}
	if q.WithThinking {
		tx = tx.Where("thinking <> ''")
	}

	var rows []messageRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	messages := make([]evaluation.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rowToMessage(&rows[i]))
	}
	return messages, nil
}

// PrecedingUserMessage returns the user message immediately before the
// given timestamp in a session, or nil when there is none. Lookups are
// served from a per-session cache since judge-backed evaluators probe
// the same sessions repeatedly.
func (s *Store) PrecedingUserMessage(ctx context.Context, sessionID string, before int64) (*evaluation.Message, error) {
	messages, ok := s.userMessages.Get(sessionID)
	if !ok {
		var rows []messageRow
		err := s.db.WithContext(ctx).
			Where("session_id = ? AND role = ?", sessionID, "user").
			Order("timestamp ASC, id ASC").
			Find(&rows).Error
		if err != nil {
			return nil, err
		}
		messages = make([]evaluation.Message, 0, len(rows))
		for i := range rows {
			messages = append(messages, rowToMessage(&rows[i]))
		}
		s.userMessages.Add(sessionID, messages)
	}

	// Last message strictly before the cutoff.
	idx := sort.Search(len(messages), func(i int) bool {
		return messages[i].Timestamp >= before
	})
	if idx == 0 {
		return nil, nil
	}

	copied := messages[idx-1]
	return &copied, nil
}
