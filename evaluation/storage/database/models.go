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

package database

import (
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// runRow is the evaluation_runs table model.
type runRow struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	EvaluatorType   string  `gorm:"index;not null"`
	ScopeType       string  `gorm:"not null"`
	ScopeSessionID  string  `gorm:"index"`
	ScopeJSON       JSONMap `gorm:"column:scope_json"`
	Status          string  `gorm:"index;not null"`
	ProgressCurrent int
	ProgressTotal   int
	SummaryJSON     JSONMap `gorm:"column:summary_json"`
	ErrorMessage    string
	ModelName       string
	PromptVersion   string
	OptionsJSON     JSONMap `gorm:"column:options_json"`
	CreatedAt       int64   `gorm:"index;autoCreateTime:false"`
	StartedAt       int64   `gorm:"autoCreateTime:false"`
	CompletedAt     int64   `gorm:"index;autoCreateTime:false"`
}

func (runRow) TableName() string { return "evaluation_runs" }

// resultRow is the evaluation_results table model.
type resultRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	RunID        int64  `gorm:"index;not null"`
	SessionID    string `gorm:"index"`
	SourceApp    string
	ItemType     string
	ItemID       string
	NumericScore float64
	ScoresJSON   JSONMap `gorm:"column:scores_json"`
	Rationale    string
	MetadataJSON JSONMap `gorm:"column:metadata_json"`
	CreatedAt    int64   `gorm:"autoCreateTime:false"`
}

func (resultRow) TableName() string { return "evaluation_results" }

// baselineRow is the evaluation_baselines table model.
type baselineRow struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	EvaluatorType  string `gorm:"index;not null"`
	MetricName     string `gorm:"index;not null"`
	ModelName      string
	PromptVersion  string
	WindowStart    int64
	WindowEnd      int64
	SampleCount    int
	MeanScore      float64
	StddevScore    float64
	PercentileJSON FloatMap `gorm:"column:percentile_json"`
	CreatedAt      int64    `gorm:"index;autoCreateTime:false"`
}

func (baselineRow) TableName() string { return "evaluation_baselines" }

// eventRow is the events table model for recorded hook events.
type eventRow struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	SourceApp     string `gorm:"index;not null"`
	SessionID     string `gorm:"index;not null"`
	HookEventType string `gorm:"index;not null"`
	PayloadJSON   JSONMap `gorm:"column:payload_json"`
	Timestamp     int64   `gorm:"index;autoCreateTime:false"`
}

func (eventRow) TableName() string { return "events" }

// messageRow is the session_messages table model.
type messageRow struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	SessionID    string `gorm:"index;not null"`
	SourceApp    string `gorm:"index"`
	Role         string `gorm:"index;not null"`
	Content      string
	Thinking     string
	Model        string
	InputTokens  int
	OutputTokens int
	Timestamp    int64  `gorm:"index;autoCreateTime:false"`
	UUID         string `gorm:"uniqueIndex;column:uuid"`
}

func (messageRow) TableName() string { return "session_messages" }

func runToRow(run *evaluation.Run) *runRow {
	return &runRow{
		ID:              run.ID,
		EvaluatorType:   string(run.EvaluatorType),
		ScopeType:       string(run.Scope.Type),
		ScopeSessionID:  run.Scope.SessionID,
		ScopeJSON:       scopeJSON(run.Scope),
		Status:          string(run.Status),
		ProgressCurrent: run.ProgressCurrent,
		ProgressTotal:   run.ProgressTotal,
		SummaryJSON:     JSONMap(run.Summary),
		ErrorMessage:    run.ErrorMessage,
		ModelName:       run.ModelName,
		PromptVersion:   run.PromptVersion,
		OptionsJSON:     optionsJSON(run.Options),
		CreatedAt:       run.CreatedAt,
		StartedAt:       run.StartedAt,
		CompletedAt:     run.CompletedAt,
	}
}

func rowToRun(row *runRow) *evaluation.Run {
	return &evaluation.Run{
		ID:              row.ID,
		EvaluatorType:   evaluation.EvaluatorType(row.EvaluatorType),
		Scope:           scopeFromJSON(row.ScopeType, row.ScopeSessionID, row.ScopeJSON),
		Status:          evaluation.RunStatus(row.Status),
		ProgressCurrent: row.ProgressCurrent,
		ProgressTotal:   row.ProgressTotal,
		Summary:         map[string]any(row.SummaryJSON),
		ErrorMessage:    row.ErrorMessage,
		ModelName:       row.ModelName,
		PromptVersion:   row.PromptVersion,
		Options:         optionsFromJSON(row.OptionsJSON),
		CreatedAt:       row.CreatedAt,
		StartedAt:       row.StartedAt,
		CompletedAt:     row.CompletedAt,
	}
}

func scopeJSON(scope evaluation.Scope) JSONMap {
	m := JSONMap{"type": string(scope.Type)}
	if scope.SessionID != "" {
		m["session_id"] = scope.SessionID
	}
	if len(scope.SessionIDs) > 0 {
		ids := make([]any, len(scope.SessionIDs))
		for i, id := range scope.SessionIDs {
			ids[i] = id
		}
		m["session_ids"] = ids
	}
	if scope.SourceApp != "" {
		m["source_app"] = scope.SourceApp
	}
	return m
}

func scopeFromJSON(scopeType, sessionID string, m JSONMap) evaluation.Scope {
	scope := evaluation.Scope{
		Type:      evaluation.ScopeType(scopeType),
		SessionID: sessionID,
	}
	if app, ok := m["source_app"].(string); ok {
		scope.SourceApp = app
	}
	if ids, ok := m["session_ids"].([]any); ok {
		for _, id := range ids {
			if s, ok := id.(string); ok {
				scope.SessionIDs = append(scope.SessionIDs, s)
			}
		}
	}
	return scope
}

func optionsJSON(opts evaluation.RunOptions) JSONMap {
	m := JSONMap{}
	if opts.TimeWindowHours != 0 {
		m["time_window_hours"] = opts.TimeWindowHours
	}
	if opts.SampleLimit != 0 {
		m["sample_limit"] = opts.SampleLimit
	}
	if opts.Provider != "" {
		m["provider"] = opts.Provider
	}
	if opts.Temperature != nil {
		m["temperature"] = *opts.Temperature
	}
	return m
}

func optionsFromJSON(m JSONMap) evaluation.RunOptions {
	var opts evaluation.RunOptions
	if v, ok := m["time_window_hours"].(float64); ok {
		opts.TimeWindowHours = int(v)
	}
	if v, ok := m["sample_limit"].(float64); ok {
		opts.SampleLimit = int(v)
	}
	if v, ok := m["provider"].(string); ok {
		opts.Provider = v
	}
	if v, ok := m["temperature"].(float64); ok {
		opts.Temperature = &v
	}
	return opts
}

func resultToRow(r *evaluation.Result) *resultRow {
	return &resultRow{
		ID:           r.ID,
		RunID:        r.RunID,
		SessionID:    r.SessionID,
		SourceApp:    r.SourceApp,
		ItemType:     string(r.ItemType),
		ItemID:       r.ItemID,
		NumericScore: r.NumericScore,
		ScoresJSON:   JSONMap(r.Scores),
		Rationale:    r.Rationale,
		MetadataJSON: JSONMap(r.Metadata),
		CreatedAt:    r.CreatedAt,
	}
}

func rowToResult(row *resultRow) evaluation.Result {
	return evaluation.Result{
		ID:           row.ID,
		RunID:        row.RunID,
		SessionID:    row.SessionID,
		SourceApp:    row.SourceApp,
		ItemType:     evaluation.ItemType(row.ItemType),
		ItemID:       row.ItemID,
		NumericScore: row.NumericScore,
		Scores:       map[string]any(row.ScoresJSON),
		Rationale:    row.Rationale,
		Metadata:     map[string]any(row.MetadataJSON),
		CreatedAt:    row.CreatedAt,
	}
}

func baselineToRow(b *evaluation.Baseline) *baselineRow {
	return &baselineRow{
		ID:             b.ID,
		EvaluatorType:  string(b.EvaluatorType),
		MetricName:     b.MetricName,
		ModelName:      b.ModelName,
		PromptVersion:  b.PromptVersion,
		WindowStart:    b.WindowStart,
		WindowEnd:      b.WindowEnd,
		SampleCount:    b.SampleCount,
		MeanScore:      b.MeanScore,
		StddevScore:    b.StddevScore,
		PercentileJSON: FloatMap(b.Percentiles),
		CreatedAt:      b.CreatedAt,
	}
}

func rowToBaseline(row *baselineRow) evaluation.Baseline {
	return evaluation.Baseline{
		ID:            row.ID,
		EvaluatorType: evaluation.EvaluatorType(row.EvaluatorType),
		MetricName:    row.MetricName,
		ModelName:     row.ModelName,
		PromptVersion: row.PromptVersion,
		WindowStart:   row.WindowStart,
		WindowEnd:     row.WindowEnd,
		SampleCount:   row.SampleCount,
		MeanScore:     row.MeanScore,
		StddevScore:   row.StddevScore,
		Percentiles:   map[string]float64(row.PercentileJSON),
		CreatedAt:     row.CreatedAt,
	}
}

func eventToRow(ev *evaluation.ToolEvent) *eventRow {
	return &eventRow{
		ID:            ev.ID,
		SourceApp:     ev.SourceApp,
		SessionID:     ev.SessionID,
		HookEventType: ev.HookEventType,
		PayloadJSON:   JSONMap(ev.Payload),
		Timestamp:     ev.Timestamp,
	}
}

func rowToEvent(row *eventRow) evaluation.ToolEvent {
	return evaluation.ToolEvent{
		ID:            row.ID,
		SourceApp:     row.SourceApp,
		SessionID:     row.SessionID,
		HookEventType: row.HookEventType,
		Payload:       map[string]any(row.PayloadJSON),
		Timestamp:     row.Timestamp,
	}
}

func messageToRow(msg *evaluation.Message) *messageRow {
	return &messageRow{
		ID:           msg.ID,
		SessionID:    msg.SessionID,
		SourceApp:    msg.SourceApp,
		Role:         msg.Role,
		Content:      msg.Content,
		Thinking:     msg.Thinking,
		Model:        msg.Model,
		InputTokens:  msg.InputTokens,
		OutputTokens: msg.OutputTokens,
		Timestamp:    msg.Timestamp,
		UUID:         msg.UUID,
	}
}

func rowToMessage(row *messageRow) evaluation.Message {
	return evaluation.Message{
		ID:           row.ID,
		SessionID:    row.SessionID,
		SourceApp:    row.SourceApp,
		Role:         row.Role,
		Content:      row.Content,
		Thinking:     row.Thinking,
		Model:        row.Model,
		InputTokens:  row.InputTokens,
		OutputTokens: row.OutputTokens,
		Timestamp:    row.Timestamp,
		UUID:         row.UUID,
	}
}
