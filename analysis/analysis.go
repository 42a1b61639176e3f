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

// Package analysis provides LLM-backed per-session transcript analysis
// and cross-session insight synthesis.
package analysis

import (
	"context"
	"errors"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// Analysis status values. Transitions are monotonic:
// running -> completed | failed.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

var (
	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("analysis: no LLM provider configured")

	// ErrInsufficientData indicates too few analyzed sessions exist for
	// cross-session synthesis.
	ErrInsufficientData = errors.New("analysis: insufficient analyzed sessions")
)

// Assessment is the structured judgment produced for one session.
type Assessment struct {
	TaskSummary        string   `mapstructure:"task_summary" json:"task_summary"`
	Outcome            string   `mapstructure:"outcome" json:"outcome"`
	Complexity         string   `mapstructure:"complexity" json:"complexity"`
	ToolsUsed          []string `mapstructure:"tools_used" json:"tools_used,omitempty"`
	KeyDecisions       []string `mapstructure:"key_decisions" json:"key_decisions,omitempty"`
	Issues             []string `mapstructure:"issues" json:"issues,omitempty"`
	QualityScore       float64  `mapstructure:"quality_score" json:"quality_score"`
	Tags               []string `mapstructure:"tags" json:"tags,omitempty"`
	DurationAssessment string   `mapstructure:"duration_assessment" json:"duration_assessment"`
}

// SessionAnalysis is the persisted record of one session's analysis.
type SessionAnalysis struct {
	SessionID      string         `json:"session_id"`
	SourceApp      string         `json:"source_app"`
	Status         string         `json:"status"`
	Summary        string         `json:"summary,omitempty"`
	Assessment     map[string]any `json:"analysis_json,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	ModelName      string         `json:"model_name,omitempty"`
	PromptVersion  string         `json:"prompt_version,omitempty"`
	MessageCount   int            `json:"message_count"`
	TokensAnalyzed int            `json:"tokens_analyzed,omitempty"`
	CreatedAt      int64          `json:"created_at"`
	CompletedAt    int64          `json:"completed_at,omitempty"`
}

// Insight is a persisted cross-session synthesis snapshot.
type Insight struct {
	Key          string         `json:"key"`
	Analysis     map[string]any `json:"analysis_json"`
	ModelName    string         `json:"model_name,omitempty"`
	SessionCount int            `json:"session_count"`
	CreatedAt    int64          `json:"created_at"`
}

// AnalysisQuery filters stored session analyses.
type AnalysisQuery struct {
	Status string
	Limit  int
}

// Store is the persistence boundary the analyzer needs.
type Store interface {
	// SessionMessages returns all of a session's transcript messages
	// ordered by timestamp.
	SessionMessages(ctx context.Context, sessionID string) ([]evaluation.Message, error)

	// GetAnalysis retrieves a session's analysis record, or
	// evaluation.ErrNotFound.
	GetAnalysis(ctx context.Context, sessionID string) (*SessionAnalysis, error)

	// UpsertAnalysis inserts or replaces a session's analysis record.
	UpsertAnalysis(ctx context.Context, a *SessionAnalysis) error

	// ListAnalyses returns analysis records matching the query, newest
	// first.
	ListAnalyses(ctx context.Context, q AnalysisQuery) ([]SessionAnalysis, error)

	// GetInsight retrieves a stored insight snapshot by key, or
	// evaluation.ErrNotFound.
	GetInsight(ctx context.Context, key string) (*Insight, error)

	// UpsertInsight inserts or replaces an insight snapshot.
	UpsertInsight(ctx context.Context, in *Insight) error
}
