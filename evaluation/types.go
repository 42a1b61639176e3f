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

package evaluation

// EvaluatorType identifies a registered evaluator implementation.
type EvaluatorType string

const (
	// TypeToolSuccess classifies recorded tool invocations as success or
	// failure and aggregates per-tool and per-agent rates. Deterministic,
	// no judge required.
	TypeToolSuccess EvaluatorType = "tool_success"

	// TypeTranscriptQuality scores sampled assistant messages on
	// helpfulness, accuracy and conciseness (1-5 each) via an LLM judge.
	TypeTranscriptQuality EvaluatorType = "transcript_quality"

	// TypeReasoningQuality scores sampled thinking blocks on depth,
	// coherence and self_correction (1-5 each) via an LLM judge.
	TypeReasoningQuality EvaluatorType = "reasoning_quality"

	// TypeRegression compares current metric windows against historical
	// baselines and flags statistically significant shifts.
	TypeRegression EvaluatorType = "regression"
)

// BuiltinTypes returns the evaluator types shipped with this module.
func BuiltinTypes() []EvaluatorType {
	return []EvaluatorType{
		TypeToolSuccess,
		TypeTranscriptQuality,
		TypeReasoningQuality,
		TypeRegression,
	}
}

func (t EvaluatorType) String() string { return string(t) }

// RunStatus represents the lifecycle state of an evaluation run.
// Transitions are monotonic: pending -> running -> completed | failed.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Terminal reports whether the status is final.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// ScopeType restricts which recorded activity a run covers.
type ScopeType string

const (
	ScopeSession ScopeType = "session"
	ScopeAgent   ScopeType = "agent"
	ScopeGlobal  ScopeType = "global"
)

// Scope is the subset of recorded activity an evaluation run is
// restricted to.
type Scope struct {
	Type       ScopeType `json:"type"`
	SessionID  string    `json:"session_id,omitempty"`
	SessionIDs []string  `json:"session_ids,omitempty"`
	SourceApp  string    `json:"source_app,omitempty"`
}

// RunOptions tunes a single evaluation run.
type RunOptions struct {
	// TimeWindowHours bounds how far back the evaluator looks. Zero means
	// no bound for scanning evaluators and 24h for the regression
	// evaluator's current window.
	TimeWindowHours int `json:"time_window_hours,omitempty"`

	// SampleLimit caps how many items a judge-backed evaluator scores.
	SampleLimit int `json:"sample_limit,omitempty"`

	// Provider overrides the gateway's provider auto-detection.
	Provider string `json:"provider,omitempty"`

	// Temperature is forwarded to the judge model when set.
	Temperature *float64 `json:"temperature,omitempty"`
}

// Run is one invocation of one evaluator over one scope.
type Run struct {
	ID              int64          `json:"id"`
	EvaluatorType   EvaluatorType  `json:"evaluator_type"`
	Scope           Scope          `json:"scope"`
	Status          RunStatus      `json:"status"`
	ProgressCurrent int            `json:"progress_current"`
	ProgressTotal   int            `json:"progress_total"`
	Summary         map[string]any `json:"summary,omitempty"`
	ErrorMessage    string         `json:"error_message,omitempty"`
	ModelName       string         `json:"model_name,omitempty"`
	PromptVersion   string         `json:"prompt_version,omitempty"`
	Options         RunOptions     `json:"options"`

	// Epoch milliseconds. StartedAt and CompletedAt are zero until the
	// corresponding transition happens.
	CreatedAt   int64 `json:"created_at"`
	StartedAt   int64 `json:"started_at,omitempty"`
	CompletedAt int64 `json:"completed_at,omitempty"`
}

// ItemType identifies the kind of source record a result scored.
type ItemType string

const (
	ItemToolInvocation   ItemType = "tool_invocation"
	ItemAssistantMessage ItemType = "assistant_message"
	ItemThinkingBlock    ItemType = "thinking_block"
)

// Result is one scored item produced by a run. Results are immutable
// after creation and deleted only alongside their parent run.
type Result struct {
	ID        int64    `json:"id"`
	RunID     int64    `json:"run_id"`
	SessionID string   `json:"session_id"`
	SourceApp string   `json:"source_app"`
	ItemType  ItemType `json:"item_type"`

	// ItemID identifies the source record: an event id for tool
	// invocations, a message uuid otherwise.
	ItemID string `json:"item_id"`

	// NumericScore is a single scalar derivable from Scores by the
	// owning evaluator's rule (mean of dimensions, or 1.0/0.0 for
	// boolean success). Failed scoring attempts are recorded with a
	// zero score and an error marker in Scores.
	NumericScore float64        `json:"numeric_score"`
	Scores       map[string]any `json:"scores_json"`
	Rationale    string         `json:"rationale,omitempty"`
	Metadata     map[string]any `json:"metadata_json,omitempty"`
	CreatedAt    int64          `json:"created_at"`
}

// Baseline is a snapshot of a metric's distribution over a time window.
// Rows accumulate historically and are never updated.
type Baseline struct {
	ID            int64              `json:"id"`
	EvaluatorType EvaluatorType      `json:"evaluator_type"`
	MetricName    string             `json:"metric_name"`
	ModelName     string             `json:"model_name,omitempty"`
	PromptVersion string             `json:"prompt_version,omitempty"`
	WindowStart   int64              `json:"window_start"`
	WindowEnd     int64              `json:"window_end"`
	SampleCount   int                `json:"sample_count"`
	MeanScore     float64            `json:"mean_score"`
	StddevScore   float64            `json:"stddev_score"`
	Percentiles   map[string]float64 `json:"percentile_json,omitempty"`
	CreatedAt     int64              `json:"created_at"`
}

// TypeSummary is a per evaluator-type projection computed on read from
// runs and results. It is derived, never stored.
type TypeSummary struct {
	EvaluatorType      EvaluatorType  `json:"evaluator_type"`
	LastRunID          int64          `json:"last_run_id,omitempty"`
	LastRunStatus      RunStatus      `json:"last_run_status,omitempty"`
	LastRunAt          int64          `json:"last_run_at,omitempty"`
	LastRunModel       string         `json:"last_run_model,omitempty"`
	LastRunSampleCount int            `json:"last_run_sample_count"`
	Summary            map[string]any `json:"summary,omitempty"`
}

// FilterOptions enumerates the distinct values the event feed can be
// filtered by.
type FilterOptions struct {
	SourceApps     []string `json:"source_apps"`
	SessionIDs     []string `json:"session_ids"`
	HookEventTypes []string `json:"hook_event_types"`
}

// ToolEvent is a completed tool invocation recorded by the hook
// pipeline.
type ToolEvent struct {
	ID            int64          `json:"id"`
	SourceApp     string         `json:"source_app"`
	SessionID     string         `json:"session_id"`
	HookEventType string         `json:"hook_event_type"`
	Payload       map[string]any `json:"payload"`
	Timestamp     int64          `json:"timestamp"`
}

// Message is a transcript message recorded for a session.
type Message struct {
	ID           int64  `json:"id"`
	SessionID    string `json:"session_id"`
	SourceApp    string `json:"source_app"`
	Role         string `json:"role"`
	Content      string `json:"content"`
	Thinking     string `json:"thinking,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  int    `json:"input_tokens,omitempty"`
	OutputTokens int    `json:"output_tokens,omitempty"`
	Timestamp    int64  `json:"timestamp"`
	UUID         string `json:"uuid"`
}
