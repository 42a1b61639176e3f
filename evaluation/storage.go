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

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("evaluation: not found")

	// ErrInvalidInput indicates invalid input parameters.
	ErrInvalidInput = errors.New("evaluation: invalid input")
)

// Hook event types that record a finished tool invocation. Only these
// flow into ToolEvents; lifecycle hooks (UserPromptSubmit, Stop, ...)
// stay out of tool scoring.
const (
	HookPostToolUse        = "PostToolUse"
	HookPostToolUseFailure = "PostToolUseFailure"
)

// ToolEventQuery filters recorded tool invocations.
type ToolEventQuery struct {
	// Since is an epoch-ms lower bound on the event timestamp. Zero
	// means unbounded.
	Since      int64
	SessionID  string
	SessionIDs []string
	SourceApp  string
}

// MessageQuery filters recorded transcript messages.
type MessageQuery struct {
	Since     int64
	SessionID string
	SourceApp string

	// WithThinking restricts results to messages carrying a
	// reasoning/thinking block.
	WithThinking bool
}

// RunQuery filters and paginates stored runs.
type RunQuery struct {
	EvaluatorType EvaluatorType
	Status        RunStatus
	Limit         int
	Offset        int
}

// CompletedRunQuery bounds the completed-run lookup used by the
// regression evaluator.
type CompletedRunQuery struct {
	Since         int64
	Until         int64
	PromptVersion string
}

// ResultPage paginates result retrieval.
type ResultPage struct {
	Limit  int
	Offset int
}

// BaselineQuery filters stored baseline snapshots.
type BaselineQuery struct {
	ModelName     string
	PromptVersion string
}

// RunScore is the minimal per-result projection the regression
// evaluator aggregates over.
type RunScore struct {
	RunID        int64
	NumericScore float64
	Scores       map[string]any
}

// RunUpdate carries the mutable fields of a run. Nil pointers leave the
// stored value untouched.
type RunUpdate struct {
	Status          *RunStatus
	ProgressCurrent *int
	ProgressTotal   *int
	Summary         map[string]any
	ErrorMessage    *string
	ModelName       *string
	PromptVersion   *string
	StartedAt       *int64
	CompletedAt     *int64
}

// Store persists runs, results and baselines and answers the
// aggregation queries the evaluators need. Implementations must provide
// read-after-write consistency on run status and progress.
type Store interface {
	// CreateRun stores a new run and assigns its ID. A zero CreatedAt
	// is filled with the current time.
	CreateRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID, or ErrNotFound.
	GetRun(ctx context.Context, id int64) (*Run, error)

	// ListRuns returns runs matching the query, newest first.
	ListRuns(ctx context.Context, q RunQuery) ([]Run, error)

	// UpdateRun applies the update to the stored run.
	UpdateRun(ctx context.Context, id int64, upd RunUpdate) error

	// DeleteRun removes a run and cascades to its results.
	DeleteRun(ctx context.Context, id int64) error

	// InsertResults appends a batch of results.
	InsertResults(ctx context.Context, results []Result) error

	// ListResults returns a run's results ordered by creation time.
	ListResults(ctx context.Context, runID int64, page ResultPage) ([]Result, error)

	// CountResults returns the number of results a run produced.
	CountResults(ctx context.Context, runID int64) (int, error)

	// CompletedRunIDs returns the IDs of completed runs of the given
	// type inside the query window, oldest first.
	CompletedRunIDs(ctx context.Context, t EvaluatorType, q CompletedRunQuery) ([]int64, error)

	// ResultScores returns score projections for all results owned by
	// the given runs.
	ResultScores(ctx context.Context, runIDs []int64) ([]RunScore, error)

	// InsertBaseline appends a baseline snapshot and assigns its ID.
	InsertBaseline(ctx context.Context, b *Baseline) error

	// ListBaselines returns baseline snapshots for an evaluator type,
	// newest first.
	ListBaselines(ctx context.Context, t EvaluatorType, q BaselineQuery) ([]Baseline, error)

	// TypeSummaries computes the derived per-type presentation summary.
	TypeSummaries(ctx context.Context, types []EvaluatorType) ([]TypeSummary, error)
}

// EventSource answers the evaluators' questions about recorded agent
// activity. Implementations must exclude rows authored by the
// evaluation system itself.
type EventSource interface {
	// ToolEvents returns completed tool invocations in scope, oldest
	// first.
	ToolEvents(ctx context.Context, q ToolEventQuery) ([]ToolEvent, error)

	// AssistantMessages returns assistant transcript messages in scope,
	// oldest first.
	AssistantMessages(ctx context.Context, q MessageQuery) ([]Message, error)

	// PrecedingUserMessage returns the user message immediately before
	// the given timestamp in a session, or nil when there is none.
	PrecedingUserMessage(ctx context.Context, sessionID string, before int64) (*Message, error)
}
