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
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	resultInsertChunk = 25
	interChunkYield   = 10 * time.Millisecond

	tracerName = "agentland/evaluation"
)

// ProgressUpdate is pushed to subscribers on every status or progress
// change of a run.
type ProgressUpdate struct {
	RunID           int64     `json:"run_id"`
	Status          RunStatus `json:"status"`
	ProgressCurrent int       `json:"progress_current"`
	ProgressTotal   int       `json:"progress_total"`
}

// BroadcastFunc delivers progress updates to observers. It must not
// block: slow consumers are the subscriber's problem.
type BroadcastFunc func(ProgressUpdate)

// SubmitRequest describes a requested evaluation run.
type SubmitRequest struct {
	EvaluatorType EvaluatorType `json:"evaluator_type"`
	Scope         Scope         `json:"scope"`
	Options       RunOptions    `json:"options"`
}

// ValidationError reports a malformed submission. It is surfaced
// synchronously; no run is created.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("evaluation: invalid %s: %s", e.Field, e.Reason)
}

// Runner owns the run lifecycle: it creates run records, dispatches to
// the registered evaluator, persists incremental progress, and
// broadcasts status changes. Multiple runs may execute concurrently,
// each advancing its own counters; a run's row is owned exclusively by
// its executing goroutine.
type Runner struct {
	store     Store
	events    EventSource
	registry  *Registry
	judge     Judge
	broadcast BroadcastFunc
	tracer    trace.Tracer

	wg sync.WaitGroup
}

// NewRunner assembles an orchestrator. judge may be nil when no
// provider credentials exist; judge-backed evaluators then fail fast.
// broadcast may be nil.
func NewRunner(store Store, events EventSource, registry *Registry, j Judge, broadcast BroadcastFunc) *Runner {
	return &Runner{
		store:     store,
		events:    events,
		registry:  registry,
		judge:     j,
		broadcast: broadcast,
		tracer:    otel.Tracer(tracerName),
	}
}

// Registry exposes the evaluator registry for capability discovery.
func (r *Runner) Registry() *Registry { return r.registry }

// Submit validates the request shape, creates a pending run, and starts
// executing it in the background. Unknown evaluator types and missing
// judge requirements are not submission errors: the run is created and
// immediately transitions to failed, so the failure stays visible in
// run history.
func (r *Runner) Submit(ctx context.Context, req SubmitRequest) (*Run, error) {
	if req.EvaluatorType == "" {
		return nil, &ValidationError{Field: "evaluator_type", Reason: "must not be empty"}
	}
	switch req.Scope.Type {
	case "":
		req.Scope.Type = ScopeGlobal
	case ScopeSession, ScopeAgent, ScopeGlobal:
	default:
		return nil, &ValidationError{Field: "scope.type", Reason: fmt.Sprintf("unknown scope type %q", req.Scope.Type)}
	}
	if req.Scope.Type == ScopeSession && req.Scope.SessionID == "" && len(req.Scope.SessionIDs) == 0 {
		return nil, &ValidationError{Field: "scope.session_id", Reason: "session scope requires a session id"}
	}

	run := &Run{
		EvaluatorType: req.EvaluatorType,
		Scope:         req.Scope,
		Options:       req.Options,
		Status:        RunStatusPending,
		CreatedAt:     time.Now().UnixMilli(),
	}
	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		// Detached from the request context: the run outlives the
		// submitting HTTP request.
		r.Execute(context.Background(), run)
	}()
	return run, nil
}

// Wait blocks until all in-flight runs finish. Used for graceful
// shutdown and tests.
func (r *Runner) Wait() { r.wg.Wait() }

// Execute drives one run to a terminal state. Exported so callers that
// manage their own concurrency (and tests) can run synchronously.
func (r *Runner) Execute(ctx context.Context, run *Run) {
	ctx, span := r.tracer.Start(ctx, "evaluation.run",
		trace.WithAttributes(
			attribute.Int64("run.id", run.ID),
			attribute.String("run.evaluator_type", string(run.EvaluatorType)),
		))
	defer span.End()

	ev, ok := r.registry.Get(run.EvaluatorType)
	if !ok {
		r.fail(ctx, run, fmt.Sprintf("unknown evaluator type: %s", run.EvaluatorType))
		return
	}

	if ev.RequiresJudge() && (r.judge == nil || !r.judge.IsAnyConfigured()) {
		r.fail(ctx, run, fmt.Sprintf("%s requires an LLM provider; set an API key for your preferred provider", run.EvaluatorType))
		return
	}

	startedAt := time.Now().UnixMilli()
	running := RunStatusRunning
	if err := r.store.UpdateRun(ctx, run.ID, RunUpdate{Status: &running, StartedAt: &startedAt}); err != nil {
		log.Printf("[evaluations] run %d: mark running: %v", run.ID, err)
		r.fail(ctx, run, err.Error())
		return
	}
	run.Status = RunStatusRunning
	run.StartedAt = startedAt
	r.publish(ProgressUpdate{RunID: run.ID, Status: RunStatusRunning})

	rc := &RunContext{
		Run:     run,
		Scope:   run.Scope,
		Options: run.Options,
		Events:  r.events,
		Store:   r.store,
		Judge:   r.judge,
		OnProgress: func(current, total int) {
			upd := RunUpdate{ProgressCurrent: &current, ProgressTotal: &total}
			if err := r.store.UpdateRun(ctx, run.ID, upd); err != nil {
				log.Printf("[evaluations] run %d: persist progress: %v", run.ID, err)
			}
			r.publish(ProgressUpdate{
				RunID:           run.ID,
				Status:          RunStatusRunning,
				ProgressCurrent: current,
				ProgressTotal:   total,
			})
		},
		Rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	out, err := ev.Run(ctx, rc)
	if err != nil {
		// Partial results are deliberately discarded: only fully
		// accounted runs feed regression statistics.
		span.RecordError(err)
		log.Printf("[evaluations] evaluator %s run %d failed: %v", run.EvaluatorType, run.ID, err)
		r.fail(ctx, run, err.Error())
		return
	}

	if err := r.insertInChunks(ctx, run.ID, out.Results); err != nil {
		span.RecordError(err)
		r.fail(ctx, run, fmt.Sprintf("persist results: %v", err))
		return
	}

	total := len(out.Results)
	completedAt := time.Now().UnixMilli()
	completed := RunStatusCompleted
	upd := RunUpdate{
		Status:          &completed,
		Summary:         out.Summary,
		ProgressCurrent: &total,
		ProgressTotal:   &total,
		CompletedAt:     &completedAt,
	}
	if out.ModelName != "" {
		upd.ModelName = &out.ModelName
	}
	if out.PromptVersion != "" {
		upd.PromptVersion = &out.PromptVersion
	}
	if err := r.store.UpdateRun(ctx, run.ID, upd); err != nil {
		log.Printf("[evaluations] run %d: mark completed: %v", run.ID, err)
		return
	}
	run.Status = RunStatusCompleted
	run.Summary = out.Summary
	run.CompletedAt = completedAt
	r.publish(ProgressUpdate{
		RunID:           run.ID,
		Status:          RunStatusCompleted,
		ProgressCurrent: total,
		ProgressTotal:   total,
	})
}

// insertInChunks persists results in fixed-size batches with a short
// yield in between so a large result set does not monopolize the
// store.
func (r *Runner) insertInChunks(ctx context.Context, runID int64, results []Result) error {
	for i := 0; i < len(results); i += resultInsertChunk {
		end := min(i+resultInsertChunk, len(results))
		chunk := results[i:end]
		for j := range chunk {
			chunk[j].RunID = runID
			if chunk[j].CreatedAt == 0 {
				chunk[j].CreatedAt = time.Now().UnixMilli()
			}
		}
		if err := r.store.InsertResults(ctx, chunk); err != nil {
			return err
		}
		if end < len(results) {
			time.Sleep(interChunkYield)
		}
	}
	return nil
}

func (r *Runner) fail(ctx context.Context, run *Run, msg string) {
	completedAt := time.Now().UnixMilli()
	failed := RunStatusFailed
	upd := RunUpdate{Status: &failed, ErrorMessage: &msg, CompletedAt: &completedAt}
	if err := r.store.UpdateRun(ctx, run.ID, upd); err != nil {
		log.Printf("[evaluations] run %d: mark failed: %v", run.ID, err)
	}
	run.Status = RunStatusFailed
	run.ErrorMessage = msg
	run.CompletedAt = completedAt
	r.publish(ProgressUpdate{RunID: run.ID, Status: RunStatusFailed})
}

func (r *Runner) publish(upd ProgressUpdate) {
	if r.broadcast != nil {
		r.broadcast(upd)
	}
}
