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
	"math/rand"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

// Judge abstracts the LLM provider gateway used by judge-backed
// evaluators. *judge.Gateway satisfies it.
type Judge interface {
	// Call sends a judge request to the selected provider.
	Call(ctx context.Context, req *judge.Request) (*judge.Result, error)

	// ModelName returns the model the given provider (or the
	// auto-detected one, for an empty name) would use.
	ModelName(provider string) string

	// IsAnyConfigured reports whether at least one provider has
	// credentials.
	IsAnyConfigured() bool
}

// ProgressFunc reports evaluator progress. Evaluators call it at least
// once at start with (0, total) and always at the end with
// current == total.
type ProgressFunc func(current, total int)

// RunContext carries everything an evaluator needs for one run.
type RunContext struct {
	Run     *Run
	Scope   Scope
	Options RunOptions

	// Events and Store answer data queries; Judge is nil when no
	// provider is configured.
	Events EventSource
	Store  Store
	Judge  Judge

	OnProgress ProgressFunc

	// Rand drives sampling. Nil selects an unseeded source; tests
	// inject a seeded one for reproducibility.
	Rand *rand.Rand
}

// Progress invokes OnProgress when set.
func (rc *RunContext) Progress(current, total int) {
	if rc.OnProgress != nil {
		rc.OnProgress(current, total)
	}
}

// Output is what an evaluator hands back to the orchestrator.
type Output struct {
	Results []Result
	Summary map[string]any

	// ModelName and PromptVersion are set only when an LLM judge
	// participated.
	ModelName     string
	PromptVersion string
}

// Evaluator is the common contract all scorers implement.
type Evaluator interface {
	// Type returns the unique name the evaluator registers under.
	Type() EvaluatorType

	// RequiresJudge reports whether the evaluator needs a configured
	// LLM provider. The orchestrator refuses to run it otherwise.
	RequiresJudge() bool

	// Run executes the evaluation. Item-level scoring failures degrade
	// to zero-scored results; a returned error fails the whole run.
	Run(ctx context.Context, rc *RunContext) (*Output, error)
}
