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

// Package evaluation scores recorded AI coding-agent activity with a
// pluggable set of evaluators.
//
// # Core Concepts
//
// Run: one invocation of one evaluator over one scope, with a monotonic
// pending -> running -> completed|failed lifecycle.
//
// Result: one scored item produced by a run, carrying a scalar
// numeric_score plus the full dimensional breakdown it derives from.
//
// Baseline: an append-only snapshot of a metric's distribution over a
// time window, accumulated by the regression evaluator.
//
// Evaluator: the common scorer contract. Built-ins live in the
// evaluators subpackage: tool_success and regression run without a
// judge; transcript_quality and reasoning_quality sample recorded
// messages and grade them with an LLM judge from the judge subpackage.
//
// # Orchestration
//
// Runner owns the lifecycle: it validates submissions against the
// Registry, refuses judge-backed evaluators when no provider is
// configured, persists incremental progress through a Store, and pushes
// ProgressUpdate notifications to a BroadcastFunc suitable for any
// pub/sub or socket channel. An evaluator failure fails only its own
// run; item-level scoring failures degrade to zero-scored results so
// denominators stay accurate for regression statistics.
//
// # Sampling
//
// StratifiedSample bounds judge cost while preserving session
// diversity: every session is represented before any session is
// sampled deeply.
package evaluation
