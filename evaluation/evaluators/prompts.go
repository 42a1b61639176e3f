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

package evaluators

// Prompt versions are persisted on completed runs so baselines can be
// scoped to a specific judge prompt.
const (
	transcriptQualityPromptVersion = "v1"
	reasoningQualityPromptVersion  = "v1"
)

const transcriptQualitySystemPrompt = "You are an evaluation judge. Score the assistant's response on three dimensions:\n" +
	"- helpfulness (1-5): How well does the response address the user's needs?\n" +
	"- accuracy (1-5): Is the information factually correct and the code/solution valid?\n" +
	"- conciseness (1-5): Is the response appropriately concise without unnecessary verbosity?\n" +
	"\n" +
	"Respond with a JSON object inside a fenced code block:\n" +
	"```json\n" +
	`{"helpfulness": <1-5>, "accuracy": <1-5>, "conciseness": <1-5>, "rationale": "<brief explanation>"}` + "\n" +
	"```"

const reasoningQualitySystemPrompt = "You are an evaluation judge for AI reasoning quality. Score the thinking/reasoning block on three dimensions:\n" +
	"- depth (1-5): How thorough and detailed is the reasoning? Does it consider edge cases and alternatives?\n" +
	"- coherence (1-5): Is the reasoning logically structured and easy to follow?\n" +
	"- self_correction (1-5): Does the reasoning identify and correct mistakes or reconsider assumptions?\n" +
	"\n" +
	"Respond with a JSON object inside a fenced code block:\n" +
	"```json\n" +
	`{"depth": <1-5>, "coherence": <1-5>, "self_correction": <1-5>, "rationale": "<brief explanation>"}` + "\n" +
	"```"
