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

import (
	"context"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage"
)

func TestReasoningQualityOnlyScoresThinkingMessages(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()

	messages := []*evaluation.Message{
		{
			SessionID: "s1", SourceApp: "agent-a", Role: "assistant",
			Content: "plain answer", Timestamp: 1000, UUID: "u-1",
		},
		{
			SessionID: "s1", SourceApp: "agent-a", Role: "assistant",
			Content: "considered answer", Thinking: "let me think this through step by step",
			Timestamp: 2000, UUID: "u-2",
		},
	}
	for _, msg := range messages {
		if err := store.AddMessage(ctx, msg); err != nil {
			t.Fatalf("AddMessage() error = %v", err)
		}
	}

	j := &scriptedJudge{responses: []string{
		"{\"depth\": 4, \"coherence\": 5, \"self_correction\": 2, \"rationale\": \"methodical\"}",
	}}
	ev := &ReasoningQuality{}
	rc := &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 3},
		Events: store,
		Store:  store,
		Judge:  j,
		Rand:   rand.New(rand.NewSource(1)),
	}

	out, err := ev.Run(ctx, rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("len(Results) = %d, want only the thinking message", len(out.Results))
	}

	res := out.Results[0]
	if res.ItemID != "u-2" {
		t.Errorf("ItemID = %q, want u-2", res.ItemID)
	}
	if res.ItemType != evaluation.ItemThinkingBlock {
		t.Errorf("ItemType = %q", res.ItemType)
	}
	if want := 11.0 / 3.0; math.Abs(res.NumericScore-want) > 1e-9 {
		t.Errorf("NumericScore = %v, want %v", res.NumericScore, want)
	}
	if got := res.Metadata["thinking_token_count"].(int); got != 8 {
		t.Errorf("thinking_token_count = %v, want 8", got)
	}
	if got := out.Summary["avg_depth"].(float64); got != 4.0 {
		t.Errorf("avg_depth = %v, want 4", got)
	}
	if out.PromptVersion != reasoningQualityPromptVersion {
		t.Errorf("PromptVersion = %q", out.PromptVersion)
	}

	prompt := j.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "step by step") || !strings.Contains(prompt, "considered answer") {
		t.Errorf("judge prompt missing thinking block or response:\n%s", prompt)
	}
}
