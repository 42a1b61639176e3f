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
	"errors"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"testing"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage"
)

// scriptedJudge returns canned responses in call order, cycling the
// last one when calls outnumber the script.
type scriptedJudge struct {
	responses []string
	err       error
	calls     int
	requests  []*judge.Request
}

func (j *scriptedJudge) Call(ctx context.Context, req *judge.Request) (*judge.Result, error) {
	j.calls++
	j.requests = append(j.requests, req)
	if j.err != nil {
		return nil, j.err
	}
	idx := min(j.calls-1, len(j.responses)-1)
	return &judge.Result{Text: j.responses[idx], Model: "test-model", Provider: "test"}, nil
}

func (j *scriptedJudge) ModelName(provider string) string { return "test-model" }
func (j *scriptedJudge) IsAnyConfigured() bool            { return true }

func addExchange(t *testing.T, store *storage.MemoryStorage, sessionID string, n int, ts int64) {
	t.Helper()
	ctx := context.Background()
	err := store.AddMessage(ctx, &evaluation.Message{
		SessionID: sessionID,
		SourceApp: "agent-a",
		Role:      "user",
		Content:   fmt.Sprintf("question %d", n),
		Timestamp: ts,
		UUID:      fmt.Sprintf("%s-user-%d", sessionID, n),
	})
	if err != nil {
		t.Fatalf("AddMessage(user) error = %v", err)
	}
	err = store.AddMessage(ctx, &evaluation.Message{
		SessionID: sessionID,
		SourceApp: "agent-a",
		Role:      "assistant",
		Content:   fmt.Sprintf("answer %d", n),
		Model:     "claude-sonnet-4-20250514",
		Timestamp: ts + 1,
		UUID:      fmt.Sprintf("%s-asst-%d", sessionID, n),
	})
	if err != nil {
		t.Fatalf("AddMessage(assistant) error = %v", err)
	}
}

func transcriptRunContext(store *storage.MemoryStorage, j evaluation.Judge) *evaluation.RunContext {
	return &evaluation.RunContext{
		Run:    &evaluation.Run{ID: 1},
		Events: store,
		Store:  store,
		Judge:  j,
		Rand:   rand.New(rand.NewSource(1)),
	}
}

func TestTranscriptQualityScoring(t *testing.T) {
	store := storage.NewMemoryStorage()
	addExchange(t, store, "s1", 1, 1000)

	j := &scriptedJudge{responses: []string{
		"```json\n{\"helpfulness\": 4, \"accuracy\": 5, \"conciseness\": 3, \"rationale\": \"solid answer\"}\n```",
	}}
	ev := &TranscriptQuality{}

	out, err := ev.Run(context.Background(), transcriptRunContext(store, j))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(out.Results))
	}

	res := out.Results[0]
	if want := 4.0; math.Abs(res.NumericScore-want) > 1e-9 {
		t.Errorf("NumericScore = %v, want %v (mean of 4, 5, 3)", res.NumericScore, want)
	}
	if res.Rationale != "solid answer" {
		t.Errorf("Rationale = %q, want the judge's rationale", res.Rationale)
	}
	if res.ItemID != "s1-asst-1" {
		t.Errorf("ItemID = %q, want the message uuid", res.ItemID)
	}
	if out.ModelName != "test-model" {
		t.Errorf("ModelName = %q, want test-model", out.ModelName)
	}
	if out.PromptVersion != transcriptQualityPromptVersion {
		t.Errorf("PromptVersion = %q", out.PromptVersion)
	}
	if got := out.Summary["avg_helpfulness"].(float64); got != 4.0 {
		t.Errorf("avg_helpfulness = %v, want 4", got)
	}
	if got := out.Summary["sample_count"].(int); got != 1 {
		t.Errorf("sample_count = %v, want 1", got)
	}

	// The judge prompt pairs the assistant message with its preceding
	// user message.
	if len(j.requests) != 1 {
		t.Fatalf("judge received %d requests, want 1", len(j.requests))
	}
	prompt := j.requests[0].Messages[0].Content
	if !strings.Contains(prompt, "question 1") || !strings.Contains(prompt, "answer 1") {
		t.Errorf("judge prompt missing transcript pair:\n%s", prompt)
	}
}

func TestTranscriptQualityParseFailureDegrades(t *testing.T) {
	store := storage.NewMemoryStorage()
	addExchange(t, store, "s1", 1, 1000)
	addExchange(t, store, "s1", 2, 2000)

	j := &scriptedJudge{responses: []string{
		"I refuse to answer in JSON.",
		"{\"helpfulness\": 2, \"accuracy\": 2, \"conciseness\": 2}",
	}}
	ev := &TranscriptQuality{}

	out, err := ev.Run(context.Background(), transcriptRunContext(store, j))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(out.Results))
	}
	if got := out.Summary["errors"].(int); got != 1 {
		t.Errorf("errors = %v, want 1 parse failure", got)
	}
	if got := out.Summary["sample_count"].(int); got != 1 {
		t.Errorf("sample_count = %v, want 1 scored item", got)
	}
}

func TestTranscriptQualityAPIErrorDegrades(t *testing.T) {
	store := storage.NewMemoryStorage()
	addExchange(t, store, "s1", 1, 1000)

	j := &scriptedJudge{err: errors.New("rate limited")}
	ev := &TranscriptQuality{}

	out, err := ev.Run(context.Background(), transcriptRunContext(store, j))
	if err != nil {
		t.Fatalf("Run() error = %v, item-level API errors must not fail the run", err)
	}
	if len(out.Results) != 1 {
		t.Fatalf("len(Results) = %d, want 1", len(out.Results))
	}
	res := out.Results[0]
	if res.NumericScore != 0 {
		t.Errorf("NumericScore = %v, want 0 for errored item", res.NumericScore)
	}
	if !strings.Contains(res.Rationale, "rate limited") {
		t.Errorf("Rationale = %q, want the API error", res.Rationale)
	}
}

func TestTranscriptQualityHonorsSampleLimit(t *testing.T) {
	store := storage.NewMemoryStorage()
	for i := 0; i < 20; i++ {
		addExchange(t, store, "s1", i, int64(1000*(i+1)))
	}

	j := &scriptedJudge{responses: []string{
		"{\"helpfulness\": 3, \"accuracy\": 3, \"conciseness\": 3}",
	}}
	ev := &TranscriptQuality{}
	rc := transcriptRunContext(store, j)
	rc.Options.SampleLimit = 5

	out, err := ev.Run(context.Background(), rc)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(out.Results) != 5 {
		t.Errorf("len(Results) = %d, want the sample limit of 5", len(out.Results))
	}
	if j.calls != 5 {
		t.Errorf("judge calls = %d, want 5", j.calls)
	}
}

func TestDecodeDimensionsRejectsMissingSentinel(t *testing.T) {
	if _, ok := decodeDimensions[transcriptScores](map[string]any{"accuracy": 5.0}, "helpfulness"); ok {
		t.Error("decodeDimensions() accepted object without sentinel dimension")
	}
	if _, ok := decodeDimensions[transcriptScores](map[string]any{"helpfulness": 0.0}, "helpfulness"); ok {
		t.Error("decodeDimensions() accepted out-of-range sentinel")
	}
	got, ok := decodeDimensions[transcriptScores](map[string]any{
		"helpfulness": 4.0, "accuracy": 5.0, "conciseness": 3.0,
	}, "helpfulness")
	if !ok || got.Accuracy != 5.0 {
		t.Errorf("decodeDimensions() = (%+v, %v), want decoded scores", got, ok)
	}
}
