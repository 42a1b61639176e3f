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
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const (
	transcriptDefaultSampleLimit = 50

	// Character budgets bounding judge cost per item.
	transcriptUserBudget      = 2000
	transcriptAssistantBudget = 3000

	judgeMaxTokens = 512

	noUserMessage = "[No preceding user message]"
)

// TranscriptQuality samples assistant messages stratified across
// sessions, pairs each with its preceding user message, and asks an LLM
// judge to score helpfulness, accuracy and conciseness (1-5 each). The
// numeric score is the mean of the three dimensions.
type TranscriptQuality struct {
	// Delay spaces out judge calls. Tests set it to zero.
	Delay time.Duration
}

// NewTranscriptQuality creates the transcript quality evaluator.
func NewTranscriptQuality() *TranscriptQuality {
	return &TranscriptQuality{Delay: judgeCallDelay}
}

func (e *TranscriptQuality) Type() evaluation.EvaluatorType { return evaluation.TypeTranscriptQuality }
func (e *TranscriptQuality) RequiresJudge() bool            { return true }

type transcriptScores struct {
	Helpfulness float64 `mapstructure:"helpfulness"`
	Accuracy    float64 `mapstructure:"accuracy"`
	Conciseness float64 `mapstructure:"conciseness"`
	Rationale   string  `mapstructure:"rationale"`
}

func (e *TranscriptQuality) Run(ctx context.Context, rc *evaluation.RunContext) (*evaluation.Output, error) {
	limit := rc.Options.SampleLimit
	if limit <= 0 {
		limit = transcriptDefaultSampleLimit
	}

	messages, err := rc.Events.AssistantMessages(ctx, evaluation.MessageQuery{
		Since:     sinceMillis(rc.Options.TimeWindowHours),
		SessionID: rc.Scope.SessionID,
		SourceApp: rc.Scope.SourceApp,
	})
	if err != nil {
		return nil, err
	}

	sampled := evaluation.StratifiedSample(messages,
		func(m evaluation.Message) string { return m.SessionID }, limit, rc.Rand)
	rc.Progress(0, len(sampled))

	results := make([]evaluation.Result, 0, len(sampled))
	var totalHelpfulness, totalAccuracy, totalConciseness float64
	scored := 0

	for i, msg := range sampled {
		userContent := noUserMessage
		if userMsg, err := rc.Events.PrecedingUserMessage(ctx, msg.SessionID, msg.Timestamp); err == nil && userMsg != nil {
			userContent = userMsg.Content
		}

		prompt := fmt.Sprintf("## User Message\n%s\n\n## Assistant Response\n%s",
			truncateText(userContent, transcriptUserBudget),
			truncateText(msg.Content, transcriptAssistantBudget))

		result := evaluation.Result{
			RunID:     rc.Run.ID,
			SessionID: msg.SessionID,
			SourceApp: msg.SourceApp,
			ItemType:  evaluation.ItemAssistantMessage,
			ItemID:    msg.UUID,
			Metadata: map[string]any{
				"message_snippet": snippet(msg.Content, 100),
				"model":           msg.Model,
			},
			CreatedAt: time.Now().UnixMilli(),
		}

		scores, text, callErr := e.judgeOne(ctx, rc, prompt)
		switch {
		case callErr != nil:
			// API error: record and continue to the next item.
			result.Scores = map[string]any{"error": callErr.Error()}
			result.Rationale = fmt.Sprintf("API error: %v", callErr)
		case scores == nil:
			result.Scores = map[string]any{"error": text}
			result.Rationale = text
		default:
			result.NumericScore = (scores.Helpfulness + scores.Accuracy + scores.Conciseness) / 3
			result.Scores = map[string]any{
				"helpfulness": scores.Helpfulness,
				"accuracy":    scores.Accuracy,
				"conciseness": scores.Conciseness,
			}
			result.Rationale = scores.Rationale
			totalHelpfulness += scores.Helpfulness
			totalAccuracy += scores.Accuracy
			totalConciseness += scores.Conciseness
			scored++
		}
		results = append(results, result)

		rc.Progress(i+1, len(sampled))

		if i < len(sampled)-1 {
			if err := sleep(ctx, e.Delay); err != nil {
				return nil, err
			}
		}
	}

	summary := map[string]any{
		"avg_helpfulness": avg(totalHelpfulness, scored),
		"avg_accuracy":    avg(totalAccuracy, scored),
		"avg_conciseness": avg(totalConciseness, scored),
		"sample_count":    scored,
		"errors":          len(results) - scored,
	}
	return &evaluation.Output{
		Results:       results,
		Summary:       summary,
		ModelName:     rc.Judge.ModelName(rc.Options.Provider),
		PromptVersion: transcriptQualityPromptVersion,
	}, nil
}

// judgeOne runs a single judge call and parses the dimensional scores.
// A nil score with a non-empty text describes a parse failure.
func (e *TranscriptQuality) judgeOne(ctx context.Context, rc *evaluation.RunContext, prompt string) (*transcriptScores, string, error) {
	resp, err := rc.Judge.Call(ctx, &judge.Request{
		System:      transcriptQualitySystemPrompt,
		Messages:    []judge.Message{{Role: judge.RoleUser, Content: prompt}},
		MaxTokens:   judgeMaxTokens,
		Temperature: rc.Options.Temperature,
		Provider:    rc.Options.Provider,
	})
	if err != nil {
		return nil, "", err
	}

	parsed, err := judge.ParseResponse(resp.Text)
	if err != nil {
		return nil, err.Error(), nil
	}
	scores, ok := decodeDimensions[transcriptScores](parsed, "helpfulness")
	if !ok {
		return nil, "judge response missing score dimensions", nil
	}
	return scores, "", nil
}

// decodeDimensions maps a parsed judge object onto a typed score
// struct, requiring the sentinel dimension to be a positive number.
func decodeDimensions[T any](parsed map[string]any, sentinel string) (*T, bool) {
	if v, ok := parsed[sentinel].(float64); !ok || v < 1 {
		return nil, false
	}
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, false
	}
	if err := dec.Decode(parsed); err != nil {
		return nil, false
	}
	return &out, true
}

func avg(total float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return total / float64(n)
}
