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
	"strings"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const (
	reasoningDefaultSampleLimit = 30

	reasoningUserBudget     = 1500
	reasoningThinkingBudget = 3000
	reasoningResponseBudget = 1500
)

// ReasoningQuality samples assistant messages that carry a
// reasoning/thinking block and asks an LLM judge to score depth,
// coherence and self_correction (1-5 each). The numeric score is the
// mean of the three dimensions.
type ReasoningQuality struct {
	// Delay spaces out judge calls. Tests set it to zero.
	Delay time.Duration
}

// NewReasoningQuality creates the reasoning quality evaluator.
func NewReasoningQuality() *ReasoningQuality {
	return &ReasoningQuality{Delay: judgeCallDelay}
}

func (e *ReasoningQuality) Type() evaluation.EvaluatorType { return evaluation.TypeReasoningQuality }
func (e *ReasoningQuality) RequiresJudge() bool            { return true }

type reasoningScores struct {
	Depth          float64 `mapstructure:"depth"`
	Coherence      float64 `mapstructure:"coherence"`
	SelfCorrection float64 `mapstructure:"self_correction"`
	Rationale      string  `mapstructure:"rationale"`
}

func (e *ReasoningQuality) Run(ctx context.Context, rc *evaluation.RunContext) (*evaluation.Output, error) {
	limit := rc.Options.SampleLimit
	if limit <= 0 {
		limit = reasoningDefaultSampleLimit
	}

	messages, err := rc.Events.AssistantMessages(ctx, evaluation.MessageQuery{
		Since:        sinceMillis(rc.Options.TimeWindowHours),
		SessionID:    rc.Scope.SessionID,
		SourceApp:    rc.Scope.SourceApp,
		WithThinking: true,
	})
	if err != nil {
		return nil, err
	}

	sampled := evaluation.StratifiedSample(messages,
		func(m evaluation.Message) string { return m.SessionID }, limit, rc.Rand)
	rc.Progress(0, len(sampled))

	results := make([]evaluation.Result, 0, len(sampled))
	var totalDepth, totalCoherence, totalSelfCorrection float64
	scored := 0

	for i, msg := range sampled {
		userContent := noUserMessage
		if userMsg, err := rc.Events.PrecedingUserMessage(ctx, msg.SessionID, msg.Timestamp); err == nil && userMsg != nil {
			userContent = userMsg.Content
		}

		prompt := fmt.Sprintf("## User Request\n%s\n\n## Thinking/Reasoning Block\n%s\n\n## Final Response\n%s",
			truncateText(userContent, reasoningUserBudget),
			truncateText(msg.Thinking, reasoningThinkingBudget),
			truncateText(msg.Content, reasoningResponseBudget))

		thinkingTokens := len(strings.Fields(msg.Thinking))
		result := evaluation.Result{
			RunID:     rc.Run.ID,
			SessionID: msg.SessionID,
			SourceApp: msg.SourceApp,
			ItemType:  evaluation.ItemThinkingBlock,
			ItemID:    msg.UUID,
			Metadata: map[string]any{
				"thinking_token_count": thinkingTokens,
				"message_snippet":      snippet(msg.Content, 100),
				"model":                msg.Model,
			},
			CreatedAt: time.Now().UnixMilli(),
		}

		scores, text, callErr := e.judgeOne(ctx, rc, prompt)
		switch {
		case callErr != nil:
			result.Scores = map[string]any{"error": callErr.Error()}
			result.Rationale = fmt.Sprintf("API error: %v", callErr)
		case scores == nil:
			result.Scores = map[string]any{"error": text}
			result.Rationale = text
		default:
			result.NumericScore = (scores.Depth + scores.Coherence + scores.SelfCorrection) / 3
			result.Scores = map[string]any{
				"depth":           scores.Depth,
				"coherence":       scores.Coherence,
				"self_correction": scores.SelfCorrection,
			}
			result.Rationale = scores.Rationale
			totalDepth += scores.Depth
			totalCoherence += scores.Coherence
			totalSelfCorrection += scores.SelfCorrection
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
		"avg_depth":           avg(totalDepth, scored),
		"avg_coherence":       avg(totalCoherence, scored),
		"avg_self_correction": avg(totalSelfCorrection, scored),
		"sample_count":        scored,
		"errors":              len(results) - scored,
	}
	return &evaluation.Output{
		Results:       results,
		Summary:       summary,
		ModelName:     rc.Judge.ModelName(rc.Options.Provider),
		PromptVersion: reasoningQualityPromptVersion,
	}, nil
}

func (e *ReasoningQuality) judgeOne(ctx context.Context, rc *evaluation.RunContext, prompt string) (*reasoningScores, string, error) {
	resp, err := rc.Judge.Call(ctx, &judge.Request{
		System:      reasoningQualitySystemPrompt,
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
	scores, ok := decodeDimensions[reasoningScores](parsed, "depth")
	if !ok {
		return nil, "judge response missing score dimensions", nil
	}
	return scores, "", nil
}
