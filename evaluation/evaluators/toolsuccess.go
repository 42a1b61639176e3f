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
	"strconv"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

const toolSuccessProgressEvery = 50

// ToolSuccess deterministically classifies every recorded tool
// invocation in scope as success (PostToolUse) or failure and
// aggregates per-tool and per-agent rates. No sampling, no judge.
type ToolSuccess struct{}

// NewToolSuccess creates the tool success evaluator.
func NewToolSuccess() *ToolSuccess { return &ToolSuccess{} }

func (e *ToolSuccess) Type() evaluation.EvaluatorType { return evaluation.TypeToolSuccess }
func (e *ToolSuccess) RequiresJudge() bool            { return false }

type successCounts struct {
	Success int     `json:"success"`
	Failure int     `json:"failure"`
	Rate    float64 `json:"rate"`
}

func (e *ToolSuccess) Run(ctx context.Context, rc *evaluation.RunContext) (*evaluation.Output, error) {
	events, err := rc.Events.ToolEvents(ctx, evaluation.ToolEventQuery{
		Since:      sinceMillis(rc.Options.TimeWindowHours),
		SessionID:  rc.Scope.SessionID,
		SessionIDs: rc.Scope.SessionIDs,
		SourceApp:  rc.Scope.SourceApp,
	})
	if err != nil {
		return nil, err
	}

	rc.Progress(0, len(events))

	results := make([]evaluation.Result, 0, len(events))
	byTool := map[string]*successCounts{}
	byAgent := map[string]*successCounts{}
	totalSuccess := 0

	for i, ev := range events {
		isSuccess := ev.HookEventType == evaluation.HookPostToolUse
		toolName := toolNameFromPayload(ev.Payload)
		agentKey := ev.SourceApp + ":" + snippet(ev.SessionID, 8)

		bump(byTool, toolName, isSuccess)
		bump(byAgent, agentKey, isSuccess)

		score := 0.0
		if isSuccess {
			score = 1.0
			totalSuccess++
		}
		results = append(results, evaluation.Result{
			RunID:        rc.Run.ID,
			SessionID:    ev.SessionID,
			SourceApp:    ev.SourceApp,
			ItemType:     evaluation.ItemToolInvocation,
			ItemID:       strconv.FormatInt(ev.ID, 10),
			NumericScore: score,
			Scores:       map[string]any{"success": isSuccess},
			Metadata: map[string]any{
				"tool_name":       toolName,
				"hook_event_type": ev.HookEventType,
			},
			CreatedAt: time.Now().UnixMilli(),
		})

		if (i+1)%toolSuccessProgressEvery == 0 || i == len(events)-1 {
			rc.Progress(i+1, len(events))
		}
	}
	if len(events) == 0 {
		rc.Progress(0, 0)
	}

	overallRate := 0.0
	if len(results) > 0 {
		overallRate = float64(totalSuccess) / float64(len(results))
	}
	finalizeRates(byTool)
	finalizeRates(byAgent)

	summary := map[string]any{
		"overall_rate":  overallRate,
		"total_success": totalSuccess,
		"total_failure": len(results) - totalSuccess,
		"total_events":  len(results),
		"by_tool":       byTool,
		"by_agent":      byAgent,
	}
	return &evaluation.Output{Results: results, Summary: summary}, nil
}

func toolNameFromPayload(payload map[string]any) string {
	if name, ok := payload["tool_name"].(string); ok && name != "" {
		return name
	}
	if name, ok := payload["tool"].(string); ok && name != "" {
		return name
	}
	return "unknown"
}

func bump(m map[string]*successCounts, key string, success bool) {
	c := m[key]
	if c == nil {
		c = &successCounts{}
		m[key] = c
	}
	if success {
		c.Success++
	} else {
		c.Failure++
	}
}

func finalizeRates(m map[string]*successCounts) {
	for _, c := range m {
		if total := c.Success + c.Failure; total > 0 {
			c.Rate = float64(c.Success) / float64(total)
		}
	}
}
