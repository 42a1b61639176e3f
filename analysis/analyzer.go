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

package analysis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mitchellh/mapstructure"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const (
	promptVersion = "session-v1"

	// Cross-session syntheses are reused for 30 minutes before a fresh
	// one is generated.
	crossSessionTTL = 30 * time.Minute

	insightKeyLatest = "latest"

	analysisMaxTokens  = 1024
	synthesisMaxTokens = 4096

	// minSessionMessages is the threshold below which a session is
	// marked complete without calling the model.
	minSessionMessages = 2
)

const sessionAnalysisSystem = `You are an AI session analyst. Analyze the provided coding session transcript excerpt and produce a structured JSON assessment.

Respond with ONLY a JSON object (no markdown fences, no explanation) with these fields:
{
  "task_summary": "one-sentence description of what the session accomplished",
  "outcome": "success|partial|failure|abandoned|unclear",
  "complexity": "trivial|simple|moderate|complex|highly_complex",
  "tools_used": ["list of tools mentioned, e.g. Read, Edit, Bash"],
  "key_decisions": ["up to 3 key decisions or turning points"],
  "issues": ["up to 3 problems or errors encountered"],
  "quality_score": 1-5,
  "tags": ["up to 5 topic tags like refactoring, debugging, feature, docs"],
  "duration_assessment": "quick|moderate|lengthy"
}

Score guide: 1=poor (many errors, wrong approach), 3=adequate (completed but with issues), 5=excellent (clean, efficient, correct).`

const crossSessionSystem = `You are an AI productivity analyst. Given summaries of multiple coding sessions, synthesize patterns and insights.

Respond with ONLY a JSON object (no markdown fences, no explanation):
{
  "overall_summary": "2-3 sentence overview of the sessions",
  "common_patterns": ["up to 5 recurring patterns"],
  "top_tools": ["most frequently used tools"],
  "common_issues": ["up to 4 recurring problems"],
  "quality_distribution": {"high": 0, "medium": 0, "low": 0},
  "task_categories": {"category": count},
  "outcome_distribution": {"success": 0, "partial": 0, "failure": 0},
  "recommendations": ["up to 4 actionable recommendations"],
  "productivity_assessment": "one sentence overall assessment"
}

For quality_distribution: high=4-5, medium=3, low=1-2.`

// Analyzer produces per-session assessments and cross-session insights
// through the judge gateway.
type Analyzer struct {
	store Store
	judge evaluation.Judge

	// insights memoizes synthesis output so repeated dashboard loads do
	// not burn model tokens.
	insights *expirable.LRU[string, map[string]any]
}

// NewAnalyzer creates an analyzer backed by the given store and judge.
func NewAnalyzer(store Store, j evaluation.Judge) *Analyzer {
	return &Analyzer{
		store:    store,
		judge:    j,
		insights: expirable.NewLRU[string, map[string]any](4, nil, crossSessionTTL),
	}
}

// AnalyzeSession analyzes one session's transcript and persists the
// outcome. Already-completed and in-flight sessions are skipped, as are
// all sessions when no provider is configured.
func (a *Analyzer) AnalyzeSession(ctx context.Context, sessionID, sourceApp string) error {
	if a.judge == nil || !a.judge.IsAnyConfigured() {
		log.Printf("[session-analyzer] skipping %s: no LLM provider configured", shortID(sessionID))
		return nil
	}

	existing, err := a.store.GetAnalysis(ctx, sessionID)
	if err != nil && !errors.Is(err, evaluation.ErrNotFound) {
		return err
	}
	if existing != nil && (existing.Status == StatusCompleted || existing.Status == StatusRunning) {
		return nil
	}

	messages, err := a.store.SessionMessages(ctx, sessionID)
	if err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if len(messages) < minSessionMessages {
		return a.store.UpsertAnalysis(ctx, &SessionAnalysis{
			SessionID:    sessionID,
			SourceApp:    sourceApp,
			Status:       StatusCompleted,
			Summary:      "Session too short for analysis",
			MessageCount: len(messages),
			CreatedAt:    now,
			CompletedAt:  now,
		})
	}

	record := &SessionAnalysis{
		SessionID:    sessionID,
		SourceApp:    sourceApp,
		Status:       StatusRunning,
		MessageCount: len(messages),
		CreatedAt:    now,
	}
	if err := a.store.UpsertAnalysis(ctx, record); err != nil {
		return err
	}

	excerpt := buildTranscriptExcerpt(messages)
	temperature := 0.0
	result, err := a.judge.Call(ctx, &judge.Request{
		System: sessionAnalysisSystem,
		Messages: []judge.Message{
			{Role: judge.RoleUser, Content: "Analyze this session transcript:\n\n" + excerpt},
		},
		MaxTokens:   analysisMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		record.Status = StatusFailed
		record.ErrorMessage = err.Error()
		record.CompletedAt = time.Now().UnixMilli()
		if uerr := a.store.UpsertAnalysis(ctx, record); uerr != nil {
			return uerr
		}
		log.Printf("[session-analyzer] failed for %s: %v", shortID(sessionID), err)
		return err
	}

	parsed, perr := judge.ParseResponse(result.Text)
	if perr != nil {
		record.Status = StatusFailed
		record.ErrorMessage = perr.Error()
		record.ModelName = result.Model
		record.CompletedAt = time.Now().UnixMilli()
		return a.store.UpsertAnalysis(ctx, record)
	}

	record.Status = StatusCompleted
	record.Assessment = parsed
	record.Summary = decodeAssessment(parsed).TaskSummary
	record.ModelName = result.Model
	record.PromptVersion = promptVersion
	record.TokensAnalyzed = result.InputTokens + result.OutputTokens
	record.CompletedAt = time.Now().UnixMilli()
	if err := a.store.UpsertAnalysis(ctx, record); err != nil {
		return err
	}

	log.Printf("[session-analyzer] completed analysis for %s: %s", shortID(sessionID), record.Summary)
	return nil
}

// Insights returns the cross-session synthesis, reusing a cached or
// persisted snapshot younger than the TTL.
func (a *Analyzer) Insights(ctx context.Context) (map[string]any, error) {
	if cached, ok := a.insights.Get(insightKeyLatest); ok {
		return cached, nil
	}

	stored, err := a.store.GetInsight(ctx, insightKeyLatest)
	if err != nil && !errors.Is(err, evaluation.ErrNotFound) {
		return nil, err
	}
	if stored != nil && time.Since(time.UnixMilli(stored.CreatedAt)) < crossSessionTTL {
		a.insights.Add(insightKeyLatest, stored.Analysis)
		return stored.Analysis, nil
	}

	if a.judge == nil || !a.judge.IsAnyConfigured() {
		return nil, ErrNoProvider
	}

	analyses, err := a.store.ListAnalyses(ctx, AnalysisQuery{Status: StatusCompleted, Limit: 50})
	if err != nil {
		return nil, err
	}
	withData := analyses[:0:0]
	for _, an := range analyses {
		if an.Assessment != nil {
			withData = append(withData, an)
		}
	}
	if len(withData) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 analyzed sessions, have %d", ErrInsufficientData, len(withData))
	}

	var lines []string
	for i, an := range withData {
		data := decodeAssessment(an.Assessment)
		lines = append(lines, fmt.Sprintf(
			"Session %d (%s:%s): %s | outcome=%s | complexity=%s | quality=%g/5 | tools=[%s] | tags=[%s]",
			i+1, an.SourceApp, shortID(an.SessionID),
			orDefault(data.TaskSummary, "No summary"), data.Outcome, data.Complexity,
			data.QualityScore, strings.Join(data.ToolsUsed, ","), strings.Join(data.Tags, ",")))
	}

	temperature := 0.0
	result, err := a.judge.Call(ctx, &judge.Request{
		System: crossSessionSystem,
		Messages: []judge.Message{
			{Role: judge.RoleUser, Content: fmt.Sprintf(
				"Synthesize insights from these %d coding sessions:\n\n%s",
				len(withData), strings.Join(lines, "\n"))},
		},
		MaxTokens:   synthesisMaxTokens,
		Temperature: &temperature,
	})
	if err != nil {
		log.Printf("[session-analyzer] cross-session synthesis failed: %v", err)
		return nil, err
	}

	parsed, perr := judge.ParseResponse(result.Text)
	if perr != nil {
		return nil, perr
	}

	if err := a.store.UpsertInsight(ctx, &Insight{
		Key:          insightKeyLatest,
		Analysis:     parsed,
		ModelName:    result.Model,
		SessionCount: len(withData),
		CreatedAt:    time.Now().UnixMilli(),
	}); err != nil {
		return nil, err
	}

	a.insights.Add(insightKeyLatest, parsed)
	return parsed, nil
}

// buildTranscriptExcerpt compresses a transcript into a bounded excerpt:
// the first user message, up to three sampled middle messages, and the
// last six messages, inside a 6000 character budget.
func buildTranscriptExcerpt(messages []evaluation.Message) string {
	const (
		totalBudget   = 6000
		firstUserMax  = 800
		recentMax     = 600
		middleMax     = 400
		middleSamples = 3
		recentCount   = 6
	)

	var parts []string
	used := 0

	for _, m := range messages {
		if m.Role == "user" {
			text := "[FIRST USER MESSAGE]\n" + clip(m.Content, firstUserMax)
			parts = append(parts, text)
			used += len(text)
			break
		}
	}

	recent := messages
	if len(recent) > recentCount {
		recent = recent[len(recent)-recentCount:]
	}
	recentParts := make([]string, 0, len(recent))
	for _, m := range recent {
		recentParts = append(recentParts, fmt.Sprintf("[%s]\n%s", strings.ToUpper(m.Role), clip(m.Content, recentMax)))
	}
	recentText := "\n---\n[RECENT MESSAGES]\n" + strings.Join(recentParts, "\n\n")
	used += len(recentText)
	parts = append(parts, recentText)

	if len(messages) > recentCount+2 && used < totalBudget {
		middleStart := 1
		middleEnd := len(messages) - recentCount
		if middleEnd > middleStart {
			step := (middleEnd - middleStart) / middleSamples
			if step < 1 {
				step = 1
			}
			var sampled []string
			for i := middleStart; i < middleEnd && len(sampled) < middleSamples; i += step {
				remaining := totalBudget - used
				if remaining < 100 {
					break
				}
				maxLen := middleMax
				if remaining < maxLen {
					maxLen = remaining
				}
				text := fmt.Sprintf("[%s - mid]\n%s", strings.ToUpper(messages[i].Role), clip(messages[i].Content, maxLen))
				sampled = append(sampled, text)
				used += len(text)
			}
			if len(sampled) > 0 {
				middleText := "\n---\n[MIDDLE SAMPLES]\n" + strings.Join(sampled, "\n\n")
				// Middle samples sit between the opening message and the
				// recent block.
				idx := len(parts) - 1
				parts = append(parts[:idx], append([]string{middleText}, parts[idx:]...)...)
			}
		}
	}

	return strings.Join(parts, "\n")
}

func decodeAssessment(parsed map[string]any) Assessment {
	var out Assessment
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
	})
	if err == nil {
		_ = dec.Decode(parsed)
	}
	return out
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
