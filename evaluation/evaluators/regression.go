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
	"sort"
	"time"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

const (
	regressionDefaultWindowHours = 24

	// The baseline window is fixed at the 7 days immediately preceding
	// the current window.
	regressionBaselineWindow = 7 * 24 * time.Hour

	// Minimum sample sizes per metric; below these the metric is
	// silently skipped, never an error.
	regressionMinBaseline = 10
	regressionMinCurrent  = 5

	regressionZThreshold = 2.0
)

// regressionMetric maps a named metric onto one prior evaluator's
// numeric score or one dimension of its score breakdown.
type regressionMetric struct {
	Name   string
	Source evaluation.EvaluatorType

	// Field is "numeric_score" or a scores_json dimension key.
	Field string

	// Proportion selects the two-proportion z-test instead of the
	// standard z-score.
	Proportion bool
}

// regressionMetrics is the fixed registry of checked metrics, in
// deterministic order.
var regressionMetrics = []regressionMetric{
	{Name: "tool_success_rate", Source: evaluation.TypeToolSuccess, Field: "numeric_score", Proportion: true},
	{Name: "avg_helpfulness", Source: evaluation.TypeTranscriptQuality, Field: "helpfulness"},
	{Name: "avg_accuracy", Source: evaluation.TypeTranscriptQuality, Field: "accuracy"},
	{Name: "avg_conciseness", Source: evaluation.TypeTranscriptQuality, Field: "conciseness"},
	{Name: "avg_depth", Source: evaluation.TypeReasoningQuality, Field: "depth"},
	{Name: "avg_coherence", Source: evaluation.TypeReasoningQuality, Field: "coherence"},
	{Name: "avg_self_correction", Source: evaluation.TypeReasoningQuality, Field: "self_correction"},
}

// Alert flags a statistically significant shift in one metric.
type Alert struct {
	Metric       string  `json:"metric"`
	BaselineMean float64 `json:"baseline_mean"`
	CurrentMean  float64 `json:"current_mean"`
	ZScore       float64 `json:"z_score"`
	EffectSize   float64 `json:"effect_size"`

	// Direction is "degraded" (z < -2) or "improved" (z > 2).
	Direction string `json:"direction"`
}

// Regression compares each registered metric's current window (default
// last 24h) against the 7 days preceding it, flagging |z| > 2.0. Every
// checked metric writes a fresh baseline snapshot so future runs have a
// growing historical ledger. It produces no per-item results; the
// summary is its entire output.
type Regression struct{}

// NewRegression creates the regression evaluator.
func NewRegression() *Regression { return &Regression{} }

func (e *Regression) Type() evaluation.EvaluatorType { return evaluation.TypeRegression }
func (e *Regression) RequiresJudge() bool            { return false }

func (e *Regression) Run(ctx context.Context, rc *evaluation.RunContext) (*evaluation.Output, error) {
	now := time.Now().UnixMilli()
	windowHours := rc.Options.TimeWindowHours
	if windowHours <= 0 {
		windowHours = regressionDefaultWindowHours
	}
	currentStart := now - int64(windowHours)*time.Hour.Milliseconds()
	baselineEnd := currentStart
	baselineStart := baselineEnd - regressionBaselineWindow.Milliseconds()

	alerts := []Alert{}
	metricsChecked := 0

	rc.Progress(0, len(regressionMetrics))

	for i, metric := range regressionMetrics {
		baselineValues, err := e.windowValues(ctx, rc, metric, baselineStart, baselineEnd)
		if err != nil {
			return nil, err
		}
		currentValues, err := e.windowValues(ctx, rc, metric, currentStart, 0)
		if err != nil {
			return nil, err
		}

		// Insufficient data is a normal skip, not an error.
		if len(baselineValues) < regressionMinBaseline || len(currentValues) < regressionMinCurrent {
			rc.Progress(i+1, len(regressionMetrics))
			continue
		}
		metricsChecked++

		baselineMean := mean(baselineValues)
		currentMean := mean(currentValues)
		baselineStddev := stddev(baselineValues, baselineMean)

		var z float64
		if metric.Proportion {
			z = proportionZ(baselineMean, currentMean, len(baselineValues), len(currentValues))
		} else if baselineStddev > 0 {
			z = (currentMean - baselineMean) / baselineStddev
		}

		if math.Abs(z) > regressionZThreshold {
			direction := "improved"
			if z < 0 {
				direction = "degraded"
			}
			alerts = append(alerts, Alert{
				Metric:       metric.Name,
				BaselineMean: baselineMean,
				CurrentMean:  currentMean,
				ZScore:       z,
				EffectSize:   currentMean - baselineMean,
				Direction:    direction,
			})
		}

		sortedBaseline := append([]float64(nil), baselineValues...)
		sort.Float64s(sortedBaseline)
		if err := rc.Store.InsertBaseline(ctx, &evaluation.Baseline{
			EvaluatorType: metric.Source,
			MetricName:    metric.Name,
			WindowStart:   currentStart,
			WindowEnd:     now,
			SampleCount:   len(currentValues),
			MeanScore:     currentMean,
			StddevScore:   stddev(currentValues, currentMean),
			Percentiles:   percentiles(sortedBaseline),
			CreatedAt:     now,
		}); err != nil {
			return nil, err
		}

		rc.Progress(i+1, len(regressionMetrics))
	}

	summary := map[string]any{
		"alerts":          alerts,
		"metrics_checked": metricsChecked,
		"metrics_flagged": len(alerts),
		"baseline_window": map[string]any{"start": baselineStart, "end": baselineEnd},
		"current_window":  map[string]any{"start": currentStart, "end": now},
	}
	return &evaluation.Output{Results: []evaluation.Result{}, Summary: summary}, nil
}

// windowValues collects the metric's values from all completed source
// runs inside [since, until). A zero until leaves the window open.
func (e *Regression) windowValues(ctx context.Context, rc *evaluation.RunContext, metric regressionMetric, since, until int64) ([]float64, error) {
	runIDs, err := rc.Store.CompletedRunIDs(ctx, metric.Source, evaluation.CompletedRunQuery{
		Since: since,
		Until: until,
	})
	if err != nil || len(runIDs) == 0 {
		return nil, err
	}

	scores, err := rc.Store.ResultScores(ctx, runIDs)
	if err != nil {
		return nil, err
	}

	values := make([]float64, 0, len(scores))
	for _, s := range scores {
		if metric.Field == "numeric_score" {
			values = append(values, s.NumericScore)
			continue
		}
		// Dimension metrics skip results without the dimension, e.g.
		// zero-scored error records.
		if v, ok := s.Scores[metric.Field].(float64); ok {
			values = append(values, v)
		}
	}
	return values, nil
}

// proportionZ is a two-proportion z-test with pooled variance.
func proportionZ(p1, p2 float64, n1, n2 int) float64 {
	pooled := (p1*float64(n1) + p2*float64(n2)) / float64(n1+n2)
	se := math.Sqrt(pooled * (1 - pooled) * (1/float64(n1) + 1/float64(n2)))
	if se == 0 {
		return 0
	}
	return (p2 - p1) / se
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// stddev is the sample standard deviation, zero for fewer than two
// values.
func stddev(values []float64, mean float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += (v - mean) * (v - mean)
	}
	return math.Sqrt(sum / float64(len(values)-1))
}

// percentiles returns the p25/p50/p75 breakdown of sorted values using
// the nearest-rank method.
func percentiles(sorted []float64) map[string]float64 {
	if len(sorted) == 0 {
		return nil
	}
	at := func(pct float64) float64 {
		idx := int(math.Ceil(pct/100*float64(len(sorted)))) - 1
		if idx < 0 {
			idx = 0
		}
		return sorted[idx]
	}
	return map[string]float64{"p25": at(25), "p50": at(50), "p75": at(75)}
}
