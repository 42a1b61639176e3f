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

package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

const defaultAnalysisListLimit = 50

// analysisAPI serves the session analyzer endpoints.
type analysisAPI struct {
	store    Storage
	analyzer *analysis.Analyzer
}

func (api *analysisAPI) Routes() Routes {
	return Routes{
		{"AnalyzeSession", []string{http.MethodPost}, "/api/sessions/{id}/analyze", api.analyze},
		{"ListAnalyses", []string{http.MethodGet}, "/api/sessions/analyses", api.listAnalyses},
		{"Insights", []string{http.MethodGet}, "/api/insights", api.insights},
	}
}

// analyze kicks off background analysis for a session. The response
// reports the current record when one already exists.
func (api *analysisAPI) analyze(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	sourceApp := r.URL.Query().Get("source_app")

	existing, err := api.store.GetAnalysis(r.Context(), sessionID)
	if err != nil && !errors.Is(err, evaluation.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "load analysis")
		return
	}
	if existing != nil && (existing.Status == analysis.StatusCompleted || existing.Status == analysis.StatusRunning) {
		writeJSON(w, http.StatusOK, existing)
		return
	}

	go func() {
		if err := api.analyzer.AnalyzeSession(context.Background(), sessionID, sourceApp); err != nil {
			log.Printf("[server] session analysis for %s: %v", sessionID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"session_id": sessionID,
		"status":     "started",
	})
}

func (api *analysisAPI) listAnalyses(w http.ResponseWriter, r *http.Request) {
	q := analysis.AnalysisQuery{Limit: defaultAnalysisListLimit}
	if s := r.URL.Query().Get("status"); s != "" {
		q.Status = s
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	analyses, err := api.store.ListAnalyses(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list analyses")
		return
	}
	writeJSON(w, http.StatusOK, analyses)
}

func (api *analysisAPI) insights(w http.ResponseWriter, r *http.Request) {
	insights, err := api.analyzer.Insights(r.Context())
	switch {
	case errors.Is(err, analysis.ErrNoProvider):
		writeJSON(w, http.StatusOK, map[string]string{
			"error":   "no_provider",
			"message": "No LLM provider configured. Set an API key to enable AI insights.",
		})
	case errors.Is(err, analysis.ErrInsufficientData):
		writeJSON(w, http.StatusOK, map[string]string{
			"error":   "insufficient_data",
			"message": err.Error(),
		})
	case err != nil:
		writeError(w, http.StatusInternalServerError, "generate insights")
	default:
		writeJSON(w, http.StatusOK, insights)
	}
}
