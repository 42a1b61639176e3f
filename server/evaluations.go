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
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const (
	defaultRunListLimit = 50
	defaultResultLimit  = 100
)

// evaluationsAPI serves run submission, inspection and capability
// discovery.
type evaluationsAPI struct {
	store   Storage
	runner  *evaluation.Runner
	gateway *judge.Gateway
}

func (api *evaluationsAPI) Routes() Routes {
	return Routes{
		{"SubmitEvaluation", []string{http.MethodPost}, "/api/evaluations", api.submit},
		{"ListEvaluations", []string{http.MethodGet}, "/api/evaluations", api.list},
		{"EvaluationSummary", []string{http.MethodGet}, "/api/evaluations/summary", api.summary},
		{"EvaluationConfig", []string{http.MethodGet}, "/api/evaluations/config", api.config},
		{"GetEvaluation", []string{http.MethodGet}, "/api/evaluations/{id:[0-9]+}", api.get},
		{"EvaluationResults", []string{http.MethodGet}, "/api/evaluations/{id:[0-9]+}/results", api.results},
		{"DeleteEvaluation", []string{http.MethodDelete}, "/api/evaluations/{id:[0-9]+}", api.delete},
	}
}

func (api *evaluationsAPI) submit(w http.ResponseWriter, r *http.Request) {
	var req evaluation.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	run, err := api.runner.Submit(r.Context(), req)
	if err != nil {
		var verr *evaluation.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "create run")
		return
	}

	writeJSON(w, http.StatusAccepted, run)
}

func (api *evaluationsAPI) list(w http.ResponseWriter, r *http.Request) {
	q := evaluation.RunQuery{Limit: defaultRunListLimit}
	if t := r.URL.Query().Get("evaluator_type"); t != "" {
		q.EvaluatorType = evaluation.EvaluatorType(t)
	}
	if s := r.URL.Query().Get("status"); s != "" {
		q.Status = evaluation.RunStatus(s)
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		q.Limit = limit
	}

	runs, err := api.store.ListRuns(r.Context(), q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list runs")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (api *evaluationsAPI) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	run, err := api.store.GetRun(r.Context(), id)
	if errors.Is(err, evaluation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load run")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (api *evaluationsAPI) results(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	if _, err := api.store.GetRun(r.Context(), id); errors.Is(err, evaluation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	} else if err != nil {
		writeError(w, http.StatusInternalServerError, "load run")
		return
	}

	page := evaluation.ResultPage{Limit: defaultResultLimit}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, perr := strconv.Atoi(raw)
		if perr != nil || limit < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		page.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, perr := strconv.Atoi(raw)
		if perr != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		page.Offset = offset
	}

	results, err := api.store.ListResults(r.Context(), id, page)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load results")
		return
	}

	total, err := api.store.CountResults(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count results")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
		"total":   total,
		"limit":   page.Limit,
		"offset":  page.Offset,
	})
}

func (api *evaluationsAPI) summary(w http.ResponseWriter, r *http.Request) {
	summaries, err := api.store.TypeSummaries(r.Context(), api.runner.Registry().Types())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load summaries")
		return
	}
	writeJSON(w, http.StatusOK, summaries)
}

func (api *evaluationsAPI) config(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"evaluator_types": api.runner.Registry().Types(),
		"providers":       api.gateway.ProviderList(),
		"any_configured":  api.gateway.IsAnyConfigured(),
	})
}

func (api *evaluationsAPI) delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	err = api.store.DeleteRun(r.Context(), id)
	if errors.Is(err, evaluation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "delete run")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}
