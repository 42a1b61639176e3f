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
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

const defaultRecentLimit = 300

// eventsAPI serves hook event and transcript ingest plus the event
// feed queries.
type eventsAPI struct {
	store    Storage
	hub      *Hub
	analyzer *analysis.Analyzer
}

func (api *eventsAPI) Routes() Routes {
	return Routes{
		{"PostEvent", []string{http.MethodPost}, "/events", api.postEvent},
		{"RecentEvents", []string{http.MethodGet}, "/events/recent", api.recentEvents},
		{"FilterOptions", []string{http.MethodGet}, "/events/filter-options", api.filterOptions},
		{"PostMessages", []string{http.MethodPost}, "/messages", api.postMessages},
	}
}

func (api *eventsAPI) postEvent(w http.ResponseWriter, r *http.Request) {
	var ev evaluation.ToolEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if ev.SourceApp == "" || ev.SessionID == "" || ev.HookEventType == "" || ev.Payload == nil {
		writeError(w, http.StatusBadRequest, "missing required fields")
		return
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	if err := api.store.AddToolEvent(r.Context(), &ev); err != nil {
		writeError(w, http.StatusInternalServerError, "store event")
		return
	}

	api.hub.BroadcastEvent(&ev)

	// Session end is the trigger for background analysis.
	if api.analyzer != nil && ev.HookEventType == "Stop" {
		go func(sessionID, sourceApp string) {
			if err := api.analyzer.AnalyzeSession(context.Background(), sessionID, sourceApp); err != nil {
				log.Printf("[server] session analysis for %s: %v", sessionID, err)
			}
		}(ev.SessionID, ev.SourceApp)
	}

	writeJSON(w, http.StatusOK, &ev)
}

func (api *eventsAPI) recentEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultRecentLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := api.store.RecentEvents(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (api *eventsAPI) filterOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := api.store.FilterOptions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "load filter options")
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

// postMessages ingests a batch of transcript messages. Duplicate uuids
// are skipped, so overlapping batches are safe to resend.
func (api *eventsAPI) postMessages(w http.ResponseWriter, r *http.Request) {
	var messages []evaluation.Message
	if err := json.NewDecoder(r.Body).Decode(&messages); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	stored := 0
	for i := range messages {
		msg := &messages[i]
		if msg.SessionID == "" || msg.Role == "" {
			writeError(w, http.StatusBadRequest, "messages require session_id and role")
			return
		}
		// A generated uuid cannot deduplicate resends; clients that
		// resend batches should supply their own.
		if msg.UUID == "" {
			msg.UUID = uuid.NewString()
		}
		if err := api.store.AddMessage(r.Context(), msg); err != nil {
			writeError(w, http.StatusInternalServerError, "store message")
			return
		}
		stored++
	}

	writeJSON(w, http.StatusOK, map[string]int{"stored": stored})
}
