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
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const shutdownTimeout = 10 * time.Second

// Storage is everything the HTTP layer needs from persistence.
type Storage interface {
	evaluation.Store
	evaluation.EventSource
	analysis.Store

	AddToolEvent(ctx context.Context, ev *evaluation.ToolEvent) error
	AddMessage(ctx context.Context, msg *evaluation.Message) error
	RecentEvents(ctx context.Context, limit int) ([]evaluation.ToolEvent, error)
	FilterOptions(ctx context.Context) (*evaluation.FilterOptions, error)
}

// Server hosts the observability API.
type Server struct {
	store    Storage
	runner   *evaluation.Runner
	gateway  *judge.Gateway
	analyzer *analysis.Analyzer
	hub      *Hub
	cors     *cors.Cors

	httpServer *http.Server
}

// New assembles the server. cors may be nil for permissive defaults.
func New(store Storage, runner *evaluation.Runner, gateway *judge.Gateway, analyzer *analysis.Analyzer, hub *Hub, c *cors.Cors) *Server {
	if c == nil {
		c = cors.AllowAll()
	}
	return &Server{
		store:    store,
		runner:   runner,
		gateway:  gateway,
		analyzer: analyzer,
		hub:      hub,
		cors:     c,
	}
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	router := NewRouter(
		&eventsAPI{store: s.store, hub: s.hub, analyzer: s.analyzer},
		&evaluationsAPI{store: s.store, runner: s.runner, gateway: s.gateway},
		&analysisAPI{store: s.store, analyzer: s.analyzer},
	)
	router.HandleFunc("/stream", s.hub.ServeHTTP)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprintln(w, "AgentLand Observability Server")
	})
	return s.cors.Handler(router)
}

// ListenAndServe serves until ctx is cancelled, then drains open
// connections and in-flight evaluation runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[server] listening on %s", addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.runner.Wait()
	s.hub.Close()
	return <-errCh
}
