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

// Command observability runs the agent observability server: hook
// event ingest, the evaluation subsystem and session analysis.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/evaluators"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/storage/database"
	"github.com/taketaketaketake/agentland-observability-sub000/server"
	"github.com/taketaketaketake/agentland-observability-sub000/server/config"
	"github.com/taketaketaketake/agentland-observability-sub000/telemetry"
)

type serveFlags struct {
	configPath  string
	port        int
	dbPath      string
	memoryStore bool
	traceStdout bool
}

var flags serveFlags

var rootCmd = &cobra.Command{
	Use:   "observability",
	Short: "Runs the agent observability server.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return flags.serve(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().IntVarP(&flags.port, "port", "p", 0, "Listen port (overrides config)")
	rootCmd.PersistentFlags().StringVarP(&flags.dbPath, "db", "d", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&flags.memoryStore, "memory", false, "Use the in-memory store instead of SQLite")
	rootCmd.PersistentFlags().BoolVar(&flags.traceStdout, "trace-stdout", false, "Print trace spans to stdout")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatal(err)
	}
}

func (f *serveFlags) serve(ctx context.Context) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if f.port != 0 {
		cfg.Port = f.port
	}
	if f.dbPath != "" {
		cfg.DatabasePath = f.dbPath
	}

	var telemetryOpts []telemetry.Option
	if f.traceStdout {
		telemetryOpts = append(telemetryOpts, telemetry.WithStdoutExporter())
	}
	telemetryService, err := telemetry.New(ctx, telemetryOpts...)
	if err != nil {
		return err
	}
	telemetryService.SetGlobalOtelProviders()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := telemetryService.Shutdown(shutdownCtx); err != nil {
			log.Printf("telemetry shutdown failed: %v", err)
		}
	}()

	var store server.Storage
	if f.memoryStore {
		store = storage.NewMemoryStorage()
	} else {
		dbStore, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		store = dbStore
	}

	gateway := judge.NewGateway(cfg.Judge)
	if configured := gateway.ListConfigured(); len(configured) > 0 {
		log.Printf("[observability] judge providers configured: %v", configured)
	} else {
		log.Printf("[observability] no judge provider configured; LLM-backed evaluators will fail fast")
	}

	registry := evaluation.NewRegistry()
	if err := evaluators.RegisterDefaults(registry); err != nil {
		return err
	}

	hub := server.NewHub(store)
	runner := evaluation.NewRunner(store, store, registry, gateway, hub.BroadcastProgress)
	analyzer := analysis.NewAnalyzer(store, gateway)
	srv := server.New(store, runner, gateway, analyzer, hub, cfg.Cors)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", cfg.Port))
	})
	return g.Wait()
}
