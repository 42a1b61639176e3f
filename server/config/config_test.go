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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ENV", "SERVER_PORT", "DATABASE_PATH", "ALLOWED_ORIGIN",
		"EVAL_PROVIDER", "EVAL_MODEL",
		"ANTHROPIC_API_KEY", "GOOGLE_API_KEY", "GEMINI_API_KEY",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != defaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, defaultPort)
	}
	if cfg.DatabasePath != "events.db" {
		t.Errorf("DatabasePath = %q, want events.db", cfg.DatabasePath)
	}
	if cfg.Cors == nil {
		t.Error("Cors = nil, want permissive default")
	}
	if cfg.Judge.Anthropic.APIKey != "" || cfg.Judge.Gemini.APIKey != "" {
		t.Error("Judge credentials set from an empty environment")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := "port: 9090\ndatabase_path: /tmp/observe.db\neval_provider: gemini\n"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.DatabasePath != "/tmp/observe.db" {
		t.Errorf("DatabasePath = %q", cfg.DatabasePath)
	}
	if cfg.Judge.Provider != "gemini" {
		t.Errorf("Judge.Provider = %q, want gemini", cfg.Judge.Provider)
	}
}

func TestLoadEnvironmentWins(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("port: 9090\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("SERVER_PORT", "8123")
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != 8123 {
		t.Errorf("Port = %d, environment must win over the file", cfg.Port)
	}
	if cfg.Judge.Gemini.APIKey != "test-key" {
		t.Errorf("Gemini.APIKey = %q", cfg.Judge.Gemini.APIKey)
	}
}

func TestLoadInvalidPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("SERVER_PORT", "not-a-port")

	if _, err := Load(""); err == nil {
		t.Error("Load() with bad SERVER_PORT, want error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with missing config file, want error")
	}
}
