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

// package config provides configs for the observability server.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"gopkg.in/yaml.v3"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation/judge"
)

const defaultPort = 4000

// FileConfig holds the non-secret settings an optional YAML file can
// set. Environment variables win over file values.
type FileConfig struct {
	Port          int    `yaml:"port"`
	DatabasePath  string `yaml:"database_path"`
	AllowedOrigin string `yaml:"allowed_origin"`
	EvalProvider  string `yaml:"eval_provider"`
	EvalModel     string `yaml:"eval_model"`
}

// Config contains the resolved configs for the observability server.
type Config struct {
	Env          string
	Port         int
	DatabasePath string
	Cors         *cors.Cors
	Judge        judge.Config
}

// Load resolves configuration from .env, an optional YAML file and the
// environment. Credentials come from the environment only.
func Load(path string) (*Config, error) {
	config := &Config{Port: defaultPort, DatabasePath: "events.db"}
	config.Env = os.Getenv("ENV")

	if err := godotenv.Load(); err != nil && config.Env == "" && !os.IsNotExist(err) {
		return nil, err
	}

	var file FileConfig
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return nil, fmt.Errorf("parse config file %q: %w", path, err)
		}
	}

	if file.Port != 0 {
		config.Port = file.Port
	}
	if serverPort, ok := os.LookupEnv("SERVER_PORT"); ok {
		port, err := strconv.ParseInt(serverPort, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("parse SERVER_PORT: %w", err)
		}
		config.Port = int(port)
	}

	if file.DatabasePath != "" {
		config.DatabasePath = file.DatabasePath
	}
	if dbPath, ok := os.LookupEnv("DATABASE_PATH"); ok {
		config.DatabasePath = dbPath
	}

	allowedOrigin := file.AllowedOrigin
	if env, ok := os.LookupEnv("ALLOWED_ORIGIN"); ok {
		allowedOrigin = env
	}
	if allowedOrigin != "" {
		config.Cors = cors.New(cors.Options{
			AllowedOrigins: []string{allowedOrigin},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		})
	} else {
		config.Cors = cors.AllowAll()
	}

	config.Judge = judge.Config{
		Provider: firstNonEmpty(os.Getenv("EVAL_PROVIDER"), file.EvalProvider),
		Model:    firstNonEmpty(os.Getenv("EVAL_MODEL"), file.EvalModel),
	}
	config.Judge.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	config.Judge.Gemini.APIKey = firstNonEmpty(os.Getenv("GOOGLE_API_KEY"), os.Getenv("GEMINI_API_KEY"))

	return config, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
