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

package judge

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var (
	// Matches the first fenced code block, with or without a language
	// tag, across lines.
	fencedRe = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(.*?)\\n?```")

	// Matches the first brace-delimited substring, non-greedy.
	braceRe = regexp.MustCompile(`(?s)\{.*?\}`)
)

const parseErrorSnippetLen = 200

// ParseResponse extracts a JSON object from free-form judge model
// output. Judges are prompted to return JSON but are not reliable about
// formatting, so three strategies are tried in order, first match wins:
// the first fenced code block's contents, the entire trimmed text, then
// the first {...} substring anywhere in the text. All three failing
// returns a diagnostic error carrying a truncated snippet of the
// offending text.
func ParseResponse(text string) (map[string]any, error) {
	if m := fencedRe.FindStringSubmatch(text); m != nil {
		if parsed, ok := tryJSON(strings.TrimSpace(m[1])); ok {
			return parsed, nil
		}
	}

	if parsed, ok := tryJSON(strings.TrimSpace(text)); ok {
		return parsed, nil
	}

	if m := braceRe.FindString(text); m != "" {
		if parsed, ok := tryJSON(m); ok {
			return parsed, nil
		}
	}

	return nil, fmt.Errorf("could not parse judge response: %s", truncate(text, parseErrorSnippetLen))
}

func tryJSON(s string) (map[string]any, bool) {
	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
