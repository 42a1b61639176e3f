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

package evaluation

import (
	"math/rand"
	"time"
)

// StratifiedSample selects up to limit items while enforcing breadth
// across sessions before depth within any single session: each session
// contributes at most ceil(limit/sessions) items first, then any
// shortfall is filled from the leftover pool regardless of session.
// This keeps one verbose session from dominating a judge-call budget.
//
// sessionOf extracts the grouping key. rng may be nil, in which case an
// unseeded source is used; tests pass a seeded one.
func StratifiedSample[T any](items []T, sessionOf func(T) string, limit int, rng *rand.Rand) []T {
	if limit <= 0 || len(items) == 0 {
		return nil
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	// Group item indices by session, keeping first-seen session order so
	// a seeded rng yields reproducible output.
	bySession := make(map[string][]int)
	var sessions []string
	for i, item := range items {
		key := sessionOf(item)
		if _, ok := bySession[key]; !ok {
			sessions = append(sessions, key)
		}
		bySession[key] = append(bySession[key], i)
	}

	perSessionCap := (limit + len(sessions) - 1) / len(sessions)

	selected := make([]int, 0, limit)
	taken := make(map[int]bool)
	for _, key := range sessions {
		idxs := append([]int(nil), bySession[key]...)
		rng.Shuffle(len(idxs), func(i, j int) { idxs[i], idxs[j] = idxs[j], idxs[i] })
		for _, idx := range idxs[:min(perSessionCap, len(idxs))] {
			selected = append(selected, idx)
			taken[idx] = true
		}
	}

	if len(selected) > limit {
		rng.Shuffle(len(selected), func(i, j int) { selected[i], selected[j] = selected[j], selected[i] })
		selected = selected[:limit]
	} else if len(selected) < limit {
		var remaining []int
		for i := range items {
			if !taken[i] {
				remaining = append(remaining, i)
			}
		}
		rng.Shuffle(len(remaining), func(i, j int) { remaining[i], remaining[j] = remaining[j], remaining[i] })
		need := limit - len(selected)
		selected = append(selected, remaining[:min(need, len(remaining))]...)
	}

	out := make([]T, 0, len(selected))
	for _, idx := range selected {
		out = append(out, items[idx])
	}
	return out
}
