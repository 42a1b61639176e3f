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

package storage

import (
	"context"
	"sort"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// RecentEvents returns the newest limit events in chronological order.
func (m *MemoryStorage) RecentEvents(ctx context.Context, limit int) ([]evaluation.ToolEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]evaluation.ToolEvent, len(m.events))
	copy(events, m.events)

	sort.Slice(events, func(i, j int) bool {
		return events[i].ID < events[j].ID
	})

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}

	return events, nil
}

// FilterOptions returns the distinct filterable values across all
// recorded events.
func (m *MemoryStorage) FilterOptions(ctx context.Context) (*evaluation.FilterOptions, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	apps := map[string]struct{}{}
	sessions := map[string]struct{}{}
	types := map[string]struct{}{}
	for _, ev := range m.events {
		apps[ev.SourceApp] = struct{}{}
		sessions[ev.SessionID] = struct{}{}
		types[ev.HookEventType] = struct{}{}
	}

	return &evaluation.FilterOptions{
		SourceApps:     sortedKeys(apps),
		SessionIDs:     sortedKeys(sessions),
		HookEventTypes: sortedKeys(types),
	}, nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
