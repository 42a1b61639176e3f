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

package database

import (
	"context"

	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

// RecentEvents returns the newest limit events in chronological order.
func (s *Store) RecentEvents(ctx context.Context, limit int) ([]evaluation.ToolEvent, error) {
	tx := s.db.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []eventRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	// Rows come back newest first; the feed wants chronological order.
	events := make([]evaluation.ToolEvent, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		events = append(events, rowToEvent(&rows[i]))
	}
	return events, nil
}

// FilterOptions returns the distinct filterable values across all
// recorded events.
func (s *Store) FilterOptions(ctx context.Context) (*evaluation.FilterOptions, error) {
	opts := &evaluation.FilterOptions{}

	cols := []struct {
		name string
		dst  *[]string
	}{
		{"source_app", &opts.SourceApps},
		{"session_id", &opts.SessionIDs},
		{"hook_event_type", &opts.HookEventTypes},
	}
	for _, col := range cols {
		err := s.db.WithContext(ctx).Model(&eventRow{}).
			Distinct(col.name).
			Order(col.name + " ASC").
			Pluck(col.name, col.dst).Error
		if err != nil {
			return nil, err
		}
	}

	return opts, nil
}
