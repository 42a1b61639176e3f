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

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

var _ analysis.Store = (*MemoryStorage)(nil)

// SessionMessages returns all of a session's messages ordered by
// timestamp.
func (m *MemoryStorage) SessionMessages(ctx context.Context, sessionID string) ([]evaluation.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	messages := make([]evaluation.Message, 0)
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			messages = append(messages, msg)
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})

	return messages, nil
}

// GetAnalysis retrieves a session's analysis record.
func (m *MemoryStorage) GetAnalysis(ctx context.Context, sessionID string) (*analysis.SessionAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, exists := m.analyses[sessionID]
	if !exists {
		return nil, evaluation.ErrNotFound
	}

	copied := *a
	return &copied, nil
}

// UpsertAnalysis inserts or replaces a session's analysis record.
func (m *MemoryStorage) UpsertAnalysis(ctx context.Context, a *analysis.SessionAnalysis) error {
	if a == nil || a.SessionID == "" {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *a
	m.analyses[a.SessionID] = &copied

	return nil
}

// ListAnalyses returns analysis records matching the query, newest
// first.
func (m *MemoryStorage) ListAnalyses(ctx context.Context, q analysis.AnalysisQuery) ([]analysis.SessionAnalysis, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	analyses := make([]analysis.SessionAnalysis, 0, len(m.analyses))
	for _, a := range m.analyses {
		if q.Status != "" && a.Status != q.Status {
			continue
		}
		analyses = append(analyses, *a)
	}

	sort.Slice(analyses, func(i, j int) bool {
		return analyses[i].CreatedAt > analyses[j].CreatedAt
	})

	if q.Limit > 0 && q.Limit < len(analyses) {
		analyses = analyses[:q.Limit]
	}

	return analyses, nil
}

// GetInsight retrieves a stored insight snapshot by key.
func (m *MemoryStorage) GetInsight(ctx context.Context, key string) (*analysis.Insight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	in, exists := m.insights[key]
	if !exists {
		return nil, evaluation.ErrNotFound
	}

	copied := *in
	return &copied, nil
}

// UpsertInsight inserts or replaces an insight snapshot.
func (m *MemoryStorage) UpsertInsight(ctx context.Context, in *analysis.Insight) error {
	if in == nil || in.Key == "" {
		return evaluation.ErrInvalidInput
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *in
	m.insights[in.Key] = &copied

	return nil
}
