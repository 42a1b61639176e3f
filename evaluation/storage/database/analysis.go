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
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/taketaketaketake/agentland-observability-sub000/analysis"
	"github.com/taketaketaketake/agentland-observability-sub000/evaluation"
)

var _ analysis.Store = (*Store)(nil)

// sessionAnalysisRow is the session_analyses table model.
type sessionAnalysisRow struct {
	SessionID      string  `gorm:"primaryKey"`
	SourceApp      string  `gorm:"index"`
	Status         string  `gorm:"index;not null"`
	Summary        string
	AnalysisJSON   JSONMap `gorm:"column:analysis_json"`
	ErrorMessage   string
	ModelName      string
	PromptVersion  string
	MessageCount   int
	TokensAnalyzed int
	CreatedAt      int64 `gorm:"index;autoCreateTime:false"`
	CompletedAt    int64 `gorm:"autoCreateTime:false"`
}

func (sessionAnalysisRow) TableName() string { return "session_analyses" }

// insightRow is the cross_session_insights table model.
type insightRow struct {
	Key          string  `gorm:"primaryKey;column:key"`
	AnalysisJSON JSONMap `gorm:"column:analysis_json"`
	ModelName    string
	SessionCount int
	CreatedAt    int64 `gorm:"autoCreateTime:false"`
}

func (insightRow) TableName() string { return "cross_session_insights" }

// SessionMessages returns all of a session's messages ordered by
// timestamp.
func (s *Store) SessionMessages(ctx context.Context, sessionID string) ([]evaluation.Message, error) {
	var rows []messageRow
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	messages := make([]evaluation.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rowToMessage(&rows[i]))
	}
	return messages, nil
}

// GetAnalysis retrieves a session's analysis record.
func (s *Store) GetAnalysis(ctx context.Context, sessionID string) (*analysis.SessionAnalysis, error) {
	var row sessionAnalysisRow
	err := s.db.WithContext(ctx).Where("session_id = ?", sessionID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return rowToAnalysis(&row), nil
}

// UpsertAnalysis inserts or replaces a session's analysis record.
func (s *Store) UpsertAnalysis(ctx context.Context, a *analysis.SessionAnalysis) error {
	if a == nil || a.SessionID == "" {
		return evaluation.ErrInvalidInput
	}

	row := analysisToRow(a)
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

// ListAnalyses returns analysis records matching the query, newest
// first.
func (s *Store) ListAnalyses(ctx context.Context, q analysis.AnalysisQuery) ([]analysis.SessionAnalysis, error) {
	tx := s.db.WithContext(ctx).Order("created_at DESC")
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Limit > 0 {
		tx = tx.Limit(q.Limit)
	}

	var rows []sessionAnalysisRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	analyses := make([]analysis.SessionAnalysis, 0, len(rows))
	for i := range rows {
		analyses = append(analyses, *rowToAnalysis(&rows[i]))
	}
	return analyses, nil
}

// GetInsight retrieves a stored insight snapshot by key.
func (s *Store) GetInsight(ctx context.Context, key string) (*analysis.Insight, error) {
	var row insightRow
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, evaluation.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &analysis.Insight{
		Key:          row.Key,
		Analysis:     map[string]any(row.AnalysisJSON),
		ModelName:    row.ModelName,
		SessionCount: row.SessionCount,
		CreatedAt:    row.CreatedAt,
	}, nil
}

// UpsertInsight inserts or replaces an insight snapshot.
func (s *Store) UpsertInsight(ctx context.Context, in *analysis.Insight) error {
	if in == nil || in.Key == "" {
		return evaluation.ErrInvalidInput
	}

	row := &insightRow{
		Key:          in.Key,
		AnalysisJSON: JSONMap(in.Analysis),
		ModelName:    in.ModelName,
		SessionCount: in.SessionCount,
		CreatedAt:    in.CreatedAt,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(row).Error
}

func analysisToRow(a *analysis.SessionAnalysis) *sessionAnalysisRow {
	return &sessionAnalysisRow{
		SessionID:      a.SessionID,
		SourceApp:      a.SourceApp,
		Status:         a.Status,
		Summary:        a.Summary,
		AnalysisJSON:   JSONMap(a.Assessment),
		ErrorMessage:   a.ErrorMessage,
		ModelName:      a.ModelName,
		PromptVersion:  a.PromptVersion,
		MessageCount:   a.MessageCount,
		TokensAnalyzed: a.TokensAnalyzed,
		CreatedAt:      a.CreatedAt,
		CompletedAt:    a.CompletedAt,
	}
}

func rowToAnalysis(row *sessionAnalysisRow) *analysis.SessionAnalysis {
	return &analysis.SessionAnalysis{
		SessionID:      row.SessionID,
		SourceApp:      row.SourceApp,
		Status:         row.Status,
		Summary:        row.Summary,
		Assessment:     map[string]any(row.AnalysisJSON),
		ErrorMessage:   row.ErrorMessage,
		ModelName:      row.ModelName,
		PromptVersion:  row.PromptVersion,
		MessageCount:   row.MessageCount,
		TokensAnalyzed: row.TokensAnalyzed,
		CreatedAt:      row.CreatedAt,
		CompletedAt:    row.CompletedAt,
	}
}
