// Package history persists the append-only match history.
package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kailas-cloud/resdex/internal/domain/match"
)

const defaultLimit = 50

// Row is one match_history record.
type Row struct {
	ID                 string                       `gorm:"column:id;primaryKey;size:36"`
	QueryText          string                       `gorm:"column:query_text;not null"`
	QueryHash          string                       `gorm:"column:query_hash;size:64;not null;index"`
	MatchedResourceIDs datatypes.JSONSlice[string]  `gorm:"column:matched_resource_ids"`
	SimilarityScores   datatypes.JSONSlice[float64] `gorm:"column:similarity_scores"`
	ConfidenceScores   datatypes.JSONSlice[float64] `gorm:"column:confidence_scores"`
	Reasoning          string                       `gorm:"column:reasoning"`
	ResponseTimeMs     int64                        `gorm:"column:response_time_ms"`
	CreatedAt          time.Time                    `gorm:"column:created_at;not null;index"`
}

func (Row) TableName() string { return "match_history" }

// Repo writes and reads match history through gorm.
type Repo struct {
	db *gorm.DB
}

// New creates a history repository.
func New(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the history table.
func (r *Repo) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Row{})
}

// Append stores one record. Rows are never updated.
func (r *Repo) Append(ctx context.Context, h *match.History) error {
	row := toRow(h)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("append match history: %w", err)
	}
	return nil
}

// Recent returns the newest records first.
func (r *Repo) Recent(ctx context.Context, limit int) ([]match.History, error) {
	return r.find(ctx, r.db.WithContext(ctx), limit)
}

// ByQuery returns the newest records for an exact query text.
func (r *Repo) ByQuery(ctx context.Context, query string, limit int) ([]match.History, error) {
	return r.find(ctx, r.db.WithContext(ctx).Where("query_hash = ?", match.QueryHash(query)), limit)
}

func (r *Repo) find(_ context.Context, q *gorm.DB, limit int) ([]match.History, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	var rows []Row
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("read match history: %w", err)
	}
	out := make([]match.History, len(rows))
	for i := range rows {
		out[i] = fromRow(&rows[i])
	}
	return out, nil
}

func toRow(h *match.History) Row {
	return Row{
		ID:                 h.ID,
		QueryText:          h.QueryText,
		QueryHash:          h.QueryHash,
		MatchedResourceIDs: h.MatchedResourceIDs,
		SimilarityScores:   h.SimilarityScores,
		ConfidenceScores:   h.ConfidenceScores,
		Reasoning:          h.Reasoning,
		ResponseTimeMs:     h.ResponseTimeMs,
		CreatedAt:          h.CreatedAt.UTC(),
	}
}

func fromRow(row *Row) match.History {
	return match.History{
		ID:                 row.ID,
		QueryText:          row.QueryText,
		QueryHash:          row.QueryHash,
		MatchedResourceIDs: row.MatchedResourceIDs,
		SimilarityScores:   row.SimilarityScores,
		ConfidenceScores:   row.ConfidenceScores,
		Reasoning:          row.Reasoning,
		ResponseTimeMs:     row.ResponseTimeMs,
		CreatedAt:          row.CreatedAt,
	}
}
