package resdex

import (
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// ResourceType distinguishes resource kinds.
type ResourceType string

// Resource type constants.
const (
	TypeDatabase         ResourceType = ResourceType(resource.TypeDatabase)
	TypeAPI              ResourceType = ResourceType(resource.TypeAPI)
	TypeKnowledgeSnippet ResourceType = ResourceType(resource.TypeKnowledgeSnippet)
	TypeTool             ResourceType = ResourceType(resource.TypeTool)
)

// Resource is a registered capability.
type Resource struct {
	ID                string
	Type              ResourceType
	Name              string
	Description       string
	Capabilities      []string
	Tags              []string
	SourceTable       string
	SourceID          string
	Status            string
	UsageCount        int64
	SuccessRate       float64
	AvgResponseTimeMs float64
	UpdatedAt         time.Time
}

// Signals are the inputs of a match confidence.
type Signals struct {
	Similarity       float64
	UsagePreference  float64
	Performance      float64
	ContextRelevance float64
}

// MatchResult is one ranked resource.
type MatchResult struct {
	Resource
	Confidence float64
	Signals    Signals
	Reasoning  string
}

// Outcome reports what the caller did with a match result.
type Outcome struct {
	ResourceID   string
	Selected     bool
	Succeeded    bool
	ResponseTime time.Duration
}

// SyncFailure is one resource a sync could not apply.
type SyncFailure struct {
	ResourceID string
	Stage      string
	Err        error
}

// SyncReport summarizes a sync run. ID lists are sorted.
type SyncReport struct {
	Mode        string
	Tables      []string
	Unreachable []string
	Added       []string
	Modified    []string
	Deleted     []string
	Retried     []string
	Refreshed   []string
	Failed      []SyncFailure
	Duration    time.Duration
}

func resourceFromDomain(r *resource.Resource) Resource {
	return Resource{
		ID:                r.ID,
		Type:              ResourceType(r.Type),
		Name:              r.Name,
		Description:       r.Description,
		Capabilities:      r.Capabilities,
		Tags:              r.Tags,
		SourceTable:       r.SourceTable,
		SourceID:          r.SourceID,
		Status:            string(r.Status),
		UsageCount:        r.Stats.UsageCount,
		SuccessRate:       r.Stats.SuccessRate,
		AvgResponseTimeMs: r.Stats.AvgResponseTimeMs,
		UpdatedAt:         r.UpdatedAt,
	}
}

func matchFromDomain(results []match.Result) []MatchResult {
	out := make([]MatchResult, len(results))
	for i := range results {
		r := &results[i]
		out[i] = MatchResult{
			Resource:   resourceFromDomain(&r.Resource),
			Confidence: r.Confidence,
			Signals:    Signals(r.Signals),
			Reasoning:  r.Reasoning,
		}
	}
	return out
}

func reportFromDomain(rep *synchronizer.Report) SyncReport {
	failed := make([]SyncFailure, len(rep.Failed))
	for i, f := range rep.Failed {
		failed[i] = SyncFailure(f)
	}
	return SyncReport{
		Mode:        string(rep.Mode),
		Tables:      rep.Tables,
		Unreachable: rep.Unreachable,
		Added:       rep.Added,
		Modified:    rep.Modified,
		Deleted:     rep.Deleted,
		Retried:     rep.Retried,
		Refreshed:   rep.Refreshed,
		Failed:      failed,
		Duration:    rep.Duration,
	}
}
