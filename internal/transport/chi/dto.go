package chi

import (
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
	"github.com/kailas-cloud/resdex/internal/usecase/synchronizer"
)

// ErrorCode is the machine-readable error class of an ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest             ErrorCode = "bad_request"
	CodeUnauthorized           ErrorCode = "unauthorized"
	CodeValidationFailed       ErrorCode = "validation_failed"
	CodeNotFound               ErrorCode = "not_found"
	CodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	CodeRegistryUnavailable    ErrorCode = "registry_unavailable"
	CodeSourceUnavailable      ErrorCode = "source_unavailable"
	CodeInternalError          ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// MatchRequest is the body of POST /v1/match.
type MatchRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k,omitempty"`
	ResourceTypes []string `json:"resource_types,omitempty"`
	MinConfidence float64  `json:"min_confidence,omitempty"`
}

// SignalsResponse exposes the individual ranking signals.
type SignalsResponse struct {
	Similarity       float64 `json:"similarity"`
	UsagePreference  float64 `json:"usage_preference"`
	Performance      float64 `json:"performance"`
	ContextRelevance float64 `json:"context_relevance"`
}

// ResourceResponse is the public view of a registered resource.
type ResourceResponse struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Type              resource.Type     `json:"type"`
	Capabilities      []string          `json:"capabilities"`
	Tags              []string          `json:"tags"`
	Metadata          resource.Metadata `json:"metadata"`
	SourceTable       string            `json:"source_table"`
	SourceID          string            `json:"source_id"`
	Status            resource.Status   `json:"status"`
	UsageCount        int64             `json:"usage_count"`
	SuccessRate       float64           `json:"success_rate"`
	AvgResponseTimeMs float64           `json:"avg_response_time_ms"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// MatchItem is one ranked result.
type MatchItem struct {
	Resource   ResourceResponse `json:"resource"`
	Confidence float64          `json:"confidence"`
	Signals    SignalsResponse  `json:"signals"`
	Reasoning  string           `json:"reasoning"`
}

// MatchResponse is the body of a successful POST /v1/match.
type MatchResponse struct {
	Items []MatchItem `json:"items"`
}

// SyncRequest is the body of POST /v1/sync. Tables are required for INCREMENTAL.
type SyncRequest struct {
	Mode   string   `json:"mode"`
	Tables []string `json:"tables,omitempty"`
}

// SyncFailure is one resource that could not be applied.
type SyncFailure struct {
	ResourceID string `json:"resource_id"`
	Stage      string `json:"stage"`
	Error      string `json:"error"`
}

// SyncResponse summarizes a completed run.
type SyncResponse struct {
	Mode        synchronizer.Mode `json:"mode"`
	Tables      []string          `json:"tables"`
	Unreachable []string          `json:"unreachable"`
	Added       []string          `json:"added"`
	Modified    []string          `json:"modified"`
	Deleted     []string          `json:"deleted"`
	Retried     []string          `json:"retried"`
	Refreshed   []string          `json:"refreshed"`
	Failed      []SyncFailure     `json:"failed"`
	DurationMs  int64             `json:"duration_ms"`
}

// OutcomeRequest is the body of POST /v1/outcomes.
type OutcomeRequest struct {
	ResourceID     string `json:"resource_id"`
	WasSelected    bool   `json:"was_selected"`
	Succeeded      bool   `json:"succeeded"`
	ResponseTimeMs int64  `json:"response_time_ms"`
}

// HistoryItem is one stored match call.
type HistoryItem struct {
	ID                 string    `json:"id"`
	QueryText          string    `json:"query_text"`
	QueryHash          string    `json:"query_hash"`
	MatchedResourceIDs []string  `json:"matched_resource_ids"`
	SimilarityScores   []float64 `json:"similarity_scores"`
	ConfidenceScores   []float64 `json:"confidence_scores"`
	Reasoning          string    `json:"reasoning"`
	ResponseTimeMs     int64     `json:"response_time_ms"`
	CreatedAt          time.Time `json:"created_at"`
}

// HistoryResponse is the body of GET /v1/history.
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
}

// StatsResponse counts registered resources per status.
type StatsResponse struct {
	Resources map[resource.Status]int `json:"resources"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func resourceToResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		Type:              r.Type,
		Capabilities:      nonNil(r.Capabilities),
		Tags:              nonNil(r.Tags),
		Metadata:          r.Metadata,
		SourceTable:       r.SourceTable,
		SourceID:          r.SourceID,
		Status:            r.Status,
		UsageCount:        r.Stats.UsageCount,
		SuccessRate:       r.Stats.SuccessRate,
		AvgResponseTimeMs: r.Stats.AvgResponseTimeMs,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}

// MatchToResponse renders ranked results in API form.
func MatchToResponse(results []match.Result) MatchResponse {
	items := make([]MatchItem, len(results))
	for i := range results {
		r := &results[i]
		items[i] = MatchItem{
			Resource:   resourceToResponse(&r.Resource),
			Confidence: r.Confidence,
			Signals: SignalsResponse{
				Similarity:       r.Signals.Similarity,
				UsagePreference:  r.Signals.UsagePreference,
				Performance:      r.Signals.Performance,
				ContextRelevance: r.Signals.ContextRelevance,
			},
			Reasoning: r.Reasoning,
		}
	}
	return MatchResponse{Items: items}
}

// ReportToResponse renders a sync report in API form.
func ReportToResponse(rep *synchronizer.Report) SyncResponse {
	failed := make([]SyncFailure, len(rep.Failed))
	for i, f := range rep.Failed {
		failed[i] = SyncFailure{ResourceID: f.ResourceID, Stage: f.Stage, Error: f.Err.Error()}
	}
	return SyncResponse{
		Mode:        rep.Mode,
		Tables:      nonNil(rep.Tables),
		Unreachable: nonNil(rep.Unreachable),
		Added:       nonNil(rep.Added),
		Modified:    nonNil(rep.Modified),
		Deleted:     nonNil(rep.Deleted),
		Retried:     nonNil(rep.Retried),
		Refreshed:   nonNil(rep.Refreshed),
		Failed:      failed,
		DurationMs:  rep.Duration.Milliseconds(),
	}
}

func historyToResponse(hh []match.History) HistoryResponse {
	items := make([]HistoryItem, len(hh))
	for i, h := range hh {
		items[i] = HistoryItem{
			ID:                 h.ID,
			QueryText:          h.QueryText,
			QueryHash:          h.QueryHash,
			MatchedResourceIDs: nonNil(h.MatchedResourceIDs),
			SimilarityScores:   h.SimilarityScores,
			ConfidenceScores:   h.ConfidenceScores,
			Reasoning:          h.Reasoning,
			ResponseTimeMs:     h.ResponseTimeMs,
			CreatedAt:          h.CreatedAt,
		}
	}
	return HistoryResponse{Items: items}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
