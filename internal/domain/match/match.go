package match

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

const (
	// DefaultTopK is used when the caller does not set top_k.
	DefaultTopK = 5
	// MaxTopK caps the number of returned results.
	MaxTopK = 50
	// Oversample multiplies top_k to get the nearest-neighbor candidate count.
	Oversample = 2
)

// Request is a single match call.
type Request struct {
	Query         string
	TopK          int
	ResourceTypes []resource.Type
	MinConfidence float64
}

// Normalize applies defaults and bounds. It fails only on invalid types or ranges.
func (r Request) Normalize() (Request, error) {
	r.Query = strings.TrimSpace(r.Query)
	if r.TopK <= 0 {
		r.TopK = DefaultTopK
	}
	if r.TopK > MaxTopK {
		r.TopK = MaxTopK
	}
	if r.MinConfidence < 0 || r.MinConfidence > 1 {
		return Request{}, fmt.Errorf("min_confidence must be within [0,1]: %w", domain.ErrInvalidRequest)
	}
	for _, t := range r.ResourceTypes {
		if !t.IsValid() {
			return Request{}, fmt.Errorf("unknown resource type %q: %w", t, domain.ErrInvalidRequest)
		}
	}
	return r, nil
}

// CandidateK is the nearest-neighbor fetch size.
func (r Request) CandidateK() int {
	return r.TopK * Oversample
}

// Signals are the per-candidate inputs to the confidence score.
type Signals struct {
	Similarity       float64
	UsagePreference  float64
	Performance      float64
	ContextRelevance float64
}

// Result is one ranked candidate.
type Result struct {
	Resource   resource.Resource
	Signals    Signals
	Confidence float64
	Reasoning  string
}

// History is the append-only record of one match call.
type History struct {
	ID                 string
	QueryText          string
	QueryHash          string
	MatchedResourceIDs []string
	SimilarityScores   []float64
	ConfidenceScores   []float64
	Reasoning          string
	ResponseTimeMs     int64
	CreatedAt          time.Time
}

// QueryHash keys history rows by query text.
func QueryHash(query string) string {
	h := sha256.Sum256([]byte(query))
	return hex.EncodeToString(h[:])
}

// NewHistory builds the history record for a finished match call.
func NewHistory(id, query string, results []Result, elapsed time.Duration, now time.Time) History {
	h := History{
		ID:                 id,
		QueryText:          query,
		QueryHash:          QueryHash(query),
		MatchedResourceIDs: make([]string, len(results)),
		SimilarityScores:   make([]float64, len(results)),
		ConfidenceScores:   make([]float64, len(results)),
		ResponseTimeMs:     elapsed.Milliseconds(),
		CreatedAt:          now,
	}
	for i := range results {
		h.MatchedResourceIDs[i] = results[i].Resource.ID
		h.SimilarityScores[i] = results[i].Signals.Similarity
		h.ConfidenceScores[i] = results[i].Confidence
	}
	h.Reasoning = summarize(results)
	return h
}

func summarize(results []Result) string {
	if len(results) == 0 {
		return "no resource cleared the confidence threshold"
	}
	top := results[0]
	return fmt.Sprintf("%d result(s); best %s %q at %.2f confidence (%s)",
		len(results), top.Resource.Type, top.Resource.Name, top.Confidence, ConfidenceBand(top.Confidence))
}
