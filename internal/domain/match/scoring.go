package match

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// Confidence weights.
const (
	similarityWeight  = 0.6
	usageWeight       = 0.2
	performanceWeight = 0.1
	contextWeight     = 0.1
)

// Performance weights.
const (
	successWeight = 0.7
	timeWeight    = 0.3
)

// DefaultUsagePreference is used for resources never returned in the window.
const DefaultUsagePreference = 0.5

// Context relevance increments per matched field.
const (
	nameBoost         = 0.3
	descriptionBoost  = 0.2
	capabilitiesBoost = 0.3
	tagsBoost         = 0.2
)

// Confidence combines the signals into the final ranking score, clamped to [0,1].
func Confidence(s Signals) float64 {
	c := similarityWeight*s.Similarity +
		usageWeight*s.UsagePreference +
		performanceWeight*s.Performance +
		contextWeight*s.ContextRelevance
	return clamp01(c)
}

// UsagePreference is selections / max(matches, 1) over the rolling window.
// Without any recorded match the neutral default applies.
func UsagePreference(selections, matches int64) float64 {
	if matches <= 0 && selections <= 0 {
		return DefaultUsagePreference
	}
	return clamp01(float64(selections) / float64(max(matches, 1)))
}

// TimeScore maps average latency to [0.2,1]: flat to 1s, 0.7 at 5s, floor 0.2 from 15s.
func TimeScore(avgMs float64) float64 {
	switch {
	case avgMs <= 1000:
		return 1.0
	case avgMs <= 5000:
		return 1.0 - 0.3*(avgMs-1000)/4000
	default:
		return max(0.2, 0.7-0.5*(avgMs-5000)/10000)
	}
}

// Performance is 0.7*success_rate + 0.3*time_score.
func Performance(stats resource.Stats) float64 {
	return clamp01(successWeight*clamp01(stats.SuccessRate) + timeWeight*TimeScore(stats.AvgResponseTimeMs))
}

var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "that": {}, "this": {},
	"show": {}, "give": {}, "get": {}, "find": {}, "what": {}, "which": {}, "are": {},
	"can": {}, "you": {}, "all": {}, "into": {}, "about": {}, "please": {},
	"me": {}, "my": {}, "we": {}, "us": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"at": {}, "by": {}, "as": {}, "is": {}, "it": {}, "an": {}, "or": {}, "be": {},
	"do": {}, "if": {}, "so": {}, "up": {},
}

// minTokenRunes keeps two-letter keywords such as "db", "ai" and "id".
const minTokenRunes = 2

// Tokenize lowercases text, splits on non-alphanumerics and drops short and stop words.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < minTokenRunes {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ContextRelevance is the keyword-overlap heuristic between query tokens and resource fields.
func ContextRelevance(queryTokens []string, r *resource.Resource) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	score := 0.0
	if overlaps(queryTokens, r.Name) {
		score += nameBoost
	}
	if overlaps(queryTokens, r.Description) {
		score += descriptionBoost
	}
	if overlaps(queryTokens, strings.Join(r.Capabilities, " ")) {
		score += capabilitiesBoost
	}
	if overlaps(queryTokens, strings.Join(r.Tags, " ")) {
		score += tagsBoost
	}
	return min(score, 1.0)
}

func overlaps(queryTokens []string, text string) bool {
	if text == "" {
		return false
	}
	set := make(map[string]struct{})
	for _, t := range Tokenize(text) {
		set[t] = struct{}{}
	}
	for _, q := range queryTokens {
		if _, ok := set[q]; ok {
			return true
		}
	}
	return false
}

// SimilarityBand names the similarity level used in reasoning text.
func SimilarityBand(sim float64) string {
	switch {
	case sim >= 0.8:
		return "strong semantic match"
	case sim >= 0.6:
		return "moderate semantic match"
	default:
		return "weak semantic match"
	}
}

// ConfidenceBand is high at 0.8, medium at 0.6, low otherwise.
func ConfidenceBand(c float64) string {
	switch {
	case c >= 0.8:
		return "high"
	case c >= 0.6:
		return "medium"
	default:
		return "low"
	}
}

// Reasoning renders the human-readable explanation of a ranked result.
func Reasoning(r *Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%.2f) for %s resource %q", SimilarityBand(r.Signals.Similarity),
		r.Signals.Similarity, strings.ToLower(string(r.Resource.Type)), r.Resource.Name)
	if caps := r.Resource.Capabilities; len(caps) > 0 {
		fmt.Fprintf(&b, "; capabilities: %s", strings.Join(caps[:min(3, len(caps))], ", "))
	}
	if r.Signals.ContextRelevance > 0 {
		fmt.Fprintf(&b, "; keyword overlap %.1f", r.Signals.ContextRelevance)
	}
	fmt.Fprintf(&b, "; %s confidence (%.2f)", ConfidenceBand(r.Confidence), r.Confidence)
	return b.String()
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
