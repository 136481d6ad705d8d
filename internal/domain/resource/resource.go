package resource

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain"
)

// Type is the closed set of resource kinds the engine can discover and dispatch.
type Type string

const (
	// TypeDatabase is a database connection.
	TypeDatabase Type = "DATABASE"
	// TypeAPI is a callable HTTP API.
	TypeAPI Type = "API"
	// TypeKnowledgeSnippet is a curated natural-language-to-query snippet.
	TypeKnowledgeSnippet Type = "KNOWLEDGE_SNIPPET"
	// TypeTool is a generic invocable tool.
	TypeTool Type = "TOOL"
)

// Types lists every resource type in a stable order.
func Types() []Type {
	return []Type{TypeDatabase, TypeAPI, TypeKnowledgeSnippet, TypeTool}
}

// IsValid checks if the type is one of the known variants.
func (t Type) IsValid() bool {
	switch t {
	case TypeDatabase, TypeAPI, TypeKnowledgeSnippet, TypeTool:
		return true
	}
	return false
}

// ParseType parses a type name case-insensitively.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("unknown resource type %q: %w", s, domain.ErrInvalidResource)
	}
	return t, nil
}

// Status is the lifecycle state of a registered resource.
type Status string

const (
	// StatusActive resources are searchable.
	StatusActive Status = "ACTIVE"
	// StatusInactive resources vanished from their source; kept for history readability.
	StatusInactive Status = "INACTIVE"
	// StatusFailed resources could not get a COMPOSITE vector and are retried on the next sync.
	StatusFailed Status = "FAILED"
)

// Stats are the rolling usage statistics maintained by the usage tracker.
type Stats struct {
	UsageCount        int64
	SuccessRate       float64 // 0..1, zero until the first selected outcome
	AvgResponseTimeMs float64
}

// Resource is one discoverable capability.
type Resource struct {
	ID           string
	Name         string
	Description  string
	Type         Type
	Capabilities []string
	Tags         []string // sorted set
	Metadata     Metadata
	SourceTable  string
	SourceID     string
	Active       bool
	Status       Status
	Stats        Stats
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// NewID derives the registry identity of a source row.
// Format: lower(type):source_table:source_id[:subkey...].
func NewID(t Type, sourceTable, sourceID string, subkeys ...string) string {
	parts := make([]string, 0, 3+len(subkeys))
	parts = append(parts, strings.ToLower(string(t)), sourceTable, sourceID)
	for _, sk := range subkeys {
		if sk != "" {
			parts = append(parts, sk)
		}
	}
	return strings.Join(parts, ":")
}

// New validates a freshly discovered descriptor and returns it in canonical form:
// trimmed text, deduplicated sorted tags, derived ID, ACTIVE status.
func New(
	t Type, sourceTable, sourceID, name, description string,
	capabilities, tags []string, md Metadata,
) (Resource, error) {
	r := Resource{
		Type:         t,
		SourceTable:  strings.TrimSpace(sourceTable),
		SourceID:     strings.TrimSpace(sourceID),
		Name:         strings.TrimSpace(name),
		Description:  strings.TrimSpace(description),
		Capabilities: normalizeCapabilities(capabilities),
		Tags:         NormalizeTags(tags),
		Metadata:     md,
		Active:       true,
		Status:       StatusActive,
	}
	if err := r.Validate(); err != nil {
		return Resource{}, err
	}
	r.ID = NewID(r.Type, r.SourceTable, r.SourceID)
	return r, nil
}

// Validate checks the descriptor at the discovery boundary.
func (r *Resource) Validate() error {
	if !r.Type.IsValid() {
		return fmt.Errorf("unknown resource type %q: %w", r.Type, domain.ErrInvalidResource)
	}
	if r.SourceTable == "" {
		return fmt.Errorf("source table is required: %w", domain.ErrInvalidResource)
	}
	if r.SourceID == "" {
		return fmt.Errorf("source id is required: %w", domain.ErrInvalidResource)
	}
	if r.Name == "" {
		return fmt.Errorf("resource %s:%s: name is required: %w", r.SourceTable, r.SourceID, domain.ErrInvalidResource)
	}
	if err := r.Metadata.Validate(r.Type); err != nil {
		return fmt.Errorf("resource %s:%s: %w", r.SourceTable, r.SourceID, err)
	}
	return nil
}

// IsSearchable reports whether the resource should surface in matches.
func (r *Resource) IsSearchable() bool {
	return r.Active && r.Status != StatusInactive
}

// ContentChanged applies the narrow modification rule: only name and description count.
func (r *Resource) ContentChanged(other *Resource) bool {
	return r.Name != other.Name || r.Description != other.Description
}

// NormalizeTags lowercases, trims, deduplicates and sorts tags.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			out = append(out, t)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// normalizeCapabilities trims and drops empties, keeping order and first occurrence.
func normalizeCapabilities(caps []string) []string {
	if len(caps) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(caps))
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
