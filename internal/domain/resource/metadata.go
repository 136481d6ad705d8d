package resource

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/resdex/internal/domain"
)

// DatabaseMetadata describes how to reach a database connection.
type DatabaseMetadata struct {
	Engine   string `json:"engine"`
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Database string `json:"database"`
	Schema   string `json:"schema,omitempty"`
}

// APIMetadata describes an HTTP endpoint.
type APIMetadata struct {
	BaseURL  string `json:"base_url"`
	Method   string `json:"method,omitempty"`
	Path     string `json:"path,omitempty"`
	AuthType string `json:"auth_type,omitempty"`
}

// SnippetMetadata holds a curated question and the query that answers it.
type SnippetMetadata struct {
	Question     string `json:"question"`
	Query        string `json:"query"`
	ConnectionID string `json:"connection_id,omitempty"`
}

// ToolMetadata describes a generic invocable tool.
type ToolMetadata struct {
	Endpoint    string `json:"endpoint,omitempty"`
	InputSchema string `json:"input_schema,omitempty"`
}

// Metadata is a tagged union keyed by the resource type.
// Exactly the variant matching the type may be set; Extra carries forward-compatible keys.
type Metadata struct {
	Database *DatabaseMetadata `json:"database,omitempty"`
	API      *APIMetadata      `json:"api,omitempty"`
	Snippet  *SnippetMetadata  `json:"snippet,omitempty"`
	Tool     *ToolMetadata     `json:"tool,omitempty"`
	Extra    map[string]string `json:"extra,omitempty"`
}

// Validate checks that the payload matches the resource type.
func (m *Metadata) Validate(t Type) error {
	set := 0
	for _, present := range []bool{m.Database != nil, m.API != nil, m.Snippet != nil, m.Tool != nil} {
		if present {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("metadata carries more than one variant: %w", domain.ErrInvalidResource)
	}

	switch t {
	case TypeDatabase:
		if m.Database == nil {
			return fmt.Errorf("database metadata is required: %w", domain.ErrInvalidResource)
		}
		if m.Database.Host == "" || m.Database.Database == "" {
			return fmt.Errorf("database metadata requires host and database: %w", domain.ErrInvalidResource)
		}
	case TypeAPI:
		if m.API == nil || m.API.BaseURL == "" {
			return fmt.Errorf("api metadata requires base_url: %w", domain.ErrInvalidResource)
		}
	case TypeKnowledgeSnippet:
		if m.Snippet == nil || m.Snippet.Query == "" {
			return fmt.Errorf("snippet metadata requires query: %w", domain.ErrInvalidResource)
		}
	case TypeTool:
		if set == 1 && m.Tool == nil {
			return fmt.Errorf("tool metadata has wrong variant: %w", domain.ErrInvalidResource)
		}
	default:
		return fmt.Errorf("unknown resource type %q: %w", t, domain.ErrInvalidResource)
	}
	return nil
}

// Encode serializes metadata deterministically (struct field order, sorted map keys).
func (m *Metadata) Encode() (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(data), nil
}

// DecodeMetadata parses metadata previously produced by Encode.
func DecodeMetadata(s string) (Metadata, error) {
	var m Metadata
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}
