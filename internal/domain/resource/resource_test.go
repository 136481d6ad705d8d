package resource

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/resdex/internal/domain"
)

func dbMeta() Metadata {
	return Metadata{Database: &DatabaseMetadata{Engine: "postgres", Host: "db.internal", Port: 5432, Database: "sales"}}
}

func TestNewID_Deterministic(t *testing.T) {
	a := NewID(TypeDatabase, "database_connections", "42")
	b := NewID(TypeDatabase, "database_connections", "42")
	if a != b {
		t.Fatalf("ids differ: %q vs %q", a, b)
	}
	if a != "database:database_connections:42" {
		t.Errorf("unexpected id %q", a)
	}
}

func TestNewID_Subkey(t *testing.T) {
	got := NewID(TypeAPI, "api_definitions", "7", "forecast", "")
	if got != "api:api_definitions:7:forecast" {
		t.Errorf("unexpected id %q", got)
	}
}

func TestNew_Canonicalizes(t *testing.T) {
	r, err := New(TypeDatabase, " database_connections ", "1", "  Sales DB ", "sales database connection ",
		[]string{"query sales", "", "query sales", "report"},
		[]string{"Sales", "finance", "sales", " "},
		dbMeta(),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.ID != "database:database_connections:1" {
		t.Errorf("ID = %q", r.ID)
	}
	if r.Name != "Sales DB" {
		t.Errorf("Name = %q", r.Name)
	}
	if len(r.Capabilities) != 2 || r.Capabilities[0] != "query sales" || r.Capabilities[1] != "report" {
		t.Errorf("Capabilities = %v", r.Capabilities)
	}
	if len(r.Tags) != 2 || r.Tags[0] != "finance" || r.Tags[1] != "sales" {
		t.Errorf("Tags = %v", r.Tags)
	}
	if !r.Active || r.Status != StatusActive {
		t.Errorf("expected active, got active=%v status=%s", r.Active, r.Status)
	}
}

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name string
		typ  Type
		src  string
		id   string
		nm   string
		md   Metadata
	}{
		{"unknown type", Type("QUEUE"), "t", "1", "n", Metadata{}},
		{"no table", TypeTool, "", "1", "n", Metadata{}},
		{"no source id", TypeTool, "t", "", "n", Metadata{}},
		{"no name", TypeTool, "t", "1", "  ", Metadata{}},
		{"db without metadata", TypeDatabase, "t", "1", "n", Metadata{}},
		{"api with db payload", TypeAPI, "t", "1", "n", dbMeta()},
		{"snippet without query", TypeKnowledgeSnippet, "t", "1", "n", Metadata{Snippet: &SnippetMetadata{Question: "q"}}},
		{"two variants", TypeDatabase, "t", "1", "n", Metadata{
			Database: dbMeta().Database,
			API:      &APIMetadata{BaseURL: "https://x"},
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.typ, tc.src, tc.id, tc.nm, "", nil, nil, tc.md)
			if !errors.Is(err, domain.ErrInvalidResource) {
				t.Fatalf("expected ErrInvalidResource, got %v", err)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	got, err := ParseType(" knowledge_snippet ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != TypeKnowledgeSnippet {
		t.Errorf("got %q", got)
	}
	if _, err := ParseType("printer"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestContentChanged_NarrowRule(t *testing.T) {
	a := Resource{Name: "Orders", Description: "orders db", Tags: []string{"x"}}
	b := Resource{Name: "Orders", Description: "orders db", Tags: []string{"y"}}
	if a.ContentChanged(&b) {
		t.Error("tag change must not count as modification")
	}
	b.Name = "Orders v2"
	if !a.ContentChanged(&b) {
		t.Error("name change must count as modification")
	}
}

func TestMetadata_EncodeDeterministic(t *testing.T) {
	m := Metadata{
		API:   &APIMetadata{BaseURL: "https://weather", Method: "GET"},
		Extra: map[string]string{"z": "1", "a": "2", "m": "3"},
	}
	first, err := m.Encode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for range 10 {
		again, _ := m.Encode()
		if again != first {
			t.Fatalf("encoding not stable: %q vs %q", first, again)
		}
	}

	back, err := DecodeMetadata(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.API == nil || back.API.BaseURL != "https://weather" || back.Extra["m"] != "3" {
		t.Errorf("unexpected decoded metadata: %+v", back)
	}
}

func TestIsSearchable(t *testing.T) {
	r := Resource{Active: true, Status: StatusFailed}
	if !r.IsSearchable() {
		t.Error("failed-but-active resource keeps its old vectors searchable")
	}
	r.Status = StatusInactive
	if r.IsSearchable() {
		t.Error("inactive resource must not be searchable")
	}
}
