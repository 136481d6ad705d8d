package source

import (
	"strconv"
	"time"

	"gorm.io/datatypes"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// Source table names.
const (
	TableDatabaseConnections = "database_connections"
	TableAPIDefinitions      = "api_definitions"
	TableKnowledgeSnippets   = "knowledge_snippets"
	TableToolDefinitions     = "tool_definitions"
)

// Tables lists every table the engine knows how to read.
func Tables() []string {
	return []string{TableDatabaseConnections, TableAPIDefinitions, TableKnowledgeSnippets, TableToolDefinitions}
}

// DatabaseConnection is a row of database_connections.
type DatabaseConnection struct {
	ID           uint                        `gorm:"primaryKey"`
	Name         string                      `gorm:"column:name;not null"`
	Description  string                      `gorm:"column:description"`
	Engine       string                      `gorm:"column:engine"`
	Host         string                      `gorm:"column:host"`
	Port         int                         `gorm:"column:port"`
	DatabaseName string                      `gorm:"column:database_name"`
	SchemaName   string                      `gorm:"column:schema_name"`
	Capabilities datatypes.JSONSlice[string] `gorm:"column:capabilities"`
	Tags         datatypes.JSONSlice[string] `gorm:"column:tags"`
	IsActive     bool                        `gorm:"column:is_active;not null;index"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (DatabaseConnection) TableName() string { return TableDatabaseConnections }

func (m *DatabaseConnection) toResource() (resource.Resource, error) {
	return resource.New(resource.TypeDatabase, TableDatabaseConnections, rowID(m.ID),
		m.Name, m.Description, m.Capabilities, m.Tags,
		resource.Metadata{Database: &resource.DatabaseMetadata{
			Engine:   m.Engine,
			Host:     m.Host,
			Port:     m.Port,
			Database: m.DatabaseName,
			Schema:   m.SchemaName,
		}})
}

// APIDefinition is a row of api_definitions.
type APIDefinition struct {
	ID           uint                        `gorm:"primaryKey"`
	Name         string                      `gorm:"column:name;not null"`
	Description  string                      `gorm:"column:description"`
	BaseURL      string                      `gorm:"column:base_url"`
	Method       string                      `gorm:"column:method"`
	Path         string                      `gorm:"column:path"`
	AuthType     string                      `gorm:"column:auth_type"`
	Capabilities datatypes.JSONSlice[string] `gorm:"column:capabilities"`
	Tags         datatypes.JSONSlice[string] `gorm:"column:tags"`
	IsActive     bool                        `gorm:"column:is_active;not null;index"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (APIDefinition) TableName() string { return TableAPIDefinitions }

func (m *APIDefinition) toResource() (resource.Resource, error) {
	return resource.New(resource.TypeAPI, TableAPIDefinitions, rowID(m.ID),
		m.Name, m.Description, m.Capabilities, m.Tags,
		resource.Metadata{API: &resource.APIMetadata{
			BaseURL:  m.BaseURL,
			Method:   m.Method,
			Path:     m.Path,
			AuthType: m.AuthType,
		}})
}

// KnowledgeSnippet is a row of knowledge_snippets.
// The title names the resource and the question doubles as its description.
type KnowledgeSnippet struct {
	ID           uint                        `gorm:"primaryKey"`
	Title        string                      `gorm:"column:title;not null"`
	Question     string                      `gorm:"column:question"`
	Query        string                      `gorm:"column:query"`
	ConnectionID *uint                       `gorm:"column:connection_id"`
	Tags         datatypes.JSONSlice[string] `gorm:"column:tags"`
	IsActive     bool                        `gorm:"column:is_active;not null;index"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (KnowledgeSnippet) TableName() string { return TableKnowledgeSnippets }

func (m *KnowledgeSnippet) toResource() (resource.Resource, error) {
	md := &resource.SnippetMetadata{Question: m.Question, Query: m.Query}
	if m.ConnectionID != nil {
		md.ConnectionID = rowID(*m.ConnectionID)
	}
	return resource.New(resource.TypeKnowledgeSnippet, TableKnowledgeSnippets, rowID(m.ID),
		m.Title, m.Question, nil, m.Tags, resource.Metadata{Snippet: md})
}

// ToolDefinition is a row of tool_definitions.
type ToolDefinition struct {
	ID           uint                        `gorm:"primaryKey"`
	Name         string                      `gorm:"column:name;not null"`
	Description  string                      `gorm:"column:description"`
	Endpoint     string                      `gorm:"column:endpoint"`
	InputSchema  string                      `gorm:"column:input_schema"`
	Capabilities datatypes.JSONSlice[string] `gorm:"column:capabilities"`
	Tags         datatypes.JSONSlice[string] `gorm:"column:tags"`
	IsActive     bool                        `gorm:"column:is_active;not null;index"`
	CreatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time                   `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (ToolDefinition) TableName() string { return TableToolDefinitions }

func (m *ToolDefinition) toResource() (resource.Resource, error) {
	return resource.New(resource.TypeTool, TableToolDefinitions, rowID(m.ID),
		m.Name, m.Description, m.Capabilities, m.Tags,
		resource.Metadata{Tool: &resource.ToolMetadata{
			Endpoint:    m.Endpoint,
			InputSchema: m.InputSchema,
		}})
}

func rowID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
