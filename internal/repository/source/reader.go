// Package source reads resource descriptors from the relational systems of record.
package source

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

type row interface {
	DatabaseConnection | APIDefinition | KnowledgeSnippet | ToolDefinition
}

// Reader loads the active rows of one table and converts them to descriptors.
type Reader[M row] struct {
	db      *gorm.DB
	table   string
	convert func(*M) (resource.Resource, error)
	logger  *zap.Logger
}

// Table returns the source table name.
func (r *Reader[M]) Table() string { return r.table }

// Fetch returns every active row as a validated descriptor.
// Rows that fail validation are logged and skipped; a query failure fails the whole table.
func (r *Reader[M]) Fetch(ctx context.Context) ([]resource.Resource, error) {
	var rows []M
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, domain.NewSourceError(r.table, err)
	}

	out := make([]resource.Resource, 0, len(rows))
	for i := range rows {
		res, err := r.convert(&rows[i])
		if err != nil {
			r.logger.Warn("skipping invalid source row",
				zap.String("table", r.table), zap.Error(err))
			continue
		}
		out = append(out, res)
	}
	return out, nil
}

// Ping verifies the table is queryable.
func (r *Reader[M]) Ping(ctx context.Context) error {
	var n int64
	if err := r.db.WithContext(ctx).Model(new(M)).Limit(1).Count(&n).Error; err != nil {
		return domain.NewSourceError(r.table, err)
	}
	return nil
}

// NewDatabaseConnections reads database_connections.
func NewDatabaseConnections(db *gorm.DB, logger *zap.Logger) *Reader[DatabaseConnection] {
	return &Reader[DatabaseConnection]{db: db, table: TableDatabaseConnections,
		convert: (*DatabaseConnection).toResource, logger: logger}
}

// NewAPIDefinitions reads api_definitions.
func NewAPIDefinitions(db *gorm.DB, logger *zap.Logger) *Reader[APIDefinition] {
	return &Reader[APIDefinition]{db: db, table: TableAPIDefinitions,
		convert: (*APIDefinition).toResource, logger: logger}
}

// NewKnowledgeSnippets reads knowledge_snippets.
func NewKnowledgeSnippets(db *gorm.DB, logger *zap.Logger) *Reader[KnowledgeSnippet] {
	return &Reader[KnowledgeSnippet]{db: db, table: TableKnowledgeSnippets,
		convert: (*KnowledgeSnippet).toResource, logger: logger}
}

// NewToolDefinitions reads tool_definitions.
func NewToolDefinitions(db *gorm.DB, logger *zap.Logger) *Reader[ToolDefinition] {
	return &Reader[ToolDefinition]{db: db, table: TableToolDefinitions,
		convert: (*ToolDefinition).toResource, logger: logger}
}

// TableReader is the non-generic view shared by every Reader.
type TableReader interface {
	Table() string
	Fetch(ctx context.Context) ([]resource.Resource, error)
	Ping(ctx context.Context) error
}

// Readers builds readers for the enabled tables, in the given order.
// An empty list enables every known table.
func Readers(db *gorm.DB, enabled []string, logger *zap.Logger) ([]TableReader, error) {
	if len(enabled) == 0 {
		enabled = Tables()
	}
	out := make([]TableReader, 0, len(enabled))
	for _, t := range enabled {
		switch t {
		case TableDatabaseConnections:
			out = append(out, NewDatabaseConnections(db, logger))
		case TableAPIDefinitions:
			out = append(out, NewAPIDefinitions(db, logger))
		case TableKnowledgeSnippets:
			out = append(out, NewKnowledgeSnippets(db, logger))
		case TableToolDefinitions:
			out = append(out, NewToolDefinitions(db, logger))
		default:
			return nil, fmt.Errorf("unknown source table %q", t)
		}
	}
	return out, nil
}

// Migrate creates the source tables. Used for local SQLite setups and tests.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&DatabaseConnection{}, &APIDefinition{}, &KnowledgeSnippet{}, &ToolDefinition{})
}
