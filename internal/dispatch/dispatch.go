// Package dispatch routes a match result to the handler for its resource type.
// Execution is the caller's concern; this package only selects.
package dispatch

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// DatabaseHandler executes against a database connection.
type DatabaseHandler interface {
	HandleDatabase(ctx context.Context, r resource.Resource, meta *resource.DatabaseMetadata) error
}

// APIHandler calls an HTTP API.
type APIHandler interface {
	HandleAPI(ctx context.Context, r resource.Resource, meta *resource.APIMetadata) error
}

// SnippetHandler runs a curated knowledge snippet.
type SnippetHandler interface {
	HandleSnippet(ctx context.Context, r resource.Resource, meta *resource.SnippetMetadata) error
}

// ToolHandler invokes a generic tool.
type ToolHandler interface {
	HandleTool(ctx context.Context, r resource.Resource, meta *resource.ToolMetadata) error
}

// Handlers holds one optional handler per resource type.
type Handlers struct {
	Database DatabaseHandler
	API      APIHandler
	Snippet  SnippetHandler
	Tool     ToolHandler
}

// Dispatcher selects and invokes handlers.
type Dispatcher struct {
	h Handlers
}

// New creates a Dispatcher.
func New(h Handlers) *Dispatcher {
	return &Dispatcher{h: h}
}

// Dispatch invokes the handler matching the result's resource type.
// A missing handler or an unknown type yields domain.ErrNoHandler.
func (d *Dispatcher) Dispatch(ctx context.Context, res match.Result) error {
	r := res.Resource
	var err error
	switch r.Type {
	case resource.TypeDatabase:
		if d.h.Database == nil {
			return noHandler(r.Type)
		}
		err = d.h.Database.HandleDatabase(ctx, r, r.Metadata.Database)
	case resource.TypeAPI:
		if d.h.API == nil {
			return noHandler(r.Type)
		}
		err = d.h.API.HandleAPI(ctx, r, r.Metadata.API)
	case resource.TypeKnowledgeSnippet:
		if d.h.Snippet == nil {
			return noHandler(r.Type)
		}
		err = d.h.Snippet.HandleSnippet(ctx, r, r.Metadata.Snippet)
	case resource.TypeTool:
		if d.h.Tool == nil {
			return noHandler(r.Type)
		}
		err = d.h.Tool.HandleTool(ctx, r, r.Metadata.Tool)
	default:
		return noHandler(r.Type)
	}
	if err != nil {
		return fmt.Errorf("dispatch %s: %w", r.ID, err)
	}
	return nil
}

// Supports reports whether a handler is registered for t.
func (d *Dispatcher) Supports(t resource.Type) bool {
	switch t {
	case resource.TypeDatabase:
		return d.h.Database != nil
	case resource.TypeAPI:
		return d.h.API != nil
	case resource.TypeKnowledgeSnippet:
		return d.h.Snippet != nil
	case resource.TypeTool:
		return d.h.Tool != nil
	}
	return false
}

func noHandler(t resource.Type) error {
	return fmt.Errorf("%q: %w", t, domain.ErrNoHandler)
}
