package resdex

import (
	"context"
	"fmt"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/match"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// MatchOption narrows a match request.
type MatchOption func(*match.Request)

// TopK sets the number of results. Default 5, capped at 50.
func TopK(k int) MatchOption {
	return func(r *match.Request) { r.TopK = k }
}

// OfTypes restricts candidates to the given resource types.
func OfTypes(types ...ResourceType) MatchOption {
	return func(r *match.Request) {
		for _, t := range types {
			r.ResourceTypes = append(r.ResourceTypes, resource.Type(t))
		}
	}
}

// MinConfidence drops results below c.
func MinConfidence(c float64) MatchOption {
	return func(r *match.Request) { r.MinConfidence = c }
}

// Match ranks active resources against a free-text request.
// An empty query yields no results and no error.
func (c *Client) Match(ctx context.Context, query string, opts ...MatchOption) (_ []MatchResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("match", start, err) }()

	req := match.Request{Query: query}
	for _, o := range opts {
		o(&req)
	}
	results, err := c.matchSvc.Match(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	return matchFromDomain(results), nil
}

// Resource loads one registered resource by ID.
func (c *Client) Resource(ctx context.Context, id string) (_ Resource, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resource_get", start, err) }()

	r, err := c.registry.Get(ctx, id)
	if err != nil {
		return Resource{}, fmt.Errorf("get resource: %w", err)
	}
	return resourceFromDomain(&r), nil
}
