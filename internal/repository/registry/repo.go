// Package registry stores resource descriptors as Redis hashes indexed by source table, type and status.
package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/resdex/internal/db"
	"github.com/kailas-cloud/resdex/internal/db/filter"
	"github.com/kailas-cloud/resdex/internal/domain"
	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

var (
	keyPrefix = domain.KeyPrefix + "resource:"
	indexName = domain.KeyPrefix + "resources:idx"
)

const pageSize = 500

//nolint:interfacebloat // registry needs hash, counter, index and list operations
type store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	HIncrBy(ctx context.Context, key string, deltas map[string]int64) error
	Exists(ctx context.Context, key string) (bool, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	SearchList(ctx context.Context, q *db.ListQuery) (*db.SearchResult, error)
	SearchCount(ctx context.Context, index string, q *db.ListQuery) (int, error)
}

// Repo is the resource registry.
type Repo struct {
	store store
}

// New creates a registry repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// Key returns the hash key of a resource.
func Key(id string) string { return keyPrefix + id }

// EnsureIndex creates the listing index if it is missing.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	def := db.NewIndex(indexName).
		Prefix(keyPrefix).
		Tag(fieldSourceTable, fieldType, fieldStatus).
		Numeric(fieldUpdatedAt).
		MustBuild()
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create registry index: %w", err)
	}
	return nil
}

// Upsert writes the descriptive fields. Usage counters are left untouched.
func (r *Repo) Upsert(ctx context.Context, res *resource.Resource) error {
	fields, err := toHash(res)
	if err != nil {
		return fmt.Errorf("encode resource %s: %w", res.ID, err)
	}
	if err := r.store.HSet(ctx, Key(res.ID), fields); err != nil {
		return fmt.Errorf("upsert resource %s: %w", res.ID, err)
	}
	return nil
}

// SetStatus changes the lifecycle fields only.
func (r *Repo) SetStatus(ctx context.Context, id string, status resource.Status, active bool, at time.Time) error {
	fields := map[string]string{
		fieldStatus:    string(status),
		fieldActive:    boolFlag(active),
		fieldUpdatedAt: formatTime(at),
	}
	if err := r.store.HSet(ctx, Key(id), fields); err != nil {
		return fmt.Errorf("set status %s: %w", id, err)
	}
	return nil
}

// Get returns domain.ErrNotFound for an unknown ID.
func (r *Repo) Get(ctx context.Context, id string) (resource.Resource, error) {
	m, err := r.store.HGetAll(ctx, Key(id))
	if err != nil {
		return resource.Resource{}, fmt.Errorf("get resource %s: %w", id, err)
	}
	if len(m) == 0 {
		return resource.Resource{}, fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}
	return fromHash(m)
}

// GetMulti loads resources by ID in one round trip. Missing or unreadable entries are omitted.
func (r *Repo) GetMulti(ctx context.Context, ids []string) (map[string]resource.Resource, error) {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = Key(id)
	}
	hashes, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get resources: %w", err)
	}

	out := make(map[string]resource.Resource, len(hashes))
	for _, m := range hashes {
		if len(m) == 0 {
			continue
		}
		res, err := fromHash(m)
		if err != nil {
			continue
		}
		out[res.ID] = res
	}
	return out, nil
}

// ListByTables returns every registered resource whose source table is in tables.
// A nil slice lists the whole registry.
func (r *Repo) ListByTables(ctx context.Context, tables []string) ([]resource.Resource, error) {
	q := &db.ListQuery{IndexName: indexName, Filter: filter.New().Must(fieldSourceTable, tables...), Limit: pageSize}
	if tables != nil && len(q.Filter.Clauses()) == 0 {
		return nil, nil
	}

	var out []resource.Resource
	for {
		page, err := r.store.SearchList(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("list resources: %w: %w", domain.ErrRegistryUnavailable, err)
		}
		for _, e := range page.Entries {
			res, err := fromHash(e.Fields)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", e.Key, err)
			}
			if res.ID == "" {
				res.ID = strings.TrimPrefix(e.Key, keyPrefix)
			}
			out = append(out, res)
		}
		q.Offset += len(page.Entries)
		if len(page.Entries) == 0 || q.Offset >= page.Total {
			return out, nil
		}
	}
}

// CountByStatus reports registry size per status.
func (r *Repo) CountByStatus(ctx context.Context) (map[resource.Status]int, error) {
	out := make(map[resource.Status]int, 3)
	for _, st := range []resource.Status{resource.StatusActive, resource.StatusInactive, resource.StatusFailed} {
		n, err := r.store.SearchCount(ctx, indexName, &db.ListQuery{Filter: filter.New().Must(fieldStatus, string(st))})
		if err != nil {
			return nil, fmt.Errorf("count %s: %w", st, err)
		}
		out[st] = n
	}
	return out, nil
}

// ApplyOutcome adds one selected outcome to the resource's counters.
func (r *Repo) ApplyOutcome(ctx context.Context, id string, succeeded bool, responseTimeMs int64) error {
	key := Key(id)
	ok, err := r.store.Exists(ctx, key)
	if err != nil {
		return fmt.Errorf("check resource %s: %w", id, err)
	}
	if !ok {
		return fmt.Errorf("resource %s: %w", id, domain.ErrNotFound)
	}

	deltas := map[string]int64{
		fieldUsageCount:    1,
		fieldResponseTotal: max(responseTimeMs, 0),
	}
	if succeeded {
		deltas[fieldSuccessCount] = 1
	}
	if err := r.store.HIncrBy(ctx, key, deltas); err != nil {
		return fmt.Errorf("record outcome %s: %w", id, err)
	}
	return nil
}
