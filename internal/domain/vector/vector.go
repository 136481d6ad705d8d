package vector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

// Type selects which fields of a resource feed an embedding.
type Type string

const (
	// TypeComposite embeds name, description and capabilities together. Required for every active resource.
	TypeComposite Type = "COMPOSITE"
	// TypeName embeds the name only.
	TypeName Type = "NAME"
	// TypeDescription embeds the description only.
	TypeDescription Type = "DESCRIPTION"
	// TypeCapabilities embeds the capability list only.
	TypeCapabilities Type = "CAPABILITIES"
)

// IsValid checks if the vector type is known.
func (t Type) IsValid() bool {
	switch t {
	case TypeComposite, TypeName, TypeDescription, TypeCapabilities:
		return true
	}
	return false
}

// Vector is one embedding of one resource.
type Vector struct {
	ResourceID      string
	Type            Type
	Embedding       []float32
	ContentSnapshot string
	ContentHash     string
	CreatedAt       time.Time
}

// Snapshot returns the exact text embedded for the given vector type.
func Snapshot(r *resource.Resource, t Type) string {
	switch t {
	case TypeComposite:
		parts := []string{r.Name}
		if r.Description != "" {
			parts = append(parts, r.Description)
		}
		if len(r.Capabilities) > 0 {
			parts = append(parts, strings.Join(r.Capabilities, ", "))
		}
		return strings.Join(parts, "\n")
	case TypeName:
		return r.Name
	case TypeDescription:
		return r.Description
	case TypeCapabilities:
		return strings.Join(r.Capabilities, ", ")
	}
	return ""
}

// Hash returns the content hash of a snapshot (sha256, hex).
func Hash(snapshot string) string {
	h := sha256.Sum256([]byte(snapshot))
	return hex.EncodeToString(h[:])
}

// Plan maps each resource type to the vector types generated for it.
type Plan map[resource.Type][]Type

// DefaultPlan returns the vector types generated per resource type.
func DefaultPlan() Plan {
	return Plan{
		resource.TypeDatabase:         {TypeComposite, TypeName, TypeDescription},
		resource.TypeAPI:              {TypeComposite, TypeName, TypeDescription},
		resource.TypeKnowledgeSnippet: {TypeComposite, TypeDescription},
		resource.TypeTool:             {TypeComposite, TypeName, TypeDescription},
	}
}

// ParsePlan builds a plan from config names, e.g. {"API": ["NAME","CAPABILITIES"]}.
// COMPOSITE is always forced to the front; unlisted resource types keep their defaults.
func ParsePlan(raw map[string][]string) (Plan, error) {
	plan := DefaultPlan()
	for typeName, names := range raw {
		rt, err := resource.ParseType(typeName)
		if err != nil {
			return nil, err
		}
		types := []Type{TypeComposite}
		seen := map[Type]bool{TypeComposite: true}
		for _, n := range names {
			vt := Type(strings.ToUpper(strings.TrimSpace(n)))
			if !vt.IsValid() {
				return nil, fmt.Errorf("unknown vector type %q for %s", n, rt)
			}
			if seen[vt] {
				continue
			}
			seen[vt] = true
			types = append(types, vt)
		}
		plan[rt] = types
	}
	return plan, nil
}

// TypesFor returns the vector types for a resource type, COMPOSITE first.
func (p Plan) TypesFor(t resource.Type) []Type {
	if types, ok := p[t]; ok && len(types) > 0 {
		return types
	}
	return []Type{TypeComposite}
}

// Hit is one nearest-neighbor result over COMPOSITE vectors.
type Hit struct {
	ResourceID string
	Similarity float64 // 1 - cosine distance, clamped to [0,1]
}
