package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_ResourceIndex(t *testing.T) {
	idx := NewIndex("resdex:resources:idx").
		Prefix("resdex:resource:").
		Tag("source_table", "type", "status").
		Numeric("updated_at").
		MustBuild()

	if len(idx.Fields) != 4 {
		t.Fatalf("fields count = %d, want 4", len(idx.Fields))
	}
	for i, name := range []string{"source_table", "type", "status"} {
		if idx.Fields[i].Name != name || idx.Fields[i].Type != IndexFieldTag {
			t.Errorf("field[%d] = %+v, want %s TAG", i, idx.Fields[i], name)
		}
	}
	if idx.Fields[3].Type != IndexFieldNumeric {
		t.Errorf("field[3] = %+v, want NUMERIC", idx.Fields[3])
	}
}

func TestIndexBuilder_VectorHNSW(t *testing.T) {
	idx := NewIndex("resdex:vectors:idx").
		Prefix("resdex:vector:").
		Tag("vector_type").
		VectorHNSW("__vector", "vector", 1024, DistanceCosine, 16, 200).
		MustBuild()

	f := idx.Fields[1]
	if f.VectorAlgo != VectorHNSW || f.VectorDim != 1024 || f.VectorDistance != DistanceCosine {
		t.Errorf("unexpected vector field %+v", f)
	}
	if f.Alias != "vector" || f.VectorM != 16 || f.VectorEFConstruct != 200 {
		t.Errorf("unexpected vector options %+v", f)
	}
}

func TestIndexBuilder_VectorFlat(t *testing.T) {
	idx := NewIndex("flat").
		VectorFlat("__vector", "vector", 8, DistanceL2, 64).
		MustBuild()

	f := idx.Fields[0]
	if f.VectorAlgo != VectorFlat || f.VectorBlockSize != 64 {
		t.Errorf("unexpected vector field %+v", f)
	}
}

func TestIndexBuilder_TagOptions(t *testing.T) {
	idx := NewIndex("tag-idx").TagWithOpts("tags", "|", true).MustBuild()
	if f := idx.Fields[0]; f.TagSeparator != "|" || !f.TagCaseSensitive {
		t.Errorf("unexpected tag options %+v", f)
	}
}

func TestIndexBuilder_BuildReturnsCopy(t *testing.T) {
	b := NewIndex("idx").Tag("a")
	first := b.MustBuild()
	b.Tag("b")
	if len(first.Fields) != 1 {
		t.Errorf("built definition changed after builder reuse: %d fields", len(first.Fields))
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder func() (*IndexDefinition, error)
		wantErr string
	}{
		{
			name:    "empty name",
			builder: func() (*IndexDefinition, error) { return NewIndex("").Tag("x").Build() },
			wantErr: "invalid index name",
		},
		{
			name:    "no fields",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx").Build() },
			wantErr: "at least one field",
		},
		{
			name: "vector without dim",
			builder: func() (*IndexDefinition, error) {
				return NewIndex("idx").VectorHNSW("v", "", 0, DistanceCosine, 0, 0).Build()
			},
			wantErr: "positive DIM",
		},
		{
			name:    "invalid characters",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx with spaces").Tag("x").Build() },
			wantErr: "invalid index name",
		},
		{
			name:    "duplicate via alias",
			builder: func() (*IndexDefinition, error) { return NewIndex("idx").Tag("vector").VectorFlat("__v", "vector", 4, DistanceIP, 0).Build() },
			wantErr: "duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	s := NewIndex("my-idx").
		Prefix("doc:").
		Tag("cat").
		VectorHNSW("__vector", "vector", 512, DistanceCosine, 0, 0).
		MustBuild().
		String()

	for _, want := range []string{"FT.CREATE my-idx ON HASH", "PREFIX doc:", "__vector AS vector VECTOR HNSW"} {
		if !strings.Contains(s, want) {
			t.Errorf("%q missing %q", s, want)
		}
	}
}

func TestParseVectorAlgorithm(t *testing.T) {
	if a, err := ParseVectorAlgorithm(" hnsw "); err != nil || a != VectorHNSW {
		t.Errorf("got %q, %v", a, err)
	}
	if a, err := ParseVectorAlgorithm("flat"); err != nil || a != VectorFlat {
		t.Errorf("got %q, %v", a, err)
	}
	if _, err := ParseVectorAlgorithm("ivf"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}
