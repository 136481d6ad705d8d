package vector

import (
	"testing"

	"github.com/kailas-cloud/resdex/internal/domain/resource"
)

func sampleResource() *resource.Resource {
	return &resource.Resource{
		Name:         "Orders",
		Description:  "orders database",
		Capabilities: []string{"list orders", "refunds"},
	}
}

func TestSnapshot(t *testing.T) {
	r := sampleResource()
	tests := []struct {
		typ  Type
		want string
	}{
		{TypeComposite, "Orders\norders database\nlist orders, refunds"},
		{TypeName, "Orders"},
		{TypeDescription, "orders database"},
		{TypeCapabilities, "list orders, refunds"},
		{Type("BOGUS"), ""},
	}
	for _, tc := range tests {
		t.Run(string(tc.typ), func(t *testing.T) {
			if got := Snapshot(r, tc.typ); got != tc.want {
				t.Errorf("Snapshot(%s) = %q, want %q", tc.typ, got, tc.want)
			}
		})
	}
}

func TestSnapshot_CompositeSkipsEmptyParts(t *testing.T) {
	r := &resource.Resource{Name: "Bare"}
	if got := Snapshot(r, TypeComposite); got != "Bare" {
		t.Errorf("got %q", got)
	}
}

func TestHash_OnlyDependsOnSnapshot(t *testing.T) {
	before := sampleResource()
	after := sampleResource()
	after.Name = "Orders v2"

	if Hash(Snapshot(before, TypeDescription)) != Hash(Snapshot(after, TypeDescription)) {
		t.Error("description hash must not change when only name changes")
	}
	if Hash(Snapshot(before, TypeComposite)) == Hash(Snapshot(after, TypeComposite)) {
		t.Error("composite hash must change when name changes")
	}
	if Hash(Snapshot(before, TypeName)) == Hash(Snapshot(after, TypeName)) {
		t.Error("name hash must change when name changes")
	}
	if len(Hash("x")) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(Hash("x")))
	}
}

func TestDefaultPlan_CompositeFirst(t *testing.T) {
	plan := DefaultPlan()
	for _, rt := range resource.Types() {
		types := plan.TypesFor(rt)
		if len(types) == 0 || types[0] != TypeComposite {
			t.Errorf("%s: expected COMPOSITE first, got %v", rt, types)
		}
	}
}

func TestParsePlan_ForcesComposite(t *testing.T) {
	plan, err := ParsePlan(map[string][]string{"api": {"capabilities", "NAME", "name"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := plan.TypesFor(resource.TypeAPI)
	want := []Type{TypeComposite, TypeCapabilities, TypeName}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
	if len(plan.TypesFor(resource.TypeDatabase)) != 3 {
		t.Error("unlisted types keep defaults")
	}
}

func TestParsePlan_Errors(t *testing.T) {
	if _, err := ParsePlan(map[string][]string{"QUEUE": {"NAME"}}); err == nil {
		t.Error("expected error for unknown resource type")
	}
	if _, err := ParsePlan(map[string][]string{"API": {"SUMMARY"}}); err == nil {
		t.Error("expected error for unknown vector type")
	}
}
