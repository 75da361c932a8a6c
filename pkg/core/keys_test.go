package core

import "testing"

func TestKeyRendering(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{name: "node listing", key: NodeListKey(), want: "all-nids"},
		{name: "node", key: NodeKey("n1"), want: "nid->node:n1"},
		{name: "origin index", key: OriginIndexKey("example.com/page"), want: "origin->nid:example.com/page"},
		{name: "edge list", key: EdgeListKey("n1"), want: "nid->edge:n1"},
		{name: "activity", key: ActivityKey("example.com/page"), want: "origin->activity:example.com/page"},
		{name: "progress", key: ProgressKey(Pipeline{Key: "mail"}), want: "ext-pipe:mail"},
		{name: "pipeline index", key: PipelineIndexKey(Pipeline{Key: "mail"}), want: "ext-pipe-id->nid:mail"},
		{name: "association list", key: AssociationListKey("example.com/page"), want: "origin->ext-assoc:example.com/page"},
		{name: "similarity", key: SimilarityKey("n1"), want: "nid->sim-search-node:n1"},
		{name: "account", key: AccountKey(), want: "account-info"},
	}

	seen := make(map[string]string)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
			if prev, ok := seen[tt.key.String()]; ok {
				t.Errorf("key collides with %q", prev)
			}
			seen[tt.key.String()] = tt.name
		})
	}
}

func TestKeyDeterminism(t *testing.T) {
	if NodeKey("a").String() != NodeKey("a").String() {
		t.Error("same input produced different keys")
	}
	if NodeKey("a") == NodeKey("b") {
		t.Error("different refs produced equal keys")
	}
	// same ref under different kinds must not collide
	if NodeKey("x").String() == EdgeListKey("x").String() {
		t.Error("kinds collide for the same ref")
	}
}

func TestPipelineKeyIgnoresName(t *testing.T) {
	a := ProgressKey(Pipeline{Key: "mail", Name: "Mail Importer"})
	b := ProgressKey(Pipeline{Key: "mail"})
	if a.String() != b.String() {
		t.Errorf("pipeline name leaked into the key: %q vs %q", a.String(), b.String())
	}
}

func TestKeyAccessors(t *testing.T) {
	k := OriginIndexKey("o1")
	if k.Kind() != KindOriginIndex {
		t.Errorf("Kind() = %q, want %q", k.Kind(), KindOriginIndex)
	}
	if k.Ref() != "o1" {
		t.Errorf("Ref() = %q, want %q", k.Ref(), "o1")
	}
	if AccountKey().Ref() != "" {
		t.Errorf("singleton Ref() = %q, want empty", AccountKey().Ref())
	}
}
