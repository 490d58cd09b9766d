package ingest

import (
	"reflect"
	"testing"

	"decap/model"
)

// replay applies the diff of before and after to a project holding before
// and returns the resulting nodes by id.
func replay(t *testing.T, before, after *model.Node) map[string]model.Node {
	t.Helper()
	p := model.New()
	if before != nil {
		if err := p.Apply(model.AddNode{Node: *before}); err != nil {
			t.Fatalf("adding before failed: %v", err)
		}
	}
	for i, e := range DiffUnits(before, after) {
		if err := p.Apply(e); err != nil {
			t.Fatalf("edit %d (%T %s) failed: %v", i, e, e.TargetID(), err)
		}
	}
	out := make(map[string]model.Node)
	for _, n := range p.Nodes() {
		out[n.ID] = n
	}
	return out
}

func nodesOf(root *model.Node) map[string]model.Node {
	out := make(map[string]model.Node)
	if root == nil {
		return out
	}
	for _, n := range root.Flatten() {
		out[n.ID] = n
	}
	return out
}

func unitPtr(n model.Node) *model.Node { return &n }

func TestDiffUnits_Replays(t *testing.T) {
	base := model.SourceUnit("Main.java",
		model.Type("Main",
			model.Variable("version", "1").WithModifiers("private"),
			model.Function("getVersion()", "{", "return version;", "}").WithModifiers("public"),
			model.Function("set(int)", "{", "version = v;", "}").WithParameters("v"),
			model.Type("Inner", model.Variable("x")),
		).WithSupertypes("Base"),
	)

	tests := []struct {
		name          string
		before, after *model.Node
	}{
		{"added unit", nil, unitPtr(base)},
		{"deleted unit", unitPtr(base), nil},
		{"unchanged", unitPtr(base), unitPtr(base)},
		{"body and modifiers", unitPtr(base), unitPtr(model.SourceUnit("Main.java",
			model.Type("Main",
				model.Variable("version", "2").WithModifiers("public", "final"),
				model.Function("getVersion()", "{", "log();", "return version;", "}").WithModifiers("public"),
				model.Function("set(int)", "{", "}").WithParameters("v"),
				model.Type("Inner", model.Variable("x")),
			).WithSupertypes("Other", "Base").WithModifiers("public"),
		))},
		{"members added and removed", unitPtr(base), unitPtr(model.SourceUnit("Main.java",
			model.Type("Main",
				model.Variable("version", "1").WithModifiers("private"),
				model.Function("isVersion()").WithModifiers("public"),
				model.Type("Other", model.Function("run()")),
			).WithSupertypes("Base"),
		))},
		{"kind and parameter changes", unitPtr(base), unitPtr(model.SourceUnit("Main.java",
			model.Type("Main",
				model.Variable("version", "1").WithModifiers("private"),
				model.Function("getVersion()", "{", "return version;", "}").WithModifiers("public"),
				model.Function("set(int)", "{", "version = value;", "}").WithParameters("value"),
				model.Function("Inner"),
			).WithSupertypes("Base"),
		))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := replay(t, tt.before, tt.after)
			want := nodesOf(tt.after)
			if !reflect.DeepEqual(got, want) {
				t.Errorf("replayed model differs\nwant %v\ngot  %v", want, got)
			}
		})
	}
}

func TestDiffUnits_EditShapes(t *testing.T) {
	before := model.SourceUnit("Main.java",
		model.Variable("version").WithModifiers("private"),
		model.Function("get()", "return 0;"),
		model.Function("gone()"),
	)
	after := model.SourceUnit("Main.java",
		model.Variable("version").WithModifiers("public"),
		model.Function("get()", "return version;"),
		model.Function("added()"),
	)

	edits := DiffUnits(&before, &after)
	if len(edits) != 4 {
		t.Fatalf("expected 4 edits, got %d: %#v", len(edits), edits)
	}
	if e, ok := edits[0].(model.RemoveNode); !ok || e.ID != "Main.java:gone()" {
		t.Errorf("expected removal first, got %#v", edits[0])
	}
	if e, ok := edits[1].(model.AddNode); !ok || e.Node.ID != "Main.java:added()" {
		t.Errorf("expected addition second, got %#v", edits[1])
	}
	fn, ok := edits[2].(model.EditFunction)
	if !ok || fn.ID != "Main.java:get()" || !fn.Modifiers.IsZero() {
		t.Fatalf("expected body-only function edit, got %#v", edits[2])
	}
	if want := []model.LineEdit{{Index: 0, Remove: 1, Insert: []string{"return version;"}}}; !reflect.DeepEqual(fn.Body, want) {
		t.Errorf("expected %v, got %v", want, fn.Body)
	}
	v, ok := edits[3].(model.EditVariable)
	if !ok || !reflect.DeepEqual(v.Modifiers, model.SetDelta{Removed: []string{"private"}, Added: []string{"public"}}) {
		t.Errorf("unexpected variable edit %#v", edits[3])
	}
}

func TestLineEdits(t *testing.T) {
	tests := []struct {
		before, after []string
	}{
		{nil, nil},
		{nil, []string{"a", "b"}},
		{[]string{"a", "b"}, nil},
		{[]string{"a", "b", "c"}, []string{"a", "x", "c"}},
		{[]string{"a", "b", "c", "d"}, []string{"x", "b", "d", "e"}},
		{[]string{"{", "}"}, []string{"{", "return 1;", "return 2;", "}"}},
		{[]string{"a", "", "a"}, []string{"", "a", "b", ""}},
	}

	for _, tt := range tests {
		edits := lineEdits(tt.before, tt.after)
		got := model.ApplyLineEdits(tt.before, edits)
		want := tt.after
		if len(want) == 0 {
			want = nil
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("lineEdits(%q, %q) = %v replays to %q", tt.before, tt.after, edits, got)
		}
	}

	if edits := lineEdits([]string{"a"}, []string{"a"}); edits != nil {
		t.Errorf("expected no edits for equal input, got %v", edits)
	}
}
