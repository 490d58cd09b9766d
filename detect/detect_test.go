package detect

import (
	"reflect"
	"testing"

	"decap/model"
	"decap/transaction"
)

// step applies tx to a clone of before and returns the detector events.
func step(t *testing.T, d *Detector, before *model.Project, tx *transaction.Transaction) ([]Event, *model.Project) {
	t.Helper()
	after := before.Clone()
	for _, e := range tx.Edits() {
		if err := after.Apply(e); err != nil {
			t.Fatalf("applying %T %s failed: %v", e, e.TargetID(), err)
		}
	}
	return d.Detect(before, after, tx), after
}

func summarize(events []Event) []string {
	var out []string
	for _, e := range events {
		s := string(e.Kind) + " " + e.FieldID
		if e.Kind == NewDecapsulation {
			s += " " + e.Accessor.ID
		}
		out = append(out, s)
	}
	return out
}

func baseProject(t *testing.T) *model.Project {
	t.Helper()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java", model.Variable("version"))}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	return p
}

func TestDetect_AddedAccessor(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.AddFunction("Main.java:getVersion()", "return version;")
	})

	events, _ := step(t, d, baseProject(t), tx)

	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:getVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if events[0].Accessor.Body[0] != "return version;" {
		t.Errorf("accessor should be taken from the after state, got %+v", events[0].Accessor)
	}
}

func TestDetect_UnrelatedFunction(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("2", func(b *transaction.Builder) {
		b.AddType("Main.java:Main", model.Function("isVersion()"))
		b.AddFunction("Main.java:versionCount()", "return versions;")
	})

	events, _ := step(t, d, baseProject(t), tx)
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}

func TestDetect_FieldAndAccessorTogether(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("0", func(b *transaction.Builder) {
		b.AddSourceUnit("Main.java",
			model.Variable("version"),
			model.Function("getVersion()", "return version;"),
		)
	})

	events, _ := step(t, d, model.New(), tx)
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}

func TestDetect_PublicFieldIsNotCandidate(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java", model.Variable("version").WithModifiers("public"))}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.AddFunction("Main.java:getVersion()", "return version;")
	})

	events, _ := step(t, d, p, tx)
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}

func TestDetect_AncestorScopedField(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Variable("version"),
		model.Type("Main", model.Variable("count")),
	)}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.AddFunction("Main.java:Main:bump()", "count = count + version;")
	})

	events, _ := step(t, d, p, tx)
	want := []string{
		"NEW_DECAPSULATION Main.java:Main:count Main.java:Main:bump()",
		"NEW_DECAPSULATION Main.java:version Main.java:Main:bump()",
	}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_EditFunctionIntroducesReference(t *testing.T) {
	d := NewDetector()
	p := baseProject(t)
	if err := p.Apply(model.AddNode{Node: model.Function("Main.java:setVersion()").WithModifiers("private", "static")}); err != nil {
		t.Fatal(err)
	}

	tx := transaction.Build("2", func(b *transaction.Builder) {
		b.EditFunction("Main.java:setVersion()",
			model.SetDelta{Removed: []string{"private", "static"}, Added: []string{"public"}},
			model.LineEdit{Index: 0, Insert: []string{"{ version = 1; }"}},
		)
	})
	events, after := step(t, d, p, tx)
	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:setVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	// A later edit that keeps the reference reports the pair again; the
	// analyzer keeps the first occurrence.
	tx = transaction.Build("3", func(b *transaction.Builder) {
		b.EditFunction("Main.java:setVersion()", model.SetDelta{},
			model.LineEdit{Index: 1, Insert: []string{"log(version);"}},
		)
	})
	events, _ = step(t, d, after, tx)
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_EditFunctionAfterFieldNarrowed(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Variable("version").WithModifiers("public"),
		model.Function("getVersion()", "return version;").WithModifiers("public"),
	)}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	narrow := transaction.Build("1", func(b *transaction.Builder) {
		b.EditVariable("Main.java:version", model.SetDelta{Removed: []string{"public"}, Added: []string{"private"}})
	})
	events, after := step(t, d, p, narrow)
	if len(events) != 0 {
		t.Fatalf("narrowing a field should report nothing, got %v", summarize(events))
	}

	edit := transaction.Build("2", func(b *transaction.Builder) {
		b.EditFunction("Main.java:getVersion()", model.SetDelta{Added: []string{"public"}},
			model.LineEdit{Index: 0, Insert: []string{"check();"}},
		)
	})
	events, _ = step(t, d, after, edit)
	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:getVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_AccessorMadePublicLater(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Variable("version").WithModifiers("private"),
		model.Function("getVersion()", "return version;").WithModifiers("private"),
	)}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.EditFunction("Main.java:getVersion()", model.SetDelta{Removed: []string{"private"}, Added: []string{"public"}})
	})
	events, _ := step(t, d, p, tx)
	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:getVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_FieldReaddedWithAccessor(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.RemoveNode("Main.java:version")
		b.AddVariable("Main.java:version")
		b.AddFunction("Main.java:getVersion()", "return version;")
	})

	events, _ := step(t, d, baseProject(t), tx)
	want := []string{"FIELD_REMOVED Main.java:version"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_AddThenEditInSameTransaction(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("2", func(b *transaction.Builder) {
		b.AddNode(model.Function("Main.java:setVersion()").WithModifiers("private", "static"))
		b.EditFunction("Main.java:setVersion()", model.SetDelta{},
			model.LineEdit{Index: 0, Insert: []string{"{ version = 1; }"}})
	})

	events, _ := step(t, d, baseProject(t), tx)
	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:setVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected one deduplicated event, got %v", got)
	}
}

func TestDetect_Widening(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Type("Main",
			model.Variable("version").WithModifiers("private"),
			model.Function("describe()", "return name + version;"),
			model.Function("reset()", "count = 0;"),
		),
		model.Function("helper()", "print(version);"),
	)}); err != nil {
		t.Fatal(err)
	}

	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.EditVariable("Main.java:Main:version", model.SetDelta{Removed: []string{"private"}, Added: []string{"public"}})
	})
	events, _ := step(t, d, p, tx)

	want := []string{
		"NEW_DECAPSULATION Main.java:Main:version Main.java:Main:describe()",
		"NEW_DECAPSULATION Main.java:Main:version Main.java:helper()",
	}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_WideningAlreadyPublic(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Variable("version").WithModifiers("public"),
		model.Function("get()", "return version;"),
	)}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.EditVariable("Main.java:version", model.SetDelta{Added: []string{"public", "final"}})
	})

	events, _ := step(t, d, p, tx)
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}

func TestDetect_CustomPublicModifiers(t *testing.T) {
	d := NewDetector(WithPublicModifiers("public", "protected"))
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java", model.Variable("version").WithModifiers("protected"))}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.AddFunction("Main.java:getVersion()", "return version;")
	})

	events, _ := step(t, d, p, tx)
	if len(events) != 0 {
		t.Errorf("protected counts as public here, got %v", summarize(events))
	}
}

func TestDetect_RemoveField(t *testing.T) {
	d := NewDetector()
	tx := transaction.Build("3", func(b *transaction.Builder) {
		b.RemoveNode("Main.java:version")
	})

	events, _ := step(t, d, baseProject(t), tx)
	want := []string{"FIELD_REMOVED Main.java:version"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_RemoveAncestorCascades(t *testing.T) {
	d := NewDetector()
	p := model.New()
	if err := p.Apply(model.AddNode{Node: model.SourceUnit("Main.java",
		model.Variable("a"),
		model.Type("Main", model.Variable("b"), model.Function("f()")),
	)}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("9", func(b *transaction.Builder) {
		b.RemoveNode("Main.java")
	})

	events, _ := step(t, d, p, tx)
	want := []string{"FIELD_REMOVED Main.java:Main:b", "FIELD_REMOVED Main.java:a"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_RemoveFunctionIsSilent(t *testing.T) {
	d := NewDetector()
	p := baseProject(t)
	if err := p.Apply(model.AddNode{Node: model.Function("Main.java:getVersion()", "return version;")}); err != nil {
		t.Fatal(err)
	}
	tx := transaction.Build("3", func(b *transaction.Builder) {
		b.RemoveNode("Main.java:getVersion()")
	})

	events, _ := step(t, d, p, tx)
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}

func TestDetect_AccessorNames(t *testing.T) {
	tx := transaction.Build("1", func(b *transaction.Builder) {
		b.AddFunction("Main.java:getVersion()")
	})

	events, _ := step(t, NewDetector(), baseProject(t), tx)
	if len(events) != 0 {
		t.Fatalf("lexical rule alone should not match an empty body, got %v", summarize(events))
	}

	events, _ = step(t, NewDetector(WithAccessorNames(true)), baseProject(t), tx)
	want := []string{"NEW_DECAPSULATION Main.java:version Main.java:getVersion()"}
	if got := summarize(events); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestDetect_EmptyTransaction(t *testing.T) {
	p := baseProject(t)
	events := NewDetector().Detect(p, p.Clone(), transaction.New("empty", nil))
	if len(events) != 0 {
		t.Errorf("expected no events, got %v", summarize(events))
	}
}
