package analyzer

import "testing"

func TestPropagateSeeds(t *testing.T) {
	src := `void unchecked(void) { char *p = malloc(1); }
void checked(void) { char *p = malloc(1); if (p == NULL) return; }
int wrong_shape(void) { char *p = malloc(1); return 0; }
void clean(void) { }
`
	g := buildGraph(t, src)
	n := Propagate(g)
	if n != 1 {
		t.Fatalf("Propagate marked %d, want 1", n)
	}

	if !lookup(t, g, "unchecked").Marked {
		t.Error("unchecked not marked")
	}
	for _, name := range []string{"checked", "wrong_shape", "clean"} {
		if lookup(t, g, name).Marked {
			t.Errorf("%s wrongly marked", name)
		}
	}
}

func TestPropagateUpwardClosure(t *testing.T) {
	src := `void leaf(void) { malloc(1); }
void mid(void) { leaf(); }
void top(void) { mid(); }
void unrelated(void) { }
`
	g := buildGraph(t, src)
	Propagate(g)

	for _, name := range []string{"leaf", "mid", "top"} {
		if !lookup(t, g, name).Marked {
			t.Errorf("%s not marked", name)
		}
	}
	if lookup(t, g, "unrelated").Marked {
		t.Error("unrelated wrongly marked")
	}
}

func TestPropagateEntryTerminal(t *testing.T) {
	src := `void a(void) { malloc(1); }
int main(void) { a(); return 0; }
int outer(void) { return main(); }
`
	g := buildGraph(t, src)
	Propagate(g)

	if !lookup(t, g, "main").Marked {
		t.Error("main must be marked so its body gets the call rewrite")
	}
	// The walk stops at the entry symbol: callers of main stay untouched.
	if lookup(t, g, "outer").Marked {
		t.Error("propagation must not continue past the entry symbol")
	}
}

func TestPropagateCycleSafety(t *testing.T) {
	src := `void a(void) { char *p = malloc(1); b(); }
void b(void) { char *q = malloc(1); a(); }
`
	g := buildGraph(t, src)
	n := Propagate(g)
	if n != 2 {
		t.Fatalf("Propagate marked %d, want 2", n)
	}
	if !lookup(t, g, "a").Marked || !lookup(t, g, "b").Marked {
		t.Error("both members of the cycle must be marked")
	}
}

func TestPropagateDiamond(t *testing.T) {
	src := `void leaf(void) { malloc(1); }
void left(void) { leaf(); }
void right(void) { leaf(); }
void top(void) { left(); right(); }
`
	g := buildGraph(t, src)
	n := Propagate(g)
	if n != 4 {
		t.Fatalf("Propagate marked %d, want 4", n)
	}
}
