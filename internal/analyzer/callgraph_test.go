package analyzer

import (
	"testing"

	"allocguard/internal/parser"
)

var testAllocators = map[string]bool{"malloc": true, "strdup": true}

func buildGraph(t *testing.T, src string) *CallGraph {
	t.Helper()
	tokens, err := parser.NewLexer(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	nodes := parser.Group(src, tokens)
	sites := parser.FindAllocationSites(src, tokens, testAllocators, 1)
	return BuildCallGraph(src, tokens, nodes, sites, "main")
}

func lookup(t *testing.T, g *CallGraph, name string) *FunctionNode {
	t.Helper()
	fn, ok := g.Lookup(name)
	if !ok {
		t.Fatalf("function %s not in graph", name)
	}
	return fn
}

func TestBuildCallGraphShapes(t *testing.T) {
	src := `void setup(void) { }
char *make_name(void) { return 0; }
int count(void) { return 0; }
struct p *find(int k) { return 0; }
`
	g := buildGraph(t, src)
	if len(g.Funcs) != 4 {
		t.Fatalf("got %d functions, want 4", len(g.Funcs))
	}

	tests := []struct {
		name  string
		shape ReturnShape
	}{
		{"setup", ShapeVoid},
		{"make_name", ShapePointerLike},
		{"count", ShapeOther},
		{"find", ShapePointerLike},
	}
	for _, tt := range tests {
		if fn := lookup(t, g, tt.name); fn.Shape != tt.shape {
			t.Errorf("%s: shape %s, want %s", tt.name, fn.Shape, tt.shape)
		}
	}
}

func TestBuildCallGraphReturnType(t *testing.T) {
	tests := []struct {
		src        string
		name       string
		specifiers string
		returnType string
	}{
		{"static const char *label(int k) { return 0; }\n", "label", "static", "const char *"},
		{"char *dup_one(void) { return 0; }\n", "dup_one", "", "char *"},
		{"static inline unsigned hash(int k) { return 0; }\n", "hash", "static inline", "unsigned"},
		{"extern void touch(void) { }\n", "touch", "extern", "void"},
	}
	for _, tt := range tests {
		g := buildGraph(t, tt.src)
		fn := lookup(t, g, tt.name)
		if fn.Specifiers != tt.specifiers {
			t.Errorf("%s: Specifiers = %q, want %q", tt.name, fn.Specifiers, tt.specifiers)
		}
		if fn.ReturnType != tt.returnType {
			t.Errorf("%s: ReturnType = %q, want %q", tt.name, fn.ReturnType, tt.returnType)
		}
	}
}

func TestBuildCallGraphReverseEdges(t *testing.T) {
	src := `void leaf(void) { }
void mid(void) { leaf(); }
void top(void) { mid(); leaf(); leaf(); }
`
	g := buildGraph(t, src)

	leaf := lookup(t, g, "leaf")
	if len(leaf.Callers) != 2 {
		t.Fatalf("leaf has %d callers, want 2 (deduplicated)", len(leaf.Callers))
	}
	mid := lookup(t, g, "mid")
	if len(mid.Callers) != 1 {
		t.Fatalf("mid has %d callers, want 1", len(mid.Callers))
	}
	if g.Funcs[mid.Callers[0]].Name != "top" {
		t.Errorf("mid's caller is %s, want top", g.Funcs[mid.Callers[0]].Name)
	}
}

func TestBuildCallGraphIgnoresSelfAndUnknown(t *testing.T) {
	src := `void rec(int n) { rec(n - 1); printf("x"); }
`
	g := buildGraph(t, src)
	rec := lookup(t, g, "rec")
	if len(rec.Callers) != 0 {
		t.Errorf("rec has %d callers, want 0 (self-calls excluded)", len(rec.Callers))
	}
}

func TestBuildCallGraphSiteAttachment(t *testing.T) {
	src := `void a(void) { char *p = malloc(1); }
void b(void) { char *q = malloc(2); if (q == NULL) return; }
void c(void) { }
`
	g := buildGraph(t, src)

	a := lookup(t, g, "a")
	if !a.HasAllocs || !a.HasUnchecked() {
		t.Error("a should have an unchecked allocation")
	}
	b := lookup(t, g, "b")
	if !b.HasAllocs || b.HasUnchecked() {
		t.Error("b should have only a checked allocation")
	}
	c := lookup(t, g, "c")
	if c.HasAllocs {
		t.Error("c should have no allocations")
	}
}

func TestBuildCallGraphEntry(t *testing.T) {
	src := `void helper(void) { }
int main(void) { helper(); return 0; }
`
	g := buildGraph(t, src)
	if !lookup(t, g, "main").IsEntry {
		t.Error("main not flagged as entry")
	}
	if lookup(t, g, "helper").IsEntry {
		t.Error("helper wrongly flagged as entry")
	}
}
