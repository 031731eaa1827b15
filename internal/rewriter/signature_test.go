package rewriter

import (
	"testing"

	"allocguard/internal/analyzer"
	"allocguard/internal/config"
	"allocguard/internal/parser"
)

func signatureFor(t *testing.T, src, name string) (string, Transform, error) {
	t.Helper()
	cfg := config.Default()
	tokens, err := parser.NewLexer(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	nodes := parser.Group(src, tokens)
	g := analyzer.BuildCallGraph(src, tokens, nodes, nil, cfg.EntrySymbol)
	fn, ok := g.Lookup(name)
	if !ok {
		t.Fatalf("function %s not found", name)
	}
	return RewriteSignature(src, tokens, fn, cfg)
}

func TestRewriteSignatureHeaders(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		fn     string
		header string
		kind   TransformKind
	}{
		{
			"void no params",
			"void tick() { }", "tick",
			"int tick()", TransformVoidToInt,
		},
		{
			"void with params",
			"void fill(char *dst, int n) { }", "fill",
			"int fill(char *dst, int n)", TransformVoidToInt,
		},
		{
			"pointer void params",
			"char *gen(void) { return 0; }", "gen",
			"int gen(char **out)", TransformPointerToOut,
		},
		{
			"pointer with params",
			"struct node *find(struct tree *t, int k) { return 0; }", "find",
			"int find(struct tree *t, int k, struct node **out)", TransformPointerToOut,
		},
		{
			"double pointer return",
			"char **rows(int n) { return 0; }", "rows",
			"int rows(int n, char ***out)", TransformPointerToOut,
		},
		{
			"static void",
			"static void fill(void) { }", "fill",
			"static int fill(void)", TransformVoidToInt,
		},
		{
			"static pointer",
			"static char *dup_one(void) { return 0; }", "dup_one",
			"static int dup_one(char **out)", TransformPointerToOut,
		},
		{
			"static inline pointer with params",
			"static inline struct node *mk(int k) { return 0; }", "mk",
			"static inline int mk(int k, struct node **out)", TransformPointerToOut,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header, tr, err := signatureFor(t, tt.src, tt.fn)
			if err != nil {
				t.Fatalf("RewriteSignature failed: %v", err)
			}
			if header != tt.header {
				t.Errorf("header %q, want %q", header, tt.header)
			}
			if tr.Kind != tt.kind {
				t.Errorf("kind %s, want %s", tr.Kind, tt.kind)
			}
		})
	}
}

func TestRewriteSignatureEntryUnchanged(t *testing.T) {
	header, tr, err := signatureFor(t, "int main(int argc, char **argv) { return 0; }", "main")
	if err != nil {
		t.Fatalf("RewriteSignature failed: %v", err)
	}
	if header != "int main(int argc, char **argv)" {
		t.Errorf("header %q", header)
	}
	if tr.Kind != TransformNone {
		t.Errorf("kind %s, want none", tr.Kind)
	}
}

func TestRewriteSignatureRejectsOtherShapes(t *testing.T) {
	if _, _, err := signatureFor(t, "int total(void) { return 0; }", "total"); err == nil {
		t.Error("expected a shape error for an int-returning function")
	}
}
