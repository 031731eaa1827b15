package analyzer

import (
	"strings"

	"allocguard/internal/parser"
)

// ReturnShape is the coarse classification of a function's return type.
type ReturnShape int

const (
	ShapeOther ReturnShape = iota
	ShapeVoid
	ShapePointerLike
)

func (s ReturnShape) String() string {
	switch s {
	case ShapeVoid:
		return "void"
	case ShapePointerLike:
		return "pointer"
	default:
		return "other"
	}
}

// FunctionNode is one function definition in the translation unit.
type FunctionNode struct {
	Name       string
	Node       int // index of the syntax node
	First      int // first token of the definition
	Last       int // closing body brace token
	NameTok    int // function name identifier token
	ParenOpen  int // parameter list '('
	ParenClose int // parameter list ')'
	Body       int // opening body brace token
	Shape      ReturnShape
	Specifiers string // storage-class and function specifiers, e.g. "static inline"
	ReturnType string // return type text with specifiers stripped, e.g. "char *"
	IsEntry    bool
	HasAllocs  bool
	Sites      []parser.AllocationSite
	Marked     bool
	Callers    []int // reverse edges: indices of functions calling this one
}

// HasUnchecked reports whether any allocation site in the body lacks a guard.
func (f *FunctionNode) HasUnchecked() bool {
	for _, s := range f.Sites {
		if !s.Checked {
			return true
		}
	}
	return false
}

// CallGraph is an arena of function nodes; edges are indices into it.
//
// Functions are matched by name over a single translation unit. There is no
// symbol table and no scoping: same-named functions in other files, shadowed
// locals and calls through function pointers are not distinguished. This is
// an accepted false-positive/negative source.
type CallGraph struct {
	Funcs  []*FunctionNode
	byName map[string]int
}

// Lookup returns the function with the given name, if known.
func (g *CallGraph) Lookup(name string) (*FunctionNode, bool) {
	i, ok := g.byName[name]
	if !ok {
		return nil, false
	}
	return g.Funcs[i], true
}

// BuildCallGraph extracts a function node from every Function syntax node and
// records reverse call edges (callee to callers) discovered by scanning each
// body for `<identifier> (` against the known function names. Function nodes
// whose header does not fit the expected shape are skipped; the grouper keeps
// their text intact either way.
func BuildCallGraph(src string, tokens []parser.Token, nodes []parser.SyntaxNode, sites []parser.AllocationSite, entry string) *CallGraph {
	g := &CallGraph{byName: make(map[string]int)}

	for ni, node := range nodes {
		if node.Kind != parser.NodeFunction {
			continue
		}
		fn, ok := extractFunction(src, tokens, node, entry)
		if !ok {
			continue
		}
		fn.Node = ni
		g.byName[fn.Name] = len(g.Funcs)
		g.Funcs = append(g.Funcs, fn)
	}

	// Attach allocation sites to the body they appear in.
	for _, site := range sites {
		for _, fn := range g.Funcs {
			if site.TokenIndex > fn.Body && site.TokenIndex < fn.Last {
				fn.Sites = append(fn.Sites, site)
				fn.HasAllocs = true
				break
			}
		}
	}

	// Reverse edges.
	for ci, caller := range g.Funcs {
		for i := caller.Body + 1; i < caller.Last; i++ {
			if tokens[i].Type != parser.TokenIdent {
				continue
			}
			name := tokens[i].Text(src)
			if name == caller.Name {
				continue
			}
			ti, known := g.byName[name]
			if !known {
				continue
			}
			j := parser.NextSignificant(tokens, i+1, caller.Last)
			if j < 0 || tokens[j].Text(src) != "(" {
				continue
			}
			callee := g.Funcs[ti]
			if !containsIndex(callee.Callers, ci) {
				callee.Callers = append(callee.Callers, ci)
			}
		}
	}

	return g
}

func extractFunction(src string, tokens []parser.Token, node parser.SyntaxNode, entry string) (*FunctionNode, bool) {
	// First '(' in the node opens the parameter list.
	parenOpen := -1
	for i := node.First; i <= node.Last; i++ {
		if tokens[i].Type == parser.TokenPunctuation && tokens[i].Text(src) == "(" {
			parenOpen = i
			break
		}
	}
	if parenOpen < 0 {
		return nil, false
	}

	nameTok := parser.PrevSignificant(tokens, parenOpen-1)
	if nameTok < node.First || tokens[nameTok].Type != parser.TokenIdent {
		return nil, false
	}

	parenClose, ok := parser.MatchDelims(src, tokens, parenOpen, node.Last+1, "(", ")")
	if !ok {
		return nil, false
	}

	body := -1
	for i := parenClose + 1; i <= node.Last; i++ {
		if tokens[i].Type == parser.TokenPunctuation && tokens[i].Text(src) == "{" {
			body = i
			break
		}
	}
	if body < 0 {
		return nil, false
	}

	specifiers, typeStart := splitSpecifiers(src, tokens, node.First, nameTok)
	returnType := ""
	if typeStart >= 0 {
		returnType = strings.TrimSpace(src[tokens[typeStart].Start:tokens[nameTok].Start])
	}
	fn := &FunctionNode{
		Name:       tokens[nameTok].Text(src),
		First:      node.First,
		Last:       node.Last,
		NameTok:    nameTok,
		ParenOpen:  parenOpen,
		ParenClose: parenClose,
		Body:       body,
		Specifiers: specifiers,
		ReturnType: returnType,
	}
	fn.Shape = classifyShape(src, tokens, node.First, nameTok)
	fn.IsEntry = fn.Name == entry
	if fn.ReturnType == "" && fn.Specifiers == "" {
		return nil, false
	}
	return fn, true
}

// Storage-class and function specifiers are linkage, not type: they must not
// end up inside a synthesized parameter or temporary declaration.
var declSpecifiers = map[string]bool{
	"static": true, "extern": true, "inline": true,
}

// splitSpecifiers separates the leading specifier keywords of a header from
// the return type proper. It returns the joined specifier text and the index
// of the first return-type token, -1 when the header is specifiers only.
func splitSpecifiers(src string, tokens []parser.Token, first, nameTok int) (string, int) {
	var specs []string
	i := first
	for i < nameTok {
		t := tokens[i]
		if t.Type == parser.TokenWhitespace || t.Type == parser.TokenComment {
			i++
			continue
		}
		if t.Type == parser.TokenKeyword && declSpecifiers[t.Text(src)] {
			specs = append(specs, t.Text(src))
			i++
			continue
		}
		break
	}
	return strings.Join(specs, " "), parser.NextSignificant(tokens, i, nameTok)
}

// classifyShape inspects the header tokens before the function name. A `*`
// anywhere there means pointer-like, taking precedence over `void`.
func classifyShape(src string, tokens []parser.Token, first, nameTok int) ReturnShape {
	shape := ShapeOther
	for i := first; i < nameTok; i++ {
		switch tokens[i].Text(src) {
		case "*":
			return ShapePointerLike
		case "void":
			shape = ShapeVoid
		}
	}
	return shape
}

func containsIndex(list []int, x int) bool {
	for _, v := range list {
		if v == x {
			return true
		}
	}
	return false
}
