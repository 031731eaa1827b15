// Package rewriter turns one C translation unit into a semantically
// equivalent source text in which every heap allocation failure is observed
// and propagated through error-code returns, all the way up to (but not
// including) the entry symbol.
package rewriter

import (
	"fmt"
	"strings"

	"allocguard/internal/analyzer"
	"allocguard/internal/config"
	"allocguard/internal/parser"
)

// SiteReport describes one allocation site found during analysis.
type SiteReport struct {
	Allocator string `json:"allocator"`
	Variable  string `json:"variable,omitempty"`
	Line      int    `json:"line"`
	Checked   bool   `json:"checked"`
}

// FunctionReport describes what happened to one function.
type FunctionReport struct {
	Name      string       `json:"name"`
	Line      int          `json:"line"`
	Shape     string       `json:"shape"`
	Entry     bool         `json:"entry,omitempty"`
	Marked    bool         `json:"marked"`
	Rewritten bool         `json:"rewritten"`
	Transform string       `json:"transform"`
	Sites     []SiteReport `json:"sites,omitempty"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Output    string           `json:"-"`
	Changed   bool             `json:"changed"`
	Functions []FunctionReport `json:"functions"`
}

// Rewrite runs the whole pipeline over one file's source text. It returns
// the rewritten text together with a per-function report, or an error for
// fatal (lexical) failures. Function-local rewrite failures are recovered by
// emitting the affected function verbatim and never abort the file.
func Rewrite(src string, cfg *config.Config) (*Result, error) {
	tokens, err := parser.NewLexer(src).Tokenize()
	if err != nil {
		return nil, fmt.Errorf("lex: %w", err)
	}
	nodes := parser.Group(src, tokens)
	sites := parser.FindAllocationSites(src, tokens, cfg.AllocatorSet(), cfg.GuardWindow)
	graph := analyzer.BuildCallGraph(src, tokens, nodes, sites, cfg.EntrySymbol)
	analyzer.Propagate(graph)

	// Signature pass. A header that cannot be transformed abandons the
	// function: it stays verbatim and callers do not rewrite calls to it.
	headers := make(map[int]string)
	transforms := make(map[int]Transform)
	for i, fn := range graph.Funcs {
		if !fn.Marked {
			continue
		}
		header, tr, err := RewriteSignature(src, tokens, fn, cfg)
		if err != nil {
			continue
		}
		headers[i] = header
		transforms[i] = tr
	}

	// Body pass. A failing body removes its function from the rewritten
	// set, which can invalidate callers already rewritten against its new
	// signature, so the pass repeats until the set is stable.
	bodies := make(map[int]string)
	for {
		byName := make(map[string]Transform)
		for i, tr := range transforms {
			if tr.Kind != TransformNone {
				byName[graph.Funcs[i].Name] = tr
			}
		}

		failed := -1
		bodies = make(map[int]string, len(transforms))
		for i := range transforms {
			body, err := RewriteBody(src, tokens, graph.Funcs[i], transforms[i], byName)
			if err != nil {
				failed = i
				break
			}
			bodies[i] = body
		}
		if failed < 0 {
			break
		}
		delete(transforms, failed)
		delete(headers, failed)
	}

	// Reassembly: original node order, verbatim wherever no rewrite applies.
	funcByNode := make(map[int]int, len(graph.Funcs))
	for i, fn := range graph.Funcs {
		funcByNode[fn.Node] = i
	}

	var out strings.Builder
	changed := false
	for ni, node := range nodes {
		if node.Kind == parser.NodeFunction {
			if fi, ok := funcByNode[ni]; ok {
				if body, done := bodies[fi]; done {
					out.WriteString(headers[fi])
					out.WriteString(" ")
					out.WriteString(body)
					changed = true
					continue
				}
			}
		}
		out.WriteString(parser.NodeText(src, tokens, node))
	}

	result := &Result{
		Output:  out.String(),
		Changed: changed,
	}
	for i, fn := range graph.Funcs {
		report := FunctionReport{
			Name:      fn.Name,
			Line:      tokens[fn.First].Line,
			Shape:     fn.Shape.String(),
			Entry:     fn.IsEntry,
			Marked:    fn.Marked,
			Transform: "unchanged",
		}
		if _, done := bodies[i]; done {
			report.Rewritten = true
			report.Transform = transforms[i].Kind.String()
		} else if fn.Marked {
			report.Transform = "skipped"
		}
		for _, site := range fn.Sites {
			report.Sites = append(report.Sites, SiteReport{
				Allocator: site.Allocator,
				Variable:  site.Var,
				Line:      tokens[site.TokenIndex].Line,
				Checked:   site.Checked,
			})
		}
		result.Functions = append(result.Functions, report)
	}
	return result, nil
}
