package rewriter

import (
	"fmt"
	"strings"

	"allocguard/internal/analyzer"
	"allocguard/internal/parser"
)

var controlKeywords = map[string]bool{
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true, "goto": true,
	"break": true, "continue": true,
}

// bodyRewriter carries the state of a single function body rewrite.
type bodyRewriter struct {
	src     string
	tokens  []parser.Token
	fn      *analyzer.FunctionNode
	own     Transform
	callees map[string]Transform // successfully rewritten callees, by name

	usedErr        bool // an `<err> = ...` capture was generated
	endsWithReturn bool // the last emitted statement was a return
}

// RewriteBody produces new body text for a marked function: null guards after
// every unguarded allocation, capture-and-check around every call to a
// rewritten callee, and the function's own returns transformed per its
// descriptor. Token shapes the rewriter cannot handle confidently yield an
// error; the reassembler then falls back to the original span.
func RewriteBody(src string, tokens []parser.Token, fn *analyzer.FunctionNode, own Transform, callees map[string]Transform) (string, error) {
	r := &bodyRewriter{
		src:     src,
		tokens:  tokens,
		fn:      fn,
		own:     own,
		callees: callees,
	}

	content, err := r.run()
	if err != nil {
		return "", fmt.Errorf("%s: %w", fn.Name, err)
	}

	var b strings.Builder
	b.WriteString("{")
	if r.usedErr {
		b.WriteString(r.indent())
		b.WriteString(own.ErrType + " " + own.ErrVar + ";")
	}
	b.WriteString(content)
	if own.Kind == TransformVoidToInt && !r.endsWithReturn {
		// A converted void function may fall off the end of its body.
		b.WriteString("return " + own.OKCode + "; ")
	}
	b.WriteString("}")
	return b.String(), nil
}

// indent mirrors the whitespace right after the opening brace so inserted
// declarations land on their own line in the original style.
func (r *bodyRewriter) indent() string {
	if r.fn.Body+1 < len(r.tokens) && r.tokens[r.fn.Body+1].Type == parser.TokenWhitespace {
		return r.tokens[r.fn.Body+1].Text(r.src)
	}
	return " "
}

func (r *bodyRewriter) run() (string, error) {
	var out strings.Builder
	i := r.fn.Body + 1
	last := r.fn.Last

	// Paren depth over tokens emitted outside statement handling: inside a
	// condition or a for-header no statement rewriting may fire.
	parens := 0
	// Set once expression or control-prefix tokens have been emitted for the
	// statement in progress. An identifier seen then is a continuation, such
	// as the call after a cast or an unbraced controlled statement, and must
	// not be restructured on its own.
	midExpr := false

	for i < last {
		t := r.tokens[i]
		text := t.Text(r.src)
		switch {
		case t.Type == parser.TokenWhitespace || t.Type == parser.TokenComment || t.Type == parser.TokenDirective:
			out.WriteString(text)
			i++

		case parens > 0:
			if err := r.checkPassthrough(i, last); err != nil {
				return "", err
			}
			if t.Type == parser.TokenPunctuation {
				switch text {
				case "(":
					parens++
				case ")":
					parens--
				}
			}
			out.WriteString(text)
			r.endsWithReturn = false
			i++

		case t.Type == parser.TokenKeyword && text == "return":
			next, err := r.returnStatement(&out, i, last)
			if err != nil {
				return "", err
			}
			i = next
			midExpr = false

		case t.Type == parser.TokenKeyword && controlKeywords[text]:
			out.WriteString(text)
			r.endsWithReturn = false
			midExpr = true
			i++

		case midExpr && (t.Type == parser.TokenIdent || t.Type == parser.TokenKeyword):
			if err := r.checkPassthrough(i, last); err != nil {
				return "", err
			}
			out.WriteString(text)
			r.endsWithReturn = false
			i++

		case t.Type == parser.TokenIdent || t.Type == parser.TokenKeyword:
			next, err := r.statement(&out, i, last)
			if err != nil {
				return "", err
			}
			midExpr = r.tokens[next-1].Text(r.src) != ";"
			i = next

		default:
			if t.Type == parser.TokenPunctuation {
				switch text {
				case "(":
					parens++
					midExpr = true
				case ";", ":", "{", "}":
					midExpr = false
				default:
					midExpr = true
				}
			} else {
				midExpr = true
			}
			out.WriteString(text)
			r.endsWithReturn = false
			i++
		}
	}

	return out.String(), nil
}

// statement handles a run of tokens expected to form `...;`. When the run is
// not a plain semicolon-terminated statement (inside a condition, before a
// block), it degrades to emitting the single token after checking nothing
// rewrite-relevant hides in it.
func (r *bodyRewriter) statement(out *strings.Builder, s, last int) (int, error) {
	e := r.statementEnd(s, last)
	if e < 0 {
		if err := r.checkPassthrough(s, last); err != nil {
			return 0, err
		}
		out.WriteString(r.tokens[s].Text(r.src))
		r.endsWithReturn = false
		return s + 1, nil
	}

	text, err := r.rewriteStatement(s, e)
	if err != nil {
		return 0, err
	}
	out.WriteString(text)
	r.endsWithReturn = false
	return e + 1, nil
}

// statementEnd finds the terminating semicolon of a simple statement starting
// at s, or -1 when the tokens do not form one.
func (r *bodyRewriter) statementEnd(s, last int) int {
	depth := 0
	for j := s; j < last; j++ {
		switch r.tokens[j].Text(r.src) {
		case "(":
			depth++
		case ")":
			if depth == 0 {
				return -1
			}
			depth--
		case "{", "}":
			if depth == 0 {
				return -1
			}
		case ";":
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// checkPassthrough rejects verbatim emission of a token that carries rewrite
// obligations: a call to a rewritten callee or an unguarded allocation buried
// in a shape the rewriter does not understand.
func (r *bodyRewriter) checkPassthrough(i, last int) error {
	t := r.tokens[i]
	if t.Type != parser.TokenIdent {
		return nil
	}
	name := t.Text(r.src)
	if _, ok := r.callees[name]; ok {
		if j := parser.NextSignificant(r.tokens, i+1, last); j >= 0 && r.tokens[j].Text(r.src) == "(" {
			return fmt.Errorf("call to %s: %w", name, errShape)
		}
	}
	for _, site := range r.fn.Sites {
		if site.TokenIndex == i && !site.Checked {
			return fmt.Errorf("allocation via %s: %w", site.Allocator, errShape)
		}
	}
	return nil
}

// rewriteStatement emits the statement spanning tokens [s, e] (e is the
// semicolon), applying callee-call rewriting and allocation guards.
func (r *bodyRewriter) rewriteStatement(s, e int) (string, error) {
	verbatim := r.src[r.tokens[s].Start:r.tokens[e].End]

	callee, calleeTr := r.findCalleeCall(s, e)
	sites := r.uncheckedSitesIn(s, e)

	switch {
	case callee >= 0 && len(sites) > 0:
		return "", fmt.Errorf("allocation and rewritten call in one statement: %w", errShape)
	case callee >= 0:
		return r.rewriteCall(s, e, callee, calleeTr)
	case len(sites) > 0:
		return r.guardStatement(s, e, sites, verbatim)
	default:
		return verbatim, nil
	}
}

func (r *bodyRewriter) findCalleeCall(s, e int) (int, Transform) {
	for j := s; j < e; j++ {
		if r.tokens[j].Type != parser.TokenIdent {
			continue
		}
		tr, ok := r.callees[r.tokens[j].Text(r.src)]
		if !ok {
			continue
		}
		if k := parser.NextSignificant(r.tokens, j+1, e); k >= 0 && r.tokens[k].Text(r.src) == "(" {
			return j, tr
		}
	}
	return -1, Transform{}
}

func (r *bodyRewriter) uncheckedSitesIn(s, e int) []parser.AllocationSite {
	var sites []parser.AllocationSite
	for _, site := range r.fn.Sites {
		if !site.Checked && site.TokenIndex >= s && site.TokenIndex <= e {
			sites = append(sites, site)
		}
	}
	return sites
}

// rewriteCall converts a statement whose tail is a call to a rewritten
// callee. `callee(args);` becomes a captured and checked call; for a pointer
// callee, `T *x = callee(args);` splits into the declaration and a call
// passing `&x` as the new final argument.
func (r *bodyRewriter) rewriteCall(s, e, c int, tr Transform) (string, error) {
	name := r.tokens[c].Text(r.src)
	o := parser.NextSignificant(r.tokens, c+1, e)
	cp, ok := parser.MatchDelims(r.src, r.tokens, o, e+1, "(", ")")
	if !ok {
		return "", fmt.Errorf("call to %s: unmatched parentheses: %w", name, errShape)
	}
	// The call must be the statement's tail.
	if rest := parser.NextSignificant(r.tokens, cp+1, e); rest >= 0 {
		return "", fmt.Errorf("call to %s is part of a larger expression: %w", name, errShape)
	}
	args := strings.TrimSpace(r.src[r.tokens[o].End:r.tokens[cp].Start])

	p := parser.PrevSignificant(r.tokens, c-1)
	hasAssign := p >= s && r.tokens[p].Text(r.src) == "="

	switch tr.Kind {
	case TransformVoidToInt:
		if hasAssign {
			return "", fmt.Errorf("assignment from converted void function %s: %w", name, errShape)
		}
		if first := parser.NextSignificant(r.tokens, s, e); first != c {
			return "", fmt.Errorf("call to %s is not a call statement: %w", name, errShape)
		}
		call := r.src[r.tokens[c].Start:r.tokens[cp].End]
		return r.capturedCall(call), nil

	case TransformPointerToOut:
		if !hasAssign {
			return "", fmt.Errorf("result of %s is discarded: %w", name, errShape)
		}
		q := parser.PrevSignificant(r.tokens, p-1)
		if q < s || r.tokens[q].Type != parser.TokenIdent {
			return "", fmt.Errorf("no assignment target before call to %s: %w", name, errShape)
		}
		target := r.tokens[q].Text(r.src)
		call := name + "(" + appendArg(args, "&"+target) + ")"

		prefix := ""
		if first := parser.NextSignificant(r.tokens, s, e); first != q {
			// `T *x = callee(...)`: keep the declaration, uninitialized.
			prefix = r.src[r.tokens[s].Start:r.tokens[q].End] + "; "
		}
		return prefix + r.capturedCall(call), nil

	default:
		return "", fmt.Errorf("callee %s has no transform: %w", name, errShape)
	}
}

// capturedCall renders `<err> = <call>; if (<err> != <ok>) { return <err>; }`.
func (r *bodyRewriter) capturedCall(call string) string {
	r.usedErr = true
	ev := r.own.ErrVar
	return fmt.Sprintf("%s = %s; if (%s != %s) { return %s; }", ev, call, ev, r.own.OKCode, ev)
}

// guardStatement emits the statement verbatim followed by a null guard for
// each unguarded allocation in it. A target-less allocation is only
// guardable when the whole statement is the bare call, which gets wrapped.
func (r *bodyRewriter) guardStatement(s, e int, sites []parser.AllocationSite, verbatim string) (string, error) {
	if len(sites) == 1 && sites[0].Var == "" {
		site := sites[0]
		if first := parser.NextSignificant(r.tokens, s, e); first != site.TokenIndex {
			return "", fmt.Errorf("allocation via %s inside a larger expression: %w", site.Allocator, errShape)
		}
		o := parser.NextSignificant(r.tokens, site.TokenIndex+1, e)
		cp, ok := parser.MatchDelims(r.src, r.tokens, o, e+1, "(", ")")
		if !ok {
			return "", fmt.Errorf("allocation via %s: unmatched parentheses: %w", site.Allocator, errShape)
		}
		if rest := parser.NextSignificant(r.tokens, cp+1, e); rest >= 0 {
			return "", fmt.Errorf("allocation via %s inside a larger expression: %w", site.Allocator, errShape)
		}
		call := r.src[r.tokens[site.TokenIndex].Start:r.tokens[cp].End]
		return "if (" + call + " == NULL) { return " + r.own.ErrCode + "; }", nil
	}

	var b strings.Builder
	b.WriteString(verbatim)
	for _, site := range sites {
		if site.Var == "" {
			return "", fmt.Errorf("allocation via %s has no guardable target: %w", site.Allocator, errShape)
		}
		b.WriteString(" if (" + site.Var + " == NULL) { return " + r.own.ErrCode + "; }")
	}
	return b.String(), nil
}

// returnStatement transforms `return ...;` per the function's own descriptor.
func (r *bodyRewriter) returnStatement(out *strings.Builder, s, last int) (int, error) {
	e := r.statementEnd(s+1, last)
	if e < 0 {
		return 0, fmt.Errorf("unterminated return statement: %w", errShape)
	}

	callee, calleeTr := r.findCalleeCall(s+1, e)
	sites := r.uncheckedSitesIn(s+1, e)
	expr := strings.TrimSpace(r.src[r.tokens[s].End:r.tokens[e].Start])

	switch r.own.Kind {
	case TransformNone:
		// The entry symbol keeps its own returns. A rewritten callee in
		// return position cannot have existed in valid input, and an
		// allocation there has no slot to observe the failure from.
		if callee >= 0 {
			return 0, fmt.Errorf("rewritten call in entry return: %w", errShape)
		}
		if len(sites) > 0 {
			return 0, fmt.Errorf("unguarded allocation in entry return: %w", errShape)
		}
		out.WriteString(r.src[r.tokens[s].Start:r.tokens[e].End])

	case TransformVoidToInt:
		if expr != "" {
			return 0, fmt.Errorf("void function returns a value: %w", errShape)
		}
		out.WriteString("return " + r.own.OKCode + ";")

	case TransformPointerToOut:
		if expr == "" {
			return 0, fmt.Errorf("pointer function returns nothing: %w", errShape)
		}
		if callee >= 0 {
			text, err := r.returnOfCall(s, e, callee, calleeTr)
			if err != nil {
				return 0, err
			}
			out.WriteString(text)
			break
		}
		dst := "*" + r.own.OutParam
		if len(sites) > 0 {
			// `return alloc(...);` still needs its failure observed before
			// the out-parameter result is considered valid.
			out.WriteString(dst + " = " + expr + "; if (" + dst + " == NULL) { return " + r.own.ErrCode + "; } return " + r.own.OKCode + ";")
		} else {
			out.WriteString(dst + " = " + expr + "; return " + r.own.OKCode + ";")
		}
	}

	r.endsWithReturn = true
	return e + 1, nil
}

// returnOfCall handles `return callee(args);` where the callee now reports
// through an out-parameter: a temporary typed with the callee's original
// return type carries the value, and the error code short-circuits.
func (r *bodyRewriter) returnOfCall(s, e, c int, tr Transform) (string, error) {
	if tr.Kind != TransformPointerToOut {
		return "", fmt.Errorf("converted void function in return expression: %w", errShape)
	}
	name := r.tokens[c].Text(r.src)
	if first := parser.NextSignificant(r.tokens, s+1, e); first != c {
		return "", fmt.Errorf("call to %s inside a larger return expression: %w", name, errShape)
	}
	o := parser.NextSignificant(r.tokens, c+1, e)
	cp, ok := parser.MatchDelims(r.src, r.tokens, o, e+1, "(", ")")
	if !ok {
		return "", fmt.Errorf("call to %s: unmatched parentheses: %w", name, errShape)
	}
	if rest := parser.NextSignificant(r.tokens, cp+1, e); rest >= 0 {
		return "", fmt.Errorf("call to %s inside a larger return expression: %w", name, errShape)
	}
	args := strings.TrimSpace(r.src[r.tokens[o].End:r.tokens[cp].Start])

	tmp := "tmp"
	call := name + "(" + appendArg(args, "&"+tmp) + ")"
	r.usedErr = true
	ev := r.own.ErrVar
	return fmt.Sprintf("{ %s; %s = %s; if (%s != %s) { return %s; } *%s = %s; return %s; }",
		valueDecl(tr.ReturnType, tmp), ev, call, ev, r.own.OKCode, ev, r.own.OutParam, tmp, r.own.OKCode), nil
}

// appendArg appends one argument to a rendered argument list.
func appendArg(args, arg string) string {
	if args == "" {
		return arg
	}
	return args + ", " + arg
}

// valueDecl declares name with the literal type text, e.g. ("char *", "tmp")
// yields "char *tmp".
func valueDecl(typ, name string) string {
	typ = strings.TrimSpace(typ)
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}
