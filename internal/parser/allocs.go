package parser

// FindAllocationSites scans the token list for call expressions whose callee
// is in the recognized allocator set. Each hit records the assignment target
// immediately preceding the call, when there is one, and whether a null guard
// covers the site within guardWindow statements. Multiple allocations in one
// statement are independent sites.
func FindAllocationSites(src string, tokens []Token, allocators map[string]bool, guardWindow int) []AllocationSite {
	var sites []AllocationSite

	n := len(tokens)
	if n > 0 && tokens[n-1].Type == TokenEOF {
		n--
	}

	for i := 0; i < n; i++ {
		if tokens[i].Type != TokenIdent || !allocators[tokens[i].Text(src)] {
			continue
		}
		j := NextSignificant(tokens, i+1, n)
		if j < 0 || tokens[j].Text(src) != "(" {
			continue
		}

		site := AllocationSite{
			TokenIndex: i,
			Allocator:  tokens[i].Text(src),
		}

		// Assignment target: `<ident> = alloc(...)`. Absent for a bare
		// `return alloc(...)` or a result-discarding expression statement.
		p := PrevSignificant(tokens, i-1)
		if p >= 0 && tokens[p].Text(src) == "=" {
			q := PrevSignificant(tokens, p-1)
			if q >= 0 && tokens[q].Type == TokenIdent {
				site.Var = tokens[q].Text(src)
			}
		}

		if site.Var != "" {
			site.Checked = guardFollows(src, tokens, j, n, site.Var, guardWindow)
		}
		sites = append(sites, site)
	}

	return sites
}

// guardFollows scans forward from the allocation call's argument list for a
// statement of the form `if (<target> is null/zero) ...` within the next
// window statements. A guard over a different variable does not count, and
// the scan never crosses the end of the enclosing scope.
func guardFollows(src string, tokens []Token, parenOpen, n int, target string, window int) bool {
	cp, ok := MatchDelims(src, tokens, parenOpen, n, "(", ")")
	if !ok {
		return false
	}
	// End of the allocation statement.
	end := statementEnd(src, tokens, cp+1, n)
	if end < 0 {
		return false
	}

	at := end + 1
	for w := 0; w < window; w++ {
		s := NextSignificant(tokens, at, n)
		if s < 0 || tokens[s].Text(src) == "}" {
			return false
		}
		if tokens[s].Type == TokenKeyword && tokens[s].Text(src) == "if" {
			o := NextSignificant(tokens, s+1, n)
			if o >= 0 && tokens[o].Text(src) == "(" {
				if cc, ok := MatchDelims(src, tokens, o, n, "(", ")"); ok {
					if conditionTestsNull(src, tokens, o+1, cc, target) {
						return true
					}
				}
			}
		}
		last := skipStatement(src, tokens, s, n)
		if last < 0 {
			return false
		}
		at = last + 1
	}
	return false
}

// conditionTestsNull reports whether the condition tokens in [from, to) test
// the target identifier against null/zero: `!target`, `target == NULL`,
// `NULL == target`, or `target == 0`.
func conditionTestsNull(src string, tokens []Token, from, to int, target string) bool {
	for i := from; i < to; i++ {
		if tokens[i].Type != TokenIdent || tokens[i].Text(src) != target {
			continue
		}
		if p := PrevSignificant(tokens, i-1); p >= from {
			switch tokens[p].Text(src) {
			case "!":
				return true
			case "==":
				if pp := PrevSignificant(tokens, p-1); pp >= from && isNullLiteral(src, tokens[pp]) {
					return true
				}
			}
		}
		if q := NextSignificant(tokens, i+1, to); q >= 0 {
			if tokens[q].Text(src) == "==" {
				if qq := NextSignificant(tokens, q+1, to); qq >= 0 && isNullLiteral(src, tokens[qq]) {
					return true
				}
			}
		}
	}
	return false
}

func isNullLiteral(src string, t Token) bool {
	switch t.Text(src) {
	case "NULL", "nullptr", "0":
		return true
	}
	return false
}

// statementEnd returns the index of the semicolon terminating the statement
// whose continuation starts at token i, skipping over nested parentheses.
func statementEnd(src string, tokens []Token, i, n int) int {
	depth := 0
	for j := i; j < n; j++ {
		switch tokens[j].Text(src) {
		case "(":
			depth++
		case ")":
			depth--
		case ";":
			if depth <= 0 {
				return j
			}
		case "}":
			if depth <= 0 {
				return -1
			}
		}
	}
	return -1
}

// skipStatement returns the last token index of the statement starting at s:
// either its terminating semicolon or, for a braced construct, the matching
// closing brace.
func skipStatement(src string, tokens []Token, s, n int) int {
	parens := 0
	for j := s; j < n; j++ {
		switch tokens[j].Text(src) {
		case "(":
			parens++
		case ")":
			parens--
		case "{":
			if parens == 0 {
				last, ok := MatchDelims(src, tokens, j, n, "{", "}")
				if !ok {
					return -1
				}
				return last
			}
		case ";":
			if parens == 0 {
				return j
			}
		case "}":
			if parens == 0 {
				return -1
			}
		}
	}
	return -1
}

// NextSignificant returns the index of the first token at or after i that is
// not whitespace or a comment, or -1 when [i, n) holds none.
func NextSignificant(tokens []Token, i, n int) int {
	for j := i; j < n; j++ {
		if tokens[j].Type != TokenWhitespace && tokens[j].Type != TokenComment {
			return j
		}
	}
	return -1
}

// PrevSignificant returns the index of the last token at or before i that is
// not whitespace or a comment, or -1.
func PrevSignificant(tokens []Token, i int) int {
	for j := i; j >= 0; j-- {
		if tokens[j].Type != TokenWhitespace && tokens[j].Type != TokenComment {
			return j
		}
	}
	return -1
}
