package parser

// Group walks the token list once and partitions it into coarse top-level
// nodes. The function pattern is
//
//	<return-type-tokens> <identifier> ( <params> ) { <body> }
//
// taken through the matching closing brace. Prototypes, declarations, struct
// and enum definitions and preprocessor directives all become Other nodes,
// emitted verbatim downstream. The trailing EOF token is not part of any
// node.
func Group(src string, tokens []Token) []SyntaxNode {
	var nodes []SyntaxNode

	n := len(tokens)
	if n > 0 && tokens[n-1].Type == TokenEOF {
		n--
	}

	i := 0
	for i < n {
		switch tokens[i].Type {
		case TokenWhitespace:
			j := i
			for j < n && tokens[j].Type == TokenWhitespace {
				j++
			}
			nodes = append(nodes, SyntaxNode{Kind: NodeWhitespace, First: i, Last: j - 1})
			i = j
		case TokenComment:
			j := i
			for j < n && tokens[j].Type == TokenComment {
				j++
			}
			nodes = append(nodes, SyntaxNode{Kind: NodeComment, First: i, Last: j - 1})
			i = j
		default:
			last, ok, unterminated := matchFunction(src, tokens, i, n)
			if unterminated {
				// Body brace matching failed: the remainder of the file is one
				// trailing Other node and is never rewritten.
				nodes = append(nodes, SyntaxNode{Kind: NodeOther, First: i, Last: n - 1})
				return nodes
			}
			if ok {
				nodes = append(nodes, SyntaxNode{Kind: NodeFunction, First: i, Last: last})
				i = last + 1
				break
			}
			last = otherExtent(src, tokens, i, n)
			nodes = append(nodes, SyntaxNode{Kind: NodeOther, First: i, Last: last})
			i = last + 1
		}
	}

	return nodes
}

// matchFunction tries to recognize a function definition starting at token i.
// It reports the index of the closing body brace on success, and whether the
// body turned out to be unterminated.
func matchFunction(src string, tokens []Token, i, n int) (last int, ok, unterminated bool) {
	// Scan the header prefix: return type tokens, then the function name,
	// then the parameter list's opening parenthesis.
	j := i
	nameIdx := -1
	prevSig := -1
	for j < n {
		t := tokens[j]
		if t.Type == TokenWhitespace || t.Type == TokenComment {
			j++
			continue
		}
		if t.Type == TokenIdent || t.Type == TokenKeyword {
			prevSig = j
			j++
			continue
		}
		if t.Type == TokenOperator && t.Text(src) == "*" {
			prevSig = j
			j++
			continue
		}
		if t.Type == TokenPunctuation && t.Text(src) == "(" {
			nameIdx = prevSig
			break
		}
		return 0, false, false
	}
	if j >= n || nameIdx < 0 || tokens[nameIdx].Type != TokenIdent {
		return 0, false, false
	}
	// The name must be preceded by at least one return-type token.
	if !hasSignificantBefore(tokens, i, nameIdx) {
		return 0, false, false
	}

	// Match the parameter list.
	k, matched := MatchDelims(src, tokens, j, n, "(", ")")
	if !matched {
		return 0, false, false
	}

	// Skip to the body brace. A semicolon here means a prototype.
	m := k + 1
	for m < n && (tokens[m].Type == TokenWhitespace || tokens[m].Type == TokenComment) {
		m++
	}
	if m >= n || tokens[m].Type != TokenPunctuation || tokens[m].Text(src) != "{" {
		return 0, false, false
	}

	b, matched := MatchDelims(src, tokens, m, n, "{", "}")
	if !matched {
		return 0, false, true
	}
	return b, true, false
}

// MatchDelims matches an open delimiter at token index i against its closing
// counterpart, honoring nesting, and returns the index of the closer.
func MatchDelims(src string, tokens []Token, i, n int, open, close string) (int, bool) {
	depth := 0
	for j := i; j < n; j++ {
		if tokens[j].Type != TokenPunctuation {
			continue
		}
		switch tokens[j].Text(src) {
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return j, true
			}
		}
	}
	return 0, false
}

// otherExtent finds the last token of an Other node starting at i: everything
// through the next top-level semicolon, with `{...}` groups (struct bodies,
// initializers) kept intact. A directive is a node of its own.
func otherExtent(src string, tokens []Token, i, n int) int {
	if tokens[i].Type == TokenDirective {
		return i
	}
	depth := 0
	for j := i; j < n; j++ {
		if tokens[j].Type != TokenPunctuation {
			continue
		}
		switch tokens[j].Text(src) {
		case "{":
			depth++
		case "}":
			if depth > 0 {
				depth--
			}
		case ";":
			if depth == 0 {
				return j
			}
		}
	}
	return n - 1
}

func hasSignificantBefore(tokens []Token, from, before int) bool {
	for j := from; j < before; j++ {
		if tokens[j].Type != TokenWhitespace && tokens[j].Type != TokenComment {
			return true
		}
	}
	return false
}
