package parser

import "fmt"

// TokenType classifies a lexical token from C source.
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenIdent
	TokenKeyword
	TokenNumber
	TokenString
	TokenChar
	TokenComment
	TokenWhitespace
	TokenDirective
	TokenOperator
	TokenPunctuation
	TokenOther
)

// Token is a byte span into the original source buffer. Tokens never copy
// text: concatenating the spans of all tokens reproduces the input exactly,
// which is what lets the reassembler fall back to verbatim output.
type Token struct {
	Type   TokenType
	Start  int // byte offset, inclusive
	End    int // byte offset, exclusive
	Line   int
	Column int
}

// Text returns the token's slice of the source buffer.
func (t Token) Text(src string) string {
	return src[t.Start:t.End]
}

// NodeKind classifies a coarse top-level construct.
type NodeKind int

const (
	NodeOther NodeKind = iota
	NodeFunction
	NodeComment
	NodeWhitespace
)

func (k NodeKind) String() string {
	switch k {
	case NodeFunction:
		return "function"
	case NodeComment:
		return "comment"
	case NodeWhitespace:
		return "whitespace"
	default:
		return "other"
	}
}

// SyntaxNode is a maximal run of tokens classified as one construct.
// Nodes partition the token stream: no gaps, no overlaps. A function node's
// range covers its header and the whole `{...}` body, nested braces included.
type SyntaxNode struct {
	Kind  NodeKind
	First int // first token index, inclusive
	Last  int // last token index, inclusive
}

// NodeText returns the node's original source text.
func NodeText(src string, tokens []Token, n SyntaxNode) string {
	return src[tokens[n.First].Start:tokens[n.Last].End]
}

// AllocationSite is a call to a recognized heap-allocation API.
type AllocationSite struct {
	TokenIndex int    // index of the allocator identifier token
	Allocator  string // allocator name, e.g. "malloc"
	Var        string // assignment target; empty for return/expression-statement calls
	Checked    bool   // a null guard covers this site
}

// LexError is a fatal lexical error. It aborts the whole-file rewrite.
type LexError struct {
	Line   int
	Column int
	Msg    string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}
