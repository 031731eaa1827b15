package parser

import (
	"errors"
	"strings"
	"testing"
)

func mustTokenize(t *testing.T, src string) []Token {
	t.Helper()
	tokens, err := NewLexer(src).Tokenize()
	if err != nil {
		t.Fatalf("Tokenize failed: %v", err)
	}
	return tokens
}

func TestTokenizePreservesEveryByte(t *testing.T) {
	srcs := []string{
		"int main() { return 0; }\n",
		"/* block */ // line\nchar *p = \"str\\\"ing\";\n",
		"#define MAX 10\n#include <stdio.h>\nint x = 0x1F + 'a';\n",
		"void f(int a, int b)\n{\n\ta += b->x;\n\ta <<= 2;\n}\n",
		"#define LONG \\\n  1\n",
		"",
	}
	for _, src := range srcs {
		tokens := mustTokenize(t, src)
		var b strings.Builder
		for _, tok := range tokens {
			b.WriteString(tok.Text(src))
		}
		if b.String() != src {
			t.Errorf("concatenated tokens differ from input\ninput:  %q\noutput: %q", src, b.String())
		}
	}
}

func TestTokenizeTypes(t *testing.T) {
	src := "int x = malloc(10); // note\n"
	tokens := mustTokenize(t, src)

	want := []struct {
		text string
		typ  TokenType
	}{
		{"int", TokenKeyword},
		{"x", TokenIdent},
		{"=", TokenOperator},
		{"malloc", TokenIdent},
		{"(", TokenPunctuation},
		{"10", TokenNumber},
		{")", TokenPunctuation},
		{";", TokenPunctuation},
		{"// note", TokenComment},
	}

	i := 0
	for _, w := range want {
		for i < len(tokens) && tokens[i].Type == TokenWhitespace {
			i++
		}
		if i >= len(tokens) {
			t.Fatalf("ran out of tokens looking for %q", w.text)
		}
		if got := tokens[i].Text(src); got != w.text || tokens[i].Type != w.typ {
			t.Errorf("token %d: got %q (%d), want %q (%d)", i, got, tokens[i].Type, w.text, w.typ)
		}
		i++
	}
}

func TestTokenizeLineColumn(t *testing.T) {
	src := "int a;\nint b;\n"
	tokens := mustTokenize(t, src)

	var bTok *Token
	for i := range tokens {
		if tokens[i].Type == TokenIdent && tokens[i].Text(src) == "b" {
			bTok = &tokens[i]
		}
	}
	if bTok == nil {
		t.Fatal("token b not found")
	}
	if bTok.Line != 2 || bTok.Column != 5 {
		t.Errorf("b at line %d column %d, want line 2 column 5", bTok.Line, bTok.Column)
	}
}

func TestTokenizeTwoCharOperators(t *testing.T) {
	src := "a->b == c && d++ <= e;"
	tokens := mustTokenize(t, src)

	var ops []string
	for _, tok := range tokens {
		if tok.Type == TokenOperator {
			ops = append(ops, tok.Text(src))
		}
	}
	want := []string{"->", "==", "&&", "++", "<="}
	if len(ops) != len(want) {
		t.Fatalf("got operators %v, want %v", ops, want)
	}
	for i := range want {
		if ops[i] != want[i] {
			t.Errorf("operator %d: got %q, want %q", i, ops[i], want[i])
		}
	}
}

func TestTokenizeErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated block comment", "int x; /* never closed"},
		{"unterminated string", "char *s = \"oops;\n"},
		{"unterminated char", "char c = 'x\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLexer(tt.src).Tokenize()
			if err == nil {
				t.Fatal("expected a lex error, got none")
			}
			var lexErr *LexError
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *LexError, got %T", err)
			}
		})
	}
}

func TestTokenizeDirectiveContinuation(t *testing.T) {
	src := "#define PAIR(a, b) \\\n  { a, b }\nint x;\n"
	tokens := mustTokenize(t, src)

	var directive *Token
	for i := range tokens {
		if tokens[i].Type == TokenDirective {
			directive = &tokens[i]
			break
		}
	}
	if directive == nil {
		t.Fatal("no directive token")
	}
	if got := directive.Text(src); !strings.Contains(got, "{ a, b }") {
		t.Errorf("directive did not absorb the continuation line: %q", got)
	}
}
