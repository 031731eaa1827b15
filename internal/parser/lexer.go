package parser

import "unicode"

var keywords = map[string]bool{
	"void": true, "int": true, "char": true, "float": true, "double": true,
	"long": true, "short": true, "unsigned": true, "signed": true, "const": true,
	"static": true, "extern": true, "inline": true, "register": true, "volatile": true,
	"struct": true, "enum": true, "union": true, "typedef": true, "sizeof": true,
	"if": true, "else": true, "for": true, "while": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true, "continue": true,
	"goto": true, "return": true, "NULL": true,
}

// Lexer tokenizes C source text into an exhaustive token list: whitespace,
// comments and preprocessor directives are tokens too, so that every byte of
// the input is covered by exactly one token.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
	tokens []Token
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{
		input:  input,
		pos:    0,
		line:   1,
		column: 1,
	}
}

// Tokenize processes the entire input and returns all tokens. A malformed
// literal or an unterminated comment is a fatal *LexError.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n':
			l.readWhitespace()
		case ch == '/' && l.peek() == '/':
			l.readLineComment()
		case ch == '/' && l.peek() == '*':
			if err := l.readBlockComment(); err != nil {
				return nil, err
			}
		case ch == '#':
			l.readDirective()
		case ch == '"' || ch == '\'':
			if err := l.readLiteral(ch); err != nil {
				return nil, err
			}
		case unicode.IsLetter(rune(ch)) || ch == '_':
			l.readIdentifier()
		case unicode.IsDigit(rune(ch)):
			l.readNumber()
		case l.isPunctuation(ch):
			l.emitSingle(TokenPunctuation)
		case l.isOperator(ch):
			l.readOperator()
		default:
			l.emitSingle(TokenOther)
		}
	}

	l.tokens = append(l.tokens, Token{Type: TokenEOF, Start: l.pos, End: l.pos, Line: l.line, Column: l.column})
	return l.tokens, nil
}

func (l *Lexer) advance() {
	if l.pos < len(l.input) {
		if l.input[l.pos] == '\n' {
			l.line++
			l.column = 1
		} else {
			l.column++
		}
		l.pos++
	}
}

func (l *Lexer) peek() byte {
	if l.pos+1 < len(l.input) {
		return l.input[l.pos+1]
	}
	return 0
}

func (l *Lexer) emit(tokenType TokenType, start, line, column int) {
	l.tokens = append(l.tokens, Token{
		Type:   tokenType,
		Start:  start,
		End:    l.pos,
		Line:   line,
		Column: column,
	})
}

func (l *Lexer) emitSingle(tokenType TokenType) {
	start, line, column := l.pos, l.line, l.column
	l.advance()
	l.emit(tokenType, start, line, column)
}

func (l *Lexer) readWhitespace() {
	start, line, column := l.pos, l.line, l.column
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch != ' ' && ch != '\t' && ch != '\r' && ch != '\n' {
			break
		}
		l.advance()
	}
	l.emit(TokenWhitespace, start, line, column)
}

func (l *Lexer) readLineComment() {
	start, line, column := l.pos, l.line, l.column
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		l.advance()
	}
	l.emit(TokenComment, start, line, column)
}

func (l *Lexer) readBlockComment() error {
	start, line, column := l.pos, l.line, l.column
	l.advance() // skip /
	l.advance() // skip *
	for l.pos < len(l.input) {
		if l.input[l.pos] == '*' && l.peek() == '/' {
			l.advance()
			l.advance()
			l.emit(TokenComment, start, line, column)
			return nil
		}
		l.advance()
	}
	return &LexError{Line: line, Column: column, Msg: "unterminated block comment"}
}

func (l *Lexer) readDirective() {
	start, line, column := l.pos, l.line, l.column
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		// Handle line continuation.
		if l.input[l.pos] == '\\' && l.peek() == '\n' {
			l.advance()
			l.advance()
			continue
		}
		l.advance()
	}
	l.emit(TokenDirective, start, line, column)
}

func (l *Lexer) readLiteral(quote byte) error {
	start, line, column := l.pos, l.line, l.column
	tokenType := TokenString
	what := "string literal"
	if quote == '\'' {
		tokenType = TokenChar
		what = "character literal"
	}
	l.advance() // skip opening quote

	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '\\' {
			l.advance()
			if l.pos < len(l.input) {
				l.advance()
			}
			continue
		}
		if ch == quote {
			l.advance()
			l.emit(tokenType, start, line, column)
			return nil
		}
		if ch == '\n' {
			break
		}
		l.advance()
	}
	return &LexError{Line: line, Column: column, Msg: "unterminated " + what}
}

func (l *Lexer) readIdentifier() {
	start, line, column := l.pos, l.line, l.column
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsLetter(rune(ch)) || unicode.IsDigit(rune(ch)) || ch == '_' {
			l.advance()
		} else {
			break
		}
	}

	tokenType := TokenIdent
	if keywords[l.input[start:l.pos]] {
		tokenType = TokenKeyword
	}
	l.emit(tokenType, start, line, column)
}

func (l *Lexer) readNumber() {
	start, line, column := l.pos, l.line, l.column
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if unicode.IsDigit(rune(ch)) || ch == '.' || ch == 'x' || ch == 'X' ||
			(ch >= 'a' && ch <= 'f') || (ch >= 'A' && ch <= 'F') ||
			ch == 'u' || ch == 'U' || ch == 'l' || ch == 'L' {
			l.advance()
		} else {
			break
		}
	}
	l.emit(TokenNumber, start, line, column)
}

func (l *Lexer) isPunctuation(ch byte) bool {
	return ch == '{' || ch == '}' || ch == '(' || ch == ')' ||
		ch == '[' || ch == ']' || ch == ';' || ch == ',' ||
		ch == ':' || ch == '.'
}

func (l *Lexer) isOperator(ch byte) bool {
	return ch == '+' || ch == '-' || ch == '*' || ch == '/' || ch == '=' ||
		ch == '<' || ch == '>' || ch == '!' || ch == '&' || ch == '|' ||
		ch == '^' || ch == '%' || ch == '~' || ch == '?'
}

func (l *Lexer) readOperator() {
	start, line, column := l.pos, l.line, l.column

	if l.pos+1 < len(l.input) {
		two := l.input[l.pos : l.pos+2]
		switch two {
		case "->", "==", "!=", "<=", ">=", "&&", "||",
			"++", "--", "+=", "-=", "*=", "/=", "%=", "<<", ">>":
			l.advance()
			l.advance()
			l.emit(TokenOperator, start, line, column)
			return
		}
	}

	l.advance()
	l.emit(TokenOperator, start, line, column)
}
