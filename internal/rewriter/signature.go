package rewriter

import (
	"errors"
	"fmt"
	"strings"

	"allocguard/internal/analyzer"
	"allocguard/internal/config"
	"allocguard/internal/parser"
)

// errShape marks a header or body the rewriter cannot confidently transform.
// The reassembler recovers by emitting the function verbatim.
var errShape = errors.New("does not fit a rewritable shape")

// RewriteSignature produces the new header text and the transform descriptor
// for a marked function. The entry symbol keeps its header untouched. The
// argument list is always preserved; only the return shape changes, plus the
// appended out-parameter for pointer-like functions. Storage-class specifiers
// stay ahead of the new return type so linkage survives the rewrite.
func RewriteSignature(src string, tokens []parser.Token, fn *analyzer.FunctionNode, cfg *config.Config) (string, Transform, error) {
	tr := Transform{
		OutParam:   cfg.OutParam,
		ReturnType: fn.ReturnType,
		ErrType:    cfg.ErrorType,
		ErrVar:     cfg.ErrVar,
		ErrCode:    cfg.ErrorReturn,
		OKCode:     cfg.SuccessReturn,
	}

	if fn.IsEntry {
		tr.Kind = TransformNone
		header := strings.TrimRight(src[tokens[fn.First].Start:tokens[fn.Body].Start], " \t\r\n")
		return header, tr, nil
	}

	prefix := ""
	if fn.Specifiers != "" {
		prefix = fn.Specifiers + " "
	}

	switch fn.Shape {
	case analyzer.ShapeVoid:
		tr.Kind = TransformVoidToInt
		// Name and parameter list are reused verbatim.
		header := prefix + cfg.ErrorType + " " + src[tokens[fn.NameTok].Start:tokens[fn.ParenClose].End]
		return header, tr, nil

	case analyzer.ShapePointerLike:
		tr.Kind = TransformPointerToOut
		params := strings.TrimSpace(src[tokens[fn.ParenOpen].End:tokens[fn.ParenClose].Start])
		outDecl := pointerDecl(fn.ReturnType, cfg.OutParam)
		switch params {
		case "", "void":
			params = outDecl
		default:
			params = params + ", " + outDecl
		}
		header := prefix + cfg.ErrorType + " " + fn.Name + "(" + params + ")"
		return header, tr, nil

	default:
		// Propagation can reach functions that already return a value of
		// some other type; there is no transform for those.
		return "", tr, fmt.Errorf("%s: header %w", fn.Name, errShape)
	}
}

// pointerDecl declares name as a pointer to typ, e.g. ("char *", "out")
// yields "char **out".
func pointerDecl(typ, name string) string {
	typ = strings.TrimSpace(typ)
	if strings.HasSuffix(typ, "*") {
		return typ + "*" + name
	}
	return typ + " *" + name
}
