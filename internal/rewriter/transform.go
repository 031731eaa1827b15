package rewriter

// TransformKind discriminates how a function's signature was changed.
type TransformKind int

const (
	// TransformNone leaves the signature untouched (the entry symbol).
	TransformNone TransformKind = iota
	// TransformVoidToInt replaces a void return with the error-code type.
	TransformVoidToInt
	// TransformPointerToOut replaces a pointer return with the error-code
	// type and appends a final out-parameter for the result.
	TransformPointerToOut
)

func (k TransformKind) String() string {
	switch k {
	case TransformVoidToInt:
		return "void_to_int"
	case TransformPointerToOut:
		return "pointer_to_out"
	default:
		return "none"
	}
}

// Transform is the contract threaded from the signature rewriter into the
// body rewriter and into every caller's body rewriter.
type Transform struct {
	Kind       TransformKind
	OutParam   string // name of the appended out-parameter
	ReturnType string // original return type text, used to type temporaries
	ErrType    string // error-code type, e.g. "int"
	ErrVar     string // local capturing callee error codes
	ErrCode    string // literal returned on failure
	OKCode     string // literal returned on success
}
