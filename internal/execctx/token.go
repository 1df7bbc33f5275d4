package execctx

// kind identifies a lexical token type for the supported Python-flavored
// subset described in SPEC_FULL.md §3a.
type kind int

const (
	tEOF kind = iota
	tNewline
	tIndent
	tDedent
	tIdent
	tInt
	tFloat
	tString
	tKeyword
	tOp
	tSemicolon
	tLParen
	tRParen
	tLBracket
	tRBracket
	tComma
	tColon
	tAssign
)

var keywords = map[string]bool{
	"def": true, "return": true, "if": true, "elif": true, "else": true,
	"while": true, "for": true, "in": true, "and": true, "or": true,
	"not": true, "True": true, "False": true, "None": true,
	"break": true, "continue": true,
}

type token struct {
	kind kind
	text string
	// pos is the byte offset of the start of this token in the source,
	// reported in syntax error messages.
	pos int
	end int
}
