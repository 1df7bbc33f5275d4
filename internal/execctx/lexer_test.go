package execctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []token) []kind {
	out := make([]kind, len(toks))
	for i, t := range toks {
		out[i] = t.kind
	}
	return out
}

func TestLexerIndentDedent(t *testing.T) {
	toks, err := newLexer("if a:\n    b\nc\n").tokenize()
	require.NoError(t, err)
	assert.Contains(t, kinds(toks), tIndent)
	assert.Contains(t, kinds(toks), tDedent)
}

func TestLexerAttributeDot(t *testing.T) {
	toks, err := newLexer("a.b").tokenize()
	require.NoError(t, err)
	require.Len(t, toks, 4) // ident, op(.), ident, eof
	assert.Equal(t, tIdent, toks[0].kind)
	assert.Equal(t, tOp, toks[1].kind)
	assert.Equal(t, ".", toks[1].text)
	assert.Equal(t, tIdent, toks[2].kind)
}

func TestLexerSemicolonSeparator(t *testing.T) {
	toks, err := newLexer("a = 1; b = 2").tokenize()
	require.NoError(t, err)
	assert.Contains(t, kinds(toks), tSemicolon)
}

func TestLexerMultiCharOperators(t *testing.T) {
	toks, err := newLexer("a >= 1 and a != 2").tokenize()
	require.NoError(t, err)
	var texts []string
	for _, tk := range toks {
		if tk.kind == tOp {
			texts = append(texts, tk.text)
		}
	}
	assert.Contains(t, texts, ">=")
	assert.Contains(t, texts, "!=")
}

func TestLexerUnterminatedStringErrors(t *testing.T) {
	_, err := newLexer(`a = "unterminated`).tokenize()
	assert.Error(t, err)
}

func TestParserAttributeAccessRoundTrip(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`d = {"k": 5}
d.k`, true)
	require.Nil(t, res.Err)
	assert.Equal(t, int64(5), res.DisplayObject)
}

func TestParserIfElifElse(t *testing.T) {
	ec := NewExecutionContext()
	res := ec.Execute(`x = 2
if x == 1:
    r = "one"
elif x == 2:
    r = "two"
else:
    r = "other"
r`, true)
	require.Nil(t, res.Err)
	assert.Equal(t, "two", res.DisplayObject)
}
