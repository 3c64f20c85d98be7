package itc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	lex := newLexer("test.it", src)
	var toks []Token
	for {
		tok := lex.next()
		if tok.Kind == tokEOF {
			return toks
		}
		toks = append(toks, tok)
		require.Less(t, len(toks), 1000)
	}
}

func kinds(toks []Token) []TokenKind {
	k := make([]TokenKind, len(toks))
	for i, tok := range toks {
		k[i] = tok.Kind
	}
	return k
}

func TestLexBasic(t *testing.T) {
	toks := lexAll(t, `fn main() @entry { i32 x = 10; }`)
	assert.Equal(t,
		[]TokenKind{tokFn, tokIdent, tokOpenParen, tokCloseParen, tokAt, tokIdent,
			tokOpenCurly, tokIdent, tokIdent, tokAssign, tokNumber, tokSemicolon, tokCloseCurly},
		kinds(toks))
	assert.Equal(t, "main", toks[1].Text)
	assert.Equal(t, "10", toks[10].Text)
}

func TestLexComments(t *testing.T) {
	toks := lexAll(t, `
// line comment
fn /* block
comment */ f();
`)
	assert.Equal(t, []TokenKind{tokFn, tokIdent, tokOpenParen, tokCloseParen, tokSemicolon}, kinds(toks))
}

func TestLexOperators(t *testing.T) {
	toks := lexAll(t, `= == != < <= > >= << >> && & || | ^ + - * / % ...`)
	assert.Equal(t,
		[]TokenKind{tokAssign, tokEQ, tokNEQ, tokLT, tokLTE, tokGT, tokGTE,
			tokShl, tokShr, tokLogicalAnd, tokAnd, tokLogicalOr, tokOr, tokXor,
			tokAdd, tokSub, tokMul, tokDiv, tokMod, tokEllipsis},
		kinds(toks))
}

func TestLexLiterals(t *testing.T) {
	toks := lexAll(t, `"v.z = '%d'\n" 100 1.5`)
	require.Equal(t, []TokenKind{tokString, tokNumber, tokFloat}, kinds(toks))
	assert.Equal(t, `v.z = '%d'\n`, toks[0].Text)
	assert.Equal(t, "100", toks[1].Text)
	assert.Equal(t, "1.5", toks[2].Text)
}

func TestLexPositions(t *testing.T) {
	toks := lexAll(t, "fn\n  main")
	require.Len(t, toks, 2)
	assert.Equal(t, "test.it", toks[0].Pos.Filename)
	assert.Equal(t, 1, toks[0].Pos.Line)
	assert.Equal(t, 2, toks[1].Pos.Line)
	assert.Equal(t, 3, toks[1].Pos.Column)
}

func TestLexError(t *testing.T) {
	err := func(src string) error {
		_, err := Parse("test.it", src)
		return err
	}(`fn f() { $ }`)
	require.Error(t, err)
	assert.Equal(t, SyntaxError, err.(*Error).Kind)
}
