package scanner

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/thistlelang/thistle/lang/token"
)

func scanAll(t *testing.T, src string) ([]token.Token, ErrorList) {
	t.Helper()
	var s Scanner
	var errs ErrorList
	s.Init("test", []byte(src), &errs)
	var toks []token.Token
	for {
		tok := s.Scan()
		toks = append(toks, tok)
		if tok.Kind == token.EOF {
			break
		}
	}
	return toks, errs
}

func kinds(toks []token.Token) []token.Kind {
	out := make([]token.Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestScanBasics(t *testing.T) {
	toks, errs := scanAll(t, `var a = 3 + 4 * 2;`)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.PLUS, token.NUMBER,
		token.STAR, token.NUMBER, token.SEMI, token.EOF,
	}, kinds(toks))
}

func TestScanKeywordsVsIdents(t *testing.T) {
	toks, errs := scanAll(t, "class classy this thistle")
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{token.CLASS, token.IDENT, token.THIS, token.IDENT, token.EOF}, kinds(toks))
}

func TestScanTwoCharOperators(t *testing.T) {
	toks, errs := scanAll(t, "== != <= >= += -= *= /= ++ -- **")
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.EQ_EQ, token.BANG_EQ, token.LT_EQ, token.GT_EQ, token.PLUS_EQ,
		token.MINUS_EQ, token.STAR_EQ, token.SLASH_EQ, token.PLUS_PLUS,
		token.MINUS_MINUS, token.STAR_STAR, token.EOF,
	}, kinds(toks))
}

func TestScanComments(t *testing.T) {
	src := "#!/usr/bin/thistle\nvar a = 1; // trailing\n/* block\ncomment */ var b = 2;"
	toks, errs := scanAll(t, src)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI,
		token.VAR, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF,
	}, kinds(toks))
}

func TestScanStrings(t *testing.T) {
	toks, errs := scanAll(t, `"hi\n" 'world' r"raw\n"`)
	require.Empty(t, errs)
	require.Equal(t, []token.Kind{token.STRING, token.STRING, token.RAW_STRING, token.EOF}, kinds(toks))

	require.Equal(t, "hi\n", Decode(toks[0], []byte(`"hi\n" 'world' r"raw\n"`), false))
	require.Equal(t, `raw\n`, Decode(toks[2], []byte(`"hi\n" 'world' r"raw\n"`), true))
}

func TestScanUnterminatedString(t *testing.T) {
	_, errs := scanAll(t, `"never closes`)
	require.Len(t, errs, 1)
	require.Contains(t, errs[0].Error(), "unterminated string")
}

func TestScanIllegalCharacter(t *testing.T) {
	_, errs := scanAll(t, "var a = @;")
	require.Len(t, errs, 1)
	require.Contains(t, errs.Error(), "unexpected character")
}

func TestScanMultilineString(t *testing.T) {
	toks, errs := scanAll(t, "\"line1\nline2\"")
	require.Empty(t, errs)
	require.Len(t, toks, 2)
	require.Equal(t, 1, toks[0].Line)
}
