package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindString(t *testing.T) {
	for k := Kind(0); k < maxKind; k++ {
		require.NotEmpty(t, k.String(), "kind %d should have a string form", k)
	}
	require.Contains(t, Kind(maxKind).String(), "kind(")
}

func TestLookupIdent(t *testing.T) {
	cases := map[string]Kind{
		"and":      AND,
		"or":       OR,
		"if":       IF,
		"else":     ELSE,
		"while":    WHILE,
		"for":      FOR,
		"break":    BREAK,
		"continue": CONTINUE,
		"return":   RETURN,
		"fun":      FUN,
		"class":    CLASS,
		"extends":  EXTENDS,
		"this":     THIS,
		"super":    SUPER,
		"var":      VAR,
		"local":    LOCAL,
		"const":    CONST,
		"null":     NULL,
		"true":     TRUE,
		"false":    FALSE,
		"echo":     ECHO,
		"module":   MODULE,
		"using":    USING,
		"as":       AS,

		"x":         IDENT,
		"a":         IDENT,
		"elsewhere": IDENT,
		"classy":    IDENT,
		"":          IDENT,
	}
	for word, want := range cases {
		require.Equal(t, want, LookupIdent(word), "word %q", word)
	}
}

func TestTokenLexeme(t *testing.T) {
	src := []byte("var answer = 42;")
	tok := Token{Kind: IDENT, Start: 4, Length: 6, Line: 1}
	require.Equal(t, "answer", tok.Lexeme(src))
}
