// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqllex

import (
	"testing"

	"github.com/stretchr/testify/require"

	qerrors "github.com/anjanb/questdb/internal/errors"
)

func TestTokens(t *testing.T) {
	tokens, err := Tokens(`copy trades from 'data/it''s.csv';`)
	require.NoError(t, err)
	require.Equal(t, []Token{
		{Kind: Ident, Text: "copy", Pos: 0},
		{Kind: Ident, Text: "trades", Pos: 5},
		{Kind: Ident, Text: "from", Pos: 12},
		{Kind: String, Text: "data/it's.csv", Pos: 17},
		{Kind: Punct, Text: ";", Pos: 33},
	}, tokens)
}

func TestTokenKinds(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		text  string
	}{
		{name: "number", input: "42", kind: Number, text: "42"},
		{name: "negative", input: "-7", kind: Number, text: "-7"},
		{name: "decimal", input: "1.5e3", kind: Number, text: "1.5e3"},
		{name: "quoted ident", input: `"My Table"`, kind: QuotedIdent, text: "My Table"},
		{name: "operator", input: ">=", kind: Operator, text: ">="},
		{name: "star", input: "*", kind: Punct, text: "*"},
		{name: "invalid", input: "#", kind: Invalid, text: "#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := New(tt.input).Next()
			require.Equal(t, tt.kind, tok.Kind)
			require.Equal(t, tt.text, tok.Text)
		})
	}
}

func TestPeekAndComments(t *testing.T) {
	l := New("-- leading\nSELECT  x")
	require.True(t, l.Peek().Is("select"))
	require.Equal(t, 11, l.Next().Pos)
	x := l.Next()
	require.Equal(t, "x", x.Text)
	require.Equal(t, 19, x.Pos)
	require.Equal(t, EOF, l.Next().Kind)
}

func TestUnterminatedString(t *testing.T) {
	_, err := Tokens("select 'abc")
	require.Error(t, err)
	require.True(t, qerrors.Is(err, qerrors.Syntax))
	_, pos := qerrors.Details(err)
	require.Equal(t, 7, pos)
}
