// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

func TestTableData(t *testing.T) {
	doc, err := decodeDocument(strings.NewReader(
		`{"query":"select * from t","columns":[{"name":"a","type":"INT"},{"name":"description","type":"STRING"}],` +
			`"dataset":[[1,"short"],[null,"a rather long piece of text"],[3.50,true]],"count":3}`))
	require.NoError(t, err)
	require.Equal(t, int64(3), doc.Count)

	require.Equal(t, pterm.TableData{
		{"a", "description"},
		{"1", "short"},
		{"null", "a rather lo…"},
		{"3.50", "true"},
	}, tableData(doc, 30))
}

func TestTableDataWithoutMetadata(t *testing.T) {
	doc, err := decodeDocument(strings.NewReader(`{"dataset":[[1,[]],[2,[1]]],"count":2}`))
	require.NoError(t, err)
	require.Equal(t, pterm.TableData{{"1", "[]"}, {"2", "[1]"}}, tableData(doc, 80))

	empty, err := decodeDocument(strings.NewReader(`{"dataset":[],"count":0}`))
	require.NoError(t, err)
	require.Nil(t, tableData(empty, 80))
}

func TestCaret(t *testing.T) {
	tests := []struct {
		name  string
		query string
		pos   int
		want  string
	}{
		{name: "start", query: "selec 1", pos: 0, want: "^"},
		{name: "middle", query: "select * from nope", pos: 14, want: strings.Repeat(" ", 14) + "^"},
		{name: "multibyte prefix", query: "select 'ü' frm", pos: 12, want: strings.Repeat(" ", 11) + "^"},
		{name: "past end", query: "x", pos: 10, want: " ^"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, caret(tt.query, tt.pos))
		})
	}
}

func TestRenderErrorDocument(t *testing.T) {
	doc, err := decodeDocument(strings.NewReader(`{"query":"select * from nope","error":"table does not exist [table=nope]","position":14}`))
	require.NoError(t, err)

	var out bytes.Buffer
	require.Error(t, renderDocument(&out, doc, time.Millisecond))
	require.Equal(t, "❌ table does not exist [table=nope]\n"+
		"   select * from nope\n"+
		"   "+strings.Repeat(" ", 14)+"^\n", out.String())
}

func TestRenderDDL(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderDocument(&out, &document{DDL: "OK"}, 0))
	require.Equal(t, "✅ OK\n", out.String())
}
