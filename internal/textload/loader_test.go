// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package textload

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	"github.com/anjanb/questdb/internal/engine/memengine"
)

// load feeds input to a fresh loader in chunks of size n.
func load(t *testing.T, store engine.TableStore, table, input string, n int) Summary {
	t.Helper()
	ctx := context.Background()
	l := New(store, nil)
	l.Configure(table)
	data := []byte(input)
	for first := true; len(data) > 0; first = false {
		size := n
		if size > len(data) {
			size = len(data)
		}
		if first {
			l.SetState(AnalyzeStructure)
		} else {
			l.SetState(LoadData)
		}
		require.NoError(t, l.Parse(ctx, data[:size]))
		data = data[size:]
	}
	s, err := l.WrapUp(ctx)
	require.NoError(t, err)
	return s
}

func count(t *testing.T, e *memengine.Engine, table string) int64 {
	t.Helper()
	cq, err := e.Compile(context.Background(), table)
	require.NoError(t, err)
	cur, err := cq.Plan.Cursor(context.Background())
	require.NoError(t, err)
	defer cur.Close()
	return cur.Size()
}

const trades = "sym,price,qty,ts\n" +
	"BTC,101.5,3,2024-01-02T03:04:05Z\n" +
	"ETH,7,40000000000,2024-01-02T03:04:06Z\n" +
	"\"SOL, wrapped\",0.25,1,2024-01-02T03:04:07Z\n"

func TestAnalyzeCreatesTable(t *testing.T) {
	e := memengine.New()
	s := load(t, e, "trades", trades, 4096)

	require.True(t, s.Header)
	require.True(t, s.Created)
	require.Equal(t, ',', s.Delimiter)
	require.Equal(t, []engine.ColumnSpec{
		{Name: "sym", Type: column.String},
		{Name: "price", Type: column.Double},
		{Name: "qty", Type: column.Long},
		{Name: "ts", Type: column.Timestamp},
	}, s.Columns)
	require.Equal(t, int64(3), s.RowsLoaded)
	require.Zero(t, s.RowsRejected)
	require.Equal(t, int64(3), count(t, e, "trades"))
}

func TestChunkBoundariesDoNotMatter(t *testing.T) {
	for _, n := range []int{1, 7, 33, 64} {
		e := memengine.New()
		s := load(t, e, "trades", trades, n)
		require.Equal(t, int64(3), s.RowsLoaded, "chunk size %d", n)
		require.Equal(t, int64(len(trades)), s.Bytes)
	}
}

func TestSkipsBadRows(t *testing.T) {
	e := memengine.New()
	ctx := context.Background()
	require.NoError(t, e.CreateTable(ctx, "m", []engine.ColumnSpec{
		{Name: "id", Type: column.Int},
		{Name: "v", Type: column.Double},
	}))

	s := load(t, e, "m", "id|v\n1|0.5\nx|1\n2|2|3\n3|\n", 1024)
	require.Equal(t, '|', s.Delimiter)
	require.True(t, s.Header)
	require.False(t, s.Created)
	require.Equal(t, int64(2), s.RowsLoaded)
	require.Equal(t, int64(2), s.RowsRejected)
}

func TestNoHeaderAndFinalLineWithoutNewline(t *testing.T) {
	e := memengine.New()
	s := load(t, e, "seq", "1\t2\n3\t4", 1024)
	require.False(t, s.Header)
	require.Equal(t, '\t', s.Delimiter)
	require.Equal(t, "f0", s.Columns[0].Name)
	require.Equal(t, column.Int, s.Columns[1].Type)
	require.Equal(t, int64(2), s.RowsLoaded)
}

func TestLoadDataBeforeAnalyzeFails(t *testing.T) {
	l := New(memengine.New(), nil)
	l.Configure("t")
	l.SetState(LoadData)
	require.Error(t, l.Parse(context.Background(), []byte("1,2\n")))
}

func TestInferType(t *testing.T) {
	tests := []struct {
		in   string
		want column.Type
	}{
		{in: "true", want: column.Boolean},
		{in: "42", want: column.Int},
		{in: "-2147483648", want: column.Long},
		{in: "9000000000", want: column.Long},
		{in: "1.5", want: column.Double},
		{in: "2024-05-01", want: column.Timestamp},
		{in: "hello", want: column.String},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, inferType(tt.in))
		})
	}
}
