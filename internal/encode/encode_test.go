// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package encode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/respbuf"
)

// row is a single-row record backed by a slice of Go values; a nil string
// slot stands for a null STRING or SYMBOL.
type row []any

func (r row) Bool(col int) bool       { return r[col].(bool) }
func (r row) Byte(col int) int8       { return r[col].(int8) }
func (r row) Short(col int) int16     { return r[col].(int16) }
func (r row) Char(col int) rune       { return r[col].(rune) }
func (r row) Int(col int) int32       { return r[col].(int32) }
func (r row) Long(col int) int64      { return r[col].(int64) }
func (r row) Date(col int) int64      { return r[col].(int64) }
func (r row) Timestamp(col int) int64 { return r[col].(int64) }
func (r row) Float(col int) float32   { return r[col].(float32) }
func (r row) Double(col int) float64  { return r[col].(float64) }
func (r row) Bin(col int) []byte      { return r[col].([]byte) }

func (r row) Str(col int) (string, bool) {
	s, ok := r[col].(string)
	return s, ok
}

func (r row) Sym(col int) (string, bool) { return r.Str(col) }

func (r row) Long256(col int) column.Long256 { return r[col].(column.Long256) }

func TestEncoders(t *testing.T) {
	nullLong256 := column.Long256{L0: column.NullLong, L1: column.NullLong, L2: column.NullLong, L3: column.NullLong}

	tests := []struct {
		name  string
		typ   column.Type
		value any
		want  string
	}{
		{name: "bool", typ: column.Boolean, value: false, want: "false"},
		{name: "byte", typ: column.Byte, value: int8(-3), want: "-3"},
		{name: "short", typ: column.Short, value: int16(1024), want: "1024"},
		{name: "char", typ: column.Char, value: 'q', want: `"q"`},
		{name: "char zero", typ: column.Char, value: column.NullChar, want: `""`},
		{name: "int", typ: column.Int, value: int32(7), want: "7"},
		{name: "int null", typ: column.Int, value: column.NullInt, want: "null"},
		{name: "int max", typ: column.Int, value: int32(math.MaxInt32), want: "2147483647"},
		{name: "long", typ: column.Long, value: int64(-9), want: "-9"},
		{name: "long null", typ: column.Long, value: column.NullLong, want: "null"},
		{name: "date", typ: column.Date, value: int64(86_400_000), want: `"1970-01-02T00:00:00.000Z"`},
		{name: "date null", typ: column.Date, value: column.NullLong, want: "null"},
		{name: "timestamp", typ: column.Timestamp, value: int64(1_000_001), want: `"1970-01-01T00:00:01.000001Z"`},
		{name: "timestamp null", typ: column.Timestamp, value: column.NullLong, want: "null"},
		{name: "float", typ: column.Float, value: float32(0.5), want: "0.5"},
		{name: "double", typ: column.Double, value: 1.25, want: "1.25"},
		{name: "double nan", typ: column.Double, value: math.NaN(), want: "null"},
		{name: "string", typ: column.String, value: `a"b`, want: `"a\"b"`},
		{name: "string null", typ: column.String, value: nil, want: "null"},
		{name: "symbol", typ: column.Symbol, value: "eu", want: `"eu"`},
		{name: "symbol null", typ: column.Symbol, value: nil, want: "null"},
		{name: "binary", typ: column.Binary, value: []byte{1, 2, 3}, want: "[]"},
		{name: "long256", typ: column.TypeLong256, value: column.Long256{L0: 0x10}, want: `"0x10"`},
		{name: "long256 zero", typ: column.TypeLong256, value: column.Long256{}, want: `"0x0"`},
		{name: "long256 null", typ: column.TypeLong256, value: nullLong256, want: `""`},
	}

	table := NewTable(0, 0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := respbuf.New(128)
			table.Encode(b, tt.typ, row{tt.value}, 0)
			require.NoError(t, b.Err())
			require.Equal(t, tt.want, string(b.Bytes()))
		})
	}
}

func TestEncoderScales(t *testing.T) {
	table := NewTable(2, 3)
	b := respbuf.New(64)
	table.Encode(b, column.Float, row{float32(1.23456)}, 0)
	b.PutByte(',')
	table.Encode(b, column.Double, row{2.71828}, 0)
	require.Equal(t, "1.23,2.718", string(b.Bytes()))
}

func TestTableIsComplete(t *testing.T) {
	table := NewTable(0, 0)
	for typ := column.Type(0); typ < column.TypeCount; typ++ {
		require.NotNil(t, table[typ], typ.String())
	}
}
