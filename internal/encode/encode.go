// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package encode renders single column values of a record as JSON. Encoders
// are looked up in a fixed table indexed by column type.
package encode

import (
	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	"github.com/anjanb/questdb/internal/respbuf"
)

// Func appends the value of column col of rec to b.
type Func func(b *respbuf.Buffer, rec engine.Record, col int)

// Table maps every column type to its encoder.
type Table [column.TypeCount]Func

// Default scales for floating point columns.
const (
	DefaultFloatScale  = 4
	DefaultDoubleScale = 12
)

// NewTable builds the encoder table. Non-positive scales fall back to the
// defaults.
func NewTable(floatScale, doubleScale int) *Table {
	if floatScale <= 0 {
		floatScale = DefaultFloatScale
	}
	if doubleScale <= 0 {
		doubleScale = DefaultDoubleScale
	}
	return &Table{
		column.Boolean: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutBool(rec.Bool(col))
		},
		column.Byte: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutInt(int64(rec.Byte(col)))
		},
		column.Short: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutInt(int64(rec.Short(col)))
		},
		column.Char: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutQuotedChar(rec.Char(col))
		},
		column.Int: putInt,
		column.Long: func(b *respbuf.Buffer, rec engine.Record, col int) {
			putLong(b, rec.Long(col))
		},
		column.Date: func(b *respbuf.Buffer, rec engine.Record, col int) {
			v := rec.Date(col)
			if v == column.NullLong {
				b.PutNull()
				return
			}
			b.PutISOMillis(v)
		},
		column.Timestamp: func(b *respbuf.Buffer, rec engine.Record, col int) {
			v := rec.Timestamp(col)
			if v == column.NullLong {
				b.PutNull()
				return
			}
			b.PutISOMicros(v)
		},
		column.Float: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutFloat(rec.Float(col), floatScale)
		},
		column.Double: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutDouble(rec.Double(col), doubleScale)
		},
		column.String: func(b *respbuf.Buffer, rec engine.Record, col int) {
			s, ok := rec.Str(col)
			putOptional(b, s, ok)
		},
		column.Symbol: func(b *respbuf.Buffer, rec engine.Record, col int) {
			s, ok := rec.Sym(col)
			putOptional(b, s, ok)
		},
		// Binary payloads are not rendered.
		column.Binary: func(b *respbuf.Buffer, _ engine.Record, _ int) {
			b.PutString("[]")
		},
		column.TypeLong256: func(b *respbuf.Buffer, rec engine.Record, col int) {
			b.PutLong256(rec.Long256(col))
		},
	}
}

// Encode appends column col of rec using the encoder for typ.
func (t *Table) Encode(b *respbuf.Buffer, typ column.Type, rec engine.Record, col int) {
	t[typ](b, rec, col)
}

func putInt(b *respbuf.Buffer, rec engine.Record, col int) {
	v := rec.Int(col)
	if v == column.NullInt {
		b.PutNull()
		return
	}
	b.PutInt(int64(v))
}

func putLong(b *respbuf.Buffer, v int64) {
	if v == column.NullLong {
		b.PutNull()
		return
	}
	b.PutInt(v)
}

func putOptional(b *respbuf.Buffer, s string, ok bool) {
	if !ok {
		b.PutNull()
		return
	}
	b.PutQuoted(s)
}
