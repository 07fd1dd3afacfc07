// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package memengine

import (
	"context"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
)

// tablePlan selects projected columns of one table version.
type tablePlan struct {
	eng     *Engine
	table   string
	version uint64
	proj    []int
	meta    metadata
}

func (p *tablePlan) Metadata() engine.Metadata { return p.meta }
func (p *tablePlan) Close() error              { return nil }

func (p *tablePlan) Cursor(ctx context.Context) (engine.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cols, n, err := p.eng.snapshot(p.table, p.version, p.proj)
	if err != nil {
		return nil, err
	}
	c := &tableCursor{n: n, row: -1}
	c.rec.cols = cols
	return c, nil
}

type tableCursor struct {
	rec tableRecord
	n   int
	row int
}

func (c *tableCursor) Next() bool {
	if c.row+1 >= c.n {
		c.row = c.n
		return false
	}
	c.row++
	c.rec.row = c.row
	return true
}

func (c *tableCursor) Record() engine.Record { return &c.rec }
func (c *tableCursor) Size() int64           { return int64(c.n) }
func (c *tableCursor) Err() error            { return nil }
func (c *tableCursor) Close() error          { return nil }

// tableRecord reads stored values of the current row. Values were
// normalized on insert, so the assertions hold by construction.
type tableRecord struct {
	cols [][]any
	row  int
}

func (r *tableRecord) v(col int) any { return r.cols[col][r.row] }

func (r *tableRecord) Bool(col int) bool       { return r.v(col).(bool) }
func (r *tableRecord) Byte(col int) int8       { return r.v(col).(int8) }
func (r *tableRecord) Short(col int) int16     { return r.v(col).(int16) }
func (r *tableRecord) Char(col int) rune       { return r.v(col).(rune) }
func (r *tableRecord) Int(col int) int32       { return r.v(col).(int32) }
func (r *tableRecord) Long(col int) int64      { return r.v(col).(int64) }
func (r *tableRecord) Date(col int) int64      { return r.v(col).(int64) }
func (r *tableRecord) Timestamp(col int) int64 { return r.v(col).(int64) }
func (r *tableRecord) Float(col int) float32   { return r.v(col).(float32) }
func (r *tableRecord) Double(col int) float64  { return r.v(col).(float64) }

func (r *tableRecord) Str(col int) (string, bool) {
	s, ok := r.v(col).(string)
	return s, ok
}

func (r *tableRecord) Sym(col int) (string, bool) { return r.Str(col) }

func (r *tableRecord) Bin(col int) []byte {
	b, _ := r.v(col).([]byte)
	return b
}

func (r *tableRecord) Long256(col int) column.Long256 { return r.v(col).(column.Long256) }

// sequencePlan is long_sequence(n): a single LONG column x counting 1..n.
type sequencePlan struct {
	n    int64
	meta metadata
}

func newSequencePlan(n int64, width int) *sequencePlan {
	meta := make(metadata, width)
	for i := range meta {
		meta[i] = engine.ColumnSpec{Name: "x", Type: column.Long}
	}
	return &sequencePlan{n: n, meta: meta}
}

func (p *sequencePlan) Metadata() engine.Metadata { return p.meta }
func (p *sequencePlan) Close() error              { return nil }

func (p *sequencePlan) Cursor(ctx context.Context) (engine.Cursor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &sequenceCursor{n: p.n}, nil
}

type sequenceCursor struct {
	n, x int64
}

func (c *sequenceCursor) Next() bool {
	if c.x >= c.n {
		return false
	}
	c.x++
	return true
}

func (c *sequenceCursor) Record() engine.Record { return (*sequenceRecord)(c) }
func (c *sequenceCursor) Size() int64           { return c.n }
func (c *sequenceCursor) Err() error            { return nil }
func (c *sequenceCursor) Close() error          { return nil }

// sequenceRecord exposes the counter of a sequenceCursor as every column.
type sequenceRecord sequenceCursor

func (r *sequenceRecord) Long(int) int64 { return r.x }

func (r *sequenceRecord) Bool(int) bool              { return false }
func (r *sequenceRecord) Byte(int) int8              { return 0 }
func (r *sequenceRecord) Short(int) int16            { return 0 }
func (r *sequenceRecord) Char(int) rune              { return column.NullChar }
func (r *sequenceRecord) Int(int) int32              { return column.NullInt }
func (r *sequenceRecord) Date(int) int64             { return column.NullLong }
func (r *sequenceRecord) Timestamp(int) int64        { return column.NullLong }
func (r *sequenceRecord) Float(int) float32          { return 0 }
func (r *sequenceRecord) Double(int) float64         { return 0 }
func (r *sequenceRecord) Str(int) (string, bool)     { return "", false }
func (r *sequenceRecord) Sym(int) (string, bool)     { return "", false }
func (r *sequenceRecord) Bin(int) []byte             { return nil }
func (r *sequenceRecord) Long256(int) column.Long256 { return nullLong256 }
