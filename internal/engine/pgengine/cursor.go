// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pgengine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
)

// typeOf maps a server type onto a column type. Types without a native
// column are rendered as text.
func typeOf(oid uint32) column.Type {
	switch oid {
	case pgtype.BoolOID:
		return column.Boolean
	case pgtype.Int2OID:
		return column.Short
	case pgtype.Int4OID:
		return column.Int
	case pgtype.Int8OID:
		return column.Long
	case pgtype.Float4OID:
		return column.Float
	case pgtype.Float8OID, pgtype.NumericOID:
		return column.Double
	case pgtype.QCharOID:
		return column.Char
	case pgtype.DateOID:
		return column.Date
	case pgtype.TimestampOID, pgtype.TimestamptzOID:
		return column.Timestamp
	case pgtype.ByteaOID:
		return column.Binary
	case pgtype.NameOID:
		return column.Symbol
	default:
		return column.String
	}
}

type field struct {
	name string
	typ  column.Type
}

type metadata []field

func newMetadata(fields []pgconn.FieldDescription) metadata {
	m := make(metadata, len(fields))
	for i, f := range fields {
		m[i] = field{name: f.Name, typ: typeOf(f.DataTypeOID)}
	}
	return m
}

func (m metadata) ColumnCount() int               { return len(m) }
func (m metadata) ColumnName(col int) string      { return m[col].name }
func (m metadata) ColumnType(col int) column.Type { return m[col].typ }

// plan re-runs its statement for every cursor. A plan whose result shape no
// longer matches the server fails on Cursor so the caller can recompile.
type plan struct {
	pool *pgxpool.Pool
	sql  string
	meta metadata
}

func (p *plan) Metadata() engine.Metadata { return p.meta }
func (p *plan) Close() error              { return nil }

func (p *plan) Cursor(ctx context.Context) (engine.Cursor, error) {
	rows, err := p.pool.Query(ctx, p.sql)
	if err != nil {
		return nil, translate(err)
	}
	if err := p.check(rows.FieldDescriptions()); err != nil {
		rows.Close()
		return nil, err
	}
	c := &cursor{rows: rows}
	// The first row is fetched here so statement failures surface before
	// anything has been streamed.
	c.primed = c.fetch()
	if !c.primed && c.err != nil {
		rows.Close()
		return nil, c.err
	}
	return c, nil
}

func (p *plan) check(fields []pgconn.FieldDescription) error {
	if len(fields) != len(p.meta) {
		return errStale
	}
	for i, f := range fields {
		if typeOf(f.DataTypeOID) != p.meta[i].typ {
			return errStale
		}
	}
	return nil
}

var errStale = qerrors.New(qerrors.Execution, "result shape changed since the statement was described")

type cursor struct {
	rows   pgx.Rows
	rec    record
	primed bool
	done   bool
	err    error
}

func (c *cursor) fetch() bool {
	if !c.rows.Next() {
		c.done = true
		if err := c.rows.Err(); err != nil {
			c.err = translate(err)
		}
		return false
	}
	values, err := c.rows.Values()
	if err != nil {
		c.done = true
		c.err = translate(err)
		return false
	}
	c.rec.values = values
	return true
}

func (c *cursor) Next() bool {
	if c.primed {
		c.primed = false
		return true
	}
	if c.done {
		return false
	}
	return c.fetch()
}

func (c *cursor) Record() engine.Record { return &c.rec }

// Size is unknown until the result has been read.
func (c *cursor) Size() int64 { return -1 }
func (c *cursor) Err() error  { return c.err }

func (c *cursor) Close() error {
	c.rows.Close()
	return nil
}

// record adapts decoded row values to the typed accessors. Nulls become
// the column sentinels.
type record struct {
	values []any
}

func (r *record) Bool(col int) bool {
	b, _ := r.values[col].(bool)
	return b
}

func (r *record) Byte(col int) int8 {
	n, _ := r.values[col].(int16)
	return int8(n)
}

func (r *record) Short(col int) int16 {
	n, _ := r.values[col].(int16)
	return n
}

func (r *record) Char(col int) rune {
	c, ok := r.values[col].(rune)
	if !ok {
		return column.NullChar
	}
	return c
}

func (r *record) Int(col int) int32 {
	n, ok := r.values[col].(int32)
	if !ok {
		return column.NullInt
	}
	return n
}

func (r *record) Long(col int) int64 {
	n, ok := r.values[col].(int64)
	if !ok {
		return column.NullLong
	}
	return n
}

func (r *record) Date(col int) int64 {
	t, ok := r.values[col].(time.Time)
	if !ok {
		return column.NullLong
	}
	return t.UnixMilli()
}

func (r *record) Timestamp(col int) int64 {
	t, ok := r.values[col].(time.Time)
	if !ok {
		return column.NullLong
	}
	return t.UnixMicro()
}

func (r *record) Float(col int) float32 {
	f, ok := r.values[col].(float32)
	if !ok {
		return float32(math.NaN())
	}
	return f
}

func (r *record) Double(col int) float64 {
	switch v := r.values[col].(type) {
	case float64:
		return v
	case pgtype.Numeric:
		f, err := v.Float64Value()
		if err != nil || !f.Valid {
			return math.NaN()
		}
		return f.Float64
	default:
		return math.NaN()
	}
}

func (r *record) Str(col int) (string, bool) {
	return text(r.values[col])
}

func (r *record) Sym(col int) (string, bool) {
	return text(r.values[col])
}

func (r *record) Bin(col int) []byte {
	b, _ := r.values[col].([]byte)
	return b
}

func (r *record) Long256(col int) column.Long256 {
	return column.Long256{L0: column.NullLong, L1: column.NullLong, L2: column.NullLong, L3: column.NullLong}
}

// text renders values of types without a native column.
func text(v any) (string, bool) {
	switch v := v.(type) {
	case nil:
		return "", false
	case string:
		return v, true
	case []byte:
		return string(v), true
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", v[0:4], v[4:6], v[6:8], v[8:10], v[10:16]), true
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), true
	case fmt.Stringer:
		return v.String(), true
	case map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v), true
		}
		return string(b), true
	default:
		return fmt.Sprint(v), true
	}
}
