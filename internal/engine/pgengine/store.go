// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pgengine

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
)

const columnsQuery = `SELECT column_name, data_type
FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1
ORDER BY ordinal_position`

// TableColumns reads the definition of table from the current schema.
func (e *Engine) TableColumns(ctx context.Context, table string) ([]engine.ColumnSpec, bool, error) {
	rows, err := e.pool.Query(ctx, columnsQuery, table)
	if err != nil {
		return nil, false, translate(err)
	}
	defer rows.Close()
	var columns []engine.ColumnSpec
	for rows.Next() {
		var name, dataType string
		if err := rows.Scan(&name, &dataType); err != nil {
			return nil, false, translate(err)
		}
		columns = append(columns, engine.ColumnSpec{Name: name, Type: typeOfName(dataType)})
	}
	if err := rows.Err(); err != nil {
		return nil, false, translate(err)
	}
	return columns, len(columns) > 0, nil
}

// typeOfName maps information_schema data_type values.
func typeOfName(dataType string) column.Type {
	switch strings.ToLower(dataType) {
	case "boolean":
		return column.Boolean
	case "smallint":
		return column.Short
	case "integer":
		return column.Int
	case "bigint":
		return column.Long
	case "real":
		return column.Float
	case "double precision", "numeric":
		return column.Double
	case "date":
		return column.Date
	case "timestamp without time zone", "timestamp with time zone", "timestamptz":
		return column.Timestamp
	case "bytea":
		return column.Binary
	default:
		return column.String
	}
}

// sqlType is the server type a new column of typ is created with.
func sqlType(typ column.Type) string {
	switch typ {
	case column.Boolean:
		return "boolean"
	case column.Byte, column.Short:
		return "smallint"
	case column.Int:
		return "integer"
	case column.Long:
		return "bigint"
	case column.Float:
		return "real"
	case column.Double:
		return "double precision"
	case column.Date:
		return "date"
	case column.Timestamp:
		return "timestamptz"
	case column.Binary:
		return "bytea"
	default:
		return "text"
	}
}

func createTableSQL(table string, columns []engine.ColumnSpec) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(pgx.Identifier{table}.Sanitize())
	sb.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(pgx.Identifier{c.Name}.Sanitize())
		sb.WriteByte(' ')
		sb.WriteString(sqlType(c.Type))
	}
	sb.WriteByte(')')
	return sb.String()
}

func (e *Engine) CreateTable(ctx context.Context, table string, columns []engine.ColumnSpec) error {
	if _, err := e.pool.Exec(ctx, createTableSQL(table, columns)); err != nil {
		return translate(err)
	}
	return nil
}

// OpenWriter buffers rows and sends them with the COPY protocol on Commit.
func (e *Engine) OpenWriter(ctx context.Context, table string) (engine.TableWriter, error) {
	columns, ok, err := e.TableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, qerrors.Executionf("table does not exist [table=%s]", table)
	}
	w := &writer{eng: e, table: table, columns: columns, names: make([]string, len(columns))}
	for i, c := range columns {
		w.names[i] = c.Name
	}
	return w, nil
}

type writer struct {
	eng     *Engine
	table   string
	columns []engine.ColumnSpec
	names   []string
	rows    [][]any
}

func (w *writer) Append(values []any) error {
	if len(values) != len(w.columns) {
		return qerrors.Executionf("expected %d values, got %d", len(w.columns), len(values))
	}
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = toServer(w.columns[i].Type, v)
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *writer) Commit(ctx context.Context) (int64, error) {
	if len(w.rows) == 0 {
		return 0, nil
	}
	rows := w.rows
	w.rows = w.rows[:0]
	n, err := w.eng.pool.CopyFrom(ctx, pgx.Identifier{w.table}, w.names, pgx.CopyFromRows(rows))
	if err != nil {
		return n, translate(err)
	}
	return n, nil
}

func (w *writer) Close() error {
	w.rows = nil
	return nil
}

// toServer converts loader values into what the COPY encoder expects.
// Dates arrive as epoch milliseconds and timestamps as microseconds.
func toServer(typ column.Type, v any) any {
	n, isInt := v.(int64)
	switch {
	case v == nil:
		return nil
	case typ == column.Date && isInt:
		return time.UnixMilli(n).UTC()
	case typ == column.Timestamp && isInt:
		return time.UnixMicro(n).UTC()
	case (typ == column.Short || typ == column.Byte) && isInt:
		return int16(n)
	case typ == column.Int && isInt:
		return int32(n)
	case typ == column.Float:
		if f, ok := v.(float64); ok {
			return float32(f)
		}
	}
	return v
}
