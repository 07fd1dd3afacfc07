// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package memengine is an in-memory columnar engine with a small SQL
// dialect: SELECT over tables and long_sequence(n), CREATE TABLE, DROP
// TABLE, INSERT INTO ... VALUES and COPY ... FROM.
//
// Tables are append-only column vectors. A cursor snapshots the row count
// when it opens, so concurrent inserts never show up in a running query.
// Every CREATE assigns a new table version; plans compiled against an older
// version fail when asked for a cursor and must be recompiled.
package memengine

import (
	"context"
	"strings"
	"sync"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
)

type table struct {
	name    string
	version uint64
	columns []engine.ColumnSpec
	data    [][]any
	rows    int
}

// Engine is safe for concurrent use.
type Engine struct {
	mu      sync.RWMutex
	tables  map[string]*table
	version uint64
}

var _ engine.Engine = (*Engine)(nil)

// New returns an empty engine.
func New() *Engine {
	return &Engine{tables: make(map[string]*table)}
}

func key(name string) string { return strings.ToLower(name) }

// Close implements engine.Engine.
func (e *Engine) Close() error { return nil }

// Tables returns the names of all tables.
func (e *Engine) Tables() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, 0, len(e.tables))
	for _, t := range e.tables {
		names = append(names, t.name)
	}
	return names
}

// TableColumns implements engine.TableStore.
func (e *Engine) TableColumns(_ context.Context, name string) ([]engine.ColumnSpec, bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[key(name)]
	if !ok {
		return nil, false, nil
	}
	return append([]engine.ColumnSpec(nil), t.columns...), true, nil
}

// CreateTable implements engine.TableStore.
func (e *Engine) CreateTable(_ context.Context, name string, columns []engine.ColumnSpec) error {
	return e.createTable(name, columns, 0)
}

func (e *Engine) createTable(name string, columns []engine.ColumnSpec, pos int) error {
	if len(columns) == 0 {
		return qerrors.SyntaxAt(pos, "at least one column expected")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if !c.Type.Valid() {
			return qerrors.SyntaxAt(pos, "invalid type for column %s", c.Name)
		}
		if _, dup := seen[key(c.Name)]; dup {
			return qerrors.SyntaxAt(pos, "Duplicate column [name=%s]", c.Name)
		}
		seen[key(c.Name)] = struct{}{}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.tables[key(name)]; exists {
		return qerrors.SyntaxAt(pos, "table already exists [table=%s]", name)
	}
	e.version++
	e.tables[key(name)] = &table{
		name:    name,
		version: e.version,
		columns: append([]engine.ColumnSpec(nil), columns...),
		data:    make([][]any, len(columns)),
	}
	return nil
}

// DropTable removes a table. Plans compiled against it go stale.
func (e *Engine) DropTable(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.tables[key(name)]; !ok {
		return false
	}
	delete(e.tables, key(name))
	return true
}

// lookup returns the table and its version under the read lock.
func (e *Engine) lookup(name string) (*table, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[key(name)]
	return t, ok
}

// snapshot returns the projected column vectors of table name as of now,
// failing if the table no longer has the expected version.
func (e *Engine) snapshot(name string, version uint64, proj []int) ([][]any, int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.tables[key(name)]
	if !ok || t.version != version {
		return nil, 0, qerrors.Executionf("table reader is stale [table=%s]", name)
	}
	cols := make([][]any, len(proj))
	for i, c := range proj {
		cols[i] = t.data[c][:t.rows:t.rows]
	}
	return cols, t.rows, nil
}

// appendRows adds normalized rows to a table.
func (e *Engine) appendRows(name string, version uint64, rows [][]any) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.tables[key(name)]
	if !ok || t.version != version {
		return 0, qerrors.Executionf("table was dropped while writing [table=%s]", name)
	}
	for _, row := range rows {
		for c := range t.columns {
			t.data[c] = append(t.data[c], row[c])
		}
		t.rows++
	}
	return int64(len(rows)), nil
}

// OpenWriter implements engine.TableStore.
func (e *Engine) OpenWriter(_ context.Context, name string) (engine.TableWriter, error) {
	t, ok := e.lookup(name)
	if !ok {
		return nil, qerrors.Executionf("table does not exist [table=%s]", name)
	}
	return &writer{eng: e, table: t.name, version: t.version, columns: t.columns}, nil
}

type writer struct {
	eng     *Engine
	table   string
	version uint64
	columns []engine.ColumnSpec
	pending [][]any
}

// Append validates and buffers one row.
func (w *writer) Append(values []any) error {
	if len(values) != len(w.columns) {
		return qerrors.Executionf("row has %d values, table %s has %d columns", len(values), w.table, len(w.columns))
	}
	row := make([]any, len(values))
	for i, v := range values {
		n, err := normalize(w.columns[i].Type, v)
		if err != nil {
			return qerrors.Wrap(qerrors.Execution, "column "+w.columns[i].Name, err)
		}
		row[i] = n
	}
	w.pending = append(w.pending, row)
	return nil
}

// Commit publishes buffered rows.
func (w *writer) Commit(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := w.eng.appendRows(w.table, w.version, w.pending)
	w.pending = w.pending[:0]
	return n, err
}

// Close discards uncommitted rows.
func (w *writer) Close() error {
	w.pending = nil
	return nil
}

// metadata is a column list.
type metadata []engine.ColumnSpec

func (m metadata) ColumnCount() int               { return len(m) }
func (m metadata) ColumnName(col int) string      { return m[col].Name }
func (m metadata) ColumnType(col int) column.Type { return m[col].Type }
