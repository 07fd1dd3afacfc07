// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package engine declares the storage and compiler collaborators the query
// processor streams from. Concrete engines live in subpackages.
package engine

import (
	"context"

	"github.com/anjanb/questdb/internal/column"
)

// Record is the current row of a cursor. Accessors are typed by column type
// and must only be called for columns of the matching type.
type Record interface {
	Bool(col int) bool
	Byte(col int) int8
	Short(col int) int16
	Char(col int) rune
	Int(col int) int32
	Long(col int) int64
	// Date returns milliseconds since the Unix epoch.
	Date(col int) int64
	// Timestamp returns microseconds since the Unix epoch.
	Timestamp(col int) int64
	Float(col int) float32
	Double(col int) float64
	// Str returns false for a null value.
	Str(col int) (string, bool)
	Sym(col int) (string, bool)
	Bin(col int) []byte
	Long256(col int) column.Long256
}

// Metadata describes the columns of a result set.
type Metadata interface {
	ColumnCount() int
	ColumnName(col int) string
	ColumnType(col int) column.Type
}

// Cursor iterates a result set. Record is valid until the next call to Next.
type Cursor interface {
	Next() bool
	Record() Record
	// Size returns the total number of rows, or -1 when unknown.
	Size() int64
	// Err reports an iteration failure after Next returned false.
	Err() error
	Close() error
}

// Plan is a compiled, reusable query. Cursor fails when the plan is stale.
type Plan interface {
	Metadata() Metadata
	Cursor(ctx context.Context) (Cursor, error)
	Close() error
}

// QueryType is the category of a compiled statement.
type QueryType int

const (
	Select QueryType = iota
	Copy
	DDL
)

func (t QueryType) String() string {
	switch t {
	case Select:
		return "select"
	case Copy:
		return "copy"
	case DDL:
		return "ddl"
	default:
		return "unknown"
	}
}

// CopyModel is the parsed form of COPY <table> FROM '<file>'.
type CopyModel struct {
	Table         string
	TablePosition int
	FileName      string
	FilePosition  int
}

// CompiledQuery is the compiler's result. Plan is set for Select, Copy for
// Copy. DDL statements have already been applied when Compile returns.
type CompiledQuery struct {
	Type QueryType
	Plan Plan
	Copy *CopyModel
}

// Compiler turns query text into a CompiledQuery. Syntax errors are returned
// as *errors.E of kind Syntax carrying the offending position.
type Compiler interface {
	Compile(ctx context.Context, query string) (CompiledQuery, error)
}

// ColumnSpec names a column and its type.
type ColumnSpec struct {
	Name string
	Type column.Type
}

// TableWriter appends rows to a table. Values follow the Go types of the
// Record accessors; nil is a null.
type TableWriter interface {
	Append(values []any) error
	Commit(ctx context.Context) (int64, error)
	Close() error
}

// TableStore gives the text loader access to table definitions.
type TableStore interface {
	// TableColumns returns the columns of table and false if it does not exist.
	TableColumns(ctx context.Context, table string) ([]ColumnSpec, bool, error)
	CreateTable(ctx context.Context, table string, columns []ColumnSpec) error
	OpenWriter(ctx context.Context, table string) (TableWriter, error)
}

// Engine is a compiler with table access.
type Engine interface {
	Compiler
	TableStore
	Close() error
}
