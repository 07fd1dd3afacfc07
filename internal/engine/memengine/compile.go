// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package memengine

import (
	"context"
	"strconv"
	"strings"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/sqllex"
)

// Compile implements engine.Compiler. CREATE, DROP and INSERT are applied
// before it returns and compile to engine.DDL.
func (e *Engine) Compile(ctx context.Context, query string) (engine.CompiledQuery, error) {
	if err := ctx.Err(); err != nil {
		return engine.CompiledQuery{}, err
	}
	p := &parser{eng: e, lex: sqllex.New(query)}
	cq, err := p.statement()
	if lexErr := p.lex.Err(); lexErr != nil {
		err = lexErr
	}
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	return cq, nil
}

type parser struct {
	eng *Engine
	lex *sqllex.Lexer
}

func (p *parser) statement() (engine.CompiledQuery, error) {
	tok := p.lex.Peek()
	switch {
	case tok.Kind == sqllex.EOF:
		return engine.CompiledQuery{}, qerrors.SyntaxAt(0, "empty query")
	case tok.Is("select"):
		return p.selectStatement()
	case tok.Is("create"):
		return p.createTable()
	case tok.Is("drop"):
		return p.dropTable()
	case tok.Is("insert"):
		return p.insert()
	case tok.Is("copy"):
		return p.copyStatement()
	case tok.Kind == sqllex.Ident || tok.Kind == sqllex.QuotedIdent:
		// A bare table name selects the whole table.
		plan, err := p.source(nil)
		if err != nil {
			return engine.CompiledQuery{}, err
		}
		return engine.CompiledQuery{Type: engine.Select, Plan: plan}, p.end()
	default:
		return engine.CompiledQuery{}, p.unexpected(tok)
	}
}

func (p *parser) unexpected(tok sqllex.Token) error {
	if tok.Kind == sqllex.EOF {
		return qerrors.SyntaxAt(tok.Pos, "unexpected end of query")
	}
	return qerrors.SyntaxAt(tok.Pos, "unexpected token: %s", tok.Text)
}

func (p *parser) expectWord(word string) (sqllex.Token, error) {
	tok := p.lex.Next()
	if !tok.Is(word) {
		return tok, qerrors.SyntaxAt(tok.Pos, "'%s' expected", strings.ToLower(word))
	}
	return tok, nil
}

func (p *parser) expectPunct(c byte) error {
	tok := p.lex.Next()
	if !tok.IsPunct(c) {
		return qerrors.SyntaxAt(tok.Pos, "'%c' expected", c)
	}
	return nil
}

func (p *parser) name(what string) (sqllex.Token, error) {
	tok := p.lex.Next()
	if _, ok := tok.Name(); !ok {
		return tok, qerrors.SyntaxAt(tok.Pos, "%s name expected", what)
	}
	return tok, nil
}

// end accepts an optional semicolon followed by the end of input.
func (p *parser) end() error {
	tok := p.lex.Next()
	if tok.IsPunct(';') {
		tok = p.lex.Next()
	}
	if tok.Kind != sqllex.EOF {
		return p.unexpected(tok)
	}
	return nil
}

type projection struct {
	name string
	pos  int
}

// selectStatement parses SELECT * | col, ... FROM source.
func (p *parser) selectStatement() (engine.CompiledQuery, error) {
	p.lex.Next()
	var cols []projection
	if p.lex.Peek().IsPunct('*') {
		p.lex.Next()
	} else {
		for {
			tok, err := p.name("column")
			if err != nil {
				return engine.CompiledQuery{}, err
			}
			cols = append(cols, projection{name: tok.Text, pos: tok.Pos})
			if !p.lex.Peek().IsPunct(',') {
				break
			}
			p.lex.Next()
		}
	}
	if _, err := p.expectWord("from"); err != nil {
		return engine.CompiledQuery{}, err
	}
	plan, err := p.source(cols)
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	if err := p.end(); err != nil {
		return engine.CompiledQuery{}, err
	}
	return engine.CompiledQuery{Type: engine.Select, Plan: plan}, nil
}

// source parses a table name or long_sequence(n) and resolves the
// projection against it. A nil projection selects every column.
func (p *parser) source(cols []projection) (engine.Plan, error) {
	tok, err := p.name("table")
	if err != nil {
		return nil, err
	}
	if tok.Is("long_sequence") && p.lex.Peek().IsPunct('(') {
		return p.sequence(cols)
	}

	t, ok := p.eng.lookup(tok.Text)
	if !ok {
		return nil, qerrors.SyntaxAt(tok.Pos, "table does not exist [table=%s]", tok.Text)
	}
	var proj []int
	if cols == nil {
		proj = make([]int, len(t.columns))
		for i := range proj {
			proj[i] = i
		}
	} else {
		proj = make([]int, len(cols))
		for i, c := range cols {
			idx := columnIndex(t.columns, c.name)
			if idx < 0 {
				return nil, qerrors.SyntaxAt(c.pos, "Invalid column: %s", c.name)
			}
			proj[i] = idx
		}
	}
	meta := make(metadata, len(proj))
	for i, c := range proj {
		meta[i] = t.columns[c]
	}
	return &tablePlan{eng: p.eng, table: t.name, version: t.version, proj: proj, meta: meta}, nil
}

func (p *parser) sequence(cols []projection) (engine.Plan, error) {
	p.lex.Next()
	tok := p.lex.Next()
	n, err := strconv.ParseInt(tok.Text, 10, 64)
	if tok.Kind != sqllex.Number || err != nil || n < 0 {
		return nil, qerrors.SyntaxAt(tok.Pos, "non-negative integer expected")
	}
	if err := p.expectPunct(')'); err != nil {
		return nil, err
	}
	for _, c := range cols {
		if !strings.EqualFold(c.name, "x") {
			return nil, qerrors.SyntaxAt(c.pos, "Invalid column: %s", c.name)
		}
	}
	width := len(cols)
	if cols == nil {
		width = 1
	}
	return newSequencePlan(n, width), nil
}

func columnIndex(columns []engine.ColumnSpec, name string) int {
	for i, c := range columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// createTable parses CREATE TABLE t (c TYPE, ...).
func (p *parser) createTable() (engine.CompiledQuery, error) {
	p.lex.Next()
	if _, err := p.expectWord("table"); err != nil {
		return engine.CompiledQuery{}, err
	}
	nameTok, err := p.name("table")
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	if err := p.expectPunct('('); err != nil {
		return engine.CompiledQuery{}, err
	}
	var columns []engine.ColumnSpec
	for {
		colTok, err := p.name("column")
		if err != nil {
			return engine.CompiledQuery{}, err
		}
		typeTok := p.lex.Next()
		typ, ok := column.ParseType(typeTok.Text)
		if typeTok.Kind != sqllex.Ident || !ok {
			return engine.CompiledQuery{}, qerrors.SyntaxAt(typeTok.Pos, "unsupported column type: %s", typeTok.Text)
		}
		columns = append(columns, engine.ColumnSpec{Name: colTok.Text, Type: typ})
		tok := p.lex.Next()
		if tok.IsPunct(')') {
			break
		}
		if !tok.IsPunct(',') {
			return engine.CompiledQuery{}, qerrors.SyntaxAt(tok.Pos, "',' or ')' expected")
		}
	}
	if err := p.end(); err != nil {
		return engine.CompiledQuery{}, err
	}
	if err := p.eng.createTable(nameTok.Text, columns, nameTok.Pos); err != nil {
		return engine.CompiledQuery{}, err
	}
	return engine.CompiledQuery{Type: engine.DDL}, nil
}

// dropTable parses DROP TABLE t.
func (p *parser) dropTable() (engine.CompiledQuery, error) {
	p.lex.Next()
	if _, err := p.expectWord("table"); err != nil {
		return engine.CompiledQuery{}, err
	}
	nameTok, err := p.name("table")
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	if err := p.end(); err != nil {
		return engine.CompiledQuery{}, err
	}
	if !p.eng.DropTable(nameTok.Text) {
		return engine.CompiledQuery{}, qerrors.SyntaxAt(nameTok.Pos, "table does not exist [table=%s]", nameTok.Text)
	}
	return engine.CompiledQuery{Type: engine.DDL}, nil
}

// insert parses INSERT INTO t VALUES (...), (...).
func (p *parser) insert() (engine.CompiledQuery, error) {
	p.lex.Next()
	if _, err := p.expectWord("into"); err != nil {
		return engine.CompiledQuery{}, err
	}
	nameTok, err := p.name("table")
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	t, ok := p.eng.lookup(nameTok.Text)
	if !ok {
		return engine.CompiledQuery{}, qerrors.SyntaxAt(nameTok.Pos, "table does not exist [table=%s]", nameTok.Text)
	}
	if _, err := p.expectWord("values"); err != nil {
		return engine.CompiledQuery{}, err
	}

	var rows [][]any
	for {
		open := p.lex.Peek()
		if err := p.expectPunct('('); err != nil {
			return engine.CompiledQuery{}, err
		}
		row := make([]any, 0, len(t.columns))
		for {
			tok := p.lex.Next()
			if len(row) == len(t.columns) {
				return engine.CompiledQuery{}, qerrors.SyntaxAt(tok.Pos, "too many values")
			}
			v, err := literal(tok)
			if err != nil {
				return engine.CompiledQuery{}, err
			}
			typ := t.columns[len(row)].Type
			stored, err := normalize(typ, v)
			if err != nil {
				return engine.CompiledQuery{}, qerrors.SyntaxAt(tok.Pos, "inconvertible value: %s [%s]", tok.Text, typ)
			}
			row = append(row, stored)
			sep := p.lex.Next()
			if sep.IsPunct(')') {
				break
			}
			if !sep.IsPunct(',') {
				return engine.CompiledQuery{}, qerrors.SyntaxAt(sep.Pos, "',' or ')' expected")
			}
		}
		if len(row) < len(t.columns) {
			return engine.CompiledQuery{}, qerrors.SyntaxAt(open.Pos, "not enough values")
		}
		rows = append(rows, row)
		if !p.lex.Peek().IsPunct(',') {
			break
		}
		p.lex.Next()
	}
	if err := p.end(); err != nil {
		return engine.CompiledQuery{}, err
	}
	if _, err := p.eng.appendRows(t.name, t.version, rows); err != nil {
		return engine.CompiledQuery{}, err
	}
	return engine.CompiledQuery{Type: engine.DDL}, nil
}

func literal(tok sqllex.Token) (any, error) {
	switch tok.Kind {
	case sqllex.Number:
		if n, err := strconv.ParseInt(tok.Text, 10, 64); err == nil {
			return n, nil
		}
		if f, err := strconv.ParseFloat(tok.Text, 64); err == nil {
			return f, nil
		}
	case sqllex.String:
		return tok.Text, nil
	case sqllex.Ident:
		switch {
		case tok.Is("null"):
			return nil, nil
		case tok.Is("true"):
			return true, nil
		case tok.Is("false"):
			return false, nil
		}
	}
	return nil, qerrors.SyntaxAt(tok.Pos, "literal expected")
}

// copyStatement parses COPY t FROM 'file'.
func (p *parser) copyStatement() (engine.CompiledQuery, error) {
	p.lex.Next()
	nameTok, err := p.name("table")
	if err != nil {
		return engine.CompiledQuery{}, err
	}
	if _, err := p.expectWord("from"); err != nil {
		return engine.CompiledQuery{}, err
	}
	fileTok := p.lex.Next()
	if fileTok.Kind != sqllex.String {
		return engine.CompiledQuery{}, qerrors.SyntaxAt(fileTok.Pos, "file name expected")
	}
	if err := p.end(); err != nil {
		return engine.CompiledQuery{}, err
	}
	return engine.CompiledQuery{
		Type: engine.Copy,
		Copy: &engine.CopyModel{
			Table:         nameTok.Text,
			TablePosition: nameTok.Pos,
			FileName:      fileTok.Text,
			FilePosition:  fileTok.Pos,
		},
	}, nil
}
