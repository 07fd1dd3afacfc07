// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pgengine serves queries from PostgreSQL. Statements are described
// with an unnamed prepared statement at compile time so that metadata and
// syntax positions are known before any row is read. COPY <table> FROM
// '<file>' is handled locally and never sent to the server.
package pgengine

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/logging"
	"github.com/anjanb/questdb/internal/sqllex"
)

// Engine is an engine.Engine backed by a connection pool.
type Engine struct {
	pool *pgxpool.Pool
	log  *logging.Logger
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, log *logging.Logger) (*Engine, error) {
	if log == nil {
		log = logging.Nop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "ping")
	}
	log.Info(ctx, "connected to postgres", "dsn", logging.Mask(dsn))
	return &Engine{pool: pool, log: log}, nil
}

// Close closes the pool.
func (e *Engine) Close() error {
	e.pool.Close()
	return nil
}

// resultStatements start statements that return rows.
var resultStatements = []string{"select", "with", "values", "table", "show", "explain"}

// Compile classifies q. Row returning statements are described and become
// plans; anything else is executed immediately.
func (e *Engine) Compile(ctx context.Context, q string) (engine.CompiledQuery, error) {
	lex := sqllex.New(q)
	first := lex.Peek()
	if err := lex.Err(); err != nil {
		return engine.CompiledQuery{}, err
	}
	switch {
	case first.Kind == sqllex.EOF:
		return engine.CompiledQuery{}, qerrors.SyntaxAt(0, "empty query")
	case first.Is("copy"):
		if m, ok, err := parseCopy(lex); ok || err != nil {
			if err != nil {
				return engine.CompiledQuery{}, err
			}
			return engine.CompiledQuery{Type: engine.Copy, Copy: m}, nil
		}
	}

	for _, w := range resultStatements {
		if first.Is(w) {
			meta, err := e.describe(ctx, q)
			if err != nil {
				return engine.CompiledQuery{}, err
			}
			return engine.CompiledQuery{Type: engine.Select, Plan: &plan{pool: e.pool, sql: q, meta: meta}}, nil
		}
	}

	if _, err := e.pool.Exec(ctx, q); err != nil {
		return engine.CompiledQuery{}, translate(err)
	}
	return engine.CompiledQuery{Type: engine.DDL}, nil
}

func (e *Engine) describe(ctx context.Context, q string) (metadata, error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, qerrors.Wrap(qerrors.Execution, "could not acquire connection", err)
	}
	defer conn.Release()
	sd, err := conn.Conn().Prepare(ctx, "", q)
	if err != nil {
		return nil, translate(err)
	}
	return newMetadata(sd.Fields), nil
}

// parseCopy recognizes COPY <table> FROM '<file>'. Other COPY forms are
// left to the server and reported as not ok.
func parseCopy(lex *sqllex.Lexer) (*engine.CopyModel, bool, error) {
	lex.Next()
	table := lex.Next()
	name, isName := table.Name()
	if !isName || !lex.Peek().Is("from") {
		return nil, false, nil
	}
	lex.Next()
	file := lex.Next()
	if err := lex.Err(); err != nil {
		return nil, false, err
	}
	if file.Kind != sqllex.String {
		return nil, false, nil
	}
	if tok := lex.Next(); tok.Kind != sqllex.EOF && !tok.IsPunct(';') {
		return nil, false, nil
	}
	return &engine.CopyModel{
		Table:         name,
		TablePosition: table.Pos,
		FileName:      file.Text,
		FilePosition:  file.Pos,
	}, true, nil
}

// translate maps server errors onto error kinds. Positions reported by the
// server are 1-based.
func translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return qerrors.Wrap(qerrors.PeerDisconnected, "request cancelled", err)
		}
		return qerrors.Wrap(qerrors.Execution, "postgres", err)
	}
	pos := 0
	if pgErr.Position > 0 {
		pos = int(pgErr.Position) - 1
	}
	switch class := pgErr.Code[:min(2, len(pgErr.Code))]; {
	case class == "42" || pgErr.Position > 0:
		return &qerrors.E{Kind: qerrors.Syntax, Message: pgErr.Message, Position: pos, Err: err}
	case class == "53" || class == "58" || strings.HasPrefix(pgErr.Code, "XX"):
		return &qerrors.E{Kind: qerrors.Fatal, Message: pgErr.Message, Err: err}
	default:
		return &qerrors.E{Kind: qerrors.Execution, Message: pgErr.Message, Err: err}
	}
}
