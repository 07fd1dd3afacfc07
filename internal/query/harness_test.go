// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package query

import (
	"bytes"
	"context"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/anjanb/questdb/internal/engine"
	"github.com/anjanb/questdb/internal/engine/memengine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/metrics"
)

// recorder is the peer side of a response.
type recorder struct {
	status int
	body   bytes.Buffer
	chunks int
	// failAfter makes the n-th and later chunk writes fail when positive.
	failAfter int
}

func (r *recorder) WriteHeader(status int) { r.status = status }

func (r *recorder) WriteChunk(p []byte) error {
	r.chunks++
	if r.failAfter > 0 && r.chunks >= r.failAfter {
		return errPeerGone
	}
	r.body.Write(p)
	return nil
}

var errPeerGone = qerrors.New(qerrors.IO, "broken pipe")

// compiler wraps an engine compiler, counting compilations and optionally
// degrading the plans it returns.
type compiler struct {
	inner    engine.Compiler
	compiles int
	// unknownSize hides cursor sizes.
	unknownSize bool
	// cursorFailures makes that many Cursor calls fail.
	cursorFailures int
	// iterFailAfter makes cursors fail after that many rows when positive.
	iterFailAfter int
	// iterFailOnce clears iterFailAfter once a failing cursor was opened.
	iterFailOnce bool
	closed       int
}

func (c *compiler) Compile(ctx context.Context, q string) (engine.CompiledQuery, error) {
	c.compiles++
	cq, err := c.inner.Compile(ctx, q)
	if err != nil || cq.Type != engine.Select {
		return cq, err
	}
	cq.Plan = &plan{Plan: cq.Plan, c: c}
	return cq, nil
}

type plan struct {
	engine.Plan
	c *compiler
}

func (p *plan) Cursor(ctx context.Context) (engine.Cursor, error) {
	if p.c.cursorFailures > 0 {
		p.c.cursorFailures--
		return nil, qerrors.Executionf("could not open table reader")
	}
	cur, err := p.Plan.Cursor(ctx)
	if err != nil {
		return nil, err
	}
	c := &cursor{Cursor: cur, c: p.c, failAt: p.c.iterFailAfter}
	if p.c.iterFailOnce {
		p.c.iterFailAfter = 0
	}
	return c, nil
}

type cursor struct {
	engine.Cursor
	c      *compiler
	failAt int
	rows   int
	err    error
}

func (c *cursor) Next() bool {
	if c.failAt > 0 && c.rows == c.failAt {
		c.err = qerrors.Executionf("partition is corrupt")
		return false
	}
	if !c.Cursor.Next() {
		return false
	}
	c.rows++
	return true
}

func (c *cursor) Size() int64 {
	if c.c.unknownSize {
		return -1
	}
	return c.Cursor.Size()
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.Cursor.Err()
}

func (c *cursor) Close() error {
	c.c.closed++
	return c.Cursor.Close()
}

type harness struct {
	eng      *memengine.Engine
	compiler *compiler
	fs       afero.Fs
	metrics  *metrics.Metrics
	proc     *Processor
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		eng: memengine.New(),
		fs:  afero.NewMemMapFs(),
	}
	h.compiler = &compiler{inner: h.eng}
	h.metrics = metrics.New(prometheus.NewRegistry())
	p, err := New(Options{
		Compiler:       h.compiler,
		Store:          h.eng,
		Fs:             h.fs,
		Workers:        1,
		PlanCacheSize:  16,
		CopyChunkSize:  64,
		CheckFrequency: 3,
		Metrics:        h.metrics,
	})
	require.NoError(t, err)
	h.proc = p
	t.Cleanup(p.Close)
	return h
}

// ddl applies statements directly to the engine.
func (h *harness) ddl(t *testing.T, stmts ...string) {
	t.Helper()
	for _, q := range stmts {
		cq, err := h.eng.Compile(context.Background(), q)
		require.NoError(t, err, q)
		require.Equal(t, engine.DDL, cq.Type, q)
	}
}

// exec runs one request with a response buffer of size bytes.
func (h *harness) exec(t *testing.T, form url.Values, size int) (*recorder, error) {
	t.Helper()
	rec := &recorder{}
	return rec, h.execTo(rec, NewState(1), form, size)
}

func (h *harness) execTo(rec *recorder, s *State, form url.Values, size int) error {
	b := h.proc.NewBuffer(size)
	b.Begin(rec)
	return h.proc.Process(context.Background(), s, form, b)
}

func form(query string, kv ...string) url.Values {
	v := url.Values{"query": {query}}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}
