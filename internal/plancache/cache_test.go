// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package plancache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/anjanb/questdb/internal/engine"
)

type stubPlan struct {
	closed int
}

func (p *stubPlan) Metadata() engine.Metadata                     { return nil }
func (p *stubPlan) Cursor(context.Context) (engine.Cursor, error) { return nil, nil }
func (p *stubPlan) Close() error                                  { p.closed++; return nil }

func TestGetPut(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	_, ok := c.Get("select 1")
	require.False(t, ok)

	plan := &stubPlan{}
	h := NewHandle(plan)
	c.Put("select 1", h)
	require.NoError(t, h.Release())
	require.Equal(t, 1, h.Refs())

	got, ok := c.Get("select 1")
	require.True(t, ok)
	require.Same(t, h, got)
	require.Equal(t, 2, h.Refs())
	require.NoError(t, got.Release())

	// Fingerprints are byte exact.
	_, ok = c.Get("SELECT 1")
	require.False(t, ok)

	require.Equal(t, uint64(1), c.Hits())
	require.Equal(t, uint64(2), c.Misses())
	require.Zero(t, plan.closed)
}

func TestTombstone(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	plan := &stubPlan{}
	h := NewHandle(plan)
	c.Put("q", h)

	c.Invalidate("q")
	_, ok := c.Get("q")
	require.False(t, ok)
	require.Equal(t, 1, c.Len())

	// The caller still holds the plan open.
	require.Zero(t, plan.closed)
	require.NoError(t, h.Release())
	require.Equal(t, 1, plan.closed)
}

func TestInvalidatedHandleMisses(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	plan := &stubPlan{}
	h := NewHandle(plan)
	c.Put("q", h)
	h.Invalidate()

	_, ok := c.Get("q")
	require.False(t, ok)
	require.Zero(t, c.Len())
	require.NoError(t, h.Release())
	require.Equal(t, 1, plan.closed)
}

func TestEvictionKeepsBorrowedPlanOpen(t *testing.T) {
	c, err := New(1)
	require.NoError(t, err)

	first := &stubPlan{}
	h1 := NewHandle(first)
	c.Put("a", h1)

	h2 := NewHandle(&stubPlan{})
	c.Put("b", h2)
	require.NoError(t, h2.Release())

	_, ok := c.Get("a")
	require.False(t, ok)
	require.Zero(t, first.closed, "borrowed plan closed on eviction")

	require.NoError(t, h1.Release())
	require.Equal(t, 1, first.closed)
}

func TestReplaceReleasesOld(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	old := &stubPlan{}
	h1 := NewHandle(old)
	c.Put("q", h1)
	require.NoError(t, h1.Release())

	h2 := NewHandle(&stubPlan{})
	c.Put("q", h2)
	require.Equal(t, 1, old.closed)

	// Storing the same handle twice does not take a second reference.
	c.Put("q", h2)
	require.Equal(t, 2, h2.Refs())

	c.Purge()
	require.Equal(t, 1, h2.Refs())
}
