// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package terminal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{in: "short", n: 10, want: "short"},
		{in: "exactly", n: 7, want: "exactly"},
		{in: "truncated", n: 5, want: "trun…"},
		{in: "ünïcödé", n: 4, want: "ünï…"},
		{in: "x", n: 0, want: "x"},
		{in: "xy", n: 1, want: "…"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, Truncate(tt.in, tt.n))
		})
	}
}

func TestLinesFor(t *testing.T) {
	require.Equal(t, 1, LinesFor(0, 80))
	require.Equal(t, 1, LinesFor(80, 80))
	require.Equal(t, 2, LinesFor(81, 80))
	require.Equal(t, 2, LinesFor(100, 0))
}
