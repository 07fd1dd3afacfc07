// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	"context"
	"net/http"
	"testing"

	crdberrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestKindSurvivesWrapping(t *testing.T) {
	err := crdberrors.Wrap(SyntaxAt(7, "unexpected token: %s", "frm"), "compile")
	require.True(t, Is(err, Syntax))
	msg, pos := Details(err)
	require.Equal(t, "unexpected token: frm", msg)
	require.Equal(t, 7, pos)
}

func TestForeignErrors(t *testing.T) {
	err := crdberrors.New("disk on fire")
	require.Equal(t, Execution, KindOf(err))
	msg, pos := Details(err)
	require.Equal(t, "disk on fire", msg)
	require.Zero(t, pos)
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(PeerDisconnected, "request cancelled", context.Canceled)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, "peer_disconnected: request cancelled: context canceled", err.Error())

	msg, _ := Details(&E{Kind: IO, Err: context.DeadlineExceeded})
	require.Equal(t, "context deadline exceeded", msg)
}

func TestStatus(t *testing.T) {
	tests := []struct {
		kind Kind
		want int
	}{
		{kind: Validation, want: http.StatusBadRequest},
		{kind: Syntax, want: http.StatusBadRequest},
		{kind: IO, want: http.StatusBadRequest},
		{kind: Execution, want: http.StatusInternalServerError},
		{kind: Fatal, want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			require.Equal(t, tt.want, Status(New(tt.kind, "x")))
		})
	}
}
