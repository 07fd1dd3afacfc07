// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/cockroachdb/logtags"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	for _, name := range []string{"trace", "DEBUG", "info", "", "warn", "error", "off"} {
		_, err := ParseLevel(name)
		require.NoError(t, err, name)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestJSONLinesCarryContextTags(t *testing.T) {
	var out bytes.Buffer
	log, err := New(Options{Level: "debug", Format: "json", Writer: &out})
	require.NoError(t, err)

	ctx := logtags.AddTag(context.Background(), "conn", 7)
	log.Info(ctx, "execute-new", "query", "select 1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line))
	require.Equal(t, "execute-new", line["msg"])
	require.Equal(t, "select 1", line["query"])
	require.EqualValues(t, 7, line["conn"])
}

func TestLevelFilter(t *testing.T) {
	var out bytes.Buffer
	log, err := New(Options{Level: "warn", Format: "json", Writer: &out})
	require.NoError(t, err)

	log.Info(context.Background(), "hidden")
	require.Zero(t, out.Len())
	log.Error(context.Background(), "shown")
	require.Contains(t, out.String(), "shown")
}

func TestQueryRedaction(t *testing.T) {
	plain, err := New(Options{Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	require.Equal(t, "select secret", plain.Query("select secret"))

	redacting, err := New(Options{Redact: true, Writer: &bytes.Buffer{}})
	require.NoError(t, err)
	require.NotContains(t, redacting.Query("select secret"), "secret")
}

func TestUnknownFormat(t *testing.T) {
	_, err := New(Options{Format: "xml"})
	require.Error(t, err)
}
