// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/anjanb/questdb/internal/engine/memengine"
	"github.com/anjanb/questdb/internal/metrics"
	"github.com/anjanb/questdb/internal/query"
)

func newTestServer(t *testing.T, bufSize int) (*Server, *httptest.Server) {
	t.Helper()
	eng := memengine.New()
	reg := prometheus.NewRegistry()
	proc, err := query.New(query.Options{
		Compiler: eng,
		Store:    eng,
		Fs:       afero.NewMemMapFs(),
		Workers:  2,
		Metrics:  metrics.New(reg),
	})
	require.NoError(t, err)

	s := New(Options{
		Processor:  proc,
		BufferSize: bufSize,
		KeepAlive:  "timeout=5, max=10000",
		Gatherer:   reg,
	})
	ts := httptest.NewUnstartedServer(s.Handler())
	ts.Config.ConnContext = s.connContext
	ts.Config.ConnState = s.connState
	ts.Start()
	t.Cleanup(ts.Close)
	return s, ts
}

func get(t *testing.T, c *http.Client, base, q string) (*http.Response, string) {
	t.Helper()
	resp, err := c.Get(base + "/exec?" + url.Values{"query": {q}}.Encode())
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestExec(t *testing.T) {
	_, ts := newTestServer(t, 1024)

	tests := []struct {
		name   string
		query  string
		status int
		body   string
	}{
		{
			name:   "sequence",
			query:  "select x from long_sequence(3)",
			status: http.StatusOK,
			body:   `{"query":"select x from long_sequence(3)","columns":[{"name":"x","type":"LONG"}],"dataset":[[1],[2],[3]],"count":3}`,
		},
		{
			name:   "empty query",
			query:  "",
			status: http.StatusBadRequest,
			body:   `{"query":"","error":"No query text","position":0}`,
		},
		{
			name:   "ddl",
			query:  "create table t (a INT)",
			status: http.StatusOK,
			body:   `{"ddl":"OK"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := get(t, ts.Client(), ts.URL, tt.query)
			require.Equal(t, tt.status, resp.StatusCode)
			require.Equal(t, ContentType, resp.Header.Get("Content-Type"))
			require.Equal(t, "timeout=5, max=10000", resp.Header.Get("Keep-Alive"))
			require.Equal(t, tt.body, body)
		})
	}
}

func TestExecPostForm(t *testing.T) {
	_, ts := newTestServer(t, 1024)
	resp, err := ts.Client().PostForm(ts.URL+"/exec", url.Values{
		"query": {"select x from long_sequence(5)"},
		"limit": {"2,3"},
		"nm":    {"true"},
	})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, `{"dataset":[[2],[3]],"count":2}`, string(body))
}

func TestLargeResultIsChunked(t *testing.T) {
	_, ts := newTestServer(t, 128)
	_, body := get(t, ts.Client(), ts.URL, "select x from long_sequence(1000)")

	var doc struct {
		Dataset [][]int64 `json:"dataset"`
		Count   int       `json:"count"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &doc))
	require.Len(t, doc.Dataset, 1000)
	require.Equal(t, 1000, doc.Count)
	require.Equal(t, int64(1000), doc.Dataset[999][0])
}

func TestBufferTooSmallDropsConnection(t *testing.T) {
	_, ts := newTestServer(t, 20)
	c := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	_, err := c.Get(ts.URL + "/exec?" + url.Values{"query": {"select x from long_sequence(3)"}}.Encode())
	require.Error(t, err)
}

func TestConnectionStateLifecycle(t *testing.T) {
	s, ts := newTestServer(t, 1024)
	c := ts.Client()

	get(t, c, ts.URL, "select x from long_sequence(1)")
	get(t, c, ts.URL, "select x from long_sequence(2)")
	require.Equal(t, 1, s.Conns())

	c.CloseIdleConnections()
	require.Eventually(t, func() bool { return s.Conns() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestStatusAndMetrics(t *testing.T) {
	_, ts := newTestServer(t, 1024)
	c := ts.Client()
	get(t, c, ts.URL, "select x from long_sequence(1)")

	resp, err := c.Get(ts.URL + "/status")
	require.NoError(t, err)
	var st statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	resp.Body.Close()
	require.Equal(t, "ok", st.Status)
	require.Len(t, st.Workers, 2)
	var misses uint64
	for _, w := range st.Workers {
		misses += w.CacheMisses
	}
	require.Equal(t, uint64(1), misses)

	resp, err = c.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `jsonquery_requests_total{outcome="ok"} 1`), string(body))
	require.Contains(t, string(body), "jsonquery_plan_cache_misses_total 1")
}

func TestUnknownRouteAndMethod(t *testing.T) {
	_, ts := newTestServer(t, 1024)
	resp, err := ts.Client().Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/exec", nil)
	require.NoError(t, err)
	resp, err = ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
