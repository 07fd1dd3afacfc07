// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/plancache"
)

// DefaultCheckFrequency is the number of rows skipped or drained between
// checks for a cancelled request.
const DefaultCheckFrequency = 1_000_000

// State is the per-connection request record. It survives suspensions of
// the serialization and is cleared between requests.
type State struct {
	ConnID uint64

	Query     string
	Skip      int64
	Stop      int64
	NoMeta    bool
	CountRows bool

	// Count is the number of rows emitted, or the exact total once a
	// CountRows request has been drained. -1 after the suffix went out.
	Count       int64
	ColumnIndex int

	// Timings are filled in as the request progresses.
	Timings Timings

	stage    stage
	seen     int64 // rows read from the cursor, skipped ones included
	cursor   engine.Cursor
	metadata engine.Metadata
	record   engine.Record
	handle   *plancache.Handle
	checks   int
}

// Timings records where a request spent its time.
type Timings struct {
	Compile time.Duration
	Execute time.Duration
	Stream  time.Duration
}

// NewState returns the state of connection id.
func NewState(id uint64) *State {
	s := &State{ConnID: id}
	s.Clear()
	return s
}

// ParseParams fills the request fields from the query parameters. limit is
// "stop" or "lo,hi" with a 1-based lo; malformed numbers keep the defaults
// and negative bounds clamp to zero.
func (s *State) ParseParams(form url.Values) error {
	q := form.Get("query")
	if q == "" {
		return qerrors.At(qerrors.Validation, 0, "No query text")
	}

	skip, stop := int64(0), int64(math.MaxInt64)
	if limit := form.Get("limit"); limit != "" {
		skip, stop = parseLimit(limit)
	}

	s.Query = q
	s.Skip = skip
	s.Stop = stop
	s.Count = 0
	s.NoMeta = form.Get("nm") == "true"
	s.CountRows = form.Get("count") == "true"
	return nil
}

func parseLimit(limit string) (skip, stop int64) {
	skip, stop = 0, math.MaxInt64
	if sep := strings.IndexByte(limit, ','); sep > 0 {
		if lo, err := strconv.ParseInt(limit[:sep], 10, 64); err == nil {
			skip = lo - 1
			if hi, err := strconv.ParseInt(limit[sep+1:], 10, 64); err == nil {
				stop = hi
			}
		}
	} else if n, err := strconv.ParseInt(limit, 10, 64); err == nil {
		stop = n
	}
	return max(skip, 0), max(stop, 0)
}

// Streaming reports whether a cursor is attached.
func (s *State) Streaming() bool { return s.cursor != nil }

// Clear releases the cursor and plan reference and resets every request
// field. The connection id is kept.
func (s *State) Clear() {
	s.release()
	s.Query = ""
	s.Skip = 0
	s.Stop = math.MaxInt64
	s.NoMeta = false
	s.CountRows = false
	s.Count = 0
	s.ColumnIndex = 0
	s.Timings = Timings{}
	s.stage = stagePrefix
	s.seen = 0
	s.checks = 0
}

func (s *State) release() {
	if s.cursor != nil {
		_ = s.cursor.Close()
		s.cursor = nil
	}
	if s.handle != nil {
		_ = s.handle.Release()
		s.handle = nil
	}
	s.metadata = nil
	s.record = nil
}
