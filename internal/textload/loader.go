// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package textload ingests delimited text into a table. Input arrives in
// chunks of arbitrary size. The first chunk is analyzed for delimiter,
// header and column types before any row is loaded; a partial trailing line
// is carried over to the next chunk.
package textload

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/logging"
)

// State selects what Parse does with a chunk.
type State int

const (
	// AnalyzeStructure infers the layout from the chunk, then loads it.
	AnalyzeStructure State = iota
	// LoadData loads rows using the layout found earlier.
	LoadData
)

// sampleLines bounds the rows looked at during structure analysis.
const sampleLines = 100

var delimiters = []rune{',', '\t', '|', ';'}

// Summary reports the outcome of one load.
type Summary struct {
	Table        string
	Delimiter    rune
	Header       bool
	Created      bool
	Columns      []engine.ColumnSpec
	RowsLoaded   int64
	RowsRejected int64
	Bytes        int64
}

// Loader is reused across loads by one worker.
type Loader struct {
	store engine.TableStore
	log   *logging.Logger

	state    State
	table    string
	pending  bool
	analyzed bool
	writer   engine.TableWriter
	carry    []byte
	line     int64
	summary  Summary
}

// New returns a loader writing through store.
func New(store engine.TableStore, log *logging.Logger) *Loader {
	if log == nil {
		log = logging.Nop()
	}
	return &Loader{store: store, log: log}
}

// Clear resets the loader and releases any open writer.
func (l *Loader) Clear() {
	if l.writer != nil {
		_ = l.writer.Close()
		l.writer = nil
	}
	l.state = AnalyzeStructure
	l.table = ""
	l.pending = false
	l.analyzed = false
	l.carry = l.carry[:0]
	l.line = 0
	l.summary = Summary{}
}

// Configure starts a load into table.
func (l *Loader) Configure(table string) {
	l.Clear()
	l.table = table
	l.summary.Table = table
}

// SetState switches the parsing state. Analysis requested with
// AnalyzeStructure stays pending until a complete line is available, even if
// the state moves on to LoadData first.
func (l *Loader) SetState(s State) {
	l.state = s
	if s == AnalyzeStructure {
		l.pending = true
	}
}

// Parse consumes one chunk. Only complete lines are loaded; the remainder
// waits for the next chunk or WrapUp.
func (l *Loader) Parse(ctx context.Context, chunk []byte) error {
	l.summary.Bytes += int64(len(chunk))
	l.carry = append(l.carry, chunk...)
	end, lines := lineEnds(l.carry)
	if end < 0 {
		return nil
	}
	if !l.analyzed && l.pending && lines < sampleLines {
		// Not enough lines to analyze yet; WrapUp takes whatever is left.
		return nil
	}
	complete := l.carry[:end+1]
	if err := l.consume(ctx, complete); err != nil {
		return err
	}
	l.carry = append(l.carry[:0], l.carry[end+1:]...)
	return nil
}

// WrapUp loads the final unterminated line, commits and returns the
// summary. The loader must be configured again before reuse.
func (l *Loader) WrapUp(ctx context.Context) (Summary, error) {
	if len(bytes.TrimSpace(l.carry)) > 0 {
		if err := l.consume(ctx, l.carry); err != nil {
			return l.summary, err
		}
	}
	l.carry = l.carry[:0]
	if l.writer != nil {
		if err := l.commit(ctx); err != nil {
			return l.summary, err
		}
	}
	summary := l.summary
	l.Clear()
	return summary, nil
}

func (l *Loader) consume(ctx context.Context, data []byte) error {
	if !l.analyzed {
		if !l.pending {
			return qerrors.New(qerrors.Execution, "text structure has not been analyzed")
		}
		if err := l.analyze(ctx, data); err != nil {
			return err
		}
	}
	if err := l.load(data); err != nil {
		return err
	}
	return l.commit(ctx)
}

func (l *Loader) commit(ctx context.Context) error {
	n, err := l.writer.Commit(ctx)
	l.summary.RowsLoaded += n
	return err
}

// lineEnds returns the index of the last newline outside quotes and the
// number of such newlines.
func lineEnds(data []byte) (last, n int) {
	last = -1
	quoted := false
	for i, c := range data {
		switch c {
		case '"':
			quoted = !quoted
		case '\n':
			if !quoted {
				last = i
				n++
			}
		}
	}
	return last, n
}

func (l *Loader) reader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = l.summary.Delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true
	return r
}

// analyze settles delimiter, header and columns from the first lines, then
// creates the table when it does not exist.
func (l *Loader) analyze(ctx context.Context, data []byte) error {
	l.summary.Delimiter = detectDelimiter(data)

	r := l.reader(data)
	r.ReuseRecord = false
	var sample [][]string
	for len(sample) < sampleLines {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		sample = append(sample, rec)
	}
	if len(sample) == 0 {
		return qerrors.New(qerrors.Execution, "no data to analyze")
	}

	existing, exists, err := l.store.TableColumns(ctx, l.table)
	if err != nil {
		return err
	}
	if exists {
		l.summary.Columns = existing
		l.summary.Header = matchesNames(sample[0], existing)
	} else {
		l.summary.Header = looksLikeHeader(sample)
		rows := sample
		if l.summary.Header {
			rows = sample[1:]
		}
		l.summary.Columns = inferColumns(sample[0], rows, l.summary.Header)
		if err := l.store.CreateTable(ctx, l.table, l.summary.Columns); err != nil {
			return err
		}
		l.summary.Created = true
	}

	w, err := l.store.OpenWriter(ctx, l.table)
	if err != nil {
		return err
	}
	l.writer = w
	l.analyzed = true
	l.log.Debug(ctx, "text structure",
		"table", l.table, "delimiter", string(l.summary.Delimiter),
		"header", l.summary.Header, "columns", len(l.summary.Columns))
	return nil
}

// load appends every record of data. Rows that do not parse are skipped.
func (l *Loader) load(data []byte) error {
	r := l.reader(data)
	values := make([]any, len(l.summary.Columns))
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		l.line++
		if l.line == 1 && l.summary.Header {
			continue
		}
		if err != nil {
			l.reject(err)
			continue
		}
		if len(rec) == 1 && rec[0] == "" {
			continue
		}
		if len(rec) != len(values) {
			l.reject(qerrors.Executionf("expected %d fields, found %d", len(values), len(rec)))
			continue
		}
		if err := l.convert(rec, values); err != nil {
			l.reject(err)
			continue
		}
		if err := l.writer.Append(values); err != nil {
			l.reject(err)
		}
	}
}

func (l *Loader) reject(err error) {
	l.summary.RowsRejected++
	l.log.Debug(context.Background(), "row skipped", "table", l.table, "line", l.line, "err", err.Error())
}

func (l *Loader) convert(rec []string, values []any) error {
	for i, field := range rec {
		v, err := parseField(l.summary.Columns[i].Type, field)
		if err != nil {
			return qerrors.Wrap(qerrors.Execution, "column "+l.summary.Columns[i].Name, err)
		}
		values[i] = v
	}
	return nil
}

// parseField converts field into the Go value the table writers accept.
// Empty fields are nulls.
func parseField(typ column.Type, field string) (any, error) {
	if field == "" {
		return nil, nil
	}
	switch typ {
	case column.Boolean:
		return strconv.ParseBool(field)
	case column.Byte, column.Short, column.Int, column.Long:
		return strconv.ParseInt(strings.TrimSpace(field), 10, 64)
	case column.Float, column.Double:
		return strconv.ParseFloat(strings.TrimSpace(field), 64)
	case column.Date:
		if t, ok := column.ParseTime(field); ok {
			return t.UnixMilli(), nil
		}
		return nil, qerrors.Executionf("not a date: %s", field)
	case column.Timestamp:
		if t, ok := column.ParseTime(field); ok {
			return t.UnixMicro(), nil
		}
		return nil, qerrors.Executionf("not a timestamp: %s", field)
	default:
		return field, nil
	}
}
