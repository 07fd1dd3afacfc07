// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package textload

import (
	"bytes"
	"math"
	"strconv"
	"strings"

	"github.com/anjanb/questdb/internal/column"
	"github.com/anjanb/questdb/internal/engine"
)

// detectDelimiter picks the candidate that splits the most sampled lines
// into as many fields as the first line, preferring more fields. Comma wins
// ties and is the fallback when no candidate occurs.
func detectDelimiter(data []byte) rune {
	lines := bytes.SplitN(data, []byte{'\n'}, sampleLines+1)
	if len(lines) > sampleLines {
		lines = lines[:sampleLines]
	}
	best, bestMatches, bestCount := ',', 0, 0
	for _, d := range delimiters {
		count, matches := -1, 0
		for _, line := range lines {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			n := countUnquoted(line, byte(d))
			if count < 0 {
				count = n
			}
			if n == count {
				matches++
			}
		}
		if count <= 0 {
			continue
		}
		if matches > bestMatches || matches == bestMatches && count > bestCount {
			best, bestMatches, bestCount = d, matches, count
		}
	}
	return best
}

func countUnquoted(line []byte, d byte) int {
	n := 0
	quoted := false
	for _, c := range line {
		switch {
		case c == '"':
			quoted = !quoted
		case c == d && !quoted:
			n++
		}
	}
	return n
}

// looksLikeHeader treats the first row as a header when every field of it
// is text while some column below it holds a narrower type.
func looksLikeHeader(sample [][]string) bool {
	first := sample[0]
	for _, f := range first {
		if f == "" || inferType(f) != column.String {
			return false
		}
	}
	if len(sample) == 1 {
		return false
	}
	for col := range first {
		if columnType(sample[1:], col) != column.String {
			return true
		}
	}
	return false
}

func matchesNames(first []string, columns []engine.ColumnSpec) bool {
	if len(first) != len(columns) {
		return false
	}
	for i, f := range first {
		if !strings.EqualFold(strings.TrimSpace(f), columns[i].Name) {
			return false
		}
	}
	return true
}

// inferColumns names columns from the header, or f0, f1, ... without one,
// and types them from rows.
func inferColumns(first []string, rows [][]string, header bool) []engine.ColumnSpec {
	columns := make([]engine.ColumnSpec, len(first))
	for i := range first {
		name := "f" + strconv.Itoa(i)
		if header {
			if n := sanitizeName(first[i]); n != "" {
				name = n
			}
		}
		columns[i] = engine.ColumnSpec{Name: name, Type: columnType(rows, i)}
	}
	return columns
}

func sanitizeName(s string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			sb.WriteByte('_')
		}
	}
	return sb.String()
}

// columnType widens the types of all non-empty values of column col.
func columnType(rows [][]string, col int) column.Type {
	typ, seen := column.Boolean, false
	for _, row := range rows {
		if col >= len(row) || row[col] == "" {
			continue
		}
		t := inferType(row[col])
		if !seen {
			typ, seen = t, true
			continue
		}
		typ = widen(typ, t)
	}
	if !seen {
		return column.String
	}
	return typ
}

func inferType(field string) column.Type {
	s := strings.TrimSpace(field)
	if strings.EqualFold(s, "true") || strings.EqualFold(s, "false") {
		return column.Boolean
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n >= math.MinInt32 && n <= math.MaxInt32 && n != int64(column.NullInt) {
			return column.Int
		}
		return column.Long
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		return column.Double
	}
	if _, ok := column.ParseTime(s); ok {
		return column.Timestamp
	}
	return column.String
}

func widen(a, b column.Type) column.Type {
	if a == b {
		return a
	}
	numeric := func(t column.Type) bool {
		return t == column.Int || t == column.Long || t == column.Double
	}
	if numeric(a) && numeric(b) {
		if a == column.Double || b == column.Double {
			return column.Double
		}
		return column.Long
	}
	return column.String
}
