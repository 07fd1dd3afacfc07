// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package memengine

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf8"

	"github.com/anjanb/questdb/internal/column"
)

var nullLong256 = column.Long256{L0: column.NullLong, L1: column.NullLong, L2: column.NullLong, L3: column.NullLong}

// nullValue is the stored form of a null for typ.
func nullValue(typ column.Type) any {
	switch typ {
	case column.Boolean:
		return false
	case column.Byte:
		return int8(0)
	case column.Short:
		return int16(0)
	case column.Char:
		return column.NullChar
	case column.Int:
		return column.NullInt
	case column.Long, column.Date, column.Timestamp:
		return column.NullLong
	case column.Float:
		return float32(math.NaN())
	case column.Double:
		return math.NaN()
	case column.TypeLong256:
		return nullLong256
	default:
		// STRING, SYMBOL and BINARY store nil.
		return nil
	}
}

// normalize converts v into the stored Go type for typ. Integers, floats,
// strings and booleans are accepted wherever the conversion is lossless.
func normalize(typ column.Type, v any) (any, error) {
	if v == nil {
		return nullValue(typ), nil
	}
	switch typ {
	case column.Boolean:
		switch x := v.(type) {
		case bool:
			return x, nil
		case string:
			if b, err := strconv.ParseBool(x); err == nil {
				return b, nil
			}
		}
	case column.Byte, column.Short, column.Int, column.Long:
		n, ok := toInt(v)
		if !ok {
			break
		}
		switch typ {
		case column.Byte:
			if n >= math.MinInt8 && n <= math.MaxInt8 {
				return int8(n), nil
			}
		case column.Short:
			if n >= math.MinInt16 && n <= math.MaxInt16 {
				return int16(n), nil
			}
		case column.Int:
			if n >= math.MinInt32 && n <= math.MaxInt32 {
				return int32(n), nil
			}
		default:
			return n, nil
		}
	case column.Char:
		if s, ok := v.(string); ok && utf8.RuneCountInString(s) == 1 {
			r, _ := utf8.DecodeRuneInString(s)
			return r, nil
		}
		if r, ok := v.(rune); ok {
			return r, nil
		}
	case column.Date, column.Timestamp:
		switch x := v.(type) {
		case int64:
			return x, nil
		case string:
			if t, ok := column.ParseTime(x); ok {
				if typ == column.Date {
					return t.UnixMilli(), nil
				}
				return t.UnixMicro(), nil
			}
		}
	case column.Float, column.Double:
		f, ok := toFloat(v)
		if !ok {
			break
		}
		if typ == column.Float {
			return float32(f), nil
		}
		return f, nil
	case column.String, column.Symbol:
		switch x := v.(type) {
		case string:
			return x, nil
		case int64, float64, bool:
			return fmt.Sprint(x), nil
		}
	case column.Binary:
		switch x := v.(type) {
		case []byte:
			return x, nil
		case string:
			return []byte(x), nil
		}
	case column.TypeLong256:
		switch x := v.(type) {
		case column.Long256:
			return x, nil
		case string:
			if l, ok := column.ParseLong256(x); ok {
				return l, nil
			}
		}
	}
	return nil, fmt.Errorf("inconvertible value: %v [%T -> %s]", v, v, typ)
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int32:
		return int64(x), true
	case int:
		return int64(x), true
	case string:
		n, err := strconv.ParseInt(x, 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}
