// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package column defines the closed set of column types a result cursor can
// produce, their wire names and the in-band null sentinels used by the
// storage engine.
package column

import (
	"math"
	"strconv"
	"strings"
)

// Type is a column type tag. Values are dense so they can index fixed tables.
type Type uint8

const (
	Boolean Type = iota
	Byte
	Short
	Char
	Int
	Long
	Date
	Timestamp
	Float
	Double
	String
	Symbol
	Binary
	TypeLong256

	// TypeCount is the number of column types.
	TypeCount
)

// Null sentinels. Boolean, Byte, Short, Float, Double and Binary have none.
const (
	NullInt  int32 = math.MinInt32
	NullLong int64 = math.MinInt64
	NullChar rune  = 0
)

var names = [TypeCount]string{
	Boolean:     "BOOLEAN",
	Byte:        "BYTE",
	Short:       "SHORT",
	Char:        "CHAR",
	Int:         "INT",
	Long:        "LONG",
	Date:        "DATE",
	Timestamp:   "TIMESTAMP",
	Float:       "FLOAT",
	Double:      "DOUBLE",
	String:      "STRING",
	Symbol:      "SYMBOL",
	Binary:      "BINARY",
	TypeLong256: "LONG256",
}

var aliases = map[string]Type{
	"bool":     Boolean,
	"int2":     Short,
	"smallint": Short,
	"int4":     Int,
	"integer":  Int,
	"int8":     Long,
	"bigint":   Long,
	"float4":   Float,
	"real":     Float,
	"float8":   Double,
	"text":     String,
	"varchar":  String,
}

// String returns the wire name of the type, e.g. "TIMESTAMP".
func (t Type) String() string {
	if t < TypeCount {
		return names[t]
	}
	return "UNKNOWN(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the known types.
func (t Type) Valid() bool { return t < TypeCount }

// ParseType resolves a type name case-insensitively. A few common SQL
// spellings are accepted as aliases.
func ParseType(name string) (Type, bool) {
	upper := strings.ToUpper(name)
	for i, n := range names {
		if n == upper {
			return Type(i), true
		}
	}
	t, ok := aliases[strings.ToLower(name)]
	return t, ok
}

// Long256 is a 256-bit unsigned integer stored as four 64-bit limbs,
// L0 being the least significant.
type Long256 struct {
	L0, L1, L2, L3 int64
}

// IsNull reports whether all four limbs hold the long null sentinel.
func (v Long256) IsNull() bool {
	return v.L0 == NullLong && v.L1 == NullLong && v.L2 == NullLong && v.L3 == NullLong
}

// AppendHex appends the "0x" prefixed hexadecimal form of v without leading
// zeros. A null value appends nothing.
func (v Long256) AppendHex(dst []byte) []byte {
	if v.IsNull() {
		return dst
	}
	limbs := [4]uint64{uint64(v.L3), uint64(v.L2), uint64(v.L1), uint64(v.L0)}
	dst = append(dst, '0', 'x')
	i := 0
	for i < 3 && limbs[i] == 0 {
		i++
	}
	dst = strconv.AppendUint(dst, limbs[i], 16)
	for i++; i < 4; i++ {
		s := strconv.FormatUint(limbs[i], 16)
		for pad := len(s); pad < 16; pad++ {
			dst = append(dst, '0')
		}
		dst = append(dst, s...)
	}
	return dst
}

// ParseLong256 parses a "0x" prefixed hexadecimal string of at most 64
// digits.
func ParseLong256(s string) (Long256, bool) {
	if len(s) < 3 || s[0] != '0' || (s[1] != 'x' && s[1] != 'X') {
		return Long256{}, false
	}
	hex := s[2:]
	if len(hex) > 64 {
		return Long256{}, false
	}
	var limbs [4]int64
	for i := 0; i < 4 && len(hex) > 0; i++ {
		start := len(hex) - 16
		if start < 0 {
			start = 0
		}
		u, err := strconv.ParseUint(hex[start:], 16, 64)
		if err != nil {
			return Long256{}, false
		}
		limbs[i] = int64(u)
		hex = hex[:start]
	}
	return Long256{L0: limbs[0], L1: limbs[1], L2: limbs[2], L3: limbs[3]}, true
}
