// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package column

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseType(t *testing.T) {
	tests := []struct {
		name string
		want Type
		ok   bool
	}{
		{name: "INT", want: Int, ok: true},
		{name: "timestamp", want: Timestamp, ok: true},
		{name: "Symbol", want: Symbol, ok: true},
		{name: "bigint", want: Long, ok: true},
		{name: "varchar", want: String, ok: true},
		{name: "long256", want: TypeLong256, ok: true},
		{name: "geohash", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseType(tt.name)
			require.Equal(t, tt.ok, ok)
			if tt.ok {
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestTypeNames(t *testing.T) {
	for typ := Type(0); typ < TypeCount; typ++ {
		parsed, ok := ParseType(typ.String())
		require.True(t, ok, typ.String())
		require.Equal(t, typ, parsed)
	}
	require.Equal(t, "UNKNOWN(200)", Type(200).String())
}

func TestLong256Hex(t *testing.T) {
	tests := []struct {
		name  string
		value Long256
		want  string
	}{
		{name: "zero", value: Long256{}, want: "0x0"},
		{name: "small", value: Long256{L0: 255}, want: "0xff"},
		{name: "second limb", value: Long256{L0: 1, L1: 1}, want: "0x10000000000000001"},
		{name: "null", value: Long256{L0: NullLong, L1: NullLong, L2: NullLong, L3: NullLong}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, string(tt.value.AppendHex(nil)))
		})
	}
}

func TestParseLong256(t *testing.T) {
	v, ok := ParseLong256("0x10000000000000001")
	require.True(t, ok)
	require.Equal(t, Long256{L0: 1, L1: 1}, v)

	_, ok = ParseLong256("12")
	require.False(t, ok)
	_, ok = ParseLong256("0xzz")
	require.False(t, ok)
}
