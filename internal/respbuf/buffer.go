// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package respbuf implements the bounded response buffer the query processor
// serializes into. The buffer never grows: a write that does not fit marks
// the buffer as overflowed and every later write becomes a no-op until the
// caller rolls back to the last bookmark. The confirmed prefix is then sent
// to the peer as one chunk and the rolled back unit is written again.
package respbuf

import (
	"context"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/anjanb/questdb/internal/column"
	qerrors "github.com/anjanb/questdb/internal/errors"
)

// ErrNoSpace is returned by Err after a write did not fit the buffer.
var ErrNoSpace = errors.New("no space left in response buffer")

// ChunkWriter is the socket side of the buffer.
type ChunkWriter interface {
	// WriteHeader is called once, before the first chunk.
	WriteHeader(status int)
	// WriteChunk sends p to the peer and flushes it.
	WriteChunk(p []byte) error
}

const (
	isoMillis = "2006-01-02T15:04:05.000Z"
	isoMicros = "2006-01-02T15:04:05.000000Z"
	hexDigits = "0123456789abcdef"
)

// Buffer is a fixed-capacity byte buffer with bookmark and rollback. It is
// owned by one connection and is not safe for concurrent use.
type Buffer struct {
	w        ChunkWriter
	data     []byte
	bookmark int
	overflow bool

	status      int
	headerSent  bool
	bytesSent   int64
	chunks      int
	scratch     []byte
	onChunkSent func(n int)
}

// New returns a buffer holding at most size bytes.
func New(size int) *Buffer {
	return &Buffer{
		data:    make([]byte, 0, size),
		status:  200,
		scratch: make([]byte, 0, 64),
	}
}

// OnChunkSent registers a callback invoked with the size of every chunk
// written to the peer.
func (b *Buffer) OnChunkSent(fn func(n int)) { b.onChunkSent = fn }

// Begin prepares the buffer for a new response written to w.
func (b *Buffer) Begin(w ChunkWriter) {
	b.w = w
	b.data = b.data[:0]
	b.bookmark = 0
	b.overflow = false
	b.status = 200
	b.headerSent = false
	b.bytesSent = 0
	b.chunks = 0
}

// Cap returns the capacity of the buffer.
func (b *Buffer) Cap() int { return cap(b.data) }

// Len returns the number of buffered, unsent bytes.
func (b *Buffer) Len() int { return len(b.data) }

// Bytes returns the buffered, unsent bytes.
func (b *Buffer) Bytes() []byte { return b.data }

// Sent reports whether the response header has gone out. After that the
// status can no longer change.
func (b *Buffer) Sent() bool { return b.headerSent }

// BytesSent returns the number of body bytes written to the peer.
func (b *Buffer) BytesSent() int64 { return b.bytesSent }

// Chunks returns the number of chunks written to the peer.
func (b *Buffer) Chunks() int { return b.chunks }

// SetStatus sets the status sent with the first chunk.
func (b *Buffer) SetStatus(status int) { b.status = status }

// Status returns the response status.
func (b *Buffer) Status() int { return b.status }

// Bookmark marks the end of the confirmed prefix and clears any overflow.
func (b *Buffer) Bookmark() {
	b.bookmark = len(b.data)
	b.overflow = false
}

// ResetToBookmark discards everything written after the bookmark. It
// returns false when the bookmark is at the start of the buffer, in which
// case sending would not free any space.
func (b *Buffer) ResetToBookmark() bool {
	b.data = b.data[:b.bookmark]
	b.overflow = false
	return b.bookmark > 0
}

// Reset discards all buffered bytes.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.bookmark = 0
	b.overflow = false
}

// Err returns ErrNoSpace if a write since the last bookmark did not fit.
func (b *Buffer) Err() error {
	if b.overflow {
		return ErrNoSpace
	}
	return nil
}

// SendChunk writes the buffered bytes to the peer and empties the buffer.
func (b *Buffer) SendChunk(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return qerrors.Wrap(qerrors.PeerDisconnected, "request cancelled", err)
	}
	if !b.headerSent {
		b.w.WriteHeader(b.status)
		b.headerSent = true
	}
	if len(b.data) > 0 {
		if err := b.w.WriteChunk(b.data); err != nil {
			return qerrors.Wrap(qerrors.PeerDisconnected, "peer disconnected", err)
		}
		b.bytesSent += int64(len(b.data))
		b.chunks++
		if b.onChunkSent != nil {
			b.onChunkSent(len(b.data))
		}
	}
	b.Reset()
	return nil
}

func (b *Buffer) fits(n int) bool {
	if b.overflow {
		return false
	}
	if len(b.data)+n > cap(b.data) {
		b.overflow = true
		return false
	}
	return true
}

// PutByte appends c.
func (b *Buffer) PutByte(c byte) {
	if b.fits(1) {
		b.data = append(b.data, c)
	}
}

// PutString appends s verbatim.
func (b *Buffer) PutString(s string) {
	if b.fits(len(s)) {
		b.data = append(b.data, s...)
	}
}

// PutRaw appends p verbatim.
func (b *Buffer) PutRaw(p []byte) {
	if b.fits(len(p)) {
		b.data = append(b.data, p...)
	}
}

// PutNull appends the JSON null literal.
func (b *Buffer) PutNull() { b.PutString("null") }

// PutBool appends true or false.
func (b *Buffer) PutBool(v bool) {
	if v {
		b.PutString("true")
	} else {
		b.PutString("false")
	}
}

// PutInt appends the decimal form of v.
func (b *Buffer) PutInt(v int64) {
	b.scratch = strconv.AppendInt(b.scratch[:0], v, 10)
	b.PutRaw(b.scratch)
}

// PutQuoted appends s as a quoted JSON string.
func (b *Buffer) PutQuoted(s string) {
	b.PutByte('"')
	b.putEscaped(s)
	b.PutByte('"')
}

// PutQuotedChar appends c as a one character JSON string. The zero code
// point is rendered as the empty string.
func (b *Buffer) PutQuotedChar(c rune) {
	b.PutByte('"')
	if c != column.NullChar {
		var tmp [utf8.UTFMax]byte
		n := utf8.EncodeRune(tmp[:], c)
		b.putEscaped(string(tmp[:n]))
	}
	b.PutByte('"')
}

func (b *Buffer) putEscaped(s string) {
	start := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 0x20 && c != '"' && c != '\\' {
			continue
		}
		b.PutString(s[start:i])
		switch c {
		case '"', '\\':
			b.PutByte('\\')
			b.PutByte(c)
		case '\n':
			b.PutString(`\n`)
		case '\r':
			b.PutString(`\r`)
		case '\t':
			b.PutString(`\t`)
		case '\b':
			b.PutString(`\b`)
		case '\f':
			b.PutString(`\f`)
		default:
			b.PutString(`\u00`)
			b.PutByte(hexDigits[c>>4])
			b.PutByte(hexDigits[c&0xf])
		}
		start = i + 1
	}
	b.PutString(s[start:])
}

// PutDouble appends v with at most scale fraction digits. Trailing zeros are
// trimmed down to one fraction digit. NaN and infinities are null.
func (b *Buffer) PutDouble(v float64, scale int) {
	b.putScaled(v, scale, 64)
}

// PutFloat is PutDouble for single precision values.
func (b *Buffer) PutFloat(v float32, scale int) {
	b.putScaled(float64(v), scale, 32)
}

func (b *Buffer) putScaled(v float64, scale, bitSize int) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		b.PutNull()
		return
	}
	b.scratch = AppendScaled(b.scratch[:0], v, scale, bitSize)
	b.PutRaw(b.scratch)
}

// AppendScaled appends v in fixed notation with at most scale fraction
// digits, keeping at least one.
func AppendScaled(dst []byte, v float64, scale, bitSize int) []byte {
	if scale < 1 {
		scale = 1
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, v, 'f', scale, bitSize)
	end := len(dst)
	for end > start && dst[end-1] == '0' && dst[end-2] != '.' {
		end--
	}
	dst = dst[:end]
	if len(dst)-start == 4 && string(dst[start:]) == "-0.0" {
		dst = append(dst[:start], "0.0"...)
	}
	return dst
}

// PutISOMillis appends a quoted ISO-8601 UTC time with millisecond precision.
func (b *Buffer) PutISOMillis(millis int64) {
	b.scratch = append(b.scratch[:0], '"')
	b.scratch = time.UnixMilli(millis).UTC().AppendFormat(b.scratch, isoMillis)
	b.scratch = append(b.scratch, '"')
	b.PutRaw(b.scratch)
}

// PutISOMicros appends a quoted ISO-8601 UTC time with microsecond precision.
func (b *Buffer) PutISOMicros(micros int64) {
	b.scratch = append(b.scratch[:0], '"')
	b.scratch = time.UnixMicro(micros).UTC().AppendFormat(b.scratch, isoMicros)
	b.scratch = append(b.scratch, '"')
	b.PutRaw(b.scratch)
}

// PutLong256 appends v as a quoted hex string; a null value is "".
func (b *Buffer) PutLong256(v column.Long256) {
	b.scratch = append(b.scratch[:0], '"')
	b.scratch = v.AppendHex(b.scratch)
	b.scratch = append(b.scratch, '"')
	b.PutRaw(b.scratch)
}
