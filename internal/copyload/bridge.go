// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package copyload runs COPY statements: it streams a file from the copy
// root through the text loader in fixed-size chunks.
package copyload

import (
	"context"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/logging"
	"github.com/anjanb/questdb/internal/metrics"
	"github.com/anjanb/questdb/internal/textload"
)

// DefaultChunkSize is the read size used when none is configured.
const DefaultChunkSize = 4 * 1024 * 1024

// Bridge copies files into tables. A Bridge belongs to one worker; its read
// buffer and loader are reused across statements.
type Bridge struct {
	fs      afero.Fs
	loader  *textload.Loader
	log     *logging.Logger
	metrics *metrics.Metrics
	buf     []byte
}

// Options configures a Bridge.
type Options struct {
	// Fs resolves file names; use afero.NewBasePathFs to confine it.
	Fs        afero.Fs
	Store     engine.TableStore
	ChunkSize int
	Log       *logging.Logger
	// Metrics may be nil.
	Metrics *metrics.Metrics
}

// New returns a bridge over opts.
func New(opts Options) *Bridge {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	return &Bridge{
		fs:      opts.Fs,
		loader:  textload.New(opts.Store, opts.Log),
		log:     opts.Log,
		metrics: opts.Metrics,
		buf:     make([]byte, opts.ChunkSize),
	}
}

// NewRootFs returns the filesystem production bridges read from: the OS
// filesystem confined to root.
func NewRootFs(root string) afero.Fs {
	return afero.NewBasePathFs(afero.NewOsFs(), root)
}

// Copy loads the file named by m into m.Table. The first chunk drives
// structure analysis; rows committed before a failure stay committed.
func (b *Bridge) Copy(ctx context.Context, m *engine.CopyModel) (textload.Summary, error) {
	start := time.Now()
	f, err := b.fs.Open(m.FileName)
	if err != nil {
		return textload.Summary{}, qerrors.At(qerrors.IO, m.FilePosition, "could not open file [path=%s]", m.FileName)
	}
	defer f.Close()

	b.loader.Configure(m.Table)
	defer b.loader.Clear()

	first := true
	for {
		n, err := f.Read(b.buf)
		if n > 0 {
			if first {
				b.loader.SetState(textload.AnalyzeStructure)
				first = false
			} else {
				b.loader.SetState(textload.LoadData)
			}
			if perr := b.loader.Parse(ctx, b.buf[:n]); perr != nil {
				return textload.Summary{}, withPosition(perr, m.TablePosition)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return textload.Summary{}, qerrors.At(qerrors.IO, m.FilePosition, "could not read file [path=%s]", m.FileName)
		}
		if err := ctx.Err(); err != nil {
			return textload.Summary{}, qerrors.Wrap(qerrors.PeerDisconnected, "copy cancelled", err)
		}
	}

	s, err := b.loader.WrapUp(ctx)
	if err != nil {
		return s, withPosition(err, m.TablePosition)
	}
	if b.metrics != nil {
		b.metrics.CopyRows.Add(float64(s.RowsLoaded))
		b.metrics.CopyRejected.Add(float64(s.RowsRejected))
	}
	b.log.Info(ctx, "copied",
		"table", s.Table, "file", m.FileName, "size", humanize.IBytes(uint64(s.Bytes)),
		"rows", s.RowsLoaded, "rejected", s.RowsRejected, "took", time.Since(start).String())
	return s, nil
}

// withPosition points loader failures without a position at the table name.
func withPosition(err error, pos int) error {
	msg, p := qerrors.Details(err)
	if p != 0 {
		return err
	}
	return &qerrors.E{Kind: qerrors.KindOf(err), Message: msg, Position: pos, Err: err}
}
