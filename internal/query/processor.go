// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package query streams query results as JSON documents. A Processor
// resolves the query text to a plan through a per-worker plan cache, opens
// a cursor and serializes it into a bounded response buffer, flushing the
// buffer to the peer whenever it fills.
package query

import (
	"context"
	"net/url"
	"time"

	"github.com/cockroachdb/logtags"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"

	"github.com/anjanb/questdb/internal/copyload"
	"github.com/anjanb/questdb/internal/encode"
	"github.com/anjanb/questdb/internal/engine"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/logging"
	"github.com/anjanb/questdb/internal/metrics"
	"github.com/anjanb/questdb/internal/plancache"
	"github.com/anjanb/questdb/internal/respbuf"
)

// Options configures a Processor.
type Options struct {
	Compiler engine.Compiler
	// Store and Fs enable COPY. Without them COPY statements fail.
	Store engine.TableStore
	Fs    afero.Fs

	Workers        int
	PlanCacheSize  int
	CopyChunkSize  int
	FloatScale     int
	DoubleScale    int
	CheckFrequency int

	Log     *logging.Logger
	Metrics *metrics.Metrics
}

// worker owns the thread-confined resources used to acquire plans. It is
// checked out by one request at a time.
type worker struct {
	id     int
	cache  *plancache.Cache
	bridge *copyload.Bridge
}

// Processor executes queries. It is safe for concurrent use; each request
// brings its own State and Buffer.
type Processor struct {
	compiler engine.Compiler
	workers  chan *worker
	all      []*worker
	machine  machine
	log      *logging.Logger
	metrics  *metrics.Metrics
}

// New builds a processor with opts.Workers workers.
func New(opts Options) (*Processor, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.PlanCacheSize < 1 {
		opts.PlanCacheSize = plancache.DefaultSize
	}
	if opts.CheckFrequency < 1 {
		opts.CheckFrequency = DefaultCheckFrequency
	}
	if opts.Log == nil {
		opts.Log = logging.Nop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New(prometheus.NewRegistry())
	}

	p := &Processor{
		compiler: opts.Compiler,
		workers:  make(chan *worker, opts.Workers),
		machine: machine{
			encoders:       encode.NewTable(opts.FloatScale, opts.DoubleScale),
			checkFrequency: opts.CheckFrequency,
		},
		log:     opts.Log,
		metrics: opts.Metrics,
	}
	for i := 0; i < opts.Workers; i++ {
		cache, err := plancache.New(opts.PlanCacheSize)
		if err != nil {
			return nil, err
		}
		w := &worker{id: i, cache: cache}
		if opts.Store != nil && opts.Fs != nil {
			w.bridge = copyload.New(copyload.Options{
				Fs:        opts.Fs,
				Store:     opts.Store,
				ChunkSize: opts.CopyChunkSize,
				Log:       opts.Log,
				Metrics:   opts.Metrics,
			})
		}
		p.all = append(p.all, w)
		p.workers <- w
	}
	return p, nil
}

// NewBuffer returns a response buffer of size bytes that reports sent
// bytes to the processor's metrics.
func (p *Processor) NewBuffer(size int) *respbuf.Buffer {
	b := respbuf.New(size)
	b.OnChunkSent(func(n int) { p.metrics.BytesSent.Add(float64(n)) })
	return b
}

// WorkerStats reports the plan cache counters of one worker.
type WorkerStats struct {
	ID          int    `json:"id"`
	CacheHits   uint64 `json:"cache_hits"`
	CacheMisses uint64 `json:"cache_misses"`
}

// Stats returns the cache counters of every worker.
func (p *Processor) Stats() []WorkerStats {
	out := make([]WorkerStats, len(p.all))
	for i, w := range p.all {
		out[i] = WorkerStats{ID: w.id, CacheHits: w.cache.Hits(), CacheMisses: w.cache.Misses()}
	}
	return out
}

// Close waits for every worker to be returned and drops all cached plans.
// Plans still streaming stay open until their requests finish.
func (p *Processor) Close() {
	for range p.all {
		w := <-p.workers
		w.cache.Purge()
	}
}

// Process parses the request parameters into s and executes the query. See
// Execute for the meaning of the returned error.
func (p *Processor) Process(ctx context.Context, s *State, form url.Values, b *respbuf.Buffer) error {
	ctx = logtags.AddTag(ctx, "conn", s.ConnID)
	s.Clear()
	if err := s.ParseParams(form); err != nil {
		p.log.Info(ctx, "Empty query request received. Sending empty reply.")
		return p.fail(ctx, s, b, err, time.Now())
	}
	return p.execute(ctx, s, b)
}

// Execute runs the query held in s and streams the response into b, which
// must have been started with Begin. Failures that can still be reported
// are sent as an error document and Execute returns nil. A non-nil error
// means the response could not be completed and the connection has to be
// torn down. The cursor and plan reference are released before returning.
func (p *Processor) Execute(ctx context.Context, s *State, b *respbuf.Buffer) error {
	return p.execute(logtags.AddTag(ctx, "conn", s.ConnID), s, b)
}

func (p *Processor) execute(ctx context.Context, s *State, b *respbuf.Buffer) error {
	start := time.Now()
	defer s.release()

	retried := false
	for {
		confirm, err := p.acquire(ctx, s, &retried)
		if err != nil {
			return p.fail(ctx, s, b, err, start)
		}
		if confirm {
			return p.confirm(ctx, s, b, start)
		}

		err = p.stream(ctx, s, b)
		if err == nil {
			return p.done(ctx, s, b, start)
		}
		// Iteration failures share the single recompile with Cursor
		// failures while nothing has reached the peer.
		if retried || b.Sent() || qerrors.KindOf(err) != qerrors.Execution {
			return p.fail(ctx, s, b, err, start)
		}
		p.log.Error(ctx, "plan iteration failed, retrying", "q", p.log.Query(s.Query), "err", err.Error())
		p.metrics.Retries.Inc()
		s.handle.Invalidate()
		s.release()
		b.Reset()
		retried = true
	}
}

func (p *Processor) confirm(ctx context.Context, s *State, b *respbuf.Buffer, start time.Time) error {
	b.Bookmark()
	b.PutString(`{"ddl":"OK"}`)
	if b.Err() != nil {
		return p.fail(ctx, s, b, qerrors.At(qerrors.BufferTooSmall, 0, "response buffer is too small [stage=ddl, size=%d]", b.Cap()), start)
	}
	if err := b.SendChunk(ctx); err != nil {
		return p.fail(ctx, s, b, err, start)
	}
	return p.done(ctx, s, b, start)
}

func (p *Processor) stream(ctx context.Context, s *State, b *respbuf.Buffer) error {
	streamStart := time.Now()
	s.stage = stagePrefix
	s.ColumnIndex = 0
	s.Count = 0
	s.seen = 0
	s.checks = 0
	err := p.machine.run(ctx, s, b, func() {
		p.log.Debug(ctx, "resume", "stage", s.stage.String())
	})
	s.Timings.Stream += time.Since(streamStart)
	return err
}

func (p *Processor) done(ctx context.Context, s *State, b *respbuf.Buffer, start time.Time) error {
	p.metrics.Requests.WithLabelValues(metrics.OutcomeOK).Inc()
	p.metrics.Duration.Observe(time.Since(start).Seconds())
	p.log.Debug(ctx, "all sent", "bytes", b.BytesSent(), "chunks", b.Chunks(),
		"compile", s.Timings.Compile.String(), "execute", s.Timings.Execute.String(), "stream", s.Timings.Stream.String())
	return nil
}

func (p *Processor) checkout(ctx context.Context) (*worker, error) {
	select {
	case w := <-p.workers:
		return w, nil
	case <-ctx.Done():
		return nil, qerrors.Wrap(qerrors.PeerDisconnected, "request cancelled", ctx.Err())
	}
}

// acquire resolves s.Query to a cursor. It returns true when the statement
// produced no result set and only needs a confirmation. A plan whose cursor
// cannot be opened is dropped from the cache and compiled once more unless
// *retried is already set; the second failure is returned.
func (p *Processor) acquire(ctx context.Context, s *State, retried *bool) (bool, error) {
	w, err := p.checkout(ctx)
	if err != nil {
		return false, err
	}
	defer func() { p.workers <- w }()
	ctx = logtags.AddTag(ctx, "worker", w.id)

	h, cached := w.cache.Get(s.Query)
	for ; ; *retried = true {
		if cached {
			p.metrics.CacheHits.Inc()
			p.log.Info(ctx, "execute-cached", "q", p.log.Query(s.Query), "skip", s.Skip, "stop", s.Stop)
		} else {
			compileStart := time.Now()
			cq, err := p.compiler.Compile(ctx, s.Query)
			s.Timings.Compile += time.Since(compileStart)
			if err != nil {
				return false, err
			}
			p.metrics.CacheMisses.Inc()
			p.log.Info(ctx, "execute-new", "q", p.log.Query(s.Query), "skip", s.Skip, "stop", s.Stop, "type", cq.Type.String())

			switch cq.Type {
			case engine.Copy:
				if w.bridge == nil {
					return false, qerrors.At(qerrors.Validation, cq.Copy.TablePosition, "COPY is not enabled")
				}
				if _, err := w.bridge.Copy(ctx, cq.Copy); err != nil {
					return false, err
				}
				return true, nil
			case engine.DDL:
				return true, nil
			}
			h = plancache.NewHandle(cq.Plan)
			w.cache.Put(s.Query, h)
		}

		executeStart := time.Now()
		cur, err := h.Plan().Cursor(ctx)
		s.Timings.Execute += time.Since(executeStart)
		if err == nil {
			s.cursor = cur
			s.metadata = h.Plan().Metadata()
			s.handle = h
			return false, nil
		}

		h.Invalidate()
		w.cache.Invalidate(s.Query)
		_ = h.Release()
		if *retried {
			return false, err
		}
		p.log.Error(ctx, "plan execution failed, retrying", "q", p.log.Query(s.Query), "err", err.Error())
		p.metrics.Retries.Inc()
		cached = false
	}
}

// fail reports err. It sends an error document when nothing has been sent
// yet and returns err when the connection has to be dropped instead.
func (p *Processor) fail(ctx context.Context, s *State, b *respbuf.Buffer, err error, start time.Time) error {
	kind := qerrors.KindOf(err)
	msg, pos := qerrors.Details(err)
	p.metrics.Errors.WithLabelValues(string(kind)).Inc()
	p.metrics.Duration.Observe(time.Since(start).Seconds())

	switch kind {
	case qerrors.BufferTooSmall:
		p.log.Info(ctx, "Response buffer is too small", "stage", s.stage.String(), "size", b.Cap())
		return p.abort(err)
	case qerrors.PeerDisconnected:
		p.log.Debug(ctx, "peer disconnected", "stage", s.stage.String(), "err", err.Error())
		return p.abort(err)
	case qerrors.Syntax:
		p.log.Info(ctx, "syntax-error", "q", p.log.Query(s.Query), "at", pos, "message", msg)
	case qerrors.Validation, qerrors.IO:
		p.log.Info(ctx, "request error", "q", p.log.Query(s.Query), "at", pos, "message", msg)
	default:
		if s.handle != nil {
			s.handle.Invalidate()
		}
		p.log.Error(ctx, "Server error executing query", "q", p.log.Query(s.Query), "err", err.Error())
	}

	if b.Sent() {
		return p.abort(err)
	}
	b.Reset()
	b.SetStatus(qerrors.Status(err))
	b.Bookmark()
	b.PutString(`{"query":`)
	b.PutQuoted(s.Query)
	b.PutString(`,"error":`)
	b.PutQuoted(msg)
	b.PutString(`,"position":`)
	b.PutInt(int64(pos))
	b.PutByte('}')
	if b.Err() != nil {
		p.log.Info(ctx, "Response buffer is too small", "stage", "error", "size", b.Cap())
		return p.abort(qerrors.At(qerrors.BufferTooSmall, 0, "error document does not fit the response buffer"))
	}
	if serr := b.SendChunk(ctx); serr != nil {
		return p.abort(serr)
	}
	p.metrics.Requests.WithLabelValues(metrics.OutcomeError).Inc()
	return nil
}

func (p *Processor) abort(err error) error {
	p.metrics.Requests.WithLabelValues(metrics.OutcomeAborted).Inc()
	return err
}
