// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package query

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/anjanb/questdb/internal/encode"
	qerrors "github.com/anjanb/questdb/internal/errors"
	"github.com/anjanb/questdb/internal/respbuf"
)

// stage is the position of a request in the serialization. Each stage
// writes at most one unit per step: a document fragment, one column
// descriptor or one value.
type stage uint8

const (
	stagePrefix stage = iota
	stageMetadata
	stageMetadataSuffix
	stageSetupFirstRecord
	stageRecordPrefix
	stageRecord
	stageRecordSuffix
	stageNextRecord
	stageSuffix
	stageDone
)

var stageNames = [...]string{
	stagePrefix:           "prefix",
	stageMetadata:         "metadata",
	stageMetadataSuffix:   "metadata-suffix",
	stageSetupFirstRecord: "setup-first-record",
	stageRecordPrefix:     "record-prefix",
	stageRecord:           "record",
	stageRecordSuffix:     "record-suffix",
	stageNextRecord:       "next-record",
	stageSuffix:           "suffix",
	stageDone:             "done",
}

func (s stage) String() string {
	if int(s) < len(stageNames) {
		return stageNames[s]
	}
	return "unknown"
}

// machine drives a State through the stages. It is stateless apart from
// its configuration; everything resumable lives in the State.
type machine struct {
	encoders       *encode.Table
	checkFrequency int
}

// unit finishes a write: the state may only advance if the whole unit is
// buffered.
func unit(b *respbuf.Buffer) error { return b.Err() }

// run steps s until it is done. When the buffer fills, the unfinished unit
// is rolled back, the confirmed prefix goes to the peer and the same stage
// runs again. onResume is called after every such flush.
func (m *machine) run(ctx context.Context, s *State, b *respbuf.Buffer, onResume func()) error {
	for s.stage != stageDone {
		err := m.step(ctx, s, b)
		if err == nil {
			continue
		}
		if !errors.Is(err, respbuf.ErrNoSpace) {
			return err
		}
		if !b.ResetToBookmark() {
			return qerrors.At(qerrors.BufferTooSmall, 0, "response buffer is too small [stage=%s, size=%d]", s.stage, b.Cap())
		}
		if err := b.SendChunk(ctx); err != nil {
			return err
		}
		if onResume != nil {
			onResume()
		}
	}
	return nil
}

// step performs the work of the current stage and moves to the next one.
// State changes only after the unit written by the stage is buffered.
func (m *machine) step(ctx context.Context, s *State, b *respbuf.Buffer) error {
	switch s.stage {
	case stagePrefix:
		b.Bookmark()
		b.PutByte('{')
		if s.NoMeta {
			b.PutString(`"dataset":[`)
		} else {
			b.PutString(`"query":`)
			b.PutQuoted(s.Query)
			b.PutString(`,"columns":[`)
		}
		if err := unit(b); err != nil {
			return err
		}
		s.ColumnIndex = 0
		switch {
		case s.NoMeta:
			s.stage = stageSetupFirstRecord
		case s.metadata.ColumnCount() == 0:
			s.stage = stageMetadataSuffix
		default:
			s.stage = stageMetadata
		}

	case stageMetadata:
		col := s.ColumnIndex
		b.Bookmark()
		if col > 0 {
			b.PutByte(',')
		}
		b.PutString(`{"name":`)
		b.PutQuoted(s.metadata.ColumnName(col))
		b.PutString(`,"type":`)
		b.PutQuoted(s.metadata.ColumnType(col).String())
		b.PutByte('}')
		if err := unit(b); err != nil {
			return err
		}
		s.ColumnIndex++
		if s.ColumnIndex == s.metadata.ColumnCount() {
			s.stage = stageMetadataSuffix
		}

	case stageMetadataSuffix:
		b.Bookmark()
		b.PutString(`],"dataset":[`)
		if err := unit(b); err != nil {
			return err
		}
		s.stage = stageSetupFirstRecord

	case stageSetupFirstRecord:
		ok, err := m.setupFirstRecord(ctx, s)
		if err != nil {
			return err
		}
		if ok {
			s.stage = stageRecordPrefix
		} else {
			s.stage = stageSuffix
		}

	case stageRecordPrefix:
		b.Bookmark()
		if s.Count > 0 {
			b.PutByte(',')
		}
		b.PutByte('[')
		if err := unit(b); err != nil {
			return err
		}
		s.ColumnIndex = 0
		if s.metadata.ColumnCount() == 0 {
			s.stage = stageRecordSuffix
		} else {
			s.stage = stageRecord
		}

	case stageRecord:
		col := s.ColumnIndex
		b.Bookmark()
		if col > 0 {
			b.PutByte(',')
		}
		m.encoders.Encode(b, s.metadata.ColumnType(col), s.record, col)
		if err := unit(b); err != nil {
			return err
		}
		s.ColumnIndex++
		if s.ColumnIndex == s.metadata.ColumnCount() {
			s.stage = stageRecordSuffix
		}

	case stageRecordSuffix:
		b.Bookmark()
		b.PutByte(']')
		if err := unit(b); err != nil {
			return err
		}
		s.Count++
		s.stage = stageNextRecord

	case stageNextRecord:
		ok, err := m.nextRecord(ctx, s)
		if err != nil {
			return err
		}
		if ok {
			s.stage = stageRecordPrefix
		} else {
			s.stage = stageSuffix
		}

	case stageSuffix:
		b.Bookmark()
		b.PutString(`],"count":`)
		b.PutInt(s.Count)
		b.PutByte('}')
		if err := unit(b); err != nil {
			return err
		}
		s.Count = -1
		if err := b.SendChunk(ctx); err != nil {
			return err
		}
		s.stage = stageDone

	default:
		return errors.AssertionFailedf("unexpected stage %s", s.stage)
	}
	return nil
}

// setupFirstRecord discards Skip rows and positions the cursor on the first
// row to emit. It reports false when there is nothing to emit.
func (m *machine) setupFirstRecord(ctx context.Context, s *State) (bool, error) {
	for s.seen < s.Skip {
		if !s.cursor.Next() {
			return false, m.finish(ctx, s, false)
		}
		s.seen++
		if err := m.check(ctx, s); err != nil {
			return false, err
		}
	}
	if s.seen >= s.Stop {
		return false, m.finish(ctx, s, true)
	}
	if !s.cursor.Next() {
		return false, m.finish(ctx, s, false)
	}
	s.seen++
	s.ColumnIndex = 0
	s.record = s.cursor.Record()
	return true, nil
}

// nextRecord advances to the next row to emit, if any remains below Stop.
func (m *machine) nextRecord(ctx context.Context, s *State) (bool, error) {
	if s.seen >= s.Stop {
		return false, m.finish(ctx, s, true)
	}
	if !s.cursor.Next() {
		return false, m.finish(ctx, s, false)
	}
	s.seen++
	s.record = s.cursor.Record()
	return true, nil
}

// finish settles Count once no further row will be emitted. more is true
// when the cursor may still hold rows that were not read.
func (m *machine) finish(ctx context.Context, s *State, more bool) error {
	if !more {
		if err := s.cursor.Err(); err != nil {
			return qerrors.Wrap(qerrors.Execution, "cursor failed", err)
		}
	}
	if !s.CountRows {
		return nil
	}
	if !more {
		s.Count = s.seen
		return nil
	}
	if size := s.cursor.Size(); size >= 0 {
		s.Count = size
		return nil
	}
	total := s.seen
	for s.cursor.Next() {
		total++
		if err := m.check(ctx, s); err != nil {
			return err
		}
	}
	if err := s.cursor.Err(); err != nil {
		return qerrors.Wrap(qerrors.Execution, "cursor failed", err)
	}
	s.Count = total
	return nil
}

// check looks for a cancelled request every checkFrequency rows read
// without emitting.
func (m *machine) check(ctx context.Context, s *State) error {
	s.checks++
	if s.checks < m.checkFrequency {
		return nil
	}
	s.checks = 0
	if err := ctx.Err(); err != nil {
		return qerrors.Wrap(qerrors.PeerDisconnected, "request cancelled", err)
	}
	return nil
}
