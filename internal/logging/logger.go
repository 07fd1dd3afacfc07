// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/pterm/pterm"
)

// Options configures a Logger.
type Options struct {
	// Level is one of trace, debug, info, warn, error or off.
	Level string
	// Format is text or json.
	Format string
	// Redact hides query text in log lines.
	Redact bool
	Writer io.Writer
}

// Logger writes structured lines through pterm. Tags attached to the
// context with logtags are appended to every line.
type Logger struct {
	base   *pterm.Logger
	redact bool
}

// ParseLevel maps a level name onto a pterm log level.
func ParseLevel(s string) (pterm.LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return pterm.LogLevelTrace, nil
	case "debug":
		return pterm.LogLevelDebug, nil
	case "", "info":
		return pterm.LogLevelInfo, nil
	case "warn", "warning":
		return pterm.LogLevelWarn, nil
	case "error":
		return pterm.LogLevelError, nil
	case "off", "disabled":
		return pterm.LogLevelDisabled, nil
	default:
		return pterm.LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// New builds a logger from opts.
func New(opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	base := pterm.DefaultLogger.WithLevel(level).WithWriter(w).WithMaxWidth(160)
	switch strings.ToLower(opts.Format) {
	case "", "text":
		base = base.WithFormatter(pterm.LogFormatterColorful)
	case "json":
		base = base.WithFormatter(pterm.LogFormatterJSON)
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	return &Logger{base: base, redact: opts.Redact}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{base: pterm.DefaultLogger.WithLevel(pterm.LogLevelDisabled).WithWriter(io.Discard)}
}

// Query returns q as it may appear in a log line.
func (l *Logger) Query(q string) string {
	if !l.redact {
		return q
	}
	return string(redact.Sprint(q).Redact())
}

func (l *Logger) args(ctx context.Context, kv []any) []pterm.LoggerArgument {
	if ctx != nil {
		if tags := logtags.FromContext(ctx); tags != nil {
			for _, tag := range tags.Get() {
				kv = append(kv, tag.Key(), tag.Value())
			}
		}
	}
	return l.base.Args(kv...)
}

// Trace logs at trace level. kv holds alternating keys and values.
func (l *Logger) Trace(ctx context.Context, msg string, kv ...any) {
	if l.base.CanPrint(pterm.LogLevelTrace) {
		l.base.Trace(msg, l.args(ctx, kv))
	}
}

func (l *Logger) Debug(ctx context.Context, msg string, kv ...any) {
	if l.base.CanPrint(pterm.LogLevelDebug) {
		l.base.Debug(msg, l.args(ctx, kv))
	}
}

func (l *Logger) Info(ctx context.Context, msg string, kv ...any) {
	if l.base.CanPrint(pterm.LogLevelInfo) {
		l.base.Info(msg, l.args(ctx, kv))
	}
}

func (l *Logger) Warn(ctx context.Context, msg string, kv ...any) {
	if l.base.CanPrint(pterm.LogLevelWarn) {
		l.base.Warn(msg, l.args(ctx, kv))
	}
}

func (l *Logger) Error(ctx context.Context, msg string, kv ...any) {
	if l.base.CanPrint(pterm.LogLevelError) {
		l.base.Error(msg, l.args(ctx, kv))
	}
}
