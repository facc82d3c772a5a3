// Copyright (c) 2025 The Arke Institute developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"context"
	"log/slog"
	"sync/atomic"
)

var root atomic.Value

func init() {
	root.Store(&logger{slog.New(DiscardHandler())})
}

// SetDefault sets the default global logger.
func SetDefault(l Logger) {
	root.Store(l)
	if lg, ok := l.(*logger); ok {
		slog.SetDefault(lg.inner)
	}
}

// Root returns the root logger.
func Root() Logger {
	return root.Load().(Logger)
}

// WithContext returns a logger carrying the given key/value context. Unlike
// Root().With, the returned logger resolves the root lazily on every call, so
// package-level loggers created before SetDefault still pick up the final
// handler.
func WithContext(ctx ...any) Logger {
	return &contextLogger{ctx: ctx}
}

type contextLogger struct {
	ctx []any
}

func (c *contextLogger) merged(ctx []any) []any {
	if len(c.ctx) == 0 {
		return ctx
	}
	out := make([]any, 0, len(c.ctx)+len(ctx))
	out = append(out, c.ctx...)
	return append(out, ctx...)
}

func (c *contextLogger) With(ctx ...any) Logger {
	return &contextLogger{ctx: c.merged(ctx)}
}

func (c *contextLogger) New(ctx ...any) Logger {
	return c.With(ctx...)
}

func (c *contextLogger) Log(level slog.Level, msg string, ctx ...any) {
	Root().Write(level, msg, c.merged(ctx)...)
}

func (c *contextLogger) Trace(msg string, ctx ...any) {
	Root().Write(LevelTrace, msg, c.merged(ctx)...)
}

func (c *contextLogger) Debug(msg string, ctx ...any) {
	Root().Write(slog.LevelDebug, msg, c.merged(ctx)...)
}

func (c *contextLogger) Info(msg string, ctx ...any) {
	Root().Write(slog.LevelInfo, msg, c.merged(ctx)...)
}

func (c *contextLogger) Warn(msg string, ctx ...any) {
	Root().Write(slog.LevelWarn, msg, c.merged(ctx)...)
}

func (c *contextLogger) Error(msg string, ctx ...any) {
	Root().Write(slog.LevelError, msg, c.merged(ctx)...)
}

func (c *contextLogger) Crit(msg string, ctx ...any) {
	Root().Crit(msg, c.merged(ctx)...)
}

func (c *contextLogger) Write(level slog.Level, msg string, attrs ...any) {
	Root().Write(level, msg, c.merged(attrs)...)
}

func (c *contextLogger) Enabled(ctx context.Context, level slog.Level) bool {
	return Root().Enabled(ctx, level)
}

func (c *contextLogger) Handler() slog.Handler {
	return Root().Handler()
}

// The following functions bypass the exported logger methods (Trace, Debug,
// etc.) to keep the call depth the same as the methods, so that runtime.Callers
// resolves the correct call site.

// Trace is a convenient alias for Root().Trace.
func Trace(msg string, ctx ...any) {
	Root().Write(LevelTrace, msg, ctx...)
}

// Debug is a convenient alias for Root().Debug.
func Debug(msg string, ctx ...any) {
	Root().Write(slog.LevelDebug, msg, ctx...)
}

// Info is a convenient alias for Root().Info.
func Info(msg string, ctx ...any) {
	Root().Write(slog.LevelInfo, msg, ctx...)
}

// Warn is a convenient alias for Root().Warn.
func Warn(msg string, ctx ...any) {
	Root().Write(slog.LevelWarn, msg, ctx...)
}

// Error is a convenient alias for Root().Error.
func Error(msg string, ctx ...any) {
	Root().Write(slog.LevelError, msg, ctx...)
}

// Crit is a convenient alias for Root().Crit.
func Crit(msg string, ctx ...any) {
	Root().Crit(msg, ctx...)
}
