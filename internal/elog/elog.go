// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package elog reconstructs the small Logger/Helper surface the teacher
// package wires its File through (log.NewStdLogger, log.NewFilter,
// log.FilterLevel, log.NewHelper), backed by zerolog instead of a
// hand-rolled writer so callers get structured, leveled output for free.
package elog

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Level mirrors the teacher's log.Level ordering: the higher the value,
// the more severe the message, and a filter passes every level at or
// above its minimum.
type Level int8

// Levels recognized by Helper, lowest severity first.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// Logger is the minimal sink every Helper writes through.
type Logger interface {
	Log(level Level, msg string)
}

// stdLogger backs Logger with a zerolog.Logger writing to an io.Writer.
type stdLogger struct {
	zl zerolog.Logger
}

// NewStdLogger returns a Logger writing structured, leveled lines to w.
func NewStdLogger(w io.Writer) Logger {
	zl := zerolog.New(w).With().Timestamp().Logger()
	return &stdLogger{zl: zl}
}

func (s *stdLogger) Log(level Level, msg string) {
	switch level {
	case LevelDebug:
		s.zl.Debug().Msg(msg)
	case LevelInfo:
		s.zl.Info().Msg(msg)
	case LevelWarn:
		s.zl.Warn().Msg(msg)
	default:
		s.zl.Error().Msg(msg)
	}
}

// filter drops log lines below a minimum level before they reach the
// underlying Logger.
type filter struct {
	next Logger
	min  Level
}

// NewFilter wraps next so that only messages at or above the configured
// minimum level are forwarded.
func NewFilter(next Logger, opts ...FilterOption) Logger {
	f := &filter{next: next, min: LevelInfo}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *filter) Log(level Level, msg string) {
	if level < f.min {
		return
	}
	f.next.Log(level, msg)
}

// FilterOption configures a filter built by NewFilter.
type FilterOption func(*filter)

// FilterLevel sets the minimum level a filter passes through.
func FilterLevel(min Level) FilterOption {
	return func(f *filter) { f.min = min }
}

// Helper provides the printf-style convenience methods callers reach for.
type Helper struct {
	logger Logger
}

// NewHelper wraps logger with Debugf/Infof/Warnf/Errorf convenience methods.
func NewHelper(logger Logger) *Helper {
	if logger == nil {
		logger = NewStdLogger(os.Stderr)
	}
	return &Helper{logger: logger}
}

func (h *Helper) log(level Level, format string, args ...interface{}) {
	if h == nil || h.logger == nil {
		return
	}
	h.logger.Log(level, sprintf(format, args...))
}

// Debugf logs at debug level.
func (h *Helper) Debugf(format string, args ...interface{}) { h.log(LevelDebug, format, args...) }

// Infof logs at info level.
func (h *Helper) Infof(format string, args ...interface{}) { h.log(LevelInfo, format, args...) }

// Warnf logs at warn level.
func (h *Helper) Warnf(format string, args ...interface{}) { h.log(LevelWarn, format, args...) }

// Warn logs a plain message at warn level.
func (h *Helper) Warn(msg string) { h.log(LevelWarn, "%s", msg) }

// Errorf logs at error level.
func (h *Helper) Errorf(format string, args ...interface{}) { h.log(LevelError, format, args...) }

func sprintf(format string, args ...interface{}) string {
	if len(args) == 0 {
		return format
	}
	return fmt.Sprintf(format, args...)
}
