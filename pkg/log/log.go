// Copyright (C) 2022 NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package log provides a small leveled logger. Unlike a package-level
// singleton, every component receives its own *Logger handle from the
// constructor in cmd/orion, so nothing here is shared mutable state:
// two Loggers never interfere with each other's level or output.
//
// Uses these prefixes: https://www.freedesktop.org/software/systemd/man/sd-daemon.html
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"time"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLevel(lvl string) (Level, error) {
	switch lvl {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "err", "error", "fatal", "crit":
		return LevelError, nil
	default:
		return LevelDebug, fmt.Errorf("log: invalid level %q", lvl)
	}
}

var prefixes = map[Level]string{
	LevelDebug: "<7>[DEBUG]    ",
	LevelInfo:  "<6>[INFO]     ",
	LevelWarn:  "<4>[WARNING]  ",
	LevelError: "<3>[ERROR]    ",
}

// Logger is an explicit, constructible leveled logger handle. It holds
// no package-level state; every component that needs to log takes one
// as a constructor argument.
type Logger struct {
	level    Level
	withDate bool
	debug    *log.Logger
	info     *log.Logger
	warn     *log.Logger
	err      *log.Logger
}

// New constructs a Logger writing to w, gated at level, optionally
// prefixing each line with the current date/time (disabled by default
// since systemd/journald adds its own timestamp).
func New(w io.Writer, level Level, withDate bool) *Logger {
	flags := 0
	if withDate {
		flags = log.LstdFlags
	}
	return &Logger{
		level:    level,
		withDate: withDate,
		debug:    log.New(w, prefixes[LevelDebug], flags),
		info:     log.New(w, prefixes[LevelInfo], flags),
		warn:     log.New(w, prefixes[LevelWarn], flags),
		err:      log.New(w, prefixes[LevelError], flags),
	}
}

// NewDefault returns a Logger writing to stderr at LevelInfo, without
// date prefixes.
func NewDefault() *Logger {
	return New(os.Stderr, LevelInfo, false)
}

func (l *Logger) output(lvl Level, lg *log.Logger, s string) {
	if lvl < l.level {
		return
	}
	lg.Output(3, s)
}

func (l *Logger) Debug(v ...interface{})                 { l.output(LevelDebug, l.debug, fmt.Sprint(v...)) }
func (l *Logger) Info(v ...interface{})                  { l.output(LevelInfo, l.info, fmt.Sprint(v...)) }
func (l *Logger) Warn(v ...interface{})                  { l.output(LevelWarn, l.warn, fmt.Sprint(v...)) }
func (l *Logger) Error(v ...interface{})                 { l.output(LevelError, l.err, fmt.Sprint(v...)) }
func (l *Logger) Debugf(format string, v ...interface{}) { l.output(LevelDebug, l.debug, fmt.Sprintf(format, v...)) }
func (l *Logger) Infof(format string, v ...interface{})  { l.output(LevelInfo, l.info, fmt.Sprintf(format, v...)) }
func (l *Logger) Warnf(format string, v ...interface{})  { l.output(LevelWarn, l.warn, fmt.Sprintf(format, v...)) }
func (l *Logger) Errorf(format string, v ...interface{}) { l.output(LevelError, l.err, fmt.Sprintf(format, v...)) }

// Fatalf logs at error level and terminates the process. Reserved for
// the top-level drivers under cmd/; library packages return errors instead.
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.Errorf(format, v...)
	os.Exit(1)
}

// Timestamp renders t as an RFC 3339 string, for callers that build
// their own formatted lines around a clock reading instead of going
// through Infof directly.
func Timestamp(t time.Time) string {
	return t.Format(time.RFC3339)
}
