// Copyright 2026 The probevm Authors
// This file is part of probevm.
//
// probevm is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// probevm is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with probevm. If not, see <http://www.gnu.org/licenses/>.

// Package plog is a small leveled logger in the teacher's own house
// style: go-ethereum's log package formats records as
// "time level msg key=value ...", colorizing the level when the output
// is a terminal. This package reuses the support libraries that style
// depends on — go-isatty to detect a terminal, go-colorable to make
// ANSI color codes work on Windows consoles too, fatih/color for the
// palette, go-stack for caller capture — without vendoring the
// internal logger itself, since only its dependencies were available to
// build from.
package plog

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/go-stack/stack"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// Level is a logging severity, ordered from least to most severe.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "EROR",
}

var levelColors = map[Level]*color.Color{
	LevelDebug: color.New(color.FgHiBlack),
	LevelInfo:  color.New(color.FgGreen),
	LevelWarn:  color.New(color.FgYellow),
	LevelError: color.New(color.FgRed, color.Bold),
}

// Logger writes leveled, key-value records to an underlying writer.
type Logger struct {
	out        io.Writer
	minLevel   Level
	colorize   bool
	withCaller bool
}

// New returns a Logger writing to w at minLevel. Color is auto-detected
// from w when w is *os.File and is a terminal (wrapped through
// go-colorable so ANSI sequences render on Windows consoles as well).
func New(w io.Writer, minLevel Level) *Logger {
	colorize := false
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		colorize = true
	}
	return &Logger{out: w, minLevel: minLevel, colorize: colorize}
}

// WithCaller returns a copy of l that additionally records the caller
// frame on every Debug record, via go-stack.
func (l *Logger) WithCaller() *Logger {
	c := *l
	c.withCaller = true
	return &c
}

func (l *Logger) log(level Level, msg string, kv []interface{}) {
	if level < l.minLevel {
		return
	}
	name := levelNames[level]
	if l.colorize {
		name = levelColors[level].Sprint(name)
	}
	line := fmt.Sprintf("%s [%s] %s", time.Now().Format("15:04:05.000"), name, msg)
	for pairs := pairsSortedByKey(kv); len(pairs) > 0; pairs = pairs[1:] {
		line += " " + pairs[0]
	}
	if l.withCaller && level == LevelDebug {
		// frames[0] is log, frames[1] the Debug method; the caller is next.
		if frames := stack.Trace().TrimRuntime(); len(frames) > 2 {
			line += fmt.Sprintf(" caller=%+v", frames[2])
		}
	}
	fmt.Fprintln(l.out, line)
}

// pairsSortedByKey renders kv (alternating key, value, key, value...)
// as "key=value" strings, sorted by key so log lines diff cleanly in
// test golden files regardless of call-site argument order.
func pairsSortedByKey(kv []interface{}) []string {
	pairs := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		pairs = append(pairs, fmt.Sprintf("%v=%v", kv[i], kv[i+1]))
	}
	sort.Strings(pairs)
	return pairs
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(LevelDebug, msg, kv) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, kv ...interface{}) { l.log(LevelInfo, msg, kv) }

// Warn logs at LevelWarn.
func (l *Logger) Warn(msg string, kv ...interface{}) { l.log(LevelWarn, msg, kv) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(LevelError, msg, kv) }

// Discard is a Logger that drops every record, for tests and for
// non-traced production execution where tracing overhead is unwanted.
var Discard = New(io.Discard, LevelError+1)
