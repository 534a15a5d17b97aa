/*
 * MIT License
 *
 * Copyright (c) 2026 movsoftware contributors
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package logger is a small structured-logging facade shaped after the
// teacher's logger package: level filtering, default fields merged into
// every entry, and one call per level. sirupsen/logrus is the backend;
// spf13/jwalterweatherman is bridged in so that libraries which only know
// how to log through jww (viper, in particular) still land in the same
// sink.
package logger

import (
	"io"
	"os"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"github.com/sirupsen/logrus"
)

// Level mirrors the five levels the core ever emits (§7: "every observable
// failure produces exactly one log entry at the appropriate level").
type Level uint32

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
	FatalLevel
)

func (l Level) logrus() logrus.Level {
	switch l {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}

// ParseLevel maps one of §6.3's log-level config values onto a Level,
// defaulting to InfoLevel for an empty or unrecognized string rather than
// rejecting it outright — a typo in a log-level override should not keep
// a daemon from starting.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return DebugLevel
	case "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	case "fatal":
		return FatalLevel
	default:
		return InfoLevel
	}
}

// Fields are arbitrary structured attributes attached to every entry
// emitted by a Logger, e.g. peer identity, file name, channel id.
type Fields map[string]interface{}

// Logger is the interface every core subsystem is handed; it never talks
// to logrus directly so the backend can be swapped in tests.
type Logger interface {
	SetLevel(lvl Level)
	GetLevel() Level
	WithFields(f Fields) Logger

	Debug(message string, err error, f Fields)
	Info(message string, err error, f Fields)
	Warning(message string, err error, f Fields)
	Error(message string, err error, f Fields)
	Fatal(message string, err error, f Fields)
}

type logger struct {
	mu     sync.RWMutex
	level  Level
	fields Fields
	entry  *logrus.Entry
}

// New builds a Logger writing to w (os.Stderr by default) with the given
// default fields merged into every entry, using the text formatter.
func New(w io.Writer, f Fields) Logger {
	return NewWithFormat(w, f, "text")
}

// NewWithFormat is New with an explicit §6.3 log-format ("text" or
// "json"); any other value falls back to the text formatter.
func NewWithFormat(w io.Writer, f Fields, format string) Logger {
	if w == nil {
		w = os.Stderr
	}

	l := logrus.New()
	l.SetOutput(w)
	if format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lg := &logger{
		level:  InfoLevel,
		fields: f,
		entry:  logrus.NewEntry(l),
	}
	l.SetLevel(lg.level.logrus())

	return lg
}

// BridgeJWW redirects spf13/jwalterweatherman's default notepad output
// (used internally by viper for config diagnostics) into this logger at
// the given level, exactly as the teacher's Logger.SetSPF13Level does.
func BridgeJWW(l Logger, lvl Level) {
	lg, ok := l.(*logger)
	if !ok {
		return
	}
	w := lg.entry.Logger.WriterLevel(lvl.logrus())
	jww.SetLogOutput(w)
	jww.SetStdoutOutput(io.Discard)
}

func (l *logger) SetLevel(lvl Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = lvl
	l.entry.Logger.SetLevel(lvl.logrus())
}

func (l *logger) GetLevel() Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.level
}

func (l *logger) WithFields(f Fields) Logger {
	merged := Fields{}
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range f {
		merged[k] = v
	}
	return &logger{level: l.GetLevel(), fields: merged, entry: l.entry}
}

func (l *logger) log(lvl Level, message string, err error, f Fields) {
	fx := logrus.Fields{}
	for k, v := range l.fields {
		fx[k] = v
	}
	for k, v := range f {
		fx[k] = v
	}
	e := l.entry.WithFields(fx)
	if err != nil {
		e = e.WithError(err)
	}

	switch lvl {
	case DebugLevel:
		e.Debug(message)
	case InfoLevel:
		e.Info(message)
	case WarnLevel:
		e.Warn(message)
	case ErrorLevel:
		e.Error(message)
	case FatalLevel:
		e.Error(message)
	}
}

func (l *logger) Debug(message string, err error, f Fields)   { l.log(DebugLevel, message, err, f) }
func (l *logger) Info(message string, err error, f Fields)    { l.log(InfoLevel, message, err, f) }
func (l *logger) Warning(message string, err error, f Fields) { l.log(WarnLevel, message, err, f) }
func (l *logger) Error(message string, err error, f Fields)   { l.log(ErrorLevel, message, err, f) }

// Fatal logs at error level then terminates the process, matching the
// teacher's documented Logger.Fatal contract ("will break the process
// (os.exit) after log entry"). Only the supervisor's top-level error path
// should ever call this.
func (l *logger) Fatal(message string, err error, f Fields) {
	l.log(FatalLevel, message, err, f)
	os.Exit(1)
}
