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

// Package errors implements the kind taxonomy required by the file-transfer
// core: every failure observed by the transport or the transfer engines is
// wrapped into one of a small set of distinguishable Kind values so that
// callers can branch on "what happened" without string matching.
package errors

import "fmt"

// Kind distinguishes the error categories the transport and transfer state
// machines must be able to tell apart.
type Kind int

const (
	KindGeneric Kind = iota
	KindMemory
	KindPipe
	KindMutex
	KindPthread
	KindSystem
	KindClosed
	KindShortIO
	KindPartialIO
	KindEmptyRead
	KindTls
	KindProtocolMismatch
)

func (k Kind) String() string {
	switch k {
	case KindMemory:
		return "memory"
	case KindPipe:
		return "pipe"
	case KindMutex:
		return "mutex"
	case KindPthread:
		return "pthread"
	case KindSystem:
		return "system"
	case KindClosed:
		return "closed"
	case KindShortIO:
		return "short-io"
	case KindPartialIO:
		return "partial-io"
	case KindEmptyRead:
		return "empty-read"
	case KindTls:
		return "tls"
	case KindProtocolMismatch:
		return "protocol-mismatch"
	default:
		return "generic"
	}
}

// Per-subsystem error code offsets, mirroring the teacher's MinPkgXxx
// registry so distinct subsystems never collide on a numeric code.
const (
	MinPkgDictionary = 100
	MinPkgMultiqueue = 200
	MinPkgWire       = 300
	MinPkgTransport  = 400
	MinPkgXfer       = 500
	MinPkgDiskspace  = 600
	MinPkgLinkcopy   = 700
	MinPkgSender     = 800
	MinPkgReceiver   = 900
	MinPkgCerts      = 1000
	MinPkgConfig     = 1100
	MinPkgCmd        = 1200
)

// Error is the concrete error type carried through the core. It always
// knows its Kind and an optional wrapped cause, and may carry a numeric
// code from one of the MinPkgXxx blocks above for log correlation.
type Error struct {
	Kind   Kind
	Code   int
	Msg    string
	Cause  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s #%d] %s: %s", e.Kind, e.Code, e.Msg, e.Cause.Error())
	}
	return fmt.Sprintf("[%s #%d] %s", e.Kind, e.Code, e.Msg)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is(err, errors.New(KindClosed, 0, "")) to match purely
// on Kind, ignoring message/cause — callers classify by kind, not text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New constructs an Error of the given kind and numeric code.
func New(kind Kind, code int, msg string) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg}
}

// Wrap constructs an Error of the given kind and numeric code, wrapping
// an underlying cause. If cause is nil, Wrap behaves like New.
func Wrap(kind Kind, code int, msg string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Msg: msg, Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if a, ok := err.(*Error); ok {
			e = a
			if e.Kind == kind {
				return true
			}
			err = e.Cause
			continue
		}
		if u, ok := err.(interface{ Unwrap() error }); ok {
			err = u.Unwrap()
			continue
		}
		break
	}
	return false
}
