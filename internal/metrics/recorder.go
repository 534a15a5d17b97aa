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

// Package metrics records the counters and gauges internal/statusd serves
// over Prometheus's text exposition format: live channels, bytes admitted
// into and released from in-flight transfers, and per-file outcomes.
package metrics

// Recorder is implemented once against a real Prometheus registry and
// once as a no-op, so internal/senderengine and internal/receiverengine
// can take a Recorder in tests without standing up a registry.
type Recorder interface {
	ChannelOpened()
	ChannelClosed()
	BytesAdmitted(n uint64)
	BytesReleased(n uint64)
	FileSucceeded()
	FileFailed(reason string)
}

// noop satisfies Recorder without recording anything; used as the
// default so engines never need a nil check before calling a Recorder
// method.
type noop struct{}

// Noop returns a Recorder whose methods do nothing.
func Noop() Recorder { return noop{} }

func (noop) ChannelOpened()          {}
func (noop) ChannelClosed()          {}
func (noop) BytesAdmitted(_ uint64)  {}
func (noop) BytesReleased(_ uint64)  {}
func (noop) FileSucceeded()          {}
func (noop) FileFailed(_ string)     {}
