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

// Package transport implements the multi-channel message bus of §4.3: one
// reader and one writer worker per connection, a handshake-based channel
// lifecycle, keepalives, partial-IO resumption, and a two-phase shutdown.
package transport

import "time"

// ControlType enumerates the reserved system-control message types that
// travel on the control channel (wire.ControlChannel). All values sit at
// or above wire.SystemTypeFloor so application types never collide.
type ControlType uint16

const (
	CtrlChannelAnnounce  ControlType = 0xFFFA
	CtrlChannelReply     ControlType = 0xFFFB
	CtrlChannelKill      ControlType = 0xFFFC
	CtrlChannelKeepalive ControlType = 0xFFFD
	CtrlWriterUnblocker  ControlType = 0xFFFE
)

// ChannelState is the channel lifecycle state machine of §3: closing is
// monotonic, a channel accepts inbound messages only while Connected.
type ChannelState int32

const (
	ChannelCreated ChannelState = iota
	ChannelConnecting
	ChannelConnected
	ChannelClosed
)

func (s ChannelState) String() string {
	switch s {
	case ChannelCreated:
		return "created"
	case ChannelConnecting:
		return "connecting"
	case ChannelConnected:
		return "connected"
	default:
		return "closed"
	}
}

// Kind distinguishes the transport of a Connection's underlying socket.
type Kind int

const (
	KindTCP Kind = iota
	KindTLS
)

// defaultStagnantSeconds is the fixed fallback used when keepalive is 0
// (§4.3.3: "a fixed default of 120 s if keepalive is 0").
const defaultStagnantSeconds = 120

// pollInterval bounds how long the reader/writer loops block on I/O
// before re-checking shutdown and liveness (§4.3.3/§4.3.4: "a 1-second
// timeout").
const pollInterval = 1 * time.Second

// InProcessControlKeepalive is the 60-second keepalive §4.3.8 gives an
// in-process control connection. This package has no such connection
// (in-process events are Go channels, see Root), so nothing uses it.
const InProcessControlKeepalive = 60
