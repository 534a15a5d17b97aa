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

// Package wire implements the §3/§4.3.1 framing: a fixed 6-byte
// network-order header (channel, type, size) followed by a body of up to
// 65535 bytes. Encoding and decoding both tolerate arbitrary partial
// reads/writes, resuming exactly where they left off.
package wire

import (
	"encoding/binary"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// ControlChannel is the reserved channel id used for system control
// messages (CHANNEL_ANNOUNCE/REPLY/KILL/KEEPALIVE).
const ControlChannel uint16 = 0xFFFF

// SystemTypeFloor is the lowest message type value reserved for system
// control; application-level types must stay strictly below it.
const SystemTypeFloor uint16 = 0xFFFA

// MaxBodySize is the largest body a single message may carry.
const MaxBodySize = 65535

// MaxPayloadSize returns the largest application payload that still fits
// in a single message once headerOverhead bytes of caller-prefixed header
// (e.g. a FILE_BLOCK offset prefix) are accounted for.
func MaxPayloadSize(headerOverhead int) int {
	n := MaxBodySize - headerOverhead
	if n < 0 {
		return 0
	}
	return n
}

// HeaderSize is the fixed wire size of a message header in bytes.
const HeaderSize = 6

// Header is the fixed 6-byte prefix of every wire message.
type Header struct {
	Channel uint16
	Type    uint16
	Size    uint16
}

// Message is the in-memory form of a wire message: a header plus zero or
// more body segments in scatter form, plus an optional destructor invoked
// when the message is released (used by the writer to drop a memory-map
// reference once a FILE_BLOCK segment has actually been written).
type Message struct {
	Header   Header
	Segments [][]byte
	OnDrop   func()
}

// BodyLen returns the total length of all segments combined.
func (m *Message) BodyLen() int {
	n := 0
	for _, s := range m.Segments {
		n += len(s)
	}
	return n
}

// Drop invokes the message's destructor, if any. Safe to call multiple
// times; only the first call has an effect.
func (m *Message) Drop() {
	if m.OnDrop != nil {
		f := m.OnDrop
		m.OnDrop = nil
		f()
	}
}

// New builds a Message with a single body segment and sets Size from it.
// Returns an error if body exceeds MaxBodySize (§4.3.1: "messages larger
// than 65535 body bytes are rejected at submission").
func New(channel, typ uint16, body []byte) (*Message, error) {
	return NewScatter(channel, typ, [][]byte{body})
}

// NewScatter builds a Message from multiple body segments, validating
// that their combined length fits in 16 bits before transmission.
func NewScatter(channel, typ uint16, segments [][]byte) (*Message, error) {
	total := 0
	for _, s := range segments {
		total += len(s)
	}
	if total > MaxBodySize {
		return nil, liberr.New(liberr.KindGeneric, liberr.MinPkgWire+1, "message body exceeds 65535 bytes")
	}

	return &Message{
		Header: Header{
			Channel: channel,
			Type:    typ,
			Size:    uint16(total),
		},
		Segments: segments,
	}, nil
}

// EncodeHeader writes the 6-byte network-order header into buf, which
// must be at least HeaderSize bytes.
func EncodeHeader(h Header, buf []byte) {
	binary.BigEndian.PutUint16(buf[0:2], h.Channel)
	binary.BigEndian.PutUint16(buf[2:4], h.Type)
	binary.BigEndian.PutUint16(buf[4:6], h.Size)
}

// DecodeHeader reads a 6-byte network-order header from buf.
func DecodeHeader(buf []byte) Header {
	return Header{
		Channel: binary.BigEndian.Uint16(buf[0:2]),
		Type:    binary.BigEndian.Uint16(buf[2:4]),
		Size:    binary.BigEndian.Uint16(buf[4:6]),
	}
}

// IsSystemControl reports whether a message on the control channel with
// the given type is a reserved system-control message.
func IsSystemControl(channel, typ uint16) bool {
	return channel == ControlChannel && typ >= SystemTypeFloor
}
