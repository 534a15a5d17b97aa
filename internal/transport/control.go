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

package transport

import (
	"encoding/binary"

	"github.com/movsoftware/filerelay/internal/wire"
)

// handleControl dispatches a message received on wire.ControlChannel.
// CHANNEL_KEEPALIVE carries no payload beyond keeping idleFor() fresh,
// which readLoop's caller already did before reaching here.
func (c *Connection) handleControl(m *wire.Message) {
	switch ControlType(m.Header.Type) {
	case CtrlChannelAnnounce:
		c.handleAnnounce(m)
	case CtrlChannelReply:
		c.handleReply(m)
	case CtrlChannelKill:
		c.handleKill(m)
	case CtrlChannelKeepalive:
		// touch() already happened in readLoop; nothing else to do.
	case CtrlWriterUnblocker:
		// Sentinel consumed purely to unblock a writer draining the
		// outbound queue during shutdown; no payload semantics.
	}
}

func decodeLocalID(body []byte) uint16 {
	if len(body) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(body[:2])
}

// handleAnnounce is invoked when the peer opens a new channel toward us.
// The wire id the peer chose is shared by both ends for that channel's
// lifetime, so we register a local Channel under the same id rather than
// allocating a fresh one (§4.3.2: "channels are identified locally by a
// 16-bit id").
func (c *Connection) handleAnnounce(m *wire.Message) {
	body := m.Segments
	var flat []byte
	for _, s := range body {
		flat = append(flat, s...)
	}
	if len(flat) < 2 {
		return
	}
	localID := binary.BigEndian.Uint16(flat[:2])
	name := string(flat[2:])

	if c.root == nil || c.root.onIncomingChannel == nil {
		return
	}
	ch := c.root.onIncomingChannel(c, localID, name)
	if ch == nil {
		return
	}
	c.registerChannel(ch)

	reply, err := wire.New(wire.ControlChannel, uint16(CtrlChannelReply), encodeAnnounce(localID, nil))
	if err == nil {
		c.sendControl(reply)
	}
}

// handleReply completes the Connecting -> Connected transition for a
// channel this side announced.
func (c *Connection) handleReply(m *wire.Message) {
	var flat []byte
	for _, s := range m.Segments {
		flat = append(flat, s...)
	}
	localID := decodeLocalID(flat)
	if ch, ok := c.lookupChannel(localID); ok {
		ch.markConnected()
	}
}

// handleKill tears down one channel without closing the whole
// connection (§4.3.6).
func (c *Connection) handleKill(m *wire.Message) {
	var flat []byte
	for _, s := range m.Segments {
		flat = append(flat, s...)
	}
	localID := decodeLocalID(flat)
	if ch, ok := c.lookupChannel(localID); ok {
		c.unregisterChannel(localID)
		ch.markClosed(nil)
	}
}
