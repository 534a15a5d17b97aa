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
	"net"
	"time"

	"github.com/movsoftware/filerelay/internal/wire"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// writeLoop is the single writer worker for this Connection (§4.3.4). It
// pops messages from the outbound deque (blocking up to pollInterval so
// it can also notice shutdown and send keepalives on its own schedule),
// and emits each one through a resumable wire.Encoder so a short write
// never re-pops the message or re-serializes the header.
func (c *Connection) writeLoop() {
	var keepaliveDue time.Time
	resetKeepalive := func() {
		keepaliveDue = time.Now().Add(c.stagnantAfter() / 2)
	}
	resetKeepalive()

	for {
		msg, ok, closed := c.out.Pop(pollInterval)
		if closed {
			return
		}
		if !ok {
			if time.Now().After(keepaliveDue) {
				c.sendKeepalive()
				resetKeepalive()
			}
			select {
			case <-c.closedCh:
				return
			default:
			}
			continue
		}

		if err := c.writeMessage(msg); err != nil {
			msg.Drop()
			select {
			case <-c.closedCh:
			default:
				c.Close(liberr.Wrap(liberr.KindShortIO, liberr.MinPkgTransport+30, "write failed", err))
			}
			return
		}
		msg.Drop()
		resetKeepalive()
	}
}

// writeMessage drives a wire.Encoder to completion against the socket,
// tolerating and resuming from partial writes (§4.3.1/§4.3.4).
func (c *Connection) writeMessage(msg *wire.Message) error {
	enc := wire.NewEncoderFor(msg)
	for !enc.Done() {
		chunk := enc.Next()
		if chunk == nil {
			break
		}
		_ = c.conn.SetWriteDeadline(time.Now().Add(pollInterval))
		n, err := c.conn.Write(chunk)
		if n > 0 {
			enc.Advance(n)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			return err
		}
	}
	return nil
}

func (c *Connection) sendKeepalive() {
	msg, err := wire.New(wire.ControlChannel, uint16(CtrlChannelKeepalive), nil)
	if err != nil {
		return
	}
	_ = c.writeMessage(msg)
}
