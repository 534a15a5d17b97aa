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
	"errors"
	"io"
	"net"
	"time"

	"github.com/movsoftware/filerelay/internal/wire"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// readLoop is the single reader worker for this Connection (§4.3.3). It
// polls the socket with a 1-second read deadline so it can periodically
// re-check for stagnation even when nothing has arrived, decodes
// complete messages off the byte stream via wire.Decoder, and dispatches
// each one either to control-message handling or to its Channel's Group
// multiqueue.
func (c *Connection) readLoop() {
	dec := wire.NewDecoder()
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-c.closedCh:
			return
		default:
		}

		if c.idleFor() > c.stagnantAfter() {
			c.Close(liberr.New(liberr.KindClosed, liberr.MinPkgTransport+20, "connection stagnant"))
			return
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(pollInterval))
		n, err := c.conn.Read(buf)
		if n > 0 {
			c.touch()
			msgs := dec.Feed(buf[:n])
			for _, m := range msgs {
				c.dispatch(m)
			}
		}

		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if errors.Is(err, io.EOF) {
				c.Close(liberr.New(liberr.KindClosed, liberr.MinPkgTransport+21, "peer closed connection"))
				return
			}
			select {
			case <-c.closedCh:
			default:
				c.Close(liberr.Wrap(liberr.KindShortIO, liberr.MinPkgTransport+22, "read failed", err))
			}
			return
		}
	}
}

// dispatch routes one fully-decoded message either to control handling
// (CHANNEL_ANNOUNCE/REPLY/KILL/KEEPALIVE on wire.ControlChannel) or to
// the owning Channel's Group multiqueue for application consumption.
func (c *Connection) dispatch(m *wire.Message) {
	if m.Header.Channel == wire.ControlChannel {
		c.handleControl(m)
		return
	}

	ch, ok := c.lookupChannel(m.Header.Channel)
	if !ok {
		// No channel registered for this id: the peer is talking about a
		// channel we already tore down locally. Drop silently.
		return
	}
	if ch.State() != ChannelConnected {
		return
	}
	_ = ch.group.queue.PushBack(ch.subqueueID, m)
}
