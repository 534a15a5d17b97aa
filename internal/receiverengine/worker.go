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

package receiverengine

import (
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// controlLoop adopts exactly one handshake channel per inbound
// Connection and records the negotiated xfer.PeerInfo against that
// Connection for dataLoop to pick up on every subsequent transfer
// channel from the same socket.
func (e *Engine) controlLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ch, ok := <-e.controlGroup.Adopted():
			if !ok {
				return
			}
			go e.handleControlChannel(ch)
		}
	}
}

func (e *Engine) handleControlChannel(ch *transport.Channel) {
	peerInfo, err := xfer.Handshake(ch, xfer.ConnReceiverVersion, xfer.ProtocolVersion, e.ident)
	_ = ch.Close()
	if err != nil {
		e.logWith(nil).Warning("receiver handshake failed", err, nil)
		return
	}

	conn := ch.Connection()
	e.setPeer(conn, peerInfo)

	go func() {
		<-conn.Done()
		e.clearPeer(conn)
	}()
}

// dataLoop adopts one channel per file transfer and drives §4.5 to
// completion on it, looking up the connection's negotiated peer version
// recorded by controlLoop.
func (e *Engine) dataLoop() {
	defer e.wg.Done()
	for {
		select {
		case <-e.ctx.Done():
			return
		case ch, ok := <-e.dataGroup.Adopted():
			if !ok {
				return
			}
			go e.handleDataChannel(ch)
		}
	}
}

func (e *Engine) handleDataChannel(ch *transport.Channel) {
	conn := ch.Connection()
	peerInfo, known := e.peerFor(conn)
	version := xfer.ProtocolVersion
	peerIdent := ""
	if known {
		version = peerInfo.Version
		peerIdent = peerInfo.Ident
	} else {
		e.logWith(nil).Warning("data channel adopted before handshake completed, assuming current protocol version", nil, nil)
	}

	sess := &xfer.ReceiveSession{
		DestinationDir: e.destinationDir,
		DuplicateDirs:  e.duplicateDirs,
		Admitter:       e.admitter,
		InProgress:     e.inProgress,
		Log:            e.logWith(logger.Fields{"peer": peerIdent}),
		PeerVersion:    version,
		UniqueCopies:   e.uniqueDuplicates,
		PostCommand:    buildPostCommand(e.postCommand, peerIdent),
	}

	e.metrics.ChannelOpened()
	result := xfer.RunReceiveLoop(ch, sess)
	_ = ch.Close()
	e.metrics.ChannelClosed()

	switch result {
	case xfer.SessionTransfers:
		e.metrics.FileSucceeded()
	case xfer.SessionFatal:
		e.metrics.FileFailed("fatal")
	}

	e.logWith(logger.Fields{"peer": peerIdent, "result": result}).Debug("receive session ended", nil, nil)
}
