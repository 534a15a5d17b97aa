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

package senderengine

import (
	"math/rand"
	"os"
	"time"

	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/xfer"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

const (
	dialBackoffMin = time.Second
	dialBackoffMax = 30 * time.Second
)

var errNoAddresses = liberr.New(liberr.KindGeneric, liberr.MinPkgSender+9, "peer has no configured addresses")

// controlGroupName and dataGroupName split one peer's traffic into two
// independently-named Groups on the wire: the control group carries
// exactly one handshake channel per Connection, the data group carries
// one channel per file transfer. Keeping them separate lets the receiver
// tell the two apart by Group alone instead of peeking at message types
// (see internal/receiverengine).
func controlGroupName(ident string) string { return ident + "/control" }
func dataGroupName(ident string) string    { return ident + "/data" }

// peerLoop is the long-lived per-peer worker of §4.8/§5 ("one long-lived
// worker thread per role ... per-peer sender worker"): it dials the
// peer's address set, runs one connection at a time, and redials with
// backoff whenever the connection drops, until the engine is stopped.
func (e *Engine) peerLoop(p *peer) {
	defer e.wg.Done()

	backoff := dialBackoffMin
	for {
		select {
		case <-e.ctx.Done():
			return
		default:
		}

		conn, peerInfo, err := e.connectPeer(p)
		if err != nil {
			e.logWith(logger.Fields{"peer": p.ident}).Warning("connect failed, retrying", err, nil)
			if !e.sleep(backoff) {
				return
			}
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = dialBackoffMin
		p.version.Store(peerInfo.Version)

		e.serveConnection(p, conn, peerInfo.Version)
		conn.Close(nil)
	}
}

func nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > dialBackoffMax {
		next = dialBackoffMax
	}
	// jitter avoids every peer worker retrying in lockstep after a
	// shared-network blip.
	jitter := time.Duration(rand.Int63n(int64(next) / 4))
	return next + jitter
}

func (e *Engine) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-e.ctx.Done():
		return false
	}
}

// connectPeer dials the first reachable address in p.addresses and runs
// the connection-level protocol handshake (§6.1) once, over a dedicated
// Channel scoped to this peer's Group.
func (e *Engine) connectPeer(p *peer) (*transport.Connection, xfer.PeerInfo, error) {
	var lastErr error
	for _, addr := range p.addresses {
		conn, err := transport.Dial(e.ctx, addr, e.tlsConfig, e.root, 0, e.log)
		if err != nil {
			lastErr = err
			continue
		}

		group := e.root.Group(controlGroupName(p.ident), multiqueue.Fair)
		ch, err := group.Open(conn)
		if err != nil {
			conn.Close(nil)
			lastErr = err
			continue
		}
		peerInfo, err := xfer.Handshake(ch, xfer.ConnSenderVersion, xfer.ProtocolVersion, e.ident)
		_ = ch.Close()
		if err != nil {
			conn.Close(nil)
			lastErr = err
			continue
		}
		return conn, peerInfo, nil
	}
	if lastErr == nil {
		lastErr = errNoAddresses
	}
	return nil, xfer.PeerInfo{}, lastErr
}

// popperLoop is the single long-lived goroutine that drains a peer's
// multiqueue, one item at a time, and hands each to whichever
// serveConnection call is currently active for that peer. Keeping the
// pop loop independent of any one connection means a reconnect never
// needs to spawn (and potentially leak) a fresh blocking popper.
func (e *Engine) popperLoop(p *peer) {
	defer e.wg.Done()
	for {
		item, res := p.queue.Get()
		if res == multiqueue.GetShutdown {
			close(p.popped)
			return
		}
		if res != multiqueue.GetOK {
			continue
		}
		select {
		case p.popped <- poppedItem{item: item}:
		case <-e.ctx.Done():
			_ = p.requeueLow(item)
			return
		}
	}
}

// serveConnection sends items over conn until the connection dies, the
// engine stops, or the peer is marked disconnecting.
func (e *Engine) serveConnection(p *peer, conn *transport.Connection, peerVersion uint32) {
	group := e.root.Group(dataGroupName(p.ident), multiqueue.Fair)

	for {
		var pi poppedItem
		select {
		case v, ok := <-p.popped:
			if !ok {
				return
			}
			pi = v
		case <-conn.Done():
			return
		case <-e.ctx.Done():
			return
		}

		if p.disconnect.Load() {
			_ = p.requeueLow(pi.item)
			return
		}

		ch, err := group.Open(conn)
		if err != nil {
			_ = p.requeueLow(pi.item)
			return
		}

		var size uint64
		if fi, statErr := os.Stat(pi.item.Path); statErr == nil {
			size = uint64(fi.Size())
		}
		e.rec().ChannelOpened()
		e.rec().BytesAdmitted(size)

		outcome, err := xfer.SendFile(ch, pi.item, e.blockSize, peerVersion)
		_ = ch.Close()

		e.rec().BytesReleased(size)
		e.rec().ChannelClosed()

		e.handleOutcome(p, pi.item, outcome, err)
	}
}

// handleOutcome applies §4.4/§4.8's retry policy to one item's terminal
// Outcome.
func (e *Engine) handleOutcome(p *peer, item xfer.SendItem, outcome xfer.Outcome, err error) {
	fields := logger.Fields{"peer": p.ident, "file": item.Name, "outcome": outcome.String()}
	switch outcome {
	case xfer.Succeeded:
		e.logWith(fields).Info("file sent", nil, nil)
		e.rec().FileSucceeded()
	case xfer.Impossible:
		e.logWith(fields).Warning("rejected by peer, moving to error-dir", err, nil)
		e.rec().FileFailed("impossible")
		if mvErr := xfer.MoveToErrorDir(item, e.errorDir+"/"+p.ident); mvErr != nil {
			e.logWith(fields).Error("move to error-dir failed", mvErr, nil)
		}
	case xfer.LocalFailed, xfer.Failed:
		item.Attempts++
		if e.sendAttempts > 0 && item.Attempts >= e.sendAttempts {
			e.logWith(fields).Warning("max attempts reached, dropping", err, nil)
			e.rec().FileFailed("max-attempts")
			return
		}
		if reqErr := p.requeueLow(item); reqErr != nil {
			e.logWith(fields).Error("requeue after failure failed", reqErr, nil)
		}
	case xfer.MaxAttempts:
		e.logWith(fields).Warning("max attempts reached, dropping", err, nil)
		e.rec().FileFailed("max-attempts")
	case xfer.Fatal:
		e.logWith(fields).Error("fatal error, worker stopping", err, nil)
		e.rec().FileFailed("fatal")
	}
}
