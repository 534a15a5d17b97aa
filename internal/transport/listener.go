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
	"context"
	"crypto/tls"
	"net"
	"sync"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Listener accepts inbound connections on one or more addresses (§4.3.8:
// "multiple listen addresses, TCP or TLS") and wraps each accepted socket
// into a Connection registered against a Root.
type Listener struct {
	root *Root
	log  logger.Logger

	keepaliveSeconds int32

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup

	closedCh  chan struct{}
	closeOnce sync.Once
}

// ListenSpec names one address to listen on, optionally over TLS.
type ListenSpec struct {
	Address   string
	TLSConfig *tls.Config // nil for plain TCP
}

// NewListener constructs a Listener bound to root; no sockets are opened
// until Start is called.
func NewListener(root *Root, keepaliveSeconds int32, log logger.Logger) *Listener {
	return &Listener{
		root:             root,
		log:              log,
		keepaliveSeconds: keepaliveSeconds,
		closedCh:         make(chan struct{}),
	}
}

// Start opens every listed address and begins accepting in background
// goroutines. An address that fails to bind is logged and skipped; Start
// returns an error (the first bind failure) only when no address at all
// could be bound.
func (l *Listener) Start(ctx context.Context, specs []ListenSpec) error {
	var cfg net.ListenConfig
	var firstErr error
	bound := 0

	for _, spec := range specs {
		ln, err := cfg.Listen(ctx, "tcp", spec.Address)
		if err != nil {
			if firstErr == nil {
				firstErr = liberr.Wrap(liberr.KindSystem, liberr.MinPkgTransport+40, "listen failed on "+spec.Address, err)
			}
			if l.log != nil {
				l.log.Warning("listen failed on "+spec.Address, err, nil)
			}
			continue
		}
		if spec.TLSConfig != nil {
			ln = tls.NewListener(ln, spec.TLSConfig)
		}

		l.mu.Lock()
		l.listeners = append(l.listeners, ln)
		l.mu.Unlock()

		bound++
		l.wg.Add(1)
		go l.acceptLoop(ln, spec.TLSConfig != nil)
	}
	if bound == 0 && firstErr != nil {
		return firstErr
	}
	return nil
}

func (l *Listener) acceptLoop(ln net.Listener, isTLS bool) {
	defer l.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-l.closedCh:
				return
			default:
			}
			if l.log != nil {
				l.log.Warning("accept failed", err, nil)
			}
			continue
		}

		kind := KindTCP
		if isTLS {
			kind = KindTLS
		}
		c := newConnection(conn, kind, l.root, l.keepaliveSeconds, l.log)
		c.start()
		l.root.notifyAccepted(c)
	}
}

func (l *Listener) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ln := range l.listeners {
		_ = ln.Close()
	}
	l.listeners = nil
}

// Close stops accepting new connections on every listened address. It
// does not close Connections already accepted; callers drive that via
// Root.Close or by closing each Connection individually.
func (l *Listener) Close() error {
	l.closeOnce.Do(func() {
		close(l.closedCh)
		l.closeAll()
	})
	l.wg.Wait()
	return nil
}

// Dial opens a new outbound Connection to addr, optionally over TLS, and
// registers it with root.
func Dial(ctx context.Context, addr string, tlsConfig *tls.Config, root *Root, keepaliveSeconds int32, log logger.Logger) (*Connection, error) {
	var d net.Dialer
	var conn net.Conn
	var err error
	kind := KindTCP

	if tlsConfig != nil {
		conn, err = (&tls.Dialer{NetDialer: &d, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
		kind = KindTLS
	} else {
		conn, err = d.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return nil, liberr.Wrap(liberr.KindSystem, liberr.MinPkgTransport+41, "dial failed", err)
	}

	c := newConnection(conn, kind, root, keepaliveSeconds, log)
	c.start()
	return c, nil
}
