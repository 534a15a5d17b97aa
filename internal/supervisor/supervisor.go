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

// Package supervisor implements §4.10: process-level startup and
// shutdown orchestration shared by the sender and receiver daemons. It
// starts the status/metrics HTTP listener, the transport root's inbound
// listener (receiver only), and the file engine, then waits for either a
// fatal error or SIGINT/SIGTERM before running the two-phase shutdown
// cascade described in §4.3.6 at the process level.
package supervisor

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Engine is the subset of internal/senderengine.Engine and
// internal/receiverengine.Engine's surface the supervisor drives: start
// once, stop once, same shape both daemons share.
type Engine interface {
	Start(ctx context.Context) error
	Stop()
}

// StatusServer is the subset of the *http.Server returned by
// internal/statusd.New that the supervisor drives — matches the stdlib
// *http.Server shape exactly so that type can be used directly.
type StatusServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// Config names every component one invocation of Run starts and, in
// reverse, shuts down. StatusServer and Listener/ListenSpecs are
// optional — a sender has no inbound listener, and either daemon may run
// with the status endpoint disabled.
type Config struct {
	Root         *transport.Root
	Listener     *transport.Listener
	ListenSpecs  []transport.ListenSpec
	StatusServer StatusServer
	Engine       Engine

	// ShutdownTimeout bounds the status server's graceful Shutdown call;
	// zero means no timeout.
	ShutdownTimeout time.Duration

	Log logger.Logger
}

// Supervisor owns one invocation's errgroup and cancellation func across
// the call to Run, so a caller (or a test) can trigger the same shutdown
// cascade a SIGINT/SIGTERM would by calling Shutdown directly instead of
// signaling the process.
type Supervisor struct {
	cfg    Config
	cancel context.CancelFunc
	done   chan struct{}
}

// New prepares a Supervisor for the given Config. Call Run to start it.
func New(cfg Config) *Supervisor {
	return &Supervisor{cfg: cfg}
}

// Run starts every configured component in the order listed in §4.10,
// then blocks until a fatal error occurs in any of them, the process
// receives SIGINT/SIGTERM, or Shutdown is called directly, at which
// point it runs the shutdown cascade (engine, then the inbound listener
// and root, then the status server) and returns the first fatal error
// observed, if any. SIGPIPE is deliberately never registered: the Go
// runtime already turns a broken pipe into an ordinary write error, so
// there is nothing to handle here.
func (s *Supervisor) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	defer close(s.done)
	defer cancel()
	defer s.shutdown()

	g, gctx := errgroup.WithContext(runCtx)

	if s.cfg.StatusServer != nil {
		// ListenAndServe only returns once shutdown() calls Shutdown, which
		// runs after g.Wait, so it is served outside the errgroup and only
		// a startup failure is forwarded into it.
		statusErr := make(chan error, 1)
		go func() {
			if err := s.cfg.StatusServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				statusErr <- err
			}
		}()
		g.Go(func() error {
			select {
			case err := <-statusErr:
				return err
			case <-gctx.Done():
				return nil
			}
		})
	}

	if s.cfg.Listener != nil {
		if err := s.cfg.Listener.Start(runCtx, s.cfg.ListenSpecs); err != nil {
			return err
		}
	}

	if err := s.cfg.Engine.Start(runCtx); err != nil {
		return err
	}

	g.Go(func() error {
		return waitForSignal(gctx)
	})

	waitErr := g.Wait()

	if waitErr != nil && errors.Is(waitErr, errShutdownSignal) {
		return nil
	}
	return waitErr
}

// Shutdown triggers the same cancellation a SIGINT/SIGTERM would and
// waits for Run to return the shutdown cascade complete, or for the
// supplied context to expire first. Must be called only after Run has
// been started (typically from another goroutine) — primarily useful
// from tests and from cmd/ wiring that wants to trigger shutdown
// deterministically instead of raising a real signal.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.done == nil {
		return nil
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// errShutdownSignal distinguishes a clean SIGINT/SIGTERM shutdown from a
// genuine fatal error surfaced by errgroup.Wait.
var errShutdownSignal = errors.New("shutdown signal received")

func waitForSignal(ctx context.Context) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		return errShutdownSignal
	case <-ctx.Done():
		return nil
	}
}

// shutdown runs the §4.3.6 two-phase protocol at the process level:
// engine first (stop admitting new work), then the inbound listener and
// root (tear down every live connection), then the status server's
// graceful HTTP shutdown last, so metrics stay reachable for as long as
// possible while everything else winds down.
func (s *Supervisor) shutdown() {
	cfg := s.cfg
	cfg.Engine.Stop()

	if cfg.Listener != nil {
		_ = cfg.Listener.Close()
	}
	if cfg.Root != nil {
		cfg.Root.Close()
	}

	if cfg.StatusServer != nil {
		sctx := context.Background()
		var scancel context.CancelFunc
		if cfg.ShutdownTimeout > 0 {
			sctx, scancel = context.WithTimeout(sctx, cfg.ShutdownTimeout)
			defer scancel()
		}
		if err := cfg.StatusServer.Shutdown(sctx); err != nil && cfg.Log != nil {
			cfg.Log.Warning("status server shutdown failed", err, nil)
		}
	}
}
