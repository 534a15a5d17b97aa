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

// Package senderengine implements the §4.8 sender file engine: a
// directory-intake loop that routes incoming files to local mirrors and
// per-peer processing queues, and one worker per peer that dials out,
// runs the §4.4 send state machine for each queued item, and applies the
// configured retry policy.
package senderengine

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/movsoftware/filerelay/internal/metrics"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/config"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// Engine owns the sender-side intake loop and every peer worker.
type Engine struct {
	ident         string
	incomingDir   string
	processingDir string
	errorDir      string

	localDests        []config.LocalDestination
	uniqueLocalCopies bool
	filters           []compiledFilter
	priorities        []compiledPriority

	pollInterval time.Duration
	sendAttempts int
	blockSize    uint32

	root      *transport.Root
	tlsConfig *tls.Config
	log       logger.Logger
	metrics   metrics.Recorder

	peers   map[string]*peer
	watcher *fsnotify.Watcher
	scanMu  sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine from cfg; tlsConfig may be nil for plain TCP.
// root is the transport Root the engine dials peer connections through;
// it is owned by the caller, not the Engine. rec may be nil, in which
// case every recorded event is discarded.
func New(cfg *config.SenderConfig, root *transport.Root, tlsConfig *tls.Config, log logger.Logger, rec metrics.Recorder) (*Engine, error) {
	if rec == nil {
		rec = metrics.Noop()
	}
	filters, err := compileFilters(cfg.Filters)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgSender+1, "compile filter regex failed", err)
	}
	priorities, err := compilePriorities(cfg.Priorities)
	if err != nil {
		return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgSender+2, "compile priority regex failed", err)
	}

	e := &Engine{
		ident:             cfg.Ident,
		incomingDir:       cfg.IncomingDir,
		processingDir:     cfg.ProcessingDir,
		errorDir:          cfg.ErrorDir,
		localDests:        cfg.LocalDirectories,
		uniqueLocalCopies: cfg.UniqueLocalCopies,
		filters:           filters,
		priorities:        priorities,
		pollInterval:      time.Duration(cfg.PollingIntervalSeconds) * time.Second,
		sendAttempts:      cfg.SendAttempts,
		blockSize:         uint32(cfg.BlockSize),
		root:              root,
		tlsConfig:         tlsConfig,
		log:               log,
		metrics:           rec,
		peers:             make(map[string]*peer, len(cfg.Peers)),
	}

	for _, spec := range cfg.Peers {
		p, err := newPeer(spec)
		if err != nil {
			return nil, liberr.Wrap(liberr.KindGeneric, liberr.MinPkgSender+3, "compile peer filter regex failed", err)
		}
		e.peers[p.ident] = p
	}
	return e, nil
}

func (e *Engine) logWith(f logger.Fields) logger.Logger {
	if e.log == nil {
		return nilLogger{}
	}
	return e.log.WithFields(f)
}

// rec returns e.metrics, defaulting to a no-op Recorder for engines
// built directly as a struct literal (white-box tests) instead of
// through New.
func (e *Engine) rec() metrics.Recorder {
	if e.metrics == nil {
		return metrics.Noop()
	}
	return e.metrics
}

// Start creates the sender directory layout, enumerates leftover
// processing-dir files, and spawns the intake loop and one worker
// goroutine per peer. It returns once startup enumeration has completed;
// the spawned goroutines run until ctx is cancelled or Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(e.incomingDir, 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgSender+4, "mkdir incoming-dir failed", err)
	}
	if err := os.MkdirAll(e.processingDir, 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgSender+5, "mkdir processing-dir failed", err)
	}
	if err := os.MkdirAll(e.errorDir, 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgSender+6, "mkdir error-dir failed", err)
	}

	if err := e.enumerateLeftovers(); err != nil {
		return err
	}

	if w, err := fsnotify.NewWatcher(); err == nil {
		if err := w.Add(e.incomingDir); err != nil {
			_ = w.Close()
			if e.log != nil {
				e.log.Warning("watch incoming-dir failed, polling only", err, nil)
			}
		} else {
			e.watcher = w
		}
	} else if e.log != nil {
		e.log.Warning("create fsnotify watcher failed, polling only", err, nil)
	}

	e.wg.Add(1)
	go e.intakeLoop()

	for _, p := range e.peers {
		e.wg.Add(2)
		go e.popperLoop(p)
		go e.peerLoop(p)
	}
	return nil
}

// Stop cancels every engine goroutine and waits for them to exit. Each
// peer's queue is shut down first, since that's what unblocks a
// popperLoop currently parked in queue.Get() with nothing queued.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
	for _, p := range e.peers {
		p.queue.Shutdown()
	}
	e.wg.Wait()
}

// enumerateLeftovers implements §4.8's startup step: ensure each peer's
// processing subdirectory exists and requeue whatever files are already
// sitting there from a prior run.
func (e *Engine) enumerateLeftovers() error {
	for _, p := range e.peers {
		dir := fmt.Sprintf("%s/%s", e.processingDir, p.ident)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return liberr.Wrap(liberr.KindSystem, liberr.MinPkgSender+7, "mkdir peer processing-dir failed", err)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			return liberr.Wrap(liberr.KindSystem, liberr.MinPkgSender+8, "read peer processing-dir failed", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			name := entry.Name()
			item := xfer.SendItem{Path: dir + "/" + name, Name: name}
			if err := p.enqueue(item, e.priorityFor(name)); err != nil {
				e.logWith(logger.Fields{"peer": p.ident, "file": name}).Warning("requeue leftover failed", err, nil)
			}
		}
	}
	return nil
}

// nilLogger discards every call; used when Engine is constructed without
// a logger so logWith never needs a nil check at each call site.
type nilLogger struct{}

func (nilLogger) SetLevel(logger.Level)                                    {}
func (nilLogger) GetLevel() logger.Level                                   { return logger.InfoLevel }
func (nilLogger) WithFields(logger.Fields) logger.Logger                   { return nilLogger{} }
func (nilLogger) Debug(string, error, logger.Fields)                       {}
func (nilLogger) Info(string, error, logger.Fields)                        {}
func (nilLogger) Warning(string, error, logger.Fields)                     {}
func (nilLogger) Error(string, error, logger.Fields)                       {}
func (nilLogger) Fatal(string, error, logger.Fields)                       {}
