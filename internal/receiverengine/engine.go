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

// Package receiverengine implements the §4.9 receiver file engine: a
// per-connection worker that completes the connection handshake once,
// then runs the §4.5 receive state machine on every subsequent file
// channel a sender opens, all coordinated through a single process-wide
// in-progress inode set and disk-space admitter.
package receiverengine

import (
	"context"
	"os"
	"sync"

	"github.com/movsoftware/filerelay/internal/diskspace"
	"github.com/movsoftware/filerelay/internal/metrics"
	"github.com/movsoftware/filerelay/internal/multiqueue"
	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/config"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// controlGroupName and dataGroupName must mirror the names
// internal/senderengine's peerLoop opens under: the control group
// carries exactly one handshake channel per Connection, the data group
// carries one channel per file transfer. Splitting the two into
// separate Groups lets this engine dispatch each without inspecting
// message types.
func controlGroupName(ident string) string { return ident + "/control" }
func dataGroupName(ident string) string    { return ident + "/data" }

// Engine owns the receiver-side connection handshake and file-transfer
// workers for one configured ident.
type Engine struct {
	ident string

	destinationDir   string
	duplicateDirs    []string
	uniqueDuplicates bool
	postCommand      string

	admitter   *diskspace.Admitter
	inProgress *inodeSet

	root         *transport.Root
	controlGroup *transport.Group
	dataGroup    *transport.Group
	log          logger.Logger
	metrics      metrics.Recorder

	peersMu sync.Mutex
	peers   map[*transport.Connection]xfer.PeerInfo

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds an Engine from cfg. root is the transport Root the engine's
// Listener delivers accepted Connections through; it is owned by the
// caller, not the Engine. rec may be nil, in which case every recorded
// event is discarded.
func New(cfg *config.ReceiverConfig, root *transport.Root, log logger.Logger, rec metrics.Recorder) *Engine {
	if rec == nil {
		rec = metrics.Noop()
	}
	limits := diskspace.Limits{
		MinFreeBytes:    cfg.FreespaceMinimum,
		MaxUsedFraction: cfg.SpaceMaximumPercent / 100,
	}
	return &Engine{
		ident:            cfg.Ident,
		destinationDir:   cfg.DestinationDir,
		duplicateDirs:    cfg.DuplicateDestinations,
		uniqueDuplicates: cfg.UniqueDuplicates,
		postCommand:      cfg.PostCommand,
		admitter:         diskspace.NewAdmitter(limits, log),
		inProgress:       newInodeSet(),
		root:             root,
		log:              log,
		metrics:          rec,
		peers:            make(map[*transport.Connection]xfer.PeerInfo),
	}
}

func (e *Engine) logWith(f logger.Fields) logger.Logger {
	if e.log == nil {
		return nilLogger{}
	}
	return e.log.WithFields(f)
}

// Start creates the destination/duplicate directory layout and spawns
// the control and data dispatch loops. It returns once the directory
// layout is ready; the spawned goroutines run until ctx is cancelled or
// Stop is called.
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if err := os.MkdirAll(e.destinationDir, 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgReceiver+1, "mkdir destination-dir failed", err)
	}
	for _, dir := range e.duplicateDirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return liberr.Wrap(liberr.KindSystem, liberr.MinPkgReceiver+2, "mkdir duplicate-destination failed", err)
		}
	}

	e.controlGroup = e.root.Group(controlGroupName(e.ident), multiqueue.Fair)
	e.dataGroup = e.root.Group(dataGroupName(e.ident), multiqueue.Fair)

	e.wg.Add(2)
	go e.controlLoop()
	go e.dataLoop()
	return nil
}

// Stop cancels the engine's dispatch loops and waits for them to exit.
// In-flight §4.5 receive sessions are not waited on here: they end only
// once their Connection closes, which is the supervisor's job in the
// next shutdown phase (§4.10).
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
}

func (e *Engine) setPeer(conn *transport.Connection, info xfer.PeerInfo) {
	e.peersMu.Lock()
	e.peers[conn] = info
	e.peersMu.Unlock()
}

func (e *Engine) peerFor(conn *transport.Connection) (xfer.PeerInfo, bool) {
	e.peersMu.Lock()
	defer e.peersMu.Unlock()
	info, ok := e.peers[conn]
	return info, ok
}

func (e *Engine) clearPeer(conn *transport.Connection) {
	e.peersMu.Lock()
	delete(e.peers, conn)
	e.peersMu.Unlock()
}

// nilLogger discards every call; used when Engine is constructed without
// a logger so logWith never needs a nil check at each call site.
type nilLogger struct{}

func (nilLogger) SetLevel(logger.Level)                  {}
func (nilLogger) GetLevel() logger.Level                 { return logger.InfoLevel }
func (nilLogger) WithFields(logger.Fields) logger.Logger { return nilLogger{} }
func (nilLogger) Debug(string, error, logger.Fields)     {}
func (nilLogger) Info(string, error, logger.Fields)      {}
func (nilLogger) Warning(string, error, logger.Fields)   {}
func (nilLogger) Error(string, error, logger.Fields)     {}
func (nilLogger) Fatal(string, error, logger.Fields)     {}
