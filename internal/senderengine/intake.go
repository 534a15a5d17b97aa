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
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/movsoftware/filerelay/internal/linkcopy"
	"github.com/movsoftware/filerelay/internal/xfer"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// intakeLoop polls incoming-dir at the configured interval and also
// wakes early on fsnotify events — the watcher is a fast path only,
// never a substitute for the poll, since some filesystems/mounts don't
// deliver notify events reliably (§4.8 intake description).
func (e *Engine) intakeLoop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	var fsEvents <-chan fsnotify.Event
	var fsErrors <-chan error
	if e.watcher != nil {
		fsEvents = e.watcher.Events
		fsErrors = e.watcher.Errors
	}

	e.scanIncoming()
	for {
		select {
		case <-e.ctx.Done():
			return
		case <-ticker.C:
			e.scanIncoming()
		case _, ok := <-fsEvents:
			if !ok {
				fsEvents = nil
				continue
			}
			e.scanIncoming()
		case err, ok := <-fsErrors:
			if !ok {
				fsErrors = nil
				continue
			}
			if e.log != nil {
				e.log.Warning("incoming-dir watch error", err, nil)
			}
		}
	}
}

// scanIncoming processes every regular file currently sitting in
// incoming-dir. Concurrent scans (ticker firing while a notify-triggered
// scan is still running) are serialized so the same file is never routed
// twice.
func (e *Engine) scanIncoming() {
	e.scanMu.Lock()
	defer e.scanMu.Unlock()

	entries, err := os.ReadDir(e.incomingDir)
	if err != nil {
		if e.log != nil {
			e.log.Warning("read incoming-dir failed", err, nil)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		e.routeIncoming(entry.Name())
	}
}

type pendingSend struct {
	peer *peer
	item xfer.SendItem
}

// routeIncoming mirrors one intake file into every matching local
// destination, then hard-links (or copies on EXDEV) it into every
// matching peer's processing directory, only unlinking the source once
// every peer has its own copy staged — this avoids the race where the
// first peer worker could pop and unlink the source before a second
// peer's copy is made (§4.8).
func (e *Engine) routeIncoming(name string) {
	src := filepath.Join(e.incomingDir, name)
	matched := false
	mirrored := false

	for _, ld := range e.localDests {
		if ld.Ident != "" && !e.identMatches(ld.Ident, name) {
			continue
		}
		matched = true
		dst := filepath.Join(ld.Path, name)
		if err := linkcopy.LinkOrCopy(src, dst, e.uniqueLocalCopies); err != nil {
			e.logWith(logger.Fields{"file": name, "destination": dst}).Warning("local mirror failed", err, nil)
			continue
		}
		mirrored = true
	}

	var pendings []pendingSend
	for _, p := range e.peers {
		if !p.matches(name) {
			continue
		}
		matched = true

		peerDir := filepath.Join(e.processingDir, p.ident)
		if err := os.MkdirAll(peerDir, 0o755); err != nil {
			e.logWith(logger.Fields{"file": name, "peer": p.ident}).Warning("create processing-dir failed", err, nil)
			continue
		}
		dst := filepath.Join(peerDir, name)
		if err := linkcopy.LinkOrCopy(src, dst, false); err != nil {
			e.logWith(logger.Fields{"file": name, "peer": p.ident}).Warning("stage into processing-dir failed", err, nil)
			continue
		}
		pendings = append(pendings, pendingSend{peer: p, item: xfer.SendItem{Path: dst, Name: name}})
	}

	if len(pendings) == 0 && !mirrored {
		if !matched {
			e.logWith(logger.Fields{"file": name}).Info("no destination matched, leaving file in place", nil, nil)
		}
		return
	}

	priority := e.priorityFor(name)
	for _, pd := range pendings {
		if err := pd.peer.enqueue(pd.item, priority); err != nil {
			e.logWith(logger.Fields{"file": name, "peer": pd.peer.ident}).Warning("enqueue failed", err, nil)
		}
	}

	if err := os.Remove(src); err != nil {
		e.logWith(logger.Fields{"file": name}).Warning("unlink source after staging failed", err, nil)
	}
}
