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

package xfer

import (
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/movsoftware/filerelay/internal/diskspace"
	"github.com/movsoftware/filerelay/internal/linkcopy"
	"github.com/movsoftware/filerelay/internal/transport"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
	"github.com/movsoftware/filerelay/pkg/logger"
)

// InProgress tracks the inodes of placeholder files currently being
// received, guarded by one global mutex shared by every connection
// worker (§4.9: "two connections cannot both create the same
// placeholder successfully").
type InProgress interface {
	// TryRegister adds ino to the set, returning false if already present.
	TryRegister(ino uint64) bool
	// Contains reports whether ino is currently registered.
	Contains(ino uint64) bool
	// Release removes ino from the set.
	Release(ino uint64)
	// Lock serializes the whole stat/remove/recreate/TryRegister sequence
	// in createPlaceholder across every connection worker, so two
	// connections racing on the same path can't both observe the stale
	// placeholder as free and clobber each other's transfer. Unlike
	// TryRegister/Contains/Release, which only need to be atomic with
	// respect to each other, this spans several filesystem calls and
	// must be held for all of them.
	Lock()
	// Unlock releases the lock acquired by Lock.
	Unlock()
}

// ReceiveSession holds the fixed, per-connection configuration the
// receive-side state machine needs across however many files it loops
// through (§4.5: "clear all per-session state; return to FileInfo").
type ReceiveSession struct {
	DestinationDir string
	DuplicateDirs  []string
	Admitter       *diskspace.Admitter
	InProgress     InProgress
	Log            logger.Logger
	PeerVersion    uint32
	UniqueCopies   bool
	PostCommand    func(path string) error
}

// RunReceiveLoop drives §4.5 repeatedly over ch until the channel dies,
// a file is rejected, or a fatal error occurs, returning the session's
// overall result.
func RunReceiveLoop(ch *transport.Channel, sess *ReceiveSession) SessionResult {
	transferred := false
	for {
		ok, err := receiveOne(ch, sess)
		if err != nil {
			if sess.Log != nil {
				sess.Log.Error("receive session aborted", err, nil)
			}
			if liberr.IsKind(err, liberr.KindClosed) {
				if transferred {
					return SessionTransfers
				}
				return SessionNoFiles
			}
			return SessionFatal
		}
		if !ok {
			if transferred {
				return SessionTransfers
			}
			return SessionNoFiles
		}
		transferred = true
	}
}

// receiveOne runs one FileInfo..CompleteAck cycle. ok is false once the
// peer cleanly ends the session (channel closed between files), and also,
// with a nil error, after a REJECT_FILE/DUPLICATE_FILE reply to a
// version-2 peer.
func receiveOne(ch *transport.Channel, sess *ReceiveSession) (ok bool, err error) {
	msg, err := ch.Recv()
	if err != nil {
		if liberr.IsKind(err, liberr.KindClosed) {
			return false, nil
		}
		return false, err
	}
	if MessageType(msg.Header.Type) != ConnNewFile {
		return false, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+40, "expected NEW_FILE")
	}

	var flat []byte
	for _, s := range msg.Segments {
		flat = append(flat, s...)
	}
	info, err := DecodeNewFile(flat)
	if err != nil {
		return false, err
	}

	if strings.Contains(info.Name, "\x00") || strings.Contains(info.Name, "/") || strings.Contains(info.Name, "..") {
		return false, rejectAndReturn(ch, sess, ConnRejectFile, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+41, "invalid filename"))
	}

	finalPath := filepath.Join(sess.DestinationDir, info.Name)
	if len(finalPath) == 0 {
		return false, rejectAndReturn(ch, sess, ConnRejectFile, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+42, "destination path too long"))
	}

	if sess.Admitter != nil && !sess.Admitter.Admit(sess.DestinationDir, int64(info.Size)) {
		return false, rejectAndReturn(ch, sess, ConnDuplicateFile, liberr.New(liberr.KindGeneric, liberr.MinPkgXfer+44, "insufficient disk space"))
	}

	sess.InProgress.Lock()
	placeholder, ino, rejectCause, rejectErr := createPlaceholder(finalPath, sess)
	sess.InProgress.Unlock()
	if rejectErr != nil {
		if sess.Admitter != nil {
			sess.Admitter.Release(int64(info.Size))
		}
		return false, rejectAndReturn(ch, sess, rejectCause, rejectErr)
	}

	dotPath := filepath.Join(filepath.Dir(finalPath), "."+filepath.Base(finalPath))
	dotFile, view, err := createDotFile(dotPath, info, sess)
	if err != nil {
		sess.InProgress.Release(ino)
		_ = os.Remove(placeholder)
		if sess.Admitter != nil {
			sess.Admitter.Release(int64(info.Size))
		}
		return false, err
	}

	if err := ch.Send(uint16(ConnNewFileReady), nil); err != nil {
		cleanupFailed(sess, ino, placeholder, dotPath, dotFile, view, int64(info.Size))
		return false, err
	}

	if err := receiveBlocks(ch, view, info.Size); err != nil {
		cleanupFailed(sess, ino, placeholder, dotPath, dotFile, view, int64(info.Size))
		return false, err
	}

	_ = view.Release()
	_ = dotFile.Close()

	for _, dir := range sess.DuplicateDirs {
		dst := filepath.Join(dir, info.Name)
		_ = linkcopy.LinkOrCopy(finalPath, dst, sess.UniqueCopies)
	}

	if err := os.Rename(dotPath, placeholder); err != nil {
		cleanupFailed(sess, ino, placeholder, dotPath, nil, nil, int64(info.Size))
		return false, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+43, "atomic rename failed", err)
	}
	if err := os.Chmod(placeholder, os.FileMode(info.Mode&0o777)); err != nil && sess.Log != nil {
		sess.Log.Warning("chmod after rename failed", err, nil)
	}

	sess.InProgress.Release(ino)
	if sess.Admitter != nil {
		sess.Admitter.Release(int64(info.Size))
	}

	if err := ch.Send(uint16(ConnFileComplete), nil); err != nil {
		return false, err
	}

	if sess.PostCommand != nil {
		if err := sess.PostCommand(placeholder); err != nil && sess.Log != nil {
			sess.Log.Warning("post-command failed", err, nil)
		}
	}

	return true, nil
}

// rejectAndReturn replies with cause (REJECT_FILE for a malformed
// request, DUPLICATE_FILE for a disk-space or duplicate-placeholder
// condition) on protocol version >= 2, or simply returns a
// protocol-mismatch error to force a disconnect (version 1, per §4.5).
func rejectAndReturn(ch *transport.Channel, sess *ReceiveSession, cause MessageType, err error) error {
	if VersionAtLeast(sess.PeerVersion, 2) {
		_ = ch.Send(uint16(cause), nil)
		return nil
	}
	return err
}

// createPlaceholder implements the placeholder-creation/EEXIST-handling
// logic of §4.5, returning the opened path and its inode once registered
// in the in-progress set. On failure it also reports which rejection
// reply the failure warrants: DUPLICATE_FILE for every
// duplicate-placeholder race, REJECT_FILE for a genuine filesystem
// failure.
func createPlaceholder(path string, sess *ReceiveSession) (string, uint64, MessageType, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0)
	if err == nil {
		ino, statErr := inodeOf(f)
		_ = f.Close()
		if statErr != nil {
			return "", 0, ConnRejectFile, statErr
		}
		if !sess.InProgress.TryRegister(ino) {
			return "", 0, ConnDuplicateFile, liberr.New(liberr.KindGeneric, liberr.MinPkgXfer+45, "duplicate transfer race")
		}
		return path, ino, 0, nil
	}

	if !os.IsExist(err) {
		return "", 0, ConnRejectFile, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+46, "create placeholder failed", err)
	}

	fi, statErr := os.Lstat(path)
	if statErr == nil && fi.Mode().IsRegular() && fi.Size() == 0 && fi.Mode().Perm() == 0 {
		ino, _ := inodeOfStat(fi)
		if sess.InProgress.Contains(ino) {
			return "", 0, ConnDuplicateFile, liberr.New(liberr.KindGeneric, liberr.MinPkgXfer+47, "duplicate transfer in progress")
		}
	}

	if err := os.Remove(path); err != nil {
		return "", 0, ConnRejectFile, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+48, "remove stale placeholder failed", err)
	}
	f, err = os.OpenFile(path, os.O_CREATE|os.O_EXCL, 0)
	if err != nil {
		return "", 0, ConnDuplicateFile, liberr.New(liberr.KindGeneric, liberr.MinPkgXfer+49, "duplicate after retry")
	}
	ino, statErr := inodeOf(f)
	_ = f.Close()
	if statErr != nil {
		return "", 0, ConnRejectFile, statErr
	}
	if !sess.InProgress.TryRegister(ino) {
		return "", 0, ConnDuplicateFile, liberr.New(liberr.KindGeneric, liberr.MinPkgXfer+50, "duplicate transfer race")
	}
	return path, ino, 0, nil
}

func createDotFile(dotPath string, info NewFileInfo, sess *ReceiveSession) (*os.File, *mmapView, error) {
	f, err := os.OpenFile(dotPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, os.FileMode(info.Mode&0o777))
	if err != nil {
		return nil, nil, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+51, "create dot-file failed", err)
	}

	if info.Size > 0 {
		if _, err := f.WriteAt([]byte{0}, int64(info.Size)-1); err != nil {
			_ = f.Close()
			_ = os.Remove(dotPath)
			return nil, nil, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+52, "pre-extend dot-file failed", err)
		}
	}

	view, err := mmapReadWrite(f, int64(info.Size))
	if err != nil {
		_ = f.Close()
		_ = os.Remove(dotPath)
		return nil, nil, err
	}
	return f, view, nil
}

func receiveBlocks(ch *transport.Channel, view *mmapView, size uint64) error {
	received := uint64(0)
	for received < size {
		msg, err := ch.Recv()
		if err != nil {
			return err
		}
		if MessageType(msg.Header.Type) == ConnFileComplete {
			if received != size {
				return liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+53, "FILE_COMPLETE before all blocks received")
			}
			return nil
		}
		if MessageType(msg.Header.Type) != ConnFileBlock {
			return liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+54, "expected FILE_BLOCK")
		}
		var body []byte
		for _, s := range msg.Segments {
			body = append(body, s...)
		}
		if len(body) < 8 {
			return liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+59, "FILE_BLOCK body too short")
		}
		offset, err := DecodeFileBlockHeader(body[:8])
		if err != nil {
			return err
		}
		payload := body[8:]
		if offset > size || uint64(len(payload)) > size-offset {
			return liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+55, "FILE_BLOCK exceeds declared size")
		}
		copy(view.Slice(int64(offset), int64(len(payload))), payload)
		received += uint64(len(payload))
	}

	msg, err := ch.Recv()
	if err != nil {
		return err
	}
	if MessageType(msg.Header.Type) != ConnFileComplete {
		return liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+56, "expected FILE_COMPLETE")
	}
	return nil
}

func cleanupFailed(sess *ReceiveSession, ino uint64, placeholder, dotPath string, dotFile *os.File, view *mmapView, size int64) {
	if view != nil {
		_ = view.Release()
	}
	if dotFile != nil {
		_ = dotFile.Close()
	}
	_ = os.Remove(dotPath)
	_ = os.Remove(placeholder)
	sess.InProgress.Release(ino)
	if sess.Admitter != nil {
		sess.Admitter.Release(size)
	}
}

func inodeOf(f *os.File) (uint64, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+57, "stat failed", err)
	}
	return inodeOfStat(fi)
}

func inodeOfStat(fi os.FileInfo) (uint64, error) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, liberr.New(liberr.KindSystem, liberr.MinPkgXfer+58, "no syscall.Stat_t available for inode")
	}
	return st.Ino, nil
}
