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

	"github.com/movsoftware/filerelay/internal/transport"
	"github.com/movsoftware/filerelay/internal/wire"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// SendItem describes one file waiting in a peer's processing directory.
type SendItem struct {
	// Path is the hard-linked (or copied) file sitting in
	// processing-dir/<peer-ident>/<name>, ready to send.
	Path string
	// Name is the relative filename announced to the receiver.
	Name string
	// Attempts counts prior failed tries, used by the caller's retry
	// policy; xfer itself never retries.
	Attempts int
}

// SendFile drives the full send-side state machine of §4.4 for one item
// over ch, blocking until a terminal Outcome is reached. peerVersion is
// the protocol version learned during the connection handshake.
func SendFile(ch *transport.Channel, item SendItem, blockSize uint32, peerVersion uint32) (Outcome, error) {
	f, err := os.Open(item.Path)
	if err != nil {
		return LocalFailed, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+20, "open failed", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return LocalFailed, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+21, "stat failed", err)
	}
	size := info.Size()
	if size < 0 {
		return LocalFailed, liberr.New(liberr.KindSystem, liberr.MinPkgXfer+22, "negative file size")
	}

	view, err := mmapReadOnly(f, size)
	if err != nil {
		return LocalFailed, err
	}
	defer view.Release()

	// FileInfo
	body := EncodeNewFile(NewFileInfo{
		Size:      uint64(size),
		BlockSize: blockSize,
		Mode:      uint32(info.Mode().Perm()),
		Name:      item.Name,
	})
	if err := ch.Send(uint16(ConnNewFile), [][]byte{body}); err != nil {
		return Failed, err
	}

	// FileInfoAck
	reply, err := ch.Recv()
	if err != nil {
		return Failed, err
	}
	switch MessageType(reply.Header.Type) {
	case ConnNewFileReady:
		// proceed
	case ConnDuplicateFile, ConnRejectFile:
		if !VersionAtLeast(peerVersion, 2) {
			return Failed, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+23, "unexpected rejection from version-1 peer")
		}
		return Impossible, nil
	default:
		return Failed, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+24, "unexpected reply to NEW_FILE")
	}

	// SendFile
	maxChunk := int64(wire.MaxPayloadSize(FileBlockHeaderSize))
	chunk := int64(blockSize)
	if chunk <= 0 || chunk > maxChunk {
		chunk = maxChunk
	}
	if chunk > size {
		chunk = size
	}
	var offset int64
	for offset < size {
		n := chunk
		if remaining := size - offset; n > remaining {
			n = remaining
		}
		hdr := EncodeFileBlockHeader(uint64(offset))
		payload := view.Slice(offset, n)

		// Acquire spans the write itself, not just the enqueue call: the
		// writer runs asynchronously against this payload slice, so the
		// reference must stay alive until it actually drops the message,
		// not merely until ch.Send returns.
		view.Acquire()
		dropped := false
		release := func() {
			if !dropped {
				dropped = true
				_ = view.Release()
			}
		}
		sendErr := ch.SendWithDrop(uint16(ConnFileBlock), [][]byte{hdr, payload}, release)
		if sendErr != nil {
			// The message was never queued, so OnDrop will never fire.
			release()
			return Failed, sendErr
		}
		offset += n
	}

	// Complete
	if err := ch.Send(uint16(ConnFileComplete), nil); err != nil {
		return Failed, err
	}

	// CompleteAck
	ack, err := ch.Recv()
	if err != nil {
		return Failed, err
	}
	if MessageType(ack.Header.Type) != ConnFileComplete {
		return Failed, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+25, "unexpected reply to FILE_COMPLETE")
	}

	if err := os.Remove(item.Path); err != nil {
		return Fatal, liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+26, "unlink after success failed", err)
	}
	return Succeeded, nil
}

// MoveToErrorDir relocates a rejected/impossible item into
// error-dir/<peer-ident>/<name> (§4.4 Impossible outcome / §4.8).
func MoveToErrorDir(item SendItem, errorDir string) error {
	if err := os.MkdirAll(errorDir, 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+27, "mkdir error-dir failed", err)
	}
	dst := filepath.Join(errorDir, item.Name)
	if err := os.Rename(item.Path, dst); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgXfer+28, "move to error-dir failed", err)
	}
	return nil
}
