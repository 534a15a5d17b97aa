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

// Package xfer implements the per-file send-side and receive-side state
// machines of §4.4/§4.5: FileInfo -> FileInfoAck -> SendFile -> Complete
// -> CompleteAck, driven over a transport.Channel.
package xfer

import (
	"fmt"

	"github.com/hashicorp/go-version"
)

// MessageType enumerates the reserved CONN_* wire message types carried
// on an application channel (§6.1).
type MessageType uint16

const (
	ConnSenderVersion   MessageType = 0
	ConnReceiverVersion MessageType = 1
	ConnIdent           MessageType = 2
	ConnReady           MessageType = 3
	ConnDisconnectRetry MessageType = 4
	ConnDisconnect      MessageType = 5
	ConnNewFile         MessageType = 6
	ConnNewFileReady    MessageType = 7
	ConnFileBlock       MessageType = 8
	ConnFileComplete    MessageType = 9
	ConnDuplicateFile   MessageType = 10
	ConnRejectFile      MessageType = 11
)

// ProtocolVersion is this implementation's wire protocol version, sent
// during the CONN_SENDER_VERSION/CONN_RECEIVER_VERSION handshake.
// Version 2 added CONN_DUPLICATE_FILE/CONN_REJECT_FILE as an alternative
// to a bare disconnect; a peer speaking version 1 still only gets
// disconnected.
const ProtocolVersion uint32 = 2

// VersionAtLeast reports whether peer's negotiated protocol version is at
// or above min, using hashicorp/go-version's semver comparison rather
// than a raw integer comparison — the same library the teacher uses to
// compare a remote's announced version. The wire carries a bare integer,
// so each is widened to an X.0.0 form before comparing.
func VersionAtLeast(peer, min uint32) bool {
	pv, err1 := version.NewVersion(fmt.Sprintf("%d.0.0", peer))
	mv, err2 := version.NewVersion(fmt.Sprintf("%d.0.0", min))
	if err1 != nil || err2 != nil {
		return peer >= min
	}
	return pv.Compare(mv) >= 0
}

// Outcome is the terminal result of one FileInfo..CompleteAck send
// attempt (§4.4).
type Outcome int

const (
	Succeeded Outcome = iota
	Impossible
	LocalFailed
	Failed
	MaxAttempts
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Impossible:
		return "impossible"
	case LocalFailed:
		return "local-failed"
	case Failed:
		return "failed"
	case MaxAttempts:
		return "max-attempts"
	default:
		return "fatal"
	}
}

// SessionResult is the receive-side per-connection return value (§4.5):
// -1 fatal, 0 no files transferred, 1 at least one file transferred.
type SessionResult int

const (
	SessionFatal     SessionResult = -1
	SessionNoFiles   SessionResult = 0
	SessionTransfers SessionResult = 1
)
