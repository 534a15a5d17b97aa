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
	"github.com/movsoftware/filerelay/internal/transport"
	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// PeerInfo is what one side of the handshake learns about the other
// (spec.md "each side stores the peer's version").
type PeerInfo struct {
	Version uint32
	Ident   string
}

// Handshake drives the version/ident/ready exchange described in spec.md:
// each side announces its own version (under versionType, which is
// ConnSenderVersion or ConnReceiverVersion depending on role) and ident,
// then both sides wait for the peer's CONN_READY before the channel is
// considered usable for file transfer.
func Handshake(ch *transport.Channel, versionType MessageType, localVersion uint32, localIdent string) (PeerInfo, error) {
	if err := ch.Send(uint16(versionType), [][]byte{EncodeVersion(localVersion)}); err != nil {
		return PeerInfo{}, err
	}
	if err := ch.Send(uint16(ConnIdent), [][]byte{[]byte(localIdent)}); err != nil {
		return PeerInfo{}, err
	}

	vmsg, err := ch.Recv()
	if err != nil {
		return PeerInfo{}, err
	}
	if vmsg.Header.Type != uint16(ConnSenderVersion) && vmsg.Header.Type != uint16(ConnReceiverVersion) {
		return PeerInfo{}, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+60, "expected version message")
	}
	var vbody []byte
	for _, s := range vmsg.Segments {
		vbody = append(vbody, s...)
	}
	peerVersion, err := DecodeVersion(vbody)
	if err != nil {
		return PeerInfo{}, err
	}

	imsg, err := ch.Recv()
	if err != nil {
		return PeerInfo{}, err
	}
	if MessageType(imsg.Header.Type) != ConnIdent {
		return PeerInfo{}, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+61, "expected ident message")
	}
	var ibody []byte
	for _, s := range imsg.Segments {
		ibody = append(ibody, s...)
	}

	if err := ch.Send(uint16(ConnReady), nil); err != nil {
		return PeerInfo{}, err
	}
	rmsg, err := ch.Recv()
	if err != nil {
		return PeerInfo{}, err
	}
	if MessageType(rmsg.Header.Type) != ConnReady {
		return PeerInfo{}, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+62, "expected ready message")
	}

	return PeerInfo{Version: peerVersion, Ident: string(ibody)}, nil
}
