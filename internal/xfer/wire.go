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
	"encoding/binary"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// NewFileInfo is the decoded body of a CONN_NEW_FILE message (§6.1:
// "{high_size:u32, low_size:u32, block_size:u32, mode:u32, name:utf8}").
type NewFileInfo struct {
	Size      uint64
	BlockSize uint32
	Mode      uint32
	Name      string
}

func encodeUint32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

func decodeUint32(b []byte) uint32 {
	return binary.BigEndian.Uint32(b)
}

// EncodeNewFile serializes a CONN_NEW_FILE body.
func EncodeNewFile(info NewFileInfo) []byte {
	high := uint32(info.Size >> 32)
	low := uint32(info.Size & 0xFFFFFFFF)

	buf := make([]byte, 16+len(info.Name))
	binary.BigEndian.PutUint32(buf[0:4], high)
	binary.BigEndian.PutUint32(buf[4:8], low)
	binary.BigEndian.PutUint32(buf[8:12], info.BlockSize)
	binary.BigEndian.PutUint32(buf[12:16], info.Mode&0o777)
	copy(buf[16:], info.Name)
	return buf
}

// DecodeNewFile parses a CONN_NEW_FILE body.
func DecodeNewFile(body []byte) (NewFileInfo, error) {
	if len(body) < 16 {
		return NewFileInfo{}, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+10, "NEW_FILE body too short")
	}
	high := decodeUint32(body[0:4])
	low := decodeUint32(body[4:8])
	blockSize := decodeUint32(body[8:12])
	mode := decodeUint32(body[12:16])
	name := string(body[16:])
	return NewFileInfo{
		Size:      uint64(high)<<32 | uint64(low),
		BlockSize: blockSize,
		Mode:      mode,
		Name:      name,
	}, nil
}

// FileBlockHeaderSize is the size in bytes of the {high_offset,
// low_offset} prefix segment prepended to every CONN_FILE_BLOCK payload.
const FileBlockHeaderSize = 8

// EncodeFileBlockHeader serializes the {high_offset, low_offset} prefix
// segment of a CONN_FILE_BLOCK scatter message; the payload is sent as a
// second, separate segment borrowed from the memory map.
func EncodeFileBlockHeader(offset uint64) []byte {
	high := uint32(offset >> 32)
	low := uint32(offset & 0xFFFFFFFF)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], high)
	binary.BigEndian.PutUint32(buf[4:8], low)
	return buf
}

// DecodeFileBlockHeader parses the offset prefix of a CONN_FILE_BLOCK
// message.
func DecodeFileBlockHeader(prefix []byte) (uint64, error) {
	if len(prefix) < 8 {
		return 0, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+11, "FILE_BLOCK header too short")
	}
	high := decodeUint32(prefix[0:4])
	low := decodeUint32(prefix[4:8])
	return uint64(high)<<32 | uint64(low), nil
}

// EncodeVersion serializes a 4-byte protocol version body for
// CONN_SENDER_VERSION/CONN_RECEIVER_VERSION.
func EncodeVersion(v uint32) []byte {
	return encodeUint32(v)
}

// DecodeVersion parses a protocol version body.
func DecodeVersion(body []byte) (uint32, error) {
	if len(body) < 4 {
		return 0, liberr.New(liberr.KindProtocolMismatch, liberr.MinPkgXfer+12, "version body too short")
	}
	return decodeUint32(body[0:4]), nil
}
