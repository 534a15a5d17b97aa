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

// Package linkcopy implements the §4.7 link-or-copy policy shared by the
// sender's cross-peer fan-out and the receiver's duplicate-directory
// mirroring: prefer a hard link, and fall back to a real copy whenever the
// link fails (another device, a different file already at the destination,
// or any other link error).
package linkcopy

import (
	"io"
	"os"
	"path/filepath"
	"syscall"

	liberr "github.com/movsoftware/filerelay/pkg/errors"
)

// LinkOrCopy places src at dst, preferring a hard link. If unique is true
// the link attempt is skipped entirely and dst is always a fresh copy
// (§4.7: "a sender-side unique-copies flag forces copy and skips link
// entirely ... ditto on the receiver side").
func LinkOrCopy(src, dst string, unique bool) error {
	if unique {
		return copyFile(src, dst)
	}

	err := os.Link(src, dst)
	if err == nil {
		return nil
	}

	linkErr, ok := err.(*os.LinkError)
	if !ok {
		return copyFile(src, dst)
	}

	switch {
	case linkErr.Err == syscall.EEXIST:
		same, statErr := sameFile(src, dst)
		if statErr == nil && same {
			return nil
		}
		return copyFile(src, dst)
	case linkErr.Err == syscall.EXDEV:
		return copyFile(src, dst)
	default:
		return copyFile(src, dst)
	}
}

// sameFile reports whether a and b are the same device+inode, meaning dst
// is already linked to src (§4.7: "if same device and inode, treat as
// already linked and return").
func sameFile(a, b string) (bool, error) {
	fa, err := os.Stat(a)
	if err != nil {
		return false, err
	}
	fb, err := os.Stat(b)
	if err != nil {
		return false, err
	}
	sa, ok := fa.Sys().(*syscall.Stat_t)
	if !ok {
		return false, nil
	}
	sb, ok := fb.Sys().(*syscall.Stat_t)
	if !ok {
		return false, nil
	}
	return sa.Dev == sb.Dev && sa.Ino == sb.Ino, nil
}

// copyFile performs a real byte-for-byte copy of src to dst, preserving
// src's permission bits, and replaces any existing dst.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+1, "open source failed", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+2, "stat source failed", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+3, "mkdir destination dir failed", err)
	}

	tmp := dst + ".tmp-linkcopy"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, info.Mode().Perm())
	if err != nil {
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+4, "create destination failed", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+5, "copy failed", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+6, "close destination failed", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return liberr.Wrap(liberr.KindSystem, liberr.MinPkgLinkcopy+7, "rename into place failed", err)
	}
	return nil
}
