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

package receiverengine

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// postCommandTimeout bounds one post-command subprocess so a hung or
// misbehaving command can never wedge the connection worker that's
// waiting on it.
const postCommandTimeout = 30 * time.Second

// buildPostCommand expands template's %s/%I placeholders (spec.md §6.3:
// "post-command <string template with %s -> path, %I -> peer ident>")
// and returns a func matching xfer.ReceiveSession.PostCommand, running
// the expanded command through the shell the same way the teacher's own
// external-hook invocations do.
//
// path comes from the peer's own filename (only NUL, "/", and ".." are
// rejected upstream in xfer.receiveOne) and peerIdent from the peer's own
// handshake identity, so both are shell-quoted before substitution —
// the operator's template still runs as a shell command line, but a
// peer can't break out of the %s/%I slot it's given.
func buildPostCommand(template, peerIdent string) func(path string) error {
	if template == "" {
		return nil
	}
	return func(path string) error {
		cmdline := strings.NewReplacer("%s", shQuote(path), "%I", shQuote(peerIdent)).Replace(template)

		ctx, cancel := context.WithTimeout(context.Background(), postCommandTimeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
		return cmd.Run()
	}
}

// shQuote wraps s in single quotes for safe use as one POSIX shell word,
// escaping embedded single quotes.
func shQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
