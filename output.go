/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

// Output is the blocking byte sink handed to the application via
// Response.HTTPOutput (§4.3, §6). Every write and the final flush route
// through Channel.write, which is where the commit-or-passthrough decision
// (§4.5.5) actually happens — Output itself holds no buffer of its own;
// buffering, if any, is the Transport's business (§4.4).
type Output struct {
	resp     *Response
	finished bool
}

// Write hands p to Channel.write: the first write commits the response
// with p as its content, later writes forward straight through to the
// transport. It never blocks on I/O itself —
// that's the Transport's contract (§4.4, "Blocking by contract") — but the
// call into Channel.write may.
func (o *Output) Write(p []byte) (int, error) {
	if o.finished {
		return 0, wrapf(ErrCommitted, "write after Output.finish")
	}
	if !bodyAllowedForStatus(o.resp.status) {
		return 0, wrapf(ErrCommitted, "status %d does not allow a body", o.resp.status)
	}
	o.resp.written += int64(len(p))
	if o.resp.contentLength >= 0 && o.resp.written > o.resp.contentLength {
		return 0, wrapf(ErrCommitted, "wrote more than declared Content-Length")
	}
	if err := o.resp.channel.write(p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush commits the response headers if nothing has gone out yet, or passes
// an empty, non-final write to the transport, without completing the
// response — the counterpart of the teacher's response.Flush
// (response_server.go). Output holds no bytes of its own to push out.
func (o *Output) Flush() error {
	return o.resp.channel.write(nil, false)
}

// finish backs Response.Complete: flush and tell the channel this is the
// final write, so the transport finalises framing (trailing CRLF for
// chunked, a final zero-length write for fixed length). Idempotent.
func (o *Output) finish() error {
	if o.finished {
		return nil
	}
	o.finished = true
	return o.resp.channel.write(nil, true)
}

func (o *Output) reset() {
	o.finished = false
}
