/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"bytes"
	"io"
	"sync"
)

// Input is the bounded producer/consumer byte queue fed by the parser and
// drained by the application (§3 Request Object / §4.5.1 content). It plays
// the role the teacher's body/maxBytesReader pair plays for a client
// response body, adapted from a single io.LimitedReader wrapper into an
// explicit queue because here the producer (parser callbacks) and the
// consumer (the dispatched handler, possibly on another goroutine across a
// suspend) are not the same call stack.
type Input struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      bytes.Buffer
	closed   bool  // message_complete/early_eof: no more producer writes
	maxBytes int64 // <=0 means unbounded
	received int64
	err      error // sticky error surfaced to readers, e.g. request-too-large
}

// NewInput returns an Input with an optional max body size. maxBytes<=0
// means unbounded, matching the teacher's maxBytesReader semantics of
// "disabled means no limit" rather than zero meaning empty.
func NewInput(maxBytes int64) *Input {
	in := &Input{maxBytes: maxBytes}
	in.cond = sync.NewCond(&in.mu)
	return in
}

// Write appends a buffer the parser handed to content() (§4.5.1). It never
// blocks: the parser's job is to hand bytes over and move on, the same way
// the teacher's connReader decouples the network read from the consumer.
func (in *Input) Write(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return 0, ErrSeveredInput
	}
	if in.maxBytes > 0 && in.received+int64(len(p)) > in.maxBytes {
		in.err = wrapf(ErrSeveredInput, "request body exceeds %d bytes", in.maxBytes)
		in.closed = true
		in.cond.Broadcast()
		return 0, in.err
	}
	n, err := in.buf.Write(p)
	in.received += int64(n)
	in.cond.Broadcast()
	return n, err
}

// Read drains buffered bytes, blocking until data is available or the
// queue has been shut down (message_complete/early_eof) and drained.
func (in *Input) Read(p []byte) (int, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for in.buf.Len() == 0 && !in.closed {
		in.cond.Wait()
	}
	if in.buf.Len() == 0 {
		if in.err != nil {
			return 0, in.err
		}
		return 0, io.EOF
	}
	return in.buf.Read(p)
}

// Shutdown marks the queue closed: no further producer writes are expected.
// Called from message_complete (graceful) and early_eof (abrupt) — §4.5.1.
// Idempotent.
func (in *Input) Shutdown() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.closed = true
	in.cond.Broadcast()
}

// Reset returns Input to a fresh, reusable state for the next request on a
// persistent connection (§3 Lifecycle).
func (in *Input) Reset() {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.buf.Reset()
	in.closed = false
	in.received = 0
	in.err = nil
}

// Exhausted reports whether the producer has shut down and every buffered
// byte has been consumed.
func (in *Input) Exhausted() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.closed && in.buf.Len() == 0
}

// Available reports how many bytes are immediately readable without
// blocking — used by continue_100(available_bytes) (§4.5.3).
func (in *Input) Available() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.buf.Len()
}
