/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "github.com/pkg/errors"

// Sentinel errors for the error kinds named in §7 of the spec. Compared with
// errors.Is (pkg/errors preserves the sentinel under Wrap/Wrapf), the same
// way the teacher compares its ErrHijacked/ErrBodyNotAllowed/ErrContentLength
// sentinels with ==, except these may travel wrapped with request-specific
// context.
var (
	// ErrCommitRace is returned to the losing side of the commit CAS
	// (§4.5.5, §8 invariant #1).
	ErrCommitRace = errors.New("httpchannel: concurrent commit")

	// ErrCommitted is returned by Response mutators once the response has
	// already been committed (§4.3 invariant).
	ErrCommitted = errors.New("httpchannel: response already committed")

	// ErrExpectationUnsupported marks an HTTP/1.1 Expect: token this core
	// does not recognise (§4.5.1 parsed_header/EXPECT, §7).
	ErrExpectationUnsupported = errors.New("httpchannel: unsupported expectation")

	// ErrSuspended names a suspended dispatch. Nothing in this package
	// returns it: handlers return no value, and the dispatch loop learns of
	// a suspend from the state machine (§9 Design Notes).
	ErrSuspended = errors.New("httpchannel: suspended")

	// ErrSpuriousWake names a dispatch wake that finds nothing to do.
	// Nothing in this package returns it: handling() reports such a wake by
	// returning false.
	ErrSpuriousWake = errors.New("httpchannel: spurious dispatch wake")

	// ErrSeveredInput is returned by Input writes once early_eof or
	// message_complete has shut the queue down, and (wrapped) by Input
	// writes and reads once the body exceeded the Input's size cap. Reads
	// from a queue that was shut down and drained return io.EOF instead.
	// The dispatch loop also records it on the state when a handler fails
	// with io.EOF.
	ErrSeveredInput = errors.New("httpchannel: input closed")

	// ErrAlreadyHandling guards reset(): it is only legal while the
	// state is idle or completed (§3 invariant).
	ErrAlreadyHandling = errors.New("httpchannel: reset() called while handling")

	// ErrTimeout marks a scheduler-driven completion (§7 TIMEOUT).
	ErrTimeout = errors.New("httpchannel: timed out")
)

// wrapf is a small indirection so call sites read like the teacher's
// inline fmt.Errorf/errors.New calls, but every wrap goes through one
// place that can be swapped or have logging attached later without
// touching every call site.
func wrapf(cause error, format string, args ...interface{}) error {
	return errors.Wrapf(cause, format, args...)
}
