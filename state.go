/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "sync"

// stateValue is the Channel State Machine's finite set (§4.1). Mirrors the
// teacher's ConnState enum (types_server.go) in shape: a small int type with
// a name table, except this one drives dispatch/suspend/complete instead of
// connection bookkeeping.
type stateValue int

const (
	stateIdle stateValue = iota
	stateDispatched
	stateAsyncStarted
	stateAsyncWait
	stateRedispatching
	stateCompleting
	stateCompleted
)

var stateName = map[stateValue]string{
	stateIdle:          "idle",
	stateDispatched:    "dispatched",
	stateAsyncStarted:  "async-started",
	stateAsyncWait:     "async-wait",
	stateRedispatching: "redispatching",
	stateCompleting:    "completing",
	stateCompleted:     "completed",
}

func (s stateValue) String() string { return stateName[s] }

// channelState implements §4.1. It is the sole synchronisation point
// between the dispatching worker and any timer/application-spawned thread
// performing an async dispatch or redispatch (§5).
type channelState struct {
	mu       sync.Mutex
	state    stateValue
	asyncTag bool  // a dispatch() arrived while ASYNC_STARTED, before unhandle() ran
	err      error // set by error(), which also moves the state to COMPLETING
	initial  bool  // true for the very first handling() pass of a request
	notified bool  // channel_completed() already fired for this request
}

// reset returns the state to IDLE. Legal only when idle or completed
// already (§3 invariant); called from Channel.reset().
func (s *channelState) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateIdle
	s.asyncTag = false
	s.err = nil
	s.initial = false
	s.notified = false
}

// handling transitions IDLE->DISPATCHED, or REDISPATCHING (set by dispatch())
// or ASYNC_WAIT to DISPATCHED. Returns true iff the caller must run the
// application this pass.
func (s *channelState) handling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateIdle:
		s.state = stateDispatched
		s.initial = true
		return true
	case stateAsyncWait, stateRedispatching:
		s.state = stateDispatched
		s.initial = false
		return true
	case stateCompleting, stateCompleted:
		return false
	default:
		// Already dispatched (re-entrant handling() call while a pass is
		// in flight) — spurious wake, nothing to do this time.
		return false
	}
}

// unhandle is called in a finally after every application invocation
// (§4.1). Returns "done": true means the loop must exit and wait for a
// later dispatch(); false means either completion (loop exits into the
// completion phase) or an immediate re-iteration (async already resolved
// synchronously, e.g. complete-and-resume).
func (s *channelState) unhandle() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == stateAsyncStarted {
		if s.asyncTag {
			// A dispatch() raced in before unhandle observed the suspend —
			// go around the loop again immediately instead of waiting.
			s.asyncTag = false
			s.state = stateDispatched
			s.initial = false
			return false
		}
		s.state = stateAsyncWait
		return true
	}

	s.state = stateCompleting
	return false
}

// startAsync marks that the application suspended during the current pass.
// Called by the application (via Channel) before returning from the
// handler. Idiomatic-Go stand-in for the source's sentinel-throwable
// unwind (§9 Design Notes): the handler returns normally, and the loop
// reads this flag from the state instead of catching anything.
func (s *channelState) startAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateDispatched {
		s.state = stateAsyncStarted
	}
}

// dispatch is invoked by a timer or application-spawned thread to resume a
// suspended channel (§5 Suspension points). It only flips ASYNC_WAIT to
// REDISPATCHING, or, when it arrives while still ASYNC_STARTED, records the
// race for unhandle(); the actual re-entry into handling() still has to
// be scheduled by the caller (the Connector posts the Channel back to the
// executor — out of this core's scope).
func (s *channelState) dispatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case stateAsyncStarted:
		s.asyncTag = true
		return true
	case stateAsyncWait:
		s.state = stateRedispatching
		return true
	}
	return false
}

// error records a failure and moves the state to COMPLETING at once (unless
// it is already COMPLETED), so the next unhandle() leaves it COMPLETING.
// Idempotent: the first error recorded wins.
func (s *channelState) error(cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = cause
	}
	if s.state != stateCompleted {
		s.state = stateCompleting
	}
}

// completed moves the state to COMPLETED from whatever state it is in.
// Idempotent (§8 invariant #11).
func (s *channelState) completed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateCompleted
}

// notify latches channel_completed() to fire exactly once per request (§8
// invariant #3), regardless of which completion path reaches it first —
// badMessageLocked can finalise a channel directly, before Run() ever sees
// it, so a second call from runCompletionPhase must be a no-op.
func (s *channelState) notify() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notified {
		return false
	}
	s.notified = true
	return true
}

func (s *channelState) isSuspended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateAsyncStarted || s.state == stateAsyncWait
}

func (s *channelState) isInitial() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initial
}

func (s *channelState) isCompleting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateCompleting
}

func (s *channelState) isCompleted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateCompleted
}

func (s *channelState) getState() stateValue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *channelState) getError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// expired is invoked by the connector's scheduler on a timeout (§5
// Cancellation & timeouts). It forces completion with TIMEOUT the same way
// error() does with an application failure; a concurrent write that loses
// the resulting commit CAS observes ErrCommitRace, per spec.
func (s *channelState) expired() {
	s.error(ErrTimeout)
}
