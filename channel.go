/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/badu/httpchannel/url"
)

// Channel exclusively owns one Request, one Response, one State, a URI
// scratch buffer and a committed flag, and borrows (without owning) a
// Connector, a Configuration, an Endpoint, a Transport and an Input (§3).
// It persists for the lifetime of its connection; Request/Response/State
// are reset between requests on a persistent connection (§3 Lifecycle).
//
// Mirrors the teacher's conn struct (types_server.go) in spirit — one
// value per connection, threading a *response and its *Request through a
// dispatch loop — but carries the suspend/resume state machine the teacher
// never needed (its handlers always run to completion synchronously).
type Channel struct {
	// Owned.
	req   *Request
	resp  *Response
	state *channelState
	uri   *url.URL // scratch buffer reused by start_request

	committed int32 // atomic bool; CAS'd exactly once per request (§3 invariant)

	requestsHandled uint64 // atomic; incremented exactly once, at header_complete

	// Per-request expectation flags, cleared by StartRequest at the start of
	// every request (§4.5.1 start_request) and by reset.
	expect100Continue bool
	expect102Process  bool
	expectUnsupported bool

	// Borrowed. Never owned, never reset.
	Connector     *Connector
	Configuration *Configuration
	Endpoint      *Endpoint
	Transport     Transport

	logger  *logrus.Logger
	metrics *Metrics
	events  *eventDispatcher // lazily created by ListenOnce; nil is valid
}

// Option configures a Channel at construction time. The teacher builds its
// conn/response values as plain struct literals (it never had optional
// ambient collaborators to wire); this repo's one departure from that is
// confined to construction, everything past NewChannel still reads and
// mutates plain exported/unexported fields directly.
type Option func(*Channel)

func WithLogger(l *logrus.Logger) Option       { return func(c *Channel) { c.logger = l } }
func WithMetrics(m *Metrics) Option            { return func(c *Channel) { c.metrics = m } }
func WithConfiguration(cfg *Configuration) Option {
	return func(c *Channel) { c.Configuration = cfg }
}
func WithConnector(conn *Connector) Option { return func(c *Channel) { c.Connector = conn } }
func WithEndpoint(ep *Endpoint) Option     { return func(c *Channel) { c.Endpoint = ep } }
func WithTransport(t Transport) Option     { return func(c *Channel) { c.Transport = t } }

// NewChannel constructs a Channel in state IDLE, ready for its first
// dispatch.
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		state:         &channelState{},
		Configuration: DefaultConfiguration(),
	}
	c.req = newRequest(c)
	c.resp = newResponse(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Request() *Request   { return c.req }
func (c *Channel) Response() *Response { return c.resp }

// IsSuspended, IsInitial, IsCompleting and IsCompleted observe the
// dispatch/async lifecycle (§4.1).
func (c *Channel) IsSuspended() bool  { return c.state.isSuspended() }
func (c *Channel) IsInitial() bool    { return c.state.isInitial() }
func (c *Channel) IsCompleting() bool { return c.state.isCompleting() }
func (c *Channel) IsCompleted() bool  { return c.state.isCompleted() }

// RequestsHandled returns the monotonic counter incremented exactly once
// per request, at header-complete (§3 invariant #2).
func (c *Channel) RequestsHandled() uint64 {
	return atomic.LoadUint64(&c.requestsHandled)
}

// Stats is a point-in-time snapshot of a Channel's dispatch bookkeeping,
// grounded on the teacher's conn.curState atomic.Value pattern
// (types_server.go) — there it's a single ConnState read for logging and
// ConnState hooks; here it bundles the handful of fields callers (tests
// among them) read together so they don't lock/unlock the state machine
// field by field.
type Stats struct {
	State           string
	RequestsHandled uint64
	Committed       bool
}

// Stats returns a snapshot of the Channel's current bookkeeping.
func (c *Channel) Stats() Stats {
	return Stats{
		State:           c.state.getState().String(),
		RequestsHandled: c.RequestsHandled(),
		Committed:       c.isCommitted(),
	}
}

func (c *Channel) isCommitted() bool {
	return atomic.LoadInt32(&c.committed) != 0
}

// tryCommit is the CAS at the heart of §4.5.5: exactly one caller per
// request ever observes true.
func (c *Channel) tryCommit() bool {
	return atomic.CompareAndSwapInt32(&c.committed, 0, 1)
}

// StartAsync suspends the current dispatch pass (§4.1 unhandle, §5
// Suspension points). The application calls this and then returns
// normally from Server.Handle/HandleAsync; the dispatch loop observes the
// suspend via unhandle() returning true.
func (c *Channel) StartAsync() {
	c.state.startAsync()
	c.metrics.adjustSuspended(1)
	c.events.dispatch(EventSuspended)
}

// Dispatch resumes a suspended Channel (§5 Suspension points): a timer or
// application-spawned thread calls this to post the Channel back for
// redispatch. Posting it back onto an executor is the Connector's job —
// out of this core's scope (§1) — Dispatch only flips the state.
func (c *Channel) Dispatch() bool {
	ok := c.state.dispatch()
	if ok {
		c.metrics.adjustSuspended(-1)
		c.events.dispatch(EventDispatched)
	}
	return ok
}

// Expired forces completion on a scheduler-driven timeout (§5 Cancellation
// & timeouts, §7 TIMEOUT).
func (c *Channel) Expired() { c.state.expired() }

// reset returns the Channel to the pre-request state (§3 invariant).
// Idempotent; legal only when the State is idle or completed.
func (c *Channel) reset() error {
	st := c.state.getState()
	if st != stateIdle && st != stateCompleted {
		return wrapf(ErrAlreadyHandling, "reset() in state %s", st)
	}
	c.state.reset()
	atomic.StoreInt32(&c.committed, 0)
	c.req.recycle()
	c.req.input.Reset()
	c.resp.recycle()
	c.uri = nil
	c.expect100Continue = false
	c.expect102Process = false
	c.expectUnsupported = false
	return nil
}

// Reset is the exported form of reset, for callers (e.g. a connector
// returning a Channel to a pool) outside this package's own dispatch loop.
func (c *Channel) Reset() error { return c.reset() }

func now() time.Time { return time.Now() }
