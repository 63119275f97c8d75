/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"io"
	"path"
	"reflect"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/badu/httpchannel/hdr"
	"github.com/badu/httpchannel/url"
)

// This file is the Channel Coordinator (§4.5), the core's largest
// component: the parser event sink (§4.5.1), the dispatch loop (§4.5.2),
// the 100-continue protocol (§4.5.3), exception mapping (§4.5.4) and commit
// routing (§4.5.5). Grounded throughout on the teacher's conn.serve loop
// (conn.go) and response_server.go's commit/write split, generalised from a
// synchronous "read request, run handler, write response, loop" model to
// one where the application may suspend and be redispatched.

// ---- §4.5.1 parser event sink -------------------------------------------------

// StartRequest resets the per-request expectation flags, records the
// method/URI/version, and canonicalises the path. Returns the
// suspend-request boolean the parser's callback surface expects (always
// false here — §4.5.1).
func (c *Channel) StartRequest(methodEnum, methodRaw, uriRaw, version string) bool {
	c.expect100Continue = false
	c.expect102Process = false
	c.expectUnsupported = false

	if c.req.timestamp.IsZero() {
		c.req.SetTimeStamp(now())
	}
	c.req.SetMethod(methodEnum, methodRaw)

	var u *url.URL
	var err error
	if methodEnum == CONNECT {
		u, err = parseAuthorityForm(uriRaw)
	} else {
		u, err = url.ParseRequestURI(uriRaw)
	}
	if err != nil {
		// Malformed request-target: leave path empty, bad_message will be
		// raised by the caller once header parsing notices.
		u = &url.URL{Path: ""}
	}
	c.req.SetURI(u)
	c.uri = u

	decoded := decodePath(u.Path)
	clean := canonicalisePath(decoded)
	if clean == "" {
		clean = "/"
	}
	c.req.SetPathInfo(clean)

	if version == "" {
		version = HTTP0_9
	}
	c.req.SetHTTPVersion(version)

	return false
}

// parseAuthorityForm parses a CONNECT request-target ("host:port") into a
// URL carrying just the Host field. ParseRequestURI only treats "//..." as
// authority-form when a scheme precedes it, so a bare "//" prefix leaves
// Host empty; prefixing a throwaway "http://" scheme instead - the same
// trick net/http's own request-line parser uses for CONNECT - forces the
// authority branch to run.
func parseAuthorityForm(authority string) (*url.URL, error) {
	return url.ParseRequestURI("http://" + authority)
}

// decodePath attempts a UTF-8 decode of an already-percent-decoded path; on
// failure it is retried as ISO-8859-1 (Latin-1), never erroring (§4.5.1,
// §8 boundary #13). Percent-decoding itself belongs to the external
// URI-decoding table (§1 scope) and is assumed already applied by the
// parser/url package before this is called.
func decodePath(p string) string {
	if utf8.ValidString(p) {
		return p
	}
	// ISO-8859-1: every byte maps 1:1 to the Unicode code point of the
	// same value, so this can never fail.
	runes := make([]rune, 0, len(p))
	for i := 0; i < len(p); i++ {
		runes = append(runes, rune(p[i]))
	}
	return string(runes)
}

// canonicalisePath removes "./" and "../" segments while preserving an
// absolute prefix (§4.5.1). path.Clean is the standard library's dot-segment
// remover; no retrieved dependency in the pack offers URI path
// canonicalisation as a distinct library (it's always inline logic or
// stdlib "path"/"path/filepath" in the sampled repos), so this is the one
// place the core reaches past hdr/url for a one-line primitive.
func canonicalisePath(p string) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(p)
	if clean == "." {
		return ""
	}
	if strings.HasPrefix(p, "/") && !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}
	return clean
}

// ParsedHeader appends (name, value) to the request header multimap
// (§4.5.1). name may be "" for folded continuation values, per the spec's
// note that "parsers may deliver folded values with null name" — such
// values are appended to whatever key was most recently added.
func (c *Channel) ParsedHeader(name, value string) bool {
	if value == "" {
		value = ""
	}
	if name == "" {
		keys := c.req.fields.Keys()
		if len(keys) > 0 {
			last := keys[len(keys)-1]
			c.req.fields.Add(last, value)
		}
		return false
	}
	c.req.fields.Add(name, value)

	switch hdr.CanonicalHeaderKey(name) {
	case hdr.Expect:
		c.applyExpectValue(value)
	case hdr.ContentType:
		if cs := parseCharset(value); cs != "" {
			c.req.SetCharacterEncodingUnchecked(cs)
		}
	}
	return false
}

// ParsedHostHeader forwards the parsed Host header to the Request
// (§4.5.1).
func (c *Channel) ParsedHostHeader(host, port string) bool {
	c.req.SetServerName(host)
	c.req.SetServerPort(port)
	return false
}

// HeaderComplete increments the requests-handled counter, determines
// persistence per protocol version, answers an unsupported Expect with 417,
// and returns whether the parser should suspend for 100-continue
// (§4.5.1).
func (c *Channel) HeaderComplete() bool {
	atomic.AddUint64(&c.requestsHandled, 1)
	c.metrics.incRequestsHandled()

	connection := strings.ToLower(c.req.fields.Get(hdr.Connection))

	// The decision below is staged onto the response's own fields, not the
	// request's: it's this core's answer to the client, and only the
	// Response's fields ever make it into the committed ResponseInfo
	// (newResponseInfo reads r.fields, not c.req.fields).
	var persistent bool
	switch c.req.version {
	case HTTP0_9:
		persistent = false
	case HTTP1_0:
		persistent = strings.Contains(connection, DoKeepAlive)
		if persistent {
			c.resp.fields.Set(hdr.Connection, DoKeepAlive)
		}
	case HTTP1_1:
		persistent = !strings.Contains(connection, DoClose)
		if !persistent {
			c.resp.fields.Set(hdr.Connection, DoClose)
		}
		if c.expectUnsupported {
			c.badMessageLocked(StatusExpectationFailed, StatusText(StatusExpectationFailed))
			return true
		}
	default:
		persistent = false
	}

	if c.Configuration != nil && c.Configuration.SendDateHeader {
		c.resp.fields.Set(hdr.Date, c.req.timestamp.UTC().Format(hdr.TimeFormat))
	}

	c.req.SetPersistent(persistent)

	return c.expect100Continue
}

// Content appends to the Input and asks the parser to suspend so the
// application can drain it (§4.5.1).
func (c *Channel) Content(buf []byte) bool {
	c.req.input.Write(buf)
	return true
}

// MessageComplete marks the Input shut down and asks the parser to
// suspend (§4.5.1).
func (c *Channel) MessageComplete(length int64) bool {
	c.req.input.Shutdown()
	return true
}

// EarlyEOF shuts the Input down but does not ask the parser to suspend —
// per §9 Design Notes this asymmetry with MessageComplete is preserved
// as specified, not "fixed": the loop is left to observe the EOF itself
// on its next read.
func (c *Channel) EarlyEOF() bool {
	c.req.input.Shutdown()
	return false
}

// BadMessage answers malformed input with a synthetic response in the
// 400-599 range, bypassing the application entirely, then marks the state
// completed (§4.5.1, §7 PARSE_BAD_MESSAGE).
func (c *Channel) BadMessage(status int, reason string) bool {
	c.badMessageLocked(status, reason)
	return false
}

func (c *Channel) badMessageLocked(status int, reason string) {
	if status < 400 || status > 599 {
		status = StatusBadRequest
	}
	c.metrics.incBadMessage(status)
	if reason == "" {
		reason = StatusText(status)
	}
	if c.state.handling() {
		info := &ResponseInfo{
			Version:       HTTP1_1,
			Headers:       hdr.Header{},
			ContentLength: 0,
			Status:        status,
			Reason:        reason,
			IsHead:        false,
		}
		if c.tryCommit() {
			if err := c.Transport.Commit(info, nil, true); err != nil {
				c.log().WithError(err).Debug("bad_message commit failed")
			}
			c.metrics.incCommit("committed")
		}
		c.state.unhandle()
	}
	c.state.completed()
	if c.Transport != nil && c.state.notify() {
		c.Transport.ChannelCompleted()
	}
}

// ---- §4.5.2 dispatch loop ------------------------------------------------

// threadLocal is the per-thread "current channel" slot (§4.5.2.1, §9 Design
// Notes). Modelled as a goroutine-scoped value the way the spec asks: a
// plain package-level map keyed by goroutine would need a goroutine-ID
// hack, so instead this is set by the calling goroutine immediately before
// Run and cleared immediately after — callers that need it (e.g. an error
// page renderer invoked synchronously within Run) read CurrentChannel from
// the same goroutine's stack, never across a suspend.
var threadLocal struct {
	c *Channel
}

// CurrentChannel returns the Channel installed by the nearest enclosing
// Run call on this goroutine, or nil.
func CurrentChannel() *Channel { return threadLocal.c }

// Run is the dispatch loop (§4.5.2), the single public entry point for the
// executor. It is designed to be invoked multiple times over the life of a
// single request — once per dispatch — deciding each time whether it is
// handling the initial request, a resumed async dispatch, or cleanup.
func (c *Channel) Run() {
	prev := threadLocal.c
	threadLocal.c = c
	defer func() { threadLocal.c = prev }()

	if !c.state.handling() {
		if st := c.state.getState(); st == stateCompleting || st == stateCompleted {
			c.runCompletionPhase()
		}
		return
	}
	c.events.dispatch(EventHandling)

	for c.Connector.Running() {
		c.req.SetHandled(false)
		c.resp.output.reset()

		outcome := c.dispatchOnce()

		switch outcome {
		case dispatchSuspended:
			// swallow silently, per §4.5.2.d — the application suspended.
		case dispatchEOF:
			c.state.error(ErrSeveredInput)
			c.req.SetHandled(true)
		case dispatchFailed:
			// recorded by dispatchOnce already; route to exception mapping.
		}

		if c.state.unhandle() {
			// Suspended: a later Dispatch brings the Channel back.
			break
		}
		if c.state.getState() != stateDispatched {
			// Completing: leave the loop for the completion phase.
			break
		}
	}

	if c.state.isCompleting() {
		c.runCompletionPhase()
	}
}

type dispatchOutcome int

const (
	dispatchOK dispatchOutcome = iota
	dispatchSuspended
	dispatchEOF
	dispatchFailed
)

// dispatchOnce runs exactly one application invocation (§4.5.2.b/c),
// translating a panic (the idiomatic-Go analogue of the source catching an
// application exception, §9 Design Notes) into a dispatchOutcome instead of
// unwinding the goroutine.
func (c *Channel) dispatchOnce() (outcome dispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = pkgerrors.Errorf("panic: %v", r)
			}
			if err == io.EOF {
				outcome = dispatchEOF
				return
			}
			c.state.error(err)
			c.req.SetHandled(true)
			c.handleException(err)
			outcome = dispatchFailed
		}
	}()

	if c.state.isInitial() {
		c.req.SetDispatcherType(DispatcherRequest)
		c.Connector.Server.Handle(c)
	} else {
		c.req.SetDispatcherType(DispatcherAsync)
		c.Connector.Server.HandleAsync(c)
	}

	if c.state.isSuspended() {
		return dispatchSuspended
	}
	return dispatchOK
}

// runCompletionPhase is §4.5.2.4: finalise state, patch up the
// 100-continue-promised-but-unused case, default to 404 if nothing ever
// handled the request, complete the response, and notify the transport.
func (c *Channel) runCompletionPhase() {
	c.state.completed()

	if c.expect100Continue {
		c.expect100Continue = false
		if !c.isCommitted() {
			c.resp.fields.Set(hdr.Connection, DoClose)
			c.req.SetPersistent(false)
		} else {
			c.log().Debug("100-continue promised but response already committed")
		}
	}

	if !c.isCommitted() && !c.req.Handled() {
		if err := c.resp.SendError(StatusNotFound, StatusText(StatusNotFound)); err != nil {
			c.log().WithError(err).Debug("404 fallback commit failed")
		}
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log().WithField("panic", r).Debug("response completion failed")
			}
		}()
		if err := c.resp.Complete(); err != nil {
			c.log().WithError(err).Debug("response completion failed")
		}
	}()

	c.req.SetHandled(true)
	c.events.dispatch(EventCompleted)
	if c.Transport != nil && c.state.notify() {
		c.Transport.ChannelCompleted()
	}
}

// ---- §4.5.3 100-continue protocol ----------------------------------------

// Continue100 implements continue_100(available_bytes): called when the
// application first asks for the input stream. If the client demanded
// 100-continue and nothing has arrived yet, it commits an interim 100
// response with no body (§4.5.3, §8 boundary #14).
func (c *Channel) Continue100(availableBytes int) error {
	if !c.expect100Continue {
		return nil
	}
	c.expect100Continue = false
	if availableBytes != 0 {
		return nil
	}
	if c.isCommitted() {
		return wrapf(ErrCommitted, "continue_100 on committed response")
	}
	info := &ResponseInfo{
		Version:       c.req.version,
		Headers:       hdr.Header{},
		ContentLength: -1,
		Status:        StatusContinue,
		Reason:        StatusText(StatusContinue),
	}
	if !c.tryCommit() {
		c.metrics.incCommit("race_lost")
		return wrapf(ErrCommitRace, "continue_100")
	}
	c.metrics.incCommit("committed")
	err := c.Transport.Commit(info, nil, false)
	// A 1xx response is interim: release the commit flag so the final
	// response can still be committed.
	atomic.StoreInt32(&c.committed, 0)
	return err
}

// ---- §4.5.4 exception mapping ---------------------------------------------

// handleException implements handle_exception (§4.5.4, §7
// APPLICATION_FAILURE). If the application had already suspended and a
// later thread threw, this commits a synthetic 500 directly, bypassing any
// error-page handler and the Response output stream. Otherwise it records
// the error on the Request's attributes and routes through
// Response.SendError so a configured error handler (external to this core)
// can render the page.
func (c *Channel) handleException(cause error) {
	if c.state.isSuspended() {
		info := &ResponseInfo{
			Version:       HTTP1_1,
			Headers:       hdr.Header{},
			ContentLength: 0,
			Status:        StatusInternalErr,
			Reason:        StatusText(StatusInternalErr),
		}
		if !c.tryCommit() {
			c.log().WithError(cause).Debug("exception after suspend: already committed, dropping")
			return
		}
		c.metrics.incCommit("committed")
		if err := c.Transport.Commit(info, nil, true); err != nil {
			c.log().WithError(err).Debug("exception commit failed")
		}
		return
	}

	c.req.SetAttribute(AttrErrorException, cause)
	c.req.SetAttribute(AttrErrorExceptionType, errorTypeName(cause))
	if err := c.resp.SendError(StatusInternalErr, cause.Error()); err != nil {
		c.log().WithError(err).WithFields(logrus.Fields{"cause": cause}).Debug("send_error failed")
	}
}

func errorTypeName(err error) string {
	if err == nil {
		return "error"
	}
	type named interface{ Name() string }
	if n, ok := err.(named); ok {
		return n.Name()
	}
	return reflect.TypeOf(err).String()
}

// ---- §4.5.5 commit routing -------------------------------------------------

// commitResponse implements commit_response: CAS the committed flag, and on
// the winning side invoke Transport.Commit (§4.5.5, §8 invariant #1).
func (c *Channel) commitResponse(info *ResponseInfo, content []byte, complete bool) bool {
	if !c.tryCommit() {
		c.metrics.incCommit("race_lost")
		return false
	}
	c.metrics.incCommit("committed")
	c.events.dispatch(EventCommitted)
	if err := c.Transport.Commit(info, content, complete); err != nil {
		c.log().WithError(err).Debug("transport commit failed")
	}
	return true
}

// write implements write(content, complete): straight through to the
// transport once committed, otherwise build a ResponseInfo and attempt the
// commit (§4.5.5). Losing the CAS here means another caller committed
// concurrently, surfaced as ErrCommitRace ("concurrent commit").
func (c *Channel) write(content []byte, complete bool) error {
	if c.isCommitted() {
		return c.Transport.Write(content, complete)
	}
	info := c.resp.newResponseInfo(c.req.version, c.req.Method() == HEAD)
	if !c.commitResponse(info, content, complete) {
		return wrapf(ErrCommitRace, "write")
	}
	return nil
}
