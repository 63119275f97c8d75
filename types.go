/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "github.com/badu/httpchannel/hdr"

// Request methods. Kept as plain string constants the way the teacher keeps
// its method table (types_strings.go), rather than as an enum-only type, so
// a raw method string arriving from the parser never needs an allocation to
// compare against the known set.
const (
	GET     = "GET"
	HEAD    = "HEAD"
	POST    = "POST"
	PUT     = "PUT"
	DELETE  = "DELETE"
	CONNECT = "CONNECT"
	OPTIONS = "OPTIONS"
	TRACE   = "TRACE"
	PATCH   = "PATCH"

	HTTP1_0 = "HTTP/1.0"
	HTTP1_1 = "HTTP/1.1"
	HTTP0_9 = "HTTP/0.9"

	DoClose     = "close"
	DoKeepAlive = "keep-alive"

	token100Continue   = "100-continue"
	token102Processing = "102-processing"
)

// DispatcherType tags why the dispatch loop is running the application this
// time (§4.5.2.b/c of the spec).
type DispatcherType int

const (
	DispatcherNone DispatcherType = iota
	DispatcherRequest
	DispatcherAsync
)

func (d DispatcherType) String() string {
	switch d {
	case DispatcherRequest:
		return "REQUEST"
	case DispatcherAsync:
		return "ASYNC"
	default:
		return "NONE"
	}
}

// Status codes the coordinator itself produces. A handler is free to set any
// other status through Response; this is not an exhaustive status table,
// only the ones named by the spec's error handling design (§7).
const (
	StatusContinue           = 100
	StatusOK                 = 200
	StatusBadRequest         = 400
	StatusExpectationFailed  = 417
	StatusNotFound           = 404
	StatusInternalErr        = 500
	StatusServiceUnavailable = 503
)

var statusText = map[int]string{
	StatusContinue:           "Continue",
	StatusOK:                 "OK",
	StatusBadRequest:         "Bad Request",
	StatusExpectationFailed:  "Expectation Failed",
	StatusNotFound:           "Not Found",
	StatusInternalErr:        "Internal Server Error",
	StatusServiceUnavailable: "Service Unavailable",
}

// StatusText returns a text for the HTTP status code, or "" if unknown to
// this table. Handlers that set a status outside this table should supply
// their own reason phrase via Response.SetStatus.
func StatusText(code int) string {
	return statusText[code]
}

// Request attribute keys set by the coordinator's exception mapping
// (§4.5.4). Mirrors the teacher's convention of exporting well-known
// attribute/context keys as typed constants (SrvCtxtKey, LocalAddrContextKey
// in types_server.go) rather than bare strings.
const (
	AttrErrorException     = "error.exception"
	AttrErrorExceptionType = "error.exception.type"
)

// Server is the application surface the dispatch loop invokes (§4.5.2,
// §6). It is the "servlet/filter/handler tree" the spec calls an external
// collaborator: the core only needs to be able to call into it and ask
// whether it is still accepting work.
type Server interface {
	// Handle serves the initial pass of a request.
	Handle(c *Channel)
	// HandleAsync serves a resumed (async) pass of a request.
	HandleAsync(c *Channel)
	// Running reports whether the server is still accepting dispatch
	// loop iterations; false causes the loop to stop without handling.
	Running() bool
}

// ServerFunc adapts a plain function to Server for the common case where a
// resumed dispatch is handled identically to the initial one, the way the
// teacher's HandlerFunc adapts a function to Handler.
type ServerFunc func(c *Channel)

func (f ServerFunc) Handle(c *Channel)      { f(c) }
func (f ServerFunc) HandleAsync(c *Channel) { f(c) }
func (f ServerFunc) Running() bool          { return true }

// headerFields returns a fresh, empty header multimap. newRequest and
// newResponse call hdr.NewFields directly; nothing in this package calls
// this helper.
func headerFields() *hdr.Fields {
	return hdr.NewFields()
}
