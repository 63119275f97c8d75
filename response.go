/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"github.com/badu/httpchannel/hdr"
)

// ResponseInfo is the immutable snapshot produced at commit time (§3, §4.3
// new_response_info, GLOSSARY). Grounded on the teacher's createWriter /
// extraHeader split in response.go and response_server.go, collapsed into
// one value type since this core hands it to a Transport rather than
// serialising it itself.
type ResponseInfo struct {
	Version       string
	Headers       hdr.Header
	ContentLength int64 // -1 means unknown/unset
	Status        int
	Reason        string
	IsHead        bool
}

// Response accumulates response headers/status and owns the Output stream
// (§4.3). Committed is a read-only reflection of Channel.committed: the
// Response never flips its own commit flag, it only ever asks the Channel
// to try.
type Response struct {
	channel *Channel

	status int
	reason string
	fields *hdr.Fields

	output *Output

	written       int64
	contentLength int64 // -1 if unset; not read from a Content-Length header, so it stays -1
}

func newResponse(c *Channel) *Response {
	r := &Response{
		channel:       c,
		status:        StatusOK,
		fields:        hdr.NewFields(),
		contentLength: -1,
	}
	r.output = &Output{resp: r}
	return r
}

// HTTPFields returns the header multimap (§4.3 get_http_fields). Mutations
// made once IsCommitted() is true are not rejected and no error is reported
// for them; they do not reach the committed ResponseInfo. SetStatus, unlike
// the multimap, refuses outright once committed (see SetStatus).
func (r *Response) HTTPFields() *hdr.Fields { return r.fields }

// IsCommitted reflects the Channel's committed flag (§4.3).
func (r *Response) IsCommitted() bool { return r.channel.isCommitted() }

// SetStatus sets the status code and, optionally, a reason phrase. Once
// committed this is a COMMITTED error (§4.3 invariant, §7).
func (r *Response) SetStatus(code int, reason string) error {
	if r.IsCommitted() {
		return wrapf(ErrCommitted, "SetStatus(%d)", code)
	}
	r.status = code
	if reason == "" {
		reason = StatusText(code)
	}
	r.reason = reason
	return nil
}

func (r *Response) Status() int     { return r.status }
func (r *Response) Reason() string  { return r.reason }
func (r *Response) Written() int64  { return r.written }

// HTTPOutput returns an output stream whose writes route through the
// Channel's write(buffer, complete) (§4.3 get_http_output).
func (r *Response) HTTPOutput() *Output { return r.output }

// newResponseInfo produces the immutable snapshot used at the moment of
// commit (§4.3, GLOSSARY). version/isHead are supplied by the Channel,
// which knows the request's protocol version and method; Response only
// knows about its own headers/status/length.
func (r *Response) newResponseInfo(version string, isHead bool) *ResponseInfo {
	return &ResponseInfo{
		Version:       version,
		Headers:       r.fields.Header(),
		ContentLength: r.contentLength,
		Status:        r.status,
		Reason:        r.reason,
		IsHead:        isHead,
	}
}

// SendError sets an error status and a minimal plain-text body, the
// coordinator's answer when an application handler fails without having
// suspended (§4.5.4, §7 APPLICATION_FAILURE). Grounded on the teacher's
// sendExpectationFailed (response_server.go), generalised to an arbitrary
// status.
func (r *Response) SendError(code int, msg string) error {
	if r.IsCommitted() {
		return wrapf(ErrCommitted, "SendError(%d)", code)
	}
	if err := r.SetStatus(code, ""); err != nil {
		return err
	}
	if msg == "" {
		msg = r.reason
	}
	r.fields.Set(hdr.ContentType, "text/plain; charset=utf-8")
	_, err := r.output.Write([]byte(msg))
	return err
}

// bodyAllowedForStatus reports whether a response of this status may carry
// a body (RFC 7230 §3.3), grounded on the teacher's utils_response.go
// function of the same name.
func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == 204:
		return false
	case status == 304:
		return false
	}
	return true
}

// Complete flushes remaining buffered output and instructs the transport to
// finalise the response (§4.3 complete). It is always safe to call more
// than once; only the first call does anything.
func (r *Response) Complete() error {
	return r.output.finish()
}

// recycle resets status, headers and output buffer for the next request on
// a persistent connection (§4.3).
func (r *Response) recycle() {
	r.status = StatusOK
	r.reason = ""
	r.fields.Reset()
	r.written = 0
	r.contentLength = -1
	r.output.reset()
}
