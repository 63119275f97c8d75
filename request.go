/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"time"

	"github.com/badu/httpchannel/hdr"
	"github.com/badu/httpchannel/url"
)

// Request accumulates parsed request data and exposes it to the application
// (§4.2). The back-reference to the owning Channel is non-owning and only
// valid for the lifetime of the enclosing dispatch (§9 Design Notes, cyclic
// ownership).
type Request struct {
	channel *Channel

	methodEnum string
	methodRaw  string
	uri        *url.URL
	pathInfo   string
	version    string

	serverName string
	serverPort string

	fields *hdr.Fields

	input *Input

	timestamp      time.Time
	dispatcherType DispatcherType
	handled        bool
	persistent     bool
	charset        string

	attrs map[string]interface{}
}

func newRequest(c *Channel) *Request {
	return &Request{
		channel: c,
		fields:  hdr.NewFields(),
		attrs:   make(map[string]interface{}),
		input:   NewInput(0),
	}
}

// SetMethod records both the interned method token and the raw string the
// parser saw on the wire — the teacher keeps both a typed form and the
// original bytes for anything it can't fully trust (see Request.Method /
// RequestURI split in types_request.go).
func (r *Request) SetMethod(methodEnum, raw string) {
	r.methodEnum = methodEnum
	r.methodRaw = raw
}

func (r *Request) Method() string    { return r.methodEnum }
func (r *Request) RawMethod() string { return r.methodRaw }

func (r *Request) SetURI(u *url.URL) { r.uri = u }
func (r *Request) URI() *url.URL     { return r.uri }

func (r *Request) SetPathInfo(p string) { r.pathInfo = p }
func (r *Request) PathInfo() string     { return r.pathInfo }

func (r *Request) SetHTTPVersion(v string) { r.version = v }
func (r *Request) HTTPVersion() string     { return r.version }

// ProtoAtLeast reports whether the request's HTTP version is at least
// major.minor, mirroring the teacher's Response.ProtoAtLeast.
func (r *Request) ProtoAtLeast(major, minor int) bool {
	switch r.version {
	case HTTP1_1:
		return major < 1 || (major == 1 && minor <= 1)
	case HTTP1_0:
		return major < 1 || (major == 1 && minor == 0)
	default:
		return false
	}
}

func (r *Request) SetServerName(host string) { r.serverName = host }
func (r *Request) ServerName() string        { return r.serverName }

func (r *Request) SetServerPort(port string) { r.serverPort = port }
func (r *Request) ServerPort() string        { return r.serverPort }

// SetCharacterEncodingUnchecked installs a charset derived from the
// Content-Type header without validating it (§4.2): validation, if any, is
// deferred to whoever reads the body as text.
func (r *Request) SetCharacterEncodingUnchecked(cs string) { r.charset = cs }
func (r *Request) CharacterEncoding() string                { return r.charset }

func (r *Request) SetPersistent(p bool) { r.persistent = p }
func (r *Request) Persistent() bool     { return r.persistent }

func (r *Request) SetDispatcherType(t DispatcherType) { r.dispatcherType = t }
func (r *Request) DispatcherType() DispatcherType     { return r.dispatcherType }

func (r *Request) SetHandled(h bool) { r.handled = h }
func (r *Request) Handled() bool     { return r.handled }

func (r *Request) SetTimeStamp(t time.Time) { r.timestamp = t }
func (r *Request) TimeStamp() time.Time     { return r.timestamp }

func (r *Request) SetAttribute(key string, value interface{}) { r.attrs[key] = value }

func (r *Request) Attribute(key string) (interface{}, bool) {
	v, ok := r.attrs[key]
	return v, ok
}

// HTTPFields returns the header multimap for read and structured add
// (§4.2 get_http_fields). Returned by reference: while the Channel is
// DISPATCHED only the dispatched worker may mutate it (§3 invariant).
func (r *Request) HTTPFields() *hdr.Fields { return r.fields }

// HTTPInput returns the Input the Channel forwards body buffers to
// (§4.2 get_http_input).
func (r *Request) HTTPInput() *Input { return r.input }

// recycle resets every attribute, empties the multimap, zeroes timestamps
// and clears attributes (§4.2). Input is reset separately by the Channel,
// since its lifecycle (shutdown at message-complete/early-EOF) is distinct
// from the rest of the Request's fields.
func (r *Request) recycle() {
	r.methodEnum = ""
	r.methodRaw = ""
	r.uri = nil
	r.pathInfo = ""
	r.version = ""
	r.serverName = ""
	r.serverPort = ""
	r.fields.Reset()
	r.timestamp = time.Time{}
	r.dispatcherType = DispatcherNone
	r.handled = false
	r.persistent = false
	r.charset = ""
	for k := range r.attrs {
		delete(r.attrs, k)
	}
}
