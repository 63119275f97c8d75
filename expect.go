/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "strings"

// expectTokens interns the two Expect: values this core understands
// (§4.5.1 parsed_header/EXPECT). Grounded on the teacher's commonHeader
// interning table (hdr/types_header.go) — same idea, "look up the token in
// an interned value table" — applied to Expect tokens instead of header
// names.
var expectTokens = map[string]bool{
	token100Continue:   true,
	token102Processing: true,
}

// applyExpectToken updates the Channel's per-request expectation flags for
// a single Expect token (already trimmed). Unknown tokens set the generic
// expectUnsupported flag (§4.5.1).
func (c *Channel) applyExpectToken(tok string) {
	tok = strings.ToLower(strings.TrimSpace(tok))
	if tok == "" {
		return
	}
	if !expectTokens[tok] {
		c.expectUnsupported = true
		return
	}
	switch tok {
	case token100Continue:
		c.expect100Continue = true
	case token102Processing:
		c.expect102Process = true
	}
}

// applyExpectValue splits a single Expect header value on commas and
// applies each token (§4.5.1: "If the single token is 100-continue... If
// 102-processing... Otherwise split on ',', trim each token, and repeat the
// lookup per token").
func (c *Channel) applyExpectValue(value string) {
	tok := strings.ToLower(strings.TrimSpace(value))
	if expectTokens[tok] {
		c.applyExpectToken(tok)
		return
	}
	for _, part := range strings.Split(value, ",") {
		c.applyExpectToken(part)
	}
}

// parseCharset extracts the charset parameter from a Content-Type header
// value, e.g. "text/plain; charset=utf-8" -> "utf-8". Returns "" if absent.
// A narrow, single-purpose parser kept inline rather than pulled from a
// MIME library: the retrieved pack's MIME/multipart packages (teacher's
// mime/, dropped — see DESIGN.md) are about multipart form bodies, an
// entirely different concern from a three-token parameter grab.
func parseCharset(contentType string) string {
	parts := strings.Split(contentType, ";")
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "charset=") {
			v := p[len("charset="):]
			v = strings.Trim(v, `"`)
			return v
		}
	}
	return ""
}
