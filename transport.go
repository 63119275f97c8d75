/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

// Transport is the narrow sink the Channel commits responses through
// (§4.4). It is an external collaborator — this core never frames or
// flushes bytes to a socket itself, it only calls these three operations in
// the order §4.5.5 describes.
type Transport interface {
	// Commit serialises info as HTTP response headers, appends content
	// (may be nil) and, if complete, finalises the response. Called at
	// most once per request (§8 invariant #1).
	Commit(info *ResponseInfo, content []byte, complete bool) error

	// Write appends further content after commit; if complete, finalise.
	// Blocking by contract (§4.4).
	Write(content []byte, complete bool) error

	// ChannelCompleted notifies the transport that the channel has
	// finished its active phase, so it may release resources or begin
	// reading the next request.
	ChannelCompleted()
}
