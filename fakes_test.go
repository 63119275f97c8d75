/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"sync"
	"time"
)

// timeoutCh returns a channel that fires shortly, used by tests that wait
// on an event-driven signal instead of sleeping and hoping.
func timeoutCh() <-chan time.Time {
	return time.After(time.Second)
}

type commitCall struct {
	info     *ResponseInfo
	content  []byte
	complete bool
}

type writeCall struct {
	content  []byte
	complete bool
}

// fakeTransport records every call it receives, standing in for a real
// socket-facing Transport the way an in-memory ResponseRecorder stands in
// for a live connection in the teacher's own tests.
type fakeTransport struct {
	mu          sync.Mutex
	commits     []commitCall
	writes      []writeCall
	completions int
	commitErr   error
	writeErr    error
}

func (f *fakeTransport) Commit(info *ResponseInfo, content []byte, complete bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commits = append(f.commits, commitCall{info: info, content: append([]byte(nil), content...), complete: complete})
	return f.commitErr
}

func (f *fakeTransport) Write(content []byte, complete bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, writeCall{content: append([]byte(nil), content...), complete: complete})
	return f.writeErr
}

func (f *fakeTransport) ChannelCompleted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completions++
}

// fakeServer is a minimal Server whose Handle/HandleAsync delegate to
// caller-supplied functions, standing in for the application/servlet tree
// (§6) this core dispatches into.
type fakeServer struct {
	mu          sync.Mutex
	handle      func(c *Channel)
	handleAsync func(c *Channel)
	running     bool
}

func newFakeServer(handle func(c *Channel)) *fakeServer {
	return &fakeServer{handle: handle, running: true}
}

func (s *fakeServer) Handle(c *Channel) {
	if s.handle != nil {
		s.handle(c)
	}
}

func (s *fakeServer) HandleAsync(c *Channel) {
	if s.handleAsync != nil {
		s.handleAsync(c)
		return
	}
	if s.handle != nil {
		s.handle(c)
	}
}

func (s *fakeServer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *fakeServer) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}
