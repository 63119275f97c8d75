/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "sync"

// ChannelEventType names a point in the dispatch loop tests may want to
// synchronise on without racing the dispatching goroutine directly.
// Adapted from the teacher's srvEvDispatcher (types_http.go,
// server_event_emitter.go) — there it exists "to get rid of the
// dependencies on fakeLocker and all the test hooks" for net/http's client
// round-trip loop; here the same channel-based pub/sub watches the
// suspend/redispatch/commit/complete points of a Channel instead of a
// client's RoundTrip.
type ChannelEventType int

const (
	killListeners ChannelEventType = iota
	EventHandling
	EventSuspended
	EventDispatched
	EventCommitted
	EventCompleted
)

type eventListener struct {
	ch chan ChannelEventType
}

// eventDispatcher fans a ChannelEventType out to every registered listener,
// dropping the event for any listener whose buffered channel is still full
// rather than blocking the dispatch loop (same non-blocking send as the
// teacher's srvEvDispatcher.Dispatch).
type eventDispatcher struct {
	mu   sync.RWMutex
	lsns map[ChannelEventType][]eventListener
}

func newEventDispatcher() *eventDispatcher {
	return &eventDispatcher{lsns: map[ChannelEventType][]eventListener{}}
}

func (d *eventDispatcher) dispatch(event ChannelEventType) {
	if d == nil {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, l := range d.lsns[event] {
		select {
		case l.ch <- event:
		default:
		}
	}
}

func (d *eventDispatcher) on(event ChannelEventType) chan ChannelEventType {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan ChannelEventType, 1)
	d.lsns[event] = append(d.lsns[event], eventListener{ch: ch})
	return ch
}

// EventHandler runs f once the next time eventType fires on events, the way
// the teacher's ListenTestEvent/ServerEventHandler.Next does for its
// client-side test hooks. willRemount controls whether it re-arms after
// firing.
type EventHandler struct {
	sync.WaitGroup
	ch          chan ChannelEventType
	handler     func()
	eventType   ChannelEventType
	willRemount bool
}

func (h *EventHandler) next() {
	h.Add(1)
	go func() {
		defer h.Done()
		switch <-h.ch {
		case h.eventType:
			h.handler()
		case killListeners:
			h.willRemount = false
		}
	}()
	h.Wait()
	if h.willRemount {
		go h.next()
	}
}

// Kill stops the handler from re-arming after its current wait returns.
func (h *EventHandler) Kill() { h.ch <- killListeners }

// ListenOnce runs f the next time eventType fires on the Channel, and never
// again. Intended for tests that need to observe a suspend/commit/complete
// point deterministically instead of sleeping.
func (c *Channel) ListenOnce(eventType ChannelEventType, f func()) *EventHandler {
	if c.events == nil {
		c.events = newEventDispatcher()
	}
	h := &EventHandler{ch: c.events.on(eventType), handler: f, eventType: eventType, willRemount: false}
	go h.next()
	return h
}
