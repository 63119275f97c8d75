/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import (
	"net"
	"time"

	"github.com/spf13/viper"
)

// Configuration holds the channel's policy knobs. Only SendDateHeader is
// read in this package (by HeaderComplete); the dispatch loop has no
// customisation step, and MaxHeaderBytes, IdleTimeout and
// Http10KeepAliveOK are not read by any code here. The teacher never factored this
// out — its Server struct fields (ReadTimeout, MaxHeaderBytes, ...) are the
// configuration — so this is shaped after that same field set, but loaded
// through viper the way the rest of the retrieved pack loads server
// configuration, instead of being hand-built as a struct literal.
type Configuration struct {
	MaxHeaderBytes    int
	SendDateHeader    bool
	IdleTimeout       time.Duration
	Http10KeepAliveOK bool
}

// DefaultConfiguration mirrors the teacher's zero-value-is-valid posture
// (types_server.go: "The zero value for Server is a valid configuration")
// so tests never need a viper instance at hand.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		MaxHeaderBytes:    1 << 20,
		SendDateHeader:    true,
		IdleTimeout:       0,
		Http10KeepAliveOK: true,
	}
}

// LoadConfiguration reads Configuration from v, falling back to
// DefaultConfiguration's values for anything v doesn't set. A nil v returns
// DefaultConfiguration unchanged.
func LoadConfiguration(v *viper.Viper) *Configuration {
	cfg := DefaultConfiguration()
	if v == nil {
		return cfg
	}
	v.SetDefault("max_header_bytes", cfg.MaxHeaderBytes)
	v.SetDefault("send_date_header", cfg.SendDateHeader)
	v.SetDefault("idle_timeout", cfg.IdleTimeout)
	v.SetDefault("http10_keepalive_ok", cfg.Http10KeepAliveOK)

	cfg.MaxHeaderBytes = v.GetInt("max_header_bytes")
	cfg.SendDateHeader = v.GetBool("send_date_header")
	cfg.IdleTimeout = v.GetDuration("idle_timeout")
	cfg.Http10KeepAliveOK = v.GetBool("http10_keepalive_ok")
	return cfg
}

// Endpoint is the borrowed local/remote address + I/O collaborator (§3).
// The actual I/O (reading/writing the socket) belongs to the transport;
// Endpoint here is just the addressing half the Channel and its
// Configuration need (e.g. for logging, or host/port defaulting).
type Endpoint struct {
	Local  net.Addr
	Remote net.Addr
}

// Connector bundles the executor/scheduler/server handle the Channel
// borrows (§3). The dispatch loop's "is the server still running" check
// (§4.5.2.3) and the scheduler-driven expired() timeout (§5) both come
// through here.
type Connector struct {
	Server Server

	// Schedule arranges for fn to run after d, returning a cancel
	// function. It stands in for the connector's scheduler (§5); a real
	// connector would back this with a timer wheel, tests back it with
	// time.AfterFunc or a manual trigger.
	Schedule func(d time.Duration, fn func()) (cancel func())
}

// Running reports whether the borrowed Server is still accepting dispatch
// loop iterations (§4.5.2.3). A nil Connector (as in many unit tests) is
// always considered running.
func (c *Connector) Running() bool {
	if c == nil || c.Server == nil {
		return true
	}
	return c.Server.Running()
}
