/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package channel

import "github.com/sirupsen/logrus"

// logger is threaded down to the coordinator the way the teacher threads a
// single *log.Logger through Server.ErrorLog and srv.logf (types_server.go,
// conn.go). Here it's a *logrus.Logger so call sites can attach structured
// fields instead of building Sprintf strings.
//
// A nil *Channel.logger is replaced by logrus.StandardLogger() the first
// time it's needed, mirroring the teacher's "If nil, logging goes to
// os.Stderr via the log package's standard logger" comment on ErrorLog.
func (c *Channel) log() *logrus.Entry {
	l := c.logger
	if l == nil {
		l = logrus.StandardLogger()
	}
	return l.WithFields(logrus.Fields{
		"state":            c.state.getState().String(),
		"requests_handled": c.requestsHandled,
	})
}
