// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"time"

	"github.com/vcstatus/vcstatus/lib/ipc"
	"github.com/vcstatus/vcstatus/lib/netutil"
)

// Conn is one message-oriented connection to the host. Receive blocks
// until a whole message arrives or the connection fails; Close
// unblocks a pending Receive.
type Conn interface {
	Send(payload []byte) error
	Receive() ([]byte, error)
	Close() error
}

// deadlineConn is implemented by connections that support read
// deadlines, such as *ipc.Conn.
type deadlineConn interface {
	SetReadDeadline(deadline time.Time) error
}

// IsConnectionClosed reports whether err means the connection is gone
// for good (host closed it, socket EOF, or local Close) as opposed to
// one bad message.
func IsConnectionClosed(err error) bool {
	return errors.Is(err, ipc.ErrClosedByHost) || netutil.IsExpectedCloseError(err)
}
