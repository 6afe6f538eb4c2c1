// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

// ErrClosedByHost matches every *CloseError via errors.Is.
var ErrClosedByHost = errors.New("ipc: connection closed by host")

// CloseError carries the host's close frame.
type CloseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("ipc: closed by host (code %d): %s", e.Code, e.Message)
}

func (e *CloseError) Is(target error) bool { return target == ErrClosedByHost }

// Conn is a handshaken connection to the host. Send and Receive may be
// called from different goroutines; concurrent Receive calls are
// serialized.
type Conn struct {
	conn   net.Conn
	logger *slog.Logger

	writeMutex sync.Mutex
	readMutex  sync.Mutex
}

// NewConn wraps an established connection. It performs no handshake;
// use Dial for that.
func NewConn(conn net.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = slog.Default()
	}
	return &Conn{conn: conn, logger: logger}
}

// Send writes payload as an OpFrame.
func (c *Conn) Send(payload []byte) error {
	return c.writeFrame(OpFrame, payload)
}

func (c *Conn) writeFrame(opcode Opcode, body []byte) error {
	c.writeMutex.Lock()
	defer c.writeMutex.Unlock()
	return WriteFrame(c.conn, opcode, body)
}

// Receive returns the body of the next OpFrame. Pings are answered with
// a pong carrying the same body, stray pongs are dropped, and a close
// frame ends the connection with a *CloseError.
func (c *Conn) Receive() ([]byte, error) {
	c.readMutex.Lock()
	defer c.readMutex.Unlock()

	for {
		opcode, body, err := ReadFrame(c.conn)
		if err != nil {
			return nil, err
		}
		switch opcode {
		case OpFrame:
			return body, nil
		case OpPing:
			if err := c.writeFrame(OpPong, body); err != nil {
				return nil, fmt.Errorf("answering ping: %w", err)
			}
		case OpPong:
		case OpClose:
			closeError := &CloseError{}
			if err := json.Unmarshal(body, closeError); err != nil {
				closeError.Message = string(body)
			}
			return nil, closeError
		default:
			c.logger.Debug("ignoring unexpected ipc frame", "opcode", opcode.String(), "length", len(body))
		}
	}
}

// SetReadDeadline bounds the next Receive. A zero time clears it.
func (c *Conn) SetReadDeadline(deadline time.Time) error {
	return c.conn.SetReadDeadline(deadline)
}

// Close sends a best-effort close frame and closes the socket.
func (c *Conn) Close() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(100 * time.Millisecond))
	_ = c.writeFrame(OpClose, []byte(`{}`))
	return c.conn.Close()
}
