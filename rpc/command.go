// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/fault"
)

// CommandOptions configures a CommandChannel.
type CommandOptions struct {
	// ReplyTimeout bounds the wait for each reply when the connection
	// supports read deadlines. Zero means no deadline.
	ReplyTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// ErrCommandConnectionLost is wrapped by every Send after a reply read
// failed.
var ErrCommandConnectionLost = errors.New("rpc: command connection lost")

// CommandChannel runs request/response exchanges on its own
// connection. One exchange is in flight at a time.
type CommandChannel struct {
	conn         Conn
	replyTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger

	mu     sync.Mutex
	broken error

	failed   chan struct{}
	failOnce sync.Once
}

// NewCommandChannel takes ownership of conn.
func NewCommandChannel(conn Conn, options CommandOptions) *CommandChannel {
	if options.Clock == nil {
		options.Clock = clock.Real()
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &CommandChannel{
		conn:         conn,
		replyTimeout: options.ReplyTimeout,
		clock:        options.Clock,
		logger:       options.Logger,
		failed:       make(chan struct{}),
	}
}

// Send writes request and returns the reply carrying the same nonce.
// The channel is held for the whole exchange. Errors are *fault.Error:
// EventSend when the write fails, EventDecode when the read or decode
// fails or the reply deadline passes, EventReceive when the next
// message read is not the reply. A reply with evt ERROR is returned as
// a message; use Call to turn it into an error.
//
// A failed reply read closes the connection: every later Send fails
// with EventSend wrapping ErrCommandConnectionLost, and Failed is
// closed.
func (c *CommandChannel) Send(ctx context.Context, request Request) (*Message, error) {
	if request.Nonce == "" {
		return nil, fault.New(fault.EventSend, "%s request has no nonce", request.Command)
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return nil, fault.Wrap(fault.EventSend, err, "encoding %s", request.Command)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.broken != nil {
		return nil, fault.Wrap(fault.EventSend, c.broken, "sending %s", request.Command).WithPayload(payload)
	}
	if err := ctx.Err(); err != nil {
		return nil, fault.Wrap(fault.EventSend, err, "sending %s", request.Command).WithPayload(payload)
	}
	if err := c.conn.Send(payload); err != nil {
		return nil, fault.Wrap(fault.EventSend, err, "sending %s", request.Command).WithPayload(payload)
	}

	release := c.armDeadline(ctx)
	raw, err := c.conn.Receive()
	release()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w (%w)", ctxErr, err)
		}
		c.fail(request.Command, err)
		return nil, fault.Wrap(fault.EventDecode, err, "reading %s reply", request.Command).WithPayload(payload)
	}

	reply, err := DecodeMessage(raw)
	if err != nil {
		return nil, fault.Wrap(fault.EventDecode, err, "decoding %s reply", request.Command).WithPayload(raw)
	}
	if reply.Nonce != request.Nonce {
		c.logger.Warn("command reply nonce mismatch",
			"command", request.Command,
			"nonce", request.Nonce,
			"received_cmd", reply.Cmd,
			"received_evt", reply.Evt,
			"received_nonce", reply.Nonce,
		)
		return nil, fault.New(fault.EventReceive, "%s: expected reply with nonce %s, received %s %s with nonce %q",
			request.Command, request.Nonce, reply.Cmd, reply.Evt, reply.Nonce).WithPayload(raw)
	}
	return reply, nil
}

// fail marks the channel dead after a reply read for command failed.
// Caller holds c.mu.
func (c *CommandChannel) fail(command string, cause error) {
	c.broken = fmt.Errorf("%w: %s reply read failed: %w", ErrCommandConnectionLost, command, cause)
	c.logger.Warn("closing command connection after failed reply read",
		"command", command,
		"error", cause,
	)
	c.conn.Close()
	c.failOnce.Do(func() { close(c.failed) })
}

// Failed is closed once a reply read has failed and the connection has
// been closed. Close does not close it.
func (c *CommandChannel) Failed() <-chan struct{} {
	return c.failed
}

// Err returns the failure recorded when Failed was closed, or nil.
func (c *CommandChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.broken
}

// armDeadline applies the reply timeout and ctx's deadline to the next
// read, and makes ctx cancellation interrupt it. The returned function
// clears the deadline.
func (c *CommandChannel) armDeadline(ctx context.Context) func() {
	conn, ok := c.conn.(deadlineConn)
	if !ok {
		return func() {}
	}

	var deadline time.Time
	if c.replyTimeout > 0 {
		deadline = c.clock.Now().Add(c.replyTimeout)
	}
	if ctxDeadline, ok := ctx.Deadline(); ok && (deadline.IsZero() || ctxDeadline.Before(deadline)) {
		deadline = ctxDeadline
	}
	if !deadline.IsZero() {
		conn.SetReadDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	return func() {
		stop()
		conn.SetReadDeadline(time.Time{})
	}
}

// Call sends command with args, fails with a *ProtocolError when the
// reply is an ERROR, and decodes the reply data into result when result
// is non-nil.
func (c *CommandChannel) Call(ctx context.Context, command string, args any, result any) error {
	reply, err := c.Send(ctx, NewRequest(command, args))
	if err != nil {
		return err
	}
	if reply.Kind() == KindError {
		return protocolError(reply)
	}
	if result == nil {
		return nil
	}
	if err := reply.DecodeData(result); err != nil {
		return fault.Wrap(fault.EventDecode, err, "decoding %s reply", command).WithPayload(reply.Raw)
	}
	return nil
}

// Authenticate sends AUTHENTICATE and waits for the host to accept the
// token.
func (c *CommandChannel) Authenticate(ctx context.Context, accessToken string) (*AuthenticateData, error) {
	var data AuthenticateData
	if err := c.Call(ctx, CmdAuthenticate, AuthenticateArgs{AccessToken: accessToken}, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// Close closes the connection.
func (c *CommandChannel) Close() error {
	return c.conn.Close()
}

// IsProtocolError reports whether err is a host ERROR reply.
func IsProtocolError(err error) bool {
	var protocolError *ProtocolError
	return errors.As(err, &protocolError)
}
