// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpctest provides an in-memory host connection for tests of
// code built on package rpc.
//
// A [Conn] records everything the code under test sends and delivers
// whatever the test (playing the host) queues with [Conn.Deliver]. An
// optional [Responder] answers each sent message synchronously, which
// is how command round trips are scripted.
package rpctest

import (
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"
)

// Responder computes the host's replies to one sent payload.
type Responder func(request Request) []any

// Request is a sent message decoded for inspection.
type Request struct {
	Nonce string          `json:"nonce"`
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Args  json.RawMessage `json:"args"`
	Raw   []byte          `json:"-"`
}

// DecodeArgs unmarshals the request's args.
func (r Request) DecodeArgs(v any) error {
	return json.Unmarshal(r.Args, v)
}

type delivery struct {
	payload []byte
	err     error
}

// Conn is an in-memory rpc.Conn.
type Conn struct {
	inbox  chan delivery
	closed chan struct{}
	once   sync.Once

	mu        sync.Mutex
	sent      []Request
	sentAdded chan struct{}
	sendError error
	responder Responder
}

// NewConn returns an open Conn.
func NewConn() *Conn {
	return &Conn{
		inbox:     make(chan delivery, 256),
		closed:    make(chan struct{}),
		sentAdded: make(chan struct{}, 1),
	}
}

// Send records payload and runs the responder.
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.closed:
		return net.ErrClosed
	default:
	}

	c.mu.Lock()
	if c.sendError != nil {
		err := c.sendError
		c.mu.Unlock()
		return err
	}
	request := Request{Raw: append([]byte(nil), payload...)}
	if err := json.Unmarshal(payload, &request); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("rpctest: sent payload is not JSON: %w", err)
	}
	c.sent = append(c.sent, request)
	responder := c.responder
	c.mu.Unlock()

	select {
	case c.sentAdded <- struct{}{}:
	default:
	}

	if responder != nil {
		for _, reply := range responder(request) {
			c.Deliver(reply)
		}
	}
	return nil
}

// Receive returns the next delivered message, or net.ErrClosed once
// the connection is closed and every queued message has been read.
func (c *Conn) Receive() ([]byte, error) {
	select {
	case item := <-c.inbox:
		return item.payload, item.err
	default:
	}
	select {
	case item := <-c.inbox:
		return item.payload, item.err
	case <-c.closed:
		return nil, net.ErrClosed
	}
}

// Close closes the connection. Idempotent.
func (c *Conn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// Deliver queues a message from the host. message may be []byte, a
// string of JSON, or any value to be JSON-encoded.
func (c *Conn) Deliver(message any) {
	var payload []byte
	switch value := message.(type) {
	case []byte:
		payload = value
	case string:
		payload = []byte(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			panic(fmt.Sprintf("rpctest: encoding delivery: %v", err))
		}
		payload = encoded
	}
	c.inbox <- delivery{payload: payload}
}

// DeliverError makes the next Receive fail with err.
func (c *Conn) DeliverError(err error) {
	c.inbox <- delivery{err: err}
}

// SetSendError makes every later Send fail with err (nil restores).
func (c *Conn) SetSendError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendError = err
}

// SetResponder installs the host's reply logic.
func (c *Conn) SetResponder(responder Responder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responder = responder
}

// Sent returns every message sent so far.
func (c *Conn) Sent() []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Request(nil), c.sent...)
}

// SentCommands returns "CMD" or "CMD EVT" for each sent message, in
// order.
func (c *Conn) SentCommands() []string {
	var result []string
	for _, request := range c.Sent() {
		if request.Evt != "" {
			result = append(result, request.Cmd+" "+request.Evt)
		} else {
			result = append(result, request.Cmd)
		}
	}
	return result
}

// WaitForSent blocks until at least count messages have been sent or
// timeout passes, and returns what was sent.
func (c *Conn) WaitForSent(count int, timeout time.Duration) ([]Request, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		sent := c.Sent()
		if len(sent) >= count {
			return sent, nil
		}
		select {
		case <-c.sentAdded:
		case <-timer.C:
			return sent, fmt.Errorf("rpctest: %d messages sent after %v, want %d", len(sent), timeout, count)
		}
	}
}

// Reply builds a reply to request with the given data.
func Reply(request Request, data any) map[string]any {
	return map[string]any{
		"cmd":   request.Cmd,
		"evt":   nil,
		"nonce": request.Nonce,
		"data":  data,
	}
}

// ErrorReply builds an ERROR reply to request.
func ErrorReply(request Request, code int, message string) map[string]any {
	return map[string]any{
		"cmd":   request.Cmd,
		"evt":   "ERROR",
		"nonce": request.Nonce,
		"data":  map[string]any{"code": code, "message": message},
	}
}

// Dispatch builds a push event.
func Dispatch(event string, data any) map[string]any {
	return map[string]any{
		"cmd":   "DISPATCH",
		"evt":   event,
		"nonce": nil,
		"data":  data,
	}
}
