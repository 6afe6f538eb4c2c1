// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/vcstatus/vcstatus/lib/codec"
)

const (
	dialTimeout         = 5 * time.Second
	responseReadTimeout = 45 * time.Second
	maxResponseSize     = 1 << 20
)

// ServiceError is an {ok: false} reply.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("daemon rejected %q: %s", e.Action, e.Message)
}

// ServiceClient talks to a control socket. Each Call or Stream opens
// its own connection.
type ServiceClient struct {
	socketPath string
}

// NewServiceClient returns a client for socketPath.
func NewServiceClient(socketPath string) *ServiceClient {
	return &ServiceClient{socketPath: socketPath}
}

// SocketPath returns the socket the client dials.
func (c *ServiceClient) SocketPath() string { return c.socketPath }

// Call sends action with fields and decodes any response data into
// result. Failures reported by the server are *ServiceError; transport
// failures are plain errors.
func (c *ServiceClient) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		return err
	}
	defer conn.Close()

	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("calling %q on %s: reading response: %w", action, c.socketPath, err)
	}
	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// Stream starts a stream action. Cancelling ctx closes the stream.
func (c *ServiceClient) Stream(ctx context.Context, action string, fields map[string]any) (*StreamReader, error) {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		return nil, err
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	reader := &StreamReader{conn: conn, decoder: codec.NewDecoder(conn), stop: stop}

	var response Response
	if err := reader.decoder.Decode(&response); err != nil {
		reader.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("starting %q on %s: %w", action, c.socketPath, err)
	}
	if !response.OK {
		reader.Close()
		return nil, &ServiceError{Action: action, Message: response.Error}
	}
	return reader, nil
}

func (c *ServiceClient) dial(ctx context.Context, action string, fields map[string]any) (net.Conn, error) {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("calling %q on %s: connecting: %w", action, c.socketPath, err)
	}
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("calling %q on %s: writing request: %w", action, c.socketPath, err)
	}
	return conn, nil
}

// StreamReader reads the values of a stream.
type StreamReader struct {
	conn    net.Conn
	decoder *codec.Decoder
	stop    func() bool
}

// Next decodes the next value into v. It returns io.EOF when the
// server ends the stream.
func (r *StreamReader) Next(v any) error {
	return r.decoder.Decode(v)
}

// Close ends the stream.
func (r *StreamReader) Close() error {
	r.stop()
	return r.conn.Close()
}
