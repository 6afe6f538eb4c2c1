// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vcstatus/vcstatus/lib/codec"
	"github.com/vcstatus/vcstatus/lib/netutil"
)

// ActionFunc handles a request-response action. raw is the complete
// CBOR request. A nil result yields {ok: true} with no data.
type ActionFunc func(ctx context.Context, raw []byte) (any, error)

// StreamFunc handles a stream action. It calls stream.Send for each
// value and returns when done. ctx is cancelled when the client
// disconnects or the server stops.
type StreamFunc func(ctx context.Context, raw []byte, stream *Stream) error

// Response is the envelope for every reply.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// SocketServer dispatches actions received on a Unix socket.
type SocketServer struct {
	socketPath string
	handlers   map[string]ActionFunc
	streams    map[string]StreamFunc
	logger     *slog.Logger

	activeConnections sync.WaitGroup
}

// NewSocketServer returns a server for socketPath. Register handlers
// before calling Serve.
func NewSocketServer(socketPath string, logger *slog.Logger) *SocketServer {
	if logger == nil {
		logger = slog.Default()
	}
	return &SocketServer{
		socketPath: socketPath,
		handlers:   make(map[string]ActionFunc),
		streams:    make(map[string]StreamFunc),
		logger:     logger,
	}
}

// Handle registers a request-response action. Duplicate registration
// panics.
func (s *SocketServer) Handle(action string, handler ActionFunc) {
	s.checkUnregistered(action)
	s.handlers[action] = handler
}

// HandleStream registers a stream action. Duplicate registration
// panics.
func (s *SocketServer) HandleStream(action string, handler StreamFunc) {
	s.checkUnregistered(action)
	s.streams[action] = handler
}

func (s *SocketServer) checkUnregistered(action string) {
	_, handled := s.handlers[action]
	_, streamed := s.streams[action]
	if handled || streamed {
		panic(fmt.Sprintf("service.SocketServer: duplicate handler for action %q", action))
	}
}

// Serve accepts connections until ctx is cancelled, then waits for
// in-flight handlers. A stale socket file is replaced; the socket file
// is removed on return.
func (s *SocketServer) Serve(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0700); err != nil {
		return fmt.Errorf("creating socket directory: %w", err)
	}
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		return fmt.Errorf("restricting %s: %w", s.socketPath, err)
	}

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("control socket listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(ctx, conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

const (
	readTimeout    = 30 * time.Second
	writeTimeout   = 10 * time.Second
	maxRequestSize = 256 << 10
)

func (s *SocketServer) handleConnection(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	var raw codec.RawMessage
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}

	var header struct {
		Action string `cbor:"action"`
	}
	if err := codec.Unmarshal(raw, &header); err != nil {
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if header.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	if handler, exists := s.handlers[header.Action]; exists {
		result, err := handler(ctx, []byte(raw))
		if err != nil {
			s.logger.Debug("action failed", "action", header.Action, "error", err)
			s.writeError(conn, err.Error())
			return
		}
		s.writeSuccess(conn, result)
		return
	}

	if handler, exists := s.streams[header.Action]; exists {
		s.serveStream(ctx, conn, header.Action, []byte(raw), handler)
		return
	}

	s.writeError(conn, fmt.Sprintf("unknown action %q", header.Action))
}

// serveStream runs a stream handler. The client sends nothing after
// its request, so any read completing (EOF or error) means it left.
func (s *SocketServer) serveStream(ctx context.Context, conn net.Conn, action string, raw []byte, handler StreamFunc) {
	conn.SetReadDeadline(time.Time{})

	streamContext, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		io.Copy(io.Discard, conn)
		cancel()
	}()

	stream := &Stream{conn: conn, encoder: codec.NewEncoder(conn)}
	err := handler(streamContext, raw, stream)
	if err == nil {
		if !stream.started {
			s.writeSuccess(conn, nil)
		}
		return
	}
	if stream.started {
		if !netutil.IsExpectedCloseError(err) && !errors.Is(err, context.Canceled) {
			s.logger.Warn("stream ended with error", "action", action, "error", err)
		}
		return
	}
	s.logger.Debug("stream action failed", "action", action, "error", err)
	s.writeError(conn, err.Error())
}

func (s *SocketServer) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{OK: false, Error: message}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

func (s *SocketServer) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	if result != nil {
		data, err := codec.Marshal(result)
		if err != nil {
			s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
			return
		}
		response.Data = data
	}
	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write success response", "error", err)
	}
}

// Stream writes values to a stream client. The {ok: true} envelope is
// written before the first value.
type Stream struct {
	conn    net.Conn
	encoder *codec.Encoder
	started bool
}

// Start writes the {ok: true} envelope now instead of with the first
// value, so a client waiting in ServiceClient.Stream returns before
// anything is available to send.
func (s *Stream) Start() error {
	if s.started {
		return nil
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.encoder.Encode(Response{OK: true}); err != nil {
		return err
	}
	s.started = true
	return nil
}

// Send writes one value.
func (s *Stream) Send(value any) error {
	if err := s.Start(); err != nil {
		return err
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.encoder.Encode(value)
}
