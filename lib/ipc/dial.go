// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// ErrNoHost is returned when no candidate socket accepts a connection.
var ErrNoHost = errors.New("ipc: no host application socket found")

// DialOptions locates and authenticates to the host.
type DialOptions struct {
	// ClientID is sent in the handshake.
	ClientID string

	SocketDirs   []string
	SocketPrefix string
	MaxIndex     int

	// AllowForeignPeer skips the check that the host process runs as
	// the current user.
	AllowForeignPeer bool

	Logger *slog.Logger
}

// Candidates lists socket paths in the order Dial tries them.
func (o DialOptions) Candidates() []string {
	var paths []string
	for _, directory := range o.SocketDirs {
		for index := 0; index <= o.MaxIndex; index++ {
			paths = append(paths, filepath.Join(directory, o.SocketPrefix+strconv.Itoa(index)))
		}
	}
	return paths
}

// Dial connects to the first candidate socket that completes the
// handshake. A candidate whose handshake fails is skipped; when none
// succeeds the last handshake error is returned, or ErrNoHost if no
// socket accepted a connection. The context deadline bounds the whole
// operation.
func Dial(ctx context.Context, options DialOptions) (*Conn, error) {
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if options.ClientID == "" {
		return nil, fmt.Errorf("ipc: client id is required")
	}

	var dialer net.Dialer
	var lastError error
	for _, path := range options.Candidates() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		rawConn, err := dialer.DialContext(ctx, "unix", path)
		if err != nil {
			logger.Debug("ipc candidate refused connection", "path", path, "error", err)
			continue
		}

		if !options.AllowForeignPeer {
			if err := checkPeer(rawConn); err != nil {
				rawConn.Close()
				return nil, fmt.Errorf("ipc: %s: %w", path, err)
			}
		}

		conn := NewConn(rawConn, logger)
		if err := handshake(ctx, rawConn, options.ClientID); err != nil {
			rawConn.Close()
			lastError = fmt.Errorf("ipc: handshake on %s: %w", path, err)
			if ctx.Err() != nil {
				return nil, lastError
			}
			logger.Warn("ipc candidate failed handshake", "path", path, "error", err)
			continue
		}
		logger.Info("connected to host ipc socket", "path", path)
		return conn, nil
	}
	if lastError != nil {
		return nil, lastError
	}
	return nil, ErrNoHost
}

type handshakeBody struct {
	Version  int    `json:"v"`
	ClientID string `json:"client_id"`
}

type readyFrame struct {
	Cmd  string          `json:"cmd"`
	Evt  string          `json:"evt"`
	Data json.RawMessage `json:"data"`
}

// handshake sends the handshake and waits for the READY dispatch.
func handshake(ctx context.Context, conn net.Conn, clientID string) error {
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
		defer conn.SetDeadline(time.Time{})
	}
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	body, err := json.Marshal(handshakeBody{Version: 1, ClientID: clientID})
	if err != nil {
		return err
	}
	if err := WriteFrame(conn, OpHandshake, body); err != nil {
		return fmt.Errorf("sending handshake: %w", err)
	}

	for {
		opcode, payload, err := ReadFrame(conn)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("waiting for READY: %w", err)
		}
		switch opcode {
		case OpClose:
			closeError := &CloseError{}
			if err := json.Unmarshal(payload, closeError); err != nil {
				closeError.Message = string(payload)
			}
			return closeError
		case OpPing:
			if err := WriteFrame(conn, OpPong, payload); err != nil {
				return fmt.Errorf("answering ping: %w", err)
			}
		case OpFrame:
			var frame readyFrame
			if err := json.Unmarshal(payload, &frame); err != nil {
				return fmt.Errorf("decoding handshake reply: %w", err)
			}
			if frame.Cmd == "DISPATCH" && frame.Evt == "READY" {
				return nil
			}
			if frame.Evt == "ERROR" {
				return fmt.Errorf("host rejected handshake: %s", frame.Data)
			}
		}
	}
}

// checkPeer verifies that the process on the other end of a Unix
// socket has the same uid as this process.
func checkPeer(conn net.Conn) error {
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		return nil
	}
	rawConn, err := unixConn.SyscallConn()
	if err != nil {
		return fmt.Errorf("inspecting socket: %w", err)
	}

	var credentials *unix.Ucred
	var credentialError error
	controlError := rawConn.Control(func(descriptor uintptr) {
		credentials, credentialError = unix.GetsockoptUcred(int(descriptor), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if controlError != nil {
		return fmt.Errorf("inspecting socket: %w", controlError)
	}
	if credentialError != nil {
		return fmt.Errorf("reading peer credentials: %w", credentialError)
	}
	if credentials.Uid != uint32(os.Getuid()) {
		return fmt.Errorf("socket owned by uid %d, expected %d", credentials.Uid, os.Getuid())
	}
	return nil
}
