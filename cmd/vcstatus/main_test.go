// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/lib/service"
	"github.com/vcstatus/vcstatus/lib/testutil"
)

const waitTimeout = 5 * time.Second

// startControlServer serves the actions register installs on a fresh
// socket and returns its path. The server stops when the test ends.
func startControlServer(t *testing.T, register func(server *service.SocketServer)) string {
	t.Helper()
	socketPath := filepath.Join(testutil.SocketDir(t), "control.sock")
	server := service.NewSocketServer(socketPath, slog.New(slog.DiscardHandler))
	register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", socketPath); err == nil {
			conn.Close()
			return socketPath
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", socketPath)
	return ""
}
