// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/notify"
	"github.com/vcstatus/vcstatus/presence"
)

const (
	reconnectInitialInterval = time.Second
	reconnectMaxInterval     = time.Minute
)

// Daemon keeps one presence session alive and serves it on the control
// socket.
type Daemon struct {
	session   *presence.Session
	hub       *notify.Hub
	clock     clock.Clock
	logger    *slog.Logger
	pid       int
	startedAt time.Time

	// reconnect carries control-socket requests to restart the session.
	reconnect chan struct{}
}

func newDaemon(session *presence.Session, hub *notify.Hub, clk clock.Clock, logger *slog.Logger, pid int) *Daemon {
	return &Daemon{
		session:   session,
		hub:       hub,
		clock:     clk,
		logger:    logger,
		pid:       pid,
		startedAt: clk.Now(),
		reconnect: make(chan struct{}, 1),
	}
}

// requestReconnect asks supervise to restart the session. Requests
// made while one is pending coalesce.
func (d *Daemon) requestReconnect() {
	select {
	case d.reconnect <- struct{}{}:
	default:
	}
}

// supervise runs sessions until ctx is cancelled. A session that fails
// to connect or ends on its own is retried after an exponential delay;
// the delay resets once a session connects. A user who cancels the
// authorization prompt is not prompted again until a reconnect is
// requested.
func (d *Daemon) supervise(ctx context.Context) {
	delay := backoff.NewExponentialBackOff()
	delay.InitialInterval = reconnectInitialInterval
	delay.MaxInterval = reconnectMaxInterval
	delay.MaxElapsedTime = 0
	delay.Clock = d.clock
	delay.Reset()

	for {
		err := d.session.Connect(ctx)
		if err == nil {
			d.logger.Info("session connected")
			delay.Reset()
			var requested bool
			requested, err = d.await(ctx)
			if ctx.Err() != nil {
				return
			}
			if requested {
				d.logger.Info("reconnecting on request")
				continue
			}
		}
		if ctx.Err() != nil {
			return
		}

		if errors.Is(err, presence.ErrAuthorizationCancelled) {
			d.logger.Warn("authorization cancelled; waiting for a reconnect request")
			select {
			case <-ctx.Done():
				return
			case <-d.reconnect:
				continue
			}
		}

		wait := delay.NextBackOff()
		d.logger.Warn("session ended", "error", err, "retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-d.reconnect:
			delay.Reset()
		case <-d.clock.After(wait):
		}
	}
}

// await blocks until the running session ends, a reconnect is
// requested, or ctx is cancelled. In the last two cases it closes the
// session itself; requested reports a reconnect request.
func (d *Daemon) await(ctx context.Context) (requested bool, err error) {
	ended := make(chan error, 1)
	go func() { ended <- d.session.Wait(context.Background()) }()

	select {
	case err = <-ended:
		return false, err
	case <-d.reconnect:
		requested = true
	case <-ctx.Done():
	}
	d.session.Close()
	return requested, <-ended
}
