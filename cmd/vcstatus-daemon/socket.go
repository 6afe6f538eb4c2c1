// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/lib/codec"
	"github.com/vcstatus/vcstatus/lib/service"
)

// registerActions installs the control-socket handlers.
func (d *Daemon) registerActions(server *service.SocketServer) {
	server.Handle(control.ActionStatus, d.handleStatus)
	server.Handle(control.ActionVoiceChannel, d.handleVoiceChannel)
	server.Handle(control.ActionToggleMute, d.handleToggleMute)
	server.Handle(control.ActionToggleDeafen, d.handleToggleDeafen)
	server.Handle(control.ActionLeaveChannel, d.handleLeaveChannel)
	server.Handle(control.ActionSetActivity, d.handleSetActivity)
	server.Handle(control.ActionClearActivity, d.handleClearActivity)
	server.Handle(control.ActionReconnect, d.handleReconnect)
	server.HandleStream(control.ActionWatch, d.handleWatch)
}

func (d *Daemon) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return control.Status{
		Connected:     d.session.Connected(),
		UptimeSeconds: d.clock.Now().Sub(d.startedAt).Seconds(),
		Watchers:      d.hub.WatcherCount(),
		State:         d.session.State(),
	}, nil
}

func (d *Daemon) handleVoiceChannel(ctx context.Context, raw []byte) (any, error) {
	channel, err := d.session.GetSelectedVoiceChannel(ctx)
	if err != nil {
		return nil, err
	}
	return control.VoiceChannel{InVoice: channel != nil, Channel: channel}, nil
}

func (d *Daemon) handleToggleMute(ctx context.Context, raw []byte) (any, error) {
	return d.session.ToggleMute(ctx)
}

func (d *Daemon) handleToggleDeafen(ctx context.Context, raw []byte) (any, error) {
	return d.session.ToggleDeafen(ctx)
}

func (d *Daemon) handleLeaveChannel(ctx context.Context, raw []byte) (any, error) {
	return nil, d.session.LeaveVoiceChannel(ctx)
}

// The host ties an activity to a process; the daemon's own pid is used
// so the activity disappears if the daemon dies.
func (d *Daemon) handleSetActivity(ctx context.Context, raw []byte) (any, error) {
	var request control.SetActivityRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	if request.Activity == nil {
		return nil, errors.New("missing required field: activity")
	}
	if err := request.Activity.Validate(); err != nil {
		return nil, err
	}
	return nil, d.session.SetActivity(ctx, d.pid, request.Activity)
}

func (d *Daemon) handleClearActivity(ctx context.Context, raw []byte) (any, error) {
	return nil, d.session.ClearActivity(ctx, d.pid)
}

func (d *Daemon) handleReconnect(ctx context.Context, raw []byte) (any, error) {
	d.requestReconnect()
	return nil, nil
}

// handleWatch replays the recorded notifications and then forwards new
// ones until the client leaves or the hub closes.
func (d *Daemon) handleWatch(ctx context.Context, raw []byte, stream *service.Stream) error {
	watcher, history := d.hub.Watch()
	defer watcher.Close()

	if err := stream.Start(); err != nil {
		return err
	}
	for _, notification := range history {
		if err := stream.Send(notification); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification, open := <-watcher.C:
			if !open {
				return nil
			}
			if err := stream.Send(notification); err != nil {
				return err
			}
		}
	}
}
