// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"

	"github.com/vcstatus/vcstatus/lib/fault"
)

// GetSelectedVoiceChannel returns the channel the user is in, or nil
// when they are not in voice.
func (c *CommandChannel) GetSelectedVoiceChannel(ctx context.Context) (*SelectedVoiceChannel, error) {
	reply, err := c.Send(ctx, NewRequest(CmdGetSelectedVoiceChannel, nil))
	if err != nil {
		return nil, err
	}
	if reply.Kind() == KindError {
		return nil, protocolError(reply)
	}
	if !reply.HasData() {
		return nil, nil
	}
	var channel SelectedVoiceChannel
	if err := json.Unmarshal(reply.Data, &channel); err != nil {
		return nil, fault.Wrap(fault.EventDecode, err, "decoding selected voice channel").WithPayload(reply.Raw)
	}
	return &channel, nil
}

// GetVoiceSettings reads the user's mute and deafen state.
func (c *CommandChannel) GetVoiceSettings(ctx context.Context) (*VoiceSettings, error) {
	var settings VoiceSettings
	if err := c.Call(ctx, CmdGetVoiceSettings, nil, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// ToggleMute flips the mute setting and returns the settings the host
// reports afterwards.
func (c *CommandChannel) ToggleMute(ctx context.Context) (*VoiceSettings, error) {
	current, err := c.GetVoiceSettings(ctx)
	if err != nil {
		return nil, err
	}
	mute := !current.Mute
	return c.setVoiceSettings(ctx, SetVoiceSettingsArgs{Mute: &mute})
}

// ToggleDeafen flips the deafen setting and returns the settings the
// host reports afterwards.
func (c *CommandChannel) ToggleDeafen(ctx context.Context) (*VoiceSettings, error) {
	current, err := c.GetVoiceSettings(ctx)
	if err != nil {
		return nil, err
	}
	deaf := !current.Deaf
	return c.setVoiceSettings(ctx, SetVoiceSettingsArgs{Deaf: &deaf})
}

func (c *CommandChannel) setVoiceSettings(ctx context.Context, args SetVoiceSettingsArgs) (*VoiceSettings, error) {
	var settings VoiceSettings
	if err := c.Call(ctx, CmdSetVoiceSettings, args, &settings); err != nil {
		return nil, err
	}
	return &settings, nil
}

// LeaveVoiceChannel disconnects the user from voice. Failures are
// LeaveVC faults wrapping the underlying error.
func (c *CommandChannel) LeaveVoiceChannel(ctx context.Context) error {
	if err := c.Call(ctx, CmdSelectVoiceChannel, SelectVoiceChannelArgs{ChannelID: nil}, nil); err != nil {
		return fault.Wrap(fault.LeaveVC, err, "leaving voice channel")
	}
	return nil
}

// SetActivity sets the activity shown for process pid.
func (c *CommandChannel) SetActivity(ctx context.Context, pid int, activity *Activity) error {
	if activity != nil {
		if err := activity.Validate(); err != nil {
			return err
		}
	}
	return c.Call(ctx, CmdSetActivity, SetActivityArgs{PID: pid, Activity: activity}, nil)
}

// ClearActivity removes the activity of process pid.
func (c *CommandChannel) ClearActivity(ctx context.Context, pid int) error {
	return c.SetActivity(ctx, pid, nil)
}
