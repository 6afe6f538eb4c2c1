// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package control defines the daemon's control-socket protocol: the
// action names and the shapes of their requests and replies. The
// daemon serves these actions with lib/service; the vcstatus CLI and
// any other front end call them with service.ServiceClient.
//
// Every action except "watch" is one request and one reply. "watch"
// is a stream: the daemon replays its recent notifications and then
// sends each new one as a [notify.Notification] until the client
// disconnects.
package control

import (
	"github.com/vcstatus/vcstatus/presence"
	"github.com/vcstatus/vcstatus/rpc"
)

// Action names.
const (
	ActionStatus        = "status"
	ActionVoiceChannel  = "voice-channel"
	ActionToggleMute    = "toggle-mute"
	ActionToggleDeafen  = "toggle-deafen"
	ActionLeaveChannel  = "leave-channel"
	ActionSetActivity   = "set-activity"
	ActionClearActivity = "clear-activity"
	ActionReconnect     = "reconnect"
	ActionWatch         = "watch"
)

// Status is the reply to ActionStatus.
type Status struct {
	Connected     bool           `cbor:"connected" json:"connected"`
	UptimeSeconds float64        `cbor:"uptime_seconds" json:"uptime_seconds"`
	Watchers      int            `cbor:"watchers" json:"watchers"`
	State         presence.State `cbor:"state" json:"state"`
}

// VoiceChannel is the reply to ActionVoiceChannel. Channel is absent
// when the user is not in voice.
type VoiceChannel struct {
	InVoice bool                      `cbor:"in_voice" json:"in_voice"`
	Channel *rpc.SelectedVoiceChannel `cbor:"channel,omitempty" json:"channel,omitempty"`
}

// SetActivityRequest carries the fields of ActionSetActivity.
type SetActivityRequest struct {
	Activity *rpc.Activity `cbor:"activity"`
}

// ToggleMute and ToggleDeafen reply with the resulting
// [rpc.VoiceSettings]. The remaining actions reply with no data.
