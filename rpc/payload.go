// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

// AuthorizeArgs starts the interactive consent flow.
type AuthorizeArgs struct {
	ClientID string   `json:"client_id"`
	Scopes   []string `json:"scopes"`
}

// AuthorizeData carries the one-time code the host returns once the
// user consents.
type AuthorizeData struct {
	Code string `json:"code"`
}

type AuthenticateArgs struct {
	AccessToken string `json:"access_token"`
}

// AuthenticateData confirms the identity bound to the access token.
type AuthenticateData struct {
	User    User     `json:"user"`
	Scopes  []string `json:"scopes"`
	Expires string   `json:"expires"`
}

// User is the host's user object. Avatar is a hash, empty when the
// user has none.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
	Bot        bool   `json:"bot"`
}

// VoiceStateFlags are the mute and deafen flags of one participant.
type VoiceStateFlags struct {
	Mute     bool `json:"mute"`
	Deaf     bool `json:"deaf"`
	SelfMute bool `json:"self_mute"`
	SelfDeaf bool `json:"self_deaf"`
	Suppress bool `json:"suppress"`
}

// VoiceState is a participant of a voice channel, as listed in
// GET_SELECTED_VOICE_CHANNEL and carried by VOICE_STATE_* events.
type VoiceState struct {
	Nick       string          `json:"nick"`
	Mute       bool            `json:"mute"`
	Volume     float64         `json:"volume"`
	VoiceState VoiceStateFlags `json:"voice_state"`
	User       User            `json:"user"`
}

// SelectedVoiceChannel is the data of a GET_SELECTED_VOICE_CHANNEL
// reply when the user is in a channel.
type SelectedVoiceChannel struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Type        int          `json:"type"`
	GuildID     string       `json:"guild_id"`
	Bitrate     int          `json:"bitrate"`
	UserLimit   int          `json:"user_limit"`
	VoiceStates []VoiceState `json:"voice_states"`
}

// VoiceChannelSelect is the data of a VOICE_CHANNEL_SELECT event. A nil
// ChannelID means the user left voice.
type VoiceChannelSelect struct {
	ChannelID *string `json:"channel_id"`
	GuildID   *string `json:"guild_id"`
}

// Speaking is the data of SPEAKING_START and SPEAKING_STOP.
type Speaking struct {
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
}

// VoiceSettings is the subset of the host's voice settings vcstatus
// reads and writes. It is also the data of VOICE_SETTINGS_UPDATE.
type VoiceSettings struct {
	Mute bool `json:"mute"`
	Deaf bool `json:"deaf"`
}

// SetVoiceSettingsArgs changes only the fields that are set.
type SetVoiceSettingsArgs struct {
	Mute *bool `json:"mute,omitempty"`
	Deaf *bool `json:"deaf,omitempty"`
}

// SelectVoiceChannelArgs joins ChannelID, or leaves voice when it is
// nil.
type SelectVoiceChannelArgs struct {
	ChannelID *string `json:"channel_id"`
	Force     bool    `json:"force,omitempty"`
}

// ChannelArgs scopes a per-channel subscription.
type ChannelArgs struct {
	ChannelID string `json:"channel_id"`
}

// SetActivityArgs sets the activity of process PID, or clears it when
// Activity is nil.
type SetActivityArgs struct {
	PID      int       `json:"pid"`
	Activity *Activity `json:"activity,omitempty"`
}

// ErrorData is the data of an ERROR message.
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
