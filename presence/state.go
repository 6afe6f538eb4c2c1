// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/vcstatus/vcstatus/rpc"
)

// Phase is the session's position in the connection lifecycle.
type Phase int

const (
	Disconnected Phase = iota
	Connecting
	ReAuthenticating
	Authorizing
	Authenticated
	Subscribed
	ChannelJoined
)

func (p Phase) String() string {
	switch p {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case ReAuthenticating:
		return "reauthenticating"
	case Authorizing:
		return "authorizing"
	case Authenticated:
		return "authenticated"
	case Subscribed:
		return "subscribed"
	case ChannelJoined:
		return "channel_joined"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Member is another participant of the user's voice channel.
type Member struct {
	ID       string `json:"id" cbor:"id"`
	Username string `json:"username" cbor:"username"`
	Avatar   string `json:"avatar" cbor:"avatar"`
	Nick     string `json:"nick" cbor:"nick"`
	Mute     bool   `json:"mute" cbor:"mute"`
	Deaf     bool   `json:"deaf" cbor:"deaf"`
	SelfMute bool   `json:"self_mute" cbor:"self_mute"`
	SelfDeaf bool   `json:"self_deaf" cbor:"self_deaf"`
	Speaking bool   `json:"speaking" cbor:"speaking"`
}

// EffectiveMute reports whether the member cannot be heard, for any
// reason.
func (m Member) EffectiveMute() bool {
	return m.Mute || m.SelfMute || m.Deaf || m.SelfDeaf
}

// EffectiveDeaf reports whether the member cannot hear.
func (m Member) EffectiveDeaf() bool {
	return m.Deaf || m.SelfDeaf
}

// DisplayName is the channel nickname, or the username without one.
func (m Member) DisplayName() string {
	return cmp.Or(m.Nick, m.Username)
}

func memberFromVoiceState(voiceState rpc.VoiceState) Member {
	return Member{
		ID:       voiceState.User.ID,
		Username: voiceState.User.Username,
		Avatar:   voiceState.User.Avatar,
		Nick:     voiceState.Nick,
		Mute:     voiceState.VoiceState.Mute,
		Deaf:     voiceState.VoiceState.Deaf,
		SelfMute: voiceState.VoiceState.SelfMute,
		SelfDeaf: voiceState.VoiceState.SelfDeaf,
	}
}

// State is the derived view of the session. Values returned by
// Session.State are copies; mutating them has no effect on the session.
type State struct {
	Phase        Phase             `json:"phase" cbor:"phase"`
	UserID       string            `json:"user_id,omitempty" cbor:"user_id,omitempty"`
	ChannelID    string            `json:"channel_id,omitempty" cbor:"channel_id,omitempty"`
	ChannelName  string            `json:"channel_name,omitempty" cbor:"channel_name,omitempty"`
	Members      map[string]Member `json:"members" cbor:"members"`
	SelfSpeaking bool              `json:"self_speaking" cbor:"self_speaking"`
	Mute         bool              `json:"mute" cbor:"mute"`
	Deaf         bool              `json:"deaf" cbor:"deaf"`
}

func newState() State {
	return State{Members: make(map[string]Member)}
}

// InChannel reports whether the user is in a voice channel.
func (s *State) InChannel() bool {
	return s.ChannelID != ""
}

// MemberList returns the members sorted by display name, then id.
func (s *State) MemberList() []Member {
	members := slices.Collect(maps.Values(s.Members))
	slices.SortFunc(members, func(a, b Member) int {
		return cmp.Or(cmp.Compare(a.DisplayName(), b.DisplayName()), cmp.Compare(a.ID, b.ID))
	})
	return members
}

func (s *State) clone() State {
	copied := *s
	copied.Members = maps.Clone(s.Members)
	if copied.Members == nil {
		copied.Members = make(map[string]Member)
	}
	return copied
}

// The methods below are the only writers of State. The event loop calls
// them with the session lock held.

func (s *State) setPhase(phase Phase) {
	s.Phase = phase
}

func (s *State) authenticated(userID string) {
	s.UserID = userID
	s.Phase = Authenticated
}

// enterChannel records a channel the user is in and replaces the
// member list with voiceStates, excluding the user.
func (s *State) enterChannel(channel *rpc.SelectedVoiceChannel) {
	s.ChannelID = channel.ID
	s.ChannelName = channel.Name
	s.Members = make(map[string]Member, len(channel.VoiceStates))
	for _, voiceState := range channel.VoiceStates {
		if voiceState.User.ID == "" || voiceState.User.ID == s.UserID {
			continue
		}
		s.Members[voiceState.User.ID] = memberFromVoiceState(voiceState)
	}
	s.Phase = ChannelJoined
}

// selectChannel records a channel switch announced before its member
// list is known.
func (s *State) selectChannel(channelID string) {
	if channelID != s.ChannelID {
		s.ChannelName = ""
	}
	s.ChannelID = channelID
	s.Members = make(map[string]Member)
	s.SelfSpeaking = false
	s.Phase = ChannelJoined
}

// leaveChannel clears the channel and its members. The phase drops to
// Subscribed.
func (s *State) leaveChannel() {
	s.ChannelID = ""
	s.ChannelName = ""
	s.Members = make(map[string]Member)
	s.SelfSpeaking = false
	s.Phase = Subscribed
}

// upsertMember applies a VOICE_STATE_CREATE or UPDATE. The speaking
// flag of an existing member survives. Returns false for the user.
func (s *State) upsertMember(voiceState rpc.VoiceState) (Member, bool) {
	if voiceState.User.ID == "" || voiceState.User.ID == s.UserID {
		return Member{}, false
	}
	member := memberFromVoiceState(voiceState)
	if existing, ok := s.Members[member.ID]; ok {
		member.Speaking = existing.Speaking
	}
	s.Members[member.ID] = member
	return member, true
}

// removeMember applies a VOICE_STATE_DELETE. The returned member is the
// one removed, or one built from voiceState when it was not tracked.
// Returns false for the user.
func (s *State) removeMember(voiceState rpc.VoiceState) (Member, bool) {
	if voiceState.User.ID == "" || voiceState.User.ID == s.UserID {
		return Member{}, false
	}
	member, ok := s.Members[voiceState.User.ID]
	if !ok {
		member = memberFromVoiceState(voiceState)
	}
	delete(s.Members, voiceState.User.ID)
	member.Speaking = false
	return member, true
}

// setSpeaking applies SPEAKING_START/STOP and reports whether userID is
// the user. Unknown members are left alone.
func (s *State) setSpeaking(userID string, speaking bool) bool {
	if userID == s.UserID {
		s.SelfSpeaking = speaking
		return true
	}
	if member, ok := s.Members[userID]; ok {
		member.Speaking = speaking
		s.Members[userID] = member
	}
	return false
}

func (s *State) setVoiceSettings(mute, deaf bool) {
	s.Mute = mute
	s.Deaf = deaf
}

// reset empties everything and marks the session Disconnected.
func (s *State) reset() {
	*s = newState()
}
