// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"encoding/json"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/vcstatus/vcstatus/rpc"
)

func voiceStateFor(id string) rpc.VoiceState {
	return rpc.VoiceState{User: rpc.User{ID: id, Username: "user-" + id}}
}

// TestMembersTrackLatestVoiceState applies random voice-state sequences
// and checks that the member set is exactly the users whose latest
// event was a create or update, never including the user.
func TestMembersTrackLatestVoiceState(t *testing.T) {
	random := rand.New(rand.NewPCG(7, 11))
	users := []string{"self", "1", "2", "3", "4", "5"}

	for trial := range 200 {
		state := newState()
		state.authenticated("self")
		latest := make(map[string]string)

		for range 50 {
			id := users[random.IntN(len(users))]
			switch random.IntN(4) {
			case 0:
				state.upsertMember(voiceStateFor(id))
				latest[id] = rpc.EvtVoiceStateCreate
			case 1:
				state.upsertMember(voiceStateFor(id))
				latest[id] = rpc.EvtVoiceStateUpdate
			case 2:
				state.removeMember(voiceStateFor(id))
				latest[id] = rpc.EvtVoiceStateDelete
			case 3:
				state.setSpeaking(id, random.IntN(2) == 0)
			}
		}

		var want []string
		for id, event := range latest {
			if id != "self" && event != rpc.EvtVoiceStateDelete {
				want = append(want, id)
			}
		}
		var got []string
		for id := range state.Members {
			got = append(got, id)
		}
		slices.Sort(want)
		slices.Sort(got)
		if !slices.Equal(got, want) {
			t.Fatalf("trial %d: members = %v, want %v", trial, got, want)
		}
	}
}

func TestSpeakingSurvivesUpdate(t *testing.T) {
	state := newState()
	state.authenticated("self")
	state.upsertMember(voiceStateFor("1"))
	if isMe := state.setSpeaking("1", true); isMe {
		t.Fatal("member reported as the user")
	}

	update := voiceStateFor("1")
	update.VoiceState.SelfDeaf = true
	member, ok := state.upsertMember(update)
	if !ok || !member.Speaking || !member.SelfDeaf {
		t.Fatalf("updated member = %+v", member)
	}

	removed, ok := state.removeMember(voiceStateFor("1"))
	if !ok || removed.Speaking || !removed.SelfDeaf {
		t.Errorf("removed member = %+v", removed)
	}
}

func TestSpeakingForUnknownMemberIsIgnored(t *testing.T) {
	state := newState()
	state.authenticated("self")
	if state.setSpeaking("ghost", true) {
		t.Error("unknown user reported as the user")
	}
	if len(state.Members) != 0 {
		t.Errorf("speaking event created a member: %+v", state.Members)
	}
	if !state.setSpeaking("self", true) || !state.SelfSpeaking {
		t.Error("self speaking not recorded")
	}
}

func TestEnterAndLeaveChannel(t *testing.T) {
	state := newState()
	state.authenticated("self")
	state.enterChannel(&rpc.SelectedVoiceChannel{
		ID:          "123",
		Name:        "General",
		VoiceStates: []rpc.VoiceState{voiceStateFor("self"), voiceStateFor("2"), voiceStateFor("")},
	})
	if state.Phase != ChannelJoined || state.ChannelName != "General" || len(state.Members) != 1 {
		t.Fatalf("after enter: %+v", state)
	}

	state.selectChannel("456")
	if state.ChannelName != "" || len(state.Members) != 0 || state.ChannelID != "456" {
		t.Errorf("after switching: %+v", state)
	}

	state.leaveChannel()
	if state.InChannel() || state.Phase != Subscribed || state.UserID != "self" {
		t.Errorf("after leave: %+v", state)
	}
}

func TestCloneIsDeep(t *testing.T) {
	state := newState()
	state.upsertMember(voiceStateFor("1"))
	copied := state.clone()
	copied.Members["2"] = Member{ID: "2"}
	delete(copied.Members, "1")
	if _, ok := state.Members["1"]; !ok || len(state.Members) != 1 {
		t.Errorf("mutating the copy changed the original: %+v", state.Members)
	}
}

func TestMemberDerivedFlags(t *testing.T) {
	cases := []struct {
		member   Member
		mute     bool
		deaf     bool
		rendered string
	}{
		{Member{Username: "a"}, false, false, "a"},
		{Member{Username: "a", Nick: "Nick", SelfMute: true}, true, false, "Nick"},
		{Member{Username: "a", Mute: true}, true, false, "a"},
		{Member{Username: "a", SelfDeaf: true}, true, true, "a"},
		{Member{Username: "a", Deaf: true}, true, true, "a"},
	}
	for _, testCase := range cases {
		if got := testCase.member.EffectiveMute(); got != testCase.mute {
			t.Errorf("%+v EffectiveMute = %v", testCase.member, got)
		}
		if got := testCase.member.EffectiveDeaf(); got != testCase.deaf {
			t.Errorf("%+v EffectiveDeaf = %v", testCase.member, got)
		}
		if got := testCase.member.DisplayName(); got != testCase.rendered {
			t.Errorf("%+v DisplayName = %q", testCase.member, got)
		}
	}
}

func TestStateJSON(t *testing.T) {
	state := newState()
	state.Phase = ChannelJoined
	data, err := json.Marshal(state)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded map[string]any
	json.Unmarshal(data, &decoded)
	if decoded["phase"] != "channel_joined" {
		t.Errorf("phase encoded as %v", decoded["phase"])
	}
}
