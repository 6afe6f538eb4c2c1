// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"errors"
	"net"
	"slices"
	"testing"

	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/rpc/rpctest"
)

func TestSetChannelEventsOrderAndBalance(t *testing.T) {
	conn := rpctest.NewConn()
	channel := NewEventChannel(conn, quietLogger())

	if err := channel.SetChannelEvents("123", true); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := channel.SetChannelEvents("123", false); err != nil {
		t.Fatalf("unsubscribe: %v", err)
	}

	sent := conn.Sent()
	if len(sent) != 10 {
		t.Fatalf("sent %d messages, want 10", len(sent))
	}

	nonces := make(map[string]bool)
	active := make(map[string]int)
	for index, request := range sent {
		wantCommand := CmdSubscribe
		if index >= 5 {
			wantCommand = CmdUnsubscribe
		}
		if request.Cmd != wantCommand || request.Evt != ChannelEvents[index%5] {
			t.Errorf("message %d = %s %s, want %s %s", index, request.Cmd, request.Evt, wantCommand, ChannelEvents[index%5])
		}
		var args ChannelArgs
		if err := request.DecodeArgs(&args); err != nil || args.ChannelID != "123" {
			t.Errorf("message %d args = %s", index, request.Args)
		}
		if nonces[request.Nonce] || request.Nonce == "" {
			t.Errorf("message %d reuses or lacks a nonce", index)
		}
		nonces[request.Nonce] = true

		if request.Cmd == CmdSubscribe {
			active[request.Evt]++
		} else {
			active[request.Evt]--
		}
	}
	for event, count := range active {
		if count != 0 {
			t.Errorf("%s subscription count = %d after subscribe+unsubscribe", event, count)
		}
	}
}

func TestSetChannelEventsStopsAtFirstFailure(t *testing.T) {
	conn := rpctest.NewConn()
	channel := NewEventChannel(conn, quietLogger())

	conn.SetSendError(errors.New("broken pipe"))
	err := channel.SetChannelEvents("123", false)
	if !fault.Is(err, fault.Unsubscribe) {
		t.Fatalf("error = %v, want Unsubscribe", err)
	}
	if len(conn.Sent()) != 0 {
		t.Fatal("no further events should be attempted after a failure")
	}

	conn.SetSendError(nil)
	if err := channel.SetChannelEvents("123", true); err != nil {
		t.Fatalf("subscribe after recovery: %v", err)
	}
	if err := channel.Subscribe(EvtVoiceSettingsUpdate, struct{}{}, true); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	commands := conn.SentCommands()
	if commands[len(commands)-1] != "SUBSCRIBE VOICE_SETTINGS_UPDATE" {
		t.Errorf("last command = %q", commands[len(commands)-1])
	}
	if string(conn.Sent()[len(commands)-1].Args) != "{}" {
		t.Errorf("global subscription args = %s, want {}", conn.Sent()[len(commands)-1].Args)
	}
}

func TestEventChannelAuthorizeArgs(t *testing.T) {
	conn := rpctest.NewConn()
	channel := NewEventChannel(conn, quietLogger())
	if err := channel.Authorize("client-1", []string{"rpc", "identify"}); err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	sent := conn.Sent()
	var args AuthorizeArgs
	if err := sent[0].DecodeArgs(&args); err != nil {
		t.Fatalf("DecodeArgs: %v", err)
	}
	if sent[0].Cmd != CmdAuthorize || args.ClientID != "client-1" || !slices.Equal(args.Scopes, []string{"rpc", "identify"}) {
		t.Fatalf("AUTHORIZE = %s", sent[0].Raw)
	}

	conn.SetSendError(errors.New("closed"))
	if err := channel.Authorize("client-1", nil); !fault.Is(err, fault.Authorize) {
		t.Fatalf("error = %v, want Authorize", err)
	}
}

func TestEventChannelReceive(t *testing.T) {
	conn := rpctest.NewConn()
	channel := NewEventChannel(conn, quietLogger())

	conn.Deliver(rpctest.Dispatch(EvtSpeakingStart, Speaking{UserID: "9"}))
	conn.Deliver("{truncated")
	conn.Close()

	message, err := channel.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if message.Evt != EvtSpeakingStart {
		t.Fatalf("message = %+v", message)
	}

	_, err = channel.Receive()
	if !fault.Is(err, fault.EventDecode) || IsConnectionClosed(err) {
		t.Fatalf("bad message error = %v, want EventDecode that is not a closure", err)
	}

	_, err = channel.Receive()
	if !IsConnectionClosed(err) || !errors.Is(err, net.ErrClosed) {
		t.Fatalf("closed error = %v, want connection closed", err)
	}
}
