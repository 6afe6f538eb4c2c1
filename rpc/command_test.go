// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/lib/ipc"
	"github.com/vcstatus/vcstatus/rpc/rpctest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCommandChannel(conn Conn) *CommandChannel {
	return NewCommandChannel(conn, CommandOptions{Logger: quietLogger()})
}

func TestCommandSendReturnsMatchingReply(t *testing.T) {
	conn := rpctest.NewConn()
	conn.SetResponder(func(request rpctest.Request) []any {
		return []any{rpctest.Reply(request, map[string]any{"mute": true, "deaf": false})}
	})
	channel := newCommandChannel(conn)

	request := NewRequest(CmdGetVoiceSettings, nil)
	reply, err := channel.Send(context.Background(), request)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if reply.Nonce != request.Nonce || reply.Kind() != KindReply {
		t.Fatalf("reply = %+v", reply)
	}
	var settings VoiceSettings
	if err := reply.DecodeData(&settings); err != nil || !settings.Mute {
		t.Fatalf("settings = %+v, err %v", settings, err)
	}
}

func TestCommandSendFailsOnForeignMessage(t *testing.T) {
	cases := []struct {
		name  string
		reply func(request rpctest.Request) any
	}{
		{"push event", func(rpctest.Request) any {
			return rpctest.Dispatch(EvtSpeakingStart, map[string]any{"user_id": "9"})
		}},
		{"other nonce", func(request rpctest.Request) any {
			request.Nonce = "someone-else"
			return rpctest.Reply(request, nil)
		}},
	}
	for _, testCase := range cases {
		t.Run(testCase.name, func(t *testing.T) {
			conn := rpctest.NewConn()
			conn.SetResponder(func(request rpctest.Request) []any {
				return []any{testCase.reply(request), rpctest.Reply(request, nil)}
			})
			channel := newCommandChannel(conn)

			_, err := channel.Send(context.Background(), NewRequest(CmdGetSelectedVoiceChannel, nil))
			if !fault.Is(err, fault.EventReceive) {
				t.Fatalf("error = %v, want EventReceive", err)
			}
			var faultError *fault.Error
			errors.As(err, &faultError)
			if len(faultError.Payload) == 0 {
				t.Error("EventReceive should carry the foreign payload")
			}
		})
	}
}

func TestCommandSendErrors(t *testing.T) {
	t.Run("write failure carries request", func(t *testing.T) {
		conn := rpctest.NewConn()
		conn.SetSendError(errors.New("broken pipe"))
		_, err := newCommandChannel(conn).Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
		var faultError *fault.Error
		if !errors.As(err, &faultError) || faultError.Kind != fault.EventSend {
			t.Fatalf("error = %v, want EventSend", err)
		}
		if !strings.Contains(string(faultError.Payload), `"cmd":"GET_VOICE_SETTINGS"`) {
			t.Errorf("payload = %s", faultError.Payload)
		}
	})

	t.Run("read failure", func(t *testing.T) {
		conn := rpctest.NewConn()
		conn.SetResponder(func(rpctest.Request) []any { return nil })
		conn.DeliverError(io.ErrUnexpectedEOF)
		_, err := newCommandChannel(conn).Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
		if !fault.Is(err, fault.EventDecode) || !errors.Is(err, io.ErrUnexpectedEOF) {
			t.Fatalf("error = %v, want EventDecode wrapping the read error", err)
		}
	})

	t.Run("undecodable reply", func(t *testing.T) {
		conn := rpctest.NewConn()
		conn.SetResponder(func(rpctest.Request) []any { return []any{"not json"} })
		_, err := newCommandChannel(conn).Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
		if !fault.Is(err, fault.EventDecode) {
			t.Fatalf("error = %v, want EventDecode", err)
		}
	})

	t.Run("missing nonce", func(t *testing.T) {
		_, err := newCommandChannel(rpctest.NewConn()).Send(context.Background(), Request{Command: CmdGetVoiceSettings})
		if !fault.Is(err, fault.EventSend) {
			t.Fatalf("error = %v, want EventSend", err)
		}
	})
}

func TestCommandSendSerializesCallers(t *testing.T) {
	conn := rpctest.NewConn()
	var mu sync.Mutex
	outstanding := 0
	maxOutstanding := 0
	conn.SetResponder(func(request rpctest.Request) []any {
		mu.Lock()
		outstanding++
		if outstanding > maxOutstanding {
			maxOutstanding = outstanding
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		outstanding--
		mu.Unlock()
		return []any{rpctest.Reply(request, nil)}
	})
	channel := newCommandChannel(conn)

	var wait sync.WaitGroup
	errs := make(chan error, 16)
	for range 16 {
		wait.Add(1)
		go func() {
			defer wait.Done()
			if _, err := channel.Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil)); err != nil {
				errs <- err
			}
		}()
	}
	wait.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Send: %v", err)
	}
	if maxOutstanding != 1 {
		t.Fatalf("max outstanding requests = %d, want 1", maxOutstanding)
	}
}

func TestCommandReplyTimeout(t *testing.T) {
	client, host := net.Pipe()
	defer host.Close()
	conn := ipc.NewConn(client, quietLogger())
	defer conn.Close()

	go func() {
		// Consume the request and never answer.
		ipc.ReadFrame(host)
		io.Copy(io.Discard, host)
	}()

	channel := NewCommandChannel(conn, CommandOptions{ReplyTimeout: 20 * time.Millisecond, Logger: quietLogger()})
	_, err := channel.Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
	if !fault.Is(err, fault.EventDecode) {
		t.Fatalf("error = %v, want EventDecode after reply timeout", err)
	}
	var netError net.Error
	if !errors.As(err, &netError) || !netError.Timeout() {
		t.Fatalf("error = %v, want a timeout", err)
	}
}

func TestCommandLateReplyAfterTimeout(t *testing.T) {
	client, host := net.Pipe()
	defer host.Close()
	conn := ipc.NewConn(client, quietLogger())
	channel := NewCommandChannel(conn, CommandOptions{ReplyTimeout: 20 * time.Millisecond, Logger: quietLogger()})
	defer channel.Close()

	hostDone := make(chan struct{})
	go func() {
		defer close(hostDone)
		_, body, err := ipc.ReadFrame(host)
		if err != nil {
			return
		}
		var request rpctest.Request
		if json.Unmarshal(body, &request) != nil {
			return
		}
		// Answer only after the client gave up waiting.
		<-channel.Failed()
		reply, _ := json.Marshal(rpctest.Reply(request, map[string]any{"mute": false, "deaf": false}))
		ipc.WriteFrame(host, ipc.OpFrame, reply)
	}()

	_, err := channel.Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
	if !fault.Is(err, fault.EventDecode) {
		t.Fatalf("first Send = %v, want EventDecode after reply timeout", err)
	}
	select {
	case <-channel.Failed():
	default:
		t.Fatal("channel not marked failed after the reply timeout")
	}
	select {
	case <-hostDone:
	case <-time.After(5 * time.Second):
		t.Fatal("host never sent the late reply")
	}

	_, err = channel.Send(context.Background(), NewRequest(CmdGetSelectedVoiceChannel, nil))
	if !fault.Is(err, fault.EventSend) || !errors.Is(err, ErrCommandConnectionLost) {
		t.Fatalf("second Send = %v, want EventSend wrapping ErrCommandConnectionLost", err)
	}
	if fault.Is(err, fault.EventReceive) {
		t.Fatal("late reply was read as the answer to the next request")
	}
	var netError net.Error
	if lost := channel.Err(); !errors.As(lost, &netError) || !netError.Timeout() {
		t.Errorf("Err = %v, want the reply timeout", lost)
	}
}

func TestCommandReadFailureClosesConnection(t *testing.T) {
	conn := rpctest.NewConn()
	conn.SetResponder(func(rpctest.Request) []any { return nil })
	conn.DeliverError(io.ErrUnexpectedEOF)
	channel := newCommandChannel(conn)

	if _, err := channel.Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil)); !fault.Is(err, fault.EventDecode) {
		t.Fatalf("first Send = %v, want EventDecode", err)
	}
	if !conn.Closed() {
		t.Fatal("connection left open after the failed read")
	}

	_, err := channel.Send(context.Background(), NewRequest(CmdGetVoiceSettings, nil))
	if !errors.Is(err, ErrCommandConnectionLost) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("second Send = %v, want ErrCommandConnectionLost wrapping the read error", err)
	}
	if sent := conn.Sent(); len(sent) != 1 {
		t.Errorf("sent %d requests, want only the first", len(sent))
	}
}

func TestCommandCloseDoesNotMarkFailed(t *testing.T) {
	channel := newCommandChannel(rpctest.NewConn())
	channel.Close()
	select {
	case <-channel.Failed():
		t.Fatal("Close marked the channel failed")
	default:
	}
	if err := channel.Err(); err != nil {
		t.Errorf("Err = %v, want nil", err)
	}
}

func TestCallProtocolError(t *testing.T) {
	conn := rpctest.NewConn()
	conn.SetResponder(func(request rpctest.Request) []any {
		return []any{rpctest.ErrorReply(request, 4006, "Not authenticated or invalid scope")}
	})
	err := newCommandChannel(conn).Call(context.Background(), CmdGetVoiceSettings, nil, &VoiceSettings{})
	var protocolError *ProtocolError
	if !errors.As(err, &protocolError) {
		t.Fatalf("error = %v, want ProtocolError", err)
	}
	if protocolError.Code != 4006 || protocolError.Command != CmdGetVoiceSettings {
		t.Errorf("protocolError = %+v", protocolError)
	}
	if !IsProtocolError(err) {
		t.Error("IsProtocolError should match")
	}
}

func TestMessageKind(t *testing.T) {
	cases := []struct {
		raw  string
		want Kind
	}{
		{`{"cmd":"DISPATCH","evt":"VOICE_STATE_CREATE","nonce":null,"data":{}}`, KindDispatch},
		{`{"cmd":"AUTHENTICATE","evt":null,"nonce":"n","data":{}}`, KindReply},
		{`{"cmd":"SUBSCRIBE","evt":"ERROR","nonce":"n","data":{"code":4000}}`, KindError},
	}
	for _, testCase := range cases {
		message, err := DecodeMessage([]byte(testCase.raw))
		if err != nil {
			t.Fatalf("DecodeMessage(%s): %v", testCase.raw, err)
		}
		if message.Kind() != testCase.want {
			t.Errorf("Kind(%s) = %s, want %s", testCase.raw, message.Kind(), testCase.want)
		}
	}

	message, _ := DecodeMessage([]byte(`{"cmd":"GET_SELECTED_VOICE_CHANNEL","nonce":"n","data":null}`))
	if message.HasData() {
		t.Error("null data should report HasData false")
	}
}

func TestRequestEncoding(t *testing.T) {
	request := Request{Nonce: "n1", Command: CmdSubscribe, Event: EvtVoiceStateCreate, Args: ChannelArgs{ChannelID: "123"}}
	data, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"nonce":"n1","cmd":"SUBSCRIBE","evt":"VOICE_STATE_CREATE","args":{"channel_id":"123"}}`
	if string(data) != want {
		t.Fatalf("encoded %s, want %s", data, want)
	}

	first, second := NewNonce(), NewNonce()
	if first == second || len(first) != 36 {
		t.Errorf("nonces %q and %q", first, second)
	}
}
