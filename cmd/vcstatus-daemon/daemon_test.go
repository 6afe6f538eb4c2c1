// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/lib/notify"
	"github.com/vcstatus/vcstatus/lib/secret"
	"github.com/vcstatus/vcstatus/lib/service"
	"github.com/vcstatus/vcstatus/lib/testutil"
	"github.com/vcstatus/vcstatus/oauth"
	"github.com/vcstatus/vcstatus/presence"
	"github.com/vcstatus/vcstatus/rpc"
	"github.com/vcstatus/vcstatus/rpc/rpctest"
)

const (
	waitTimeout = 5 * time.Second
	testPID     = 4242
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type staticTokens struct {
	mu        sync.Mutex
	reauthErr error
}

func (s *staticTokens) pair() (*oauth.TokenPair, error) {
	access, err := secret.NewFromString("access-token")
	if err != nil {
		return nil, err
	}
	return &oauth.TokenPair{AccessToken: access, TokenType: "Bearer"}, nil
}

func (s *staticTokens) Reauthenticate(ctx context.Context) (*oauth.TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reauthErr != nil {
		return nil, s.reauthErr
	}
	return s.pair()
}

func (s *staticTokens) Authorize(ctx context.Context, code string) (*oauth.TokenPair, error) {
	return s.pair()
}

func (s *staticTokens) setReauthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reauthErr = err
}

func commandReplies(request rpctest.Request) []any {
	switch request.Cmd {
	case rpc.CmdAuthenticate:
		return []any{rpctest.Reply(request, map[string]any{"user": map[string]any{"id": "self", "username": "me"}})}
	case rpc.CmdGetVoiceSettings:
		return []any{rpctest.Reply(request, map[string]any{"mute": false, "deaf": false})}
	case rpc.CmdSetVoiceSettings:
		var args map[string]any
		request.DecodeArgs(&args)
		return []any{rpctest.Reply(request, args)}
	case rpc.CmdGetSelectedVoiceChannel:
		return []any{rpctest.Reply(request, map[string]any{"id": "123", "name": "General", "voice_states": []any{}})}
	}
	return []any{rpctest.Reply(request, nil)}
}

// hostConns is the pair of connections one session dialed.
type hostConns struct {
	commands *rpctest.Conn
	events   *rpctest.Conn
}

// fakeHost hands out a fresh connection pair for every session.
type fakeHost struct {
	mu    sync.Mutex
	dials int
	pairs []hostConns
}

func (h *fakeHost) dial(ctx context.Context) (rpc.Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dials++
	if h.dials%2 == 1 {
		pair := hostConns{commands: rpctest.NewConn(), events: rpctest.NewConn()}
		pair.commands.SetResponder(commandReplies)
		h.pairs = append(h.pairs, pair)
		return pair.commands, nil
	}
	return h.pairs[len(h.pairs)-1].events, nil
}

// waitForSession returns the connections of the count'th session once
// it has sent its first message on the event connection.
func (h *fakeHost) waitForSession(t *testing.T, count int) hostConns {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		var pair hostConns
		ready := len(h.pairs) >= count && h.dials >= 2*count
		if ready {
			pair = h.pairs[count-1]
		}
		h.mu.Unlock()
		if ready {
			if _, err := pair.events.WaitForSent(1, waitTimeout); err != nil {
				t.Fatal(err)
			}
			return pair
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("session %d never dialed", count)
	return hostConns{}
}

type fixture struct {
	daemon *Daemon
	hub    *notify.Hub
	host   *fakeHost
	tokens *staticTokens
	clock  *clock.FakeClock
	client *service.ServiceClient
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		host:   &fakeHost{},
		tokens: &staticTokens{},
		clock:  clock.Fake(time.Unix(1_700_000_000, 0)),
	}
	f.hub = notify.NewHub(notify.Config{HistorySize: 8, Clock: f.clock, Logger: quietLogger()})
	t.Cleanup(f.hub.Close)

	session, err := presence.NewSession(presence.Config{
		ClientID: "client-1",
		Dial:     f.host.dial,
		Tokens:   f.tokens,
		Notifier: f.hub,
		Clock:    f.clock,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	f.daemon = newDaemon(session, f.hub, f.clock, quietLogger(), testPID)

	socketPath := filepath.Join(testutil.SocketDir(t), "vcstatus.sock")
	server := service.NewSocketServer(socketPath, quietLogger())
	f.daemon.registerActions(server)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := server.Serve(ctx); err != nil {
			t.Errorf("Serve: %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, served, waitTimeout, "control socket shutdown")
	})
	waitForSocket(t, socketPath)
	f.client = service.NewServiceClient(socketPath)
	return f
}

// supervise runs the reconnect loop until the test ends.
func (f *fixture) supervise(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.daemon.supervise(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, waitTimeout, "supervisor exit")
	})
}

func (f *fixture) call(t *testing.T, action string, fields map[string]any, result any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	if err := f.client.Call(ctx, action, fields, result); err != nil {
		t.Fatalf("%s: %v", action, err)
	}
}

// authenticate confirms the token on the session's event connection
// and waits for the subscriptions and channel query that follow.
func authenticate(t *testing.T, pair hostConns) {
	t.Helper()
	before := len(pair.events.Sent())
	pair.events.Deliver(map[string]any{
		"cmd":   rpc.CmdAuthenticate,
		"evt":   nil,
		"nonce": "n-auth",
		"data":  map[string]any{"user": map[string]any{"id": "self", "username": "me"}},
	})
	if _, err := pair.events.WaitForSent(before+3, waitTimeout); err != nil {
		t.Fatal(err)
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		if conn, err := net.Dial("unix", path); err == nil {
			conn.Close()
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("socket %s never became ready", path)
}

func TestStatusBeforeConnecting(t *testing.T) {
	f := newFixture(t)

	var status control.Status
	f.call(t, "status", nil, &status)
	if status.Connected {
		t.Error("connected before any session was started")
	}
	if status.State.Phase != presence.Disconnected {
		t.Errorf("phase = %v, want disconnected", status.State.Phase)
	}
}

func TestDirectOperationsWithoutSession(t *testing.T) {
	f := newFixture(t)

	err := f.client.Call(context.Background(), "toggle-mute", nil, nil)
	var serviceError *service.ServiceError
	if !errors.As(err, &serviceError) {
		t.Fatalf("toggle-mute error = %v, want a ServiceError", err)
	}
	if !strings.Contains(serviceError.Message, "not connected") {
		t.Errorf("message = %q", serviceError.Message)
	}
}

func TestControlActionsDriveTheSession(t *testing.T) {
	f := newFixture(t)
	f.supervise(t)

	pair := f.host.waitForSession(t, 1)
	authenticate(t, pair)

	var status control.Status
	f.call(t, "status", nil, &status)
	if !status.Connected || status.State.Phase != presence.Subscribed || status.State.UserID != "self" {
		t.Fatalf("status = %+v", status)
	}

	var channel control.VoiceChannel
	f.call(t, "voice-channel", nil, &channel)
	if !channel.InVoice || channel.Channel == nil || channel.Channel.Name != "General" {
		t.Errorf("voice-channel = %+v", channel)
	}

	var settings rpc.VoiceSettings
	f.call(t, "toggle-mute", nil, &settings)
	if !settings.Mute {
		t.Errorf("toggle-mute = %+v, want mute", settings)
	}

	f.call(t, "set-activity", map[string]any{
		"activity": rpc.Activity{Name: "Editing", Details: "main.go"},
	}, nil)
	f.call(t, "clear-activity", nil, nil)

	var activityArgs []rpc.SetActivityArgs
	for _, request := range pair.commands.Sent() {
		if request.Cmd != rpc.CmdSetActivity {
			continue
		}
		var args rpc.SetActivityArgs
		if err := request.DecodeArgs(&args); err != nil {
			t.Fatalf("decoding SET_ACTIVITY args: %v", err)
		}
		activityArgs = append(activityArgs, args)
	}
	if len(activityArgs) != 2 {
		t.Fatalf("SET_ACTIVITY sent %d times, want 2", len(activityArgs))
	}
	if activityArgs[0].PID != testPID || activityArgs[0].Activity == nil || activityArgs[0].Activity.Details != "main.go" {
		t.Errorf("set args = %+v", activityArgs[0])
	}
	if activityArgs[1].PID != testPID || activityArgs[1].Activity != nil {
		t.Errorf("clear args = %+v", activityArgs[1])
	}
}

func TestSetActivityValidation(t *testing.T) {
	f := newFixture(t)

	var serviceError *service.ServiceError
	err := f.client.Call(context.Background(), "set-activity", nil, nil)
	if !errors.As(err, &serviceError) || !strings.Contains(serviceError.Message, "activity") {
		t.Errorf("missing activity error = %v", err)
	}

	buttons := []rpc.ActivityButton{{Label: "a", URL: "https://a"}, {Label: "b", URL: "https://b"}, {Label: "c", URL: "https://c"}}
	err = f.client.Call(context.Background(), "set-activity", map[string]any{
		"activity": rpc.Activity{Name: "x", Buttons: buttons},
	}, nil)
	if !errors.As(err, &serviceError) {
		t.Errorf("three buttons error = %v, want a ServiceError", err)
	}
}

func TestWatchReplaysHistoryThenStreams(t *testing.T) {
	f := newFixture(t)
	f.hub.Notify(presence.EventVCSelect, presence.VCSelect{InVC: true})

	ctx, cancel := context.WithTimeout(context.Background(), waitTimeout)
	defer cancel()
	reader, err := f.client.Stream(ctx, "watch", nil)
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	defer reader.Close()

	var replayed notify.Notification
	if err := reader.Next(&replayed); err != nil {
		t.Fatalf("Next: %v", err)
	}
	var selected presence.VCSelect
	if err := json.Unmarshal(replayed.Payload, &selected); err != nil {
		t.Fatalf("decoding payload %s: %v", replayed.Payload, err)
	}
	if replayed.Event != presence.EventVCSelect || !selected.InVC || replayed.Seq != 1 {
		t.Errorf("replayed = %+v (%s)", replayed, replayed.Payload)
	}

	f.hub.Notify(presence.EventVCSpeak, presence.VCSpeak{UserID: "9", Speaking: true})
	var live notify.Notification
	if err := reader.Next(&live); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if live.Event != presence.EventVCSpeak || live.Seq != 2 {
		t.Errorf("live = %+v", live)
	}
}

func TestSupervisorReconnectsAfterHostCloses(t *testing.T) {
	f := newFixture(t)
	f.supervise(t)

	first := f.host.waitForSession(t, 1)
	authenticate(t, first)
	first.events.Close()

	f.clock.WaitForTimers(1)
	f.clock.Advance(reconnectMaxInterval)

	second := f.host.waitForSession(t, 2)
	if got := second.events.SentCommands(); len(got) == 0 || got[0] != rpc.CmdAuthenticate {
		t.Errorf("second session sent %v, want AUTHENTICATE first", got)
	}
	if !first.commands.Closed() {
		t.Error("first command connection left open")
	}
}

func TestCancelledAuthorizationWaitsForReconnect(t *testing.T) {
	f := newFixture(t)
	f.tokens.setReauthErr(fault.New(fault.RefreshToken, "no stored session"))
	f.supervise(t)

	first := f.host.waitForSession(t, 1)
	authorize := first.events.Sent()[0]
	if authorize.Cmd != rpc.CmdAuthorize {
		t.Fatalf("first event-connection message = %s, want AUTHORIZE", authorize.Cmd)
	}
	first.events.Deliver(rpctest.ErrorReply(authorize, 5000, "OAuth2 Error: user cancelled"))

	deadline := time.Now().Add(waitTimeout)
	for f.daemon.session.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("session still running after the authorization was cancelled")
		}
		time.Sleep(5 * time.Millisecond)
	}

	f.tokens.setReauthErr(nil)
	f.call(t, "reconnect", nil, nil)

	second := f.host.waitForSession(t, 2)
	if got := second.events.SentCommands(); got[0] != rpc.CmdAuthenticate {
		t.Errorf("second session sent %v, want AUTHENTICATE first", got)
	}
}

func TestReconnectRequestRestartsLiveSession(t *testing.T) {
	f := newFixture(t)
	f.supervise(t)

	first := f.host.waitForSession(t, 1)
	authenticate(t, first)

	f.call(t, "reconnect", nil, nil)
	f.host.waitForSession(t, 2)
	if !first.events.Closed() || !first.commands.Closed() {
		t.Error("first session's connections left open")
	}
}
