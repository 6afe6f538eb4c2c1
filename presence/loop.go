// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"errors"
	"fmt"

	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/rpc"
)

// globalSubscriptions are subscribed once per authenticated session.
var globalSubscriptions = [...]string{
	rpc.EvtVoiceSettingsUpdate,
	rpc.EvtVoiceChannelSelect,
}

// loop is the event loop's view of one session.
type loop struct {
	session  *Session
	commands *rpc.CommandChannel
	events   *rpc.EventChannel
}

func (s *Session) run(ctx context.Context, commands *rpc.CommandChannel, events *rpc.EventChannel, done chan struct{}) {
	l := &loop{session: s, commands: commands, events: events}
	result := l.receive(ctx)
	s.mu.Lock()
	if s.commandFailure != nil {
		result = s.commandFailure
	}
	s.mu.Unlock()
	if ctx.Err() != nil {
		result = nil
	}
	s.teardown(result, done)
}

// receive reads and applies messages until the stream ends. The return
// value is why it ended.
func (l *loop) receive(ctx context.Context) error {
	logger := l.session.logger
	failures := 0
	for {
		message, err := l.events.Receive()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if rpc.IsConnectionClosed(err) {
				logger.Warn("event connection closed", "error", err)
				return err
			}
			failures++
			logger.Warn("event stream read failed", "error", err, "consecutive_failures", failures)
			if failures >= maxConsecutiveReadFailures {
				return fmt.Errorf("%w: %w", ErrEventStreamFailed, err)
			}
			continue
		}
		failures = 0

		if err := l.apply(ctx, message); err != nil {
			return err
		}
	}
}

// apply dispatches one message. A non-nil return ends the loop.
func (l *loop) apply(ctx context.Context, message *rpc.Message) error {
	switch message.Kind() {
	case rpc.KindError:
		return l.onError(message)
	case rpc.KindDispatch:
		l.onDispatch(message)
		return nil
	}

	switch message.Cmd {
	case rpc.CmdAuthorize:
		return l.onAuthorize(ctx, message)
	case rpc.CmdAuthenticate:
		return l.onAuthenticate(message)
	case rpc.CmdGetSelectedVoiceChannel:
		l.onSelectedVoiceChannel(message)
	case rpc.CmdSubscribe, rpc.CmdUnsubscribe:
		l.session.logger.Debug("subscription acknowledged", "cmd", message.Cmd, "evt", message.Evt)
	default:
		l.session.logger.Debug("ignoring reply", "cmd", message.Cmd, "nonce", message.Nonce)
	}
	return nil
}

func (l *loop) onDispatch(message *rpc.Message) {
	switch message.Evt {
	case rpc.EvtVoiceSettingsUpdate:
		l.onVoiceSettingsUpdate(message)
	case rpc.EvtVoiceChannelSelect:
		l.onVoiceChannelSelect(message)
	case rpc.EvtVoiceStateCreate, rpc.EvtVoiceStateUpdate, rpc.EvtVoiceStateDelete:
		l.onVoiceState(message)
	case rpc.EvtSpeakingStart, rpc.EvtSpeakingStop:
		l.onSpeaking(message)
	default:
		l.session.logger.Debug("ignoring event", "evt", message.Evt)
	}
}

// onError handles replies with evt ERROR. A rejected AUTHORIZE means the
// user declined the prompt and a rejected AUTHENTICATE leaves the event
// connection unauthenticated; both end the session.
func (l *loop) onError(message *rpc.Message) error {
	var data rpc.ErrorData
	message.DecodeData(&data)
	s := l.session

	switch message.Cmd {
	case rpc.CmdAuthorize:
		s.logger.Warn("authorization rejected", "code", data.Code, "message", data.Message)
		s.notifier.Notify(EventCriticalError,
			fault.New(fault.Authorize, "User cancelled the app authorization.").WithPayload(message.Raw))
		return ErrAuthorizationCancelled
	case rpc.CmdAuthenticate:
		s.logger.Warn("authentication rejected", "code", data.Code, "message", data.Message)
		failure := fault.New(fault.Authorize, "host rejected the access token: %s", data.Message).WithPayload(message.Raw)
		s.notifier.Notify(EventCriticalError, failure)
		return failure
	case rpc.CmdSubscribe:
		s.logger.Warn("subscription rejected", "code", data.Code, "message", data.Message)
		s.notifier.Notify(EventError,
			fault.New(fault.Subscribe, "Failed to subscribe to event: %s", data.Message).WithPayload(message.Raw))
	case rpc.CmdUnsubscribe:
		s.logger.Warn("unsubscription rejected", "code", data.Code, "message", data.Message)
		s.notifier.Notify(EventError,
			fault.New(fault.Unsubscribe, "Failed to unsubscribe from event: %s", data.Message).WithPayload(message.Raw))
	default:
		s.logger.Warn("host reported an error", "cmd", message.Cmd, "code", data.Code, "message", data.Message)
		s.notifier.Notify(EventError,
			fault.New(fault.EventReceive, "%s failed: %s", message.Cmd, data.Message).WithPayload(message.Raw))
	}
	return nil
}

// onAuthorize exchanges the code the host returned after the user
// approved the application and authenticates both connections. Any
// failure is critical: without a token the session is useless.
func (l *loop) onAuthorize(ctx context.Context, message *rpc.Message) error {
	s := l.session
	var data rpc.AuthorizeData
	if err := message.DecodeData(&data); err != nil || data.Code == "" {
		failure := fault.New(fault.Authorize, "authorization reply carried no code").WithPayload(message.Raw)
		s.notifier.Notify(EventCriticalError, failure)
		return failure
	}

	pair, err := s.tokens.Authorize(ctx, data.Code)
	if err != nil {
		s.notifier.Notify(EventCriticalError, asFault(fault.TokenFetch, err, "exchanging authorization code"))
		return err
	}
	defer pair.Close()

	if err := s.sendToken(ctx, l.commands, l.events, pair); err != nil {
		failure := asFault(fault.Authorize, err, "authenticating with the new token")
		s.notifier.Notify(EventCriticalError, failure)
		return failure
	}
	return nil
}

// onAuthenticate records the user and sets up the session-wide
// subscriptions, then asks where the user is. A reply without a user
// ends the session.
func (l *loop) onAuthenticate(message *rpc.Message) error {
	s := l.session
	var data rpc.AuthenticateData
	if err := message.DecodeData(&data); err != nil || data.User.ID == "" {
		failure := fault.New(fault.EventDecode, "authentication reply carried no user").WithPayload(message.Raw)
		s.notifier.Notify(EventCriticalError, failure)
		return failure
	}

	s.mu.Lock()
	s.state.authenticated(data.User.ID)
	s.mu.Unlock()
	s.logger.Info("session authenticated", "user_id", data.User.ID, "username", data.User.Username)

	for _, event := range globalSubscriptions {
		if err := l.events.Subscribe(event, struct{}{}, true); err != nil {
			s.logger.Error("subscribing failed", "evt", event, "error", err)
			s.notifier.Notify(EventCriticalError, asFault(fault.Subscribe, err, "subscribing "+event))
		}
	}

	s.mu.Lock()
	s.state.setPhase(Subscribed)
	s.mu.Unlock()

	if err := l.events.RequestSelectedVoiceChannel(); err != nil {
		s.notifier.Notify(EventCriticalError, asFault(fault.EventSend, err, "requesting selected voice channel"))
	}
	return nil
}

// onSelectedVoiceChannel applies the reply to GET_SELECTED_VOICE_CHANNEL.
func (l *loop) onSelectedVoiceChannel(message *rpc.Message) {
	s := l.session
	if !message.HasData() {
		s.mu.Lock()
		s.state.leaveChannel()
		s.mu.Unlock()
		s.notifier.Notify(EventVCSelect, VCSelect{InVC: false})
		if l.subscribedChannel() != "" {
			l.setChannelEvents(l.subscribedChannel(), false)
		}
		return
	}

	var channel rpc.SelectedVoiceChannel
	if err := message.DecodeData(&channel); err != nil || channel.ID == "" {
		s.logger.Warn("undecodable selected voice channel", "error", err)
		s.notifier.Notify(EventError,
			fault.Wrap(fault.EventDecode, errorOr(err, "missing channel id"), "decoding selected voice channel").WithPayload(message.Raw))
		return
	}

	s.mu.Lock()
	s.state.enterChannel(&channel)
	info := VCInfo{Name: channel.Name, Users: s.state.MemberList()}
	s.mu.Unlock()

	s.notifier.Notify(EventVCSelect, VCSelect{InVC: true})
	s.notifier.Notify(EventVCInfo, info)
	l.followChannel(channel.ID)
}

// onVoiceChannelSelect applies the user joining, switching, or leaving
// a voice channel.
func (l *loop) onVoiceChannelSelect(message *rpc.Message) {
	s := l.session
	var data rpc.VoiceChannelSelect
	if err := message.DecodeData(&data); err != nil {
		s.notifier.Notify(EventError, fault.Wrap(fault.EventDecode, err, "decoding channel selection").WithPayload(message.Raw))
		return
	}

	if data.ChannelID == nil || *data.ChannelID == "" {
		s.mu.Lock()
		previous := s.state.ChannelID
		s.state.leaveChannel()
		s.mu.Unlock()

		s.notifier.Notify(EventVCSelect, VCSelect{InVC: false})
		if subscribed := l.subscribedChannel(); subscribed != "" {
			previous = subscribed
		}
		if previous != "" {
			l.setChannelEvents(previous, false)
		}
		return
	}

	channelID := *data.ChannelID
	s.mu.Lock()
	s.state.selectChannel(channelID)
	s.mu.Unlock()

	s.notifier.Notify(EventVCSelect, VCSelect{InVC: true})
	if err := l.events.RequestSelectedVoiceChannel(); err != nil {
		s.notifier.Notify(EventError, asFault(fault.EventSend, err, "requesting selected voice channel"))
	}
	l.followChannel(channelID)
}

// followChannel moves the per-channel subscriptions to channelID.
func (l *loop) followChannel(channelID string) {
	current := l.subscribedChannel()
	if current == channelID {
		return
	}
	if current != "" {
		l.setChannelEvents(current, false)
	}
	l.setChannelEvents(channelID, true)
}

// setChannelEvents updates the per-channel subscriptions. Failures are
// reported and tolerated: the member view may be incomplete until the
// next channel change.
func (l *loop) setChannelEvents(channelID string, subscribe bool) {
	s := l.session
	if subscribe {
		s.subscribedChannel = channelID
	} else if s.subscribedChannel == channelID {
		s.subscribedChannel = ""
	}
	if err := l.events.SetChannelEvents(channelID, subscribe); err != nil {
		s.logger.Warn("updating channel subscriptions failed",
			"channel_id", channelID, "subscribe", subscribe, "error", err)
		kind := fault.Subscribe
		if !subscribe {
			kind = fault.Unsubscribe
		}
		s.notifier.Notify(EventError, asFault(kind, err, "updating channel subscriptions"))
	}
}

func (l *loop) subscribedChannel() string {
	return l.session.subscribedChannel
}

// onVoiceState applies VOICE_STATE_CREATE, UPDATE, and DELETE. Events
// about the user are not part of the member view.
func (l *loop) onVoiceState(message *rpc.Message) {
	s := l.session
	var voiceState rpc.VoiceState
	if err := message.DecodeData(&voiceState); err != nil {
		s.notifier.Notify(EventError, fault.Wrap(fault.EventDecode, err, "decoding %s", message.Evt).WithPayload(message.Raw))
		return
	}

	var (
		member Member
		ok     bool
		kind   string
	)
	s.mu.Lock()
	switch message.Evt {
	case rpc.EvtVoiceStateCreate:
		member, ok = s.state.upsertMember(voiceState)
		kind = MemberJoin
	case rpc.EvtVoiceStateUpdate:
		member, ok = s.state.upsertMember(voiceState)
		kind = MemberUpdate
	default:
		member, ok = s.state.removeMember(voiceState)
		kind = MemberLeave
	}
	s.mu.Unlock()

	if ok {
		s.notifier.Notify(EventVCUser, VCUser{Event: kind, Data: member})
	}
}

// onSpeaking applies SPEAKING_START and SPEAKING_STOP.
func (l *loop) onSpeaking(message *rpc.Message) {
	s := l.session
	var data rpc.Speaking
	if err := message.DecodeData(&data); err != nil || data.UserID == "" {
		s.logger.Debug("undecodable speaking event", "evt", message.Evt, "error", err)
		return
	}
	speaking := message.Evt == rpc.EvtSpeakingStart

	s.mu.Lock()
	isMe := s.state.setSpeaking(data.UserID, speaking)
	s.mu.Unlock()

	s.notifier.Notify(EventVCSpeak, VCSpeak{UserID: data.UserID, IsMe: isMe, Speaking: speaking})
}

// onVoiceSettingsUpdate applies the user's own mute and deafen.
func (l *loop) onVoiceSettingsUpdate(message *rpc.Message) {
	s := l.session
	var settings rpc.VoiceSettings
	if err := message.DecodeData(&settings); err != nil {
		s.notifier.Notify(EventError, fault.Wrap(fault.EventDecode, err, "decoding voice settings").WithPayload(message.Raw))
		return
	}

	s.mu.Lock()
	s.state.setVoiceSettings(settings.Mute, settings.Deaf)
	s.mu.Unlock()

	s.notifier.Notify(EventVCMuteUpdate, VCMuteUpdate{Mute: settings.Mute, Deaf: settings.Deaf})
}

// teardown runs when the loop ends. It closes both connections, resets
// the state, and announces leaving the channel if the user was in one.
func (s *Session) teardown(result error, done chan struct{}) {
	s.mu.Lock()
	commands, events := s.commands, s.events
	wasInChannel := s.state.InChannel()
	s.commands = nil
	s.events = nil
	s.cancel = nil
	s.done = nil
	s.result = result
	s.subscribedChannel = ""
	s.state.reset()
	s.mu.Unlock()

	if events != nil {
		events.Close()
	}
	if commands != nil {
		commands.Close()
	}
	if wasInChannel {
		s.notifier.Notify(EventVCSelect, VCSelect{InVC: false})
	}
	if result != nil {
		s.logger.Warn("session ended", "error", result)
	} else {
		s.logger.Info("session closed")
	}
	close(done)
}

// errorOr returns err, or a new error with text when err is nil.
func errorOr(err error, text string) error {
	if err != nil {
		return err
	}
	return errors.New(text)
}
