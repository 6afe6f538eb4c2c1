// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"encoding/json"
	"log/slog"

	"github.com/vcstatus/vcstatus/lib/fault"
)

// EventChannel carries the authorization handshake, subscriptions, and
// the push-event stream. Nothing on it waits for a reply: replies show
// up later in Receive like any other message.
type EventChannel struct {
	conn   Conn
	logger *slog.Logger
}

// NewEventChannel takes ownership of conn.
func NewEventChannel(conn Conn, logger *slog.Logger) *EventChannel {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventChannel{conn: conn, logger: logger}
}

// Send writes request without waiting for anything.
func (e *EventChannel) Send(request Request) error {
	payload, err := json.Marshal(request)
	if err != nil {
		return fault.Wrap(fault.EventSend, err, "encoding %s", request.Command)
	}
	if err := e.conn.Send(payload); err != nil {
		return fault.Wrap(fault.EventSend, err, "sending %s", request.Command).WithPayload(payload)
	}
	return nil
}

// Subscribe sends SUBSCRIBE (or UNSUBSCRIBE when subscribe is false)
// for event with a fresh nonce.
func (e *EventChannel) Subscribe(event string, args any, subscribe bool) error {
	command, kind := CmdSubscribe, fault.Subscribe
	if !subscribe {
		command, kind = CmdUnsubscribe, fault.Unsubscribe
	}
	request := Request{Nonce: NewNonce(), Command: command, Event: event, Args: args}
	if err := e.Send(request); err != nil {
		return fault.Wrap(kind, err, "%s %s", command, event)
	}
	return nil
}

// SetChannelEvents subscribes (or unsubscribes) every event in
// ChannelEvents for channelID, in order. The first failure is returned
// and the remaining events are not attempted; earlier ones are not
// rolled back.
func (e *EventChannel) SetChannelEvents(channelID string, subscribe bool) error {
	args := ChannelArgs{ChannelID: channelID}
	for _, event := range ChannelEvents {
		if err := e.Subscribe(event, args, subscribe); err != nil {
			return err
		}
	}
	e.logger.Debug("channel events updated", "channel_id", channelID, "subscribe", subscribe)
	return nil
}

// Authorize asks the host to start the consent flow. The code arrives
// later as an AUTHORIZE message on Receive.
func (e *EventChannel) Authorize(clientID string, scopes []string) error {
	err := e.Send(NewRequest(CmdAuthorize, AuthorizeArgs{ClientID: clientID, Scopes: scopes}))
	if err != nil {
		return fault.Wrap(fault.Authorize, err, "requesting authorization")
	}
	return nil
}

// Authenticate sends the access token. The host's confirmation arrives
// later as an AUTHENTICATE message on Receive.
func (e *EventChannel) Authenticate(accessToken string) error {
	return e.Send(NewRequest(CmdAuthenticate, AuthenticateArgs{AccessToken: accessToken}))
}

// RequestSelectedVoiceChannel sends GET_SELECTED_VOICE_CHANNEL; the
// reply arrives on Receive.
func (e *EventChannel) RequestSelectedVoiceChannel() error {
	return e.Send(NewRequest(CmdGetSelectedVoiceChannel, nil))
}

// Receive returns the next message. Read failures and undecodable
// messages are EventDecode faults; use IsConnectionClosed to tell a
// dead connection from one bad message.
func (e *EventChannel) Receive() (*Message, error) {
	raw, err := e.conn.Receive()
	if err != nil {
		return nil, fault.Wrap(fault.EventDecode, err, "reading event stream")
	}
	message, err := DecodeMessage(raw)
	if err != nil {
		return nil, fault.Wrap(fault.EventDecode, err, "decoding event").WithPayload(raw)
	}
	return message, nil
}

// Close closes the connection, which ends any pending Receive.
func (e *EventChannel) Close() error {
	return e.conn.Close()
}
