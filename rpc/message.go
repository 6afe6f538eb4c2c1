// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rpc

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Command names.
const (
	CmdDispatch                = "DISPATCH"
	CmdAuthorize               = "AUTHORIZE"
	CmdAuthenticate            = "AUTHENTICATE"
	CmdSubscribe               = "SUBSCRIBE"
	CmdUnsubscribe             = "UNSUBSCRIBE"
	CmdGetSelectedVoiceChannel = "GET_SELECTED_VOICE_CHANNEL"
	CmdGetVoiceSettings        = "GET_VOICE_SETTINGS"
	CmdSetVoiceSettings        = "SET_VOICE_SETTINGS"
	CmdSelectVoiceChannel      = "SELECT_VOICE_CHANNEL"
	CmdSetActivity             = "SET_ACTIVITY"
)

// Event names.
const (
	EvtReady               = "READY"
	EvtError               = "ERROR"
	EvtVoiceSettingsUpdate = "VOICE_SETTINGS_UPDATE"
	EvtVoiceChannelSelect  = "VOICE_CHANNEL_SELECT"
	EvtVoiceStateCreate    = "VOICE_STATE_CREATE"
	EvtVoiceStateUpdate    = "VOICE_STATE_UPDATE"
	EvtVoiceStateDelete    = "VOICE_STATE_DELETE"
	EvtSpeakingStart       = "SPEAKING_START"
	EvtSpeakingStop        = "SPEAKING_STOP"
)

// ChannelEvents are subscribed and unsubscribed together, in this
// order, whenever the user enters or leaves a voice channel.
var ChannelEvents = [...]string{
	EvtVoiceStateCreate,
	EvtVoiceStateUpdate,
	EvtVoiceStateDelete,
	EvtSpeakingStart,
	EvtSpeakingStop,
}

// Request is an outgoing command.
type Request struct {
	Nonce   string `json:"nonce"`
	Command string `json:"cmd"`
	Event   string `json:"evt,omitempty"`
	Args    any    `json:"args,omitempty"`
}

// NewRequest returns a request for command with a fresh nonce.
func NewRequest(command string, args any) Request {
	return Request{Nonce: NewNonce(), Command: command, Args: args}
}

// NewNonce returns a random 128-bit identifier as a UUID string.
func NewNonce() string {
	return uuid.NewString()
}

// Kind classifies an incoming message.
type Kind int

const (
	// KindReply answers a command; its nonce names the command.
	KindReply Kind = iota

	// KindDispatch is a push event (cmd DISPATCH).
	KindDispatch

	// KindError is a reply or event whose evt is ERROR.
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindDispatch:
		return "dispatch"
	case KindError:
		return "error"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Message is an incoming message. Raw holds the bytes it was decoded
// from.
type Message struct {
	Nonce string          `json:"nonce"`
	Cmd   string          `json:"cmd"`
	Evt   string          `json:"evt"`
	Data  json.RawMessage `json:"data"`
	Args  json.RawMessage `json:"args"`

	Raw []byte `json:"-"`
}

// DecodeMessage parses one message.
func DecodeMessage(payload []byte) (*Message, error) {
	var message Message
	if err := json.Unmarshal(payload, &message); err != nil {
		return nil, err
	}
	message.Raw = payload
	return &message, nil
}

// Kind classifies the message.
func (m *Message) Kind() Kind {
	switch {
	case m.Evt == EvtError:
		return KindError
	case m.Cmd == CmdDispatch:
		return KindDispatch
	}
	return KindReply
}

// HasData reports whether data is present and not JSON null.
func (m *Message) HasData() bool {
	return len(m.Data) > 0 && string(m.Data) != "null"
}

// DecodeData unmarshals data into v.
func (m *Message) DecodeData(v any) error {
	if !m.HasData() {
		return fmt.Errorf("%s %s: message has no data", m.Cmd, m.Evt)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s %s: decoding data: %w", m.Cmd, m.Evt, err)
	}
	return nil
}

// ProtocolError is a reply with evt ERROR.
type ProtocolError struct {
	Command string
	Code    int
	Message string
	Payload []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("host rejected %s (code %d): %s", e.Command, e.Code, e.Message)
}

// protocolError builds a ProtocolError from an ERROR message.
func protocolError(message *Message) *ProtocolError {
	var data ErrorData
	json.Unmarshal(message.Data, &data)
	return &ProtocolError{
		Command: message.Cmd,
		Code:    data.Code,
		Message: data.Message,
		Payload: message.Raw,
	}
}
