// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package fault

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// CreateClient: building an IPC client (dial or handshake) failed.
	CreateClient Kind = "CreateClient"

	// Connect: the presence session could not establish its connections.
	Connect Kind = "Connect"

	// Authorize: the AUTHORIZE handshake failed or was cancelled.
	Authorize Kind = "Authorize"

	// ReAuth: restoring a session from the stored refresh token failed.
	ReAuth Kind = "ReAuth"

	Subscribe   Kind = "Subscribe"
	Unsubscribe Kind = "Unsubscribe"

	// EventSend: writing a message to a connection failed.
	EventSend Kind = "EventSend"

	// EventReceive: a message arrived that does not answer the
	// outstanding command (nonce mismatch).
	EventReceive Kind = "EventReceive"

	// EventDecode: reading or decoding a message failed, including a
	// reply that did not arrive before the reply deadline.
	EventDecode Kind = "EventDecode"

	// TokenFetch: exchanging an authorization code failed.
	TokenFetch Kind = "TokenFetch"

	// RefreshToken: refreshing an access token failed.
	RefreshToken Kind = "RefreshToken"

	ConfigRead Kind = "ConfigRead"
	ConfigSave Kind = "ConfigSave"

	// LeaveVC: leaving the current voice channel failed.
	LeaveVC Kind = "LeaveVC"
)

// Error is a classified failure. Payload holds the JSON message that
// was being sent or received, when there was one.
type Error struct {
	Kind    Kind
	Message string
	Payload json.RawMessage
	Err     error
}

// New returns an Error with a formatted message and no cause.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap returns an Error with cause err. A nil err yields nil.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithPayload attaches the in-flight message and returns e.
func (e *Error) WithPayload(payload []byte) *Error {
	if len(payload) > 0 {
		e.Payload = append(json.RawMessage(nil), payload...)
	}
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// wireError is the notification form. The cause is folded into the
// message because notification consumers only see text.
type wireError struct {
	ErrorType Kind            `json:"error_type"`
	Message   string          `json:"message"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON emits {error_type, message, payload}.
func (e *Error) MarshalJSON() ([]byte, error) {
	message := e.Message
	if e.Err != nil {
		message = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	payload := e.Payload
	if len(payload) > 0 && !json.Valid(payload) {
		quoted, err := json.Marshal(string(payload))
		if err != nil {
			return nil, err
		}
		payload = quoted
	}
	return json.Marshal(wireError{ErrorType: e.Kind, Message: message, Payload: payload})
}

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var faultError *Error
	if errors.As(err, &faultError) {
		return faultError.Kind
	}
	return ""
}

// Is reports whether err's chain contains an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
