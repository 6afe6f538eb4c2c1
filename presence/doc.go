// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence drives an authenticated session with the voice-chat
// host and derives "who is in my voice channel and what are they doing"
// from its event stream.
//
// A [Session] dials two connections. The command connection carries
// request/response exchanges through an [rpc.CommandChannel]; the event
// connection carries the authorization handshake, subscriptions, and
// the push-event stream through an [rpc.EventChannel]. [Session.Connect]
// first tries to reauthenticate with the stored refresh token and falls
// back to the interactive AUTHORIZE flow exactly once when that fails.
//
// One goroutine reads the event stream and applies every message, in
// arrival order, to the session's [State] through named transitions.
// Each transition that changes what a user would see emits a
// notification on the configured [Notifier]:
//
//	error            non-fatal failure, payload is a fault
//	critical_error   the session cannot continue as is
//	vc_select        {in_vc}
//	vc_info          {name, users}
//	vc_mute_update   {mute, deaf}
//	vc_user          {event: JOIN|UPDATE|LEAVE, data: member}
//	vc_speak         {user_id, is_me, speaking}
//
// The loop tolerates individual read and decode failures. It ends when
// the event connection closes, after a run of consecutive read failures,
// when the user cancels authorization, or when authentication cannot be
// completed. [Session.Wait] reports why; the caller decides whether to
// reconnect.
//
// Direct operations ([Session.ToggleMute], [Session.SetActivity], ...)
// run on the command connection and never touch the event stream.
package presence
