// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the JSON command protocol spoken with the
// voice-chat host application over its local IPC socket.
//
// Every message is one JSON object with some of the fields nonce, cmd,
// evt, data and args. A message received from the host is either a
// reply to a command (it carries the command's nonce) or a push event
// (cmd is DISPATCH and the nonce is absent); [Message.Kind] tells them
// apart, and replies whose evt is ERROR are [KindError].
//
// Two channels share no connection:
//
//   - [CommandChannel] owns one connection and runs strictly
//     serialized request/response exchanges. A reply whose nonce does
//     not match the outstanding request fails the call immediately.
//     The direct voice and activity operations ([CommandChannel.ToggleMute],
//     [CommandChannel.LeaveVoiceChannel], [CommandChannel.SetActivity], ...)
//     are built on it.
//   - [EventChannel] owns the other connection. Sends on it are
//     fire-and-forget (AUTHORIZE, AUTHENTICATE, SUBSCRIBE) and its
//     Receive feeds the presence state machine.
//     [EventChannel.SetChannelEvents] subscribes or unsubscribes the
//     five per-channel events ([ChannelEvents]) in a fixed order.
//
// Failures are [*fault.Error] values carrying the payload in flight.
// The transport is the [Conn] interface; lib/ipc provides the
// production implementation and rpc/rpctest an in-memory one.
package rpc
