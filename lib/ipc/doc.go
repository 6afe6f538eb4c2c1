// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc speaks the voice-chat host application's local socket
// protocol.
//
// The host listens on a Unix socket named <prefix><n> (n = 0..9) in the
// user's runtime or temp directory. Every frame is an 8-byte header
// (little-endian uint32 opcode, little-endian uint32 body length)
// followed by a JSON body:
//
//	opcode 0  handshake  {"v":1,"client_id":"..."}
//	opcode 1  frame      one command, reply, or event
//	opcode 2  close      {"code":N,"message":"..."}
//	opcode 3  ping
//	opcode 4  pong
//
// [Dial] locates the socket, checks that the listening process runs
// as the current user, performs the handshake, and waits for the READY
// dispatch. The resulting [*Conn] exposes message-level Send and
// Receive: pings are answered inside Receive and a close frame is
// surfaced as a [*CloseError].
//
// Bodies above [MaxFrameSize] are rejected in both directions.
package ipc
