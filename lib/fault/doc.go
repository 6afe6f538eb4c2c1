// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package fault defines the error taxonomy shared by the IPC channels,
// the token manager, and the presence state machine.
//
// Every domain failure is an [*Error] carrying a [Kind], a
// human-readable message, the raw payload that was in flight when the
// failure happened (if any), and the underlying cause. The JSON form
// ({error_type, message, payload}) is what the presence session sends
// in its error notifications. Use [KindOf] and [Is] rather than
// inspecting message text.
package fault
