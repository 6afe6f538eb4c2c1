// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package notify fans presence notifications out to watchers.
//
// A [Hub] assigns each notification a sequence number, records it in
// a fixed-size [Ring] so late watchers can catch up, logs it, and
// delivers it to every open [Watcher] without blocking: a watcher
// whose buffer is full loses that notification and its drop counter
// increments. Payloads are stored as JSON.
package notify
