// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the entrypoint error handler shared by the
// vcstatus binaries, for failures that happen before (or after) a
// structured logger exists.
package process
