// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short directory under /tmp for Unix sockets
// (sun_path is limited to 108 bytes, which deep t.TempDir paths can
// exceed). [RequireReceive] and [RequireClosed] wrap the
// select-with-timeout safety valve so tests never hang.
//
// All helpers call t.Fatalf on failure.
package testutil
