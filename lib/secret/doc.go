// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret keeps OAuth material out of the Go heap.
//
// A [Buffer] is an anonymous mmap region, mlock'd against swap and
// marked MADV_DONTDUMP, that is zeroed and unmapped on Close. vcstatus
// holds the OAuth client secret, access tokens, and refresh tokens in
// Buffers and converts them to strings only at the HTTP form and IPC
// JSON boundaries.
//
// Depends on golang.org/x/sys/unix.
package secret
