// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil bounds HTTP response reads and classifies
// connection-teardown errors.
//
// The token endpoint returns a few hundred bytes of JSON; [ReadResponse]
// and [DecodeResponse] cap every body read at
// [MaxResponseSize] so a misbehaving server cannot make the daemon
// allocate without limit. [IsExpectedCloseError] tells the daemon
// whether a dead IPC or control-socket connection ended normally.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
)

// MaxResponseSize bounds HTTP response body reads: 1 MiB.
const MaxResponseSize int64 = 1 << 20

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a response body (bounded) and JSON-decodes it
// into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	return json.Unmarshal(data, v)
}
