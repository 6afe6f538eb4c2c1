// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the vcstatus YAML configuration.
//
// The file comes from the --config flag or the VCSTATUS_CONFIG
// environment variable. There is no automatic discovery: [Load] with
// neither set returns [ErrNoConfig], and callers that can run without a
// file (the CLI talking to a running daemon) fall back to [Default]
// explicitly.
//
// Path values support ${VAR} and ${VAR:-default} expansion. Durations
// are Go duration strings ("10s", "1m30s").
package config
