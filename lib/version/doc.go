// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the vcstatus binaries.
//
// Values are injected at build time via -ldflags, for example:
//
//	go build -ldflags "-X github.com/vcstatus/vcstatus/lib/version.GitCommit=$(git rev-parse --short HEAD)"
package version
