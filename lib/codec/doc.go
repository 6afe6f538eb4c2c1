// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the CBOR configuration shared by every vcstatus
// component that talks CBOR.
//
// vcstatus speaks two formats with a fixed boundary:
//
//   - JSON toward the outside world: the host application's IPC
//     frames and the OAuth token endpoint.
//   - CBOR for everything vcstatus owns: the control socket between
//     the daemon and its clients (UI, vcstatus CLI) and the sealed
//     credential record on disk.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2) so the
// same value always produces the same bytes. Types that are only ever
// CBOR carry `cbor` tags; types that also cross a JSON boundary (the
// notification payloads, presence snapshots) carry `json` tags, which
// fxamacker/cbor reads as a fallback. Never put both on one field.
package codec
