// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential persists the OAuth refresh token between runs.
//
// A [Store] holds exactly one secret under a fixed [Key] (service
// "vcstatus", account "refresh_token" in production). [FileStore] keeps
// it in <dir>/credentials.cbor as a CBOR list of records, each carrying
// the age-encrypted secret, sealed to an identity generated on first
// save in <dir>/identity.age (mode 0600). Every write is a temp-file
// plus rename. [MemoryStore] backs tests.
//
// Only the token manager in package oauth uses a Store.
package credential
