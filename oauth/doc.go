// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package oauth obtains and renews the access token the daemon presents
// to the voice-chat host.
//
// [Client] talks to the OAuth2 token endpoint: [Client.ExchangeCode]
// trades the authorization code the host hands back after the user
// approves the app, and [Client.Refresh] trades a stored refresh token
// for a new pair. Both are form-encoded POSTs with HTTP basic auth using
// the application's client id and secret. Transport failures and 5xx
// responses are retried with jittered exponential backoff; a 4xx is
// returned at once as an [*EndpointError].
//
// [Manager] owns persistence. Every pair it obtains has its refresh
// token written to the credential store before the access token is
// handed to the caller, so a crash between the two never strands the
// user with a consumed, unsaved refresh token.
//
// Token material is held in [secret.Buffer] values and never logged.
package oauth
