// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service is the daemon's control socket: a CBOR
// request-response protocol on a Unix socket, one request per
// connection.
//
// A client writes one CBOR map with an "action" field plus
// action-specific fields. For a request-response action the server
// replies with one [Response] ({ok, error, data}) and closes the
// connection. For a stream action the server replies {ok: true} and
// then writes a sequence of CBOR values until the handler returns, the
// client hangs up, or the server shuts down. A handler that fails
// before streaming anything produces an ordinary error response.
//
// The socket is created with mode 0600: anyone who can connect is the
// user who owns the daemon. [ServiceClient] is the matching client.
package service
