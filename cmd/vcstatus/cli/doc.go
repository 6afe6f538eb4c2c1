// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command framework for the vcstatus CLI.
//
// The central type is [Command], a named node with optional
// [Command.Subcommands], a [pflag.FlagSet] factory, and a Run function.
// [Command.Execute] routes arguments through the tree, parses flags,
// and prints structured help. Unknown commands and flags get a
// suggestion of the closest known name (edit distance at most 3).
//
// Flags are usually declared as tagged fields of a params struct and
// bound with [FlagsFromParams]. Embedding [JSONOutput] adds --json;
// embedding [DaemonConnection] adds --config and --socket and the
// means to reach the daemon's control socket.
//
// Commands return [*ToolError] values whose category selects the exit
// code, and [*ExitError] when they have already reported the outcome
// themselves. [Report] prints either kind the way main expects.
package cli
