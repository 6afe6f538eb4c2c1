// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/lib/version"
)

// rootCommand builds the complete command tree.
func rootCommand() *cli.Command {
	return &cli.Command{
		Name: "vcstatus",
		Description: `vcstatus: voice channel status for the local chat client.

Talks to vcstatus-daemon over its control socket. The daemon keeps the
authenticated session with the chat client; these commands query and
drive it.`,
		Subcommands: []*cli.Command{
			statusCommand(),
			channelCommand(),
			watchCommand(),
			muteCommand(),
			deafenCommand(),
			leaveCommand(),
			activityCommand(),
			reconnectCommand(),
			setupCommand(),
			logoutCommand(),
			{
				Name:    "version",
				Summary: "Print version information",
				Run: func(_ context.Context, _ []string, _ *slog.Logger) error {
					fmt.Fprintf(os.Stdout, "vcstatus %s\n", version.Full())
					return nil
				},
			},
		},
		Examples: []cli.Example{
			{Description: "First-time setup", Command: "vcstatus setup --client-id 1234567890"},
			{Description: "Show who is in your channel", Command: "vcstatus status"},
			{Description: "Follow changes as JSON lines", Command: "vcstatus watch --json"},
		},
	}
}

// noArguments rejects positional arguments for commands that take none.
func noArguments(command string, args []string) error {
	if len(args) > 0 {
		return cli.Validation("%s takes no arguments (got %q)", command, args[0])
	}
	return nil
}
