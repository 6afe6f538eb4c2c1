// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/control"
)

type statusParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func statusCommand() *cli.Command {
	var params statusParams

	return &cli.Command{
		Name:    "status",
		Summary: "Show the session, the current channel, and its members",
		Description: `Show the daemon's view of the voice session: whether it is connected
to the chat client, which channel you are in, and who else is there.

Exits 1 when the daemon is running but not connected to the chat client.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("status", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("status", args); err != nil {
				return err
			}
			return runStatus(ctx, &params, os.Stdout)
		},
	}
}

func runStatus(ctx context.Context, params *statusParams, w io.Writer) error {
	var status control.Status
	if err := params.Call(ctx, control.ActionStatus, nil, &status); err != nil {
		return err
	}
	if done, err := params.EmitJSON(status); done {
		return err
	}
	renderStatus(w, status)
	if !status.Connected {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

type channelParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func channelCommand() *cli.Command {
	var params channelParams

	return &cli.Command{
		Name:    "channel",
		Summary: "Ask the chat client which voice channel you are in",
		Description: `Query the chat client directly for the selected voice channel. Unlike
"status", which reports the daemon's tracked state, this makes a round
trip to the client.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("channel", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("channel", args); err != nil {
				return err
			}
			var channel control.VoiceChannel
			if err := params.Call(ctx, control.ActionVoiceChannel, nil, &channel); err != nil {
				return err
			}
			if done, err := params.EmitJSON(channel); done {
				return err
			}
			if !channel.InVoice {
				fmt.Println("not in voice")
				return nil
			}
			fmt.Printf("%s (%s), %d connected\n",
				channelStyle.Render(channel.Channel.Name), channel.Channel.ID, len(channel.Channel.VoiceStates))
			return nil
		},
	}
}
