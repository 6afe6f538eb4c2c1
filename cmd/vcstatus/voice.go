// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/rpc"
)

type voiceParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func muteCommand() *cli.Command {
	return toggleCommand("mute", "Toggle your microphone mute", control.ActionToggleMute)
}

func deafenCommand() *cli.Command {
	return toggleCommand("deafen", "Toggle deafen", control.ActionToggleDeafen)
}

// toggleCommand builds a command that flips one voice setting and
// prints the resulting settings.
func toggleCommand(name, summary, action string) *cli.Command {
	var params voiceParams

	return &cli.Command{
		Name:    name,
		Summary: summary,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams(name, &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments(name, args); err != nil {
				return err
			}
			var settings rpc.VoiceSettings
			if err := params.Call(ctx, action, nil, &settings); err != nil {
				return err
			}
			if done, err := params.EmitJSON(settings); done {
				return err
			}
			fmt.Printf("mute %s, deafen %s\n", onOff(settings.Mute), onOff(settings.Deaf))
			return nil
		},
	}
}

func leaveCommand() *cli.Command {
	var params voiceParams

	return &cli.Command{
		Name:    "leave",
		Summary: "Leave the current voice channel",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("leave", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("leave", args); err != nil {
				return err
			}
			return params.Call(ctx, control.ActionLeaveChannel, nil, nil)
		},
	}
}

func reconnectCommand() *cli.Command {
	var params voiceParams

	return &cli.Command{
		Name:    "reconnect",
		Summary: "Restart the daemon's session with the chat client",
		Description: `Ask the daemon to drop its connection to the chat client and connect
again at once. Use this after authorizing was cancelled, or after
"vcstatus logout" to be asked for authorization again.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("reconnect", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("reconnect", args); err != nil {
				return err
			}
			return params.Call(ctx, control.ActionReconnect, nil, nil)
		},
	}
}
