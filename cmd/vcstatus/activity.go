// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/tidwall/jsonc"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/rpc"
)

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:    "activity",
		Summary: "Set or clear your rich-presence activity",
		Subcommands: []*cli.Command{
			activitySetCommand(),
			activityClearCommand(),
		},
		Examples: []cli.Example{
			{
				Description: "Set an activity from a file (JSON with comments)",
				Command:     "vcstatus activity set --file ~/.config/vcstatus/activity.jsonc",
			},
			{
				Description: "Set a quick activity from flags",
				Command:     `vcstatus activity set --details "Reviewing" --state "pull requests" --started`,
			},
			{
				Description: "Remove the activity",
				Command:     "vcstatus activity clear",
			},
		},
	}
}

type activitySetParams struct {
	cli.DaemonConnection
	File       string `flag:"file,f" desc:"activity definition (JSON, comments and trailing commas allowed)"`
	Details    string `flag:"details" desc:"first line of the activity"`
	State      string `flag:"state" desc:"second line of the activity"`
	LargeImage string `flag:"large-image" desc:"large image asset key or URL"`
	LargeText  string `flag:"large-text" desc:"large image hover text"`
	Started    bool   `flag:"started" desc:"show elapsed time from now"`
}

func activitySetCommand() *cli.Command {
	var params activitySetParams

	return &cli.Command{
		Name:    "set",
		Summary: "Set the activity shown on your profile",
		Description: `Set the rich-presence activity. The activity is read from --file when
given; the other flags override its fields. The daemon owns the
activity, so it disappears when the daemon exits.`,
		Usage: "vcstatus activity set [--file <path>] [flags]",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("set", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("activity set", args); err != nil {
				return err
			}
			activity, err := buildActivity(&params, time.Now())
			if err != nil {
				return err
			}
			return params.Call(ctx, control.ActionSetActivity, map[string]any{"activity": activity}, nil)
		},
	}
}

// buildActivity assembles the activity from the file and flags and
// validates it.
func buildActivity(params *activitySetParams, now time.Time) (*rpc.Activity, error) {
	activity := &rpc.Activity{}
	if params.File != "" {
		loaded, err := readActivityFile(params.File)
		if err != nil {
			return nil, err
		}
		activity = loaded
	}

	if params.Details != "" {
		activity.Details = params.Details
	}
	if params.State != "" {
		activity.State = params.State
	}
	if params.LargeImage != "" || params.LargeText != "" {
		if activity.Assets == nil {
			activity.Assets = &rpc.ActivityAssets{}
		}
		if params.LargeImage != "" {
			activity.Assets.LargeImage = params.LargeImage
		}
		if params.LargeText != "" {
			activity.Assets.LargeText = params.LargeText
		}
	}
	if params.Started {
		activity.Timestamps = &rpc.ActivityTimestamps{Start: now.Unix()}
	}

	if activity.Details == "" && activity.State == "" && activity.Name == "" {
		return nil, cli.Validation("activity is empty: pass --file, --details, or --state")
	}
	if err := activity.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}
	return activity, nil
}

func readActivityFile(path string) (*rpc.Activity, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, cli.NotFound("activity file %s does not exist", path)
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var activity rpc.Activity
	if err := json.Unmarshal(jsonc.ToJSON(data), &activity); err != nil {
		return nil, cli.Validation("parsing %s: %w", path, err)
	}
	return &activity, nil
}

type activityClearParams struct {
	cli.DaemonConnection
}

func activityClearCommand() *cli.Command {
	var params activityClearParams

	return &cli.Command{
		Name:    "clear",
		Summary: "Remove the activity",
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("clear", &params)
		},
		Run: func(ctx context.Context, args []string, _ *slog.Logger) error {
			if err := noArguments("activity clear", args); err != nil {
				return err
			}
			return params.Call(ctx, control.ActionClearActivity, nil, nil)
		},
	}
}
