// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/control"
	"github.com/vcstatus/vcstatus/lib/notify"
)

type watchParams struct {
	cli.DaemonConnection
	cli.JSONOutput
}

func watchCommand() *cli.Command {
	var params watchParams

	return &cli.Command{
		Name:    "watch",
		Summary: "Follow voice notifications as they happen",
		Description: `Print the daemon's recent notifications, then each new one until
interrupted. With --json every notification is written as one JSON
object per line.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("watch", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := noArguments("watch", args); err != nil {
				return err
			}
			return runWatch(ctx, &params, os.Stdout, logger)
		},
	}
}

func runWatch(ctx context.Context, params *watchParams, w io.Writer, logger *slog.Logger) error {
	client, err := params.Client()
	if err != nil {
		return err
	}
	reader, err := client.Stream(ctx, control.ActionWatch, nil)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return cli.DiagnoseCallError(err, client.SocketPath())
	}
	defer reader.Close()

	encoder := json.NewEncoder(w)
	for {
		var notification notify.Notification
		if err := reader.Next(&notification); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				logger.Info("daemon ended the stream")
				return nil
			}
			return cli.Transient("reading notifications: %w", err)
		}
		if params.OutputJSON {
			if err := encoder.Encode(notification); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintln(w, describeNotification(notification))
	}
}
