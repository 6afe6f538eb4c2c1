// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vcstatus is the command-line front end of vcstatus-daemon: it shows
// the current voice channel, follows membership and speaking changes,
// toggles mute and deafen, and manages the rich-presence activity and
// the stored authorization.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCommand().Execute(ctx, os.Args[1:])
	stop()
	if err != nil {
		os.Exit(cli.Report(os.Stderr, err))
	}
}
