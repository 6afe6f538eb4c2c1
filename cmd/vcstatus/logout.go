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
	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/config"
	"github.com/vcstatus/vcstatus/lib/credential"
	"github.com/vcstatus/vcstatus/oauth"
)

type logoutParams struct {
	cli.DaemonConnection
	Reconnect bool `flag:"reconnect" desc:"also restart the daemon's session so it asks for authorization now"`
}

func logoutCommand() *cli.Command {
	var params logoutParams

	return &cli.Command{
		Name:    "logout",
		Summary: "Delete the stored authorization",
		Description: `Delete the stored refresh token. The daemon's current session keeps
working; the next connection asks you to authorize the application
again. Pass --reconnect to make that happen immediately.`,
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("logout", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := noArguments("logout", args); err != nil {
				return err
			}
			cfg, err := config.Load(params.ConfigPath)
			if err != nil {
				return cli.Validation("loading configuration: %w", err)
			}
			if err := forgetSession(cfg.State.Dir, logger); err != nil {
				return err
			}
			fmt.Println("Stored authorization removed.")

			if params.Reconnect {
				return params.Call(ctx, control.ActionReconnect, nil, nil)
			}
			return nil
		},
	}
}

// forgetSession clears the refresh token kept under stateDir. Only the
// token manager touches the credential store, so the clear goes
// through one even though no token endpoint is needed.
func forgetSession(stateDir string, logger *slog.Logger) error {
	store := credential.NewFileStore(stateDir, credential.RefreshTokenKey, clock.Real())
	return oauth.NewManager(nil, store, logger).Forget()
}
