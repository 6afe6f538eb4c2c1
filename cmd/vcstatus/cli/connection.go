// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"errors"
	"io/fs"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vcstatus/vcstatus/lib/config"
	"github.com/vcstatus/vcstatus/lib/service"
)

// DaemonConnection locates the daemon's control socket. Embed it in a
// params struct to get the --config and --socket flags.
type DaemonConnection struct {
	ConfigPath string
	SocketPath string
}

// AddFlags registers --config and --socket.
func (c *DaemonConnection) AddFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&c.ConfigPath, "config", "", "configuration file (default $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&c.SocketPath, "socket", "", "daemon control socket (overrides the configuration)")
}

// Socket resolves the control socket: --socket, then the configured
// control.socket_path, then the built-in default when no configuration
// file is named.
func (c *DaemonConnection) Socket() (string, error) {
	if c.SocketPath != "" {
		return c.SocketPath, nil
	}
	cfg, err := config.Load(c.ConfigPath)
	if errors.Is(err, config.ErrNoConfig) {
		return config.Default().Control.SocketPath, nil
	}
	if err != nil {
		return "", Validation("loading configuration: %w", err)
	}
	return cfg.Control.SocketPath, nil
}

// Client returns a client for the resolved control socket.
func (c *DaemonConnection) Client() (*service.ServiceClient, error) {
	socketPath, err := c.Socket()
	if err != nil {
		return nil, err
	}
	return service.NewServiceClient(socketPath), nil
}

// Call runs one control action and categorizes its failure.
func (c *DaemonConnection) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	client, err := c.Client()
	if err != nil {
		return err
	}
	return DiagnoseCallError(client.Call(ctx, action, fields, result), client.SocketPath())
}

// DiagnoseCallError turns a control-socket failure into a ToolError.
// Rejections by the daemon are transient: they report host-side state
// such as a session that is not yet connected.
func DiagnoseCallError(err error, socketPath string) error {
	if err == nil {
		return nil
	}
	var serviceError *service.ServiceError
	if errors.As(err, &serviceError) {
		return &ToolError{Category: CategoryTransient, Err: err}
	}
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
		return Transient("daemon not reachable at %s: %w", socketPath, err).
			WithHint("Is vcstatus-daemon running? Start it with 'vcstatus-daemon --config <file>'.")
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return Transient("%w", err)
}
