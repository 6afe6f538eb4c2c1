// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// vcstatus-daemon keeps an authenticated session with the local voice
// chat client, tracks the user's voice channel and its members, and
// serves that state on a Unix control socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/config"
	"github.com/vcstatus/vcstatus/lib/credential"
	"github.com/vcstatus/vcstatus/lib/ipc"
	"github.com/vcstatus/vcstatus/lib/notify"
	"github.com/vcstatus/vcstatus/lib/process"
	"github.com/vcstatus/vcstatus/lib/secret"
	"github.com/vcstatus/vcstatus/lib/service"
	"github.com/vcstatus/vcstatus/lib/version"
	"github.com/vcstatus/vcstatus/oauth"
	"github.com/vcstatus/vcstatus/presence"
	"github.com/vcstatus/vcstatus/rpc"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		showVersion bool
	)

	flags := pflag.NewFlagSet("vcstatus-daemon", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "path to the YAML configuration (default $"+config.EnvironmentVariable+")")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("vcstatus-daemon %s\n", version.Info())
		return nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	level, _ := cfg.Log.SlogLevel()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clientSecret, err := secret.ReadFile(cfg.Client.ClientSecretFile)
	if err != nil {
		return fmt.Errorf("reading client secret: %w", err)
	}
	defer clientSecret.Close()

	clk := clock.Real()

	tokenClient, err := oauth.NewClient(oauth.ClientConfig{
		TokenURL:     cfg.OAuth.TokenURL,
		ClientID:     cfg.Client.ClientID,
		ClientSecret: clientSecret,
		RedirectURI:  cfg.Client.RedirectURI,
		HTTPClient:   &http.Client{Timeout: cfg.OAuth.Timeout},
		MaxRetries:   cfg.OAuth.MaxRetries,
		Clock:        clk,
		Logger:       logger.With("component", "oauth"),
	})
	if err != nil {
		return err
	}
	store := credential.NewFileStore(cfg.State.Dir, credential.RefreshTokenKey, clk)
	tokens := oauth.NewManager(tokenClient, store, logger.With("component", "tokens"))

	hub := notify.NewHub(notify.Config{
		HistorySize: cfg.Control.HistorySize,
		Clock:       clk,
		Logger:      logger.With("component", "notify"),
	})
	defer hub.Close()

	session, err := presence.NewSession(presence.Config{
		ClientID:     cfg.Client.ClientID,
		Scopes:       cfg.Client.Scopes,
		Dial:         hostDialer(cfg.IPC, cfg.Client.ClientID, logger),
		Tokens:       tokens,
		Notifier:     hub,
		ReplyTimeout: cfg.IPC.ReplyTimeout,
		Clock:        clk,
		Logger:       logger.With("component", "presence"),
	})
	if err != nil {
		return err
	}

	daemon := newDaemon(session, hub, clk, logger, os.Getpid())

	socketServer := service.NewSocketServer(cfg.Control.SocketPath, logger)
	daemon.registerActions(socketServer)

	var serveErr error
	serveDone := make(chan struct{})
	go func() {
		defer close(serveDone)
		if err := socketServer.Serve(ctx); err != nil {
			serveErr = err
			stop()
		}
	}()

	logger.Info("vcstatus daemon running",
		"version", version.Info(),
		"control_socket", cfg.Control.SocketPath,
	)

	daemon.supervise(ctx)
	<-serveDone

	if serveErr != nil {
		return fmt.Errorf("control socket: %w", serveErr)
	}
	logger.Info("vcstatus daemon shutting down")
	return nil
}

// hostDialer connects to the host client's IPC socket. Each attempt is
// bounded by the configured dial timeout.
func hostDialer(cfg config.IPCConfig, clientID string, logger *slog.Logger) presence.Dialer {
	return func(ctx context.Context) (rpc.Conn, error) {
		dialContext, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		conn, err := ipc.Dial(dialContext, ipc.DialOptions{
			ClientID:     clientID,
			SocketDirs:   cfg.SocketDirs,
			SocketPrefix: cfg.SocketPrefix,
			MaxIndex:     cfg.MaxIndex,
			Logger:       logger.With("component", "ipc"),
		})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}
