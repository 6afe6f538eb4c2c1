// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/vcstatus/vcstatus/cmd/vcstatus/cli"
	"github.com/vcstatus/vcstatus/lib/config"
	"github.com/vcstatus/vcstatus/lib/secret"
)

type setupParams struct {
	Config     string `flag:"config" desc:"configuration file to write (default $VCSTATUS_CONFIG, then the user config directory)"`
	ClientID   string `flag:"client-id" desc:"application ID of the registered OAuth application (required)"`
	SecretFile string `flag:"secret-file" desc:"where to store the client secret (default: client_secret next to the configuration)"`
}

func setupCommand() *cli.Command {
	var params setupParams

	return &cli.Command{
		Name:    "setup",
		Summary: "Write the configuration and store the client secret",
		Description: `Create or update the configuration file with the application's client
ID and store its client secret in a separate file readable only by you.

The secret is prompted for without echo when stdin is a terminal, and
read from stdin otherwise.`,
		Examples: []cli.Example{
			{Description: "Interactive setup", Command: "vcstatus setup --client-id 1234567890"},
			{Description: "Scripted setup", Command: "pass show vcstatus/secret | vcstatus setup --client-id 1234567890 --config ./vcstatus.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			return cli.FlagsFromParams("setup", &params)
		},
		Run: func(ctx context.Context, args []string, logger *slog.Logger) error {
			if err := noArguments("setup", args); err != nil {
				return err
			}
			if params.ClientID == "" {
				return cli.Validation("--client-id is required")
			}
			configPath, err := setupConfigPath(params.Config)
			if err != nil {
				return err
			}

			clientSecret, err := readClientSecret(os.Stdin, os.Stderr)
			if err != nil {
				return err
			}
			defer clientSecret.Close()

			cfg, err := writeSetup(configPath, params.ClientID, params.SecretFile, clientSecret)
			if err != nil {
				return err
			}
			logger.Info("setup complete", "config", configPath, "secret_file", cfg.Client.ClientSecretFile)

			fmt.Printf("Configuration: %s\n", configPath)
			fmt.Printf("Client secret: %s\n", cfg.Client.ClientSecretFile)
			fmt.Printf("\nStart the daemon with:\n  vcstatus-daemon --config %s\n", configPath)
			return nil
		},
	}
}

// setupConfigPath picks the file setup writes.
func setupConfigPath(flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if fromEnvironment := os.Getenv(config.EnvironmentVariable); fromEnvironment != "" {
		return fromEnvironment, nil
	}
	directory, err := os.UserConfigDir()
	if err != nil {
		return "", cli.Validation("no configuration path: pass --config (%w)", err)
	}
	return filepath.Join(directory, "vcstatus", "config.yaml"), nil
}

// readClientSecret prompts on prompt without echo when input is a
// terminal and otherwise reads all of input.
func readClientSecret(input *os.File, prompt io.Writer) (*secret.Buffer, error) {
	var data []byte
	if term.IsTerminal(int(input.Fd())) {
		fmt.Fprint(prompt, "Client secret: ")
		read, err := term.ReadPassword(int(input.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return nil, fmt.Errorf("reading client secret: %w", err)
		}
		data = read
	} else {
		read, err := io.ReadAll(io.LimitReader(input, 4096))
		if err != nil {
			return nil, fmt.Errorf("reading client secret from stdin: %w", err)
		}
		data = read
	}
	defer secret.Zero(data)

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, cli.Validation("client secret is empty")
	}
	return secret.NewFromBytes(trimmed)
}

// writeSetup stores clientSecret and writes the configuration at
// configPath, keeping any other settings an existing file has.
func writeSetup(configPath, clientID, secretPath string, clientSecret *secret.Buffer) (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = config.Default()
	} else if err != nil {
		return nil, cli.Validation("loading existing configuration: %w", err)
	}

	if secretPath == "" {
		secretPath = cfg.Client.ClientSecretFile
	}
	if secretPath == "" {
		secretPath = filepath.Join(filepath.Dir(configPath), "client_secret")
	}
	absoluteSecret, err := filepath.Abs(secretPath)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", secretPath, err)
	}

	cfg.Client.ClientID = clientID
	cfg.Client.ClientSecretFile = absoluteSecret
	if err := cfg.Validate(); err != nil {
		return nil, cli.Validation("%w", err)
	}

	if err := secret.WriteFile(absoluteSecret, clientSecret); err != nil {
		return nil, fmt.Errorf("storing client secret: %w", err)
	}
	if err := cfg.Save(configPath); err != nil {
		return nil, fmt.Errorf("writing configuration: %w", err)
	}
	return cfg, nil
}
