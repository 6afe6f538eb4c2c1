// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the variable Load consults when no
// explicit path is given.
const EnvironmentVariable = "VCSTATUS_CONFIG"

// ErrNoConfig is returned by Load when neither a path nor
// VCSTATUS_CONFIG is provided.
var ErrNoConfig = errors.New("no configuration file: pass --config or set " + EnvironmentVariable)

// Config is the complete vcstatus configuration.
type Config struct {
	Client  ClientConfig  `yaml:"client"`
	OAuth   OAuthConfig   `yaml:"oauth"`
	IPC     IPCConfig     `yaml:"ipc"`
	State   StateConfig   `yaml:"state"`
	Control ControlConfig `yaml:"control"`
	Log     LogConfig     `yaml:"log"`
}

// ClientConfig identifies the registered OAuth application.
type ClientConfig struct {
	// ClientID is the application ID sent in the IPC handshake and in
	// AUTHORIZE. Required.
	ClientID string `yaml:"client_id"`

	// ClientSecretFile holds the OAuth client secret. The secret itself
	// never appears in this file. Required.
	ClientSecretFile string `yaml:"client_secret_file"`

	// RedirectURI must match the application's registered redirect.
	// Default: http://localhost
	RedirectURI string `yaml:"redirect_uri"`

	// Scopes requested by AUTHORIZE. Default: [rpc, identify]
	Scopes []string `yaml:"scopes"`
}

// OAuthConfig configures the token endpoint client.
type OAuthConfig struct {
	TokenURL string `yaml:"token_url"`

	// Timeout bounds one HTTP attempt.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is how many times a request failing at the transport
	// level is retried. HTTP error statuses are never retried.
	MaxRetries int `yaml:"max_retries"`
}

// IPCConfig locates the host application's IPC socket.
type IPCConfig struct {
	// SocketDirs are searched in order. Entries that expand to the
	// empty string are dropped.
	SocketDirs []string `yaml:"socket_dirs"`

	// SocketPrefix is joined with an index 0..MaxIndex.
	SocketPrefix string `yaml:"socket_prefix"`
	MaxIndex     int    `yaml:"max_index"`

	// ReplyTimeout bounds the wait for a command reply.
	ReplyTimeout time.Duration `yaml:"reply_timeout"`

	// DialTimeout bounds connect plus handshake.
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// StateConfig locates persisted state.
type StateConfig struct {
	// Dir holds the sealed credential record and its age identity.
	Dir string `yaml:"dir"`
}

// ControlConfig configures the daemon's control socket.
type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`

	// HistorySize is how many recent notifications a new watcher is
	// replayed.
	HistorySize int `yaml:"history_size"`
}

// LogConfig configures the daemon logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`
}

// Default returns the built-in configuration with paths expanded.
// ClientID and ClientSecretFile are empty; Validate rejects them until
// a file provides them.
func Default() *Config {
	cfg := &Config{
		Client: ClientConfig{
			RedirectURI: "http://localhost",
			Scopes:      []string{"rpc", "identify"},
		},
		OAuth: OAuthConfig{
			TokenURL:   "https://discord.com/api/oauth2/token",
			Timeout:    15 * time.Second,
			MaxRetries: 3,
		},
		IPC: IPCConfig{
			SocketDirs:   []string{"${XDG_RUNTIME_DIR}", "${TMPDIR}", "/tmp"},
			SocketPrefix: "discord-ipc-",
			MaxIndex:     9,
			ReplyTimeout: 10 * time.Second,
			DialTimeout:  5 * time.Second,
		},
		State: StateConfig{
			Dir: "${HOME}/.local/state/vcstatus",
		},
		Control: ControlConfig{
			SocketPath:  "${XDG_RUNTIME_DIR:-/tmp}/vcstatus.sock",
			HistorySize: 64,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
	cfg.expandVariables()
	return cfg
}

// Load loads the file at path, or at $VCSTATUS_CONFIG when path is
// empty.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvironmentVariable)
	}
	if path == "" {
		return nil, ErrNoConfig
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over Default. Only keys
// present in the file override defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	return cfg, nil
}

// Save writes the configuration to path atomically with mode 0600.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	temporary, err := os.CreateTemp(filepath.Dir(path), ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("creating temporary config: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("writing config: %w", err)
	}
	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("setting config mode: %w", err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing config: %w", err)
	}
	return os.Rename(temporaryPath, path)
}

func (c *Config) expandVariables() {
	c.Client.ClientSecretFile = expandVars(c.Client.ClientSecretFile)
	c.State.Dir = expandVars(c.State.Dir)
	c.Control.SocketPath = expandVars(c.Control.SocketPath)

	directories := make([]string, 0, len(c.IPC.SocketDirs))
	for _, directory := range c.IPC.SocketDirs {
		if expanded := expandVars(directory); expanded != "" {
			directories = append(directories, expanded)
		}
	}
	c.IPC.SocketDirs = directories
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} from the environment.
func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration, reporting every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Client.ClientID == "" {
		errs = append(errs, fmt.Errorf("client.client_id is required"))
	}
	if c.Client.ClientSecretFile == "" {
		errs = append(errs, fmt.Errorf("client.client_secret_file is required"))
	}
	if _, err := url.ParseRequestURI(c.Client.RedirectURI); err != nil {
		errs = append(errs, fmt.Errorf("client.redirect_uri: %w", err))
	}
	if len(c.Client.Scopes) == 0 {
		errs = append(errs, fmt.Errorf("client.scopes must not be empty"))
	}

	if _, err := url.ParseRequestURI(c.OAuth.TokenURL); err != nil {
		errs = append(errs, fmt.Errorf("oauth.token_url: %w", err))
	}
	if c.OAuth.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("oauth.timeout must be positive"))
	}
	if c.OAuth.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("oauth.max_retries must not be negative"))
	}

	if len(c.IPC.SocketDirs) == 0 {
		errs = append(errs, fmt.Errorf("ipc.socket_dirs must name at least one directory"))
	}
	if c.IPC.SocketPrefix == "" {
		errs = append(errs, fmt.Errorf("ipc.socket_prefix is required"))
	}
	if c.IPC.MaxIndex < 0 {
		errs = append(errs, fmt.Errorf("ipc.max_index must not be negative"))
	}
	if c.IPC.ReplyTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ipc.reply_timeout must be positive"))
	}
	if c.IPC.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ipc.dial_timeout must be positive"))
	}

	if c.State.Dir == "" {
		errs = append(errs, fmt.Errorf("state.dir is required"))
	}
	if c.Control.SocketPath == "" {
		errs = append(errs, fmt.Errorf("control.socket_path is required"))
	}
	if c.Control.HistorySize < 0 {
		errs = append(errs, fmt.Errorf("control.history_size must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("log.level must be one of debug, info, warn, error (got %q)", l.Level)
}
