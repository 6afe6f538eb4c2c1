// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package oauth

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/vcstatus/vcstatus/lib/credential"
	"github.com/vcstatus/vcstatus/lib/fault"
	"github.com/vcstatus/vcstatus/lib/secret"
)

// ErrNoRefreshToken means no session was saved, so the user has to
// authorize the application.
var ErrNoRefreshToken = errors.New("no stored refresh token")

// Endpoint is the token endpoint as the Manager uses it. *Client
// implements it.
type Endpoint interface {
	ExchangeCode(ctx context.Context, code string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken *secret.Buffer) (*TokenPair, error)
}

// CredentialStore persists the refresh token. credential.FileStore
// implements it; Load reports credential.ErrNotFound when empty.
type CredentialStore interface {
	Load() (*secret.Buffer, error)
	Save(value *secret.Buffer) error
	Clear() error
}

// Manager obtains token pairs and keeps the stored refresh token
// current. It is the only component that reads or writes the store.
type Manager struct {
	endpoint Endpoint
	store    CredentialStore
	logger   *slog.Logger

	// mu serializes token operations so two refreshes never race to
	// consume the same refresh token.
	mu sync.Mutex
}

// NewManager returns a Manager. A nil logger uses slog.Default().
func NewManager(endpoint Endpoint, store CredentialStore, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{endpoint: endpoint, store: store, logger: logger}
}

// Reauthenticate refreshes the stored session. With nothing stored it
// returns a ReAuth fault wrapping ErrNoRefreshToken without contacting
// the endpoint. The caller closes the returned pair.
func (m *Manager) Reauthenticate(ctx context.Context) (*TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, err := m.store.Load()
	if errors.Is(err, credential.ErrNotFound) {
		return nil, fault.Wrap(fault.ReAuth, ErrNoRefreshToken, "cannot reauthenticate")
	}
	if err != nil {
		return nil, fault.Wrap(fault.ConfigRead, err, "loading refresh token")
	}
	defer stored.Close()

	pair, err := m.endpoint.Refresh(ctx, stored)
	if err != nil {
		return nil, err
	}
	if err := m.persist(pair); err != nil {
		return nil, err
	}
	m.logger.Info("session refreshed", "scope", pair.Scope, "expires_in", pair.ExpiresIn)
	return pair, nil
}

// Authorize exchanges an authorization code and stores the resulting
// refresh token. The caller closes the returned pair.
func (m *Manager) Authorize(ctx context.Context, code string) (*TokenPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	pair, err := m.endpoint.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := m.persist(pair); err != nil {
		return nil, err
	}
	m.logger.Info("application authorized", "scope", pair.Scope, "expires_in", pair.ExpiresIn)
	return pair, nil
}

// Forget deletes the stored session.
func (m *Manager) Forget() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Clear(); err != nil {
		return fault.Wrap(fault.ConfigSave, err, "clearing refresh token")
	}
	return nil
}

// persist saves pair's refresh token. A pair without one leaves the
// stored token in place. On failure pair is closed so its access token
// cannot be used.
func (m *Manager) persist(pair *TokenPair) error {
	if pair.RefreshToken == nil {
		m.logger.Debug("token response carried no refresh token, keeping stored one")
		return nil
	}
	if err := m.store.Save(pair.RefreshToken); err != nil {
		pair.Close()
		return fault.Wrap(fault.ConfigSave, err, "storing refresh token")
	}
	return nil
}
