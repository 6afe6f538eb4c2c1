// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"sync"

	"github.com/vcstatus/vcstatus/lib/secret"
)

// ErrNotFound is returned by Load when nothing is stored under the key.
var ErrNotFound = errors.New("credential: not found")

// Key names a stored secret.
type Key struct {
	Service string
	Account string
}

// RefreshTokenKey is where the OAuth refresh token lives.
var RefreshTokenKey = Key{Service: "vcstatus", Account: "refresh_token"}

// Store persists one secret. Load returns a Buffer the caller closes.
// Save overwrites any previous value. Clear on an empty store is not
// an error.
type Store interface {
	Load() (*secret.Buffer, error)
	Save(value *secret.Buffer) error
	Clear() error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	value []byte
	saves int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (*secret.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil, ErrNotFound
	}
	return secret.NewFromBytes(append([]byte(nil), s.value...))
}

func (s *MemoryStore) Save(value *secret.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = append([]byte(nil), value.Bytes()...)
	s.saves++
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	secret.Zero(s.value)
	s.value = nil
	return nil
}

// Saves reports how many times Save has been called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
