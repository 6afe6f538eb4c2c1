// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package credential

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vcstatus/vcstatus/lib/clock"
	"github.com/vcstatus/vcstatus/lib/codec"
	"github.com/vcstatus/vcstatus/lib/sealed"
	"github.com/vcstatus/vcstatus/lib/secret"
)

const (
	recordsFile  = "credentials.cbor"
	identityFile = "identity.age"
)

// Record is one stored secret on disk.
type Record struct {
	Service    string `cbor:"service"`
	Account    string `cbor:"account"`
	Ciphertext []byte `cbor:"ciphertext"`
	UpdatedAt  int64  `cbor:"updated_at"`
}

type recordFile struct {
	Records []Record `cbor:"records"`
}

// FileStore is a Store backed by a sealed file in a state directory.
type FileStore struct {
	directory string
	key       Key
	clock     clock.Clock

	mu sync.Mutex
}

// NewFileStore returns a FileStore for key in directory. The directory
// is created (0700) on first Save. A nil clock means clock.Real().
func NewFileStore(directory string, key Key, clk clock.Clock) *FileStore {
	if clk == nil {
		clk = clock.Real()
	}
	return &FileStore{directory: directory, key: key, clock: clk}
}

// Load decrypts and returns the stored secret.
func (s *FileStore) Load() (*secret.Buffer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		return nil, err
	}
	index := s.find(records)
	if index < 0 {
		return nil, ErrNotFound
	}

	identity, err := s.readIdentity()
	if err != nil {
		return nil, fmt.Errorf("credential: reading identity: %w", err)
	}
	defer identity.Close()

	value, err := sealed.Decrypt(records[index].Ciphertext, identity)
	if err != nil {
		return nil, fmt.Errorf("credential: unsealing %s/%s: %w", s.key.Service, s.key.Account, err)
	}
	return value, nil
}

// Save seals value and replaces any existing record for the key.
func (s *FileStore) Save(value *secret.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.directory, 0700); err != nil {
		return fmt.Errorf("credential: creating state directory: %w", err)
	}

	recipient, err := s.ensureIdentity()
	if err != nil {
		return err
	}
	ciphertext, err := sealed.Encrypt(value.Bytes(), []string{recipient})
	if err != nil {
		return fmt.Errorf("credential: sealing: %w", err)
	}

	records, err := s.readRecords()
	if err != nil {
		return err
	}
	record := Record{
		Service:    s.key.Service,
		Account:    s.key.Account,
		Ciphertext: ciphertext,
		UpdatedAt:  s.clock.Now().Unix(),
	}
	if index := s.find(records); index >= 0 {
		records[index] = record
	} else {
		records = append(records, record)
	}
	return s.writeRecords(records)
}

// Clear removes the record for the key. The identity is kept.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		return err
	}
	index := s.find(records)
	if index < 0 {
		return nil
	}
	records = append(records[:index], records[index+1:]...)
	if len(records) == 0 {
		if err := os.Remove(filepath.Join(s.directory, recordsFile)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("credential: removing %s: %w", recordsFile, err)
		}
		return nil
	}
	return s.writeRecords(records)
}

// UpdatedAt reports when the key was last saved, as Unix seconds.
func (s *FileStore) UpdatedAt() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.readRecords()
	if err != nil {
		return 0, err
	}
	index := s.find(records)
	if index < 0 {
		return 0, ErrNotFound
	}
	return records[index].UpdatedAt, nil
}

func (s *FileStore) find(records []Record) int {
	for index, record := range records {
		if record.Service == s.key.Service && record.Account == s.key.Account {
			return index
		}
	}
	return -1
}

func (s *FileStore) readRecords() ([]Record, error) {
	data, err := os.ReadFile(filepath.Join(s.directory, recordsFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", recordsFile, err)
	}
	var file recordFile
	if err := codec.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("credential: decoding %s: %w", recordsFile, err)
	}
	return file.Records, nil
}

func (s *FileStore) writeRecords(records []Record) error {
	data, err := codec.Marshal(recordFile{Records: records})
	if err != nil {
		return fmt.Errorf("credential: encoding records: %w", err)
	}
	return writeAtomic(filepath.Join(s.directory, recordsFile), data)
}

func (s *FileStore) readIdentity() (*secret.Buffer, error) {
	return secret.ReadFile(filepath.Join(s.directory, identityFile))
}

// ensureIdentity returns the recipient for the directory's identity,
// generating the identity if it does not exist yet.
func (s *FileStore) ensureIdentity() (string, error) {
	identity, err := s.readIdentity()
	if err == nil {
		defer identity.Close()
		recipient, err := sealed.RecipientOf(identity)
		if err != nil {
			return "", fmt.Errorf("credential: %s: %w", identityFile, err)
		}
		return recipient, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("credential: reading identity: %w", err)
	}

	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return "", fmt.Errorf("credential: %w", err)
	}
	defer keypair.Close()

	contents := append(append([]byte(nil), keypair.PrivateKey.Bytes()...), '\n')
	defer secret.Zero(contents)
	if err := writeAtomic(filepath.Join(s.directory, identityFile), contents); err != nil {
		return "", err
	}
	return keypair.PublicKey, nil
}

// writeAtomic writes data to path with mode 0600 via temp file and
// rename.
func writeAtomic(path string, data []byte) error {
	temporary, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("credential: creating temporary file: %w", err)
	}
	temporaryPath := temporary.Name()
	defer os.Remove(temporaryPath)

	if err := temporary.Chmod(0600); err != nil {
		temporary.Close()
		return fmt.Errorf("credential: setting mode: %w", err)
	}
	if _, err := temporary.Write(data); err != nil {
		temporary.Close()
		return fmt.Errorf("credential: writing %s: %w", filepath.Base(path), err)
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("credential: syncing %s: %w", filepath.Base(path), err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("credential: closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(temporaryPath, path); err != nil {
		return fmt.Errorf("credential: replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}
