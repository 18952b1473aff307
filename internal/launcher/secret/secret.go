// Package secret stores remembered passwords and one-time password
// secrets, keyed by account id.
package secret

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
)

const (
	identityFile = "identity.txt"
	secretsFile  = "secrets.age"
)

// Store is the credential storage the launcher consults. Lookups for an
// unknown account return "" and no error.
type Store interface {
	Password(accountID string) (string, error)
	SetPassword(accountID, password string) error
	OTPSecret(accountID string) (string, error)
	SetOTPSecret(accountID, secret string) error
	Delete(accountID string) error
}

type entry struct {
	Password  string `json:"password,omitempty"`
	OTPSecret string `json:"otp_secret,omitempty"`
}

// FileStore keeps all secrets in one age-encrypted JSON document. The
// X25519 identity lives next to it with 0600 permissions.
type FileStore struct {
	mu       sync.Mutex
	dir      string
	identity *age.X25519Identity
}

func OpenFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create secret dir: %w", err)
	}
	identity, err := loadOrCreateIdentity(filepath.Join(dir, identityFile))
	if err != nil {
		return nil, err
	}
	return &FileStore{dir: dir, identity: identity}, nil
}

func loadOrCreateIdentity(path string) (*age.X25519Identity, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		identity, err := age.ParseX25519Identity(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("parse identity: %w", err)
		}
		return identity, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read identity: %w", err)
	}

	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("generate identity: %w", err)
	}
	if err := os.WriteFile(path, []byte(identity.String()+"\n"), 0o600); err != nil {
		return nil, fmt.Errorf("write identity: %w", err)
	}
	return identity, nil
}

func (s *FileStore) Password(accountID string) (string, error) {
	e, err := s.get(accountID)
	return e.Password, err
}

func (s *FileStore) SetPassword(accountID, password string) error {
	return s.update(accountID, func(e *entry) { e.Password = password })
}

func (s *FileStore) OTPSecret(accountID string) (string, error) {
	e, err := s.get(accountID)
	return e.OTPSecret, err
}

func (s *FileStore) SetOTPSecret(accountID, secret string) error {
	return s.update(accountID, func(e *entry) { e.OTPSecret = secret })
}

func (s *FileStore) Delete(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return err
	}
	delete(all, accountID)
	return s.writeAll(all)
}

func (s *FileStore) get(accountID string) (entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return entry{}, err
	}
	return all[accountID], nil
}

func (s *FileStore) update(accountID string, fn func(*entry)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readAll()
	if err != nil {
		return err
	}
	e := all[accountID]
	fn(&e)
	if e == (entry{}) {
		delete(all, accountID)
	} else {
		all[accountID] = e
	}
	return s.writeAll(all)
}

func (s *FileStore) readAll() (map[string]entry, error) {
	ciphertext, err := os.ReadFile(filepath.Join(s.dir, secretsFile))
	if errors.Is(err, os.ErrNotExist) {
		return map[string]entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}

	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decrypt secrets: %w", err)
	}

	all := map[string]entry{}
	if err := json.Unmarshal(plaintext, &all); err != nil {
		return nil, fmt.Errorf("decode secrets: %w", err)
	}
	return all, nil
}

func (s *FileStore) writeAll(all map[string]entry) error {
	plaintext, err := json.Marshal(all)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("encrypt secrets: %w", err)
	}

	path := filepath.Join(s.dir, secretsFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[string]entry{}}
}

func (m *MemoryStore) Password(accountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[accountID].Password, nil
}

func (m *MemoryStore) SetPassword(accountID, password string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[accountID]
	e.Password = password
	m.entries[accountID] = e
	return nil
}

func (m *MemoryStore) OTPSecret(accountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[accountID].OTPSecret, nil
}

func (m *MemoryStore) SetOTPSecret(accountID, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.entries[accountID]
	e.OTPSecret = secret
	m.entries[accountID] = e
	return nil
}

func (m *MemoryStore) Delete(accountID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, accountID)
	return nil
}
