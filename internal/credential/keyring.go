// Package credential keeps the bot's secrets in the OS keyring.
package credential

import (
	"errors"
	"fmt"
	"os"

	"github.com/99designs/keyring"
)

const serviceName = "dojobot"

// Keyring entries.
const (
	KeyTelegramToken  = "telegram-token"
	KeyNLUCredentials = "nlu-credentials"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes credentials in one keyring.
type Store struct {
	ring keyring.Keyring
}

// Open opens the system keyring, falling back to an encrypted file.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/dojobot/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("dojobot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get retrieves a credential value by key.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

// Set stores a credential value by key.
func (s *Store) Set(key, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:   key,
		Data:  []byte(value),
		Label: "Dojo Bot " + key,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Delete removes a credential by key. Deleting a missing key is not an
// error.
func (s *Store) Delete(key string) error {
	err := s.ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}
	return nil
}

// TelegramToken returns configured when set, otherwise the stored token.
func (s *Store) TelegramToken(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	return s.Get(KeyTelegramToken)
}

// NLUCredentials returns the service account JSON. A key stored in the
// keyring wins over the file at path.
func (s *Store) NLUCredentials(path string) ([]byte, error) {
	value, err := s.Get(KeyNLUCredentials)
	if err == nil {
		return []byte(value), nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if path == "" {
		return nil, fmt.Errorf("no NLU credentials stored and no credentials file configured: %w", ErrNotFound)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading NLU credentials %s: %w", path, err)
	}
	return data, nil
}
