// Package credentials stores the remote API token in the OS keyring,
// keyed by account email. The token never touches the database or the
// config file.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/zalando/go-keyring"
)

// service identifies Handoff entries in the OS keyring.
const service = "dev.handoff.remote"

// EnvToken names the environment variable consulted when the keyring has
// no entry, for headless and CI use.
const EnvToken = "HANDOFF_API_TOKEN"

// ErrNotFound is returned when no token is stored for the account. The
// pipeline treats it as a distinct condition, not a network failure.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes API tokens by account email.
type Store interface {
	GetToken(email string) (string, error)
	SetToken(email, token string) error
	DeleteToken(email string) error
}

// Keyring is the OS-keyring-backed Store.
type Keyring struct{}

// GetToken fetches the token for an account. When the keyring has no
// entry it falls back to the HANDOFF_API_TOKEN environment variable.
func (Keyring) GetToken(email string) (string, error) {
	token, err := keyring.Get(service, email)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			if envToken := os.Getenv(EnvToken); envToken != "" {
				return envToken, nil
			}
			return "", fmt.Errorf("credentials: %s: %w", email, ErrNotFound)
		}
		return "", fmt.Errorf("credentials: get token for %s: %w", email, err)
	}
	return token, nil
}

// SetToken saves the token for an account, replacing any existing one.
func (Keyring) SetToken(email, token string) error {
	if err := keyring.Set(service, email, token); err != nil {
		return fmt.Errorf("credentials: save token for %s: %w", email, err)
	}
	return nil
}

// DeleteToken removes the stored token for an account.
func (Keyring) DeleteToken(email string) error {
	if err := keyring.Delete(service, email); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("credentials: %s: %w", email, ErrNotFound)
		}
		return fmt.Errorf("credentials: delete token for %s: %w", email, err)
	}
	return nil
}

// Memory is an in-memory Store for tests and headless environments.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]string
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{tokens: make(map[string]string)}
}

func (m *Memory) GetToken(email string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[email]
	if !ok {
		return "", fmt.Errorf("credentials: %s: %w", email, ErrNotFound)
	}
	return token, nil
}

func (m *Memory) SetToken(email, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[email] = token
	return nil
}

func (m *Memory) DeleteToken(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[email]; !ok {
		return fmt.Errorf("credentials: %s: %w", email, ErrNotFound)
	}
	delete(m.tokens, email)
	return nil
}
