// Package tokenstore holds the one durable value the console keeps between
// runs: the bearer token.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	serviceName = "botstudio"
	tokenKey    = "authToken"
)

// Store is a single global token slot. A missing token is "", nil.
type Store interface {
	Get() (string, error)
	Set(token string) error
	Clear() error
}

// Open returns the backend named by kind ("keyring", "file" or "memory").
// path is only used by the file backend; empty means the user config dir.
func Open(kind, path string) (Store, error) {
	switch kind {
	case "keyring", "":
		return NewKeyring(), nil
	case "file":
		if path == "" {
			p, err := defaultTokenPath()
			if err != nil {
				return nil, err
			}
			path = p
		}
		return NewFile(path), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// Keyring keeps the token in the OS keychain.
type Keyring struct{}

func NewKeyring() *Keyring {
	return &Keyring{}
}

func (k *Keyring) Get() (string, error) {
	token, err := keyring.Get(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (k *Keyring) Set(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(serviceName, tokenKey, token)
}

func (k *Keyring) Clear() error {
	err := keyring.Delete(serviceName, tokenKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// File keeps the token in a JSON file readable only by the owner.
type File struct {
	path string
	mu   sync.Mutex
}

type fileContents struct {
	AuthToken string `json:"authToken"`
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Get() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	var contents fileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return "", fmt.Errorf("failed to parse token file %s: %w", f.path, err)
	}
	return contents.AuthToken, nil
}

func (f *File) Set(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(fileContents{AuthToken: token}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func defaultTokenPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, serviceName, "session.json"), nil
}

// Memory is a process-local slot.
type Memory struct {
	mu    sync.RWMutex
	token string
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Get() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *Memory) Set(token string) error {
	if token == "" {
		return errors.New("token is empty")
	}
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}
