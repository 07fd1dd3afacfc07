// Copyright (c) 2025 anjanb
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores the upstream database DSN in the OS credential
// store so it never lands in config.json. Operations are thread-safe.
package keychain

import (
	"errors"
	"runtime"
	"sync"

	"github.com/99designs/keyring"
)

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "jsonquery"

// KeyDSN is the item holding the upstream DSN.
const KeyDSN = "upstream_dsn"

// ErrNoDSN is returned by LoadDSN when no DSN has been stored.
var ErrNoDSN = errors.New("no upstream DSN stored; run: jsonquery connect")

// Manager provides thread-safe access to the credential store.
type Manager struct {
	mu   sync.RWMutex
	ring keyring.Keyring
}

// NewManager wraps an opened keyring.
func NewManager(ring keyring.Keyring) *Manager {
	return &Manager{ring: ring}
}

// GetManager returns the global manager, opening the OS keyring on first
// use. A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	globalManager = NewManager(ring)
	return globalManager, nil
}

// allowedBackends lists the native stores tried per platform, in order.
func allowedBackends() []keyring.BackendType {
	switch runtime.GOOS {
	case "darwin":
		// pass is the fallback where the login keychain is unavailable.
		return []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		return []keyring.BackendType{keyring.WinCredBackend}
	default:
		return []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.KeyCtlBackend, keyring.PassBackend}
	}
}

func openRing() (keyring.Keyring, error) {
	cfg := keyring.Config{
		ServiceName:             ServiceName,
		AllowedBackends:         allowedBackends(),
		PassPrefix:              ServiceName,
		LibSecretCollectionName: ServiceName,
		KeyCtlScope:             "user",
	}
	if runtime.GOOS == "windows" {
		cfg.WinCredPrefix = ServiceName
	}

	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. Install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// SaveDSN stores dsn, replacing any previous value.
func (m *Manager) SaveDSN(dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ring.Set(keyring.Item{Key: KeyDSN, Data: []byte(dsn), Label: ServiceName + " upstream DSN"})
}

// LoadDSN returns the stored DSN or ErrNoDSN.
func (m *Manager) LoadDSN() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, err := m.ring.Get(KeyDSN)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNoDSN
	}
	if err != nil {
		return "", err
	}
	if len(it.Data) == 0 {
		return "", ErrNoDSN
	}
	return string(it.Data), nil
}

// ClearDSN removes the stored DSN. Removing a missing item is not an error.
func (m *Manager) ClearDSN() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.ring.Remove(KeyDSN); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return err
	}
	return nil
}
