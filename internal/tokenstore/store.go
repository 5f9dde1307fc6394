// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package tokenstore persists bearer tokens between runs, keyed by the
// surface that owns them.
package tokenstore

import (
	"errors"
	"sync"
)

// Storage keys.
const (
	KeyUser  = "token"
	KeyAdmin = "admin_token"
)

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = errors.New("tokenstore: key not found")

// Store is a small persistent key/value store for credentials.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// Change describes an update to one key observed by a watcher.
type Change struct {
	Key     string
	Present bool
}

// Memory is an in-process Store.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Lookup returns the token for key, treating a missing key as empty.
func Lookup(s Store, key string) (string, error) {
	v, err := s.Get(key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

var _ Store = (*Memory)(nil)
