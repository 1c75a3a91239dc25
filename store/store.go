// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the result and baseline persistence boundary.
//
// Benchmark results and performance baselines are stored as JSON values under
// ordered string keys. Callers build keys with a fixed-width timestamp segment
// (see TimeKey) so that lexicographic key order is chronological order. Store
// failures always degrade to "no history" for the engines; they never fail a
// benchmark run or a regression check.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates no value exists for the key.
	ErrNotFound = errors.New("store: key not found")

	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// -----------------------------------------------------------------------------
// Interface
// -----------------------------------------------------------------------------

// Entry is one stored key/value pair.
type Entry struct {
	// Key is the full storage key.
	Key string

	// Value is the raw JSON value.
	Value []byte
}

// Decode unmarshals the entry value into v.
func (e Entry) Decode(v any) error {
	return json.Unmarshal(e.Value, v)
}

// Store persists benchmark results and performance baselines.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Put stores the JSON encoding of value under key, overwriting any
	// previous value.
	Put(ctx context.Context, key string, value any) error

	// List returns all entries whose key starts with prefix, ordered by
	// key ascending. An empty result is not an error.
	List(ctx context.Context, prefix string) ([]Entry, error)

	// Delete removes the value stored under key.
	// Returns ErrNotFound if no value exists.
	Delete(ctx context.Context, key string) error

	// Close releases resources. Idempotent.
	Close() error
}

// timeKeyLayout is fixed-width so lexicographic order is chronological.
const timeKeyLayout = "20060102T150405.000000000"

// TimeKey formats a timestamp as a fixed-width UTC key segment.
func TimeKey(t time.Time) string {
	return t.UTC().Format(timeKeyLayout)
}

// -----------------------------------------------------------------------------
// Memory Store
// -----------------------------------------------------------------------------

// MemoryStore keeps entries in memory. Useful for testing and short-lived
// processes; data is lost when the process exits.
//
// Thread Safety: Safe for concurrent use.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
//
// Outputs:
//   - *MemoryStore: The new store. Never nil.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, key string, value any) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[key] = encoded
	return nil
}

// List implements Store.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}

	entries := make([]Entry, 0)
	for key, value := range m.data {
		if strings.HasPrefix(key, prefix) {
			// Copy so callers cannot mutate stored bytes.
			valueCopy := make([]byte, len(value))
			copy(valueCopy, value)
			entries = append(entries, Entry{Key: key, Value: valueCopy})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return entries, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if _, ok := m.data[key]; !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Verify interface compliance at compile time.
var _ Store = (*MemoryStore)(nil)
