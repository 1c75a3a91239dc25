// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// openStores returns both implementations so their contracts stay aligned.
func openStores(t *testing.T) map[string]Store {
	t.Helper()

	badgerStore, err := OpenBadgerStore(InMemoryBadgerConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = badgerStore.Close() })

	memStore := NewMemoryStore()
	t.Cleanup(func() { _ = memStore.Close() })

	return map[string]Store{
		"memory": memStore,
		"badger": badgerStore,
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			t.Run("put and list round trip", func(t *testing.T) {
				want := payload{Name: "checkout", Value: 42.5}
				require.NoError(t, s.Put(ctx, "result/checkout/a", want))

				entries, err := s.List(ctx, "result/checkout/")
				require.NoError(t, err)
				require.Len(t, entries, 1)

				var got payload
				require.NoError(t, entries[0].Decode(&got))
				assert.Equal(t, want, got)
			})

			t.Run("list is key ordered", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "ordered/op/003", payload{Value: 3}))
				require.NoError(t, s.Put(ctx, "ordered/op/001", payload{Value: 1}))
				require.NoError(t, s.Put(ctx, "ordered/op/002", payload{Value: 2}))

				entries, err := s.List(ctx, "ordered/op/")
				require.NoError(t, err)
				require.Len(t, entries, 3)
				assert.Equal(t, "ordered/op/001", entries[0].Key)
				assert.Equal(t, "ordered/op/002", entries[1].Key)
				assert.Equal(t, "ordered/op/003", entries[2].Key)
			})

			t.Run("list respects prefix", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "prefix/alpha/1", payload{}))
				require.NoError(t, s.Put(ctx, "prefix/alphabet/1", payload{}))

				entries, err := s.List(ctx, "prefix/alpha/")
				require.NoError(t, err)
				assert.Len(t, entries, 1)
			})

			t.Run("list of unknown prefix is empty", func(t *testing.T) {
				entries, err := s.List(ctx, "nope/")
				require.NoError(t, err)
				assert.Empty(t, entries)
			})

			t.Run("delete", func(t *testing.T) {
				require.NoError(t, s.Put(ctx, "delete/me", payload{}))
				require.NoError(t, s.Delete(ctx, "delete/me"))
				assert.ErrorIs(t, s.Delete(ctx, "delete/me"), ErrNotFound)
			})
		})
	}
}

func TestTimeKeyOrdering(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	earlier := TimeKey(base)
	later := TimeKey(base.Add(1 * time.Nanosecond))
	muchLater := TimeKey(base.Add(48 * time.Hour))

	assert.Less(t, earlier, later, "nanosecond ordering must be lexicographic")
	assert.Less(t, later, muchLater)
	assert.Len(t, earlier, len(later), "keys must be fixed width")
}

func TestMemoryStoreClosed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Put(ctx, "k", payload{}), ErrClosed)
	_, err := s.List(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
}
