// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prefs

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
)

// keyPrefix namespaces preference keys inside the Pebble keyspace.
var keyPrefix = []byte("pref:")

// PebbleStore keeps preferences in a Pebble directory.
type PebbleStore struct {
	db     *pebble.DB
	closed atomic.Bool
}

// OpenPebble opens or creates the Pebble directory at path.
func OpenPebble(path string) (*PebbleStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble: %w", err)
	}
	return &PebbleStore{db: db}, nil
}

func pebbleKey(key string) []byte {
	return append(append([]byte(nil), keyPrefix...), key...)
}

// Get implements Store.
func (p *PebbleStore) Get(key string) ([]byte, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	v, closer, err := p.db.Get(pebbleKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("prefs: get %q: %w", key, err)
	}
	defer closer.Close()
	// The slice is only valid until closer.Close.
	return append([]byte(nil), v...), nil
}

// Set implements Store.
func (p *PebbleStore) Set(key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.Set(pebbleKey(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("prefs: set %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (p *PebbleStore) Delete(key string) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := p.db.Delete(pebbleKey(key), pebble.Sync); err != nil {
		return fmt.Errorf("prefs: delete %q: %w", key, err)
	}
	return nil
}

// Keys implements Store.
func (p *PebbleStore) Keys() ([]string, error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	upper := append(append([]byte(nil), keyPrefix[:len(keyPrefix)-1]...), keyPrefix[len(keyPrefix)-1]+1)
	it, err := p.db.NewIter(&pebble.IterOptions{LowerBound: keyPrefix, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var keys []string
	for ok := it.First(); ok; ok = it.Next() {
		k := it.Key()
		if !bytes.HasPrefix(k, keyPrefix) {
			continue
		}
		keys = append(keys, string(k[len(keyPrefix):]))
	}
	return keys, it.Error()
}

// Close implements Store.
func (p *PebbleStore) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.db.Close()
}
