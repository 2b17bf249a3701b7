// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store provides the shield service's local key-value store,
// backed by BadgerDB.
//
// The service consumes storage strictly through get/set/remove
// semantics. Today it persists the auth session (so a restart reuses an
// unexpired login) and recent scan history for the CLI.
//
// License: BadgerDB is Apache 2.0 licensed (github.com/dgraph-io/badger).
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgraph-io/badger/v4"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("store: key not found")

// Store is a thin JSON-codec wrapper over a Badger database.
// Safe for concurrent use; Badger does its own locking.
type Store struct {
	db *badger.DB
}

// Options configures Open.
type Options struct {
	// Path is the directory for database files. Ignored when InMemory
	// is set. Supports ~ expansion.
	Path string

	// InMemory disables disk persistence. Used by tests.
	InMemory bool
}

// Open opens (or creates) the store.
func Open(opts Options) (*Store, error) {
	var badgerOpts badger.Options
	if opts.InMemory {
		badgerOpts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		path := expandPath(opts.Path)
		if err := os.MkdirAll(path, 0700); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		badgerOpts = badger.DefaultOptions(path)
	}
	// Badger's own logger is chatty at INFO; the service logs opens
	// and errors itself.
	badgerOpts = badgerOpts.WithLogger(nil)

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Get unmarshals the value at key into out. Returns ErrNotFound when
// the key is absent.
func (s *Store) Get(key string, out any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("store: get %q: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// Set marshals value as JSON and writes it at key, replacing any
// previous value.
func (s *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("store: marshal %q: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
