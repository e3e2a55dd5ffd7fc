/*
Copyright IBM Corp. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

// Package store persists the state of a round in a bbolt database.
// Each Save replaces the state within a single transaction.
package store

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketName = []byte("round")
	stateKey   = []byte("state")
)

// Store implements raffle.Persister on top of bbolt
type Store struct {
	db *bolt.DB
}

// Open opens or creates the database at path
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating bucket: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Save(state []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(stateKey, state)
	})
}

// Load returns the persisted state, or nil if nothing was saved yet
func (s *Store) Load() ([]byte, error) {
	var state []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(stateKey); v != nil {
			// bbolt values are only valid during the transaction
			state = append([]byte(nil), v...)
		}
		return nil
	})
	return state, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
