// Package storage provides the encrypted on-disk store backing the blob
// cache. Values are encrypted at rest by BadgerDB; the encryption key is
// derived from an operator-supplied password and never written to disk.
package storage

import (
	"errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"golang.org/x/crypto/sha3"

	"github.com/benhaq/sui-nautilus/pkg/logger"
)

var (
	ErrEncryptionKeyNotProvided = errors.New("encryption key not provided")
	// ErrKeyNotFound reports a missing key without exposing the backend's
	// sentinel.
	ErrKeyNotFound = errors.New("key not found")
)

// Store is the key-value surface the blob cache consumes.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error)
	Has(key string) (bool, error)
	Delete(key string) error
	Close() error
}

// BadgerStore is a Store implementation backed by BadgerDB.
type BadgerStore struct {
	DB *badger.DB
}

// BadgerConfig configures the on-disk store.
type BadgerConfig struct {
	DBPath   string
	Password string
}

// NewBadgerStore opens the encrypted store. The password is stretched to the
// 32-byte key badger requires.
func NewBadgerStore(config BadgerConfig) (*BadgerStore, error) {
	if config.Password == "" {
		return nil, ErrEncryptionKeyNotProvided
	}
	key := sha3.Sum256([]byte(config.Password))

	opts := badger.DefaultOptions(config.DBPath).
		WithCompression(options.ZSTD).
		WithEncryptionKey(key[:]).
		WithIndexCacheSize(16 << 20).
		WithBlockCacheSize(32 << 20).
		WithSyncWrites(true).
		WithVerifyValueChecksum(true).
		WithCompactL0OnClose(true).
		WithLogger(newQuietBadgerLogger())

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	logger.Info("Connected to BadgerDB successfully!", "path", config.DBPath)
	return &BadgerStore{DB: db}, nil
}

// Put stores a key-value pair.
func (b *BadgerStore) Put(key string, value []byte) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Get retrieves the value associated with a key.
func (b *BadgerStore) Get(key string) ([]byte, error) {
	var result []byte
	err := b.DB.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrKeyNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			result = append([]byte{}, val...)
			return nil
		})
	})
	return result, err
}

// Has reports whether a key exists without reading its value.
func (b *BadgerStore) Has(key string) (bool, error) {
	err := b.DB.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a key-value pair.
func (b *BadgerStore) Delete(key string) error {
	return b.DB.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Close closes the store.
func (b *BadgerStore) Close() error {
	return b.DB.Close()
}
