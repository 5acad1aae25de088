// Package bolt is a cache.Store persisted in a single bbolt file.
package bolt

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mrkeshav-05/learning-backend/cache"
)

const (
	dirPerm  = fs.FileMode(0o700)
	filePerm = fs.FileMode(0o600)

	// openTimeout bounds the wait for the file lock held by another process.
	openTimeout = 5 * time.Second

	// Each stored value is prefixed with its expiry as unix nanoseconds; zero
	// means no expiry.
	headerLen = 8
)

var bucket = []byte("kv")

// Store keeps every key in one bucket.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

type Option func(*Store)

func WithNow(fn func() time.Time) Option {
	return func(s *Store) {
		if fn != nil {
			s.now = fn
		}
	}
}

// Open creates the database file and its parent directory when missing.
func Open(path string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("bolt: creating directory: %w", err)
	}

	db, err := bolt.Open(path, filePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: opening %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("bolt: initializing: %w", err)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		value, ok := s.read(tx.Bucket(bucket), key)
		if !ok {
			return cache.ErrNotFound
		}
		// bbolt memory is only valid inside the transaction.
		out = append([]byte(nil), value...)
		return nil
	})
	return out, err
}

func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucket).Put([]byte(key), s.encode(value, ttl))
	})
}

func (s *Store) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	stored := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if _, ok := s.read(b, key); ok {
			return nil
		}
		stored = true
		return b.Put([]byte(key), s.encode(value, ttl))
	})
	if err != nil {
		return false, err
	}
	return stored, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if _, ok := s.read(b, key); !ok {
			return cache.ErrNotFound
		}
		return b.Delete([]byte(key))
	})
}

func (s *Store) CompareAndSwap(ctx context.Context, key string, old, next []byte, ttl time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	swapped := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		current, ok := s.read(b, key)
		if !ok || !bytes.Equal(current, old) {
			return nil
		}
		swapped = true
		return b.Put([]byte(key), s.encode(next, ttl))
	})
	if err != nil {
		return false, err
	}
	return swapped, nil
}

// read returns the live value for key. Expired entries read as absent; they
// are left in place for the next write to overwrite.
func (s *Store) read(b *bolt.Bucket, key string) ([]byte, bool) {
	raw := b.Get([]byte(key))
	if len(raw) < headerLen {
		return nil, false
	}
	if exp := int64(binary.BigEndian.Uint64(raw[:headerLen])); exp != 0 && s.now().UnixNano() >= exp {
		return nil, false
	}
	return raw[headerLen:], true
}

func (s *Store) encode(value []byte, ttl time.Duration) []byte {
	var exp int64
	if ttl > 0 {
		exp = s.now().Add(ttl).UnixNano()
	}
	out := make([]byte, headerLen+len(value))
	binary.BigEndian.PutUint64(out[:headerLen], uint64(exp))
	copy(out[headerLen:], value)
	return out
}
