package store

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/buntdb"
)

// BuntKV is an embedded in-memory KV backed by buntdb. It is the default
// backend for single-instance sandboxes and tests. buntdb read-write
// transactions are serializable, which gives SetIfAbsent and Update their
// atomicity.
type BuntKV struct {
	db *buntdb.DB
}

// NewBuntKV opens an in-memory buntdb instance.
func NewBuntKV() (*BuntKV, error) {
	db, err := buntdb.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return &BuntKV{db: db}, nil
}

func setOptions(ttl time.Duration) *buntdb.SetOptions {
	if ttl <= 0 {
		return nil
	}
	return &buntdb.SetOptions{Expires: true, TTL: ttl}
}

// SetIfAbsent writes key=value with ttl only when the key does not exist.
func (b *BuntKV) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	claimed := false
	err := b.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Get(key)
		if err == nil {
			return nil
		}
		if err != buntdb.ErrNotFound {
			return err
		}
		if _, _, err := tx.Set(key, value, setOptions(ttl)); err != nil {
			return err
		}
		claimed = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return claimed, nil
}

// Get returns the current value or ErrKeyNotFound.
func (b *BuntKV) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := b.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		value = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return "", ErrKeyNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, nil
}

// Update runs fn inside a single read-write transaction.
func (b *BuntKV) Update(ctx context.Context, key string, fn UpdateFunc) error {
	return b.db.Update(func(tx *buntdb.Tx) error {
		current, err := tx.Get(key)
		exists := err == nil
		if err != nil && err != buntdb.ErrNotFound {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		next, ttl, remove, err := fn(current, exists)
		if err != nil {
			return err
		}
		if remove {
			if !exists {
				return nil
			}
			if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
				return fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
			return nil
		}
		if _, _, err := tx.Set(key, next, setOptions(ttl)); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return nil
	})
}

// Delete removes key. Deleting an absent key is not an error.
func (b *BuntKV) Delete(ctx context.Context, key string) error {
	err := b.db.Update(func(tx *buntdb.Tx) error {
		if _, err := tx.Delete(key); err != nil && err != buntdb.ErrNotFound {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (b *BuntKV) Close() error {
	return b.db.Close()
}
