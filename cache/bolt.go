package cache

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a key does not exist in a tier.
var ErrNotFound = errors.New("cache: not found")

// durableTier stores framed entries in bbolt with one top-level bucket
// per server-identity namespace. Purging a namespace is a single bucket
// delete, so no entry can survive a server switch.
type durableTier struct {
	db *bbolt.DB
}

// openDurable opens (creating if needed) the durable tier at path.
func openDurable(path string) (*durableTier, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening cache db: %w", err)
	}
	return &durableTier{db: db}, nil
}

func (d *durableTier) close() error {
	return d.db.Close()
}

// get returns the framed entry stored under (namespace, key).
func (d *durableTier) get(namespace string, key []byte) ([]byte, error) {
	var value []byte
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get(key)
		if v == nil {
			return ErrNotFound
		}
		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// put stores a framed entry under (namespace, key).
func (d *durableTier) put(namespace string, key, value []byte) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return fmt.Errorf("creating namespace bucket: %w", err)
		}
		return b.Put(key, value)
	})
}

// delete removes one entry. Missing keys and namespaces are a no-op.
func (d *durableTier) delete(namespace string, key []byte) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		return b.Delete(key)
	})
}

// deleteNamespace drops the whole bucket for a namespace.
func (d *durableTier) deleteNamespace(namespace string) error {
	return d.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(namespace))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

// count returns the number of entries in a namespace.
func (d *durableTier) count(namespace string) (int, error) {
	var n int
	err := d.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return nil
		}
		n = b.Stats().KeyN
		return nil
	})
	return n, err
}

// expiredEntry identifies one durable entry eligible for removal.
type expiredEntry struct {
	namespace string
	key       []byte
	size      int64
}

// findExpired walks every namespace and collects entries whose header
// timestamp is before cutoff. Unreadable entries are collected too so
// the sweep clears corruption instead of carrying it forever.
func (d *durableTier) findExpired(cutoff time.Time) ([]expiredEntry, int, error) {
	var expired []expiredEntry
	unreadable := 0
	err := d.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			namespace := string(name)
			return b.ForEach(func(k, v []byte) error {
				header, _, err := decodeHeader(v)
				if err != nil {
					unreadable++
					expired = append(expired, expiredEntry{
						namespace: namespace,
						key:       append([]byte(nil), k...),
					})
					return nil
				}
				if header.CachedAt.Before(cutoff) {
					expired = append(expired, expiredEntry{
						namespace: namespace,
						key:       append([]byte(nil), k...),
						size:      header.Size,
					})
				}
				return nil
			})
		})
	})
	if err != nil {
		return nil, 0, fmt.Errorf("scanning for expired entries: %w", err)
	}
	return expired, unreadable, nil
}
