package kvdb

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/meghashyamc/iiifsearch/config"
	"github.com/meghashyamc/iiifsearch/logger"
	bolt "go.etcd.io/bbolt"
)

type BoltDB struct {
	store  *bolt.DB
	logger logger.Logger
}

func New(logger logger.Logger, cfg *config.Config) (*BoltDB, error) {
	return Open(logger, cfg.GetKVDBPath())
}

// Open opens or creates the database file at kvDBPath.
func Open(logger logger.Logger, kvDBPath string) (*BoltDB, error) {
	if err := os.MkdirAll(filepath.Dir(kvDBPath), 0755); err != nil {
		logger.Error("failed to create key-value database directory", "err", err.Error(), "path", kvDBPath)
		return nil, fmt.Errorf("failed to create key-value database directory: %w", err)
	}

	store, err := bolt.Open(kvDBPath, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		logger.Error("failed to open database", "err", err.Error(), "path", kvDBPath)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	boltDB := &BoltDB{
		store:  store,
		logger: logger,
	}

	if err := boltDB.initBuckets(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return boltDB, nil
}

func (b *BoltDB) initBuckets() error {
	return b.store.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				b.logger.Error("failed to create bucket", "err", err.Error(), "bucket", name)
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func (b *BoltDB) bucket(tx *bolt.Tx, name string) (*bolt.Bucket, error) {
	bucket := tx.Bucket([]byte(name))
	if bucket == nil {
		b.logger.Error("bucket not found", "bucket", name)
		return nil, fmt.Errorf("bucket not found: %s", name)
	}
	return bucket, nil
}

func (b *BoltDB) checkKey(key string) error {
	if key == "" {
		b.logger.Error("key cannot be empty", "key", key)
		return &InvalidKeyError{
			Key:    key,
			Reason: "key cannot be empty",
		}
	}
	return nil
}

func (b *BoltDB) Set(bucketName string, key string, value string) error {
	if err := b.checkKey(key); err != nil {
		return err
	}

	return b.store.Update(func(tx *bolt.Tx) error {
		bucket, err := b.bucket(tx, bucketName)
		if err != nil {
			return err
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			b.logger.Error("failed to set key", "key", key, "err", err.Error())
			return fmt.Errorf("failed to set key %s: %w", key, err)
		}

		return nil
	})
}

func (b *BoltDB) Create(bucketName string, key string, value string) error {
	if err := b.checkKey(key); err != nil {
		return err
	}

	return b.store.Update(func(tx *bolt.Tx) error {
		bucket, err := b.bucket(tx, bucketName)
		if err != nil {
			return err
		}

		if bucket.Get([]byte(key)) != nil {
			b.logger.Debug("key already exists", "key", key, "bucket", bucketName)
			return &AlreadyExistsError{Key: key}
		}

		if err := bucket.Put([]byte(key), []byte(value)); err != nil {
			b.logger.Error("failed to create key", "key", key, "err", err.Error())
			return fmt.Errorf("failed to create key %s: %w", key, err)
		}

		return nil
	})
}

func (b *BoltDB) Get(bucketName string, key string) (string, error) {
	if err := b.checkKey(key); err != nil {
		return "", err
	}

	var value []byte
	err := b.store.View(func(tx *bolt.Tx) error {
		bucket, err := b.bucket(tx, bucketName)
		if err != nil {
			return err
		}

		v := bucket.Get([]byte(key))
		if v == nil {
			return &NotFoundError{Key: key}
		}

		value = make([]byte, len(v))
		copy(value, v)
		return nil
	})

	if err != nil {
		if notFoundErr, ok := err.(*NotFoundError); ok {
			b.logger.Debug("key not found", "key", key, "bucket", bucketName)
			return "", notFoundErr
		}
		return "", err
	}

	return string(value), nil
}

func (b *BoltDB) Delete(bucketName string, key string) error {
	if err := b.checkKey(key); err != nil {
		return err
	}

	return b.store.Update(func(tx *bolt.Tx) error {
		bucket, err := b.bucket(tx, bucketName)
		if err != nil {
			return err
		}

		if err := bucket.Delete([]byte(key)); err != nil {
			b.logger.Error("failed to delete key", "key", key, "err", err.Error())
			return fmt.Errorf("failed to delete key %s: %w", key, err)
		}

		return nil
	})
}

func (b *BoltDB) Scan(bucketName string, prefix string, fn func(key string, value string) error) error {
	return b.store.View(func(tx *bolt.Tx) error {
		bucket, err := b.bucket(tx, bucketName)
		if err != nil {
			return err
		}

		cursor := bucket.Cursor()
		seek := []byte(prefix)
		for k, v := cursor.Seek(seek); k != nil && bytes.HasPrefix(k, seek); k, v = cursor.Next() {
			if err := fn(string(k), string(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *BoltDB) Close() error {
	if b.store != nil {
		return b.store.Close()
	}
	return nil
}
