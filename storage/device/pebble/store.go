package pebblestore

import (
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/device"
)

const keyPrefix = "session:"

type store struct {
	db *pebble.DB
}

// Option customizes the pebble options of the store.
type Option func(*pebble.Options)

// InMemory keeps the database in memory (tests).
func InMemory() Option {
	return func(o *pebble.Options) { o.FS = vfs.NewMem() }
}

// Open opens (or creates) the device store at path.
func Open(path string, opts ...Option) (device.Store, error) {
	o := &pebble.Options{}
	for _, opt := range opts {
		opt(o)
	}
	db, err := pebble.Open(path, o)
	if err != nil {
		return nil, errors.Wrapf(err, "pebblestore.Open(%s)", path)
	}
	return &store{db: db}, nil
}

func key(k string) []byte {
	return []byte(keyPrefix + k)
}

func (s *store) Get(k string) (string, error) {
	v, closer, err := s.db.Get(key(k))
	if err == pebble.ErrNotFound {
		return "", device.ErrNotFound
	}
	if err != nil {
		return "", errors.Wrapf(err, "pebblestore.Get(%s)", k)
	}
	defer closer.Close()
	return string(v), nil
}

func (s *store) Set(k, value string) error {
	if err := s.db.Set(key(k), []byte(value), pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebblestore.Set(%s)", k)
	}
	return nil
}

func (s *store) Delete(k string) error {
	if err := s.db.Delete(key(k), pebble.Sync); err != nil {
		return errors.Wrapf(err, "pebblestore.Delete(%s)", k)
	}
	return nil
}

func (s *store) Close() error {
	return s.db.Close()
}
