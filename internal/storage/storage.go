package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog/log"
)

// Options configures a Storage.
type Options struct {
	// Dir is the database directory. Empty means the platform default.
	Dir string
	// InMemory keeps everything in RAM; Dir is ignored.
	InMemory bool
}

// Storage wraps BadgerDB. Values are JSON compressed with zstd.
type Storage struct {
	db  *badger.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// Open opens or creates the database.
func Open(o Options) (*Storage, error) {
	var opts badger.Options
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		dir := o.Dir
		if dir == "" {
			var err error
			if dir, err = GetDatabaseDir(); err != nil {
				return nil, err
			}
		}
		opts = badger.DefaultOptions(dir)
	}
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open score database: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		db.Close()
		return nil, err
	}
	log.Debug().Str("dir", opts.Dir).Bool("memory", o.InMemory).Msg("score database opened")
	return &Storage{db: db, enc: enc, dec: dec}, nil
}

// Close closes the database
func (s *Storage) Close() error {
	if s.db == nil {
		return nil
	}
	s.dec.Close()
	err := errors.Join(s.enc.Close(), s.db.Close())
	s.db = nil
	return err
}

// Put stores v under key.
func (s *Storage) Put(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	data = s.enc.EncodeAll(data, nil)

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Get loads key into v. It reports false if the key does not exist.
func (s *Storage) Get(key string, v any) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return s.decode(val, v)
		})
	})
	return found, err
}

func (s *Storage) decode(val []byte, v any) error {
	data, err := s.dec.DecodeAll(val, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// Iterate calls fn for every key under prefix. decode unmarshals the
// current value and is valid only during the call.
func (s *Storage) Iterate(prefix string, fn func(key string, decode func(v any) error) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			item := it.Item()
			decode := func(v any) error {
				return item.Value(func(val []byte) error {
					return s.decode(val, v)
				})
			}
			if err := fn(string(item.KeyCopy(nil)), decode); err != nil {
				return err
			}
		}
		return nil
	})
}

// Count returns the number of keys under prefix.
func (s *Storage) Count(prefix string) (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		p := []byte(prefix)
		for it.Seek(p); it.ValidForPrefix(p); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// DeletePrefix removes every key under prefix and returns how many there were.
func (s *Storage) DeletePrefix(prefix string) (int, error) {
	n, err := s.Count(prefix)
	if err != nil {
		return 0, err
	}
	if prefix == "" {
		return n, s.db.DropAll()
	}
	return n, s.db.DropPrefix([]byte(prefix))
}

// Size returns the on-disk size of the LSM tree and the value log.
func (s *Storage) Size() (lsm, vlog int64) {
	return s.db.Size()
}
