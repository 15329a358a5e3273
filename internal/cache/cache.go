// Package cache provides an optional, disk-backed memoization layer for
// paginated SPARQL page responses, so that rerunning a batch over the
// same sources does not re-fetch pages the endpoint already served. It
// never participates in correctness: a disabled or empty cache changes
// only request volume, never mined output.
package cache

import (
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/zeebo/xxh3"
)

// Store is the interface Session depends on. Key is a pre-hashed lookup
// key (see Key); Get/Set operate on the raw bytes of a cached page body.
type Store interface {
	Get(key uint64) ([]byte, bool)
	Set(key uint64, value []byte, ttl time.Duration) error
	Close() error
}

// Key hashes an (endpoint, query) pair into a 64-bit cache key using
// xxh3, which is fast enough to run on every paginated request without
// becoming the bottleneck it would memoize around.
func Key(endpoint, query string) uint64 {
	h := xxh3.New()
	_, _ = h.WriteString(endpoint)
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(query)
	return h.Sum64()
}

// BadgerStore is a Store backed by a local badger database. Values are
// stored as the raw page bytes wrapped in a small msgpack envelope
// carrying the write time, so a future eviction policy can inspect age
// without re-parsing the page itself.
type BadgerStore struct {
	db *badger.DB
}

type entry struct {
	StoredAt time.Time `msgpack:"stored_at"`
	Body     []byte    `msgpack:"body"`
}

// OpenBadgerStore opens (creating if absent) a badger database at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) Get(key uint64) ([]byte, bool) {
	var body []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyBytes(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var e entry
			if err := msgpack.Unmarshal(val, &e); err != nil {
				return err
			}
			body = e.Body
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return body, true
}

func (s *BadgerStore) Set(key uint64, value []byte, ttl time.Duration) error {
	e := entry{StoredAt: time.Now().UTC(), Body: value}
	encoded, err := msgpack.Marshal(e)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		entryTxn := badger.NewEntry(keyBytes(key), encoded)
		if ttl > 0 {
			entryTxn = entryTxn.WithTTL(ttl)
		}
		return txn.SetEntry(entryTxn)
	})
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func keyBytes(key uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(key >> (8 * i))
	}
	return b
}
