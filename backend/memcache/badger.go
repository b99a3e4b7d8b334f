package memcache

import (
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
)

// pendingSuffix marks an entry as not-yet-committed; Durable stores
// the pending marker as a tiny sibling key rather than a struct field
// since Badger values are opaque bytes.
const pendingSuffix = "\x00pending"

// Durable is a crash-durable sibling of Cache backed by an embedded
// Badger key-value store (SPEC_FULL.md §10.3), used as a local drive
// stand-in in integration tests that must survive process restarts.
type Durable struct {
	db *badgerdb.DB
}

// OpenDurable opens (creating if absent) a Badger database at dir.
func OpenDurable(dir string) (*Durable, error) {
	opts := badgerdb.DefaultOptions(dir).WithLogger(nil)
	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("memcache: open badger at %s: %w", dir, err)
	}
	return &Durable{db: db}, nil
}

// Close releases the underlying Badger database.
func (d *Durable) Close() error {
	return d.db.Close()
}

func (d *Durable) get(name string) ([]byte, bool, error) {
	var value []byte
	err := d.db.View(func(txn *badgerdb.Txn) error {
		if _, err := txn.Get([]byte(name + pendingSuffix)); err == nil {
			return badgerdb.ErrKeyNotFound
		}
		item, err := txn.Get([]byte(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = append([]byte(nil), val...)
			return nil
		})
	})
	if err == badgerdb.ErrKeyNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (d *Durable) delete(name string) error {
	return d.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(name))
	})
}

func (d *Durable) list(prefix string) ([]string, error) {
	var names []string
	err := d.db.View(func(txn *badgerdb.Txn) error {
		it := txn.NewIterator(badgerdb.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			key := string(it.Item().Key())
			if len(key) >= len(pendingSuffix) && key[len(key)-len(pendingSuffix):] == pendingSuffix {
				continue
			}
			names = append(names, key)
		}
		return nil
	})
	return names, err
}

func (d *Durable) markPending(name string) error {
	return d.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set([]byte(name+pendingSuffix), []byte{1})
	})
}

func (d *Durable) commitPending(name string, value []byte) error {
	return d.db.Update(func(txn *badgerdb.Txn) error {
		if err := txn.Set([]byte(name), value); err != nil {
			return err
		}
		return txn.Delete([]byte(name + pendingSuffix))
	})
}

func (d *Durable) discardPending(name string) error {
	return d.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete([]byte(name + pendingSuffix))
	})
}
