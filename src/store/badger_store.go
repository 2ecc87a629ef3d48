package store

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dgraph-io/badger"
	cm "github.com/mosaicnetworks/murmur/src/common"
	"github.com/sirupsen/logrus"
)

const (
	valuePrefix = "value"
	recordKey   = "record"
)

// BadgerStore writes values through to a Badger database and serves reads
// from an InmemStore cache. Opening an existing database reloads its values
// into the cache.
type BadgerStore struct {
	inmemStore *InmemStore
	db         *badger.DB
	path       string
	logger     *logrus.Entry
}

// NewBadgerStore opens an existing database or creates a new one if nothing is
// found in path.
func NewBadgerStore(path string, logger *logrus.Entry) (*BadgerStore, error) {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	opts := badger.DefaultOptions(path).
		WithSyncWrites(false).
		WithTruncate(true).
		WithLogger(logger.WithField("ns", "badger"))

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	store := &BadgerStore{
		inmemStore: NewInmemStore(),
		db:         handle,
		path:       path,
		logger:     logger,
	}

	if err := store.load(); err != nil {
		handle.Close()
		return nil, err
	}

	return store, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

// valueKey is fixed-size whatever the length of the value. The value itself is
// stored as the item's value.
func valueKey(v Value) []byte {
	hash := sha256.Sum256([]byte(v))
	return []byte(valuePrefix + "_" + hex.EncodeToString(hash[:]))
}

/*******************************************************************************
Implement the Store interface
*******************************************************************************/

// Add implements the Store interface. The value is persisted before it becomes
// visible in the cache.
func (s *BadgerStore) Add(v Value) (bool, error) {
	if v.IsEmpty() {
		return false, ErrEmptyValue
	}

	if s.inmemStore.Contains(v) {
		return false, nil
	}

	if err := s.dbSetValues([]Value{v}); err != nil {
		return false, err
	}

	return s.inmemStore.Add(v)
}

// Merge implements the Store interface.
func (s *BadgerStore) Merge(vs []Value) ([]Value, error) {
	unknown := []Value{}
	for _, v := range vs {
		if !v.IsEmpty() && !s.inmemStore.Contains(v) {
			unknown = append(unknown, v)
		}
	}

	if len(unknown) == 0 {
		return []Value{}, nil
	}

	if err := s.dbSetValues(unknown); err != nil {
		return nil, err
	}

	return s.inmemStore.Merge(unknown)
}

// Contains implements the Store interface.
func (s *BadgerStore) Contains(v Value) bool {
	return s.inmemStore.Contains(v)
}

// ReadAll implements the Store interface.
func (s *BadgerStore) ReadAll() []Value {
	return s.inmemStore.ReadAll()
}

// Len implements the Store interface.
func (s *BadgerStore) Len() int {
	return s.inmemStore.Len()
}

// Close implements the Store interface.
func (s *BadgerStore) Close() error {
	if err := s.inmemStore.Close(); err != nil {
		return err
	}
	return s.db.Close()
}

// StorePath returns the directory of the database.
func (s *BadgerStore) StorePath() string {
	return s.path
}

// SetRecord persists the node's membership record.
func (s *BadgerStore) SetRecord(r *Record) error {
	val, err := r.Marshal()
	if err != nil {
		return err
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(recordKey), val)
	})
}

// GetRecord returns the membership record, or a KeyNotFound StoreErr.
func (s *BadgerStore) GetRecord() (*Record, error) {
	var recordBytes []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(recordKey))
		if err != nil {
			return err
		}
		recordBytes, err = item.ValueCopy(nil)
		return err
	})

	if err != nil {
		return nil, mapError(err, "Record", recordKey)
	}

	record := new(Record)
	if err := record.Unmarshal(recordBytes); err != nil {
		return nil, err
	}

	return record, nil
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func (s *BadgerStore) load() error {
	prefix := []byte(valuePrefix + "_")
	loaded := []Value{}

	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			loaded = append(loaded, Value(val))
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.inmemStore.Merge(loaded); err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"path":   s.path,
		"values": len(loaded),
	}).Debug("Loaded BadgerStore")

	return nil
}

func (s *BadgerStore) dbSetValues(vs []Value) error {
	tx := s.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for _, v := range vs {
		if err := tx.Set(valueKey(v), []byte(v)); err != nil {
			if err != badger.ErrTxnTooBig {
				return err
			}

			// Flush what we have and continue in a fresh transaction.
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = s.db.NewTransaction(true)
			if err := tx.Set(valueKey(v), []byte(v)); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func isDBKeyNotFound(err error) bool {
	return err != nil && err.Error() == badger.ErrKeyNotFound.Error()
}

func mapError(err error, name, key string) error {
	if isDBKeyNotFound(err) {
		return cm.NewStoreErr(name, cm.KeyNotFound, key)
	}
	return err
}
