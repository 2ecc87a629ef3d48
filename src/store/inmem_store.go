package store

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set"
	cm "github.com/mosaicnetworks/murmur/src/common"
)

// InmemStore implements the Store interface with an in-memory set.
type InmemStore struct {
	sync.RWMutex
	values mapset.Set
	closed bool
}

// NewInmemStore ...
func NewInmemStore() *InmemStore {
	return &InmemStore{
		values: mapset.NewThreadUnsafeSet(),
	}
}

// Add implements the Store interface.
func (s *InmemStore) Add(v Value) (bool, error) {
	if v.IsEmpty() {
		return false, ErrEmptyValue
	}

	s.Lock()
	defer s.Unlock()

	if s.closed {
		return false, cm.NewStoreErr("Value", cm.Closed, string(v))
	}

	return s.values.Add(v), nil
}

// Merge implements the Store interface.
func (s *InmemStore) Merge(vs []Value) ([]Value, error) {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return nil, cm.NewStoreErr("Value", cm.Closed, "")
	}

	fresh := []Value{}
	for _, v := range vs {
		if v.IsEmpty() {
			continue
		}
		if s.values.Add(v) {
			fresh = append(fresh, v)
		}
	}

	return fresh, nil
}

// Contains implements the Store interface.
func (s *InmemStore) Contains(v Value) bool {
	s.RLock()
	defer s.RUnlock()
	return s.values.Contains(v)
}

// ReadAll implements the Store interface.
func (s *InmemStore) ReadAll() []Value {
	s.RLock()
	defer s.RUnlock()

	res := make(Values, 0, s.values.Cardinality())
	for _, v := range s.values.ToSlice() {
		res = append(res, v.(Value))
	}
	sort.Sort(res)

	return res
}

// Len implements the Store interface.
func (s *InmemStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return s.values.Cardinality()
}

// Close implements the Store interface. Reads remain possible after Close.
func (s *InmemStore) Close() error {
	s.Lock()
	defer s.Unlock()
	s.closed = true
	return nil
}
