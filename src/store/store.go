package store

// Store is the persistence interface of the grow-only set.
type Store interface {
	// Add inserts v and reports whether it was new.
	Add(v Value) (bool, error)
	// Merge inserts every value and returns those that were new, in input
	// order.
	Merge(vs []Value) ([]Value, error)
	Contains(v Value) bool
	// ReadAll returns a sorted snapshot of the set.
	ReadAll() []Value
	Len() int
	Close() error
}
