// Package store holds the grow-only set of broadcast values.
//
// A Value is the compact JSON text of a scalar, so that two payloads are the
// same value exactly when they serialize identically. Stores never remove a
// value: Add and Merge are idempotent and the contents only grow.
//
// Two implementations are provided. InmemStore keeps everything in memory.
// BadgerStore writes each value through to a Badger database before caching
// it, so that a restarted node can bootstrap from disk.
package store
