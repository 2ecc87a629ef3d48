package common

import (
	"errors"
	"testing"
)

func TestIsStore(t *testing.T) {
	err := NewStoreErr("Record", KeyNotFound, "topology")

	if !IsStore(err, KeyNotFound) {
		t.Fatalf("expected KeyNotFound")
	}

	if IsStore(err, Closed) {
		t.Fatalf("did not expect Closed")
	}

	if IsStore(errors.New("Record, topology, Not Found"), KeyNotFound) {
		t.Fatalf("plain errors are not StoreErrs")
	}

	if err.Error() != "Record, topology, Not Found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestStoreErrClosed(t *testing.T) {
	err := NewStoreErr("Value", Closed, "")

	if !IsStore(err, Closed) {
		t.Fatalf("expected Closed")
	}

	if err.Error() != "Value, , Closed" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
