package store

import (
	"bytes"

	"github.com/ugorji/go/codec"
)

// Record is the membership a node was initialised with. BadgerStore keeps it
// next to the values so that an operator can tell which node a database
// belongs to.
type Record struct {
	NodeID  string
	NodeIDs []string
}

// Marshal encodes the record with a canonical JSON handle.
func (r *Record) Marshal() ([]byte, error) {
	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(r); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// Unmarshal ...
func (r *Record) Unmarshal(data []byte) error {
	b := bytes.NewBuffer(data)
	jh := new(codec.JsonHandle)
	jh.Canonical = true
	dec := codec.NewDecoder(b, jh)

	return dec.Decode(r)
}
