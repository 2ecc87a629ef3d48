package node

import (
	"fmt"
	"sync/atomic"

	uuid "github.com/satori/go.uuid"
)

// IDGenerator produces ids that are unique across the cluster.
type IDGenerator interface {
	Next() (string, error)
}

// NewIDGenerator returns the generator for a strategy: "counter" (the default)
// or "uuid".
func NewIDGenerator(strategy string, nodeID string) (IDGenerator, error) {
	switch strategy {
	case "", "counter":
		return NewCounterGenerator(nodeID), nil
	case "uuid":
		return &UUIDGenerator{}, nil
	}
	return nil, fmt.Errorf("unknown id strategy %q", strategy)
}

// CounterGenerator returns "<node id>-<n>" for n = 0, 1, 2... Node ids are
// unique within the cluster, so are the results.
type CounterGenerator struct {
	nodeID string
	next   uint64
}

// NewCounterGenerator ...
func NewCounterGenerator(nodeID string) *CounterGenerator {
	return &CounterGenerator{nodeID: nodeID}
}

// Next implements the IDGenerator interface.
func (g *CounterGenerator) Next() (string, error) {
	n := atomic.AddUint64(&g.next, 1) - 1
	return fmt.Sprintf("%s-%d", g.nodeID, n), nil
}

// UUIDGenerator returns random version 4 UUIDs.
type UUIDGenerator struct{}

// Next implements the IDGenerator interface.
func (g *UUIDGenerator) Next() (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
