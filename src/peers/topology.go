package peers

import (
	"fmt"
)

// Strategy selects how a Topology derives neighbors.
type Strategy string

const (
	// StrategyHarness follows topology messages, starting from a full mesh.
	StrategyHarness Strategy = "harness"
	// StrategyMesh always uses a full mesh.
	StrategyMesh Strategy = "mesh"
	// StrategyTree uses a spanning tree over the sorted member ids.
	StrategyTree Strategy = "tree"
)

// ParseStrategy ...
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyHarness, StrategyMesh, StrategyTree:
		return Strategy(s), nil
	case "":
		return StrategyHarness, nil
	}
	return "", fmt.Errorf("unknown topology strategy %q", s)
}

// Topology holds the identity of a node, the other members of the cluster, and
// the subset of members it gossips to directly. It is not safe for concurrent
// use.
type Topology struct {
	strategy Strategy
	fanout   int

	self      string
	members   *PeerSet
	neighbors *PeerSet
}

// NewTopology ...
func NewTopology(strategy Strategy, fanout int) *Topology {
	return &Topology{
		strategy:  strategy,
		fanout:    fanout,
		members:   NewPeerSet(nil),
		neighbors: NewPeerSet(nil),
	}
}

// Init sets the identity and membership and computes the default neighbors.
// ids may include self.
func (t *Topology) Init(self string, ids []string) {
	all := NewPeerSetFromIDs(append([]string{self}, ids...))

	t.self = self
	t.members = all.WithRemovedPeer(NewPeer(self))

	switch t.strategy {
	case StrategyTree:
		tree := BuildTree(all.SortedIDs(), t.fanout)
		t.neighbors = NewPeerSetFromIDs(tree[self])
	default:
		t.neighbors = t.members
	}
}

// SetAdjacency applies a topology message and returns the neighbors that were
// added and removed. Only the harness strategy honours it; the entry for self
// replaces the neighbors, ignoring self-loops. A missing entry keeps the
// current neighbors.
func (t *Topology) SetAdjacency(adjacency map[string][]string) (added []string, removed []string) {
	if t.strategy != StrategyHarness {
		return nil, nil
	}

	ids, ok := adjacency[t.self]
	if !ok {
		return nil, nil
	}

	next := NewPeerSetFromIDs(ids).WithRemovedPeer(NewPeer(t.self))
	added, removed = t.neighbors.Diff(next)
	t.neighbors = next

	return added, removed
}

// Self returns the id of this node.
func (t *Topology) Self() string {
	return t.self
}

// Strategy ...
func (t *Topology) Strategy() Strategy {
	return t.strategy
}

// Members returns every other node of the cluster.
func (t *Topology) Members() *PeerSet {
	return t.members
}

// Neighbors returns the nodes this node gossips to directly.
func (t *Topology) Neighbors() *PeerSet {
	return t.neighbors
}

// IsNeighbor ...
func (t *Topology) IsNeighbor(id string) bool {
	return t.neighbors.Contains(id)
}
