package net

import (
	"math/rand"
	"sync"

	maelstrom "github.com/jepsen-io/maelstrom/demo/go"
)

// Network connects InmemTransports the way a test harness would. Nodes can be
// partitioned from one another and node-to-node messages can be dropped at
// random. Clients are always connected to every node.
type Network struct {
	sync.Mutex
	nodes    map[string]*InmemTransport
	clients  map[string]*InmemTransport
	groups   map[string]int
	dropRate float64
	rnd      *rand.Rand
}

// NewNetwork creates an empty, fully connected network. The seed drives
// message drops.
func NewNetwork(seed int64) *Network {
	return &Network{
		nodes:   make(map[string]*InmemTransport),
		clients: make(map[string]*InmemTransport),
		rnd:     rand.New(rand.NewSource(seed)),
	}
}

// Add creates the transport of a node and connects it to everything it can
// reach.
func (n *Network) Add(addr string) *InmemTransport {
	n.Lock()
	defer n.Unlock()

	trans := NewInmemTransport(addr)
	trans.SetFilter(n.filter)
	n.nodes[addr] = trans

	for caddr, c := range n.clients {
		trans.Connect(caddr, c)
		c.Connect(addr, trans)
	}

	n.rewire()

	return trans
}

// AddClient creates the transport of a client, connected to every node.
func (n *Network) AddClient(addr string) *InmemTransport {
	n.Lock()
	defer n.Unlock()

	trans := NewInmemTransport(addr)
	n.clients[addr] = trans

	for naddr, node := range n.nodes {
		trans.Connect(naddr, node)
		node.Connect(addr, trans)
	}

	return trans
}

// Partition splits the nodes into groups that cannot talk to each other. Nodes
// that are not listed form one more group.
func (n *Network) Partition(groups ...[]string) {
	n.Lock()
	defer n.Unlock()

	n.groups = make(map[string]int)
	for i, group := range groups {
		for _, addr := range group {
			n.groups[addr] = i
		}
	}

	n.rewire()
}

// Heal removes any partition.
func (n *Network) Heal() {
	n.Lock()
	defer n.Unlock()

	n.groups = nil
	n.rewire()
}

// SetDropRate sets the probability that a node-to-node message is lost.
func (n *Network) SetDropRate(p float64) {
	n.Lock()
	defer n.Unlock()
	n.dropRate = p
}

// Close closes every transport of the network.
func (n *Network) Close() {
	n.Lock()
	defer n.Unlock()

	for _, t := range n.nodes {
		t.Close()
	}
	for _, t := range n.clients {
		t.Close()
	}
}

func (n *Network) group(addr string) int {
	if g, ok := n.groups[addr]; ok {
		return g
	}
	return -1
}

func (n *Network) reachable(a, b string) bool {
	return n.groups == nil || n.group(a) == n.group(b)
}

func (n *Network) rewire() {
	for a, ta := range n.nodes {
		for b, tb := range n.nodes {
			if a == b {
				continue
			}
			if n.reachable(a, b) {
				ta.Connect(b, tb)
			} else {
				ta.Disconnect(b)
			}
		}
	}
}

func (n *Network) filter(msg maelstrom.Message) bool {
	n.Lock()
	defer n.Unlock()

	if _, ok := n.nodes[msg.Dest]; !ok {
		return true
	}
	if n.dropRate <= 0 {
		return true
	}
	return n.rnd.Float64() >= n.dropRate
}
