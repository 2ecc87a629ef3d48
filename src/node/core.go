package node

import (
	"sort"

	mapset "github.com/deckarep/golang-set"
	"github.com/mosaicnetworks/murmur/src/peers"
	"github.com/mosaicnetworks/murmur/src/store"
	"github.com/sirupsen/logrus"
)

// Batch is a gossip message in flight to one neighbor.
type Batch struct {
	Neighbor string
	MsgID    int
	Values   []store.Value
}

// Core is the gossip state of a node: its topology, its store, and for every
// neighbor the set of values that neighbor has not acknowledged yet. A value
// stays pending for a neighbor until that neighbor acknowledges it. Core is not
// safe for concurrent use; the Node serialises access with coreLock.
type Core struct {
	topology *peers.Topology
	store    store.Store

	pending  map[string]mapset.Set
	inflight map[string]*Batch

	logger *logrus.Entry
}

// NewCore ...
func NewCore(topology *peers.Topology, store store.Store, logger *logrus.Entry) *Core {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	core := &Core{
		topology: topology,
		store:    store,
		pending:  make(map[string]mapset.Set),
		inflight: make(map[string]*Batch),
		logger:   logger,
	}

	for _, id := range topology.Neighbors().IDs() {
		core.pending[id] = mapset.NewThreadUnsafeSet()
	}

	return core
}

// Bootstrap marks every value already in the store as pending for every
// neighbor. It is used when the store was loaded from disk.
func (c *Core) Bootstrap() int {
	values := c.store.ReadAll()
	for _, v := range values {
		c.schedule(v, "")
	}

	c.logger.WithField("values", len(values)).Debug("Bootstrap")

	return len(values)
}

// AddValue inserts a value submitted by a client and schedules it for every
// neighbor if it is new.
func (c *Core) AddValue(v store.Value) (bool, error) {
	added, err := c.store.Add(v)
	if err != nil {
		return false, err
	}

	if added {
		c.schedule(v, "")
	}

	return added, nil
}

// Merge inserts values received from another node and schedules the new ones
// for every neighbor except the sender, which evidently has them.
func (c *Core) Merge(from string, vs []store.Value) ([]store.Value, error) {
	fresh, err := c.store.Merge(vs)
	if err != nil {
		return nil, err
	}

	for _, v := range fresh {
		c.schedule(v, from)
	}

	if len(fresh) > 0 {
		c.logger.WithFields(logrus.Fields{
			"from":     from,
			"received": len(vs),
			"new":      len(fresh),
		}).Debug("Merge")
	}

	return fresh, nil
}

func (c *Core) schedule(v store.Value, except string) {
	for id, set := range c.pending {
		if id != except {
			set.Add(v)
		}
	}
}

// PendingBatches returns, for every neighbor with pending values, a batch of
// all of them. Neighbors and values are sorted. MsgID is left for the caller.
func (c *Core) PendingBatches() []*Batch {
	res := []*Batch{}

	for _, id := range c.sortedNeighbors() {
		values := c.Pending(id)
		if len(values) == 0 {
			continue
		}
		res = append(res, &Batch{
			Neighbor: id,
			Values:   values,
		})
	}

	return res
}

// RecordInflight remembers the latest batch sent to a neighbor, superseding the
// previous one.
func (c *Core) RecordInflight(b *Batch) {
	c.inflight[b.Neighbor] = b
}

// Inflight returns the latest batch sent to a neighbor, if any.
func (c *Core) Inflight(neighbor string) *Batch {
	return c.inflight[neighbor]
}

// Ack processes an acknowledgement from a neighbor and returns the number of
// values it settled. When the ack lists no values, the in-flight batch with
// msg_id inReplyTo stands for them.
func (c *Core) Ack(from string, inReplyTo int, vs []store.Value) int {
	set, ok := c.pending[from]
	if !ok {
		return 0
	}

	batch := c.inflight[from]
	if batch != nil && batch.MsgID == inReplyTo {
		if len(vs) == 0 {
			vs = batch.Values
		}
		delete(c.inflight, from)
	}

	settled := 0
	for _, v := range vs {
		if set.Contains(v) {
			set.Remove(v)
			settled++
		}
	}

	c.logger.WithFields(logrus.Fields{
		"from":        from,
		"in_reply_to": inReplyTo,
		"settled":     settled,
		"pending":     set.Cardinality(),
	}).Debug("Ack")

	return settled
}

// SetTopology applies a topology message. New neighbors start with every known
// value pending; neighbors that are dropped lose their pending records.
func (c *Core) SetTopology(adjacency map[string][]string) (added []string, removed []string) {
	added, removed = c.topology.SetAdjacency(adjacency)

	values := c.store.ReadAll()
	for _, id := range added {
		set := mapset.NewThreadUnsafeSet()
		for _, v := range values {
			set.Add(v)
		}
		c.pending[id] = set
	}

	for _, id := range removed {
		delete(c.pending, id)
		delete(c.inflight, id)
	}

	if len(added) > 0 || len(removed) > 0 {
		c.logger.WithFields(logrus.Fields{
			"added":     added,
			"removed":   removed,
			"neighbors": c.topology.Neighbors().IDs(),
		}).Debug("SetTopology")
	}

	return added, removed
}

// Busy returns true if some value still awaits an acknowledgement.
func (c *Core) Busy() bool {
	for _, set := range c.pending {
		if set.Cardinality() > 0 {
			return true
		}
	}
	return false
}

// Pending returns the sorted values a neighbor has not acknowledged.
func (c *Core) Pending(neighbor string) []store.Value {
	set, ok := c.pending[neighbor]
	if !ok {
		return []store.Value{}
	}

	res := make(store.Values, 0, set.Cardinality())
	for v := range set.Iter() {
		res = append(res, v.(store.Value))
	}
	sort.Sort(res)

	return res
}

// PendingCounts returns the number of pending values per neighbor.
func (c *Core) PendingCounts() map[string]int {
	res := make(map[string]int, len(c.pending))
	for id, set := range c.pending {
		res[id] = set.Cardinality()
	}
	return res
}

// Values returns every value of the store, sorted.
func (c *Core) Values() []store.Value {
	return c.store.ReadAll()
}

// Len returns the number of values in the store.
func (c *Core) Len() int {
	return c.store.Len()
}

// Topology ...
func (c *Core) Topology() *peers.Topology {
	return c.topology
}

func (c *Core) sortedNeighbors() []string {
	res := make([]string, 0, len(c.pending))
	for id := range c.pending {
		res = append(res, id)
	}
	sort.Strings(res)
	return res
}
