package node

import (
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mosaicnetworks/murmur/src/store"
)

// GetStats returns information about the node.
func (n *Node) GetStats() map[string]string {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	timeElapsed := time.Since(n.start)

	stats := map[string]string{
		"id":            n.nodeID,
		"state":         n.GetState().String(),
		"time_elapsed":  strconv.FormatFloat(timeElapsed.Seconds(), 'f', 2, 64),
		"heartbeat":     strconv.FormatFloat(n.conf.HeartbeatTimeout.Seconds(), 'f', 2, 64),
		"gossip_sent":   strconv.FormatInt(atomic.LoadInt64(&n.gossipSent), 10),
		"acks_received": strconv.FormatInt(atomic.LoadInt64(&n.acksReceived), 10),
		"last_msg_id":   strconv.FormatInt(atomic.LoadInt64(&n.msgID), 10),
		"values":        "0",
		"neighbors":     "",
		"pending":       "0",
	}

	if n.core != nil {
		pending := 0
		for _, c := range n.core.PendingCounts() {
			pending += c
		}

		stats["values"] = strconv.Itoa(n.core.Len())
		stats["neighbors"] = strings.Join(n.core.Topology().Neighbors().IDs(), ",")
		stats["pending"] = strconv.Itoa(pending)
		stats["topology"] = string(n.core.Topology().Strategy())
	}

	return stats
}

// GetValues returns every value known to the node, sorted.
func (n *Node) GetValues() []store.Value {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	if n.core == nil {
		return []store.Value{}
	}
	return n.core.Values()
}

// GetPending returns the unacknowledged values of every neighbor, sorted.
func (n *Node) GetPending() map[string][]store.Value {
	n.coreLock.Lock()
	defer n.coreLock.Unlock()

	res := make(map[string][]store.Value)
	if n.core == nil {
		return res
	}
	for _, id := range n.core.Topology().Neighbors().IDs() {
		res[id] = n.core.Pending(id)
	}
	return res
}
