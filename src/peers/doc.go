// Package peers defines the members of a murmur cluster and the topology that
// decides which of them a node gossips to directly.
//
// Every node learns its own id and the ids of all cluster members from the
// init message. From that membership a Topology derives the node's neighbors,
// according to a Strategy:
//
// harness: a full mesh until the harness sends a topology message, whose entry
// for this node then becomes the neighbor set. If the entry is missing, the
// previous neighbors are kept so that a node never ends up isolated.
//
// mesh: every other member is a neighbor and topology messages are ignored.
//
// tree: a spanning tree over the sorted member ids, where each node talks to
// its parent and its children. The fanout bounds the number of children.
package peers
