// Package node implements the reactive component of a murmur node.
//
// A Node reads messages from its transport, dispatches them by body type, and
// periodically gossips with its neighbors. Its state machine is defined in the
// state package: a node starts Initializing, where it only accepts init,
// becomes Running once init is processed, and ends in Shutdown when its input
// is exhausted. Any other message before init, or an undecodable message, is a
// protocol error that stops the node.
//
// Gossip
//
// The values of a node form a grow-only set. Core tracks, for every neighbor,
// the values that neighbor has not acknowledged. A value becomes pending for
// every neighbor when it enters the store, except the neighbor it came from.
// While anything is pending, the ControlTimer ticks once per heartbeat, and on
// every tick the node sends each neighbor one gossip message carrying all the
// values pending for it. The receiver merges the values and answers gossip_ok
// listing them; only then are they removed from the pending set. Lost gossip
// and lost acks are therefore resent on the next tick, forever if need be, and
// a partitioned neighbor catches up as soon as it is reachable again.
//
// Within one neighbor, successive batches only grow until acknowledged. The
// latest batch sent to a neighbor is kept in flight so that an ack which does
// not list its values still settles the batch it answers.
//
// Requests
//
// Besides gossip, a node answers topology, broadcast, read, echo and generate
// requests. Application errors, such as an unknown message type or a missing
// value, are returned to the requester as error bodies and do not stop the
// node.
package node
