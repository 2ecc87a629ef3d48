package peers

// Peer is a member of the cluster, identified by the opaque id the harness
// assigned to it.
type Peer struct {
	ID string
}

// NewPeer ...
func NewPeer(id string) *Peer {
	return &Peer{ID: id}
}

// ExcludePeer is used to exclude a single peer from a list of peers.
func ExcludePeer(peers []*Peer, peer string) (int, []*Peer) {
	index := -1
	otherPeers := make([]*Peer, 0, len(peers))
	for i, p := range peers {
		if p.ID != peer {
			otherPeers = append(otherPeers, p)
		} else {
			index = i
		}
	}
	return index, otherPeers
}
