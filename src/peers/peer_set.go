package peers

import (
	"sort"
)

// PeerSet is an immutable, ordered collection of Peers without duplicates.
type PeerSet struct {
	Peers []*Peer
	ByID  map[string]*Peer
}

/* Constructors */

// NewPeerSet creates a new PeerSet from a list of Peers. Later duplicates are
// ignored.
func NewPeerSet(peers []*Peer) *PeerSet {
	peerSet := &PeerSet{
		Peers: make([]*Peer, 0, len(peers)),
		ByID:  make(map[string]*Peer),
	}

	for _, peer := range peers {
		if _, ok := peerSet.ByID[peer.ID]; ok {
			continue
		}
		peerSet.ByID[peer.ID] = peer
		peerSet.Peers = append(peerSet.Peers, peer)
	}

	return peerSet
}

// NewPeerSetFromIDs ...
func NewPeerSetFromIDs(ids []string) *PeerSet {
	peers := make([]*Peer, 0, len(ids))
	for _, id := range ids {
		peers = append(peers, NewPeer(id))
	}
	return NewPeerSet(peers)
}

// WithNewPeer returns a new PeerSet with a list of peers including the new one.
func (peerSet *PeerSet) WithNewPeer(peer *Peer) *PeerSet {
	peers := make([]*Peer, len(peerSet.Peers), len(peerSet.Peers)+1)
	copy(peers, peerSet.Peers)
	return NewPeerSet(append(peers, peer))
}

// WithRemovedPeer returns a new PeerSet with a list of peers excluding the
// provided one
func (peerSet *PeerSet) WithRemovedPeer(peer *Peer) *PeerSet {
	_, others := ExcludePeer(peerSet.Peers, peer.ID)
	return NewPeerSet(others)
}

/* ToSlice Methods */

// IDs returns the ids of the PeerSet, in insertion order.
func (peerSet *PeerSet) IDs() []string {
	res := make([]string, 0, len(peerSet.Peers))
	for _, peer := range peerSet.Peers {
		res = append(res, peer.ID)
	}
	return res
}

// SortedIDs ...
func (peerSet *PeerSet) SortedIDs() []string {
	res := peerSet.IDs()
	sort.Strings(res)
	return res
}

/* Utilities */

// Len returns the number of Peers in the PeerSet
func (peerSet *PeerSet) Len() int {
	return len(peerSet.Peers)
}

// Contains ...
func (peerSet *PeerSet) Contains(id string) bool {
	_, ok := peerSet.ByID[id]
	return ok
}

// Diff returns the ids present in other but not in peerSet (added) and those
// present in peerSet but not in other (removed).
func (peerSet *PeerSet) Diff(other *PeerSet) (added []string, removed []string) {
	for _, p := range other.Peers {
		if !peerSet.Contains(p.ID) {
			added = append(added, p.ID)
		}
	}
	for _, p := range peerSet.Peers {
		if !other.Contains(p.ID) {
			removed = append(removed, p.ID)
		}
	}
	return added, removed
}
