// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2019, 2020 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"sync"
	"time"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
	"github.com/dtn7/dtn7-go/pkg/cla"
)

// PeerType classifies how a Peer entered the PeerTable, which in turn decides whether it
// can expire.
type PeerType int

const (
	// DynamicPeer was found by the discovery subsystem and expires after peer_timeout of
	// silence.
	DynamicPeer PeerType = iota

	// StaticPeer was configured in the node's TOML configuration and never expires.
	StaticPeer
)

func (pt PeerType) String() string {
	if pt == StaticPeer {
		return "static"
	}
	return "dynamic"
}

// PeerCLA names a convergence layer agent under which a Peer is reachable, e.g., a listening
// TCPCLv4 port announced via discovery.
type PeerCLA struct {
	Agent string
	Port  uint16
}

// Peer is a known node in the network, as tracked by the PeerTable.
type Peer struct {
	Eid         bpv7.EndpointID
	Address     string
	PeerType    PeerType
	Clas        []PeerCLA
	LastContact time.Time
	Services    map[string]string

	// Sender is the Convergence which most recently reported this peer's presence. It is kept
	// around so a later Sweep can notify the routing Algorithm of its disappearance the same
	// way a physical disconnect would.
	Sender cla.Convergence
}

// hasCLA reports whether this Peer already lists the given PeerCLA.
func (p Peer) hasCLA(cla PeerCLA) bool {
	for _, existing := range p.Clas {
		if existing == cla {
			return true
		}
	}
	return false
}

// PeerTable is the process-wide registry of known peers, keyed by their EndpointID.
//
// It is mutated from the discovery subsystem, the janitor's sweep and the CLA receive paths;
// a single exclusive lock guards every operation and none of them acquire another lock while
// holding it.
type PeerTable struct {
	mutex sync.Mutex
	peers map[string]*Peer
}

// NewPeerTable creates an empty PeerTable.
func NewPeerTable() *PeerTable {
	return &PeerTable{
		peers: make(map[string]*Peer),
	}
}

// Add upserts a peer by its EID. An existing entry has its CLA list merged, its last_contact
// refreshed and, if the incoming Peer carries service information, its services merged in.
// A Peer's PeerType is only ever widened from dynamic to static, never narrowed back; a node
// once configured as static stays static even if later re-discovered dynamically.
func (pt *PeerTable) Add(peer Peer) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	key := peer.Eid.String()
	if existing, ok := pt.peers[key]; ok {
		for _, c := range peer.Clas {
			if !existing.hasCLA(c) {
				existing.Clas = append(existing.Clas, c)
			}
		}
		if existing.PeerType != StaticPeer {
			existing.PeerType = peer.PeerType
		}
		if peer.Address != "" {
			existing.Address = peer.Address
		}
		if existing.LastContact.Before(peer.LastContact) {
			existing.LastContact = peer.LastContact
		}
		for tag, val := range peer.Services {
			if existing.Services == nil {
				existing.Services = make(map[string]string)
			}
			existing.Services[tag] = val
		}
		if peer.Sender != nil {
			existing.Sender = peer.Sender
		}
		return
	}

	stored := peer
	if stored.Services == nil {
		stored.Services = make(map[string]string)
	}
	pt.peers[key] = &stored
}

// Remove deletes a peer from the table, regardless of its PeerType.
func (pt *PeerTable) Remove(eid bpv7.EndpointID) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	delete(pt.peers, eid.String())
}

// Get looks a peer up by its EID.
func (pt *PeerTable) Get(eid bpv7.EndpointID) (peer Peer, ok bool) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	p, exists := pt.peers[eid.String()]
	if !exists {
		return Peer{}, false
	}
	return *p, true
}

// GetByNodeName looks a peer up by its node name, ignoring any demux part of its EID.
func (pt *PeerTable) GetByNodeName(name string) (peer Peer, ok bool) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	for _, p := range pt.peers {
		if p.Eid.Authority() == name {
			return *p, true
		}
	}
	return Peer{}, false
}

// Iter returns a snapshot of all currently known peers.
func (pt *PeerTable) Iter() []Peer {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	peers := make([]Peer, 0, len(pt.peers))
	for _, p := range pt.peers {
		peers = append(peers, *p)
	}
	return peers
}

// Clear removes every peer from the table, static or dynamic.
func (pt *PeerTable) Clear() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.peers = make(map[string]*Peer)
}

// Count returns the number of known peers.
func (pt *PeerTable) Count() int {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	return len(pt.peers)
}

// Touch refreshes a known peer's last_contact. Unknown peers are ignored; a fresh Peer must
// go through Add first.
func (pt *PeerTable) Touch(eid bpv7.EndpointID, now time.Time) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	if p, ok := pt.peers[eid.String()]; ok {
		p.LastContact = now
	}
}

// Sweep removes every dynamic peer whose last_contact is older than timeout and returns the
// removed peers, so the caller can notify the router about their disappearance. Static peers
// are immune and are never returned.
func (pt *PeerTable) Sweep(now time.Time, timeout time.Duration) (removed []Peer) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	for key, p := range pt.peers {
		if p.PeerType == StaticPeer {
			continue
		}
		if now.Sub(p.LastContact) > timeout {
			removed = append(removed, *p)
			delete(pt.peers, key)
		}
	}
	return
}
