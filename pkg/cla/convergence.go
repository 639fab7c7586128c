// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2020 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package cla

import (
	"fmt"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
)

// CLAType is one of the supported Convergence Layer Adaptors.
type CLAType uint

const (
	// TCPCLv4 is the "Delay-Tolerant Networking TCP Convergence Layer Protocol
	// Version 4" as specified in draft-ietf-dtn-tcpclv4-14 or newer.
	TCPCLv4 CLAType = 0

	// MTCP is the "Minimal TCP Convergence-Layer Protocol" as specified in
	// draft-ietf-dtn-mtcpcl-01 or newer documents.
	MTCP CLAType = 1

	// BBC is the Bundle Broadcasting Connector.
	BBC CLAType = 2

	// QUICL is the QUIC based Convergence Layer.
	QUICL CLAType = 3
)

func (t CLAType) String() string {
	switch t {
	case TCPCLv4:
		return "tcpclv4"
	case MTCP:
		return "mtcp"
	case BBC:
		return "bbc"
	case QUICL:
		return "quicl"
	default:
		return "unknown"
	}
}

// CheckValid returns an error if t is not one of the known CLATypes.
func (t CLAType) CheckValid() error {
	switch t {
	case TCPCLv4, MTCP, BBC, QUICL:
		return nil
	default:
		return fmt.Errorf("unknown CLAType %d", uint(t))
	}
}

// Convergable is implemented by anything that can be registered with a
// Manager: either a Convergence, a single CLA instance acting as a sender
// and/or receiver, or a ConvergenceProvider, a listener which creates
// Convergence instances as peers connect.
type Convergable interface {
	// Close shuts this Convergable down.
	Close() error
}

// Convergence is an interface to describe all kinds of Convergence Layer
// Adapters. There should not be a direct implementation of this interface.
// One must implement ConvergenceReceiver and/or ConvergenceSender, which are
// both extending this interface. A type can be both a ConvergenceReceiver
// and a ConvergenceSender.
type Convergence interface {
	Convergable

	// Start starts this Convergence{Receiver,Sender} and might return an error
	// and a boolean indicating if another Start should be tried later.
	Start() (err error, retry bool)

	// Channel returns a channel of ConvergenceStatus updates reported by this
	// Convergence, e.g., received bundles or an appeared/disappeared peer.
	Channel() chan ConvergenceStatus

	// Address should return a unique address string to both identify this
	// Convergence{Receiver,Sender} and ensure it will not be opened twice.
	Address() string

	// IsPermanent returns true if this CLA should not be removed after failures.
	IsPermanent() bool
}

// ConvergenceReceiver is an interface for types which are able to receive
// bundles and report them as a ConvergenceStatus on their Channel.
type ConvergenceReceiver interface {
	Convergence

	// GetEndpointID returns the endpoint ID assigned to this CLA.
	GetEndpointID() bpv7.EndpointID
}

// ConvergenceSender is an interface for types which are able to transmit
// bundles to another node.
type ConvergenceSender interface {
	Convergence

	// Send transmits a bundle to this ConvergenceSender's peer. This method
	// should be thread safe and finish transmitting one bundle before acting
	// on the next.
	Send(bndl bpv7.Bundle) error

	// GetPeerEndpointID returns the endpoint ID assigned to this CLA's peer,
	// if it's known. Otherwise the zero endpoint will be returned.
	GetPeerEndpointID() bpv7.EndpointID
}

// ConvergenceProvider is implemented by listener style CLAs which do not
// receive or send bundles themselves, but accept incoming connections and
// register the resulting Convergence instances with a Manager, e.g., a TCPCL
// or QUICL listener.
type ConvergenceProvider interface {
	Convergable

	// RegisterManager supplies the Manager this ConvergenceProvider should
	// register newly accepted Convergence instances with.
	RegisterManager(manager *Manager)

	// Start starts listening for incoming connections.
	Start() error
}
