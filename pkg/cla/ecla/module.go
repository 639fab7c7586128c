// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ecla

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
	"github.com/dtn7/dtn7-go/pkg/cla"
)

// wireConn abstracts the JSON packet transport, so a Module can sit atop either a
// WebSocket or a length-delimited TCP connection.
type wireConn interface {
	ReadPacket() (Packet, error)
	WritePacket(Packet) error
	RemoteAddr() string
	Close() error
}

// Module is one connected External Convergence Layer module. It implements both
// cla.ConvergenceReceiver and cla.ConvergenceSender: bundles destined for a peer address
// known through a Beacon packet are forwarded as ForwardData, and ForwardData packets
// received from the module are decoded into bundles.
//
// A single Module may speak for many peers multiplexed over one connection, so, like the
// bbc.Connector, it cannot report a single fixed peer endpoint ID.
type Module struct {
	conn       wireConn
	nodeId     bpv7.EndpointID
	name       string
	enableBeacon bool
	port       uint16

	mutex sync.Mutex
	// peers maps a transport address, as used in ForwardData's src/dst fields, to the
	// endpoint ID announced for it via a Beacon packet.
	peers map[string]bpv7.EndpointID

	reportChan chan cla.ConvergenceStatus

	closeOnce    sync.Once
	closeChanAck chan struct{}
}

// newModule creates a Module for an already Register-ed connection.
func newModule(conn wireConn, nodeId bpv7.EndpointID, name string, enableBeacon bool, port uint16) *Module {
	return &Module{
		conn:         conn,
		nodeId:       nodeId,
		name:         name,
		enableBeacon: enableBeacon,
		port:         port,
		peers:        make(map[string]bpv7.EndpointID),
		reportChan:   make(chan cla.ConvergenceStatus, 32),
		closeChanAck: make(chan struct{}),
	}
}

func (m *Module) String() string {
	if m.port != 0 {
		return fmt.Sprintf("ecla://%s/%s:%d", m.name, m.conn.RemoteAddr(), m.port)
	}
	return fmt.Sprintf("ecla://%s/%s", m.name, m.conn.RemoteAddr())
}

func (m *Module) log() *log.Entry {
	return log.WithField("ecla", m.String())
}

// Start this Module's receive loop. Register/Registered has already happened in the
// Listener before the Module was created, so there is no handshake left to perform here.
func (m *Module) Start() (err error, retry bool) {
	go m.handle()

	return nil, false
}

func (m *Module) handle() {
	defer func() {
		m.log().Info("Closing down ECLA module")
		_ = m.conn.Close()
		close(m.closeChanAck)
	}()

	for {
		packet, err := m.conn.ReadPacket()
		if err != nil {
			m.log().WithError(err).Debug("Reading packet errored, module disconnected")
			return
		}

		switch packet.Type {
		case PacketBeacon:
			m.handleBeacon(packet)

		case PacketForwardData:
			m.handleForwardData(packet)

		case PacketError:
			m.log().WithField("reason", packet.Reason).Warn("ECLA module reported an error")

		default:
			m.log().WithField("type", packet.Type).Warn("Received unexpected packet type")
		}
	}
}

func (m *Module) handleBeacon(packet Packet) {
	eid, err := bpv7.NewEndpointID(packet.Eid)
	if err != nil {
		m.log().WithError(err).WithField("eid", packet.Eid).Warn("Beacon carried an invalid endpoint ID")
		return
	}

	m.mutex.Lock()
	_, known := m.peers[packet.Addr]
	m.peers[packet.Addr] = eid
	m.mutex.Unlock()

	if !known {
		m.log().WithFields(log.Fields{
			"eid":  eid,
			"addr": packet.Addr,
		}).Info("ECLA module announced a new peer")

		m.reportChan <- cla.NewConvergencePeerAppeared(m, eid)
	}
}

func (m *Module) handleForwardData(packet Packet) {
	data, err := base64.StdEncoding.DecodeString(packet.DataB64)
	if err != nil {
		m.log().WithError(err).Warn("Decoding ForwardData's data_b64 failed")
		return
	}

	bndl, err := bpv7.ParseBundle(bytes.NewReader(data))
	if err != nil {
		m.log().WithError(err).Warn("Parsing forwarded bundle failed")
		return
	}

	m.reportChan <- cla.NewConvergenceReceivedBundle(m, m.nodeId, &bndl)
}

// Send looks up a ForwardData destination address for the bundle's destination endpoint,
// learned from a previous Beacon, and forwards the bundle's CBOR encoding to the module.
func (m *Module) Send(bndl bpv7.Bundle) error {
	dst := bndl.PrimaryBlock.Destination

	m.mutex.Lock()
	var addr string
	var found bool
	for a, eid := range m.peers {
		if eid.SameNode(dst) {
			addr, found = a, true
			break
		}
	}
	m.mutex.Unlock()

	if !found {
		return fmt.Errorf("ecla: no known address for destination %v", dst)
	}

	var buf bytes.Buffer
	if err := bndl.WriteBundle(&buf); err != nil {
		return err
	}

	packet := newForwardDataPacket(m.nodeId.String(), addr, bndl.ID().String(), base64.StdEncoding.EncodeToString(buf.Bytes()))
	return m.conn.WritePacket(packet)
}

func (m *Module) Channel() chan cla.ConvergenceStatus {
	return m.reportChan
}

func (m *Module) Address() string {
	return m.String()
}

// IsPermanent is always false; an ECLA module's peers are discovered dynamically and expire
// like any other discovered peer.
func (m *Module) IsPermanent() bool {
	return false
}

func (m *Module) GetPeerEndpointID() bpv7.EndpointID {
	return bpv7.DtnNone()
}

func (m *Module) GetEndpointID() bpv7.EndpointID {
	return m.nodeId
}

// Close shuts the underlying connection down, which unblocks handle's pending ReadPacket
// and lets its deferred cleanup run. Safe to call before Start, concurrently, or more than
// once.
func (m *Module) Close() error {
	m.closeOnce.Do(func() {
		_ = m.conn.Close()
	})
	return nil
}
