// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
	"github.com/dtn7/dtn7-go/pkg/cla"
)

// erPacket type tags for the external-router JSON protocol.
const (
	erRequestSenderForBundle            = "RequestSenderForBundle"
	erResponseSenderForBundle           = "ResponseSenderForBundle"
	erTimeout                           = "Timeout"
	erSendingFailed                     = "SendingFailed"
	erSendingSucceeded                  = "SendingSucceeded"
	erIncomingBundle                    = "IncomingBundle"
	erIncomingBundleWithoutPreviousNode = "IncomingBundleWithoutPreviousNode"
	erEncounteredPeer                   = "EncounteredPeer"
	erDroppedPeer                       = "DroppedPeer"
	erPeerState                         = "PeerState"
	erServiceState                      = "ServiceState"
	erServiceAdd                        = "ServiceAdd"
	erError                             = "Error"
)

// erSender names one candidate next hop in a ResponseSenderForBundle reply.
type erSender struct {
	PeerEid       string `json:"peer_eid,omitempty"`
	ClaName       string `json:"cla_name,omitempty"`
	RemoteAddress string `json:"remote_address,omitempty"`
	Port          uint16 `json:"port,omitempty"`
}

// erPacket is the tagged union exchanged with an external router module, mirroring the
// Algorithm actor's events.
type erPacket struct {
	Type string `json:"type"`

	RequestId string `json:"request_id,omitempty"`
	BundleId  string `json:"bundle_id,omitempty"`

	Senders []erSender `json:"senders,omitempty"`
	Delete  bool       `json:"delete,omitempty"`

	ClaSender    string `json:"cla_sender,omitempty"`
	PreviousNode string `json:"previous_node,omitempty"`

	Eid string `json:"eid,omitempty"`

	Tag     string `json:"tag,omitempty"`
	Service string `json:"service,omitempty"`

	Reason string `json:"reason,omitempty"`
}

// ExternalRoutingConfig configures the external-router Algorithm.
type ExternalRoutingConfig struct {
	// Timeout is the duration a SenderForBundle request waits for a connected module's
	// reply before treating the bundle as contraindicated. Defaults to 2s if zero.
	Timeout time.Duration
}

// ExternalRouting is an Algorithm delegating every routing decision to an out-of-process
// module connected over JSON-over-WebSocket. It implements cla.ConvergenceProvider's
// ServeHTTP-style mounting via its own ServeHTTP method, to be wired into a http.Handler
// by the caller (e.g. at "/ws/erouting").
type ExternalRouting struct {
	c       *Core
	timeout time.Duration

	upgrader websocket.Upgrader

	mutex sync.Mutex
	conn  *websocket.Conn

	pending sync.Map // map[string]chan erPacket, keyed by RequestId

	nextRequestId uint64
}

// NewExternalRouting creates a new ExternalRouting Algorithm interacting with the given
// Core. No module is connected until one dials in via ServeHTTP.
func NewExternalRouting(c *Core, conf ExternalRoutingConfig) *ExternalRouting {
	timeout := conf.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	return &ExternalRouting{
		c:        c,
		timeout:  timeout,
		upgrader: websocket.Upgrader{},
	}
}

// ServeHTTP upgrades a HTTP connection to the WebSocket carrying the external-router
// protocol. Only one module may be connected at a time; a new connection replaces an
// existing one.
func (er *ExternalRouting) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := er.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrading external router connection errored")
		return
	}

	er.mutex.Lock()
	if er.conn != nil {
		_ = er.conn.Close()
	}
	er.conn = conn
	er.mutex.Unlock()

	log.WithField("remote", conn.RemoteAddr()).Info("External router module connected")

	go er.readLoop(conn)
}

func (er *ExternalRouting) readLoop(conn *websocket.Conn) {
	defer func() {
		er.mutex.Lock()
		if er.conn == conn {
			er.conn = nil
		}
		er.mutex.Unlock()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			log.WithError(err).Debug("External router connection closed")
			return
		}

		var packet erPacket
		if err := json.Unmarshal(data, &packet); err != nil {
			log.WithError(err).Warn("Decoding external router packet failed")
			continue
		}

		switch packet.Type {
		case erResponseSenderForBundle:
			if ch, ok := er.pending.Load(packet.RequestId); ok {
				ch.(chan erPacket) <- packet
			}

		case erServiceAdd, erPeerState, erServiceState:
			log.WithField("packet", packet).Debug("External router reported state")

		case erError:
			log.WithField("reason", packet.Reason).Warn("External router module reported an error")

		default:
			log.WithField("type", packet.Type).Warn("External router sent an unexpected packet type")
		}
	}
}

// send writes a packet to the currently connected module, if any.
func (er *ExternalRouting) send(packet erPacket) {
	er.mutex.Lock()
	conn := er.conn
	er.mutex.Unlock()

	if conn == nil {
		return
	}

	data, err := json.Marshal(packet)
	if err != nil {
		log.WithError(err).Warn("Encoding external router packet failed")
		return
	}

	er.mutex.Lock()
	defer er.mutex.Unlock()
	if er.conn != conn {
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.WithError(err).Warn("Sending external router packet failed")
	}
}

func (er *ExternalRouting) NotifyNewBundle(bp BundleDescriptor) {
	bndl := bp.MustBundle()

	if cb, err := bndl.ExtensionBlock(bpv7.ExtBlockTypePreviousNodeBlock); err == nil {
		prev := cb.Value.(*bpv7.PreviousNodeBlock).Endpoint()
		er.send(erPacket{Type: erIncomingBundle, BundleId: bp.ID(), PreviousNode: prev.String()})
	} else {
		er.send(erPacket{Type: erIncomingBundleWithoutPreviousNode, BundleId: bp.ID()})
	}
}

// DispatchingAllowed always allows dispatching; the decision is made by SenderForBundle.
func (er *ExternalRouting) DispatchingAllowed(_ BundleDescriptor) bool {
	return true
}

// SenderForBundle asks the connected module via a RequestSenderForBundle/ResponseSenderForBundle
// round trip, timing out after er.timeout if no module is connected or it does not reply in time.
func (er *ExternalRouting) SenderForBundle(bp BundleDescriptor) (css []cla.ConvergenceSender, del bool) {
	requestId := fmt.Sprintf("%d", atomic.AddUint64(&er.nextRequestId, 1))

	replyChan := make(chan erPacket, 1)
	er.pending.Store(requestId, replyChan)
	defer er.pending.Delete(requestId)

	er.send(erPacket{Type: erRequestSenderForBundle, RequestId: requestId, BundleId: bp.ID()})

	select {
	case reply := <-replyChan:
		for _, s := range reply.Senders {
			if cs := er.resolveSender(s); cs != nil {
				css = append(css, cs)
			}
		}
		del = reply.Delete
		return

	case <-time.After(er.timeout):
		er.send(erPacket{Type: erTimeout, BundleId: bp.ID()})
		log.WithField("bundle", bp.ID()).Debug("External router did not reply in time")
		return nil, false
	}
}

// resolveSender maps an erSender descriptor to a currently registered cla.ConvergenceSender,
// preferring a match on the peer's endpoint ID.
func (er *ExternalRouting) resolveSender(s erSender) cla.ConvergenceSender {
	peerEid, peerErr := bpv7.NewEndpointID(s.PeerEid)

	for _, cs := range er.c.claManager.Sender() {
		if peerErr == nil && cs.GetPeerEndpointID().SameNode(peerEid) {
			return cs
		}
		if s.RemoteAddress != "" && cs.Address() == s.RemoteAddress {
			return cs
		}
	}
	return nil
}

func (er *ExternalRouting) ReportFailure(bp BundleDescriptor, sender cla.ConvergenceSender) {
	er.send(erPacket{Type: erSendingFailed, BundleId: bp.ID(), ClaSender: sender.Address()})
}

func (er *ExternalRouting) ReportPeerAppeared(peer cla.Convergence) {
	if cs, ok := peer.(cla.ConvergenceSender); ok {
		er.send(erPacket{Type: erEncounteredPeer, Eid: cs.GetPeerEndpointID().String()})
	}
}

func (er *ExternalRouting) ReportPeerDisappeared(peer cla.Convergence) {
	if cs, ok := peer.(cla.ConvergenceSender); ok {
		er.send(erPacket{Type: erDroppedPeer, Eid: cs.GetPeerEndpointID().String()})
	}
}

func (er *ExternalRouting) String() string {
	return "external"
}
