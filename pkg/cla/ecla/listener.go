// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package ecla

import (
	"fmt"
	"net"
	"net/http"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/dtn7/dtn7-go/pkg/bpv7"
	"github.com/dtn7/dtn7-go/pkg/cla"
)

// Listener accepts connections from External Convergence Layer modules, both as a
// http.Handler for WebSocket upgrades and, optionally, as a plain TCP listener for the
// length-delimited JSON variant of the protocol. Every accepted connection performs a
// Register/Registered handshake before being wrapped as a Module and handed to the Manager.
//
// Listener implements cla.ConvergenceProvider.
type Listener struct {
	nodeId bpv7.EndpointID

	manager      *cla.Manager
	managerReady uint32

	upgrader websocket.Upgrader

	tcpListen string
	tcpCloser net.Listener
}

// NewListener creates a new Listener for the given node ID. tcpListen is an optional
// "host:port" address for the length-delimited JSON-over-TCP variant; an empty string
// disables it, leaving only the WebSocket handler mounted by ServeHTTP.
func NewListener(nodeId bpv7.EndpointID, tcpListen string) *Listener {
	return &Listener{
		nodeId:    nodeId,
		upgrader:  websocket.Upgrader{},
		tcpListen: tcpListen,
	}
}

// RegisterManager tells the Listener where to report newly registered Modules to.
func (l *Listener) RegisterManager(manager *cla.Manager) {
	l.manager = manager
	atomic.StoreUint32(&l.managerReady, 1)
}

// Start the optional TCP listener. The WebSocket side is started implicitly once ServeHTTP
// is mounted on a http.Server by the caller.
func (l *Listener) Start() error {
	if l.tcpListen == "" {
		return nil
	}

	ln, err := net.Listen("tcp", l.tcpListen)
	if err != nil {
		return err
	}
	l.tcpCloser = ln

	go l.acceptTcp(ln)

	return nil
}

func (l *Listener) acceptTcp(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return
		}

		go l.handleConn(newTcpConn(conn))
	}
}

// ServeHTTP upgrades a HTTP connection to a WebSocket connection speaking the ECLA protocol.
func (l *Listener) ServeHTTP(writer http.ResponseWriter, request *http.Request) {
	if atomic.LoadUint32(&l.managerReady) != 1 {
		return
	}

	conn, err := l.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		log.WithError(err).Warn("Upgrading ECLA connection errored")
		return
	}

	go l.handleConn(newWsConn(conn))
}

// handleConn performs the Register/Registered handshake and, on success, hands the
// resulting Module to the Manager.
func (l *Listener) handleConn(conn wireConn) {
	packet, err := conn.ReadPacket()
	if err != nil {
		log.WithError(err).Debug("Reading ECLA registration packet failed")
		_ = conn.Close()
		return
	}

	if packet.Type != PacketRegister {
		log.WithField("type", packet.Type).Warn("ECLA module's first packet was not a Register")
		_ = conn.WritePacket(newErrorPacket("expected a Register packet"))
		_ = conn.Close()
		return
	}

	if packet.Name == "" {
		_ = conn.WritePacket(newErrorPacket("Register packet is missing a name"))
		_ = conn.Close()
		return
	}

	if err := conn.WritePacket(newRegisteredPacket(l.nodeId.String(), l.nodeId.String())); err != nil {
		log.WithError(err).Warn("Sending Registered packet failed")
		_ = conn.Close()
		return
	}

	log.WithFields(log.Fields{
		"name":          packet.Name,
		"enable_beacon": packet.EnableBeacon,
		"remote":        conn.RemoteAddr(),
	}).Info("ECLA module registered")

	module := newModule(conn, l.nodeId, packet.Name, packet.EnableBeacon, packet.Port)
	l.manager.Register(module)
}

// Close shuts the optional TCP listener down. The WebSocket side has no listening socket of
// its own to close; it stops accepting once the hosting http.Server is closed.
func (l *Listener) Close() error {
	if l.tcpCloser != nil {
		return l.tcpCloser.Close()
	}
	return nil
}

func (l *Listener) String() string {
	return fmt.Sprintf("ecla.Listener(%s)", l.nodeId)
}
