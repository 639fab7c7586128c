// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
// SPDX-FileCopyrightText: 2019, 2020 Markus Sommer
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"
	"github.com/dtn7/dtn7-go/pkg/agent"
	"github.com/dtn7/dtn7-go/pkg/bpv7"
	"github.com/dtn7/dtn7-go/pkg/cla"
	"github.com/dtn7/dtn7-go/pkg/cla/bbc"
	"github.com/dtn7/dtn7-go/pkg/cla/ecla"
	"github.com/dtn7/dtn7-go/pkg/cla/mtcp"
	"github.com/dtn7/dtn7-go/pkg/cla/quicl"
	"github.com/dtn7/dtn7-go/pkg/cla/tcpclv4"
	"github.com/dtn7/dtn7-go/pkg/discovery"
	"github.com/dtn7/dtn7-go/pkg/routing"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Core      coreConf
	Logging   logConf
	Discovery discoveryConf
	Agents    agentsConfig
	Listen    []convergenceConf
	Peer      []convergenceConf
	Routing   routing.RoutingConf
	ECLA      eclaConf
}

// eclaConf describes the optional External Convergence Layer Adaptor block, letting
// out-of-process modules implement a CLA over JSON-over-WebSocket/TCP.
type eclaConf struct {
	// Enable mounts the ECLA WebSocket handler at WsPath on the Agents webserver.
	Enable bool

	// WsPath is the WebSocket mount point. Defaults to "/ws/ecla".
	WsPath string `toml:"ws-path"`

	// TcpListen is an optional "host:port" address for the length-delimited
	// JSON-over-TCP variant of the protocol. Empty disables it.
	TcpListen string `toml:"tcp-listen"`
}

// coreConf describes the Core-configuration block.
type coreConf struct {
	Store             string
	InspectAllBundles bool   `toml:"inspect-all-bundles"`
	NodeId            string `toml:"node-id"`
	SignPriv          string `toml:"signature-private"`

	// PeerTimeout is the number of seconds a dynamic peer may stay silent before the janitor
	// sweeps it from the peer table. Defaults to 30s if unset.
	PeerTimeout uint `toml:"peer-timeout"`
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// discoveryConf describes the Discovery-configuration block.
type discoveryConf struct {
	IPv4     bool
	IPv6     bool
	Interval uint
}

// agentsConfig describes the ApplicationAgents/Agent-configuration block.
type agentsConfig struct {
	Webserver agentsWebserverConfig
}

// agentsWebserverConfig describes the nested "Webserver" configuration for agents.
type agentsWebserverConfig struct {
	Address   string
	Websocket bool
	Rest      bool
}

// convergenceConf describes the Convergence-configuration block, used for
// "listen" and "peer".
//
// One of: "mtcp", "tcpcl", "tcpcl-ws", "quicl", "bbc".
type convergenceConf struct {
	Node     string
	Protocol string
	Endpoint string
}

func parseListenPort(endpoint string) (port int, err error) {
	var portStr string
	_, portStr, err = net.SplitHostPort(endpoint)
	if err != nil {
		return
	}
	port, err = strconv.Atoi(portStr)
	return
}

// parseListen inspects a "listen" convergenceConf and returns a Convergable. wsRouter is used to mount a
// "tcpcl-ws" listener's HTTP handler, and may be nil if no webserver was configured.
func parseListen(conv convergenceConf, nodeId bpv7.EndpointID, wsRouter *mux.Router) (
	cla.Convergable, bpv7.EndpointID, cla.CLAType, *discovery.Announcement, error) {
	log.WithFields(log.Fields{
		"EndpointID": conv.Node,
		"Endpoint":   conv.Endpoint,
		"Protocol":   conv.Protocol,
	}).Debug("Initialising convergence adaptor")

	// if the user has configured an EndpointID for this convergence adaptor
	if conv.Node != "" {
		parsedId, err := bpv7.NewEndpointID(conv.Node)
		if err != nil {
			return nil, nodeId, 0, nil, err
		} else {
			log.WithFields(log.Fields{
				"listener ID": conv.Node,
			}).Debug("Using alternative configured endpoint id for listener")
			nodeId = parsedId
		}
	}

	switch conv.Protocol {
	case "bbc":
		conn, err := bbc.NewBundleBroadcastingConnector(conv.Endpoint, true)
		return conn, nodeId, cla.BBC, nil, err

	case "mtcp":
		portInt, err := parseListenPort(conv.Endpoint)
		if err != nil {
			return nil, nodeId, cla.MTCP, nil, err
		}

		msg := &discovery.Announcement{
			Type:     cla.MTCP,
			Endpoint: nodeId,
			Port:     uint(portInt),
		}

		return mtcp.NewMTCPServer(conv.Endpoint, nodeId, true), nodeId, cla.MTCP, msg, nil

	case "tcpcl":
		portInt, err := parseListenPort(conv.Endpoint)
		if err != nil {
			return nil, nodeId, cla.TCPCLv4, nil, err
		}

		listener := tcpclv4.ListenTCP(conv.Endpoint, nodeId)

		msg := &discovery.Announcement{
			Type:     cla.TCPCLv4,
			Endpoint: nodeId,
			Port:     uint(portInt),
		}

		return listener, nodeId, cla.TCPCLv4, msg, nil

	case "tcpcl-ws":
		if wsRouter == nil {
			return nil, nodeId, cla.TCPCLv4, nil, fmt.Errorf("tcpcl-ws listener requires agents.webserver to be configured")
		}

		listener := tcpclv4.ListenWebSocket(nodeId)
		wsRouter.HandleFunc(conv.Endpoint, listener.ServeHTTP)

		return listener, nodeId, cla.TCPCLv4, nil, nil

	case "quicl":
		listener := quicl.NewQUICListener(conv.Endpoint, nodeId)
		return listener, nodeId, cla.QUICL, nil, nil

	default:
		return nil, nodeId, 0, nil, fmt.Errorf("unknown listen.protocol \"%s\"", conv.Protocol)
	}
}

func parsePeer(conv convergenceConf, nodeId bpv7.EndpointID) (cla.ConvergenceSender, bpv7.EndpointID, error) {
	endpointID, err := bpv7.NewEndpointID(conv.Node)
	if err != nil {
		return nil, endpointID, err
	}

	switch conv.Protocol {
	case "mtcp":
		return mtcp.NewMTCPClient(conv.Endpoint, endpointID, true), endpointID, nil

	case "tcpcl":
		return tcpclv4.DialTCP(conv.Endpoint, nodeId, true), endpointID, nil

	case "tcpcl-ws":
		return tcpclv4.DialWebSocket(conv.Endpoint, nodeId, true), endpointID, nil

	case "quicl":
		return quicl.NewDialerEndpoint(conv.Endpoint, nodeId, true), endpointID, nil

	default:
		return nil, endpointID, fmt.Errorf("unknown peer.protocol \"%s\"", conv.Protocol)
	}
}

// parseAgents for the ApplicationAgents. Returns the agents and the mux.Router a "tcpcl-ws" listener can
// mount itself on, which is nil if no webserver was configured.
func parseAgents(conf agentsConfig) (agents []agent.ApplicationAgent, wsRouter *mux.Router, err error) {
	if (conf.Webserver == agentsWebserverConfig{}) {
		return
	}

	r := mux.NewRouter()
	wsRouter = r

	if conf.Webserver.Websocket {
		ws := agent.NewWebSocketAgent()
		r.HandleFunc("/ws", ws.ServeHTTP)

		agents = append(agents, ws)
	}

	if conf.Webserver.Rest {
		restRouter := r.PathPrefix("/rest").Subrouter()
		ra := agent.NewRestAgent(restRouter)

		agents = append(agents, ra)
	}

	httpServer := &http.Server{
		Addr:    conf.Webserver.Address,
		Handler: r,
	}

	errChan := make(chan error)
	go func() { errChan <- httpServer.ListenAndServe() }()

	select {
	case err = <-errChan:
		return

	case <-time.After(100 * time.Millisecond):
		break
	}

	return
}

// parseCore creates the Core based on the given TOML configuration.
func parseCore(filename string) (c *routing.Core, dm *discovery.Manager, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	// Logging
	if conf.Logging.Level != "" {
		if lvl, lvlErr := log.ParseLevel(conf.Logging.Level); lvlErr != nil {
			log.WithFields(log.Fields{
				"level":    conf.Logging.Level,
				"error":    lvlErr,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.Logging.ReportCaller)

	switch conf.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}

	var announcements []discovery.Announcement

	// Core
	if conf.Core.Store == "" {
		err = fmt.Errorf("core.store is empty")
		return
	}

	log.WithFields(log.Fields{
		"routing": conf.Routing.Algorithm,
	}).Debug("Selected routing algorithm")

	nodeId, nodeErr := bpv7.NewEndpointID(conf.Core.NodeId)
	if nodeErr != nil {
		err = nodeErr
		return
	}

	var signPriv ed25519.PrivateKey = nil
	if conf.Core.SignPriv != "" {
		if signPriv, err = hex.DecodeString(conf.Core.SignPriv); err != nil {
			return
		}
	}

	peerTimeout := conf.Core.PeerTimeout
	if peerTimeout == 0 {
		peerTimeout = 30
	}

	if c, err = routing.NewCore(conf.Core.Store, nodeId, conf.Core.InspectAllBundles, conf.Routing, signPriv, time.Duration(peerTimeout)*time.Second); err != nil {
		return
	}

	// The ping agent answers under <node-id>ping regardless of configuration.
	if pingEid, pingErr := bpv7.NewEndpointID(nodeId.String() + "ping"); pingErr == nil {
		c.RegisterApplicationAgent(agent.NewPing(pingEid))
	}

	// Agents
	var wsRouter *mux.Router
	if conf.Agents != (agentsConfig{}) {
		var appAgents []agent.ApplicationAgent
		if appAgents, wsRouter, err = parseAgents(conf.Agents); err != nil {
			return
		}
		for _, appAgent := range appAgents {
			c.RegisterApplicationAgent(appAgent)
		}
	}

	// Listen/ConvergenceReceiver
	for _, conv := range conf.Listen {
		convRec, eid, claType, announcement, lErr := parseListen(conv, c.NodeId, wsRouter)
		if lErr != nil {
			err = lErr
			return
		}

		c.RegisterCLA(convRec, claType, eid)
		if announcement != nil {
			announcements = append(announcements, *announcement)
		}
	}

	// Peer/ConvergenceSender
	for _, conv := range conf.Peer {
		convRec, peerEid, peerErr := parsePeer(conv, c.NodeId)
		if peerErr != nil {
			log.WithFields(log.Fields{
				"peer":  conv.Endpoint,
				"error": peerErr,
			}).Warn("Failed to establish a connection to a peer")
			continue
		}

		c.RegisterConvergable(convRec)

		c.PeerTable().Add(routing.Peer{
			Eid:         peerEid,
			Address:     conv.Endpoint,
			PeerType:    routing.StaticPeer,
			LastContact: time.Now(),
			Sender:      convRec,
		})
	}

	// External Convergence Layer Adaptor
	if conf.ECLA.Enable {
		wsPath := conf.ECLA.WsPath
		if wsPath == "" {
			wsPath = "/ws/ecla"
		}

		if wsRouter == nil && conf.ECLA.TcpListen == "" {
			log.Warn("ECLA is enabled but neither agents.webserver nor ecla.tcp-listen is configured")
		} else {
			listener := ecla.NewListener(c.NodeId, conf.ECLA.TcpListen)
			if wsRouter != nil {
				wsRouter.HandleFunc(wsPath, listener.ServeHTTP)
			}
			c.RegisterConvergable(listener)
		}
	}

	// External router module
	if er, ok := c.RoutingAlgorithm().(*routing.ExternalRouting); ok {
		if wsRouter == nil {
			log.Warn("Routing algorithm \"external\" is selected but agents.webserver is not configured")
		} else {
			wsRouter.HandleFunc("/ws/erouting", er.ServeHTTP)
		}
	}

	// Discovery
	if conf.Discovery.IPv4 || conf.Discovery.IPv6 {
		if conf.Discovery.Interval == 0 {
			conf.Discovery.Interval = 10
		}

		dm, err = discovery.NewManager(
			c.NodeId, c.RegisterConvergable, announcements,
			time.Duration(conf.Discovery.Interval)*time.Second,
			conf.Discovery.IPv4, conf.Discovery.IPv6)
		if err != nil {
			return
		}
	}

	return
}
