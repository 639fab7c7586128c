// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package ecla implements the External Convergence Layer Adaptor, a JSON-over-WebSocket
// (or length-delimited JSON-over-TCP) protocol letting an out-of-process module implement
// a Convergence Layer Adaptor without linking against this module's Go packages.
//
// A connecting module first sends a Register packet naming itself; dtnd answers with a
// Registered packet carrying its own node ID. Afterwards, Beacon packets announce peers
// discovered by the module's own transmission layer and ForwardData packets carry bundle
// bytes in both directions.
package ecla

import (
	"encoding/json"
	"fmt"
)

// Packet type tags, matching the "type" field of the JSON-encoded wire packets.
const (
	PacketRegister    = "Register"
	PacketRegistered  = "Registered"
	PacketBeacon      = "Beacon"
	PacketForwardData = "ForwardData"
	PacketError       = "Error"
)

// Packet is the tagged union of every message exchanged with an External Convergence Layer
// module. Only the fields relevant to Type are populated; the others are left zero.
type Packet struct {
	Type string `json:"type"`

	// Register
	Name         string `json:"name,omitempty"`
	EnableBeacon bool   `json:"enable_beacon,omitempty"`
	Port         uint16 `json:"port,omitempty"`

	// Registered
	Eid    string `json:"eid,omitempty"`
	NodeId string `json:"nodeid,omitempty"`

	// Beacon; Eid is shared with Registered
	Addr            string `json:"addr,omitempty"`
	ServiceBlockB64 string `json:"service_block_b64,omitempty"`

	// ForwardData
	Src      string `json:"src,omitempty"`
	Dst      string `json:"dst,omitempty"`
	BundleId string `json:"bundle_id,omitempty"`
	DataB64  string `json:"data_b64,omitempty"`

	// Error
	Reason string `json:"reason,omitempty"`
}

func (p Packet) String() string {
	return fmt.Sprintf("ECLA Packet(%s)", p.Type)
}

func newRegisteredPacket(eid, nodeId string) Packet {
	return Packet{Type: PacketRegistered, Eid: eid, NodeId: nodeId}
}

func newErrorPacket(reason string) Packet {
	return Packet{Type: PacketError, Reason: reason}
}

func newForwardDataPacket(src, dst, bundleId, dataB64 string) Packet {
	return Packet{Type: PacketForwardData, Src: src, Dst: dst, BundleId: bundleId, DataB64: dataB64}
}

// marshalPacket encodes a Packet as a single line of JSON, as used by both the WebSocket and
// the length-delimited TCP transport.
func marshalPacket(p Packet) ([]byte, error) {
	return json.Marshal(p)
}

func unmarshalPacket(data []byte) (p Packet, err error) {
	err = json.Unmarshal(data, &p)
	return
}
