// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SESS_INIT is the Message Header code for a Session Initialization Message.
const SESS_INIT uint8 = 0x07

// SessionInitMessage is the SESS_INIT message, negotiating session parameters.
type SessionInitMessage struct {
	KeepaliveInterval uint16
	SegmentMru        uint64
	TransferMru       uint64
	NodeId            string

	// SessionExtensionItems are not interpreted by this implementation.
	SessionExtensionItems []byte
}

// NewSessionInitMessage creates a new SessionInitMessage with given fields.
func NewSessionInitMessage(keepalive uint16, segmentMru, transferMru uint64, nodeId string) *SessionInitMessage {
	return &SessionInitMessage{
		KeepaliveInterval: keepalive,
		SegmentMru:        segmentMru,
		TransferMru:       transferMru,
		NodeId:            nodeId,
	}
}

func (sim SessionInitMessage) String() string {
	return fmt.Sprintf("SESS_INIT(Keepalive=%d, Segment MRU=%d, Transfer MRU=%d, Node iD=%s)",
		sim.KeepaliveInterval, sim.SegmentMru, sim.TransferMru, sim.NodeId)
}

func (sim SessionInitMessage) Marshal(w io.Writer) error {
	var fields = []interface{}{
		SESS_INIT, sim.KeepaliveInterval, sim.SegmentMru, sim.TransferMru,
	}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	nodeIdBytes := []byte(sim.NodeId)
	if err := binary.Write(w, binary.BigEndian, uint16(len(nodeIdBytes))); err != nil {
		return err
	}
	if _, err := w.Write(nodeIdBytes); err != nil {
		return err
	}

	if err := binary.Write(w, binary.BigEndian, uint32(len(sim.SessionExtensionItems))); err != nil {
		return err
	}
	if len(sim.SessionExtensionItems) > 0 {
		if _, err := w.Write(sim.SessionExtensionItems); err != nil {
			return err
		}
	}

	return nil
}

func (sim *SessionInitMessage) Unmarshal(r io.Reader) error {
	var messageHeader uint8
	if err := binary.Read(r, binary.BigEndian, &messageHeader); err != nil {
		return err
	} else if messageHeader != SESS_INIT {
		return fmt.Errorf("SESS_INIT's Message Header is wrong: %d instead of %d", messageHeader, SESS_INIT)
	}

	if err := binary.Read(r, binary.BigEndian, &sim.KeepaliveInterval); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &sim.SegmentMru); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &sim.TransferMru); err != nil {
		return err
	}

	var nodeIdLen uint16
	if err := binary.Read(r, binary.BigEndian, &nodeIdLen); err != nil {
		return err
	}
	nodeIdBytes := make([]byte, nodeIdLen)
	if _, err := io.ReadFull(r, nodeIdBytes); err != nil {
		return err
	}
	sim.NodeId = string(nodeIdBytes)

	var extLen uint32
	if err := binary.Read(r, binary.BigEndian, &extLen); err != nil {
		return err
	}
	if extLen > 0 {
		sim.SessionExtensionItems = make([]byte, extLen)
		if _, err := io.ReadFull(r, sim.SessionExtensionItems); err != nil {
			return err
		}
	} else {
		sim.SessionExtensionItems = nil
	}

	return nil
}
