// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SessionTerminationFlags are the one-octet flags of a SESS_TERM message.
type SessionTerminationFlags uint8

const (
	// TerminationReply marks a SESS_TERM message as a reply to a previously received one.
	TerminationReply SessionTerminationFlags = 0x01
)

// SessionTerminationCode is the one-octet reason code for a SESS_TERM message.
type SessionTerminationCode uint8

const (
	// TerminationUnknown indicates an unknown or unspecified reason.
	TerminationUnknown SessionTerminationCode = 0x00

	// TerminationIdleTimeout indicates a session was closed due to idleness.
	TerminationIdleTimeout SessionTerminationCode = 0x01

	// TerminationVersionMismatch indicates a version mismatch of the TCPCL protocol.
	TerminationVersionMismatch SessionTerminationCode = 0x02

	// TerminationBusy indicates the node has too many sessions already.
	TerminationBusy SessionTerminationCode = 0x03

	// TerminationContactFailure indicates a contact header parsing error.
	TerminationContactFailure SessionTerminationCode = 0x04

	// TerminationResourceExhaustion indicates local resource exhaustion.
	TerminationResourceExhaustion SessionTerminationCode = 0x05
)

func (stc SessionTerminationCode) String() string {
	switch stc {
	case TerminationUnknown:
		return "Unknown"
	case TerminationIdleTimeout:
		return "Idle Timeout"
	case TerminationVersionMismatch:
		return "Version Mismatch"
	case TerminationBusy:
		return "Busy"
	case TerminationContactFailure:
		return "Contact Failure"
	case TerminationResourceExhaustion:
		return "Resource Exhaustion"
	default:
		return "INVALID"
	}
}

// IsValid checks if this SessionTerminationCode represents a valid value.
func (stc SessionTerminationCode) IsValid() bool {
	return stc.String() != "INVALID"
}

// SESS_TERM is the Message Header code for a Session Termination Message.
const SESS_TERM uint8 = 0x05

// SessionTerminationMessage is the SESS_TERM message, signaling the end of a session.
type SessionTerminationMessage struct {
	Flags      SessionTerminationFlags
	ReasonCode SessionTerminationCode
}

// NewSessionTerminationMessage creates a new SessionTerminationMessage with given fields.
func NewSessionTerminationMessage(flags SessionTerminationFlags, reason SessionTerminationCode) *SessionTerminationMessage {
	return &SessionTerminationMessage{
		Flags:      flags,
		ReasonCode: reason,
	}
}

func (stm SessionTerminationMessage) String() string {
	return fmt.Sprintf("SESS_TERM(Flags=%d, Reason Code=%v)", stm.Flags, stm.ReasonCode)
}

func (stm SessionTerminationMessage) Marshal(w io.Writer) error {
	var fields = []interface{}{SESS_TERM, stm}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	return nil
}

func (stm *SessionTerminationMessage) Unmarshal(r io.Reader) error {
	var messageHeader uint8
	if err := binary.Read(r, binary.BigEndian, &messageHeader); err != nil {
		return err
	} else if messageHeader != SESS_TERM {
		return fmt.Errorf("SESS_TERM's Message Header is wrong: %d instead of %d", messageHeader, SESS_TERM)
	}

	if err := binary.Read(r, binary.BigEndian, stm); err != nil {
		return err
	}

	if !stm.ReasonCode.IsValid() {
		return fmt.Errorf("SESS_TERM's Reason Code %x is invalid", stm.ReasonCode)
	}

	return nil
}
