// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MessageRejectionReason is the one-octet reason code for a MSG_REJECT message.
type MessageRejectionReason uint8

const (
	// ReasonUnknown indicates the rejected message's type is unknown to the receiver.
	ReasonUnknown MessageRejectionReason = 0x01

	// ReasonUnsupported indicates the rejected message's type is known, but unsupported.
	ReasonUnsupported MessageRejectionReason = 0x02

	// ReasonUnexpected indicates the rejected message was not expected in this session's current state.
	ReasonUnexpected MessageRejectionReason = 0x03
)

// MSG_REJECT is the Message Header code for a Message Rejection Message.
const MSG_REJECT uint8 = 0x06

// MessageRejectionMessage is the MSG_REJECT message, used to reject a previously received message.
type MessageRejectionMessage struct {
	ReasonCode      MessageRejectionReason
	RejectedMsgType uint8
}

// NewMessageRejectionMessage creates a new MessageRejectionMessage with given fields.
func NewMessageRejectionMessage(reason MessageRejectionReason, rejectedType uint8) *MessageRejectionMessage {
	return &MessageRejectionMessage{
		ReasonCode:      reason,
		RejectedMsgType: rejectedType,
	}
}

func (mrm MessageRejectionMessage) String() string {
	return fmt.Sprintf("MSG_REJECT(Reason Code=%d, Rejected Message Type=%d)", mrm.ReasonCode, mrm.RejectedMsgType)
}

func (mrm MessageRejectionMessage) Marshal(w io.Writer) error {
	var fields = []interface{}{MSG_REJECT, mrm}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	return nil
}

func (mrm *MessageRejectionMessage) Unmarshal(r io.Reader) error {
	var messageHeader uint8
	if err := binary.Read(r, binary.BigEndian, &messageHeader); err != nil {
		return err
	} else if messageHeader != MSG_REJECT {
		return fmt.Errorf("MSG_REJECT's Message Header is wrong: %d instead of %d", messageHeader, MSG_REJECT)
	}

	return binary.Read(r, binary.BigEndian, mrm)
}
