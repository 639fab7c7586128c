// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// SegmentFlags are the one-octet flags of a XFER_SEGMENT message.
type SegmentFlags uint8

const (
	// SegmentEnd marks the last segment of a transfer.
	SegmentEnd SegmentFlags = 0x01

	// SegmentStart marks the first segment of a transfer.
	SegmentStart SegmentFlags = 0x02
)

// XFER_SEGMENT is the Message Header code for a Data Transmission Message.
const XFER_SEGMENT uint8 = 0x01

// DataTransmissionMessage is the XFER_SEGMENT message, carrying a chunk of a bundle's data.
type DataTransmissionMessage struct {
	Flags      SegmentFlags
	TransferId uint64
	Data       []byte

	// Extensions are only meaningful on a message carrying the SegmentStart flag.
	Extensions []TransferExtensionItem
}

// NewDataTransmissionMessage creates a new DataTransmissionMessage with given fields.
func NewDataTransmissionMessage(flags SegmentFlags, tid uint64, data []byte) *DataTransmissionMessage {
	return &DataTransmissionMessage{
		Flags:      flags,
		TransferId: tid,
		Data:       data,
	}
}

// BundleId returns the BundleID extension item's payload, if this message carries one.
func (dtm DataTransmissionMessage) BundleId() (id string, ok bool) {
	for _, item := range dtm.Extensions {
		if id, ok = item.BundleId(); ok {
			return
		}
	}
	return
}

func (dtm DataTransmissionMessage) String() string {
	return fmt.Sprintf("XFER_SEGMENT(Flags=%d, Transfer iD=%d, %d bytes)", dtm.Flags, dtm.TransferId, len(dtm.Data))
}

func (dtm DataTransmissionMessage) Marshal(w io.Writer) error {
	var extData []byte
	if dtm.Flags&SegmentStart != 0 {
		var err error
		if extData, err = marshalTransferExtensionItems(dtm.Extensions); err != nil {
			return err
		}
	}

	var fields = []interface{}{
		XFER_SEGMENT, dtm.Flags, dtm.TransferId,
		uint32(len(extData)),
	}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	if len(extData) > 0 {
		if _, err := w.Write(extData); err != nil {
			return err
		}
	}

	if err := binary.Write(w, binary.BigEndian, uint64(len(dtm.Data))); err != nil {
		return err
	}

	if _, err := w.Write(dtm.Data); err != nil {
		return err
	}

	return nil
}

func (dtm *DataTransmissionMessage) Unmarshal(r io.Reader) error {
	var messageHeader uint8
	if err := binary.Read(r, binary.BigEndian, &messageHeader); err != nil {
		return err
	} else if messageHeader != XFER_SEGMENT {
		return fmt.Errorf("XFER_SEGMENT's Message Header is wrong: %d instead of %d", messageHeader, XFER_SEGMENT)
	}

	if err := binary.Read(r, binary.BigEndian, &dtm.Flags); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &dtm.TransferId); err != nil {
		return err
	}

	var extLen uint32
	if err := binary.Read(r, binary.BigEndian, &extLen); err != nil {
		return err
	}
	if extLen > 0 {
		extData := make([]byte, extLen)
		if _, err := io.ReadFull(r, extData); err != nil {
			return err
		}

		items, err := unmarshalTransferExtensionItems(extData)
		if err != nil {
			return err
		}
		dtm.Extensions = items
	}

	var dataLen uint64
	if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return err
	}

	if dataLen > 0 {
		dtm.Data = make([]byte, dataLen)
		if _, err := io.ReadFull(r, dtm.Data); err != nil {
			return err
		}
	} else {
		dtm.Data = nil
	}

	return nil
}
