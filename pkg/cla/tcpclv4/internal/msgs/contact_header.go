// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// contactHeaderMagic is the fixed four-byte magic starting a ContactHeader, "dtn!".
var contactHeaderMagic = [4]byte{'d', 't', 'n', '!'}

// contactHeaderVersion is the only supported TCPCL version.
const contactHeaderVersion uint8 = 4

// ContactFlags are the one-octet flags of a ContactHeader.
type ContactFlags uint8

const (
	// ContactCanTls indicates the sender is capable of TLS.
	ContactCanTls ContactFlags = 0x01
)

// ContactHeader is the first exchange of a TCPCLv4 session, preceding any Message.
type ContactHeader struct {
	Flags ContactFlags
}

// NewContactHeader creates a new ContactHeader with given flags.
func NewContactHeader(flags ContactFlags) *ContactHeader {
	return &ContactHeader{Flags: flags}
}

func (ch ContactHeader) String() string {
	return fmt.Sprintf("ContactHeader(Flags=%d)", ch.Flags)
}

func (ch ContactHeader) Marshal(w io.Writer) error {
	if _, err := w.Write(contactHeaderMagic[:]); err != nil {
		return err
	}

	var fields = []interface{}{contactHeaderVersion, ch.Flags}
	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	return nil
}

func (ch *ContactHeader) Unmarshal(r io.Reader) error {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return err
	} else if !bytes.Equal(magic[:], contactHeaderMagic[:]) {
		return fmt.Errorf("ContactHeader's magic %x does not match %x", magic, contactHeaderMagic)
	}

	var version uint8
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return err
	} else if version != contactHeaderVersion {
		return fmt.Errorf("ContactHeader's version %d does not match %d", version, contactHeaderVersion)
	}

	return binary.Read(r, binary.BigEndian, &ch.Flags)
}
