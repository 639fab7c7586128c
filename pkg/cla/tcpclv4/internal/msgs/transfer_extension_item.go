// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import (
	"bytes"
	"encoding/binary"
	"io"
)

// TransferExtensionItemFlags are the one-octet flags of a Transfer Extension Item.
type TransferExtensionItemFlags uint8

const (
	// ExtensionCritical marks an item the receiver MUST understand or refuse the whole transfer.
	ExtensionCritical TransferExtensionItemFlags = 0x01
)

// TransferExtensionItemType identifies the kind of a TransferExtensionItem's payload.
type TransferExtensionItemType uint16

const (
	// ExtensionBundleID carries a bundle's canonical ID string, letting a receiver recognize and refuse
	// an already-present bundle before the remainder of its data is transferred.
	ExtensionBundleID TransferExtensionItemType = 0x01
)

// TransferExtensionItem is a single Transfer Extension Item, only meaningful on a START XFER_SEGMENT.
type TransferExtensionItem struct {
	Flags    TransferExtensionItemFlags
	ItemType TransferExtensionItemType
	Data     []byte
}

// NewBundleIdExtensionItem wraps a bundle ID string as a BundleID Transfer Extension Item.
func NewBundleIdExtensionItem(bundleId string) TransferExtensionItem {
	return TransferExtensionItem{
		ItemType: ExtensionBundleID,
		Data:     []byte(bundleId),
	}
}

// BundleId returns the carried bundle ID string, if this item is a BundleID extension.
func (item TransferExtensionItem) BundleId() (id string, ok bool) {
	if item.ItemType != ExtensionBundleID {
		return
	}
	return string(item.Data), true
}

func (item TransferExtensionItem) Marshal(w io.Writer) error {
	var fields = []interface{}{item.Flags, item.ItemType, uint16(len(item.Data))}

	for _, field := range fields {
		if err := binary.Write(w, binary.BigEndian, field); err != nil {
			return err
		}
	}

	_, err := w.Write(item.Data)
	return err
}

func (item *TransferExtensionItem) Unmarshal(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &item.Flags); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &item.ItemType); err != nil {
		return err
	}

	var dataLen uint16
	if err := binary.Read(r, binary.BigEndian, &dataLen); err != nil {
		return err
	}

	item.Data = make([]byte, dataLen)
	_, err := io.ReadFull(r, item.Data)
	return err
}

// marshalTransferExtensionItems encodes items back-to-back, as carried in a XFER_SEGMENT's
// Transfer Extension Item field.
func marshalTransferExtensionItems(items []TransferExtensionItem) ([]byte, error) {
	if len(items) == 0 {
		return nil, nil
	}

	buf := new(bytes.Buffer)
	for _, item := range items {
		if err := item.Marshal(buf); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// unmarshalTransferExtensionItems decodes a back-to-back sequence of Transfer Extension Items.
func unmarshalTransferExtensionItems(data []byte) (items []TransferExtensionItem, err error) {
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var item TransferExtensionItem
		if err = item.Unmarshal(r); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return
}
