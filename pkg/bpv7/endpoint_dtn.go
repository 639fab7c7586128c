// SPDX-FileCopyrightText: 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package bpv7

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/dtn7/cboring"
)

const (
	dtnEndpointSchemeName    string = "dtn"
	dtnEndpointSchemeNo      uint64 = 1
	dtnEndpointNoneAuthority string = "none"
)

// dtnEndpointUriRe matches the "dtn://node-name/demux..." form of a dtn URI. The node name is
// restricted to alphanumeric characters plus ".", "-" and "_"; the demux may be anything, including
// further slashes.
var dtnEndpointUriRe = regexp.MustCompile(`^dtn://([[:alnum:].\-_]+)/(.*)$`)

// DtnEndpoint describes the dtn URI for EndpointIDs, as defined in ietf-dtn-bpbis.
//
// A DtnEndpoint is either the null endpoint, "dtn:none", or addresses a node by name with an
// optional demultiplexing string, "dtn://node-name/demux".
type DtnEndpoint struct {
	IsDtnNone bool
	NodeName  string
	Demux     string
}

// NewDtnEndpoint from an URI with the dtn scheme.
func NewDtnEndpoint(uri string) (e EndpointType, err error) {
	if uri == dtnEndpointSchemeName+":"+dtnEndpointNoneAuthority {
		e = DtnEndpoint{IsDtnNone: true}
		return
	}

	matches := dtnEndpointUriRe.FindStringSubmatch(uri)
	if matches == nil {
		err = fmt.Errorf("uri does not match a dtn endpoint")
		return
	}

	e = DtnEndpoint{NodeName: matches[1], Demux: matches[2]}
	return
}

// SchemeName is "dtn" for DtnEndpoints.
func (_ DtnEndpoint) SchemeName() string {
	return dtnEndpointSchemeName
}

// SchemeNo is 1 for DtnEndpoints.
func (_ DtnEndpoint) SchemeNo() uint64 {
	return dtnEndpointSchemeNo
}

// Authority is the authority part of the Endpoint URI, e.g., "foo" for "dtn://foo/bar".
func (e DtnEndpoint) Authority() string {
	if e.IsDtnNone {
		return dtnEndpointNoneAuthority
	}

	return e.NodeName
}

// Path is the path part of the Endpoint URI, e.g., "/bar" for "dtn://foo/bar".
func (e DtnEndpoint) Path() string {
	if e.IsDtnNone {
		return "/"
	}

	return "/" + e.Demux
}

// IsSingleton checks if this Endpoint represents a singleton.
//
// The null endpoint is never a singleton. A group endpoint's demux starts with "~".
func (e DtnEndpoint) IsSingleton() bool {
	if e.IsDtnNone {
		return false
	}

	return !strings.HasPrefix(e.Demux, "~")
}

// CheckValid returns an array of errors for incorrect data.
func (_ DtnEndpoint) CheckValid() error {
	return nil
}

func (e DtnEndpoint) String() string {
	if e.IsDtnNone {
		return dtnEndpointSchemeName + ":" + dtnEndpointNoneAuthority
	}

	return fmt.Sprintf("%s://%s/%s", dtnEndpointSchemeName, e.NodeName, e.Demux)
}

// MarshalCbor writes this DtnEndpoint's CBOR representation.
func (e DtnEndpoint) MarshalCbor(w io.Writer) error {
	if e.IsDtnNone {
		return cboring.WriteUInt(0, w)
	}

	ssp := fmt.Sprintf("//%s/%s", e.NodeName, e.Demux)
	return cboring.WriteTextString(ssp, w)
}

// UnmarshalCbor reads a CBOR representation.
func (e *DtnEndpoint) UnmarshalCbor(r io.Reader) error {
	m, n, err := cboring.ReadMajors(r)
	if err != nil {
		return err
	}

	switch m {
	case cboring.UInt:
		// dtn:none
		*e = DtnEndpoint{IsDtnNone: true}

	case cboring.TextString:
		raw, rawErr := cboring.ReadRawBytes(n, r)
		if rawErr != nil {
			return rawErr
		}

		ssp := strings.TrimPrefix(string(raw), "//")
		parts := strings.SplitN(ssp, "/", 2)

		var demux string
		if len(parts) == 2 {
			demux = parts[1]
		}

		*e = DtnEndpoint{NodeName: parts[0], Demux: demux}

	default:
		return fmt.Errorf("DtnEndpoint: wrong major type 0x%X for unmarshalling", m)
	}

	return nil
}

// DtnNone returns the null endpoint "dtn:none".
func DtnNone() EndpointID {
	return EndpointID{DtnEndpoint{IsDtnNone: true}}
}
