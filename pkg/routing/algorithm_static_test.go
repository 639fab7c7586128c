// SPDX-FileCopyrightText: 2019 Markus Sommer
// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"os"
	"testing"
)

func TestParseStaticRouteEntry(t *testing.T) {
	tests := []struct {
		line  string
		valid bool
	}{
		{"0 dtn://.*/ dtn://sink/ dtn://relay/", true},
		{"1 dtn://src/ dtn://.*/ dtn://relay/", true},
		{"2 [ dtn://sink/ dtn://relay/", false},  // invalid src regex
		{"3 dtn://src/ [ dtn://relay/", false},   // invalid dst regex
		{"4 dtn://src/ dtn://sink/", false},      // missing via
		{"not-a-number a b c", false},            // invalid index
	}

	for _, test := range tests {
		entry, err := parseStaticRouteEntry(test.line)
		if (err == nil) != test.valid {
			t.Errorf("%q: expected valid = %t, got err: %v", test.line, test.valid, err)
			continue
		}
		if err == nil && entry.via == "" {
			t.Errorf("%q: parsed entry has no via", test.line)
		}
	}
}

func TestReadStaticRoutes(t *testing.T) {
	f, err := os.CreateTemp("", "static-routes-*.txt")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(f.Name())

	_, _ = f.WriteString("0 dtn://.*/ dtn://sink/ dtn://relay-a/\n")
	_, _ = f.WriteString("\n")
	_, _ = f.WriteString("1 dtn://.*/ dtn://.*/ dtn://relay-b/\n")
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	entries, err := readStaticRoutes(f.Name())
	if err != nil {
		t.Fatalf("reading routes failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].via != "dtn://relay-a/" || entries[1].via != "dtn://relay-b/" {
		t.Fatalf("routes were not parsed in file order: %v", entries)
	}
}

func TestStaticRoutingDispatchingAllowed(t *testing.T) {
	sr := &StaticRouting{}
	if !sr.DispatchingAllowed(BundleDescriptor{}) {
		t.Error("static routing must always allow dispatching")
	}
}
