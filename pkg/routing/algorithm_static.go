// SPDX-FileCopyrightText: 2019 Markus Sommer
// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/dtn7/dtn7-go/pkg/cla"
)

// StaticRouteConfig contains the necessary configuration data to initialize the "static" Algorithm.
type StaticRouteConfig struct {
	// Routes is the path of a file with one route entry per line, each of the form
	// "index src_pattern dst_pattern via", e.g. "0 dtn://.*/ dtn://sink/ dtn://relay/".
	Routes string
}

// staticRouteEntry is a single, ordered entry of a static routing table. Src and Dst are regular
// expressions matched against a bundle's source respectively destination endpoint ID; Via is the
// endpoint ID string of the next hop peer this entry forwards to.
type staticRouteEntry struct {
	idx uint16
	src *regexp.Regexp
	dst *regexp.Regexp
	via string
}

func (entry staticRouteEntry) String() string {
	return fmt.Sprintf("#%d: route from %s to %s via %s", entry.idx, entry.src, entry.dst, entry.via)
}

// parseStaticRouteEntry parses a single line of a routes file, "idx src_pattern dst_pattern via".
func parseStaticRouteEntry(line string) (entry staticRouteEntry, err error) {
	fields := strings.Fields(line)
	if len(fields) != 4 {
		err = fmt.Errorf("expected 4 whitespace-separated fields, got %d", len(fields))
		return
	}

	idx, idxErr := strconv.ParseUint(fields[0], 10, 16)
	if idxErr != nil {
		err = idxErr
		return
	}

	src, srcErr := regexp.Compile(fields[1])
	if srcErr != nil {
		err = srcErr
		return
	}

	dst, dstErr := regexp.Compile(fields[2])
	if dstErr != nil {
		err = dstErr
		return
	}

	entry = staticRouteEntry{idx: uint16(idx), src: src, dst: dst, via: fields[3]}
	return
}

// readStaticRoutes parses every non-empty line of the given routes file into a staticRouteEntry,
// preserving file order. The file order is the table's priority order: the first matching entry
// whose via peer is currently reachable wins.
func readStaticRoutes(path string) (entries []staticRouteEntry, err error) {
	f, openErr := os.Open(path)
	if openErr != nil {
		err = openErr
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		entry, entryErr := parseStaticRouteEntry(line)
		if entryErr != nil {
			err = fmt.Errorf("parsing static route %q: %v", line, entryErr)
			return
		}

		log.WithField("route", entry).Debug("Adding static route")
		entries = append(entries, entry)
	}
	if scanErr := scanner.Err(); scanErr != nil {
		err = scanErr
	}

	return
}

// StaticRouting is an Algorithm implementation forwarding bundles along a fixed, administrator
// supplied table of (source pattern, destination pattern, next hop) entries. It keeps no further
// per-bundle state.
type StaticRouting struct {
	c      *Core
	routes []staticRouteEntry
}

// NewStaticRouting creates a new StaticRouting Algorithm interacting with the given Core, loading
// its routing table once from conf.Routes.
func NewStaticRouting(c *Core, conf StaticRouteConfig) *StaticRouting {
	routes, err := readStaticRoutes(conf.Routes)
	if err != nil {
		log.WithFields(log.Fields{
			"file":  conf.Routes,
			"error": err,
		}).Warn("Failed to load static routes, starting with an empty table")
	}

	log.WithField("routes", len(routes)).Debug("Initialised static routing")

	return &StaticRouting{c: c, routes: routes}
}

func (sr *StaticRouting) NotifyNewBundle(_ BundleDescriptor) {}

// DispatchingAllowed always allows dispatching; whether a bundle can actually be forwarded is
// decided by SenderForBundle.
func (sr *StaticRouting) DispatchingAllowed(_ BundleDescriptor) bool {
	return true
}

// SenderForBundle walks the routing table in order. The first entry whose src/dst patterns match
// the bundle AND whose via endpoint is a currently connected peer is used; a matching entry with no
// reachable via peer is skipped in favor of the next, lower priority entry.
func (sr *StaticRouting) SenderForBundle(bp BundleDescriptor) (css []cla.ConvergenceSender, del bool) {
	bndl := bp.MustBundle()
	source := bndl.PrimaryBlock.SourceNode.String()
	destination := bndl.PrimaryBlock.Destination

	for _, entry := range sr.routes {
		if !entry.src.MatchString(source) || !entry.dst.MatchString(destination.String()) {
			continue
		}

		log.WithFields(log.Fields{
			"bundle": bp.ID(),
			"route":  entry,
		}).Debug("Static route matched, looking for a reachable via peer")

		for _, cs := range sr.c.claManager.Sender() {
			if cs.GetPeerEndpointID().String() != entry.via {
				continue
			}

			css = []cla.ConvergenceSender{cs}
			del = cs.GetPeerEndpointID().SameNode(destination)
			return
		}
	}

	log.WithField("bundle", bp.ID()).Debug("No static route with a reachable via peer found")
	return
}

func (sr *StaticRouting) ReportFailure(_ BundleDescriptor, _ cla.ConvergenceSender) {}

func (sr *StaticRouting) ReportPeerAppeared(_ cla.Convergence) {}

func (sr *StaticRouting) ReportPeerDisappeared(_ cla.Convergence) {}

func (sr *StaticRouting) String() string {
	return "static"
}
