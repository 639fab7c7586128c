// SPDX-FileCopyrightText: 2019 Markus Sommer
// SPDX-FileCopyrightText: 2019, 2020 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package routing

import (
	"github.com/dtn7/dtn7-go/pkg/cla"
)

// routerCmd is a closure executed by the RouterActor's single goroutine, serializing every access
// to the wrapped Algorithm.
type routerCmd func()

// RouterActor wraps any Algorithm behind a single command channel, so the Algorithm is only ever
// accessed from its own goroutine. This mirrors the router contract of an actor with a command
// channel for SenderForBundle/Notify/Shutdown requests: every exported call on a RouterActor is a
// request enqueued on that channel rather than a direct, concurrently-reentrant method call.
type RouterActor struct {
	algorithm Algorithm

	cmds    chan routerCmd
	stopSyn chan struct{}
	stopAck chan struct{}
}

// Algorithm returns the wrapped Algorithm. It is only safe to call this for purposes that do not
// re-enter the Algorithm's routing-decision methods outside of the command channel, e.g. mounting
// an HTTP handler exposed by the Algorithm itself; the field is set once at construction and never
// written again.
func (ra *RouterActor) Algorithm() Algorithm {
	return ra.algorithm
}

// NewRouterActor wraps the given Algorithm, starting its command-processing goroutine.
func NewRouterActor(algorithm Algorithm) *RouterActor {
	ra := &RouterActor{
		algorithm: algorithm,

		cmds:    make(chan routerCmd),
		stopSyn: make(chan struct{}),
		stopAck: make(chan struct{}),
	}

	go ra.run()

	return ra
}

func (ra *RouterActor) run() {
	for {
		select {
		case <-ra.stopSyn:
			close(ra.stopAck)
			return

		case cmd := <-ra.cmds:
			cmd()
		}
	}
}

// do enqueues cmd on the command channel and blocks until it has run.
func (ra *RouterActor) do(cmd func()) {
	done := make(chan struct{})
	ra.cmds <- func() {
		cmd()
		close(done)
	}
	<-done
}

// NotifyNewBundle implements Algorithm, serialized through the command channel.
func (ra *RouterActor) NotifyNewBundle(descriptor BundleDescriptor) {
	ra.do(func() { ra.algorithm.NotifyNewBundle(descriptor) })
}

// DispatchingAllowed implements Algorithm, serialized through the command channel.
func (ra *RouterActor) DispatchingAllowed(descriptor BundleDescriptor) (allowed bool) {
	ra.do(func() { allowed = ra.algorithm.DispatchingAllowed(descriptor) })
	return
}

// SenderForBundle implements Algorithm, serialized through the command channel.
func (ra *RouterActor) SenderForBundle(descriptor BundleDescriptor) (sender []cla.ConvergenceSender, del bool) {
	ra.do(func() { sender, del = ra.algorithm.SenderForBundle(descriptor) })
	return
}

// ReportFailure implements Algorithm, serialized through the command channel.
func (ra *RouterActor) ReportFailure(descriptor BundleDescriptor, sender cla.ConvergenceSender) {
	ra.do(func() { ra.algorithm.ReportFailure(descriptor, sender) })
}

// ReportPeerAppeared implements Algorithm, serialized through the command channel.
func (ra *RouterActor) ReportPeerAppeared(peer cla.Convergence) {
	ra.do(func() { ra.algorithm.ReportPeerAppeared(peer) })
}

// ReportPeerDisappeared implements Algorithm, serialized through the command channel.
func (ra *RouterActor) ReportPeerDisappeared(peer cla.Convergence) {
	ra.do(func() { ra.algorithm.ReportPeerDisappeared(peer) })
}

// Shutdown stops the RouterActor's goroutine. The wrapped Algorithm receives no further calls
// afterwards.
func (ra *RouterActor) Shutdown() {
	close(ra.stopSyn)
	<-ra.stopAck
}

func (ra *RouterActor) String() string {
	return "RouterActor"
}
