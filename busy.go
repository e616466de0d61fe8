// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"sync"
	"sync/atomic"
)

type (
	// BusyInterface serializes callbacks for a single client, across every
	// registration that references it, without ever blocking the triggering
	// goroutine. It is a non-blocking critical area: a goroutine that finds
	// the client busy queues its event and leaves immediately, and the
	// goroutine that was inside replays the queue on exit.
	//
	// The zero value is ready for use. A BusyInterface must not be copied
	// after first use, and must outlive every registration that references
	// it, which is enforced by the cancellation contract: call
	// [Handle.Cancel] on every handle registered against it before
	// destroying it.
	//
	// Within one BusyInterface, callback invocations are totally ordered;
	// deferred events replay in FIFO order. Across distinct BusyInterfaces
	// there is no ordering.
	BusyInterface struct {
		busyDepth atomic.Uint32

		// mu guards queue structure only. It is held for O(1) push/pop work,
		// never across a callback.
		mu    sync.Mutex
		queue []queued
	}

	// queued is the erased form of a deferred (registration, payload) pair.
	// A single BusyInterface serves registrations of many event types; the
	// concrete type is recovered by dynamic dispatch on rehandle.
	queued interface {
		rehandle()
	}
)

// SetBusy marks the client busy, returning true if the caller acquired
// exclusive access (the client was idle). Every SetBusy must be balanced by
// exactly one [BusyInterface.UnsetBusy].
//
// Use this around non-callback critical work on the client, to defer event
// delivery for the duration.
func (x *BusyInterface) SetBusy() bool {
	return x.setBusy()
}

// UnsetBusy reverses a [BusyInterface.SetBusy]. If the caller was the last
// goroutine inside, any events deferred in the meantime are replayed before
// UnsetBusy returns.
//
// Calling UnsetBusy more often than SetBusy is a programming error, and will
// panic.
func (x *BusyInterface) UnsetBusy() {
	x.leaveAndDrain()
}

func (x *BusyInterface) setBusy() bool {
	return x.busyDepth.Add(1) == 1
}

func (x *BusyInterface) unsetBusy() bool {
	v := x.busyDepth.Add(^uint32(0))
	if v == ^uint32(0) {
		panic(`events: UnsetBusy without matching SetBusy`)
	}
	return v == 0
}

func (x *BusyInterface) push(ev queued) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.queue = append(x.queue, ev)
}

func (x *BusyInterface) pop() queued {
	x.mu.Lock()
	defer x.mu.Unlock()
	if len(x.queue) == 0 {
		return nil
	}
	ev := x.queue[0]
	x.queue[0] = nil
	x.queue = x.queue[1:]
	return ev
}

// leaveAndDrain exits the non-blocking critical area, and, if the caller was
// the last goroutine inside, replays deferred events until either the queue
// is empty or another goroutine takes over the exclusive slot. Liveness: an
// enqueuer decrements busyDepth only after pushing, so at least one
// goroutine always observes the non-empty queue on its way out and is
// responsible for it.
func (x *BusyInterface) leaveAndDrain() {
	for x.unsetBusy() {
		ev := x.pop()
		if ev == nil {
			return
		}
		if x.setBusy() {
			x.replay(ev)
		} else {
			// Another goroutine jumped in ahead; it inherits the queue.
			x.push(ev)
		}
	}
}

// replay runs one deferred event inside the exclusive slot. If the event's
// callback panics, the slot is released (without draining) before the panic
// propagates, so the client is not stalled forever.
func (x *BusyInterface) replay(ev queued) {
	defer func() {
		if p := recover(); p != nil {
			x.unsetBusy()
			panic(p)
		}
	}()
	ev.rehandle()
}
