// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

// cancelMarker is subtracted from a registration's state word, exactly once,
// when cancellation begins. The word encodes two quantities so they can be
// updated with a single atomic operation: positive values are the in-flight
// count (not canceled); after the subtraction the word is
// in-flight - cancelMarker, which is negative; the terminal
// quiescent-canceled state is exactly -cancelMarker.
const cancelMarker = 0x10000

// Admission verdicts, returned by registration.admit.
const (
	// admitOK: the caller incremented the in-flight count and must run the
	// callback, then depart.
	admitOK = 0
	// admitGone: canceled and nobody in flight; the caller is the last
	// observer and must unlink (and may free) the registration.
	admitGone = -1
	// admitBusy: canceled but other goroutines are still in flight; skip,
	// and leave the unlinking to a later trigger pass.
	admitBusy = 1
)

type (
	// registration is one callback admitted to a server's list, one per
	// Register call. Once linked it is reachable by any concurrent trigger
	// until it has been marked canceled, observed quiescent, and unlinked.
	registration[T EventType] struct {
		callback func(T)
		// busy is the client's serializer, or nil for direct delivery.
		busy *BusyInterface
		// next threads the server's intrusive singly-linked list; guarded by
		// the server's list mutex.
		next *registration[T]
		// quiesced is closed by the final departing goroutine after cancel
		// has run, i.e. when state reaches -cancelMarker. Closing a channel
		// has no lost-wakeup window, unlike a condvar notify.
		quiesced chan struct{}
		logger   *logiface.Logger[logiface.Event]
		id       uint64
		state    atomic.Int32
		// silent suppresses per-delivery log lines for high-frequency
		// registrations.
		silent bool
	}

	// queuedEvent is a deferred (registration, payload) pair, heap-allocated
	// on the enqueue path and dropped by whichever goroutine dequeues it.
	// Its registration pointer keeps the node reachable for replay even if
	// cancellation races the enqueue.
	queuedEvent[T EventType] struct {
		reg  *registration[T]
		data T
	}
)

// admit authorizes the caller to invoke the callback, unless the
// registration has been canceled. It never modifies a negative state word,
// so once cancellation begins the in-flight count can only fall.
func (x *registration[T]) admit() int {
	for {
		s := x.state.Load()
		if s < 0 {
			if s == -cancelMarker {
				return admitGone
			}
			return admitBusy
		}
		if x.state.CompareAndSwap(s, s+1) {
			return admitOK
		}
	}
}

// depart is the matching decrement for a successful admit. The goroutine
// that moves the word to -cancelMarker was the last one in flight after
// cancel ran, and wakes the canceller.
//
// The channel is read before the decrement: once the terminal state is
// observable a trigger may unlink and recycle the node, so no field may be
// touched afterwards.
func (x *registration[T]) depart() {
	quiesced := x.quiesced
	if x.state.Add(-1) == -cancelMarker {
		close(quiesced)
	}
}

// cancel makes admission impossible, then blocks until every goroutine that
// was already admitted has departed. On return no callback invocation on
// this registration is possible and none is still executing.
//
// Every field is read up front, for the same reason as depart: after the
// subtraction the node may reach the terminal state and be recycled at any
// moment.
func (x *registration[T]) cancel() {
	logger, id, quiesced := x.logger, x.id, x.quiesced
	if x.state.Add(-cancelMarker) == -cancelMarker {
		// Nobody in flight; terminal state reached in one step.
		logger.Debug().
			Uint64(`registration`, id).
			Log(`canceled`)
		return
	}
	logger.Debug().
		Uint64(`registration`, id).
		Log(`cancel waiting for in-flight callbacks`)
	<-quiesced
	logger.Debug().
		Uint64(`registration`, id).
		Log(`canceled`)
}

func (x *registration[T]) isCanceled() bool {
	return x.state.Load() == -cancelMarker
}

// deliver runs the callback for one admitted trigger. Without a busy
// interface the callback runs inline, on the triggering goroutine. With one,
// the callback runs inline only if the client was idle; otherwise the event
// is queued for replay and the triggering goroutine leaves immediately.
// Either way the caller still departs afterwards: a queued event re-runs
// admission when it replays.
func (x *registration[T]) deliver(data T) {
	if x.busy == nil {
		if !x.silent {
			x.logger.Trace().
				Uint64(`registration`, x.id).
				Log(`delivering event`)
		}
		x.callback(data)
		return
	}
	if x.busy.setBusy() {
		// Leave (and drain) even if the callback panics.
		defer x.busy.leaveAndDrain()
		if !x.silent {
			x.logger.Trace().
				Uint64(`registration`, x.id).
				Log(`delivering event`)
		}
		x.callback(data)
		return
	}
	if !x.silent {
		x.logger.Debug().
			Uint64(`registration`, x.id).
			Log(`client busy, deferring event`)
	}
	x.busy.push(&queuedEvent[T]{reg: x, data: data})
	x.busy.leaveAndDrain()
}

// rehandle replays a deferred event inside the busy interface's exclusive
// slot. Replay re-runs the admission protocol: a replay that admits before
// cancellation's subtraction holds the canceller in its wait until depart; a
// stale event whose registration was canceled while queued is dropped.
func (x *queuedEvent[T]) rehandle() {
	r := x.reg
	if r.admit() != admitOK {
		if !r.silent {
			r.logger.Debug().
				Uint64(`registration`, r.id).
				Log(`dropping deferred event for canceled registration`)
		}
		return
	}
	defer r.depart()
	if !r.silent {
		r.logger.Trace().
			Uint64(`registration`, r.id).
			Log(`replaying deferred event`)
	}
	r.callback(x.data)
}
