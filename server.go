// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"sync"
	"sync/atomic"

	"github.com/joeycumines/logiface"
)

type (
	// EventType constrains event payload types. Payloads are copied by value
	// into deferred events, so they must be safe to copy.
	EventType interface {
		// OneShot reports the delivery mode for this event type: when true,
		// a single [Server.Trigger] fires every current callback once, then
		// atomically empties the registration list. When false,
		// registrations persist until canceled.
		//
		// The result must be constant for a given type.
		OneShot() bool
	}

	// Server dispatches events of a single type to registered callbacks.
	// The zero value is ready for use; use [NewServer] to configure logging
	// or node pooling. A Server must not be copied after first use.
	//
	// Safe to destroy (drop) only once every [Handle] registered against it
	// has been canceled and no Trigger is in progress.
	Server[T EventType] struct {
		logger *logiface.Logger[logiface.Event]
		pool   NodePool
		lastID atomic.Uint64

		// mu guards list structure only (head and the next pointers of
		// linked nodes). It is never held across a callback, or across any
		// busy interface operation.
		mu   sync.Mutex
		head *registration[T]
	}
)

// NewServer returns a configured Server. The zero value of [Server] is
// equivalent to NewServer with no options.
func NewServer[T EventType](opts ...ServerOption) *Server[T] {
	cfg := resolveServerOptions(opts)
	var x Server[T]
	x.logger = cfg.logger
	x.pool = cfg.pool
	return &x
}

// Register admits callback to the server's list, and returns the handle that
// controls its cancellation. The callback will receive every subsequently
// triggered event, until the handle is canceled (or, for one-shot event
// types, until the next trigger consumes the list).
//
// With [WithBusyInterface], delivery is serialized with every other
// registration sharing the same [BusyInterface]; without it, the callback
// may be invoked by many goroutines simultaneously and must be thread-safe.
//
// A nil callback, or a nil server, panics.
func (x *Server[T]) Register(callback func(T), opts ...RegisterOption) Handle[T] {
	if x == nil {
		panic(`events: nil server`)
	}
	if callback == nil {
		panic(`events: nil callback`)
	}
	cfg := resolveRegisterOptions(opts)

	r := x.allocate()
	r.callback = callback
	r.busy = cfg.busy
	r.silent = cfg.silent
	r.quiesced = make(chan struct{})
	r.logger = x.logger
	r.id = x.lastID.Add(1)

	// Splice at the head: no existing node is touched, so a concurrent
	// trigger sees a consistent list either with or without the new node.
	x.mu.Lock()
	r.next = x.head
	x.head = r
	x.mu.Unlock()

	x.logger.Debug().
		Uint64(`registration`, r.id).
		Bool(`busy_interface`, r.busy != nil).
		Log(`registered`)

	return Handle[T]{reg: r}
}

// Trigger delivers data to every currently-registered callback. It may be
// called from any number of goroutines concurrently. No mutex is held across
// any callback; a goroutine triggering a server never waits on a callback it
// did not itself invoke.
//
// If a callback panics, the panic propagates to the caller of Trigger after
// the departing cleanup has run; remaining registrations are skipped.
func (x *Server[T]) Trigger(data T) {
	if data.OneShot() {
		x.triggerOneShot(data)
	} else {
		x.triggerPersistent(data)
	}
}

// triggerPersistent walks the list with a pointer-to-pointer cursor, under
// the list mutex, releasing it around each callback.
func (x *Server[T]) triggerPersistent(data T) {
	x.mu.Lock()
	defer x.mu.Unlock()
	next := &x.head
	for {
		var r *registration[T]
	admit:
		for {
			r = *next
			if r == nil {
				return
			}
			switch r.admit() {
			case admitOK:
				break admit
			case admitGone:
				// Canceled and quiescent: this trigger is the last
				// observer; unlink in place without advancing.
				*next = r.next
				x.recycle(r)
			default: // admitBusy
				// Canceled but still in flight elsewhere; a later pass
				// unlinks it.
				next = &r.next
			}
		}
		x.mu.Unlock()
		func() {
			// Re-lock before departing: while this goroutine is in flight,
			// no other trigger can observe admitGone for r, so r stays
			// linked; once we depart, unlinking requires the mutex, which
			// we hold, so r.next stays valid for the continued walk. The
			// defer also keeps the mutex/depart pairing intact if the
			// callback panics.
			defer func() {
				x.mu.Lock()
				r.depart()
			}()
			r.deliver(data)
		}()
		next = &r.next
	}
}

// triggerOneShot detaches the entire list under the mutex, then walks it
// lock-free. Detached nodes are unreachable from any other trigger, so the
// only remaining race is with cancellation, which the admission protocol
// covers.
func (x *Server[T]) triggerOneShot(data T) {
	x.mu.Lock()
	head := x.head
	x.head = nil
	x.mu.Unlock()

	if head == nil {
		return
	}
	x.logger.Debug().Log(`one-shot trigger consuming registration list`)

	for r := head; r != nil; r = r.next {
		if r.admit() != admitOK {
			continue
		}
		func() {
			defer r.depart()
			r.deliver(data)
		}()
	}
	// The nodes are unreachable and nothing can admit them again; they are
	// dropped, not pooled, since a live Handle may still point at one (see
	// Handle.Cancel).
}

func (x *Server[T]) allocate() *registration[T] {
	if x.pool != nil {
		if r, _ := x.pool.Get().(*registration[T]); r != nil {
			return r
		}
	}
	return new(registration[T])
}

// recycle returns an unlinked, quiescent node to the pool. Only nodes that
// never had a busy interface are pooled: a deferred event may hold a
// reference to a busy node until its (dropped) replay, arbitrarily later,
// and replaying into a reused node would misroute the event. The Handle was
// nulled by Cancel before the terminal state became observable, so no other
// reference remains.
func (x *Server[T]) recycle(r *registration[T]) {
	if x.pool == nil || r.busy != nil {
		return
	}
	*r = registration[T]{}
	x.pool.Put(r)
}
