// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package events provides multi-producer / multi-consumer event dispatch,
// with per-client callback serialization that never blocks the triggering
// thread.
//
// # Architecture
//
// Each event type gets its own [Server], against which callbacks are
// registered. Any number of goroutines may call [Server.Trigger]
// concurrently; every fired event is delivered to every currently-registered
// callback, on the triggering goroutine. There is no internal scheduler and
// no event loop.
//
// Delivery is either persistent (the callback stays registered until its
// [Handle] is canceled) or one-shot (a single trigger fires all current
// callbacks once, then atomically empties the registration list). The mode
// is a property of the event type, via [EventType.OneShot].
//
// A [BusyInterface] may be shared by any number of registrations, across any
// number of servers, to guarantee that at most one callback runs "on that
// client" at any moment. It is a non-blocking critical area: a triggering
// goroutine that finds the client busy queues the event and leaves, and the
// goroutine that was inside replays the queue on its way out. No mutex is
// ever held across a callback.
//
// # Cancellation
//
// [Handle.Cancel] stops future deliveries and then blocks until every
// in-flight callback for that registration has returned, including deferred
// replays that were already admitted. When Cancel returns, the caller may
// safely destroy anything the callback closed over, including the
// BusyInterface. Cancel is bounded only by the longest-running callback; no
// timeout is offered.
//
// # Thread Safety
//
//   - [Server.Register] and [Server.Trigger] are safe to call from any
//     goroutine
//   - [BusyInterface.SetBusy] and [BusyInterface.UnsetBusy] are safe to call
//     from any goroutine
//   - [Handle] is NOT safe for concurrent use; it is owned by whoever holds
//     it, and Cancel is called by a single goroutine
//   - a registration without a BusyInterface may have its callback invoked
//     by many goroutines simultaneously; such callbacks must be thread-safe
//
// # Usage
//
//	type Tick struct{ N int }
//
//	func (Tick) OneShot() bool { return false }
//
//	var server events.Server[Tick]
//
//	var client struct {
//	    bi     events.BusyInterface
//	    handle events.Handle[Tick]
//	}
//	client.handle = server.Register(func(ev Tick) {
//	    // at most one callback at a time, via client.bi
//	}, events.WithBusyInterface(&client.bi))
//
//	server.Trigger(Tick{N: 42})
//
//	// Cancel before destroying anything the callback needs.
//	client.handle.Cancel()
package events
