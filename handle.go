// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

// Handle controls the cancellation of one registration, as returned by
// [Server.Register]. The zero value is a legal null handle, for which
// [Handle.Cancel] is a no-op; this supports declaring the field up front and
// assigning it from Register later.
//
// A Handle is NOT safe for concurrent use, and should be treated as
// move-only: keep at most one live copy per registration, and call Cancel
// from a single goroutine. Dropping a live (non-null, non-canceled) Handle
// is a programming error: the registration would receive callbacks forever.
type Handle[T EventType] struct {
	reg *registration[T]
}

// Cancel stops future deliveries for this registration, then blocks until
// every in-flight callback has returned, including deferred replays that
// were already admitted on the registration's [BusyInterface]. On return:
//
//   - no further callback invocation on this registration is possible
//   - no goroutine is still executing inside the callback
//   - the caller may destroy any state the callback closed over, including
//     the BusyInterface
//
// Cancel on a null handle is a no-op. Cancel nulls the handle, so a second
// call is likewise a no-op. It is bounded only by the longest-running
// callback.
func (x *Handle[T]) Cancel() {
	r := x.reg
	if r == nil {
		return
	}
	x.reg = nil
	r.cancel()
	// The registration node itself stays linked until the next trigger pass
	// observes the terminal state and unlinks it; that is the server's
	// concern, not the caller's.
}

// IsCanceled reports whether this handle no longer refers to a live
// registration: true for null handles, canceled handles, and handles whose
// registration has reached the quiescent-canceled state. Intended for
// debugging and tests.
func (x *Handle[T]) IsCanceled() bool {
	return x.reg == nil || x.reg.isCanceled()
}
