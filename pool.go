// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import "sync"

// NodePool provides backing storage for registration nodes, wired via
// [WithNodePool]. It must be safe for concurrent use across server
// operations. *sync.Pool satisfies it directly.
//
// The server calls Get when registering (a nil or foreign-typed result falls
// back to plain allocation) and Put only for nodes that are provably
// unreferenced: canceled, quiescent, unlinked, and never associated with a
// [BusyInterface]. One-shot registrations are never pooled, since a live [Handle]
// may still point at one after the list is consumed.
type NodePool interface {
	Get() any
	Put(node any)
}

var _ NodePool = (*sync.Pool)(nil)
