// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package events

import (
	"github.com/joeycumines/logiface"
)

type (
	// ServerOption configures a [NewServer] instance.
	ServerOption interface {
		applyServer(*serverOptions)
	}

	// RegisterOption configures a single [Server.Register] call.
	RegisterOption interface {
		applyRegister(*registerOptions)
	}

	serverOptions struct {
		logger *logiface.Logger[logiface.Event]
		pool   NodePool
	}

	registerOptions struct {
		busy   *BusyInterface
		silent bool
	}

	serverOptionImpl struct {
		fn func(*serverOptions)
	}

	registerOptionImpl struct {
		fn func(*registerOptions)
	}
)

func (x *serverOptionImpl) applyServer(opts *serverOptions)       { x.fn(opts) }
func (x *registerOptionImpl) applyRegister(opts *registerOptions) { x.fn(opts) }

// WithLogger wires a structured logger into the server. A nil logger (the
// default) disables logging. Deliveries and replays are logged at trace
// level; deferrals, dropped replays, one-shot list consumption, registration
// and cancellation at debug level.
func WithLogger(logger *logiface.Logger[logiface.Event]) ServerOption {
	return &serverOptionImpl{func(opts *serverOptions) {
		opts.logger = logger
	}}
}

// WithNodePool provides backing storage for registration nodes, e.g. a
// *sync.Pool. The pool must be safe for concurrent use. See [NodePool] for
// what the server guarantees about recycled nodes.
func WithNodePool(pool NodePool) ServerOption {
	return &serverOptionImpl{func(opts *serverOptions) {
		opts.pool = pool
	}}
}

// WithBusyInterface attaches the client's serializer to the registration:
// at most one callback referencing bi runs at any moment, across every
// registration and server sharing it. Events arriving while the client is
// busy are deferred and replayed, in order, when it becomes free.
//
// The bi must outlive the registration; cancel the returned [Handle] before
// destroying it. A nil bi is equivalent to omitting the option.
func WithBusyInterface(bi *BusyInterface) RegisterOption {
	return &registerOptionImpl{func(opts *registerOptions) {
		opts.busy = bi
	}}
}

// WithSilent suppresses per-delivery log lines for this registration, for
// high-frequency events that would otherwise drown the log. Registration and
// cancellation are still logged.
func WithSilent() RegisterOption {
	return &registerOptionImpl{func(opts *registerOptions) {
		opts.silent = true
	}}
}

func resolveServerOptions(opts []ServerOption) *serverOptions {
	var cfg serverOptions
	for _, opt := range opts {
		if opt == nil {
			continue // skip nil options gracefully
		}
		opt.applyServer(&cfg)
	}
	return &cfg
}

func resolveRegisterOptions(opts []RegisterOption) *registerOptions {
	var cfg registerOptions
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.applyRegister(&cfg)
	}
	return &cfg
}
