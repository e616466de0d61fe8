package events

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestHandle_nullHandle(t *testing.T) {
	var handle Handle[tickEvent]
	if !handle.IsCanceled() {
		t.Error("null handle should report canceled")
	}
	handle.Cancel() // no-op
	handle.Cancel() // still a no-op
}

func TestHandle_cancelIsIdempotentAfterFirstCall(t *testing.T) {
	var server Server[tickEvent]
	handle := server.Register(func(tickEvent) {})

	if handle.IsCanceled() {
		t.Error("live handle should not report canceled")
	}
	handle.Cancel()
	if !handle.IsCanceled() {
		t.Error("handle should report canceled after Cancel")
	}
	handle.Cancel() // nulled by the first call; no-op
}

func TestHandle_assignment(t *testing.T) {
	var server Server[tickEvent]

	var client struct {
		handle Handle[tickEvent]
		count  atomic.Int32
	}
	client.handle = server.Register(func(tickEvent) {
		client.count.Add(1)
	})

	server.Trigger(tickEvent{})
	client.handle.Cancel()
	server.Trigger(tickEvent{})

	if client.count.Load() != 1 {
		t.Errorf("expected exactly one delivery, got %d", client.count.Load())
	}
}

// Cancel blocks until an in-flight callback returns; after it returns no
// further invocation is possible.
func TestHandle_cancelWaitsForInFlightCallback(t *testing.T) {
	var server Server[tickEvent]

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	handle := server.Register(func(tickEvent) {
		calls.Add(1)
		close(entered)
		<-release
	})

	triggerDone := make(chan struct{})
	go func() {
		defer close(triggerDone)
		server.Trigger(tickEvent{})
	}()
	<-entered

	canceled := make(chan struct{})
	go func() {
		defer close(canceled)
		handle.Cancel()
	}()

	select {
	case <-canceled:
		t.Fatal("cancel returned while the callback was still executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not return after the callback finished")
	}
	<-triggerDone

	server.Trigger(tickEvent{})
	if calls.Load() != 1 {
		t.Errorf("delivery after cancel returned, calls %d", calls.Load())
	}
}

// A deferred event whose registration is canceled while queued is dropped,
// not replayed.
func TestHandle_cancelDropsQueuedDeferredEvent(t *testing.T) {
	var bi BusyInterface
	var server Server[tickEvent]

	var calls atomic.Int32
	handle := server.Register(func(tickEvent) {
		calls.Add(1)
	}, WithBusyInterface(&bi))

	bi.SetBusy()
	server.Trigger(tickEvent{}) // deferred
	handle.Cancel()             // no in-flight callback; returns immediately
	bi.UnsetBusy()              // drains; the stale event must be dropped

	if calls.Load() != 0 {
		t.Errorf("stale deferred event replayed after cancel, calls %d", calls.Load())
	}
}

// A deferred replay that is already executing holds the canceller in its
// wait, exactly like an inline delivery.
func TestHandle_cancelWaitsForInFlightReplay(t *testing.T) {
	var bi BusyInterface
	var server Server[tickEvent]

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})
	handle := server.Register(func(tickEvent) {
		calls.Add(1)
		close(entered)
		<-release
	}, WithBusyInterface(&bi))

	bi.SetBusy()
	server.Trigger(tickEvent{}) // deferred
	if calls.Load() != 0 {
		t.Fatal("expected deferral while busy")
	}

	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		bi.UnsetBusy() // replays the deferred event, which blocks on release
	}()
	<-entered

	canceled := make(chan struct{})
	go func() {
		defer close(canceled)
		handle.Cancel()
	}()

	select {
	case <-canceled:
		t.Fatal("cancel returned while a deferred replay was executing")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)

	select {
	case <-canceled:
	case <-time.After(5 * time.Second):
		t.Fatal("cancel did not return after the replay finished")
	}
	<-replayDone

	if calls.Load() != 1 {
		t.Errorf("expected exactly one replay, calls %d", calls.Load())
	}
}

// After cancel returns, a canceled registration is unlinked by the next
// trigger pass without delivering to it.
func TestHandle_canceledRegistrationUnlinked(t *testing.T) {
	var server Server[tickEvent]

	var canceled, live atomic.Int32
	h1 := server.Register(func(tickEvent) { canceled.Add(1) })
	h2 := server.Register(func(tickEvent) { live.Add(1) })
	defer h2.Cancel()

	h1.Cancel()

	for range 3 {
		server.Trigger(tickEvent{})
	}

	if canceled.Load() != 0 {
		t.Errorf("canceled registration delivered %d times", canceled.Load())
	}
	if live.Load() != 3 {
		t.Errorf("expected 3 deliveries to the live registration, got %d", live.Load())
	}
}
