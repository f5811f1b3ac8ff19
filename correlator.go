package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// PendingRequest is the handle of an in-flight outgoing request. It completes
// exactly once: with the peer's response, with ErrTimeout when the request
// deadline passes, with a cancellation error, or with ErrClosed when the
// session closes.
type PendingRequest struct {
	id   MustString
	corr *correlator

	done   chan struct{}
	result json.RawMessage
	err    error

	timer *time.Timer
}

// correlator matches incoming responses to the requests that are waiting for
// them, regardless of arrival order. All state lives behind one mutex that is
// never held across sends or handler calls.
type correlator struct {
	logger *slog.Logger

	mu      sync.Mutex
	pending map[MustString]*PendingRequest
	idle    chan struct{}
	closed  bool
}

func newCorrelator(logger *slog.Logger) *correlator {
	return &correlator{
		logger:  logger,
		pending: make(map[MustString]*PendingRequest),
	}
}

// register creates a pending entry for the given request ID. A non-zero
// deadline arms a timer that fails the request with ErrTimeout.
func (c *correlator) register(id MustString, deadline time.Duration) (*PendingRequest, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if _, ok := c.pending[id]; ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("duplicate request id %q", id)
	}

	p := &PendingRequest{
		id:   id,
		corr: c,
		done: make(chan struct{}),
	}
	// The timer must be armed before the entry is published in the map:
	// deliver and fail read it with no synchronization beyond the removal.
	// AfterFunc runs its callback on its own goroutine, so an already-expired
	// deadline blocks on the mutex until the entry is in place.
	if deadline > 0 {
		p.timer = time.AfterFunc(deadline, func() {
			if c.fail(id, ErrTimeout) {
				c.logger.Warn("request timed out", slog.String("requestID", string(id)))
			}
		})
	}
	c.pending[id] = p
	c.mu.Unlock()

	return p, nil
}

// deliver completes the entry matching the response's ID. It reports false
// when no entry matches, which the caller should log and otherwise ignore.
func (c *correlator) deliver(msg JSONRPCMessage) bool {
	c.mu.Lock()
	p, ok := c.pending[msg.ID]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, msg.ID)
	c.maybeIdle()
	c.mu.Unlock()

	p.stopTimer()
	if msg.Error != nil {
		p.err = *msg.Error
	} else {
		p.result = msg.Result
	}
	close(p.done)
	return true
}

// fail completes the entry with an error. It reports false when the entry
// already completed.
func (c *correlator) fail(id MustString, err error) bool {
	c.mu.Lock()
	p, ok := c.pending[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	delete(c.pending, id)
	c.maybeIdle()
	c.mu.Unlock()

	p.stopTimer()
	p.err = err
	close(p.done)
	return true
}

// close fails every pending entry with the given error and rejects further
// registrations. It is idempotent.
func (c *correlator) close(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	pending := c.pending
	c.pending = make(map[MustString]*PendingRequest)
	c.maybeIdle()
	c.mu.Unlock()

	for _, p := range pending {
		p.stopTimer()
		p.err = err
		close(p.done)
	}
}

// awaitIdle blocks until no requests are pending or the context is done.
func (c *correlator) awaitIdle(ctx context.Context) error {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		return nil
	}
	if c.idle == nil {
		c.idle = make(chan struct{})
	}
	idle := c.idle
	c.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// maybeIdle closes the idle signal when the table empties. Callers must hold
// the mutex.
func (c *correlator) maybeIdle() {
	if len(c.pending) == 0 && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// ID returns the request's message ID.
func (p *PendingRequest) ID() string {
	return string(p.id)
}

// Done returns a channel that is closed when the request completes.
func (p *PendingRequest) Done() <-chan struct{} {
	return p.done
}

// Result returns the raw result payload, blocking until the request
// completes. A failed request returns a nil payload and the failure, with
// protocol-level failures carried as a JSONRPCError.
func (p *PendingRequest) Result() (json.RawMessage, error) {
	<-p.done
	return p.result, p.err
}

// Await waits for completion with a context. When the context wins, the
// request is cancelled and everyone waiting on it observes the context error.
func (p *PendingRequest) Await(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		p.corr.fail(p.id, ctx.Err())
		<-p.done
		return p.result, p.err
	}
}

// Cancel abandons the request. A response arriving afterwards is discarded by
// the correlator. Cancelling a completed request has no effect.
func (p *PendingRequest) Cancel() {
	p.corr.fail(p.id, context.Canceled)
}

func (p *PendingRequest) stopTimer() {
	if p.timer != nil {
		p.timer.Stop()
	}
}
