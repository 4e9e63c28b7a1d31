// Package sequencer runs every settlement operation on a single goroutine,
// in arrival order. The stores behind the services hold no locks of their
// own; the sequencer is what makes concurrent HTTP requests safe.
package sequencer

import (
	"context"
	"errors"
	"fmt"

	"stakehub/pkg/logger"
)

// ErrStopped is returned for work submitted after Run has returned.
var ErrStopped = errors.New("sequencer stopped")

type op struct {
	ctx context.Context
	run func(ctx context.Context)
}

type Sequencer struct {
	ops     chan op
	stopped chan struct{}
	logger  logger.Logger
}

// New creates a sequencer whose queue holds up to backlog pending
// operations before submitters block.
func New(log logger.Logger, backlog int) *Sequencer {
	if backlog < 0 {
		backlog = 0
	}
	return &Sequencer{
		ops:     make(chan op, backlog),
		stopped: make(chan struct{}),
		logger:  log,
	}
}

// Run executes queued operations until ctx is cancelled. Operations still
// queued at that point are dropped; their submitters get ErrStopped.
func (s *Sequencer) Run(ctx context.Context) error {
	defer close(s.stopped)
	s.logger.Info("Sequencer started", map[string]interface{}{"backlog": cap(s.ops)})
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sequencer stopped", map[string]interface{}{"dropped": len(s.ops)})
			return nil
		case o := <-s.ops:
			if o.ctx.Err() != nil {
				continue
			}
			o.run(o.ctx)
		}
	}
}

// Do queues fn and waits for its result. If ctx ends first the caller gets
// ctx.Err(); fn may still run if it was already dequeued.
func Do[T any](ctx context.Context, s *Sequencer, fn func(context.Context) (T, error)) (T, error) {
	type result struct {
		val T
		err error
	}
	var zero T
	done := make(chan result, 1)

	o := op{ctx: ctx, run: func(ctx context.Context) {
		var r result
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("Sequenced operation panicked", map[string]interface{}{"panic": fmt.Sprint(p)})
				r = result{err: fmt.Errorf("operation panicked: %v", p)}
			}
			done <- r
		}()
		r.val, r.err = fn(ctx)
	}}

	select {
	case s.ops <- o:
	case <-s.stopped:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	select {
	case r := <-done:
		return r.val, r.err
	case <-s.stopped:
		// Run may have exited with o still queued.
		select {
		case r := <-done:
			return r.val, r.err
		default:
			return zero, ErrStopped
		}
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
