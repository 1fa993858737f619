package sessionpool

import (
	"context"
	"time"
)

// Operation is one page-level action dispatched against a session.
type Operation struct {
	// Name identifies the operation in errors and logs.
	Name string

	// Timeout bounds Run. Zero uses the pool's OperationTimeout.
	Timeout time.Duration

	// Existing requires the id to name a live session instead of creating
	// one under it.
	Existing bool

	// Run performs the action. ctx carries the operation deadline.
	Run func(ctx context.Context, s *Session) error
}

// Do resolves the session for id, runs op under its timeout, and touches the
// session when op succeeds. The session stays pinned while op runs, so it is
// neither evicted nor swept, and a concurrent Close destroys it only after op
// returns. The session is returned whenever it was resolved, so callers can
// report its id alongside a failure.
//
// Run must not Acquire further sessions from the same pool: with every slot
// pinned that Acquire waits until ctx is done.
func (p *Pool) Do(ctx context.Context, id string, op Operation) (*Session, error) {
	var (
		e   *entry
		err error
	)
	if op.Existing {
		e, err = p.getPinned(op.Name, id)
	} else {
		e, err = p.acquire(ctx, id, true)
	}
	if err != nil {
		return nil, err
	}
	defer p.unpin(e)
	p.Sweep()
	s := e.session

	timeout := op.Timeout
	if timeout <= 0 {
		timeout = p.opts.OperationTimeout
	}
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := op.Run(opCtx, s); err != nil {
		if opCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			err = newSessionError(op.Name, s.id, ErrOperationTimeout, err)
		}
		return s, OperationError(op.Name, s.id, err)
	}

	p.Touch(s.id)
	return s, nil
}
