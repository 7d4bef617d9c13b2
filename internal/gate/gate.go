// Package gate serialises heavy computations. A Gate admits one holder at a
// time; callers that cannot get in within a short timeout are told to retry
// instead of queueing behind a long optimisation.
package gate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eve-industry/internal/logger"

	"golang.org/x/sync/semaphore"
)

// DefaultTimeout is how long TryAcquire waits before reporting busy.
const DefaultTimeout = 10 * time.Millisecond

// BusyMessage is the text shown to a user whose request hit a held gate.
const BusyMessage = "a computation is already in progress, try again shortly"

// ErrBusy is returned by Run when the gate could not be acquired in time.
var ErrBusy = errors.New(BusyMessage)

// IsBusy reports whether err came from a held gate.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }

// Gate is a named single-holder lock with timed acquisition.
type Gate struct {
	name string
	sem  *semaphore.Weighted
}

// New creates an open gate.
func New(name string) *Gate {
	return &Gate{name: name, sem: semaphore.NewWeighted(1)}
}

// Name returns the gate's label.
func (g *Gate) Name() string { return g.name }

// TryAcquire waits up to timeout for the gate. On success the returned
// release func must be called exactly once; extra calls are no-ops.
func (g *Gate) TryAcquire(ctx context.Context, timeout time.Duration) (release func(), ok bool) {
	if timeout <= 0 {
		if !g.sem.TryAcquire(1) {
			return nil, false
		}
		return g.releaser(), true
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := g.sem.Acquire(tctx, 1); err != nil {
		return nil, false
	}
	return g.releaser(), true
}

func (g *Gate) releaser() func() {
	done := false
	return func() {
		if done {
			return
		}
		done = true
		g.sem.Release(1)
	}
}

// Run executes fn while holding the gate. The gate is released when fn
// returns, errors or panics. If the gate stays held past timeout, fn is not
// called and ErrBusy is returned.
func (g *Gate) Run(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	release, ok := g.TryAcquire(ctx, timeout)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Debug("GATE", fmt.Sprintf("%s busy", g.name))
		return fmt.Errorf("%s: %w", g.name, ErrBusy)
	}
	defer release()
	return fn(ctx)
}
