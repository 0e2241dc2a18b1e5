package media

import (
	"context"
	"errors"
	"time"
)

// ErrPollDeadline reports that the remote job outlived the polling window.
var ErrPollDeadline = errors.New("poll deadline exceeded")

// PollPolicy drives the wait-for-remote-processing loop: a fixed delay
// between status checks, an overall deadline, and retry with doubling backoff
// when a single check fails transiently.
type PollPolicy struct {
	Interval     time.Duration
	MaxWait      time.Duration
	CheckRetries int
	CheckBackoff time.Duration
}

// Run sleeps for Interval then invokes check, repeating until check reports
// done, the context ends, or MaxWait elapses. Check errors abort the loop
// only after CheckRetries extra attempts.
func (p PollPolicy) Run(ctx context.Context, check func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(p.MaxWait)

	for {
		if err := sleepContext(ctx, p.Interval); err != nil {
			return err
		}

		done, err := p.checkWithRetry(ctx, check)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		if !time.Now().Before(deadline) {
			return ErrPollDeadline
		}
	}
}

func (p PollPolicy) checkWithRetry(ctx context.Context, check func(context.Context) (bool, error)) (bool, error) {
	backoff := p.CheckBackoff
	var lastErr error

	for attempt := 0; attempt <= p.CheckRetries; attempt++ {
		if attempt > 0 {
			if err := sleepContext(ctx, backoff); err != nil {
				return false, err
			}
			backoff *= 2
		}

		done, err := check(ctx)
		if err == nil {
			return done, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, err
		}
		lastErr = err
	}

	return false, lastErr
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
