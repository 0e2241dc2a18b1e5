package media_test

import (
	"context"
	"errors"
	"testing"
	"time"

	media "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

func TestPollPolicyRunsUntilDone(t *testing.T) {
	policy := media.PollPolicy{Interval: time.Millisecond, MaxWait: time.Second}

	checks := 0
	err := policy.Run(context.Background(), func(ctx context.Context) (bool, error) {
		checks++
		return checks == 3, nil
	})
	if err != nil {
		t.Fatalf("Run err: %v", err)
	}
	if checks != 3 {
		t.Fatalf("expected 3 checks, got %d", checks)
	}
}

func TestPollPolicyDeadline(t *testing.T) {
	policy := media.PollPolicy{Interval: time.Millisecond, MaxWait: 5 * time.Millisecond}

	err := policy.Run(context.Background(), func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, media.ErrPollDeadline) {
		t.Fatalf("expected ErrPollDeadline, got %v", err)
	}
}

func TestPollPolicyRetriesTransientCheckFailures(t *testing.T) {
	policy := media.PollPolicy{Interval: time.Millisecond, MaxWait: time.Second, CheckRetries: 2, CheckBackoff: time.Millisecond}

	calls := 0
	err := policy.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		if calls < 3 {
			return false, errors.New("flaky check")
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("expected retries to absorb transient failures, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 check calls, got %d", calls)
	}
}

func TestPollPolicyGivesUpAfterRetries(t *testing.T) {
	policy := media.PollPolicy{Interval: time.Millisecond, MaxWait: time.Second, CheckRetries: 1, CheckBackoff: time.Millisecond}

	calls := 0
	wantErr := errors.New("status endpoint down")
	err := policy.Run(context.Background(), func(ctx context.Context) (bool, error) {
		calls++
		return false, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 check calls, got %d", calls)
	}
}

func TestPollPolicyHonorsCancellation(t *testing.T) {
	policy := media.PollPolicy{Interval: 50 * time.Millisecond, MaxWait: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := policy.Run(ctx, func(ctx context.Context) (bool, error) {
		return false, nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
