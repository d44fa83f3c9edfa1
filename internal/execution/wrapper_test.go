package execution

import (
	"context"
	"errors"
	"go-taskagent/pkg/models"
	"sync/atomic"
	"testing"
	"time"
)

var testTask = models.Task{ID: "t1", Type: "test", Payload: "data"}

func TestRun_Success(t *testing.T) {
	w := New(time.Second, 3)
	var calls atomic.Int32

	out, err := w.Run(context.Background(), testTask, nil, func(_ context.Context, task models.Task) (any, error) {
		calls.Add(1)
		return task.Payload, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != "data" {
		t.Errorf("result = %v, want data", out.Result)
	}
	if out.Attempts != 1 || calls.Load() != 1 {
		t.Errorf("attempts = %d, calls = %d; want 1, 1", out.Attempts, calls.Load())
	}
}

func TestRun_AlwaysFailing(t *testing.T) {
	w := New(time.Second, 3)
	var calls atomic.Int32
	boom := errors.New("boom")

	out, err := w.Run(context.Background(), testTask, nil, func(context.Context, models.Task) (any, error) {
		calls.Add(1)
		return nil, boom
	})
	if calls.Load() != 4 {
		t.Fatalf("calls = %d, want 4 (1 + 3 retries)", calls.Load())
	}
	if out.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", out.Attempts)
	}
	if !errors.Is(err, models.ErrExecutionFailure) || !errors.Is(err, boom) {
		t.Errorf("err = %v, want ExecutionFailure wrapping boom", err)
	}
}

func TestRun_SucceedsOnRetry(t *testing.T) {
	w := New(time.Second, 3)
	var calls atomic.Int32

	out, err := w.Run(context.Background(), testTask, nil, func(context.Context, models.Task) (any, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("flaky")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Attempts != 3 || out.Result != "ok" {
		t.Errorf("outcome = %+v, want 3 attempts with ok", out)
	}
}

func TestRun_TimeoutCountsAsFailure(t *testing.T) {
	w := New(20*time.Millisecond, 3)
	var calls atomic.Int32

	out, err := w.Run(context.Background(), testTask, nil, func(ctx context.Context, _ models.Task) (any, error) {
		calls.Add(1)
		<-ctx.Done() // cancelled once the attempt is abandoned
		return nil, ctx.Err()
	})
	if !errors.Is(err, models.ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
	if out.Attempts != 4 {
		t.Errorf("attempts = %d, want 4", out.Attempts)
	}
	// every attempt was started even though none finished in time
	if calls.Load() != 4 {
		t.Errorf("calls = %d, want 4", calls.Load())
	}
}

func TestRun_ZeroRetries(t *testing.T) {
	w := New(time.Second, 0)
	var calls atomic.Int32

	_, err := w.Run(context.Background(), testTask, nil, func(context.Context, models.Task) (any, error) {
		calls.Add(1)
		return nil, errors.New("nope")
	})
	if err == nil || calls.Load() != 1 {
		t.Fatalf("err = %v, calls = %d; want error after a single call", err, calls.Load())
	}
}

func TestRun_GateBlocks(t *testing.T) {
	w := New(time.Second, 3)
	var calls atomic.Int32
	gateErr := models.NewError(models.ErrInvalidState, "execute", "not running")

	_, err := w.Run(context.Background(), testTask, func() error { return gateErr }, func(context.Context, models.Task) (any, error) {
		calls.Add(1)
		return nil, nil
	})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Fatalf("err = %v, want ErrInvalidState", err)
	}
	if calls.Load() != 0 {
		t.Errorf("logic invoked %d times behind a closed gate", calls.Load())
	}
}

func TestRun_PanicIsFailure(t *testing.T) {
	w := New(time.Second, 1)

	_, err := w.Run(context.Background(), testTask, nil, func(context.Context, models.Task) (any, error) {
		panic("kaboom")
	})
	if !errors.Is(err, models.ErrExecutionFailure) {
		t.Fatalf("err = %v, want ErrExecutionFailure", err)
	}
}
