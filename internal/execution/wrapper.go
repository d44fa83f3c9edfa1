// Package execution runs a single task with a per-attempt timeout and a
// bounded number of retries.
//
// Attempts are not cancelled in any hard sense: when an attempt times out,
// its context is cancelled and the attempt counts as failed, but the logic
// may keep running in the background until it notices (or never). Retried
// attempts start from scratch, so the logic must tolerate being invoked more
// than once for the same task.
package execution

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"time"
)

const (
	DefaultTimeout    = 5 * time.Second
	DefaultMaxRetries = 3
)

// Func is the task logic invoked once per attempt.
type Func func(ctx context.Context, task models.Task) (any, error)

// Gate is consulted before the first attempt; a non-nil error aborts the run
// without invoking the logic.
type Gate func() error

type Outcome struct {
	Result   any
	Attempts int
}

type Wrapper struct {
	Timeout    time.Duration
	MaxRetries int
	log        zerolog.Logger
}

func New(timeout time.Duration, maxRetries int) *Wrapper {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Wrapper{
		Timeout:    timeout,
		MaxRetries: maxRetries,
		log:        logger.Component("execution"),
	}
}

// Run executes fn for task, retrying on error or timeout up to MaxRetries
// extra attempts with no delay between them. The error of the final attempt
// is returned once all attempts are exhausted.
func (w *Wrapper) Run(ctx context.Context, task models.Task, gate Gate, fn Func) (Outcome, error) {
	if gate != nil {
		if err := gate(); err != nil {
			return Outcome{}, err
		}
	}

	l := w.log.With().Str(logger.TaskField, task.ID).Logger()
	var lastErr error
	for attempt := 1; attempt <= w.MaxRetries+1; attempt++ {
		res, err := w.attempt(ctx, task, fn)
		if err == nil {
			l.Debug().Int(logger.AttemptField, attempt).Msg("attempt succeeded")
			return Outcome{Result: res, Attempts: attempt}, nil
		}
		lastErr = err
		l.Warn().Err(err).Int(logger.AttemptField, attempt).Msg("attempt failed")
	}
	return Outcome{Attempts: w.MaxRetries + 1}, lastErr
}

func (w *Wrapper) attempt(ctx context.Context, task models.Task, fn Func) (any, error) {
	type result struct {
		val any
		err error
	}

	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// buffered so an abandoned attempt can still deliver and exit
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("panic: %v", r)}
			}
		}()
		val, err := fn(attemptCtx, task)
		done <- result{val: val, err: err}
	}()

	timer := time.NewTimer(w.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, models.WrapError(models.ErrExecutionFailure, "execute "+task.ID, r.err)
		}
		return r.val, nil
	case <-timer.C:
		return nil, models.NewError(models.ErrTimeout, "execute "+task.ID, "exceeded %s", w.Timeout)
	}
}
