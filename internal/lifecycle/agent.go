// Package lifecycle owns an agent's state machine and composes the task
// queue and the execution wrapper into a single logical worker.
//
// States and the transitions allowed between them are defined in
// models.CanTransition. Every status write goes through writeStatus, reached
// only from Initialize, Start, Stop, Dispose and task failures.
package lifecycle

import (
	"context"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go-taskagent/internal/execution"
	"go-taskagent/internal/task"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"sync"
	"time"
)

type Agent struct {
	config     models.AgentConfig
	hooks      Hooks
	wrapper    *execution.Wrapper
	dispatcher Dispatcher
	listeners  listeners
	log        zerolog.Logger

	mu           sync.Mutex
	status       models.AgentStatus
	queue        *task.Queue
	draining     bool
	initializing bool

	// events are queued under mu in the order the state they describe was
	// written and delivered by a single goroutine with mu released
	outbox   []func()
	emitting bool
}

type Option func(*Agent)

func WithWrapper(w *execution.Wrapper) Option {
	return func(a *Agent) { a.wrapper = w }
}

func WithDispatcher(d Dispatcher) Option {
	return func(a *Agent) { a.dispatcher = d }
}

func WithValidator(v *task.Validator) Option {
	return func(a *Agent) { a.queue = task.NewQueue(v) }
}

func New(cfg models.AgentConfig, hooks Hooks, opts ...Option) *Agent {
	if hooks == nil {
		hooks = NopHooks{}
	}
	a := &Agent{
		config:     cfg.Clone(),
		hooks:      hooks,
		wrapper:    execution.New(execution.DefaultTimeout, execution.DefaultMaxRetries),
		dispatcher: Inline,
		queue:      task.NewQueue(nil),
		status: models.AgentStatus{
			ID:          cfg.ID,
			State:       models.Initializing,
			LastUpdated: time.Now(),
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = log.With().Str(logger.AgentIDField, cfg.ID).Str(logger.AgentNameField, cfg.Name).Logger()
	return a
}

func (a *Agent) Config() models.AgentConfig {
	return a.config.Clone()
}

// Status returns a snapshot; changing it has no effect on the agent.
func (a *Agent) Status() models.AgentStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *Agent) State() models.State {
	return a.Status().State
}

// Pending lists the queued tasks in the order they will run.
func (a *Agent) Pending() []models.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.queue.Snapshot()
}

// Subscribe registers l for all agent events until the returned func is
// called or the agent is disposed.
func (a *Agent) Subscribe(l Listener) (unsubscribe func()) {
	return a.listeners.add(l)
}

// Initialize runs the initialize hook and moves the agent to idle. It is
// accepted from initializing, stopped and error; from idle or running it
// returns ErrInvalidTransition and leaves the status alone.
//
// Only one Initialize runs the hook at a time; a concurrent call fails with
// ErrInvalidTransition.
func (a *Agent) Initialize(ctx context.Context) error {
	a.mu.Lock()
	cur := a.status.State
	if a.initializing {
		a.mu.Unlock()
		return models.NewError(models.ErrInvalidTransition, "initialize", "initialize already in progress")
	}
	if !models.CanTransition(cur, models.Idle) {
		a.mu.Unlock()
		return models.NewError(models.ErrInvalidTransition, "initialize", "cannot initialize agent in %s state", cur)
	}
	a.initializing = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.initializing = false
		a.mu.Unlock()
	}()

	if err := a.hooks.OnInitialize(ctx); err != nil {
		a.setState(models.Failed, err.Error())
		return fmt.Errorf("initialize: %w", err)
	}
	return a.transition("initialize", models.Idle)
}

// Start moves an idle agent to running, runs the start hook and drains
// whatever was queued while the agent was not running. Calling it from any
// other state puts the agent in the error state.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.transitionFrom("start", models.Idle, models.Running); err != nil {
		a.setState(models.Failed, err.Error())
		return err
	}
	a.log.Info().Msg("agent started")

	if err := a.hooks.OnStart(ctx); err != nil {
		a.setState(models.Failed, err.Error())
		return fmt.Errorf("start: %w", err)
	}
	a.dispatcher.Dispatch(ctx, a.Drain)
	return nil
}

// Stop moves a running agent to stopped. A task already executing finishes
// (or times out) but no further task is dequeued.
func (a *Agent) Stop(ctx context.Context) error {
	if err := a.transitionFrom("stop", models.Running, models.Stopped); err != nil {
		a.setState(models.Failed, err.Error())
		return err
	}
	a.log.Info().Msg("agent stopped")

	if err := a.hooks.OnStop(ctx); err != nil {
		a.setState(models.Failed, err.Error())
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// Dispose tears the agent down from any state: stop if running, discard the
// queue, detach listeners, run the dispose hook and end in stopped. A failure
// leaves the agent in the error state and is returned.
func (a *Agent) Dispose(ctx context.Context) error {
	a.log.Info().Msg("disposing...")
	if err := a.dispose(ctx); err != nil {
		a.log.Error().Err(err).Msg("disposal failed")
		a.setState(models.Failed, err.Error())
		return models.WrapError(models.ErrTeardownFailure, "dispose", err)
	}
	a.log.Info().Msg("disposed successfully")
	return nil
}

func (a *Agent) dispose(ctx context.Context) error {
	if a.State() == models.Running {
		if err := a.Stop(ctx); err != nil {
			return err
		}
	}
	a.clearTasks()
	a.detachListeners()
	if err := a.hooks.OnDispose(ctx); err != nil {
		return err
	}
	a.setState(models.Stopped, "")
	return nil
}

// Execute runs a single task through the execution wrapper right away,
// bypassing the queue. It fails with ErrInvalidState unless the agent is
// running. No events are emitted and a failure does not change the state;
// the error is the caller's to handle.
func (a *Agent) Execute(ctx context.Context, t models.Task) (any, error) {
	out, err := a.wrapper.Run(ctx, t, a.requireRunning, a.hooks.OnExecute)
	if err != nil {
		return nil, err
	}
	return out.Result, nil
}

// AddTask validates t, queues it and asks the dispatcher for a drain. A
// validation error is returned and nothing is queued. Execution failures are
// reported through events, not returned.
func (a *Agent) AddTask(ctx context.Context, t models.Task) error {
	a.log.Debug().Str(logger.TaskField, t.ID).Msg("adding task")

	a.mu.Lock()
	if err := a.queue.Admit(t); err != nil {
		a.mu.Unlock()
		return err
	}
	queued := t.Clone()
	a.post(func() {
		a.listeners.each("taskQueued", func(l Listener) { l.OnTaskQueued(queued) })
	})
	a.unlockAndFlush()

	a.dispatcher.Dispatch(ctx, a.Drain)
	return nil
}

// Drain executes queued tasks one at a time while the agent is running. Only
// one drain is active at once; a call made while another is in progress
// returns immediately and the active one picks up the new work.
func (a *Agent) Drain(ctx context.Context) {
	a.mu.Lock()
	if a.draining {
		a.mu.Unlock()
		return
	}
	a.draining = true
	a.mu.Unlock()

	for {
		t, ok := a.next()
		if !ok {
			return
		}
		a.process(ctx, t)
	}
}

// next pops the head of the queue, or ends the drain when the agent is not
// running or nothing is left.
func (a *Agent) next() (models.Task, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.State != models.Running {
		a.draining = false
		return models.Task{}, false
	}
	t, ok := a.queue.DrainNext()
	if !ok {
		a.draining = false
	}
	return t, ok
}

func (a *Agent) process(ctx context.Context, t models.Task) {
	l := a.log.With().Str(logger.TaskField, t.ID).Str(logger.TaskTypeField, t.Type).Logger()
	l.Info().Int(logger.PriorityField, t.EffectivePriority()).Msg("processing task")

	out, err := a.wrapper.Run(ctx, t, nil, a.hooks.OnExecute)
	if err != nil {
		l.Error().Err(err).Int(logger.AttemptField, out.Attempts).Msg("task failed")
		a.mu.Lock()
		a.post(func() {
			a.listeners.each("taskError", func(ls Listener) { ls.OnTaskError(models.TaskFailure{Task: t, Error: err}) })
		})
		a.writeAndPost(models.Failed, err.Error())
		a.unlockAndFlush()
		return
	}

	l.Info().Int(logger.AttemptField, out.Attempts).Msg("task completed successfully")
	a.mu.Lock()
	a.post(func() {
		a.listeners.each("taskComplete", func(ls Listener) { ls.OnTaskComplete(models.TaskResult{Task: t, Result: out.Result}) })
	})
	a.unlockAndFlush()
}

func (a *Agent) clearTasks() {
	a.mu.Lock()
	remaining := a.queue.Clear()
	a.post(func() {
		a.listeners.each("tasksCleared", func(l Listener) { l.OnTasksCleared(remaining) })
	})
	a.unlockAndFlush()
}

// detachListeners drops the current subscribers once every event already
// queued has reached them.
func (a *Agent) detachListeners() {
	a.mu.Lock()
	a.post(a.listeners.detach())
	a.unlockAndFlush()
}

func (a *Agent) requireRunning() error {
	if cur := a.State(); cur != models.Running {
		return models.NewError(models.ErrInvalidState, "execute", "cannot execute task in %s state", cur)
	}
	return nil
}

// transitionFrom moves the agent from exactly `from` to `to`.
func (a *Agent) transitionFrom(op string, from, to models.State) error {
	a.mu.Lock()
	if cur := a.status.State; cur != from || !models.CanTransition(cur, to) {
		a.mu.Unlock()
		return models.NewError(models.ErrInvalidTransition, op, "cannot %s agent in %s state", op, cur)
	}
	a.writeAndPost(to, "")
	a.unlockAndFlush()
	return nil
}

// transition moves the agent to `to` if the table allows it from the
// current state.
func (a *Agent) transition(op string, to models.State) error {
	a.mu.Lock()
	if cur := a.status.State; !models.CanTransition(cur, to) {
		a.mu.Unlock()
		return models.NewError(models.ErrInvalidTransition, op, "cannot %s agent in %s state", op, cur)
	}
	a.writeAndPost(to, "")
	a.unlockAndFlush()
	return nil
}

// setState writes the status unconditionally. It is used for the error
// path and for the final stopped state of Dispose.
func (a *Agent) setState(state models.State, errMsg string) {
	a.mu.Lock()
	a.writeAndPost(state, errMsg)
	a.unlockAndFlush()
}

// writeAndPost writes the status and queues its stateChange. Rewriting the
// current state only refreshes the error and timestamp; no event is queued
// since the state did not change. a.mu must be held.
func (a *Agent) writeAndPost(state models.State, errMsg string) {
	change := a.writeStatus(state, errMsg)
	if change.PreviousState == change.CurrentState {
		return
	}
	a.post(func() { a.emitStateChange(change) })
}

// writeStatus is the only place the status is mutated. a.mu must be held.
func (a *Agent) writeStatus(state models.State, errMsg string) models.StateChange {
	prev := a.status.State
	if state != models.Failed {
		errMsg = ""
	}
	a.status = models.AgentStatus{
		ID:          a.status.ID,
		State:       state,
		Error:       errMsg,
		LastUpdated: time.Now(),
	}
	return models.StateChange{PreviousState: prev, CurrentState: state, Error: errMsg}
}

func (a *Agent) emitStateChange(change models.StateChange) {
	ev := a.log.Info()
	if change.Error != "" {
		ev = a.log.Warn().Str("error", change.Error)
	}
	ev.Str(logger.PrevStateField, change.PreviousState.String()).
		Str(logger.StateField, change.CurrentState.String()).
		Msg("state changed")
	a.listeners.each("stateChange", func(l Listener) { l.OnStateChange(change) })
}

// post queues ev behind every event written before it. a.mu must be held.
func (a *Agent) post(ev func()) {
	a.outbox = append(a.outbox, ev)
}

// unlockAndFlush releases a.mu and delivers queued events, unless another
// goroutine is already delivering, in which case that one picks them up.
// Listeners run with a.mu released.
func (a *Agent) unlockAndFlush() {
	if a.emitting {
		a.mu.Unlock()
		return
	}
	a.emitting = true
	for len(a.outbox) > 0 {
		batch := a.outbox
		a.outbox = nil
		a.mu.Unlock()
		for _, ev := range batch {
			ev()
		}
		a.mu.Lock()
	}
	a.emitting = false
	a.mu.Unlock()
}
