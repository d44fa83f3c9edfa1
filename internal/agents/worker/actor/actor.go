// Package actor runs an agent's queue drains on a single protoactor actor.
// The mailbox serializes drains, so the agent keeps one logical worker no
// matter how many goroutines submit tasks.
package actor

import (
	"context"
	"fmt"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/rs/zerolog/log"
	"go-taskagent/internal/lifecycle"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/messages"
	"time"
)

type Worker struct {
	name   string
	drains int
}

func New(name string) actor.Producer {
	return func() actor.Actor {
		return &Worker{name: name}
	}
}

func (w *Worker) Receive(ac actor.Context) {
	l := log.With().Fields(map[string]interface{}{logger.ActorIDField: ac.Self().GetId(), logger.AgentNameField: w.name}).Logger()
	switch msg := ac.Message().(type) {
	case *actor.Started:
		l.Debug().Msg("starting actor")
	case *actor.Stopping:
		l.Debug().Msg("stopping actor")
	case *actor.Stopped:
		l.Debug().Msg("stopped actor")
	case *actor.Restarting:
		l.Debug().Msg("restarting actor")
	case messages.DrainQueue:
		w.drains++
		l.Debug().Int("drain", w.drains).Msg("draining queue")
		msg.Drain(msg.Ctx)
	case messages.GetStatus:
		ac.Respond(messages.WorkerStatus{Name: w.name, Drains: w.drains})
	default:
		l.Warn().Msgf("unknown message: %v", msg)
	}
}

// Dispatcher hands drains to a worker actor. Dispatch returns immediately;
// the drain runs detached from the caller's cancellation so an HTTP request
// ending does not cut a drain short.
type Dispatcher struct {
	root *actor.RootContext
	pid  *actor.PID
}

var _ lifecycle.Dispatcher = (*Dispatcher)(nil)

func NewDispatcher(root *actor.RootContext, name string) *Dispatcher {
	decider := func(reason interface{}) actor.Directive {
		log.Error().Str(logger.AgentNameField, name).Msgf("worker failed, restarting. reason: %v", reason)
		return actor.RestartDirective
	}
	strategy := actor.NewOneForOneStrategy(10, 10000, decider)

	props := actor.PropsFromProducer(New(name), actor.WithSupervisor(strategy))
	return &Dispatcher{
		root: root,
		pid:  root.Spawn(props),
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, drain func(context.Context)) {
	d.root.Send(d.pid, messages.DrainQueue{Ctx: context.WithoutCancel(ctx), Drain: drain})
}

// Flush waits until every drain dispatched before the call has finished.
func (d *Dispatcher) Flush(timeout time.Duration) (messages.WorkerStatus, error) {
	res, err := d.root.RequestFuture(d.pid, messages.GetStatus{}, timeout).Result()
	if err != nil {
		return messages.WorkerStatus{}, fmt.Errorf("flush: %w", err)
	}
	status, ok := res.(messages.WorkerStatus)
	if !ok {
		return messages.WorkerStatus{}, fmt.Errorf("flush: unexpected response %T", res)
	}
	return status, nil
}

// Stop waits for the drain in progress, if any, and stops the actor.
func (d *Dispatcher) Stop() error {
	return d.root.StopFuture(d.pid).Wait()
}
