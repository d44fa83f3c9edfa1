package lifecycle

import (
	"context"
)

// Dispatcher decides where a queue drain runs. The agent asks for a drain
// after every admission and after a successful start; it never polls.
type Dispatcher interface {
	Dispatch(ctx context.Context, drain func(context.Context))
}

type DispatcherFunc func(ctx context.Context, drain func(context.Context))

func (f DispatcherFunc) Dispatch(ctx context.Context, drain func(context.Context)) {
	f(ctx, drain)
}

// Inline drains on the caller's goroutine: AddTask and Start return once the
// queue is empty or the agent has left the running state.
var Inline Dispatcher = DispatcherFunc(func(ctx context.Context, drain func(context.Context)) {
	drain(ctx)
})
