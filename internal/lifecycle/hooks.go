package lifecycle

import (
	"context"
	"go-taskagent/pkg/models"
)

// Hooks is the agent-specific behavior the lifecycle calls into. OnStart and
// OnStop run after the state has already moved; OnInitialize and OnDispose
// run before.
type Hooks interface {
	OnInitialize(ctx context.Context) error
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	OnExecute(ctx context.Context, task models.Task) (any, error)
	OnDispose(ctx context.Context) error
}

// NopHooks can be embedded to implement only the hooks that matter.
type NopHooks struct{}

func (NopHooks) OnInitialize(context.Context) error { return nil }
func (NopHooks) OnStart(context.Context) error      { return nil }
func (NopHooks) OnStop(context.Context) error       { return nil }
func (NopHooks) OnDispose(context.Context) error    { return nil }

func (NopHooks) OnExecute(context.Context, models.Task) (any, error) {
	return nil, nil
}
