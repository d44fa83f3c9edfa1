package messages

import (
	"context"
)

// DrainQueue asks the worker to run Drain on its own goroutine.
type DrainQueue struct {
	Ctx   context.Context
	Drain func(context.Context)
}

type GetStatus struct{}

type WorkerStatus struct {
	Name   string
	Drains int
}
