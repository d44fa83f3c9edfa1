// Package task admits tasks into the agent: validation at submission time and
// the priority-ordered queue that holds them until they run.
package task

import (
	"go-taskagent/pkg/models"
	"time"
)

type Validator struct {
	now func() time.Time
}

func NewValidator() *Validator {
	return &Validator{now: time.Now}
}

// Validate rejects a task missing its id or type, or whose deadline has
// already passed. The deadline is only checked here: a task that expires
// while waiting in the queue still runs.
func (v *Validator) Validate(t models.Task) error {
	if t.ID == "" || t.Type == "" {
		return models.NewError(models.ErrInvalidTask, "validate", "missing required fields")
	}
	if t.Deadline != nil && t.Deadline.Before(v.now()) {
		return models.NewError(models.ErrInvalidTask, "validate", "deadline has passed for task %s", t.ID)
	}
	return nil
}
