package models

import (
	"time"
)

type Task struct {
	ID       string     `json:"id"`
	Type     string     `json:"type"`
	Payload  any        `json:"payload"`
	Priority *int       `json:"priority,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

// EffectivePriority treats a missing priority as 0.
func (t Task) EffectivePriority() int {
	if t.Priority == nil {
		return 0
	}
	return *t.Priority
}

// Clone detaches the optional fields so a queued task cannot be changed
// through the caller's pointers.
func (t Task) Clone() Task {
	if t.Priority != nil {
		p := *t.Priority
		t.Priority = &p
	}
	if t.Deadline != nil {
		d := *t.Deadline
		t.Deadline = &d
	}
	return t
}

// event payloads

type StateChange struct {
	PreviousState State  `json:"previousState"`
	CurrentState  State  `json:"currentState"`
	Error         string `json:"error,omitempty"`
}

type TaskResult struct {
	Task   Task `json:"task"`
	Result any  `json:"result"`
}

type TaskFailure struct {
	Task  Task  `json:"task"`
	Error error `json:"-"`
}
