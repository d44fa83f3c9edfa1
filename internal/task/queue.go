package task

import (
	"go-taskagent/pkg/models"
	"sort"
)

// Queue holds admitted tasks in descending priority, ties kept in admission
// order. It is not safe for concurrent use; the agent serializes access.
type Queue struct {
	validator *Validator
	tasks     []models.Task
}

func NewQueue(v *Validator) *Queue {
	if v == nil {
		v = NewValidator()
	}
	return &Queue{
		validator: v,
		tasks:     make([]models.Task, 0),
	}
}

// Admit validates t, appends a copy and re-sorts the whole queue.
func (q *Queue) Admit(t models.Task) error {
	if err := q.validator.Validate(t); err != nil {
		return err
	}
	q.tasks = append(q.tasks, t.Clone())
	sort.SliceStable(q.tasks, func(i, j int) bool {
		return q.tasks[i].EffectivePriority() > q.tasks[j].EffectivePriority()
	})
	return nil
}

func (q *Queue) DrainNext() (models.Task, bool) {
	if len(q.tasks) == 0 {
		return models.Task{}, false
	}
	t := q.tasks[0]
	q.tasks[0] = models.Task{} // release the payload
	q.tasks = q.tasks[1:]
	return t, true
}

// Clear empties the queue and hands back what was discarded.
func (q *Queue) Clear() []models.Task {
	discarded := q.tasks
	q.tasks = make([]models.Task, 0)
	return discarded
}

func (q *Queue) Len() int {
	return len(q.tasks)
}

func (q *Queue) Snapshot() []models.Task {
	out := make([]models.Task, len(q.tasks))
	copy(out, q.tasks)
	return out
}
