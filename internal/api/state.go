package api

import (
	"github.com/hashicorp/golang-lru/v2"
	"go-taskagent/internal/lifecycle"
	"go-taskagent/pkg/models"
	"time"
)

const (
	OutcomeQueued    = "queued"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCleared   = "cleared"
)

type Outcome struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	Result    any       `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// outcomeCache remembers the latest outcome of recently seen tasks. The
// oldest entries are evicted once size is reached.
type outcomeCache struct {
	lifecycle.NopListener
	outcomes *lru.Cache[string, Outcome]
}

func newOutcomeCache(size int) (*outcomeCache, error) {
	c, err := lru.New[string, Outcome](size)
	if err != nil {
		return nil, err
	}
	return &outcomeCache{outcomes: c}, nil
}

func (c *outcomeCache) get(id string) (Outcome, bool) {
	return c.outcomes.Get(id)
}

func (c *outcomeCache) set(t models.Task, status string, result any, errMsg string) {
	c.outcomes.Add(t.ID, Outcome{
		ID:        t.ID,
		Type:      t.Type,
		Status:    status,
		Result:    result,
		Error:     errMsg,
		UpdatedAt: time.Now(),
	})
}

func (c *outcomeCache) OnTaskQueued(t models.Task) {
	c.set(t, OutcomeQueued, nil, "")
}

func (c *outcomeCache) OnTaskComplete(r models.TaskResult) {
	c.set(r.Task, OutcomeCompleted, r.Result, "")
}

func (c *outcomeCache) OnTaskError(f models.TaskFailure) {
	msg := ""
	if f.Error != nil {
		msg = f.Error.Error()
	}
	c.set(f.Task, OutcomeFailed, nil, msg)
}

func (c *outcomeCache) OnTasksCleared(ts []models.Task) {
	for _, t := range ts {
		c.set(t, OutcomeCleared, nil, "")
	}
}
