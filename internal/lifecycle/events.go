package lifecycle

import (
	"github.com/rs/zerolog/log"
	"go-taskagent/pkg/models"
	"sync"
)

// Listener observes agent events. Events reach listeners in the order the
// agent wrote them, one at a time, with no agent lock held, so callbacks may
// call back into the agent. Delivery happens on whichever goroutine finds no
// other delivery in progress, which is not always the one that caused the
// event; a slow callback delays every later event.
type Listener interface {
	OnStateChange(change models.StateChange)
	OnTaskQueued(task models.Task)
	OnTaskComplete(res models.TaskResult)
	OnTaskError(failure models.TaskFailure)
	OnTasksCleared(tasks []models.Task)
}

// ListenerFuncs adapts plain functions to Listener; nil fields are skipped.
type ListenerFuncs struct {
	StateChange  func(models.StateChange)
	TaskQueued   func(models.Task)
	TaskComplete func(models.TaskResult)
	TaskError    func(models.TaskFailure)
	TasksCleared func([]models.Task)
}

func (f ListenerFuncs) OnStateChange(c models.StateChange) {
	if f.StateChange != nil {
		f.StateChange(c)
	}
}

func (f ListenerFuncs) OnTaskQueued(t models.Task) {
	if f.TaskQueued != nil {
		f.TaskQueued(t)
	}
}

func (f ListenerFuncs) OnTaskComplete(r models.TaskResult) {
	if f.TaskComplete != nil {
		f.TaskComplete(r)
	}
}

func (f ListenerFuncs) OnTaskError(e models.TaskFailure) {
	if f.TaskError != nil {
		f.TaskError(e)
	}
}

func (f ListenerFuncs) OnTasksCleared(ts []models.Task) {
	if f.TasksCleared != nil {
		f.TasksCleared(ts)
	}
}

type subscription struct {
	id       uint64
	listener Listener
}

// listeners keeps subscribers in subscription order.
type listeners struct {
	mu     sync.RWMutex
	nextID uint64
	subs   []subscription
}

func (ls *listeners) add(l Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.nextID++
	id := ls.nextID
	ls.subs = append(ls.subs, subscription{id: id, listener: l})
	return func() { ls.remove(id) }
}

func (ls *listeners) remove(id uint64) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for i, s := range ls.subs {
		if s.id == id {
			ls.subs = append(ls.subs[:i:i], ls.subs[i+1:]...)
			return
		}
	}
}

// detach returns a func that removes every listener subscribed so far,
// leaving later subscriptions alone.
func (ls *listeners) detach() func() {
	ls.mu.RLock()
	ids := make(map[uint64]struct{}, len(ls.subs))
	for _, s := range ls.subs {
		ids[s.id] = struct{}{}
	}
	ls.mu.RUnlock()

	return func() {
		ls.mu.Lock()
		defer ls.mu.Unlock()
		kept := make([]subscription, 0, len(ls.subs))
		for _, s := range ls.subs {
			if _, ok := ids[s.id]; !ok {
				kept = append(kept, s)
			}
		}
		ls.subs = kept
	}
}

func (ls *listeners) len() int {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.subs)
}

func (ls *listeners) each(event string, fn func(Listener)) {
	ls.mu.RLock()
	subs := make([]subscription, len(ls.subs))
	copy(subs, ls.subs)
	ls.mu.RUnlock()

	for _, s := range subs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Str("event", event).Msg("listener panicked")
				}
			}()
			fn(s.listener)
		}()
	}
}

// NopListener can be embedded to observe only some events.
type NopListener struct{}

func (NopListener) OnStateChange(models.StateChange) {}
func (NopListener) OnTaskQueued(models.Task)         {}
func (NopListener) OnTaskComplete(models.TaskResult) {}
func (NopListener) OnTaskError(models.TaskFailure)   {}
func (NopListener) OnTasksCleared([]models.Task)     {}
