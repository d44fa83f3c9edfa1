// Package health builds the service health document from named checks.
package health

import (
	"context"
	"fmt"
	"github.com/rs/zerolog/log"
	"sort"
	"sync"
	"time"
)

type Status string

const (
	Up       Status = "up"
	Down     Status = "down"
	Degraded Status = "degraded"
)

type Details struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ServiceStatus struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Details   *Details  `json:"details,omitempty"`
}

type Report struct {
	Status    Status                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Services  map[string]ServiceStatus `json:"services"`
}

// Check probes one service. A returned error marks the service down.
type Check func(ctx context.Context) (Status, error)

// Running adapts anything that can say whether it is running.
func Running(r interface{ IsRunning() bool }) Check {
	return func(context.Context) (Status, error) {
		if r.IsRunning() {
			return Up, nil
		}
		return Down, nil
	}
}

// Static always reports s.
func Static(s Status) Check {
	return func(context.Context) (Status, error) { return s, nil }
}

type Reporter struct {
	mu     sync.RWMutex
	checks map[string]Check
	now    func() time.Time
}

func NewReporter() *Reporter {
	return &Reporter{
		checks: map[string]Check{},
		now:    time.Now,
	}
}

func (r *Reporter) Register(name string, check Check) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checks[name] = check
}

// Report runs every check and aggregates the results. It only fails when
// ctx is done before the checks complete.
func (r *Reporter) Report(ctx context.Context) (Report, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	checks := make(map[string]Check, len(r.checks))
	for k, v := range r.checks {
		checks[k] = v
	}
	r.mu.RUnlock()
	sort.Strings(names)

	services := make(map[string]ServiceStatus, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return Report{}, fmt.Errorf("health report: %w", err)
		}
		services[name] = r.run(ctx, name, checks[name])
	}

	return Report{
		Status:    Aggregate(services),
		Timestamp: r.now(),
		Services:  services,
	}, nil
}

func (r *Reporter) run(ctx context.Context, name string, check Check) (st ServiceStatus) {
	st.Timestamp = r.now()
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("service", name).Msg("health check panicked")
			st.Status = Down
			st.Details = &Details{Error: fmt.Sprint(rec)}
		}
	}()

	status, err := check(ctx)
	if err != nil {
		st.Status = Down
		st.Details = &Details{Error: err.Error()}
		return st
	}
	st.Status = status
	return st
}

// Aggregate is up when every service is up, down when any is down and
// degraded otherwise. No services at all counts as up.
func Aggregate(services map[string]ServiceStatus) Status {
	allUp := true
	for _, s := range services {
		if s.Status == Down {
			return Down
		}
		if s.Status != Up {
			allUp = false
		}
	}
	if allUp {
		return Up
	}
	return Degraded
}
