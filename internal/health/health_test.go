package health

import (
	"context"
	"errors"
	"testing"
)

type fakeProcess bool

func (f fakeProcess) IsRunning() bool { return bool(f) }

func TestAggregate(t *testing.T) {
	cases := []struct {
		name string
		in   []Status
		want Status
	}{
		{"all up", []Status{Up, Up}, Up},
		{"one down", []Status{Up, Down}, Down},
		{"down wins over degraded", []Status{Degraded, Down}, Down},
		{"degraded", []Status{Up, Degraded}, Degraded},
		{"empty", nil, Up},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			services := map[string]ServiceStatus{}
			for i, s := range c.in {
				services[string(rune('a'+i))] = ServiceStatus{Status: s}
			}
			if got := Aggregate(services); got != c.want {
				t.Errorf("Aggregate = %s, want %s", got, c.want)
			}
		})
	}
}

func TestReporter_Report(t *testing.T) {
	r := NewReporter()
	r.Register("renderer", Running(fakeProcess(false)))
	r.Register("http", Static(Up))

	rep, err := r.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.Status != Down {
		t.Errorf("status = %s, want down", rep.Status)
	}
	if rep.Services["renderer"].Status != Down || rep.Services["http"].Status != Up {
		t.Errorf("unexpected services %+v", rep.Services)
	}

	r.Register("renderer", Running(fakeProcess(true)))
	rep, _ = r.Report(context.Background())
	if rep.Status != Up {
		t.Errorf("status = %s, want up", rep.Status)
	}
}

func TestReporter_CheckErrorAndPanic(t *testing.T) {
	r := NewReporter()
	r.Register("failing", func(context.Context) (Status, error) { return Up, errors.New("refused") })
	r.Register("broken", func(context.Context) (Status, error) { panic("bug") })

	rep, err := r.Report(context.Background())
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	failing := rep.Services["failing"]
	if failing.Status != Down || failing.Details == nil || failing.Details.Error != "refused" {
		t.Errorf("failing = %+v, want down with error", failing)
	}
	if rep.Services["broken"].Status != Down {
		t.Errorf("panicking check should report down")
	}
}

func TestReporter_ContextDone(t *testing.T) {
	r := NewReporter()
	r.Register("http", Static(Up))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Report(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
