package task

import (
	"errors"
	"go-taskagent/pkg/models"
	"testing"
	"time"
)

func priority(p int) *int { return &p }

func TestValidate_MissingFields(t *testing.T) {
	v := NewValidator()

	cases := []models.Task{
		{Type: "render"},
		{ID: "t1"},
		{},
	}
	for _, c := range cases {
		err := v.Validate(c)
		if !errors.Is(err, models.ErrInvalidTask) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidTask", c, err)
		}
	}
}

func TestValidate_Deadline(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	v := &Validator{now: func() time.Time { return now }}

	past := now.Add(-time.Second)
	if err := v.Validate(models.Task{ID: "a", Type: "x", Deadline: &past}); !errors.Is(err, models.ErrInvalidTask) {
		t.Fatalf("expected ErrInvalidTask for past deadline, got %v", err)
	}

	future := now.Add(time.Minute)
	if err := v.Validate(models.Task{ID: "a", Type: "x", Deadline: &future}); err != nil {
		t.Fatalf("unexpected error for future deadline: %v", err)
	}
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := NewQueue(nil)
	for i, p := range []int{1, 5, 3} {
		task := models.Task{ID: string(rune('a' + i)), Type: "x", Priority: priority(p)}
		if err := q.Admit(task); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}

	var got []int
	for {
		task, ok := q.DrainNext()
		if !ok {
			break
		}
		got = append(got, task.EffectivePriority())
	}
	want := []int{5, 3, 1}
	if len(got) != len(want) {
		t.Fatalf("drained %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("drained %v, want %v", got, want)
		}
	}
}

func TestQueue_StableForEqualPriority(t *testing.T) {
	q := NewQueue(nil)
	ids := []string{"first", "second", "third"}
	for _, id := range ids {
		if err := q.Admit(models.Task{ID: id, Type: "x"}); err != nil {
			t.Fatalf("admit: %v", err)
		}
	}
	// missing priority counts as 0, so a negative one goes last
	if err := q.Admit(models.Task{ID: "low", Type: "x", Priority: priority(-1)}); err != nil {
		t.Fatalf("admit: %v", err)
	}

	for _, want := range append(ids, "low") {
		task, ok := q.DrainNext()
		if !ok || task.ID != want {
			t.Fatalf("DrainNext = %q, %v; want %q", task.ID, ok, want)
		}
	}
	if _, ok := q.DrainNext(); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueue_RejectsInvalid(t *testing.T) {
	q := NewQueue(nil)
	if err := q.Admit(models.Task{ID: "no-type"}); err == nil {
		t.Fatal("expected validation error")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}

func TestQueue_AdmitCopiesTask(t *testing.T) {
	q := NewQueue(nil)
	p := 2
	task := models.Task{ID: "a", Type: "x", Priority: &p}
	if err := q.Admit(task); err != nil {
		t.Fatalf("admit: %v", err)
	}
	p = 99

	got, _ := q.DrainNext()
	if got.EffectivePriority() != 2 {
		t.Errorf("priority = %d, want 2 (queued task must not alias caller)", got.EffectivePriority())
	}
}

func TestQueue_Clear(t *testing.T) {
	q := NewQueue(nil)
	_ = q.Admit(models.Task{ID: "a", Type: "x"})
	_ = q.Admit(models.Task{ID: "b", Type: "x", Priority: priority(4)})

	snap := q.Snapshot()
	discarded := q.Clear()
	if len(discarded) != 2 || discarded[0].ID != "b" {
		t.Fatalf("Clear = %+v", discarded)
	}
	if q.Len() != 0 {
		t.Errorf("Len after Clear = %d", q.Len())
	}
	if len(snap) != 2 {
		t.Errorf("snapshot changed after Clear: %+v", snap)
	}
}

func TestDrainNext_ReleasesPoppedTask(t *testing.T) {
	q := NewQueue(nil)
	if err := q.Admit(models.Task{ID: "big", Type: "render", Payload: make([]byte, 1024)}); err != nil {
		t.Fatal(err)
	}
	backing := q.tasks

	got, ok := q.DrainNext()
	if !ok || got.ID != "big" || got.Payload == nil {
		t.Fatalf("DrainNext = %+v, %v", got, ok)
	}
	if backing[0].ID != "" || backing[0].Payload != nil {
		t.Fatalf("popped slot still holds %+v", backing[0])
	}
}
