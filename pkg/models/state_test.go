package models

import (
	"encoding/json"
	"testing"
)

func TestCanTransition_Table(t *testing.T) {
	allowed := map[State]map[State]bool{
		Initializing: {Idle: true, Failed: true},
		Idle:         {Running: true, Failed: true},
		Running:      {Stopped: true, Failed: true},
		Stopped:      {Idle: true, Failed: true},
		Failed:       {Idle: true},
	}
	for _, from := range AllStates() {
		for _, to := range AllStates() {
			want := allowed[from][to]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestState_IsValid(t *testing.T) {
	for _, s := range AllStates() {
		if !s.IsValid() {
			t.Errorf("%s not valid", s)
		}
	}
	for _, s := range []State{"", "paused", "Failed"} {
		if s.IsValid() {
			t.Errorf("%q reported valid", s)
		}
	}
	if Failed.String() != "error" {
		t.Errorf("Failed = %q, want error", Failed)
	}
}

func TestState_UnmarshalJSON(t *testing.T) {
	var st AgentStatus
	if err := json.Unmarshal([]byte(`{"id":"a1","state":"error"}`), &st); err != nil {
		t.Fatal(err)
	}
	if st.State != Failed {
		t.Fatalf("state = %s, want error", st.State)
	}
	if err := json.Unmarshal([]byte(`{"id":"a1","state":"paused"}`), &st); err == nil {
		t.Fatal("unknown state accepted")
	}
}
