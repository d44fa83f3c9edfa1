package models

import "fmt"

type State string

const (
	Initializing State = "initializing"
	Idle         State = "idle"
	Running      State = "running"
	Failed       State = "error" // recoverable only through initialize
	Stopped      State = "stopped"
)

var transitions = map[State][]State{
	Initializing: {Idle, Failed},
	Idle:         {Running, Failed},
	Running:      {Stopped, Failed},
	Stopped:      {Idle, Failed},
	Failed:       {Idle},
}

// AllStates lists every lifecycle state in declaration order.
func AllStates() []State {
	return []State{Initializing, Idle, Running, Failed, Stopped}
}

// CanTransition reports whether the lifecycle table allows from -> to.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) IsValid() bool {
	for _, v := range AllStates() {
		if v == s {
			return true
		}
	}
	return false
}

// UnmarshalText rejects names outside the lifecycle.
func (s *State) UnmarshalText(b []byte) error {
	v := State(b)
	if !v.IsValid() {
		return fmt.Errorf("unknown state %q", b)
	}
	*s = v
	return nil
}

func (s State) String() string {
	return string(s)
}
