package logger

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"os"
	"time"
)

const (
	AgentIDField   = "agent"
	AgentNameField = "agent_name"
	TaskField      = "task"
	TaskTypeField  = "task_type"
	StateField     = "state"
	PrevStateField = "previous_state"
	AttemptField   = "attempt"
	PriorityField  = "priority"
	ComponentField = "component"
	ActorIDField   = "actor_id"
	ConnIDField    = "conn"
)

func NewGlobal(level string, pretty bool) error {
	l, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}

	zerolog.SetGlobalLevel(l)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return nil
}

// Component returns a sub-logger tagged with the component name.
func Component(name string) zerolog.Logger {
	return log.With().Str(ComponentField, name).Logger()
}
