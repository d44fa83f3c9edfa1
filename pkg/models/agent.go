package models

import (
	"fmt"
	"time"
)

type AgentType string

const (
	WorkflowAgent AgentType = "workflow"
	ServiceAgent  AgentType = "service"
	TaskAgent     AgentType = "task"
	MonitorAgent  AgentType = "monitor"
)

func ParseAgentType(s string) (AgentType, error) {
	switch t := AgentType(s); t {
	case WorkflowAgent, ServiceAgent, TaskAgent, MonitorAgent:
		return t, nil
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}

type AgentConfig struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Type       AgentType      `json:"type"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Clone returns a copy whose Parameters map is not shared with c.
func (c AgentConfig) Clone() AgentConfig {
	if c.Parameters == nil {
		return c
	}
	params := make(map[string]any, len(c.Parameters))
	for k, v := range c.Parameters {
		params[k] = v
	}
	c.Parameters = params
	return c
}

type AgentStatus struct {
	ID          string    `json:"id"`
	State       State     `json:"state"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"lastUpdated"`
}
