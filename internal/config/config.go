// Package config loads the service configuration.
// Precedence: defaults < YAML file < environment variables.
package config

import (
	"time"
)

type Config struct {
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
	Agent    Agent    `yaml:"agent"`
	Renderer Renderer `yaml:"renderer"`
	Outcomes Outcomes `yaml:"outcomes"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Agent configures the lifecycle agent. An empty ID is replaced by a random
// uuid at start-up.
type Agent struct {
	ID          string         `yaml:"id"`
	Name        string         `yaml:"name"`
	Type        string         `yaml:"type"`
	TaskTimeout time.Duration  `yaml:"task_timeout"`
	MaxRetries  int            `yaml:"max_retries"`
	Parameters  map[string]any `yaml:"parameters"`
}

// Renderer configures the supervised rendering backend process.
type Renderer struct {
	Enabled        bool          `yaml:"enabled"`
	Python         string        `yaml:"python"`
	Script         string        `yaml:"script"`
	WorkDir        string        `yaml:"work_dir"`
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	ExtraArgs      []string      `yaml:"extra_args"`
	StartupTimeout time.Duration `yaml:"startup_timeout"`
	PollInterval   time.Duration `yaml:"poll_interval"`
}

// Outcomes sizes the in-memory cache of finished task outcomes.
type Outcomes struct {
	CacheSize int `yaml:"cache_size"`
}

func Defaults() Config {
	return Config{
		Server: Server{
			Addr:            ":3000",
			ShutdownTimeout: 10 * time.Second,
		},
		Logging: Logging{
			Level:  "info",
			Pretty: true,
		},
		Agent: Agent{
			Name:        "render-agent",
			Type:        "task",
			TaskTimeout: 5 * time.Second,
			MaxRetries:  3,
		},
		Renderer: Renderer{
			Enabled:        true,
			Python:         "python",
			Script:         "comfyui/main.py",
			WorkDir:        "comfyui",
			Host:           "localhost",
			Port:           8188,
			StartupTimeout: 30 * time.Second,
			PollInterval:   time.Second,
		},
		Outcomes: Outcomes{
			CacheSize: 1024,
		},
	}
}
