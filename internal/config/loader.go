package config

import (
	"errors"
	"fmt"
	"go-taskagent/pkg/models"
	"gopkg.in/yaml.v3"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultConfigFile = "taskagent.yaml"
	// ConfigFileEnv overrides DefaultConfigFile.
	ConfigFileEnv = "TASKAGENT_CONFIG"
)

// Load reads the file named by TASKAGENT_CONFIG, or DefaultConfigFile when
// unset. A missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if p := os.Getenv(ConfigFileEnv); p != "" {
		path = p
	}
	return LoadFrom(path)
}

func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}
	return &cfg, nil
}

func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// loadEnv overlays non-empty environment variables onto cfg.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "TASKAGENT_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "TASKAGENT_SHUTDOWN_TIMEOUT")

	setString(&cfg.Logging.Level, "TASKAGENT_LOG_LEVEL")
	setBool(&cfg.Logging.Pretty, "TASKAGENT_LOG_PRETTY")

	setString(&cfg.Agent.ID, "TASKAGENT_AGENT_ID")
	setString(&cfg.Agent.Name, "TASKAGENT_AGENT_NAME")
	setString(&cfg.Agent.Type, "TASKAGENT_AGENT_TYPE")
	setDuration(&cfg.Agent.TaskTimeout, "TASKAGENT_TASK_TIMEOUT")
	setInt(&cfg.Agent.MaxRetries, "TASKAGENT_MAX_RETRIES")

	setBool(&cfg.Renderer.Enabled, "TASKAGENT_RENDERER_ENABLED")
	setString(&cfg.Renderer.Python, "TASKAGENT_RENDERER_PYTHON")
	setString(&cfg.Renderer.Script, "TASKAGENT_RENDERER_SCRIPT")
	setString(&cfg.Renderer.WorkDir, "TASKAGENT_RENDERER_WORK_DIR")
	setString(&cfg.Renderer.Host, "TASKAGENT_RENDERER_HOST")
	setInt(&cfg.Renderer.Port, "TASKAGENT_RENDERER_PORT")
	setList(&cfg.Renderer.ExtraArgs, "TASKAGENT_RENDERER_EXTRA_ARGS")
	setDuration(&cfg.Renderer.StartupTimeout, "TASKAGENT_RENDERER_STARTUP_TIMEOUT")
	setDuration(&cfg.Renderer.PollInterval, "TASKAGENT_RENDERER_POLL_INTERVAL")

	setInt(&cfg.Outcomes.CacheSize, "TASKAGENT_OUTCOME_CACHE_SIZE")
}

func validate(cfg *Config) error {
	if cfg.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be > 0")
	}
	if _, err := models.ParseAgentType(cfg.Agent.Type); err != nil {
		return fmt.Errorf("agent.type: %w", err)
	}
	if cfg.Agent.TaskTimeout <= 0 {
		return errors.New("agent.task_timeout must be > 0")
	}
	if cfg.Agent.MaxRetries < 0 {
		return errors.New("agent.max_retries must be >= 0")
	}
	if cfg.Outcomes.CacheSize < 1 {
		return errors.New("outcomes.cache_size must be >= 1")
	}
	if cfg.Renderer.Enabled {
		if cfg.Renderer.Port < 1 || cfg.Renderer.Port > 65535 {
			return fmt.Errorf("renderer.port %d out of range", cfg.Renderer.Port)
		}
		if cfg.Renderer.StartupTimeout <= 0 || cfg.Renderer.PollInterval <= 0 {
			return errors.New("renderer.startup_timeout and renderer.poll_interval must be > 0")
		}
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList splits a comma-separated value.
func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}
