package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Addr != ":3000" {
		t.Errorf("expected addr :3000, got %s", cfg.Server.Addr)
	}
	if cfg.Agent.TaskTimeout != 5*time.Second || cfg.Agent.MaxRetries != 3 {
		t.Errorf("expected 5s timeout and 3 retries, got %v / %d", cfg.Agent.TaskTimeout, cfg.Agent.MaxRetries)
	}
	if cfg.Renderer.Port != 8188 || cfg.Renderer.StartupTimeout != 30*time.Second || cfg.Renderer.PollInterval != time.Second {
		t.Errorf("unexpected renderer defaults %+v", cfg.Renderer)
	}
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  addr: ":9090"
agent:
  name: "batch"
  task_timeout: 2s
  parameters:
    model: sdxl
renderer:
  port: 9000
  extra_args: ["--lowvram"]
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Addr != ":9090" {
		t.Errorf("expected addr :9090, got %s", cfg.Server.Addr)
	}
	if cfg.Agent.Name != "batch" || cfg.Agent.TaskTimeout != 2*time.Second {
		t.Errorf("unexpected agent %+v", cfg.Agent)
	}
	if cfg.Agent.Parameters["model"] != "sdxl" {
		t.Errorf("expected parameter model=sdxl, got %v", cfg.Agent.Parameters)
	}
	if cfg.Renderer.Port != 9000 || len(cfg.Renderer.ExtraArgs) != 1 {
		t.Errorf("unexpected renderer %+v", cfg.Renderer)
	}
	// unchanged fields keep defaults
	if cfg.Renderer.Host != "localhost" {
		t.Errorf("expected default host, got %s", cfg.Renderer.Host)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestLoadYAMLInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("TASKAGENT_ADDR", ":7070")
	t.Setenv("TASKAGENT_LOG_LEVEL", "warn")
	t.Setenv("TASKAGENT_TASK_TIMEOUT", "1m")
	t.Setenv("TASKAGENT_MAX_RETRIES", "0")
	t.Setenv("TASKAGENT_RENDERER_ENABLED", "false")
	t.Setenv("TASKAGENT_RENDERER_EXTRA_ARGS", "--cpu, --preview-method auto")

	loadEnv(&cfg)

	if cfg.Server.Addr != ":7070" {
		t.Errorf("expected addr :7070, got %s", cfg.Server.Addr)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
	if cfg.Agent.TaskTimeout != time.Minute || cfg.Agent.MaxRetries != 0 {
		t.Errorf("unexpected agent %+v", cfg.Agent)
	}
	if cfg.Renderer.Enabled {
		t.Error("expected renderer disabled")
	}
	if strings.Join(cfg.Renderer.ExtraArgs, "|") != "--cpu|--preview-method auto" {
		t.Errorf("unexpected extra args %q", cfg.Renderer.ExtraArgs)
	}
}

func TestEnvInvalidValuesIgnored(t *testing.T) {
	cfg := Defaults()
	t.Setenv("TASKAGENT_MAX_RETRIES", "many")
	t.Setenv("TASKAGENT_TASK_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Agent.MaxRetries != 3 || cfg.Agent.TaskTimeout != 5*time.Second {
		t.Errorf("invalid env values should be ignored, got %+v", cfg.Agent)
	}
}

func TestLoad_ConfigFileEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(path, []byte("agent:\n  name: from-file\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigFileEnv, path)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Agent.Name != "from-file" {
		t.Errorf("expected name from-file, got %s", cfg.Agent.Name)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"empty addr":       func(c *Config) { c.Server.Addr = "" },
		"bad agent type":   func(c *Config) { c.Agent.Type = "robot" },
		"zero timeout":     func(c *Config) { c.Agent.TaskTimeout = 0 },
		"negative retries": func(c *Config) { c.Agent.MaxRetries = -1 },
		"zero cache":       func(c *Config) { c.Outcomes.CacheSize = 0 },
		"bad port":         func(c *Config) { c.Renderer.Port = 70000 },
		"zero poll":        func(c *Config) { c.Renderer.PollInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Defaults()
			mutate(&cfg)
			if err := validate(&cfg); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := Defaults()
	cfg.Renderer.Enabled = false
	cfg.Renderer.Port = 0
	if err := validate(&cfg); err != nil {
		t.Errorf("renderer settings ignored when disabled, got %v", err)
	}
}
