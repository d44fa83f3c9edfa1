package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/asynkron/protoactor-go/actor"
	"github.com/google/uuid"
	zLog "github.com/rs/zerolog/log"
	render "go-taskagent/internal/agents/render/handler"
	worker "go-taskagent/internal/agents/worker/actor"
	"go-taskagent/internal/api"
	"go-taskagent/internal/config"
	"go-taskagent/internal/execution"
	"go-taskagent/internal/health"
	"go-taskagent/internal/lifecycle"
	"go-taskagent/internal/supervisor"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"golang.org/x/sync/errgroup"
	"log"
	"os/signal"
	"syscall"
)

func main() {
	log.Println("starting server")
	cfg, err := config.Load()
	if err != nil {
		log.Panicf("failed to load config: %v", err)
	}
	if err := logger.NewGlobal(cfg.Logging.Level, cfg.Logging.Pretty); err != nil {
		log.Panicf("failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		zLog.Fatal().Err(err).Msg("server crash")
	}
	zLog.Info().Msg("server exiting")
}

func run(ctx context.Context, cfg *config.Config) error {
	agentCfg, err := agentConfig(cfg.Agent)
	if err != nil {
		return err
	}

	reporter := health.NewReporter()
	reporter.Register("http", health.Static(health.Up))

	var renderer *supervisor.Supervisor
	var process render.Process
	if cfg.Renderer.Enabled {
		renderer = supervisor.New(supervisor.Config{
			Python:         cfg.Renderer.Python,
			Script:         cfg.Renderer.Script,
			WorkDir:        cfg.Renderer.WorkDir,
			Host:           cfg.Renderer.Host,
			Port:           cfg.Renderer.Port,
			ExtraArgs:      cfg.Renderer.ExtraArgs,
			StartupTimeout: cfg.Renderer.StartupTimeout,
			PollInterval:   cfg.Renderer.PollInterval,
		})
		process = renderer
		reporter.Register("renderer", health.Running(renderer))
	}
	baseURL := fmt.Sprintf("http://%s:%d", cfg.Renderer.Host, cfg.Renderer.Port)
	hooks := render.New(process, baseURL, nil)

	system := actor.NewActorSystem()
	dispatcher := worker.NewDispatcher(system.Root, agentCfg.Name)

	agent := lifecycle.New(agentCfg, hooks,
		lifecycle.WithDispatcher(dispatcher),
		lifecycle.WithWrapper(execution.New(cfg.Agent.TaskTimeout, cfg.Agent.MaxRetries)),
	)

	app, err := api.New(cfg.Server.Addr, agent, reporter, cfg.Outcomes.CacheSize)
	if err != nil {
		return err
	}

	if err := agent.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize agent: %w", err)
	}
	if err := agent.Start(ctx); err != nil {
		_ = agent.Dispose(context.Background())
		return fmt.Errorf("start agent: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Start)
	g.Go(func() error {
		<-gctx.Done()
		zLog.Info().Msg("shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := app.Stop(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := agent.Dispose(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		if err := dispatcher.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("worker: %w", err))
		}
		if renderer != nil {
			// already stopped by Dispose unless it failed part way
			if err := renderer.Stop(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

func agentConfig(c config.Agent) (models.AgentConfig, error) {
	typ, err := models.ParseAgentType(c.Type)
	if err != nil {
		return models.AgentConfig{}, err
	}
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	return models.AgentConfig{
		ID:         id,
		Name:       c.Name,
		Type:       typ,
		Parameters: c.Parameters,
	}, nil
}
