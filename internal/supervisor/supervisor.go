// Package supervisor runs the rendering backend as a child process and
// waits for it to accept connections before reporting it started.
package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go-taskagent/pkg/logger"
	"net"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"
)

const (
	DefaultPollInterval   = time.Second
	DefaultStartupTimeout = 30 * time.Second

	stopGrace = 5 * time.Second
)

type Config struct {
	Python         string
	Script         string
	WorkDir        string
	Host           string
	Port           int
	ExtraArgs      []string
	StartupTimeout time.Duration
	PollInterval   time.Duration
}

// Probe reports whether the started process is ready to serve.
type Probe func(ctx context.Context) bool

// StartupError is returned by Start when the process could not be launched
// or did not become ready in time.
type StartupError struct {
	Err error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("failed to start renderer: %v", e.Err)
}

func (e *StartupError) Unwrap() error {
	return e.Err
}

type Supervisor struct {
	cfg   Config
	probe Probe
	log   zerolog.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

type Option func(*Supervisor)

func WithProbe(p Probe) Option {
	return func(s *Supervisor) { s.probe = p }
}

func New(cfg Config, opts ...Option) *Supervisor {
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = DefaultStartupTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	s := &Supervisor{
		cfg: cfg,
		log: logger.Component("renderer"),
	}
	s.probe = s.dialProbe
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Addr is the host:port the renderer listens on.
func (s *Supervisor) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Start launches the process and blocks until the probe succeeds, the
// process exits, the startup timeout elapses or ctx is done. Calling it
// while the process is running is a no-op.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return nil
	}

	instance := uuid.NewString()
	l := s.log.With().Str("instance", instance).Logger()

	args := append([]string{s.cfg.Script, "--port", strconv.Itoa(s.cfg.Port), "--host", s.cfg.Host}, s.cfg.ExtraArgs...)
	cmd := exec.Command(s.cfg.Python, args...)
	cmd.Dir = s.cfg.WorkDir
	cmd.Stdout = &lineWriter{log: l, level: zerolog.InfoLevel}
	cmd.Stderr = &lineWriter{log: l, level: zerolog.ErrorLevel}
	cmd.WaitDelay = stopGrace

	if err := cmd.Start(); err != nil {
		s.mu.Unlock()
		return &StartupError{Err: err}
	}
	done := make(chan struct{})
	s.cmd, s.done = cmd, done
	s.mu.Unlock()

	l.Info().Int("pid", cmd.Process.Pid).Str("addr", s.Addr()).Msg("renderer process started")
	go s.wait(cmd, done, l)

	if err := s.waitReady(ctx, done); err != nil {
		_ = s.Stop(context.Background())
		return &StartupError{Err: err}
	}
	l.Info().Msg("renderer ready")
	return nil
}

func (s *Supervisor) waitReady(ctx context.Context, done <-chan struct{}) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	timeout := time.NewTimer(s.cfg.StartupTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ticker.C:
			if s.probe(ctx) {
				return nil
			}
		case <-done:
			return errors.New("process exited before becoming ready")
		case <-timeout.C:
			return errors.New("server startup timeout")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// wait reaps the process and clears the running state once it exits.
func (s *Supervisor) wait(cmd *exec.Cmd, done chan struct{}, l zerolog.Logger) {
	err := cmd.Wait()
	l.Info().Err(err).Int("code", cmd.ProcessState.ExitCode()).Msg("renderer process exited")

	s.mu.Lock()
	if s.cmd == cmd {
		s.cmd, s.done = nil, nil
	}
	s.mu.Unlock()
	close(done)
}

// Stop sends SIGTERM and kills the process if it is still alive after a
// grace period or when ctx is done. Stopping a stopped supervisor is a no-op.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		s.log.Warn().Err(err).Msg("could not signal renderer")
	}

	grace := time.NewTimer(stopGrace)
	defer grace.Stop()
	select {
	case <-done:
		return nil
	case <-grace.C:
	case <-ctx.Done():
	}

	s.log.Warn().Msg("renderer did not exit, killing")
	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill renderer: %w", err)
	}
	<-done
	return nil
}

// IsRunning reports whether the child process is alive. It has no side
// effects.
func (s *Supervisor) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

func (s *Supervisor) dialProbe(ctx context.Context) bool {
	if !s.IsRunning() {
		return false
	}
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", s.Addr())
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// lineWriter forwards process output to the logger one line at a time.
type lineWriter struct {
	log   zerolog.Logger
	level zerolog.Level
	buf   bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf.Write(p)
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(bytes.TrimRight(w.buf.Next(i+1), "\r\n"))
		if line != "" {
			w.log.WithLevel(w.level).Msg(line)
		}
	}
	return len(p), nil
}
