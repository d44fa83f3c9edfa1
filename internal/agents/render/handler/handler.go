// Package handler implements the lifecycle hooks of the render agent: the
// agent owns the renderer process and submits workflows to it.
package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go-taskagent/internal/lifecycle"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// TaskTypeRender submits the task payload as a renderer workflow.
	TaskTypeRender = "render"
	// TaskTypePing checks that the renderer answers without queueing work.
	TaskTypePing = "ping"
)

var ErrUnsupportedTask = errors.New("unsupported task type")

// Process is the supervised renderer.
type Process interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	IsRunning() bool
}

type Handler struct {
	process  Process
	client   *http.Client
	baseURL  string
	clientID string
	log      zerolog.Logger
}

var _ lifecycle.Hooks = (*Handler)(nil)

// New returns hooks talking to the renderer at baseURL. process may be nil
// when the renderer is managed elsewhere.
func New(process Process, baseURL string, client *http.Client) *Handler {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Handler{
		process:  process,
		client:   client,
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: uuid.NewString(),
		log:      logger.Component("render"),
	}
}

func (h *Handler) OnInitialize(ctx context.Context) error {
	if h.process == nil {
		return nil
	}
	if err := h.process.Start(ctx); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (h *Handler) OnStart(context.Context) error {
	if h.process != nil && !h.process.IsRunning() {
		return errors.New("renderer is not running")
	}
	return nil
}

func (h *Handler) OnStop(context.Context) error {
	return nil
}

func (h *Handler) OnDispose(ctx context.Context) error {
	if h.process == nil {
		return nil
	}
	if err := h.process.Stop(ctx); err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	return nil
}

func (h *Handler) OnExecute(ctx context.Context, task models.Task) (any, error) {
	switch task.Type {
	case TaskTypeRender:
		return h.submit(ctx, task)
	case TaskTypePing:
		return h.ping(ctx)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTask, task.Type)
	}
}

type promptRequest struct {
	Prompt   any    `json:"prompt"`
	ClientID string `json:"client_id"`
}

func (h *Handler) submit(ctx context.Context, task models.Task) (any, error) {
	if task.Payload == nil {
		return nil, errors.New("render task has no workflow payload")
	}
	body, err := json.Marshal(promptRequest{Prompt: task.Payload, ClientID: h.clientID})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/prompt", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	h.log.Debug().Str(logger.TaskField, task.ID).Msg("submitting workflow")
	var out map[string]any
	if err := h.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) ping(ctx context.Context) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/system_stats", nil)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	var out map[string]any
	if err := h.do(req, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (h *Handler) do(req *http.Request, out any) error {
	res, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("renderer: %w", err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("renderer returned %d: %s", res.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
