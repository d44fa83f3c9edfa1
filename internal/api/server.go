package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/justinas/alice"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"
	"go-taskagent/internal/health"
	"go-taskagent/internal/lifecycle"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"io"
	"net/http"
	"sync"
	"time"
)

// Agent is the part of lifecycle.Agent the HTTP surface drives.
type Agent interface {
	Initialize(ctx context.Context) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Dispose(ctx context.Context) error
	AddTask(ctx context.Context, t models.Task) error
	Status() models.AgentStatus
	Pending() []models.Task
	Subscribe(l lifecycle.Listener) func()
}

type errorResponse struct {
	Error string `json:"error"`
}

type getStatus struct {
	Status  models.AgentStatus `json:"status"`
	Pending int                `json:"pending"`
}

type healthDown struct {
	Status    health.Status `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Error     string        `json:"error"`
}

type Server struct {
	agent    Agent
	health   *health.Reporter
	outcomes *outcomeCache
	events   *hub
	server   *http.Server

	// Dispose detaches every listener; they are attached again on the next
	// initialize request
	subMu sync.Mutex
	unsub []func()
}

func New(addr string, agent Agent, reporter *health.Reporter, cacheSize int) (*Server, error) {
	outcomes, err := newOutcomeCache(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("outcome cache: %w", err)
	}
	s := &Server{
		agent:    agent,
		health:   reporter,
		outcomes: outcomes,
		events:   newHub(),
	}
	s.attach()

	r := chi.NewRouter()
	r.Use(logMiddleware())
	r.Post("/tasks", s.addTask)
	r.Get("/tasks/{id}", s.getTask)
	r.Get("/status", s.status)
	r.Post("/lifecycle/{op}", s.lifecycleOp)
	r.Get("/health", s.healthCheck)
	r.Get("/events", s.events.handleWS)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	err := s.server.ListenAndServe()
	if err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) attach() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.unsub != nil {
		return
	}
	s.unsub = []func(){
		s.agent.Subscribe(s.outcomes),
		s.agent.Subscribe(s.events),
	}
}

func (s *Server) detach() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, unsubscribe := range s.unsub {
		unsubscribe()
	}
	s.unsub = nil
}

func (s *Server) addTask(w http.ResponseWriter, r *http.Request) {
	task := models.Task{}
	if err := unmarshalRequestBody(r, &task); err != nil {
		log.Debug().Err(err).Msg("cannot parse body")
		writeError(w, r, http.StatusBadRequest, "unable to parse body")
		return
	}

	if err := s.agent.AddTask(r.Context(), task); err != nil {
		hlog.FromRequest(r).Debug().Err(err).Str(logger.TaskField, task.ID).Msg("task rejected")
		writeError(w, r, statusFor(err), err.Error())
		return
	}

	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, struct {
		Id string `json:"id"`
	}{task.ID})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, ok := s.outcomes.get(id)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown task "+id)
		return
	}
	render.JSON(w, r, outcome)
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, getStatus{
		Status:  s.agent.Status(),
		Pending: len(s.agent.Pending()),
	})
}

func (s *Server) lifecycleOp(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	var err error
	switch op {
	case "initialize":
		s.attach()
		err = s.agent.Initialize(r.Context())
	case "start":
		err = s.agent.Start(r.Context())
	case "stop":
		err = s.agent.Stop(r.Context())
	case "dispose":
		err = s.agent.Dispose(r.Context())
		s.detach()
	default:
		writeError(w, r, http.StatusNotFound, "unknown lifecycle operation "+op)
		return
	}

	if err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("op", op).Msg("lifecycle operation failed")
		writeError(w, r, statusFor(err), err.Error())
		return
	}
	s.status(w, r)
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	report, err := s.health.Report(r.Context())
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, healthDown{Status: health.Down, Timestamp: time.Now(), Error: err.Error()})
		return
	}
	render.JSON(w, r, report)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidTask):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrInvalidTransition), errors.Is(err, models.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, models.ErrTimeout):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	render.Status(r, code)
	render.JSON(w, r, errorResponse{Error: msg})
}

func logMiddleware() func(http.Handler) http.Handler {
	c := alice.New()
	c = c.Append(hlog.NewHandler(log.Logger))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("agent"))
	c = c.Append(hlog.RefererHandler("referer"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("verb", r.Method).
			Stringer("url", r.URL).
			Int("size", size).
			Int("status", status).
			Int64("duration", duration.Milliseconds()).
			Msg("REQ")
	}))

	return c.Then
}

func unmarshalRequestBody(req *http.Request, output interface{}) error {
	if req.Body == nil {
		return errors.New("invalid body in request")
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		return err
	}
	if err = req.Body.Close(); err != nil {
		return err
	}
	if err = json.Unmarshal(body, output); err != nil {
		return err
	}

	return nil
}
