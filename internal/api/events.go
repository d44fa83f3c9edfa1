package api

import (
	"context"
	"encoding/json"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go-taskagent/pkg/logger"
	"go-taskagent/pkg/models"
	"net/http"
	"sync"
	"time"
)

const (
	sendBuffer   = 64
	writeTimeout = 5 * time.Second
)

// Event is the envelope written to every /events subscriber.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type taskFailure struct {
	Task  models.Task `json:"task"`
	Error string      `json:"error"`
}

type conn struct {
	id   string
	send chan []byte
}

// hub fans agent events out to websocket clients. Events are queued per
// connection so a slow client never blocks the agent; when a client's
// buffer is full further events for it are dropped.
type hub struct {
	mu    sync.RWMutex
	conns map[*conn]struct{}
	log   zerolog.Logger
}

func newHub() *hub {
	return &hub{
		conns: make(map[*conn]struct{}),
		log:   logger.Component("events"),
	}
}

func (h *hub) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer ws.CloseNow()

	c := &conn{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	l := h.log.With().Str(logger.ConnIDField, c.id).Logger()
	h.add(c)
	defer h.remove(c)
	l.Info().Msg("websocket connected")

	// clients only listen; the read side just notices the close
	ctx := ws.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			l.Info().Msg("websocket disconnected")
			return
		case data := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := ws.Write(wctx, websocket.MessageText, data)
			cancel()
			if err != nil {
				l.Debug().Err(err).Msg("websocket write failed")
				return
			}
		}
	}
}

func (h *hub) add(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c] = struct{}{}
}

func (h *hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c)
}

func (h *hub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *hub) broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Type).Msg("event marshal failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.conns {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str(logger.ConnIDField, c.id).Str("event", ev.Type).Msg("subscriber too slow, dropping event")
		}
	}
}

func (h *hub) OnStateChange(c models.StateChange) {
	h.broadcast(Event{Type: "stateChange", Payload: c})
}

func (h *hub) OnTaskQueued(t models.Task) {
	h.broadcast(Event{Type: "taskQueued", Payload: t})
}

func (h *hub) OnTaskComplete(r models.TaskResult) {
	h.broadcast(Event{Type: "taskComplete", Payload: r})
}

func (h *hub) OnTaskError(f models.TaskFailure) {
	msg := ""
	if f.Error != nil {
		msg = f.Error.Error()
	}
	h.broadcast(Event{Type: "taskError", Payload: taskFailure{Task: f.Task, Error: msg}})
}

func (h *hub) OnTasksCleared(ts []models.Task) {
	h.broadcast(Event{Type: "tasksCleared", Payload: ts})
}
