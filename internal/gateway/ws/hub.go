package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

const writeTimeout = 5 * time.Second

// client is a connected user interface.
type client struct {
	id   string
	conn *websocket.Conn

	// Only the latest completion of a client is current, older ones are cancelled.
	aiMu     sync.Mutex
	aiToken  uint64
	aiCancel context.CancelFunc
}

// startCompletion cancels the running completion and returns the context and token of a new one.
func (c *client) startCompletion(ctx context.Context) (context.Context, uint64) {
	c.aiMu.Lock()
	defer c.aiMu.Unlock()

	if c.aiCancel != nil {
		c.aiCancel()
	}
	c.aiToken++
	ctx, c.aiCancel = context.WithCancel(ctx)

	return ctx, c.aiToken
}

// endCompletion releases the completion, it returns false when it was cancelled in the meantime.
func (c *client) endCompletion(token uint64) bool {
	c.aiMu.Lock()
	defer c.aiMu.Unlock()

	if c.aiToken != token {
		return false
	}
	c.aiCancel()
	c.aiCancel = nil

	return true
}

func (c *client) cancelCompletion() {
	c.aiMu.Lock()
	defer c.aiMu.Unlock()

	c.aiToken++
	if c.aiCancel != nil {
		c.aiCancel()
		c.aiCancel = nil
	}
}

func (c *client) write(ctx context.Context, env *Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return c.conn.Write(ctx, websocket.MessageText, data)
}

// Hub tracks the connected clients and broadcasts the server pushes to all of them.
// It implements approval.Notifier.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*client
	logger  log.Logger
}

// NewHub returns a new hub.
func NewHub(logger log.Logger) *Hub {
	if logger == nil {
		logger = log.Noop
	}

	return &Hub{
		clients: map[string]*client{},
		logger:  logger.WithValues(log.Kv{"svc": "ws.Hub"}),
	}
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, id)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NotifyPending broadcasts a pending command.
func (h *Hub) NotifyPending(ctx context.Context, p model.PendingCommand) error {
	env, err := newEnvelope(MsgExecPending, "", pendingPayload(p))
	if err != nil {
		return fmt.Errorf("could not create envelope: %w", err)
	}

	return h.broadcast(ctx, env)
}

// NotifyResult broadcasts the result of a command decided without a client request.
func (h *Hub) NotifyResult(ctx context.Context, id string, res model.ExecutionResult) error {
	env, err := newEnvelope(MsgExecResult, "", NewExecResultPayload(id, res))
	if err != nil {
		return fmt.Errorf("could not create envelope: %w", err)
	}

	return h.broadcast(ctx, env)
}

func (h *Hub) broadcast(ctx context.Context, env *Envelope) error {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	if len(clients) == 0 {
		h.logger.Debugf("No clients connected, %s not delivered", env.Type)
		return nil
	}

	var errs []error
	for _, c := range clients {
		if err := c.write(ctx, env); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", c.id, err))
		}
	}

	return errors.Join(errs...)
}
