// Package ws implements the WebSocket boundary between the user interface and
// the command approval services.
//
// Clients send request envelopes and get a reply with the same type and ID.
// Pending commands and automatically decided results are pushed to every client.
package ws

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/slok/kage/internal/app/approval"
	"github.com/slok/kage/internal/app/fileops"
	"github.com/slok/kage/internal/app/settings"
	"github.com/slok/kage/internal/llm"
	"github.com/slok/kage/internal/log"
	"github.com/slok/kage/internal/model"
)

// Subprotocol is the WebSocket subprotocol offered by the server.
const Subprotocol = "kage-v1"

// ApprovalService is the command approval workflow.
type ApprovalService interface {
	Submit(ctx context.Context, req approval.SubmitRequest) (*approval.SubmitResponse, error)
	Decide(ctx context.Context, req approval.DecideRequest) model.ExecutionResult
	Pending(ctx context.Context) []model.PendingCommand
}

// RootService manages the jail root.
type RootService interface {
	Set(ctx context.Context, path string) (string, error)
	Get(ctx context.Context) string
}

// FileService handles the jailed file operations.
type FileService interface {
	Write(ctx context.Context, rel string, content []byte) (string, error)
	Read(ctx context.Context, rel string, max int64) (*fileops.ReadResult, error)
	List(ctx context.Context, rel string) ([]fileops.Entry, error)
}

// SettingsService reads and patches the application settings.
type SettingsService interface {
	Get(ctx context.Context) (*model.Settings, error)
	Update(ctx context.Context, p settings.Patch) (*model.Settings, error)
}

// Completer completes prompts with an LLM.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ServerConfig is the configuration for the WebSocket server.
type ServerConfig struct {
	Hub      *Hub
	Approval ApprovalService
	Root     RootService
	Files    FileService
	// Settings is optional, without it cfg requests fail.
	Settings SettingsService
	// Completer is optional, without it ai.complete requests fail.
	Completer Completer
	// Token is the optional token clients must send as `?token=` or bearer authorization.
	Token string
	// OriginPatterns are the allowed cross origin hosts, same origin is always allowed.
	OriginPatterns []string
	Logger         log.Logger
}

func (c *ServerConfig) defaults() error {
	if c.Hub == nil {
		return fmt.Errorf("hub is required")
	}
	if c.Approval == nil {
		return fmt.Errorf("approval service is required")
	}
	if c.Root == nil {
		return fmt.Errorf("root service is required")
	}
	if c.Files == nil {
		return fmt.Errorf("file service is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ws.Server"})
	return nil
}

// Server is the WebSocket server.
type Server struct {
	hub            *Hub
	approval       ApprovalService
	root           RootService
	files          FileService
	settings       SettingsService
	completer      Completer
	token          string
	originPatterns []string
	logger         log.Logger
}

// NewServer returns a new WebSocket server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Server{
		hub:            cfg.Hub,
		approval:       cfg.Approval,
		root:           cfg.Root,
		files:          cfg.Files,
		settings:       cfg.Settings,
		completer:      cfg.Completer,
		token:          cfg.Token,
		originPatterns: cfg.OriginPatterns,
		logger:         cfg.Logger,
	}, nil
}

// Handler returns the HTTP handler, the WebSocket endpoint is served on `/ws`.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Run serves the handler on addr until the context is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("WebSocket server listening on ws://%s/ws", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err == nil {
			return nil
		}
		return fmt.Errorf("websocket server error: %w", err)
	case <-ctx.Done():
		s.logger.Infof("Shutting down WebSocket server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("websocket server shutdown error: %w", err)
		}
		return nil
	}
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}

	return subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) == 1
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		Subprotocols:   []string{Subprotocol},
		OriginPatterns: s.originPatterns,
	})
	if err != nil {
		s.logger.Errorf("websocket accept failed: %s", err)
		return
	}

	s.handleConnection(r.Context(), conn)
}

func (s *Server) handleConnection(ctx context.Context, conn *websocket.Conn) {
	c := &client{id: ulid.Make().String(), conn: conn}
	logger := s.logger.WithValues(log.Kv{"client": c.id})

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		s.hub.remove(c.id)
		cancel()
		wg.Wait()
		conn.Close(websocket.StatusNormalClosure, "connection closed")
	}()

	s.hub.add(c)
	logger.Infof("Client connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Infof("Client disconnected")
			default:
				if !errors.Is(err, context.Canceled) {
					logger.Warningf("Client connection error: %s", err)
				}
			}
			return
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.reply(ctx, c, MsgError, "", ErrorPayload{Error: fmt.Sprintf("invalid message: %s", err)})
			continue
		}

		// Commands can run for minutes, don't block the reads.
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.handleMessage(ctx, c, &env)
		}()
	}
}

func (s *Server) handleMessage(ctx context.Context, c *client, env *Envelope) {
	payload, err := s.dispatch(ctx, c, env)
	if err != nil {
		s.logger.Debugf("%s request %q failed: %s", env.Type, env.ID, err)
		s.reply(ctx, c, MsgError, env.ID, ErrorPayload{Error: err.Error()})
		return
	}

	s.reply(ctx, c, env.Type, env.ID, payload)
}

func (s *Server) dispatch(ctx context.Context, c *client, env *Envelope) (any, error) {
	switch env.Type {
	case MsgExecRequest:
		var req ExecRequestPayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		resp, err := s.approval.Submit(ctx, approval.SubmitRequest{ID: req.ID, Command: req.Command, Cwd: req.Cwd})
		if err != nil {
			return nil, err
		}
		return ExecQueuedPayload{Queued: resp.Queued, ID: resp.Pending.ID}, nil

	case MsgExecApprove:
		var req ExecApprovePayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		res := s.approval.Decide(ctx, approval.DecideRequest{ID: req.ID, Approved: req.Approved})
		return NewExecResultPayload(req.ID, res), nil

	case MsgExecList:
		pending := s.approval.Pending(ctx)
		resp := ExecListPayload{Pending: make([]ExecPendingPayload, 0, len(pending))}
		for _, p := range pending {
			resp.Pending = append(resp.Pending, pendingPayload(p))
		}
		return resp, nil

	case MsgRootSet:
		var req RootSetPayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		root, err := s.root.Set(ctx, req.Path)
		if err != nil {
			return nil, err
		}
		return RootPayload{Root: root}, nil

	case MsgRootGet:
		return RootPayload{Root: s.root.Get(ctx)}, nil

	case MsgFSWrite:
		var req FSWritePayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		rel, err := s.files.Write(ctx, req.Rel, []byte(req.Content))
		if err != nil {
			return nil, err
		}
		return FSWriteResultPayload{OK: true, Rel: rel}, nil

	case MsgFSRead:
		var req FSReadPayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		res, err := s.files.Read(ctx, req.Rel, req.Max)
		if err != nil {
			return nil, err
		}
		return FSReadResultPayload{Content: string(res.Content), Size: res.Size, Truncated: res.Truncated}, nil

	case MsgFSList:
		var req FSListPayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		entries, err := s.files.List(ctx, req.Rel)
		if err != nil {
			return nil, err
		}
		resp := FSListResultPayload{Entries: make([]FSEntryPayload, 0, len(entries))}
		for _, e := range entries {
			resp.Entries = append(resp.Entries, FSEntryPayload{Name: e.Name, Dir: e.Dir, Size: e.Size})
		}
		return resp, nil

	case MsgAIComplete:
		if s.completer == nil {
			return nil, fmt.Errorf("completion is not configured")
		}
		var req AICompletePayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		aiCtx, token := c.startCompletion(ctx)
		text, err := s.completer.Complete(aiCtx, req.Prompt)
		if !c.endCompletion(token) {
			return AITextPayload{Canceled: true}, nil
		}
		if err != nil {
			return nil, err
		}
		return AITextPayload{Text: text}, nil

	case MsgAICancel:
		c.cancelCompletion()
		return AICancelPayload{Canceled: true}, nil

	case MsgAISources:
		sources := llm.Sources()
		resp := AISourcesPayload{Sources: make([]AISourcePayload, 0, len(sources))}
		for _, src := range sources {
			resp.Sources = append(resp.Sources, AISourcePayload{
				ID:        src.ID,
				Label:     src.Label,
				EnvVar:    src.EnvVar,
				HasKey:    src.HasKey,
				Supported: src.Supported,
				Models:    src.Models,
			})
		}
		return resp, nil

	case MsgCfgGet:
		if s.settings == nil {
			return nil, fmt.Errorf("settings are not configured")
		}
		cfg, err := s.settings.Get(ctx)
		if err != nil {
			return nil, err
		}
		return cfgPayload(cfg), nil

	case MsgCfgUpdate:
		if s.settings == nil {
			return nil, fmt.Errorf("settings are not configured")
		}
		var req CfgUpdatePayload
		if err := env.Decode(&req); err != nil {
			return nil, fmt.Errorf("invalid payload: %w", err)
		}
		cfg, err := s.settings.Update(ctx, settings.Patch{
			RootDir:  req.RootDir,
			AutoExec: req.AutoExec,
			Provider: req.Provider,
			Model:    req.Model,
		})
		if err != nil {
			return nil, err
		}
		return cfgPayload(cfg), nil
	}

	return nil, fmt.Errorf("unknown message type %q", env.Type)
}

func (s *Server) reply(ctx context.Context, c *client, t MessageType, id string, payload any) {
	env, err := newEnvelope(t, id, payload)
	if err != nil {
		s.logger.Errorf("could not create %s reply: %s", t, err)
		return
	}

	// The reply of an approved command must be delivered even if the read loop ended.
	if err := c.write(context.WithoutCancel(ctx), env); err != nil {
		s.logger.Warningf("could not write %s reply to client %s: %s", t, c.id, err)
	}
}
