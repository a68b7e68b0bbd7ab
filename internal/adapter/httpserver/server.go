// Package httpserver exposes the agent over HTTP: a GitHub webhook
// endpoint that dispatches qualifying events as supervised tasks, and a
// health probe. Signature verification is mandatory; the server refuses
// to start without a webhook secret.
package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/bkyoung/review-agent/internal/domain"
	"github.com/bkyoung/review-agent/internal/usecase/task"
)

// Options configures the webhook server.
type Options struct {
	// Listen is the address for ListenAndServe, e.g. ":8080".
	Listen string

	// WebhookSecret keys the X-Hub-Signature-256 verification. Required.
	WebhookSecret string

	// TriggerLabel marks issues that should become fix tasks. Empty
	// disables issue dispatch.
	TriggerLabel string

	// MentionCommand is the comment substring that requests a response,
	// e.g. "/agent". Empty disables comment dispatch.
	MentionCommand string
}

// Server provides the HTTP interface for the agent.
type Server struct {
	orchestrator   *task.Orchestrator
	logger         task.Logger
	secret         []byte
	triggerLabel   string
	mentionCommand string
	listen         string
	server         *http.Server
	router         *httprouter.Router
}

// NewServer creates a webhook server. An empty webhook secret is an
// error: unsigned dispatch is never allowed.
func NewServer(orchestrator *task.Orchestrator, logger task.Logger, opts Options) (*Server, error) {
	if opts.WebhookSecret == "" {
		return nil, errors.New("webhook secret must be configured")
	}

	s := &Server{
		orchestrator:   orchestrator,
		logger:         logger,
		secret:         []byte(opts.WebhookSecret),
		triggerLabel:   opts.TriggerLabel,
		mentionCommand: opts.MentionCommand,
		listen:         opts.Listen,
		router:         httprouter.New(),
	}

	s.setupRoutes()
	return s, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    s.listen,
		Handler: s.router,
	}

	s.logger.LogInfo(context.Background(), "webhook server listening", map[string]interface{}{
		"listen": s.listen,
	})
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the HTTP server. In-flight webhook
// deliveries get a short drain window.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.POST("/webhook", s.handleWebhook)
	s.router.GET("/healthz", s.handleHealth)
}

type acceptedResponse struct {
	TaskID   string `json:"taskId"`
	State    string `json:"state"`
	Provider string `json:"provider"`
}

type ignoredResponse struct {
	Ignored bool `json:"ignored"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "unreadable request body"})
		return
	}

	if err := verifySignature(s.secret, body, r.Header.Get("X-Hub-Signature-256")); err != nil {
		s.logger.LogWarning(ctx, "webhook rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error()})
		return
	}

	event := r.Header.Get("X-GitHub-Event")
	t, ok, err := s.mapEvent(event, body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if !ok {
		s.logger.LogDebug(ctx, "webhook ignored", map[string]interface{}{"event": event})
		writeJSON(w, http.StatusOK, ignoredResponse{Ignored: true})
		return
	}

	sv, err := s.orchestrator.Launch(ctx, t, "")
	if err != nil {
		s.logger.LogError(ctx, "task launch failed", map[string]interface{}{
			"event": event,
			"error": err.Error(),
		})
		writeJSON(w, launchStatus(err), errorResponse{Error: err.Error()})
		return
	}

	writeJSON(w, http.StatusAccepted, acceptedResponse{
		TaskID:   sv.TaskID(),
		State:    string(sv.State()),
		Provider: string(sv.Provider()),
	})
}

// launchStatus picks the response code for a failed launch.
func launchStatus(err error) int {
	var validationErr *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrNoProviderAvailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
