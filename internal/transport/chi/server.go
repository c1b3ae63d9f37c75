// Package chi serves the ragpack HTTP API on a chi router.
package chi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragpack/internal/domain/message"
	"github.com/kailas-cloud/ragpack/internal/metrics"
	"github.com/kailas-cloud/ragpack/internal/usecase/chat"
	"github.com/kailas-cloud/ragpack/internal/usecase/contextbuild"
	healthuc "github.com/kailas-cloud/ragpack/internal/usecase/health"
)

const maxBodyBytes = 4 << 20

// ContextBuilder runs the retrieval-and-packing pipeline.
type ContextBuilder interface {
	Build(ctx context.Context, req contextbuild.Request) (contextbuild.Result, error)
}

// Chatter answers a turn with the language model.
type Chatter interface {
	Reply(ctx context.Context, req contextbuild.Request) (chat.Reply, error)
}

// FactRecorder replaces the facts remembered for a conversation.
type FactRecorder interface {
	Remember(ctx context.Context, msgs []message.Message, facts []string) error
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Server holds the HTTP handlers.
type Server struct {
	builder       ContextBuilder
	chat          Chatter
	facts         FactRecorder
	health        HealthChecker
	defaults      contextbuild.Settings
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. chat may be nil when no completion model is configured.
func NewServer(
	builder ContextBuilder,
	chat Chatter,
	facts FactRecorder,
	health HealthChecker,
	defaults contextbuild.Settings,
	logger *zap.Logger,
) *Server {
	return &Server{
		builder:       builder,
		chat:          chat,
		facts:         facts,
		health:        health,
		defaults:      defaults,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// Router builds the chi router with the standard middleware stack.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiKeys, s.logger))
		r.Post("/context", s.BuildContext)
		r.Post("/chat", s.Chat)
		r.Put("/facts", s.UpdateFacts)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})
	return r
}

// BuildContext handles POST /v1/context.
func (s *Server) BuildContext(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	res, err := s.builder.Build(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ContextResponse{
		Status:   string(res.Status),
		Messages: messagesToDTO(res.Messages),
		Stats:    statsToDTO(res.Stats),
	})
}

// Chat handles POST /v1/chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, http.StatusNotImplemented, CodeNotImplemented, "chat completion is not configured")
		return
	}
	req, ok := s.decodeTurn(w, r)
	if !ok {
		return
	}

	reply, err := s.chat.Reply(r.Context(), req)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		Status: string(reply.Status),
		Reply:  reply.Text,
		Stats:  statsToDTO(reply.Stats),
	})
}

// UpdateFacts handles PUT /v1/facts.
func (s *Server) UpdateFacts(w http.ResponseWriter, r *http.Request) {
	var body FactsRequest
	if !decodeBody(w, r, &body) {
		return
	}

	msgs, err := messagesFromDTO(body.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	if err := s.facts.Remember(r.Context(), msgs, body.Facts); err != nil {
		s.handleDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (contextbuild.Request, bool) {
	var body TurnRequest
	if !decodeBody(w, r, &body) {
		return contextbuild.Request{}, false
	}

	msgs, err := messagesFromDTO(body.Messages)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return contextbuild.Request{}, false
	}
	settings, err := applySettings(s.defaults, body.Settings)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return contextbuild.Request{}, false
	}
	scope, err := scopeFromDTO(body.Scope)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return contextbuild.Request{}, false
	}
	if body.Size < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "size must not be negative")
		return contextbuild.Request{}, false
	}

	return contextbuild.Request{
		Query:    body.Query,
		Required: body.Required,
		Messages: msgs,
		Settings: settings,
		Scope:    scope,
		Size:     body.Size,
	}, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
