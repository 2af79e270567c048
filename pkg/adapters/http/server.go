package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/thunder"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/reconcile"
	"github.com/aretw0/thunder/pkg/steps"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Builder defines the pipeline operations the server exposes.
type Builder interface {
	Template(ctx context.Context, prompt string) (*domain.Template, error)
	Chat(ctx context.Context, messages []domain.Message) (string, error)
	Start(ctx context.Context, prompt string) (*domain.Session, error)
	Continue(ctx context.Context, sessionID, message string) (*domain.Session, error)
	Ingest(ctx context.Context, sessionID, text string) (*domain.Session, error)
	RecordCommand(ctx context.Context, sessionID, command string) (*domain.Session, error)
	Exec(ctx context.Context, sessionID, command string, w io.Writer) (int, error)
	Cancel(sessionID string) bool
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, sessionID string) error
	Stacks(ctx context.Context) ([]string, error)
	Files(ctx context.Context, sessionID, query string) ([]domain.FileNode, error)
	Mount(ctx context.Context, sessionID string) (mount.Descriptor, error)
}

var _ Builder = (*thunder.Builder)(nil)

// WatchFunc streams ids of changed templates.
type WatchFunc func(ctx context.Context) (<-chan string, error)

// Server serves a Builder over HTTP.
type Server struct {
	Builder Builder
	Streams *StreamManager

	parser  *parser.Parser
	metrics http.Handler
	watch   WatchFunc
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithStreams shares a StreamManager, typically one whose Observer is registered on the session manager.
func WithStreams(sm *StreamManager) Option {
	return func(s *Server) {
		s.Streams = sm
	}
}

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithWatcher feeds the session-less event stream.
func WithWatcher(fn WatchFunc) Option {
	return func(s *Server) {
		s.watch = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for a builder.
func NewHandler(b Builder, opts ...Option) (http.Handler, error) {
	s := &Server{
		Builder: b,
		parser:  parser.New(parser.WithMarkdownFallback()),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}

	doc, err := LoadSpec()
	if err != nil {
		return nil, err
	}
	v, err := newValidator(doc)
	if err != nil {
		return nil, err
	}
	apiVersion := "unknown"
	if doc.Info != nil {
		apiVersion = doc.Info.Version
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(RawSpec())
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(v.middleware)

		r.Get("/health", s.GetHealth)
		r.Get("/info", s.getInfo(apiVersion))
		r.Get("/stacks", s.ListStacks)
		r.Post("/template", s.SelectTemplate)
		r.Post("/chat", s.Chat)
		r.Post("/parse", s.Parse)
		r.Get("/events", s.SubscribeEvents)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.ListSessions)
			r.Post("/", s.StartSession)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.GetSession)
				r.Delete("/", s.DeleteSession)
				r.Post("/messages", s.ContinueSession)
				r.Post("/ingest", s.Ingest)
				r.Post("/commands", s.RecordCommand)
				r.Post("/exec", s.Exec)
				r.Post("/cancel", s.Cancel)
				r.Get("/files", s.SearchFiles)
				r.Get("/mount", s.GetMount)
			})
		})
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Thunder API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTemplateNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrGenerationInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCommandNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, thunder.ErrNoGenerator), errors.Is(err, thunder.ErrNoSandbox):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "err", err)
	} else {
		s.logger.Warn(op+" rejected", "err", err)
	}
	writeError(w, status, err)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

// GetHealth handles the GET /health request.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(apiVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"app":         "thunder-http",
			"version":     strings.TrimSpace(thunder.Version),
			"api_version": apiVersion,
		})
	}
}

// ListStacks handles GET /stacks.
func (s *Server) ListStacks(w http.ResponseWriter, r *http.Request) {
	stacks, err := s.Builder.Stacks(r.Context())
	if err != nil {
		s.fail(w, "Stacks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"stacks": stacks})
}

type promptRequest struct {
	Prompt string `json:"prompt"`
}

// SelectTemplate handles POST /template.
func (s *Server) SelectTemplate(w http.ResponseWriter, r *http.Request) {
	var body promptRequest
	if !decode(w, r, &body) {
		return
	}
	tpl, err := s.Builder.Template(r.Context(), body.Prompt)
	if err != nil {
		s.fail(w, "Template", err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

// Chat handles POST /chat.
func (s *Server) Chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Messages []domain.Message `json:"messages"`
	}
	if !decode(w, r, &body) {
		return
	}
	reply, err := s.Builder.Chat(r.Context(), body.Messages)
	if err != nil {
		s.fail(w, "Chat", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply})
}

type textRequest struct {
	Text string `json:"text"`
}

// Parse handles POST /parse: the pure pipeline on raw text, no session involved.
func (s *Server) Parse(w http.ResponseWriter, r *http.Request) {
	var body textRequest
	if !decode(w, r, &body) {
		return
	}
	doc := s.parser.ParseDocument(body.Text)
	res := reconcile.New().Reconcile(r.Context(), "", steps.MergeDocument(nil, doc), nil)
	files, folders := filetree.Count(res.Tree)

	writeJSON(w, http.StatusOK, map[string]any{
		"steps":       res.Steps,
		"tree":        res.Tree,
		"mount":       mount.Project(res.Tree),
		"diagnostics": doc.Diagnostics,
		"files":       files,
		"folders":     folders,
	})
}

// ListSessions handles GET /sessions.
func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Builder.List(r.Context())
	if err != nil {
		s.fail(w, "List", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

// StartSession handles POST /sessions.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var body promptRequest
	if !decode(w, r, &body) {
		return
	}
	sess, err := s.Builder.Start(r.Context(), body.Prompt)
	if err != nil {
		s.fail(w, "Start", err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// GetSession handles GET /sessions/{id}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.Builder.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "Session", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /sessions/{id}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Builder.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, "Delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ContinueSession handles POST /sessions/{id}/messages.
func (s *Server) ContinueSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message string `json:"message"`
	}
	if !decode(w, r, &body) {
		return
	}
	sess, err := s.Builder.Continue(r.Context(), chi.URLParam(r, "id"), body.Message)
	if err != nil {
		s.fail(w, "Continue", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Ingest handles POST /sessions/{id}/ingest.
func (s *Server) Ingest(w http.ResponseWriter, r *http.Request) {
	var body textRequest
	if !decode(w, r, &body) {
		return
	}
	sess, err := s.Builder.Ingest(r.Context(), chi.URLParam(r, "id"), body.Text)
	if err != nil {
		s.fail(w, "Ingest", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type commandRequest struct {
	Command string `json:"command"`
}

// RecordCommand handles POST /sessions/{id}/commands.
func (s *Server) RecordCommand(w http.ResponseWriter, r *http.Request) {
	var body commandRequest
	if !decode(w, r, &body) {
		return
	}
	sess, err := s.Builder.RecordCommand(r.Context(), chi.URLParam(r, "id"), body.Command)
	if err != nil {
		s.fail(w, "RecordCommand", err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// Exec handles POST /sessions/{id}/exec.
func (s *Server) Exec(w http.ResponseWriter, r *http.Request) {
	var body commandRequest
	if !decode(w, r, &body) {
		return
	}
	var out bytes.Buffer
	code, err := s.Builder.Exec(r.Context(), chi.URLParam(r, "id"), body.Command, &out)
	if err != nil {
		s.fail(w, "Exec", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exit_code": code, "output": out.String()})
}

// Cancel handles POST /sessions/{id}/cancel.
func (s *Server) Cancel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"canceled": s.Builder.Cancel(chi.URLParam(r, "id"))})
}

type fileResult struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// SearchFiles handles GET /sessions/{id}/files?q=.
func (s *Server) SearchFiles(w http.ResponseWriter, r *http.Request) {
	files, err := s.Builder.Files(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, "Files", err)
		return
	}
	out := make([]fileResult, len(files))
	for i, f := range files {
		out[i] = fileResult{Path: f.Path, Content: f.Content}
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": out})
}

// GetMount handles GET /sessions/{id}/mount.
func (s *Server) GetMount(w http.ResponseWriter, r *http.Request) {
	d, err := s.Builder.Mount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "Mount", err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		s.streamTemplates(w, r, flusher)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.logger.Info("SSE: Subscribing to Session Updates", "session_id", sessionID)
	ch, cancel := s.Streams.Subscribe(sessionID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	var watch []string
	if raw := r.URL.Query().Get("watch"); raw != "" {
		watch = strings.Split(raw, ",")
	}

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "session_id", sessionID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if !matchesWatch(msg, watch) {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}

// streamTemplates relays template library changes.
func (s *Server) streamTemplates(w http.ResponseWriter, r *http.Request, flusher http.Flusher) {
	if s.watch == nil {
		writeError(w, http.StatusNotFound, errors.New("no template watcher configured"))
		return
	}
	events, err := s.watch(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("watch error: %w", err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: template\ndata: %s\n\n", event)
			flusher.Flush()
		}
	}
}
