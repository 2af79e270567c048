package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/thunder"
	"github.com/aretw0/thunder/pkg/domain"
	"github.com/aretw0/thunder/pkg/filetree"
	"github.com/aretw0/thunder/pkg/mount"
	"github.com/aretw0/thunder/pkg/parser"
	"github.com/aretw0/thunder/pkg/reconcile"
	"github.com/aretw0/thunder/pkg/steps"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const sessionURIPrefix = "thunder://sessions/"

// SessionSummary is the compact view of a session returned by tools.
type SessionSummary struct {
	ID        string               `json:"id" jsonschema_description:"Session identifier"`
	Stack     string               `json:"stack,omitempty" jsonschema_description:"Template stack of the session"`
	Status    domain.SessionStatus `json:"status" jsonschema_description:"idle, generating or failed"`
	Steps     int                  `json:"steps" jsonschema_description:"Number of steps in the sequence"`
	Failed    []string             `json:"failed,omitempty" jsonschema_description:"Errors of failed steps"`
	Files     []string             `json:"files" jsonschema_description:"Paths of the files in the tree"`
	LastError string               `json:"last_error,omitempty" jsonschema_description:"Last model failure"`
}

// Summarize builds the compact view of s.
func Summarize(s *domain.Session) SessionSummary {
	out := SessionSummary{
		ID:        s.ID,
		Stack:     s.Stack,
		Status:    s.Status,
		Steps:     len(s.Steps),
		Files:     []string{},
		LastError: s.LastError,
	}
	for _, st := range s.Steps {
		if st.Status == domain.StepFailed {
			out.Failed = append(out.Failed, fmt.Sprintf("step %d (%s): %s", st.ID, st.Path, st.Error))
		}
	}
	for _, f := range filetree.Files(s.Tree) {
		out.Files = append(out.Files, f.Path)
	}
	return out
}

// Builder defines the pipeline operations exposed as tools.
type Builder interface {
	Template(ctx context.Context, prompt string) (*domain.Template, error)
	Start(ctx context.Context, prompt string) (*domain.Session, error)
	Continue(ctx context.Context, sessionID, message string) (*domain.Session, error)
	Ingest(ctx context.Context, sessionID, text string) (*domain.Session, error)
	Cancel(sessionID string) bool
	Session(ctx context.Context, sessionID string) (*domain.Session, error)
	List(ctx context.Context) ([]string, error)
	Stacks(ctx context.Context) ([]string, error)
	Files(ctx context.Context, sessionID, query string) ([]domain.FileNode, error)
	Mount(ctx context.Context, sessionID string) (mount.Descriptor, error)
}

var _ Builder = (*thunder.Builder)(nil)

// Server exposes a Builder as an MCP server.
type Server struct {
	builder   Builder
	parser    *parser.Parser
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP Server instance.
func NewServer(b Builder, opts ...Option) *Server {
	s := &Server{
		builder: b,
		parser:  parser.New(parser.WithMarkdownFallback()),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		mcpServer: server.NewMCPServer("thunder-mcp", strings.TrimSpace(thunder.Version),
			server.WithToolCapabilities(true),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, e.g. for in-process clients.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE and stops when ctx is done.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP Server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Info("Shutdown signal received, shutting down MCP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("select_template",
		mcp.WithDescription("Pick the starter template for a project description."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Project description")),
	), s.handleTemplate)

	s.mcpServer.AddTool(mcp.NewTool("start_session",
		mcp.WithDescription("Create a session from a project description and generate the first version."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Project description")),
		mcp.WithOutputSchema[SessionSummary](),
	), s.sessionTool("start_session", func(ctx context.Context, req mcp.CallToolRequest) (*domain.Session, error) {
		prompt, err := req.RequireString("prompt")
		if err != nil {
			return nil, err
		}
		return s.builder.Start(ctx, prompt)
	}))

	s.mcpServer.AddTool(mcp.NewTool("continue_session",
		mcp.WithDescription("Send a follow-up request to the model for an existing session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Follow-up request")),
		mcp.WithOutputSchema[SessionSummary](),
	), s.sessionTool("continue_session", func(ctx context.Context, req mcp.CallToolRequest) (*domain.Session, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return nil, err
		}
		msg, err := req.RequireString("message")
		if err != nil {
			return nil, err
		}
		return s.builder.Continue(ctx, id, msg)
	}))

	s.mcpServer.AddTool(mcp.NewTool("ingest",
		mcp.WithDescription("Apply raw action markup to a session without calling the model."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text containing artifact and action tags")),
		mcp.WithOutputSchema[SessionSummary](),
	), s.sessionTool("ingest", func(ctx context.Context, req mcp.CallToolRequest) (*domain.Session, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return nil, err
		}
		text, err := req.RequireString("text")
		if err != nil {
			return nil, err
		}
		return s.builder.Ingest(ctx, id, text)
	}))

	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Summarize a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[SessionSummary](),
	), s.sessionTool("get_session", func(ctx context.Context, req mcp.CallToolRequest) (*domain.Session, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return nil, err
		}
		return s.builder.Session(ctx, id)
	}))

	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List session identifiers."),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ids, err := s.builder.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list failed: %v", err)), nil
		}
		if ids == nil {
			ids = []string{}
		}
		return mcp.NewToolResultJSON(map[string]any{"sessions": ids})
	})

	s.mcpServer.AddTool(mcp.NewTool("cancel_generation",
		mcp.WithDescription("Abort the model call running for a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultJSON(map[string]any{"canceled": s.builder.Cancel(id)})
	})

	s.mcpServer.AddTool(mcp.NewTool("search_files",
		mcp.WithDescription("Fuzzy search the files of a session. Returns paths and contents."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("query", mcp.Description("Fuzzy path query; empty lists every file")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of files, default 20")),
	), s.handleSearch)

	s.mcpServer.AddTool(mcp.NewTool("get_mount",
		mcp.WithDescription("Get the sandbox mount descriptor of a session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
	), func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("session_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		d, err := s.builder.Mount(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("mount failed: %v", err)), nil
		}
		return mcp.NewToolResultJSON(d)
	})

	s.mcpServer.AddTool(mcp.NewTool("parse",
		mcp.WithDescription("Parse action markup and return the resulting steps and file tree. Nothing is stored."),
		mcp.WithString("text", mcp.Required(), mcp.Description("Text containing artifact and action tags")),
	), s.handleParse)
}

// sessionTool adapts a session operation to a tool handler returning a summary.
// Operation failures are reported as tool errors, not protocol errors.
func (s *Server) sessionTool(name string, op func(context.Context, mcp.CallToolRequest) (*domain.Session, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sess, err := op(ctx, req)
		if err != nil {
			s.logger.Warn("MCP tool failed", "tool", name, "err", err)
			return mcp.NewToolResultError(fmt.Sprintf("%s failed: %v", name, err)), nil
		}
		summary := Summarize(sess)
		return mcp.NewToolResultStructured(summary, summaryText(summary)), nil
	}
}

func summaryText(s SessionSummary) string {
	text := fmt.Sprintf("session %s (%s): %d steps, %d files", s.ID, s.Status, s.Steps, len(s.Files))
	if s.LastError != "" {
		text += ", last error: " + s.LastError
	}
	return text
}

func (s *Server) handleTemplate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt, err := req.RequireString("prompt")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	tpl, err := s.builder.Template(ctx, prompt)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("template failed: %v", err)), nil
	}
	return mcp.NewToolResultJSON(map[string]any{"stack": tpl.Stack, "title": tpl.Title})
}

type fileEntry struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	limit := req.GetInt("limit", 20)

	files, err := s.builder.Files(ctx, id, req.GetString("query", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}
	out := make([]fileEntry, len(files))
	for i, f := range files {
		out[i] = fileEntry{Path: f.Path, Content: f.Content}
	}
	return mcp.NewToolResultJSON(map[string]any{"files": out})
}

func (s *Server) handleParse(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, err := req.RequireString("text")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	doc := s.parser.ParseDocument(text)
	res := reconcile.New().Reconcile(ctx, "", steps.MergeDocument(nil, doc), nil)

	paths := []string{}
	for _, f := range filetree.Files(res.Tree) {
		paths = append(paths, f.Path)
	}
	return mcp.NewToolResultJSON(map[string]any{
		"steps":       res.Steps,
		"files":       paths,
		"diagnostics": doc.Diagnostics,
	})
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("thunder://stacks", "Available template stacks",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		stacks, err := s.builder.Stacks(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list stacks: %w", err)
		}
		jsonBytes, _ := json.Marshal(stacks)
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "thunder://stacks",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})

	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(sessionURIPrefix+"{id}", "Session snapshot",
		mcp.WithTemplateDescription("Full session including steps, tree and conversation"),
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		id := strings.TrimPrefix(request.Params.URI, sessionURIPrefix)
		sess, err := s.builder.Session(ctx, id)
		if err != nil {
			return nil, err
		}
		jsonBytes, err := json.Marshal(sess)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      request.Params.URI,
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
