// Package httpapi serves the tool surface over HTTP, one session per client.
package httpapi

import (
	"context"
	"errors"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/ppiankov/intake/internal/dispatch"
	"github.com/ppiankov/intake/internal/intake"
	"github.com/ppiankov/intake/internal/model"
	"github.com/ppiankov/intake/internal/session"
	"github.com/ppiankov/intake/internal/tools"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

// OperationRequest is the body of an operation call
type OperationRequest struct {
	Argument string `json:"argument"`
}

// MessageResponse carries an operation reply. Error is set when report
// generation failed.
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// SessionResponse is returned when a session is created
type SessionResponse struct {
	SessionID string `json:"session_id"`
}

// SnapshotResponse describes the current state of a session
type SnapshotResponse struct {
	SessionID       string             `json:"session_id"`
	State           intake.State       `json:"state"`
	AssessmentStale bool               `json:"assessment_stale"`
	Record          model.IntakeRecord `json:"record"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Server routes requests to per-session tool surfaces
type Server struct {
	registry *session.Registry
	logger   *zap.Logger
	baseCtx  context.Context
	srv      *fasthttp.Server
}

// NewServer creates a server over registry
func NewServer(registry *session.Registry, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry: registry,
		logger:   logger,
		baseCtx:  context.Background(),
	}
	s.srv = &fasthttp.Server{
		Handler:      s.Handle,
		Name:         "intake",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}
	return s
}

// ListenAndServe serves on addr until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("http api listening", zap.String("addr", addr))
	return s.srv.ListenAndServe(addr)
}

// Shutdown stops accepting connections and waits for open requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.ShutdownWithContext(ctx)
}

// Handle is the fasthttp request handler
func (s *Server) Handle(ctx *fasthttp.RequestCtx) {
	method := string(ctx.Method())
	parts := strings.Split(strings.Trim(string(ctx.Path()), "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] == "healthz":
		s.requireMethod(ctx, method, fasthttp.MethodGet, func() {
			writeJSON(ctx, fasthttp.StatusOK, map[string]string{"status": "ok"})
		})
	case len(parts) == 1 && parts[0] == "operations":
		s.requireMethod(ctx, method, fasthttp.MethodGet, func() {
			writeJSON(ctx, fasthttp.StatusOK, tools.Catalog())
		})
	case len(parts) == 1 && parts[0] == "sessions":
		s.requireMethod(ctx, method, fasthttp.MethodPost, func() {
			surface := s.registry.Create()
			writeJSON(ctx, fasthttp.StatusCreated, SessionResponse{SessionID: surface.Session().ID()})
		})
	case len(parts) == 2 && parts[0] == "sessions":
		switch method {
		case fasthttp.MethodGet:
			s.handleSnapshot(ctx, parts[1])
		case fasthttp.MethodDelete:
			s.handleDelete(ctx, parts[1])
		default:
			writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		}
	case len(parts) == 4 && parts[0] == "sessions" && parts[2] == "operations":
		s.requireMethod(ctx, method, fasthttp.MethodPost, func() {
			s.handleOperation(ctx, parts[1], parts[3])
		})
	default:
		writeError(ctx, fasthttp.StatusNotFound, "Not found")
	}
}

func (s *Server) requireMethod(ctx *fasthttp.RequestCtx, got, want string, next func()) {
	if got != want {
		writeError(ctx, fasthttp.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	next()
}

func (s *Server) handleSnapshot(ctx *fasthttp.RequestCtx, id string) {
	surface, ok := s.registry.Get(id)
	if !ok {
		writeError(ctx, fasthttp.StatusNotFound, "Unknown session: "+id)
		return
	}
	sess := surface.Session()
	writeJSON(ctx, fasthttp.StatusOK, SnapshotResponse{
		SessionID:       sess.ID(),
		State:           sess.State(),
		AssessmentStale: sess.AssessmentStale(),
		Record:          sess.Snapshot(),
		CreatedAt:       sess.CreatedAt(),
		UpdatedAt:       sess.UpdatedAt(),
	})
}

func (s *Server) handleDelete(ctx *fasthttp.RequestCtx, id string) {
	if !s.registry.Delete(id) {
		writeError(ctx, fasthttp.StatusNotFound, "Unknown session: "+id)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleOperation(ctx *fasthttp.RequestCtx, id, name string) {
	surface, ok := s.registry.Get(id)
	if !ok {
		writeError(ctx, fasthttp.StatusNotFound, "Unknown session: "+id)
		return
	}

	spec, ok := tools.Lookup(name)
	if !ok {
		writeError(ctx, fasthttp.StatusNotFound, "Unknown operation: "+name)
		return
	}

	var req OperationRequest
	if body := ctx.PostBody(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(ctx, fasthttp.StatusBadRequest, "Invalid request body: "+err.Error())
			return
		}
	}

	msg, err := surface.Invoke(s.baseCtx, spec.Op, req.Argument)
	if err != nil {
		var genErr *dispatch.ReportGenerationError
		if errors.As(err, &genErr) {
			s.logger.Error("operation failed", zap.String("session", id), zap.String("op", string(spec.Op)), zap.Error(err))
			writeJSON(ctx, fasthttp.StatusInternalServerError, MessageResponse{Message: msg, Error: err.Error()})
			return
		}
		writeError(ctx, fasthttp.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, MessageResponse{Message: msg})
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, "Encode response: "+err.Error())
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, message string) {
	body, _ := json.Marshal(ErrorResponse{Status: status, Message: message})
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}
