// Package httpapi implements the HTTP surface of spec §6 "Runtime entry
// points": execute/stream missions, list/inspect/delete sessions, and the
// resumable-workflow wire protocol. Grounded on the teacher's
// runtime/mcp/httpclient transport style generalized to a server, and on
// the pack's telnet2-opencode/go-opencode internal/server package (a
// chi.Router with a per-endpoint handler file and a hand-rolled SSE writer
// over the internal event bus), the closest example in the corpus to
// "chi server streaming an internal agent-run event bus over HTTP".
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/rudi77/taskforge/internal/executor"
	"github.com/rudi77/taskforge/internal/session"
	"github.com/rudi77/taskforge/internal/workflow"
)

// Config tunes the HTTP server's own behavior, distinct from the
// executor/workflow collaborators it wires.
type Config struct {
	ReadTimeout time.Duration
}

// DefaultConfig returns spec-reasonable defaults; WriteTimeout is
// intentionally left at zero by callers that enable streaming routes, same
// as the teacher's SSE server.
func DefaultConfig() Config {
	return Config{ReadTimeout: 30 * time.Second}
}

// Server exposes the executor and workflow runtime over HTTP.
type Server struct {
	router   *chi.Mux
	config   Config
	executor *executor.Service
	sessions session.Store
	workflow *workflow.Runtime
}

// New builds a Server with its routes and middleware installed.
func New(cfg Config, exec *executor.Service, sessions session.Store, wf *workflow.Runtime) *Server {
	s := &Server{router: chi.NewRouter(), config: cfg, executor: exec, sessions: sessions, workflow: wf}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.routes()
	return s
}

// ServeHTTP satisfies http.Handler, so Server can be passed straight to
// http.Server or httptest.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Post("/execute", s.handleExecute)
	s.router.Post("/execute/stream", s.handleExecuteStream)

	s.router.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.handleListSessions)
		r.Get("/{id}", s.handleGetSession)
		r.Delete("/{id}", s.handleDeleteSession)
	})

	s.router.Route("/workflows", func(r chi.Router) {
		r.Post("/wait", s.handleWorkflowWait)
		r.Get("/{run_id}", s.handleWorkflowGet)
		r.Post("/{run_id}/resume", s.handleWorkflowResume)
		r.Post("/{run_id}/resume-and-continue", s.handleWorkflowResumeAndContinue)
	})
}
