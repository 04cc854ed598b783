// Package server exposes the agent bridge over HTTP so external agents and
// UIs can call Merlin's functions remotely.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/merlin-labs/merlin/bridge"
	"github.com/merlin-labs/merlin/core"
)

// Config configures a Server instance.
type Config struct {
	Registry   *bridge.Registry
	Rescanner  *Rescanner
	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger
}

// Server is the Merlin HTTP API server.
type Server struct {
	registry   *bridge.Registry
	rescanner  *Rescanner
	corsOrigin string
	maxBody    int64
	logger     *slog.Logger
}

// New creates a Server with the given configuration.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	return &Server{
		registry:   cfg.Registry,
		rescanner:  cfg.Rescanner,
		corsOrigin: corsOrigin,
		maxBody:    maxBody,
		logger:     logger,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts the API routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/functions", s.handleListFunctions)
	mux.HandleFunc("POST /v1/functions/{name}", s.handleCallFunction)
	mux.HandleFunc("GET /v1/detected", s.handleDetected)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListFunctions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"functions": s.registry.List()})
}

func (s *Server) handleCallFunction(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "PARSE", "reading request body: "+err.Error())
		return
	}

	start := time.Now()
	result, err := s.registry.Call(r.Context(), name, body)
	if err != nil {
		s.logger.Warn("function call failed",
			"function", name,
			"duration", time.Since(start),
			"error", err)
		status, code := httpStatusFor(err)
		writeError(w, status, code, err.Error())
		return
	}

	s.logger.Info("function call",
		"function", name,
		"duration", time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (s *Server) handleDetected(w http.ResponseWriter, _ *http.Request) {
	if s.rescanner == nil {
		writeError(w, http.StatusNotFound, "SCHEMA", "periodic detection is not enabled")
		return
	}
	results, scannedAt := s.rescanner.Latest()
	writeJSON(w, http.StatusOK, map[string]any{
		"scanned_at": scannedAt,
		"tools":      results,
	})
}

// httpStatusFor maps a bridge error to an HTTP status and machine code.
func httpStatusFor(err error) (int, string) {
	if errors.Is(err, bridge.ErrUnknownFunction) {
		return http.StatusNotFound, "SCHEMA"
	}
	switch core.CodeOf(err) {
	case core.CodeParse, core.CodeSchema:
		return http.StatusBadRequest, core.CodeOf(err)
	case core.CodeConflict:
		return http.StatusConflict, core.CodeConflict
	case core.CodeResolution:
		return http.StatusUnprocessableEntity, core.CodeResolution
	case core.CodeTimeout:
		return http.StatusGatewayTimeout, core.CodeTimeout
	case core.CodeExecution:
		return http.StatusInternalServerError, core.CodeExecution
	default:
		return http.StatusInternalServerError, "EXECUTION"
	}
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
