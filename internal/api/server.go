// Package api serves the test generation HTTP API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/seanblong/testgen/internal/auth"
	"github.com/seanblong/testgen/internal/generator"
	"github.com/seanblong/testgen/pkg/models"
)

const (
	Prefix       = "/api/v1"
	AppName      = "Test Case Generator"
	AppVersion   = "1.0.0"
	MaxBodyBytes = 10 << 20
)

// Repos is the part of the GitHub client the API needs.
type Repos interface {
	GetRepositoryInfo(ctx context.Context, owner, repo string) (models.RepositoryInfo, error)
	GetFileTree(ctx context.Context, owner, repo, path string) ([]models.FileNode, error)
	GetMultipleFileContents(ctx context.Context, owner, repo string, paths []string) []models.FileContent
	TestConnection(ctx context.Context) (string, error)
}

// Options wires the server. A nil Generator or Repos must come with the
// error that prevented building it; that error is reported on every route
// that needs the dependency.
type Options struct {
	Generator    *generator.Service
	GeneratorErr error
	Repos        Repos
	ReposErr     error
	Guard        *auth.Guard
	Logger       zerolog.Logger
}

type Server struct {
	gen    *generator.Service
	genErr error
	repos  Repos
	repErr error
	guard  *auth.Guard
	logger zerolog.Logger
}

func New(opts Options) *Server {
	s := &Server{
		gen:    opts.Generator,
		genErr: opts.GeneratorErr,
		repos:  opts.Repos,
		repErr: opts.ReposErr,
		guard:  opts.Guard,
		logger: opts.Logger,
	}
	if s.gen == nil && s.genErr == nil {
		s.genErr = errors.New("AI client is not configured")
	}
	if s.repos == nil && s.repErr == nil {
		s.repErr = errors.New("GitHub client is not configured")
	}
	return s
}

// Handler returns the routed handler with logging, request IDs and CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET "+Prefix+"/ai/health", s.handleAIHealth)
	mux.HandleFunc("GET "+Prefix+"/repos/health", s.handleReposHealth)

	mux.Handle("POST "+Prefix+"/ai/summarize-tests", s.protect(s.handleSummarizeWithoutContent))
	mux.Handle("POST "+Prefix+"/ai/summarize-tests-with-content", s.protect(s.handleSummarize))
	mux.Handle("POST "+Prefix+"/ai/generate-code", s.protect(s.handleGenerateCode))
	mux.Handle("POST "+Prefix+"/ai/generate-test", s.protect(s.handleGenerateTest))
	mux.Handle("GET "+Prefix+"/ai/test-connection", s.protect(s.handleAITestConnection))
	mux.Handle("GET "+Prefix+"/ai/supported-frameworks", s.protect(s.handleFrameworks))
	mux.Handle("GET "+Prefix+"/ai/history", s.protect(s.handleHistory))

	mux.Handle("GET "+Prefix+"/repos/test-connection", s.protect(s.handleReposTestConnection))
	mux.Handle("GET "+Prefix+"/repos/{owner}/{repo}/files", s.protect(s.handleRepoFiles))
	mux.Handle("POST "+Prefix+"/repos/file-contents", s.protect(s.handleFileContents))

	logger := s.logger
	return cors(hlog.NewHandler(logger)(
		hlog.RequestIDHandler("req_id", "X-Request-Id")(
			hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
				hlog.FromRequest(r).Info().Str("method", r.Method).Str("path", r.URL.Path).Int("status", status).Int("size", size).Dur("dur", dur).Msg("http")
			})(mux),
		),
	))
}

func (s *Server) protect(h http.HandlerFunc) http.Handler {
	return s.guard.Middleware(h)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string, err error) {
	resp := models.ErrorResponse{Error: msg, StatusCode: status}
	if err != nil {
		resp.Detail = err.Error()
	}
	writeJSON(w, r, status, resp)
}

// decode reads a JSON body of at most MaxBodyBytes into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

// badBody reports a body that could not be decoded.
func badBody(w http.ResponseWriter, r *http.Request, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		writeError(w, r, http.StatusRequestEntityTooLarge, "Request body too large", err)
		return
	}
	writeError(w, r, http.StatusUnprocessableEntity, "Invalid request body", err)
}
