// Package server exposes the question answering pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"ragqa/internal/domain"
	"ragqa/internal/service"
)

// maxBodyBytes bounds a request body; images arrive inline as base64.
const maxBodyBytes = 20 << 20

// maxWriteMargin caps the time kept back from WriteTimeout for writing a response.
const maxWriteMargin = 5 * time.Second

// Answerer is the pipeline behind the API.
type Answerer interface {
	Answer(ctx context.Context, q domain.Query) (domain.Answer, error)
	IndexSize() int
	Model() string
}

// Options configures the listener.
type Options struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	answerer Answerer
	logger   *log.Logger
	server   *http.Server
	budget   time.Duration
}

func New(answerer Answerer, opts Options, logger *log.Logger) *Server {
	s := &Server{answerer: answerer, logger: logger, budget: answerBudget(opts.WriteTimeout)}
	s.server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       opts.ReadTimeout,
		WriteTimeout:      opts.WriteTimeout,
	}
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", s.handleQuery)
	mux.HandleFunc("/api", s.handleQuery)
	mux.HandleFunc("/health", s.handleHealth)
	return s.withMiddleware(mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	if s.budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.budget)
		defer cancel()
	}
	var q domain.Query
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&q); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	ans, err := s.answer(ctx, q)
	if err != nil {
		writeError(w, domain.HTTPStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

type result struct {
	answer domain.Answer
	err    error
}

// answer runs the pipeline and gives up when ctx ends, even if the pipeline
// does not, so a response is always written before the connection's write deadline.
func (s *Server) answer(ctx context.Context, q domain.Query) (domain.Answer, error) {
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error().
					Str("request_id", service.RequestID(ctx)).
					Str("panic", fmt.Sprint(p)).
					Msg("panic recovered")
				done <- result{err: fmt.Errorf("internal error: %v", p)}
			}
		}()
		ans, err := s.answerer.Answer(ctx, q)
		done <- result{answer: ans, err: err}
	}()
	select {
	case res := <-done:
		return res.answer, res.err
	case <-ctx.Done():
		return domain.Answer{}, fmt.Errorf("answering stopped: %w", ctx.Err())
	}
}

// answerBudget is the time a question may take so that its response still fits in writeTimeout.
func answerBudget(writeTimeout time.Duration) time.Duration {
	if writeTimeout <= 0 {
		return 0
	}
	return writeTimeout - min(writeTimeout/5, maxWriteMargin)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"records": s.answerer.IndexSize(),
		"model":   s.answerer.Model(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
