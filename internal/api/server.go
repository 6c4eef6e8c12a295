package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/five82/squint/internal/aggregate"
)

const shutdownTimeout = 10 * time.Second

// Options configure a Server.
type Options struct {
	Service         *Service
	Logger          zerolog.Logger
	RateLimit       int
	RateLimitWindow time.Duration
}

// Server serves the HTTP API.
type Server struct {
	service *Service
	log     zerolog.Logger
	limiter *RateLimiter
	router  *mux.Router
}

// NewServer builds the router and its middleware.
func NewServer(opts Options) *Server {
	s := &Server{
		service: opts.Service,
		log:     opts.Logger,
		limiter: NewRateLimiter(opts.RateLimit, opts.RateLimitWindow),
	}

	r := mux.NewRouter()
	r.Use(LoggingMiddleware(s.log))
	r.Use(s.limiter.Middleware)

	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/rollup", s.handleRollup).Methods(http.MethodGet)
	api.HandleFunc("/entries", s.handleEntries).Methods(http.MethodGet)
	api.HandleFunc("/clients", s.handleClients).Methods(http.MethodGet)
	api.HandleFunc("/clients/{ip}", s.handleClientDetail).Methods(http.MethodGet)
	api.HandleFunc("/recent", s.handleRecent).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	s.router = r
	return s
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info().Msg("api server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleRollup(w http.ResponseWriter, r *http.Request) {
	win, ok := windowParam(w, r)
	if !ok {
		return
	}
	resp := s.service.Rollup(r.Context(), win)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	win, ok := windowParam(w, r)
	if !ok {
		return
	}
	resp := s.service.Entries(r.Context(), win)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	resp := s.service.Clients(r.Context())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClientDetail(w http.ResponseWriter, r *http.Request) {
	win, ok := windowParam(w, r)
	if !ok {
		return
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid page " + strconv.Quote(raw)})
			return
		}
		page = n
	}
	resp := s.service.ClientDetail(r.Context(), mux.Vars(r)["ip"], win, page)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit " + strconv.Quote(raw)})
			return
		}
		limit = n
	}
	resp := s.service.Recent(r.Context(), limit)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := s.service.Status()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	resp, err := s.service.Refresh(r.Context())
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func windowParam(w http.ResponseWriter, r *http.Request) (aggregate.Window, bool) {
	win, err := aggregate.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return aggregate.Window{}, false
	}
	return win, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
