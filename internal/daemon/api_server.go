package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"oszshare/internal/config"
	"oszshare/internal/logging"
	"oszshare/internal/retry"
	"oszshare/internal/services"
	"oszshare/internal/share"
	"oszshare/internal/shareapi"
)

const (
	defaultShareListLimit = 20
	maxShareRequestBody   = 4096
)

// ShareRequest is the optional body of POST /api/share.
type ShareRequest struct {
	ExpiryMinutes int    `json:"expiry_minutes,omitempty"`
	SetDir        string `json:"set_dir,omitempty"`
}

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	mux    *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
		mux:    http.NewServeMux(),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	srv.mux.HandleFunc("/api/status", requireToken(token, srv.handleStatus))
	srv.mux.HandleFunc("/api/current", requireToken(token, srv.handleCurrent))
	srv.mux.HandleFunc("/api/share", requireToken(token, srv.handleShare))
	srv.mux.HandleFunc("/api/shares", requireToken(token, srv.handleShares))
	srv.mux.HandleFunc("/api/endpoint/resolve", requireToken(token, srv.handleResolve))
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil || s.bind == "" {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	server := s.server
	listener := s.listener
	s.server = nil
	s.listener = nil
	s.mu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}
	if listener != nil {
		_ = listener.Close()
	}
}

func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCurrent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	info, err := s.daemon.Current(r.Context(), refresh)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	if info == nil {
		s.writeError(w, http.StatusNotFound, "no beatmap detected")
		return
	}
	s.writeJSON(w, http.StatusOK, info)
}

func (s *apiServer) handleShare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req ShareRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxShareRequestBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	requestID := uuid.NewString()
	ctx := services.WithRequestID(services.WithTrigger(r.Context(), "api"), requestID)
	outcome, err := s.daemon.Share(ctx, share.Request{ExpiryMinutes: req.ExpiryMinutes, SetDir: req.SetDir})
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, outcome)
}

func (s *apiServer) handleShares(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit := defaultShareListLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	entries, err := s.daemon.Shares(r.Context(), limit)
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	if entries == nil {
		s.writeJSON(w, http.StatusOK, map[string]any{"shares": []any{}})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"shares": entries})
}

func (s *apiServer) handleResolve(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, err := s.daemon.ResolveEndpoint(services.WithTrigger(r.Context(), "api"))
	if err != nil {
		s.writeError(w, statusFor(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var apiErr *shareapi.APIError
	var exhausted *retry.ExhaustedError
	switch {
	case errors.Is(err, share.ErrUploadInProgress), errors.Is(err, services.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, share.ErrNoBeatmap), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, &apiErr), errors.As(err, &exhausted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
