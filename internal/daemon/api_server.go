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
	"time"

	"github.com/google/uuid"

	"dealradar/internal/api"
	"dealradar/internal/logging"
	"dealradar/internal/services"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	backend api.Backend

	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, backend api.Backend, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:    strings.TrimSpace(bind),
		logger:  logging.NewComponentLogger(logger, "api-server"),
		backend: backend,
	}
	srv.server = &http.Server{
		Handler:           srv.handler(token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Report and chat wait on the language model.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) handler(token string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tasks", s.handleSubmit)
	mux.HandleFunc("POST /api/tasks/csv", s.handleSubmitCSV)
	mux.HandleFunc("GET /api/tasks", s.handleTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleTask)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.handleCancel)
	mux.HandleFunc("GET /api/companies", s.handleCompanies)
	mux.HandleFunc("GET /api/companies/{id}", s.handleCompany)
	mux.HandleFunc("GET /api/companies/{id}/evidence", s.handleEvidence)
	mux.HandleFunc("GET /api/companies/{id}/relevance", s.handleRelevance)
	mux.HandleFunc("GET /api/companies/{id}/report", s.handleReport)
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	return s.accessLog(authMiddleware(token, mux))
}

func (s *apiServer) start() error {
	if s.bind == "" {
		return errors.New("api bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("api server shutdown", logging.Error(err))
	}
	s.listener = nil
}

func (s *apiServer) address() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if !s.decode(w, r, &req) {
		return
	}
	task, err := s.backend.Submit(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, api.TaskResponse{Task: task})
}

func (s *apiServer) handleSubmitCSV(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInvalidInput, "api", "decode", "unreadable CSV body", err))
		return
	}
	batch, err := s.backend.SubmitCSV(r.Context(), string(data))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, batch)
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	tasks, err := s.backend.Tasks(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: tasks})
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.backend.Task(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: task})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	task, err := s.backend.CancelTask(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: task})
}

func (s *apiServer) handleCompanies(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	minScore, ok := s.intQuery(w, r, "min_score")
	if !ok {
		return
	}
	companies, err := s.backend.Companies(r.Context(), minScore, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CompanyListResponse{Companies: companies})
}

func (s *apiServer) handleCompany(w http.ResponseWriter, r *http.Request) {
	detail, err := s.backend.Company(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *apiServer) handleEvidence(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.intQuery(w, r, "limit")
	if !ok {
		return
	}
	evidence, err := s.backend.Evidence(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, evidence)
}

func (s *apiServer) handleRelevance(w http.ResponseWriter, r *http.Request) {
	relevance, err := s.backend.Relevance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, relevance)
}

func (s *apiServer) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.backend.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, report)
}

func (s *apiServer) handleChat(w http.ResponseWriter, r *http.Request) {
	var req api.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	answer, err := s.backend.Chat(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, answer)
}

func (s *apiServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.backend.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.backend.Status(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrInvalidInput, "api", "decode", "malformed JSON body", err))
		return false
	}
	return true
}

func (s *apiServer) intQuery(w http.ResponseWriter, r *http.Request, key string) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		s.writeError(w, r, services.Wrap(services.ErrInvalidInput, "api", "query", fmt.Sprintf("%s must be a non-negative integer", key), nil))
		return 0, false
	}
	return value, true
}

// statusFor maps an error kind to its HTTP status.
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindInvalidInput:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case services.KindCorruptInput:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	details := services.Details(err)
	status := statusFor(details.Kind)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("api request failed",
			logging.String("path", r.URL.Path),
			logging.String("error_kind", string(details.Kind)),
			logging.Error(err),
		)
	}
	s.writeJSON(w, status, api.ErrorResponse{
		Error: details.Message,
		Kind:  string(details.Kind),
		Hint:  details.Hint,
	})
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

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *apiServer) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx := services.WithRequestID(r.Context(), requestID)
		w.Header().Set("X-Request-ID", requestID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		s.logger.Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", time.Since(start)),
			logging.String("request_id", requestID),
		)
	})
}
