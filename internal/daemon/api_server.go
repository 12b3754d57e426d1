package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"berth/internal/api"
	"berth/internal/config"
	"berth/internal/logging"
	"berth/internal/queue"
)

// defaultHistoryLimit caps /api/history responses when the caller does
// not specify a limit.
const defaultHistoryLimit = 100

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("/api/queue/clear-failed", authMiddleware(token, srv.handleClearFailed))
	mux.HandleFunc("/api/queue/", authMiddleware(token, srv.handleQueueItem))
	mux.HandleFunc("/api/history", authMiddleware(token, srv.handleHistory))
	mux.HandleFunc("/api/poll", authMiddleware(token, srv.handlePoll))
	mux.HandleFunc("/api/orphans/cleanup", authMiddleware(token, srv.handleOrphans))
	mux.Handle("/metrics", promhttp.HandlerFor(d.metrics.Registry(), promhttp.HandlerOpts{}))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status, err := s.daemon.Status(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var statuses []queue.Status
	for _, value := range r.URL.Query()["status"] {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		statuses = append(statuses, queue.Status(trimmed))
	}

	items, err := s.daemon.store.List(r.Context(), statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := api.QueueResponse{Items: make([]api.QueueItem, 0, len(items)), Total: len(items)}
	for _, item := range items {
		payload.Items = append(payload.Items, api.FromQueueItem(item))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handleQueueItem(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/queue/")
	idStr, action, _ := strings.Cut(rest, "/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		s.describeItem(w, r, id)
	case action == "" && r.Method == http.MethodDelete:
		s.removeItem(w, r, id)
	case action == "pause" && r.Method == http.MethodPost:
		s.controlItem(w, r, id, s.daemon.reconciler.PauseItem)
	case action == "resume" && r.Method == http.MethodPost:
		s.controlItem(w, r, id, s.daemon.reconciler.ResumeItem)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) describeItem(w http.ResponseWriter, r *http.Request, id int64) {
	item, err := s.daemon.store.GetByID(r.Context(), id)
	if errors.Is(err, queue.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "queue item not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromQueueItem(item))
}

func (s *apiServer) removeItem(w http.ResponseWriter, r *http.Request, id int64) {
	query := r.URL.Query()
	removeFromClient := parseBool(query.Get("removeFromClient"))
	deleteFiles := parseBool(query.Get("deleteFiles"))
	err := s.daemon.reconciler.RemoveItem(r.Context(), id, removeFromClient, deleteFiles)
	s.writeControlResult(w, err)
}

func (s *apiServer) controlItem(w http.ResponseWriter, r *http.Request, id int64, control func(context.Context, int64) error) {
	s.writeControlResult(w, control(r.Context(), id))
}

func (s *apiServer) writeControlResult(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "queue item not found")
	case errors.Is(err, queue.ErrTerminal):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	default:
		s.writeJSON(w, http.StatusOK, nil)
	}
}

func (s *apiServer) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	olderThan := time.Duration(0)
	if raw := strings.TrimSpace(query.Get("olderThan")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid olderThan duration")
			return
		}
		olderThan = parsed
	}
	dryRun := parseBool(query.Get("dryRun"))

	count, err := s.daemon.reconciler.ClearFailed(r.Context(), olderThan, dryRun)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count, DryRun: dryRun})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	records, err := s.daemon.store.HistoryList(r.Context(), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := api.HistoryResponse{Records: make([]api.HistoryRecord, 0, len(records))}
	for _, record := range records {
		payload.Records = append(payload.Records, api.FromHistoryRecord(record))
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func (s *apiServer) handlePoll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.daemon.reconciler.ForcePoll()
	s.writeJSON(w, http.StatusAccepted, nil)
}

func (s *apiServer) handleOrphans(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	dryRun := parseBool(r.URL.Query().Get("dryRun"))
	orphans, err := s.daemon.reconciler.CleanupOrphans(r.Context(), dryRun)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := api.OrphansResponse{Orphans: make([]api.OrphanEntry, 0, len(orphans)), DryRun: dryRun}
	for _, orphan := range orphans {
		payload.Orphans = append(payload.Orphans, api.OrphanEntry{
			ClientID:   orphan.ClientID,
			DownloadID: orphan.DownloadID,
			Title:      orphan.Title,
		})
	}
	s.writeJSON(w, http.StatusOK, payload)
}

func parseBool(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return logging.NewComponentLogger(s.logger, "api-server")
	}
	return logging.NewNop()
}
