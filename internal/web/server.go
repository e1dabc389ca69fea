package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/elys-network/farmworker/internal/logger"
	"github.com/elys-network/farmworker/internal/state"
	"github.com/elys-network/farmworker/internal/types"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

var webLogger = logger.GetForComponent("web_server")

//go:embed static/*
var staticFiles embed.FS

//go:embed static/index.html
var dashboardHTML []byte

const shutdownTimeout = 5 * time.Second

// LiveSource reads the current chain state, between cycles.
type LiveSource interface {
	Positions(ctx context.Context) ([]types.PositionSnapshot, error)
	// Position returns an error wrapping state.ErrNotFound for unknown ids.
	Position(ctx context.Context, id uint64) (types.PositionSnapshot, error)
	Workers(ctx context.Context) ([]types.WorkerSnapshot, error)
	Params() types.WorkerParameters
}

// WebServer serves the keeper dashboard and its JSON API
type WebServer struct {
	router  *mux.Router
	handler http.Handler
	port    string
	store   state.Store
	live    LiveSource
	started time.Time
}

// NewWebServer creates a new web server instance. metrics may be nil, in which case /metrics is
// not served.
func NewWebServer(port string, store state.Store, live LiveSource, metrics http.Handler) *WebServer {
	if port == "" {
		port = "8080"
	}

	server := &WebServer{
		router:  mux.NewRouter(),
		port:    port,
		store:   store,
		live:    live,
		started: time.Now(),
	}

	server.setupRoutes(metrics)
	server.handler = handlers.RecoveryHandler(handlers.PrintRecoveryStack(true))(
		gziphandler.GzipHandler(
			cors.New(cors.Options{
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{http.MethodGet, http.MethodOptions},
				AllowedHeaders: []string{"Content-Type", "Authorization"},
			}).Handler(server.router),
		),
	)
	return server
}

// setupRoutes configures all HTTP routes
func (ws *WebServer) setupRoutes(metrics http.Handler) {
	// Static files
	staticHandler := http.FileServer(http.FS(staticFiles))
	ws.router.PathPrefix("/static/").Handler(http.StripPrefix("/", staticHandler))

	// Dashboard routes
	ws.router.HandleFunc("/", ws.handleDashboard).Methods("GET")
	ws.router.HandleFunc("/dashboard", ws.handleDashboard).Methods("GET")

	ws.router.HandleFunc("/health", ws.handleHealth).Methods("GET")
	if metrics != nil {
		ws.router.Handle("/metrics", metrics).Methods("GET")
	}

	// API endpoints
	api := ws.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", ws.handleHealth).Methods("GET")
	api.HandleFunc("/cycles", ws.handleGetCycles).Methods("GET")
	api.HandleFunc("/cycles/latest", ws.handleGetLatestCycle).Methods("GET")
	api.HandleFunc("/cycles/{id:[0-9]+}", ws.handleGetCycle).Methods("GET")
	api.HandleFunc("/worker-parameters", ws.handleGetWorkerParameters).Methods("GET")
	api.HandleFunc("/worker/summary", ws.handleGetWorkerSummary).Methods("GET")
	api.HandleFunc("/performance", ws.handleGetPerformanceMetrics).Methods("GET")
	api.HandleFunc("/positions", ws.handleGetPositions).Methods("GET")
	api.HandleFunc("/positions/{id:[0-9]+}", ws.handleGetPosition).Methods("GET")
	api.HandleFunc("/workers", ws.handleGetWorkers).Methods("GET")

	ws.router.Use(ws.loggingMiddleware)
}

// Handler returns the router wrapped in the recovery, compression and CORS middleware.
func (ws *WebServer) Handler() http.Handler {
	return ws.handler
}

// Start serves until ctx is cancelled, then shuts the server down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	webLogger.Info().Str("port", ws.port).Msg("Starting web server")

	server := &http.Server{
		Addr:              ":" + ws.port,
		Handler:           ws.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		webLogger.Info().Msg("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// handleHealth returns server and keeper health
func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	hasErrors := false
	cycleInfo := map[string]interface{}{
		"last_cycle":        0,
		"last_cycle_time":   nil,
		"last_cycle_status": "unknown",
		"actions_executed":  0,
		"failed_actions":    0,
	}
	cycles, err := ws.store.RecentCycles(1)
	if err == nil && len(cycles) > 0 {
		cycle := cycles[0]
		status := "completed"
		if cycle.FailedActions > 0 {
			status = "completed_with_failures"
			hasErrors = true
		}
		cycleInfo = map[string]interface{}{
			"last_cycle":        cycle.CycleNumber,
			"last_cycle_time":   cycle.Timestamp,
			"last_cycle_status": status,
			"actions_executed":  len(cycle.TxIDs),
			"failed_actions":    cycle.FailedActions,
			"end_block":         cycle.EndBlock,
		}
	} else {
		// Nothing recorded yet, or the store is unreadable
		hasErrors = true
	}

	storeHealthy := true
	if err := ws.store.Healthy(); err != nil {
		storeHealthy = false
		hasErrors = true
	}
	// A cycle number ahead of last_cycle means a cycle is running or was aborted.
	if current, err := ws.store.CurrentCycleNumber(); err == nil {
		cycleInfo["current_cycle"] = current
	}

	overallStatus := "OK"
	statusCode := http.StatusOK
	if hasErrors {
		overallStatus = "DEGRADED"
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
		"system": map[string]interface{}{
			"version":            runtime.Version(),
			"goroutines_count":   runtime.NumGoroutine(),
			"total_alloc_bytes":  memStats.TotalAlloc,
			"heap_objects_count": memStats.HeapObjects,
			"alloc_bytes":        memStats.Alloc,
			"sys_bytes":          memStats.Sys,
			"gc_cycles":          memStats.NumGC,
			"uptime_seconds":     int64(time.Since(ws.started).Seconds()),
		},
		"component": map[string]interface{}{
			"name":    "farmworker-keeper",
			"version": "1.0.0",
		},
		"keeper_status": map[string]interface{}{
			"store_healthy":     storeHealthy,
			"has_recent_errors": hasErrors,
			"cycle_info":        cycleInfo,
		},
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// handleDashboard serves the main dashboard HTML
func (ws *WebServer) handleDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.WriteHeader(http.StatusOK)
	w.Write(dashboardHTML)
}

// handleGetCycles returns the most recent cycles, without receipts
func (ws *WebServer) handleGetCycles(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 && parsedLimit <= 100 {
			limit = parsedLimit
		}
	}

	cycles, err := ws.store.RecentCycles(limit)
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get recent cycles")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycles")
		return
	}

	response := map[string]interface{}{
		"cycles": cycles,
		"count":  len(cycles),
		"limit":  limit,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetCycle returns a specific cycle with its receipts
func (ws *WebServer) handleGetCycle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid cycle ID")
		return
	}

	cycle, err := ws.store.CycleByID(id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Cycle not found")
			return
		}
		webLogger.Error().Err(err).Int64("cycleId", id).Msg("Failed to get cycle")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve cycle")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetLatestCycle returns the most recent cycle with its receipts
func (ws *WebServer) handleGetLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycles, err := ws.store.RecentCycles(1)
	if err != nil || len(cycles) == 0 {
		if err != nil {
			webLogger.Error().Err(err).Msg("Failed to get latest cycle")
		}
		ws.writeErrorResponse(w, http.StatusNotFound, "No cycles found")
		return
	}

	cycle, err := ws.store.CycleByID(cycles[0].SnapshotID)
	if err != nil {
		webLogger.Error().Err(err).Int64("cycleId", cycles[0].SnapshotID).Msg("Failed to load latest cycle receipts")
		ws.writeJSONResponse(w, http.StatusOK, cycles[0])
		return
	}
	ws.writeJSONResponse(w, http.StatusOK, cycle)
}

// handleGetWorkerParameters returns the parameters the keeper runs with
func (ws *WebServer) handleGetWorkerParameters(w http.ResponseWriter, r *http.Request) {
	paramsID, err := ws.store.ActiveParamsID()
	if err != nil {
		webLogger.Warn().Err(err).Msg("Failed to get active worker parameters ID")
	}

	response := map[string]interface{}{
		"parameters": ws.live.Params(),
		"params_id":  paramsID,
		"timestamp":  time.Now().UTC(),
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

// handleGetWorkerSummary returns the end state of the latest cycle
func (ws *WebServer) handleGetWorkerSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := ws.store.Summary()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get worker summary")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve worker summary")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, summary)
}

// handleGetPerformanceMetrics returns keeper earnings and action counts
func (ws *WebServer) handleGetPerformanceMetrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := ws.store.Performance()
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get performance metrics")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve performance metrics")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, metrics)
}

func (ws *WebServer) handleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := ws.live.Positions(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get positions")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve positions")
		return
	}

	killable := 0
	for _, p := range positions {
		if p.Killable {
			killable++
		}
	}
	response := map[string]interface{}{
		"positions": positions,
		"count":     len(positions),
		"killable":  killable,
	}

	ws.writeJSONResponse(w, http.StatusOK, response)
}

func (ws *WebServer) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		ws.writeErrorResponse(w, http.StatusBadRequest, "Invalid position ID")
		return
	}

	position, err := ws.live.Position(r.Context(), id)
	if err != nil {
		if errors.Is(err, state.ErrNotFound) {
			ws.writeErrorResponse(w, http.StatusNotFound, "Position not found")
			return
		}
		webLogger.Error().Err(err).Uint64("positionId", id).Msg("Failed to get position")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve position")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, position)
}

func (ws *WebServer) handleGetWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := ws.live.Workers(r.Context())
	if err != nil {
		webLogger.Error().Err(err).Msg("Failed to get workers")
		ws.writeErrorResponse(w, http.StatusInternalServerError, "Failed to retrieve workers")
		return
	}

	ws.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"workers": workers,
		"count":   len(workers),
	})
}

// writeJSONResponse writes a JSON response
func (ws *WebServer) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		webLogger.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error response
func (ws *WebServer) writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	response := map[string]interface{}{
		"error":     true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	ws.writeJSONResponse(w, statusCode, response)
}

// loggingMiddleware logs HTTP requests
func (ws *WebServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapper := &responseWriterWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)

		webLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("remote_addr", r.RemoteAddr).
			Int("status", wrapper.statusCode).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture status code
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriterWrapper) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
