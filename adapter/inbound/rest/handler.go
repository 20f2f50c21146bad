package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/ajkula/logwatcher/config"
	"github.com/ajkula/logwatcher/domain/model"
	"github.com/ajkula/logwatcher/domain/port/inbound"
	"github.com/ajkula/logwatcher/domain/port/outbound"
)

// Handler serves the watch control API
type Handler struct {
	watchService inbound.WatchService
	config       *config.Config
	logger       outbound.Logger
}

// contentViewer is implemented by viewers that keep their text
type contentViewer interface {
	Contents() string
}

// WatchRequest is the body of POST /api/watches
type WatchRequest struct {
	Path  string `json:"path"`
	Quiet bool   `json:"quiet"`
}

type WatchResponse struct {
	Path   string `json:"path"`
	Status string `json:"status"`
}

func NewHandler(watchService inbound.WatchService, cfg *config.Config, logger outbound.Logger) *Handler {
	return &Handler{
		watchService: watchService,
		config:       cfg,
		logger:       logger,
	}
}

// SetupRoutes configures the REST API routes
func (h *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.healthCheck).Methods("GET")

	router.HandleFunc("/api/status", h.getStatus).Methods("GET")
	router.HandleFunc("/api/config", h.getConfig).Methods("GET")

	router.HandleFunc("/api/watches", h.listWatches).Methods("GET")
	router.HandleFunc("/api/watches", h.watchFile).Methods("POST")
	router.HandleFunc("/api/watches", h.unwatchFile).Methods("DELETE")
	router.HandleFunc("/api/watches/all", h.unwatchAll).Methods("DELETE")
	router.HandleFunc("/api/watches/output", h.getOutput).Methods("GET")

	router.HandleFunc("/api/watches/presets", h.listPresets).Methods("GET")
	router.HandleFunc("/api/watches/presets/{name}", h.watchPreset).Methods("POST")
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	nodeID := ""
	if h.config != nil {
		nodeID = h.config.General.NodeID
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"nodeId":  nodeID,
		"watches": h.watchService.Status(),
	})
}

func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	if h.config == nil {
		writeError(w, http.StatusNotFound, "no configuration")
		return
	}
	writeJSON(w, http.StatusOK, h.config.Public())
}

func (h *Handler) listWatches(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"paths": h.watchService.ListWatched(),
	})
}

func (h *Handler) watchFile(w http.ResponseWriter, r *http.Request) {
	var req WatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	events, err := h.watchService.Watch(r.Context(), req.Path, inbound.WatchOptions{Quiet: req.Quiet})
	if err != nil {
		h.logger.Warn("Watch request failed", "path", req.Path, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, WatchResponse{Path: events.Path(), Status: "watching"})
}

func (h *Handler) watchPreset(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	quiet := r.URL.Query().Get("quiet") == "true"
	events, err := h.watchService.WatchPreset(r.Context(), name, inbound.WatchOptions{Quiet: quiet})
	if err != nil {
		h.logger.Warn("Preset watch request failed", "preset", name, "error", err)
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, WatchResponse{Path: events.Path(), Status: "watching"})
}

func (h *Handler) listPresets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"presets": h.watchService.Presets(),
	})
}

func (h *Handler) unwatchFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	if err := h.watchService.Unwatch(path); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, WatchResponse{Path: path, Status: "stopped"})
}

func (h *Handler) unwatchAll(w http.ResponseWriter, r *http.Request) {
	if err := h.watchService.UnwatchAll(); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (h *Handler) getOutput(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	viewer, ok := h.watchService.Viewer(path)
	if !ok {
		writeError(w, http.StatusNotFound, model.ErrNotWatching.Error())
		return
	}

	cv, ok := viewer.(contentViewer)
	if !ok {
		writeError(w, http.StatusNotImplemented, "viewer does not keep its output")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(cv.Contents()))
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrNotWatching), errors.Is(err, model.ErrUnknownPreset):
		return http.StatusNotFound
	case errors.Is(err, model.ErrReadTail):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrEmptyPath):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrServiceClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
