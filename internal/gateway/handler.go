// Package gateway exposes the pipeline control surface: REST endpoints
// for lifecycle and inspection plus a WebSocket event stream.
package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lingocast/lingocast/internal/pipeline"
)

const maxRequestBodySize = 1 << 20 // 1 MiB

// ErrorResponse is the JSON body for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the liveness probe body.
type HealthResponse struct {
	Status string `json:"status"`
}

// Handler provides the REST control endpoints.
type Handler struct {
	ctrl *pipeline.Controller
}

// NewHandler creates the REST handler around a pipeline controller.
func NewHandler(ctrl *pipeline.Controller) *Handler {
	return &Handler{ctrl: ctrl}
}

// RegisterRoutes registers all REST routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /pipeline/start", h.Start)
	mux.HandleFunc("POST /pipeline/stop", h.Stop)
	mux.HandleFunc("GET /pipeline/status", h.Status)
	mux.HandleFunc("GET /audio/devices", h.Devices)
	mux.HandleFunc("GET /health", h.Health)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// Start handles POST /pipeline/start
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var cfg pipeline.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.ctrl.Start(r.Context(), cfg); err != nil {
		var cfgErr *pipeline.ConfigError
		var devErr *pipeline.DeviceError
		switch {
		case errors.Is(err, pipeline.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.As(err, &cfgErr):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &devErr):
			writeError(w, http.StatusInternalServerError, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Stop handles POST /pipeline/stop. Stopping an idle pipeline succeeds.
func (h *Handler) Stop(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Stop(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Status handles GET /pipeline/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ctrl.Status())
}

// Devices handles GET /audio/devices
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.ctrl.Devices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "enumerating devices: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// Health handles GET /health. It never touches the pipeline.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
