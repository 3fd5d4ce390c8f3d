package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/oklog/ulid/v2"

	"github.com/gradecast/predictor-service/internal/services"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type PredictionHandler struct {
	service     *services.PredictionService
	environment string
	prefix      string
	maxBody     int64
}

// NewPredictionHandler builds the handler. prefix is only used to advertise
// endpoint paths on the root payload.
func NewPredictionHandler(service *services.PredictionService, environment, prefix string, maxBody int64) *PredictionHandler {
	return &PredictionHandler{
		service:     service,
		environment: environment,
		prefix:      prefix,
		maxBody:     maxBody,
	}
}

func (h *PredictionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", h.handleRoot)
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/metadata", h.handleMetadata)
	mux.HandleFunc("/predict", h.handlePredict)
	mux.HandleFunc("/predict-batch", h.handlePredictBatch)
	mux.HandleFunc("/logs", h.handleLogs)
}

func (h *PredictionHandler) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeMessage(w, http.StatusNotFound, "NotFound", "Not Found")
		return
	}
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":     "Student Grade Prediction API",
		"version":     services.Version,
		"status":      "running",
		"environment": h.environment,
		"endpoints": map[string]string{
			"predict":       h.prefix + "/predict (POST)",
			"batch_predict": h.prefix + "/predict-batch (POST)",
			"metadata":      h.prefix + "/metadata (GET)",
			"health":        h.prefix + "/health (GET)",
		},
	})
}

func (h *PredictionHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	report := h.service.Health()
	status := http.StatusOK
	if !report.ModelLoaded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func (h *PredictionHandler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	store, ok := h.service.Artifacts()
	if !ok {
		writeError(w, services.ErrNotReady)
		return
	}
	meta := store.Metadata()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"r2_score":             meta.R2Score,
		"mae":                  meta.MAE,
		"features":             meta.FeatureNames,
		"categorical_features": meta.CategoricalFeatures,
		"numerical_features":   meta.NumericalFeatures,
	})
}

func (h *PredictionHandler) handlePredict(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.PredictSingle(r.Context(), req, "http.predict", "http-worker")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *PredictionHandler) handlePredictBatch(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}
	resp, err := h.service.PredictBatch(r.Context(), req, "http.predict-batch", "http-worker")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// readRequest enforces POST and the body cap, and stamps request/trace ids.
// X-Request-ID is echoed on every response.
func (h *PredictionHandler) readRequest(w http.ResponseWriter, r *http.Request) (services.PredictionRequest, bool) {
	if !allowMethod(w, r, http.MethodPost) {
		return services.PredictionRequest{}, false
	}

	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = ulid.Make().String()
	}
	w.Header().Set("X-Request-ID", reqID)

	body := r.Body
	if h.maxBody > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeMessage(w, http.StatusRequestEntityTooLarge, "ValidationError",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return services.PredictionRequest{}, false
		}
		writeMessage(w, http.StatusBadRequest, "ValidationError", "failed to read request body")
		return services.PredictionRequest{}, false
	}

	return services.PredictionRequest{
		ReqID:   reqID,
		TraceID: r.Header.Get("X-Trace-ID"),
		Input:   data,
		ReplyTo: "direct",
	}, true
}

func (h *PredictionHandler) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	limit := defaultLogLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = min(n, maxLogLimit)
		}
	}

	logs, err := h.service.GetRequestLogs(r.Context(), limit)
	if err != nil {
		slog.Error("Failed to get logs", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method || (method == http.MethodGet && r.Method == http.MethodHead) {
		return true
	}
	w.Header().Set("Allow", method)
	writeMessage(w, http.StatusMethodNotAllowed, "MethodNotAllowed", method+" only")
	return false
}

func writeError(w http.ResponseWriter, err error) {
	status, body := services.NewErrorBody(err)
	writeJSON(w, status, body)
}

func writeMessage(w http.ResponseWriter, status int, errType, msg string) {
	writeJSON(w, status, services.ErrorBody{Detail: msg, Error: msg, ErrorType: errType})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", "error", err)
	}
}
