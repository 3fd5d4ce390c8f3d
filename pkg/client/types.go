package client

import (
	"encoding/json"
	"fmt"
	"time"
)

// PredictionRequest is the payload published on prediction.request.<model>.
type PredictionRequest struct {
	ReqID   string          `json:"req_id"`
	TraceID string          `json:"trace_id,omitempty"`
	Mode    string          `json:"mode"`
	Input   json.RawMessage `json:"input"`
	ReplyTo string          `json:"reply_to"`
}

// Confidence is the model's static test-set performance.
type Confidence struct {
	R2Score float64 `json:"r2_score"`
	MAE     float64 `json:"mae"`
}

// PredictionResult is the result of a single prediction.
type PredictionResult struct {
	Prediction    float64         `json:"prediction"`
	Confidence    Confidence      `json:"confidence"`
	InputFeatures json.RawMessage `json:"input_features"`
}

// BatchItem is one row of a batch result; Student is the 1-based input index.
type BatchItem struct {
	Student    int             `json:"student"`
	Prediction float64         `json:"prediction"`
	Input      json.RawMessage `json:"input"`
}

type BatchResult struct {
	Predictions []BatchItem `json:"predictions"`
	Count       int         `json:"count"`
	Confidence  Confidence  `json:"confidence"`
}

// reply is the envelope every prediction worker publishes.
type reply struct {
	ReqID      string          `json:"req_id"`
	Result     json.RawMessage `json:"result"`
	Error      *RemoteError    `json:"error"`
	Status     int             `json:"status"`
	DurationMs int64           `json:"duration_ms"`
}

// RemoteError is a prediction failure reported by the service.
type RemoteError struct {
	Status          int      `json:"-"`
	Detail          string   `json:"detail"`
	ErrorType       string   `json:"error_type"`
	Field           string   `json:"field,omitempty"`
	Value           any      `json:"value,omitempty"`
	MissingFeatures []string `json:"missing_features,omitempty"`
	Student         int      `json:"student,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.ErrorType, e.Status, e.Detail)
}

// HealthStatus represents model health information
type HealthStatus struct {
	ModelName    string    `json:"model_name"`
	Status       string    `json:"status"`
	ModelLoaded  bool      `json:"model_loaded"`
	LastActivity time.Time `json:"last_activity"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	NATSTopic    string    `json:"nats_topic"`
	Version      string    `json:"version"`
}
