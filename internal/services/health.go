package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/gradecast/predictor-service/internal/config"
)

// Version is reported by the root endpoint and health messages.
const Version = "2.0"

const heartbeatInterval = 30 * time.Second

// HealthReport is the /health payload. Metrics are omitted while the
// artifacts are not loaded.
type HealthReport struct {
	Status      string   `json:"status"` // healthy or unavailable
	ModelLoaded bool     `json:"model_loaded"`
	R2Score     *float64 `json:"r2_score,omitempty"`
	MAE         *float64 `json:"mae,omitempty"`
}

// Health reports the Uninitialized/Ready state of the prediction service.
func (s *PredictionService) Health() HealthReport {
	store, ok := s.Artifacts()
	if !ok {
		return HealthReport{Status: "unavailable", ModelLoaded: false}
	}
	meta := store.Metadata()
	return HealthReport{
		Status:      "healthy",
		ModelLoaded: true,
		R2Score:     &meta.R2Score,
		MAE:         &meta.MAE,
	}
}

// HealthService answers models.<name>.health requests and publishes
// heartbeats on models.<name>.heartbeat.
type HealthService struct {
	nats       *nats.Conn
	config     *config.Config
	service    *PredictionService
	monitoring *MonitoringService
}

type HealthStatus struct {
	ModelName    string              `json:"model_name"`
	Status       string              `json:"status"` // online, unavailable, busy
	ModelLoaded  bool                `json:"model_loaded"`
	LastActivity time.Time           `json:"last_activity"`
	Capabilities []string            `json:"capabilities"`
	Endpoint     string              `json:"endpoint"`
	NATSTopic    string              `json:"nats_topic"`
	Version      string              `json:"version"`
	Health       HealthReport        `json:"health"`
	Backpressure *BackpressureReport `json:"backpressure,omitempty"`
}

func NewHealthService(natsConn *nats.Conn, cfg *config.Config, service *PredictionService, monitoring *MonitoringService) *HealthService {
	return &HealthService{
		nats:       natsConn,
		config:     cfg,
		service:    service,
		monitoring: monitoring,
	}
}

func (h *HealthService) Start(ctx context.Context) error {
	healthTopic := fmt.Sprintf("models.%s.health", h.config.ModelName)

	_, err := h.nats.Subscribe(healthTopic, func(msg *nats.Msg) {
		statusData, err := json.Marshal(h.getHealthStatus())
		if err != nil {
			slog.Error("Failed to marshal health status", "error", err)
			return
		}

		// Clients may send reply_to in the payload instead of using msg.Reply.
		reply := msg.Reply
		if reply == "" {
			var req struct {
				ReplyTo string `json:"reply_to"`
			}
			if json.Unmarshal(msg.Data, &req) == nil {
				reply = req.ReplyTo
			}
		}
		if reply == "" {
			return
		}
		if err := h.nats.Publish(reply, statusData); err != nil {
			slog.Error("Failed to respond to health check", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to health topic: %w", err)
	}

	slog.Info("Health service started", "topic", healthTopic)

	go h.publishHeartbeats(ctx, h.nats)
	return nil
}

func (h *HealthService) publishHeartbeats(ctx context.Context, pub Publisher) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	heartbeatTopic := fmt.Sprintf("models.%s.heartbeat", h.config.ModelName)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			statusData, err := json.Marshal(h.getHealthStatus())
			if err != nil {
				continue
			}
			if err := pub.Publish(heartbeatTopic, statusData); err != nil {
				slog.Warn("Failed to publish heartbeat", "error", err)
			}
		}
	}
}

func (h *HealthService) getHealthStatus() HealthStatus {
	report := h.service.Health()
	status := "online"
	if !report.ModelLoaded {
		status = "unavailable"
	}

	hs := HealthStatus{
		ModelName:    h.config.ModelName,
		Status:       status,
		ModelLoaded:  report.ModelLoaded,
		LastActivity: time.Now(),
		Capabilities: []string{"grade-prediction", "batch-prediction"},
		Endpoint:     fmt.Sprintf("http://%s", h.config.HTTPAddr),
		NATSTopic:    h.config.Subject,
		Version:      Version,
		Health:       report,
	}
	if h.monitoring != nil {
		bp := h.monitoring.Snapshot()
		hs.Backpressure = &bp
		if report.ModelLoaded && bp.Status == StatusCritical {
			hs.Status = "busy"
		}
	}
	return hs
}
