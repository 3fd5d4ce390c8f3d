package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gradecast/predictor-service/internal/config"
)

const (
	StatusHealthy  = "healthy"
	StatusWarning  = "warning"
	StatusCritical = "critical"
)

// MonitoringService tracks queued and in-flight NATS predictions and
// publishes backpressure reports to MONITORING_TOPIC.<model>.
type MonitoringService struct {
	publisher    Publisher
	config       *config.Config
	pendingCount int64 // atomic counter
	activeCount  int64 // atomic counter for active processing
}

type BackpressureReport struct {
	ModelName        string    `json:"model_name"`
	PendingMessages  int64     `json:"pending_messages"`
	ActiveProcessing int64     `json:"active_processing"`
	Timestamp        time.Time `json:"timestamp"`
	WorkerCount      int       `json:"worker_count"`
	QueueCapacity    int       `json:"queue_capacity"`
	Status           string    `json:"status"` // healthy, warning, critical
}

func NewMonitoringService(publisher Publisher, cfg *config.Config) *MonitoringService {
	return &MonitoringService{
		publisher: publisher,
		config:    cfg,
	}
}

func (m *MonitoringService) Start(ctx context.Context) error {
	slog.Info("Starting monitoring service",
		"topic", m.Topic(),
		"threshold", m.config.BackpressureThreshold)

	go m.monitorBackpressure(ctx)
	return nil
}

func (m *MonitoringService) Topic() string {
	return fmt.Sprintf("%s.%s", m.config.MonitoringTopic, m.config.ModelName)
}

func (m *MonitoringService) monitorBackpressure(ctx context.Context) {
	highLoadTicker := time.NewTicker(1 * time.Second) // pending > 0
	lowLoadTicker := time.NewTicker(10 * time.Second) // idle
	defer highLoadTicker.Stop()
	defer lowLoadTicker.Stop()

	currentTicker := lowLoadTicker

	for {
		select {
		case <-ctx.Done():
			return
		case <-currentTicker.C:
			report := m.Snapshot()

			if report.PendingMessages > 0 && currentTicker == lowLoadTicker {
				currentTicker = highLoadTicker
				slog.Debug("Switched to high-frequency monitoring", "pending", report.PendingMessages)
			} else if report.PendingMessages == 0 && currentTicker == highLoadTicker {
				currentTicker = lowLoadTicker
				slog.Debug("Switched to low-frequency monitoring")
			}

			m.publish(report)
		}
	}
}

// Snapshot builds a report from the current counters.
func (m *MonitoringService) Snapshot() BackpressureReport {
	pending := atomic.LoadInt64(&m.pendingCount)
	active := atomic.LoadInt64(&m.activeCount)
	return BackpressureReport{
		ModelName:        m.config.ModelName,
		PendingMessages:  pending,
		ActiveProcessing: active,
		Timestamp:        time.Now(),
		WorkerCount:      m.config.Concurrency,
		QueueCapacity:    m.config.MaxMsgs,
		Status:           m.calculateStatus(pending, active),
	}
}

func (m *MonitoringService) publish(report BackpressureReport) {
	reportData, err := json.Marshal(report)
	if err != nil {
		slog.Error("Failed to marshal backpressure report", "error", err)
		return
	}

	if err := m.publisher.Publish(m.Topic(), reportData); err != nil {
		slog.Warn("Failed to publish backpressure report", "error", err)
		return
	}

	if report.PendingMessages > 0 || report.Status != StatusHealthy {
		slog.Info("Backpressure report",
			"pending", report.PendingMessages,
			"active", report.ActiveProcessing,
			"status", report.Status)
	}
}

func (m *MonitoringService) calculateStatus(pending, active int64) string {
	total := pending + active
	switch {
	case total == 0:
		return StatusHealthy
	case total < int64(m.config.BackpressureThreshold):
		return StatusWarning
	default:
		return StatusCritical
	}
}

func (m *MonitoringService) IncrementPending() { atomic.AddInt64(&m.pendingCount, 1) }
func (m *MonitoringService) DecrementPending() { atomic.AddInt64(&m.pendingCount, -1) }
func (m *MonitoringService) IncrementActive()  { atomic.AddInt64(&m.activeCount, 1) }
func (m *MonitoringService) DecrementActive()  { atomic.AddInt64(&m.activeCount, -1) }

func (m *MonitoringService) GetPendingCount() int64 { return atomic.LoadInt64(&m.pendingCount) }
func (m *MonitoringService) GetActiveCount() int64  { return atomic.LoadInt64(&m.activeCount) }
