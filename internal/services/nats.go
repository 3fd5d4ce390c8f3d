package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"

	"github.com/gradecast/predictor-service/internal/config"
)

// generateWorkerID creates a unique worker ID using timestamp and random bytes
func generateWorkerID() string {
	timestamp := time.Now().UnixNano()
	randomBytes := make([]byte, 4)
	rand.Read(randomBytes)
	return fmt.Sprintf("worker-%d-%s", timestamp, hex.EncodeToString(randomBytes))
}

// Publisher is the subset of *nats.Conn the background services publish with.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// PredictionReply is published to the request's reply_to subject.
type PredictionReply struct {
	ReqID      string     `json:"req_id"`
	Result     any        `json:"result,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
	Status     int        `json:"status"`
	DurationMs int64      `json:"duration_ms"`
}

// errMalformedRequest marks payloads that can never succeed; they are
// terminated instead of redelivered.
var errMalformedRequest = errors.New("malformed prediction request")

type NATSService struct {
	conn       *nats.Conn
	js         nats.JetStreamContext
	service    *PredictionService
	cfg        *config.Config
	monitoring *MonitoringService
}

func NewNATSService(cfg *config.Config, service *PredictionService) (*NATSService, error) {
	conn, err := nats.Connect(cfg.NatsURL, nats.Name("predictor-"+cfg.ModelName))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &NATSService{
		conn:       conn,
		js:         js,
		service:    service,
		cfg:        cfg,
		monitoring: NewMonitoringService(conn, cfg),
	}, nil
}

func (s *NATSService) Start(ctx context.Context) error {
	if err := s.ensureStream(); err != nil {
		return fmt.Errorf("failed to ensure stream: %w", err)
	}

	consumer, err := s.createConsumer()
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	slog.Info("NATS service starting",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"consumer", s.cfg.Durable,
		"concurrency", s.cfg.Concurrency)

	go s.monitoring.Start(ctx)

	for i := 0; i < s.cfg.Concurrency; i++ {
		go s.worker(ctx, consumer, generateWorkerID())
	}

	<-ctx.Done()
	slog.Info("NATS service shutting down")
	if err := s.conn.Drain(); err != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSService) ensureStream() error {
	streamInfo, err := s.js.StreamInfo(s.cfg.Stream)
	if err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("failed to get stream info: %w", err)
		}
		_, err = s.js.AddStream(&nats.StreamConfig{
			Name:      s.cfg.Stream,
			Subjects:  []string{s.cfg.Subject},
			MaxMsgs:   int64(s.cfg.MaxMsgs),
			MaxAge:    s.cfg.MaxAge,
			Storage:   nats.FileStorage,
			Retention: nats.WorkQueuePolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
		slog.Info("Created NATS stream", "name", s.cfg.Stream)
		return nil
	}

	for _, subject := range streamInfo.Config.Subjects {
		if subject == s.cfg.Subject {
			slog.Info("NATS stream already exists", "name", s.cfg.Stream, "messages", streamInfo.State.Msgs)
			return nil
		}
	}

	newConfig := streamInfo.Config
	newConfig.Subjects = append(newConfig.Subjects, s.cfg.Subject)
	if _, err := s.js.UpdateStream(&newConfig); err != nil {
		return fmt.Errorf("failed to update stream with new subject: %w", err)
	}
	slog.Info("Updated NATS stream with new subject", "name", s.cfg.Stream, "subject", s.cfg.Subject)
	return nil
}

func (s *NATSService) createConsumer() (*nats.Subscription, error) {
	sub, err := s.js.PullSubscribe(s.cfg.Subject, s.cfg.Durable, nats.ManualAck(), nats.AckWait(s.cfg.AckWait))
	if err != nil {
		return nil, fmt.Errorf("failed to create pull consumer: %w", err)
	}
	slog.Info("Created NATS consumer", "durable", s.cfg.Durable)
	return sub, nil
}

func (s *NATSService) worker(ctx context.Context, consumer *nats.Subscription, workerID string) {
	slog.Info("NATS worker starting", "worker_id", workerID)

	for {
		select {
		case <-ctx.Done():
			slog.Info("NATS worker shutting down", "worker_id", workerID)
			return
		default:
			msgs, err := consumer.Fetch(1, nats.MaxWait(time.Second))
			if err != nil {
				if errors.Is(err, nats.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				slog.Error("Failed to fetch messages", "worker_id", workerID, "error", err)
				time.Sleep(time.Second)
				continue
			}

			for _, msg := range msgs {
				s.monitoring.IncrementPending()
				s.processMessage(ctx, msg, workerID)
				s.monitoring.DecrementPending()
			}
		}
	}
}

func (s *NATSService) processMessage(ctx context.Context, msg *nats.Msg, workerID string) {
	s.monitoring.IncrementActive()
	defer s.monitoring.DecrementActive()

	replyTo, data, err := s.handlePayload(ctx, msg.Data, "nats."+msg.Subject, workerID)
	if errors.Is(err, errMalformedRequest) {
		slog.Error("Dropping malformed prediction request",
			"worker_id", workerID,
			"subject", msg.Subject,
			"error", err)
		if termErr := msg.Term(); termErr != nil {
			slog.Error("Failed to terminate message", "worker_id", workerID, "error", termErr)
		}
		return
	}
	if err != nil {
		slog.Error("Failed to build prediction reply", "worker_id", workerID, "error", err)
		msg.Nak()
		return
	}

	if replyTo != "" {
		if publishErr := s.conn.Publish(replyTo, data); publishErr != nil {
			slog.Error("Failed to publish response",
				"worker_id", workerID,
				"reply_subject", replyTo,
				"error", publishErr)
		}
	}

	if ackErr := msg.Ack(); ackErr != nil {
		slog.Error("Failed to acknowledge message", "worker_id", workerID, "error", ackErr)
	}
}

// handlePayload runs one queued request and returns the reply subject and
// the encoded PredictionReply. Prediction failures are part of the reply, not
// an error; only undecodable payloads and encoding failures are returned.
func (s *NATSService) handlePayload(ctx context.Context, payload []byte, source, workerID string) (string, []byte, error) {
	return handlePredictionPayload(ctx, s.service, payload, source, workerID)
}

func handlePredictionPayload(ctx context.Context, svc *PredictionService, payload []byte, source, workerID string) (string, []byte, error) {
	start := time.Now()

	var req PredictionRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return "", nil, fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	if req.Mode != "" && req.Mode != ModeSingle && req.Mode != ModeBatch {
		return "", nil, fmt.Errorf("%w: unknown mode %q", errMalformedRequest, req.Mode)
	}
	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}

	result, err := svc.Process(ctx, req, source, workerID)

	reply := PredictionReply{
		ReqID:      req.ReqID,
		Status:     http.StatusOK,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		status, body := NewErrorBody(err)
		reply.Status = status
		reply.Error = &body
	} else {
		reply.Result = result
	}

	data, err := json.Marshal(reply)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return req.ReplyTo, data, nil
}

func (s *NATSService) Close() error {
	if s.conn != nil {
		s.conn.Close()
	}
	return nil
}

func (s *NATSService) GetConnection() *nats.Conn {
	return s.conn
}

func (s *NATSService) GetMonitoringService() *MonitoringService {
	return s.monitoring
}
