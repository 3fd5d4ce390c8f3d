package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/ulid/v2"
)

// PredictionClient talks to prediction workers over NATS.
type PredictionClient interface {
	// Predict sends one student record (any value that marshals to the
	// student JSON object).
	Predict(ctx context.Context, model string, student any) (*PredictionResult, error)
	// PredictBatch sends a slice of student records.
	PredictBatch(ctx context.Context, model string, students any) (*BatchResult, error)

	CheckHealth(ctx context.Context, model string) (*HealthStatus, error)
	Close() error
}

var _ PredictionClient = (*NATSPredictionClient)(nil)

// NATSPredictionClient implements PredictionClient with publish + reply_to.
type NATSPredictionClient struct {
	conn     *nats.Conn
	clientID string
	timeout  time.Duration
}

func NewNATSClient(natsURL, clientID string) (*NATSPredictionClient, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	if clientID == "" {
		clientID = "prediction-client"
	}

	return &NATSPredictionClient{
		conn:     conn,
		clientID: clientID,
		timeout:  30 * time.Second,
	}, nil
}

func (c *NATSPredictionClient) Predict(ctx context.Context, model string, student any) (*PredictionResult, error) {
	var out PredictionResult
	if err := c.call(ctx, model, "single", student, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NATSPredictionClient) PredictBatch(ctx context.Context, model string, students any) (*BatchResult, error) {
	var out BatchResult
	if err := c.call(ctx, model, "batch", students, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *NATSPredictionClient) call(ctx context.Context, model, mode string, input any, out any) error {
	topic, request, err := c.buildRequest(model, mode, input)
	if err != nil {
		return err
	}
	data, err := c.sendRequest(ctx, topic, request)
	if err != nil {
		return err
	}
	return decodeReply(data, out)
}

func (c *NATSPredictionClient) buildRequest(model, mode string, input any) (string, PredictionRequest, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return "", PredictionRequest{}, fmt.Errorf("failed to marshal input: %w", err)
	}
	reqID := ulid.Make().String()
	return fmt.Sprintf("prediction.request.%s", model), PredictionRequest{
		ReqID:   reqID,
		Mode:    mode,
		Input:   raw,
		ReplyTo: fmt.Sprintf("prediction.response.%s.%s", c.clientID, reqID),
	}, nil
}

// sendRequest subscribes to the reply subject first, then publishes.
func (c *NATSPredictionClient) sendRequest(ctx context.Context, topic string, request PredictionRequest) ([]byte, error) {
	slog.Debug("Sending prediction request",
		"topic", topic,
		"req_id", request.ReqID,
		"mode", request.Mode)

	requestBytes, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	replyChan := make(chan *nats.Msg, 1)
	sub, err := c.conn.Subscribe(request.ReplyTo, func(msg *nats.Msg) {
		replyChan <- msg
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to reply: %w", err)
	}
	defer sub.Unsubscribe()

	if err := c.conn.Publish(topic, requestBytes); err != nil {
		return nil, fmt.Errorf("failed to publish request: %w", err)
	}

	select {
	case msg := <-replyChan:
		return msg.Data, nil
	case <-time.After(c.timeout):
		return nil, fmt.Errorf("request timeout after %v", c.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// decodeReply unpacks a worker reply into out, or returns its RemoteError.
func decodeReply(data []byte, out any) error {
	var r reply
	if err := json.Unmarshal(data, &r); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if r.Error != nil {
		r.Error.Status = r.Status
		return r.Error
	}
	if len(r.Result) == 0 {
		return fmt.Errorf("response %s has no result", r.ReqID)
	}
	if err := json.Unmarshal(r.Result, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

// CheckHealth asks the workers of model for their status.
func (c *NATSPredictionClient) CheckHealth(ctx context.Context, model string) (*HealthStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	msg, err := c.conn.RequestWithContext(ctx, fmt.Sprintf("models.%s.health", model), nil)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	var health HealthStatus
	if err := json.Unmarshal(msg.Data, &health); err != nil {
		return nil, fmt.Errorf("failed to parse health response: %w", err)
	}
	return &health, nil
}

func (c *NATSPredictionClient) Close() error {
	if c.conn != nil {
		c.conn.Close()
	}
	return nil
}

// SetTimeout configures request timeout
func (c *NATSPredictionClient) SetTimeout(timeout time.Duration) {
	c.timeout = timeout
}
