package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/metrics"
	"github.com/gradecast/predictor-service/internal/models"
	"github.com/gradecast/predictor-service/internal/prediction"
	"github.com/gradecast/predictor-service/internal/repository"
)

const (
	ModeSingle = "single"
	ModeBatch  = "batch"
)

var (
	// ErrNotReady is returned while the artifacts have not been loaded.
	ErrNotReady = errors.New("model artifacts are not loaded")
	// ErrAlreadyReady is returned by a second SetReady call.
	ErrAlreadyReady = errors.New("prediction service is already initialized")
	// ErrUnexpected wraps recovered panics and other uncategorized failures.
	ErrUnexpected = errors.New("unexpected internal error")
)

// PredictionRequest is the transport-neutral request: HTTP handlers and NATS
// workers both build one of these around the raw JSON body.
type PredictionRequest struct {
	TraceID string          `json:"trace_id,omitempty"`
	ReqID   string          `json:"req_id"`
	Mode    string          `json:"mode,omitempty"` // single (default) or batch
	Input   json.RawMessage `json:"input"`
	ReplyTo string          `json:"reply_to,omitempty"`
}

// PredictionService owns the Uninitialized -> Ready transition and wraps the
// pipeline with panic recovery, request logging and metrics.
type PredictionService struct {
	ready    atomic.Pointer[readyState]
	repo     repository.Repository
	metrics  *metrics.Metrics
	maxBatch int
}

type readyState struct {
	store    *artifacts.Store
	pipeline *prediction.Pipeline
	since    time.Time
}

func NewPredictionService(repo repository.Repository, m *metrics.Metrics, maxBatch int) *PredictionService {
	if m == nil {
		m = metrics.New()
	}
	return &PredictionService{
		repo:     repo,
		metrics:  m,
		maxBatch: maxBatch,
	}
}

// SetReady publishes the loaded artifacts. It succeeds exactly once.
func (s *PredictionService) SetReady(store *artifacts.Store) error {
	if store == nil {
		return fmt.Errorf("set ready: nil artifact store")
	}
	st := &readyState{
		store:    store,
		pipeline: prediction.NewPipeline(store),
		since:    time.Now(),
	}
	if !s.ready.CompareAndSwap(nil, st) {
		return ErrAlreadyReady
	}
	s.metrics.SetReady(true)
	slog.Info("Prediction service ready",
		"model", store.Regressor().Kind(),
		"features", len(store.FeatureColumns()))
	return nil
}

func (s *PredictionService) Ready() bool {
	return s.ready.Load() != nil
}

// Artifacts returns the loaded store, or false while uninitialized.
func (s *PredictionService) Artifacts() (*artifacts.Store, bool) {
	st := s.ready.Load()
	if st == nil {
		return nil, false
	}
	return st.store, true
}

func (s *PredictionService) MaxBatch() int { return s.maxBatch }

func (s *PredictionService) GetRepository() repository.Repository { return s.repo }

func (s *PredictionService) Metrics() *metrics.Metrics { return s.metrics }

// PredictSingle runs one student through the pipeline.
func (s *PredictionService) PredictSingle(ctx context.Context, req PredictionRequest, source, workerID string) (*prediction.SingleResponse, error) {
	req.Mode = ModeSingle
	out, err := s.process(ctx, req, source, workerID, func(p *prediction.Pipeline) (any, int, error) {
		resp, err := p.PredictJSON(req.Input)
		if err != nil {
			return nil, 1, err
		}
		return resp, 1, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*prediction.SingleResponse), nil
}

// PredictBatch runs a batch body (bare array or {"students": [...]}).
func (s *PredictionService) PredictBatch(ctx context.Context, req PredictionRequest, source, workerID string) (*prediction.BatchResponse, error) {
	req.Mode = ModeBatch
	out, err := s.process(ctx, req, source, workerID, func(p *prediction.Pipeline) (any, int, error) {
		recs, err := prediction.DecodeBatch(req.Input, s.maxBatch)
		if err != nil {
			return nil, 0, err
		}
		resp, err := p.PredictBatch(recs)
		if err != nil {
			return nil, len(recs), err
		}
		return resp, len(recs), nil
	})
	if err != nil {
		return nil, err
	}
	return out.(*prediction.BatchResponse), nil
}

// Process dispatches on req.Mode; used by the NATS workers.
func (s *PredictionService) Process(ctx context.Context, req PredictionRequest, source, workerID string) (any, error) {
	if req.Mode == ModeBatch {
		return s.PredictBatch(ctx, req, source, workerID)
	}
	return s.PredictSingle(ctx, req, source, workerID)
}

func (s *PredictionService) process(ctx context.Context, req PredictionRequest, source, workerID string, run func(*prediction.Pipeline) (any, int, error)) (result any, err error) {
	start := time.Now()
	if req.ReqID == "" {
		req.ReqID = ulid.Make().String()
	}
	traceID := req.TraceID
	if traceID == "" {
		traceID = req.ReqID // fallback to request ID
	}

	rows := 0
	defer func() {
		status := "ok"
		if r := recover(); r != nil {
			slog.Error("Prediction panic recovered",
				"req_id", req.ReqID,
				"trace_id", traceID,
				"panic", r)
			status = "panic"
			result = nil
			err = fmt.Errorf("%w: panic: %v", ErrUnexpected, r)
		} else if err != nil {
			status = "error"
		}

		duration := time.Since(start)
		errType := ErrorType(err)
		s.metrics.ObservePrediction(req.Mode, errType, rows, duration)

		requestLog := &models.RequestLog{
			Timestamp:  start,
			TraceID:    traceID,
			ReqID:      req.ReqID,
			WorkerID:   workerID,
			Source:     source,
			ReplyTo:    req.ReplyTo,
			Mode:       req.Mode,
			RowCount:   rows,
			RawInput:   string(req.Input),
			InputLen:   len(req.Input),
			DurationMs: duration.Milliseconds(),
			Status:     status,
			ErrorType:  errType,
		}
		if err != nil {
			requestLog.Error = err.Error()
		} else {
			requestLog.ResponseBody = toJSON(result)
		}
		if s.repo != nil {
			if logErr := s.repo.Request().LogRequest(ctx, requestLog); logErr != nil {
				slog.Warn("Failed to store request log", "req_id", req.ReqID, "error", logErr)
			}
		}

		if err == nil {
			slog.Info("Prediction completed",
				"req_id", req.ReqID,
				"trace_id", traceID,
				"source", source,
				"mode", req.Mode,
				"rows", rows,
				"duration_ms", duration.Milliseconds())
		} else {
			slog.Warn("Prediction failed",
				"req_id", req.ReqID,
				"trace_id", traceID,
				"source", source,
				"mode", req.Mode,
				"error_type", errType,
				"error", err)
		}
	}()

	st := s.ready.Load()
	if st == nil {
		return nil, ErrNotReady
	}

	result, rows, err = run(st.pipeline)
	return result, err
}

func (s *PredictionService) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	if s.repo == nil {
		return []*models.RequestLog{}, nil
	}
	return s.repo.Request().GetRequestLogs(ctx, limit)
}

// ErrorType names err for logs, metrics and error payloads.
func ErrorType(err error) string {
	if err == nil {
		return ""
	}
	var pe *prediction.Error
	switch {
	case errors.As(err, &pe):
		return pe.Kind.String()
	case errors.Is(err, ErrNotReady):
		return "ServiceUnavailable"
	default:
		return "InternalError"
	}
}

func toJSON(v any) string {
	if v == nil {
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
