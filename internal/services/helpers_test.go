package services

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gradecast/predictor-service/internal/artifacts"
	"github.com/gradecast/predictor-service/internal/config"
	"github.com/gradecast/predictor-service/internal/metrics"
	"github.com/gradecast/predictor-service/internal/models"
	"github.com/gradecast/predictor-service/internal/repository"
)

const exampleStudent = `{"school":"GP","sex":"F","age":18,"address":"U","famsize":"GT3","Pstatus":"A","Medu":4,"Fedu":4,"Mjob":"at_home","Fjob":"teacher","reason":"course","guardian":"mother","traveltime":2,"studytime":2,"failures":0,"schoolsup":"yes","famsup":"no","paid":"no","activities":"no","nursery":"yes","higher":"yes","internet":"no","romantic":"no","famrel":4,"freetime":3,"goout":4,"Dalc":1,"Walc":1,"health":3,"absences":6,"G1":10,"G2":11}`

// linear testdata bundle: -0.5 + 0.2*G1 + 0.9*G2 - 0.3*failures
const examplePrediction = 11.4

type memoryRepo struct {
	mu     sync.Mutex
	logs   []*models.RequestLog
	events []*models.Event
}

func (r *memoryRepo) Request() repository.RequestRepositoryInterface { return r }
func (r *memoryRepo) Event() repository.EventRepositoryInterface     { return memoryEvents{r} }

func (r *memoryRepo) LogRequest(_ context.Context, req *models.RequestLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, req)
	return nil
}

func (r *memoryRepo) GetRequestLogs(_ context.Context, limit int) ([]*models.RequestLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.RequestLog{}
	for i := len(r.logs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.logs[i])
	}
	return out, nil
}

func (r *memoryRepo) snapshot() []*models.RequestLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.RequestLog(nil), r.logs...)
}

type memoryEvents struct{ r *memoryRepo }

func (e memoryEvents) LogEvent(_ context.Context, level, code, msg string, meta map[string]interface{}) error {
	e.r.mu.Lock()
	defer e.r.mu.Unlock()
	e.r.events = append(e.r.events, &models.Event{Level: level, Code: code, Message: msg, Meta: meta})
	return nil
}

func (e memoryEvents) GetEvents(_ context.Context, limit int) ([]*models.Event, error) {
	e.r.mu.Lock()
	defer e.r.mu.Unlock()
	return append([]*models.Event(nil), e.r.events...), nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
}

func (p *recordingPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func loadLinear(t *testing.T) *artifacts.Store {
	t.Helper()
	store, err := artifacts.Load("../artifacts/testdata/linear")
	require.NoError(t, err)
	return store
}

func newReadyService(t *testing.T, maxBatch int) (*PredictionService, *memoryRepo) {
	t.Helper()
	repo := &memoryRepo{}
	svc := NewPredictionService(repo, metrics.New(), maxBatch)
	require.NoError(t, svc.SetReady(loadLinear(t)))
	return svc, repo
}

func batchOf(n int) []byte {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = exampleStudent
	}
	return []byte("[" + strings.Join(rows, ",") + "]")
}

func testConfig() *config.Config {
	return &config.Config{
		ModelName:             "student-grade",
		HTTPAddr:              "0.0.0.0:8000",
		Subject:               "prediction.request.student-grade",
		MonitoringTopic:       "monitoring.backpressure",
		BackpressureThreshold: 3,
		Concurrency:           2,
		MaxMsgs:               100,
	}
}
