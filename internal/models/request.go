package models

import "time"

// RequestLog represents a logged prediction request
type RequestLog struct {
	Timestamp    time.Time `json:"ts"`
	TraceID      string    `json:"trace_id"`
	ReqID        string    `json:"req_id"`
	WorkerID     string    `json:"worker_id"`
	Source       string    `json:"source"`
	ReplyTo      string    `json:"reply_to"`
	Mode         string    `json:"mode"` // single or batch
	RowCount     int       `json:"row_count"`
	RawInput     string    `json:"raw_input"`
	ResponseBody string    `json:"response_body"`
	InputLen     int       `json:"input_len"`
	DurationMs   int64     `json:"dur_ms"`
	Status       string    `json:"status"`
	ErrorType    string    `json:"error_type"`
	Error        string    `json:"error"`
}

// Event is a lifecycle milestone persisted next to request logs.
type Event struct {
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Code      string                 `json:"code"`
	Message   string                 `json:"msg"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}
