package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/gradecast/predictor-service/internal/models"
)

type DB struct {
	*sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// Create events table
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS events(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		level TEXT,
		code TEXT,
		msg TEXT,
		meta TEXT
	)`); err != nil {
		db.Close()
		return nil, err
	}

	// Create requests table with full request/response content
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS requests(
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ts REAL,
		trace_id TEXT,
		req_id TEXT,
		worker_id TEXT,
		source TEXT,
		reply_to TEXT,
		mode TEXT,
		row_count INTEGER,
		raw_input TEXT,
		response_body TEXT,
		input_len INTEGER,
		dur_ms REAL,
		status TEXT,
		error_type TEXT,
		error TEXT
	)`); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

func (db *DB) Event(level, code, msg string, meta map[string]interface{}) {
	m := ""
	if meta != nil {
		b, _ := json.Marshal(meta)
		m = string(b)
	}
	_, _ = db.Exec(`INSERT INTO events(ts,level,code,msg,meta) VALUES(?,?,?,?,?)`,
		unixSeconds(time.Now()), level, code, msg, m)
}

func (db *DB) Req(ctx context.Context, r *models.RequestLog) error {
	_, err := db.ExecContext(ctx, `INSERT INTO requests(
		ts, trace_id, req_id, worker_id, source, reply_to, mode, row_count, raw_input, response_body, input_len, dur_ms, status, error_type, error)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		unixSeconds(r.Timestamp), r.TraceID, r.ReqID, r.WorkerID, r.Source, r.ReplyTo, r.Mode, r.RowCount,
		r.RawInput, r.ResponseBody, r.InputLen, float64(r.DurationMs), r.Status, r.ErrorType, r.Error)
	return err
}

func (db *DB) RecentReqs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	rows, err := db.QueryContext(ctx, `SELECT ts,trace_id,req_id,worker_id,source,reply_to,mode,row_count,raw_input,response_body,input_len,dur_ms,status,error_type,error
		FROM requests ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []*models.RequestLog{}
	for rows.Next() {
		var log models.RequestLog
		var ts, dur float64
		if err := rows.Scan(
			&ts, &log.TraceID, &log.ReqID, &log.WorkerID, &log.Source, &log.ReplyTo,
			&log.Mode, &log.RowCount, &log.RawInput, &log.ResponseBody, &log.InputLen,
			&dur, &log.Status, &log.ErrorType, &log.Error,
		); err != nil {
			return nil, err
		}
		log.Timestamp = time.Unix(0, int64(ts*1e9))
		log.DurationMs = int64(dur)
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

func (db *DB) RecentEvents(ctx context.Context, limit int) ([]*models.Event, error) {
	rows, err := db.QueryContext(ctx, `SELECT ts,level,code,msg,meta FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*models.Event{}
	for rows.Next() {
		var ev models.Event
		var ts float64
		var meta string
		if err := rows.Scan(&ts, &ev.Level, &ev.Code, &ev.Message, &meta); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, int64(ts*1e9))
		if meta != "" {
			_ = json.Unmarshal([]byte(meta), &ev.Meta)
		}
		events = append(events, &ev)
	}
	return events, rows.Err()
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
