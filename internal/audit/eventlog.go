// Package audit keeps an append-only log of dashboard mutations, primarily
// so score changes can be traced back to a teacher and a moment in time.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventScoreUpdated        = "ScoreUpdated"
	EventScoresBatchUpdated  = "ScoresBatchUpdated"
	EventAssessmentCreated   = "AssessmentCreated"
	EventAssessmentPublished = "AssessmentPublished"
	EventAssessmentDeleted   = "AssessmentDeleted"
	EventGradesSynced        = "GradesSynced"
)

type Event struct {
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	Actor     string `json:"actor"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, typ, key, actor string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, key, actor, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		typ, key, actor, string(buf), time.Now().Unix())
	return err
}

// List returns events for one key, newest first.
func (r *EventRepo) List(ctx context.Context, key string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, key, actor, data, created_at FROM event_log
		 WHERE key=$1 ORDER BY seq DESC LIMIT $2`, key, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &e.Actor, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
