package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"time"
)

// TelemetryRecorder captures gameplay events for later inspection: run
// submissions, rejected authentications, purchases. Recording is best-effort;
// implementations must never fail the request that produced the event.
type TelemetryRecorder interface {
	Record(ctx context.Context, userID string, eventType string, payload map[string]interface{})
}

type sqlTelemetry struct {
	db      *sql.DB
	dialect string
}

func newSQLTelemetry(db *sql.DB, dialect string) *sqlTelemetry {
	return &sqlTelemetry{db: db, dialect: dialect}
}

func (t *sqlTelemetry) Record(ctx context.Context, userID string, eventType string, payload map[string]interface{}) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Println("telemetry encode failed:", err)
		return
	}

	_, err = t.db.ExecContext(ctx, rebind(t.dialect, `
		INSERT INTO run_telemetry (user_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`), userID, eventType, string(encoded), time.Now().UTC())
	if err != nil {
		log.Println("telemetry insert failed:", err)
	}
}
