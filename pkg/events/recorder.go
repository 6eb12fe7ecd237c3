package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/inkwell-hq/inkwell/pkg/observability"
	"github.com/inkwell-hq/inkwell/pkg/resources"
)

// Event is one recorded domain event
type Event struct {
	ID           int64                  `json:"id"`
	Domain       string                 `json:"domain"`
	WorkspaceID  *string                `json:"workspace_id,omitempty"`
	EventType    string                 `json:"event_type"`
	ResourceType resources.ResourceType `json:"resource_type"`
	ResourceID   string                 `json:"resource_id"`
	ActorUserID  *string                `json:"actor_user_id,omitempty"`
	Payload      map[string]interface{} `json:"payload,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

// Recorder writes domain events. Recording is best-effort everywhere it is
// used: a failed write is logged and must never roll back or block the
// resource mutation that produced it.
type Recorder interface {
	Record(ctx context.Context, event *Event)
	ListForResource(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, limit int) ([]*Event, error)
}

// DBRecorder implements Recorder backed by PostgreSQL
type DBRecorder struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewDBRecorder creates a database-backed event recorder
func NewDBRecorder(db *sql.DB, logger *observability.Logger) *DBRecorder {
	return &DBRecorder{db: db, logger: logger}
}

// Record persists one event. Failures are logged and swallowed.
func (r *DBRecorder) Record(ctx context.Context, event *Event) {
	payload := event.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		r.logger.WithError(err).Warn("failed to marshal event payload")
		return
	}

	query := `
		INSERT INTO domain_events (domain, workspace_id, event_type, resource_type, resource_id, actor_user_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = r.db.ExecContext(ctx, query,
		event.Domain, event.WorkspaceID, event.EventType, event.ResourceType,
		event.ResourceID, event.ActorUserID, raw, time.Now())
	if err != nil {
		r.logger.WithError(err).WithFields(map[string]interface{}{
			"event_type":  event.EventType,
			"resource_id": event.ResourceID,
		}).Warn("failed to record domain event")
	}
}

// ListForResource returns the most recent events for one resource
func (r *DBRecorder) ListForResource(ctx context.Context, domain string, resourceType resources.ResourceType, resourceID string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, domain, workspace_id, event_type, resource_type, resource_id, actor_user_id, payload, created_at
		FROM domain_events
		WHERE domain = $1 AND resource_type = $2 AND resource_id = $3
		ORDER BY created_at DESC LIMIT $4`

	rows, err := r.db.QueryContext(ctx, query, domain, resourceType, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var raw []byte
		if err := rows.Scan(&e.ID, &e.Domain, &e.WorkspaceID, &e.EventType, &e.ResourceType,
			&e.ResourceID, &e.ActorUserID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &e.Payload); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
