package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	audit "presence/pkg/platform/audit"
	txcontext "presence/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Events are written to the outbox table in the caller's transaction and
// relayed to Kafka by the outbox relay.
type Store struct {
	db    *sql.DB
	clock func() time.Time
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db, clock: time.Now}
}

// Payload is the JSON document published for each outbox entry.
type Payload struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Timestamp   string `json:"timestamp"`
	Action      string `json:"action"`
	Subject     string `json:"subject,omitempty"`
	AttendantID string `json:"attendant_id,omitempty"`
	CenterID    string `json:"center_id,omitempty"`
	SessionID   string `json:"session_id,omitempty"`
	Decision    string `json:"decision,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
	ClientIP    string `json:"client_ip,omitempty"`
}

// Entry is an unpublished outbox row.
type Entry struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// Append writes an audit event to the outbox table.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	category := audit.AuditEvent(event.Action).Category()

	payload := Payload{
		ID:        eventID.String(),
		Category:  string(category),
		Timestamp: event.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    event.Action,
		Subject:   event.Subject,
		Decision:  event.Decision,
		Reason:    event.Reason,
		RequestID: event.RequestID,
		ClientIP:  event.ClientIP,
	}
	if !event.AttendantID.IsNil() {
		payload.AttendantID = event.AttendantID.String()
	}
	if !event.CenterID.IsNil() {
		payload.CenterID = event.CenterID.String()
	}
	if !event.SessionID.IsNil() {
		payload.SessionID = event.SessionID.String()
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	aggregateType, aggregateID := aggregateOf(event, eventID)

	query := `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = txcontext.Exec(ctx, s.db).ExecContext(ctx, query,
		eventID,
		aggregateType,
		aggregateID,
		event.Action,
		payloadBytes,
		s.clock(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// aggregateOf keys events by session when present so a partitioned topic keeps
// a session's events in order.
func aggregateOf(event audit.Event, eventID uuid.UUID) (string, string) {
	switch {
	case !event.SessionID.IsNil():
		return "session", event.SessionID.String()
	case !event.CenterID.IsNil():
		return "center", event.CenterID.String()
	default:
		return "audit", eventID.String()
	}
}

// FetchPending returns up to limit unpublished entries, oldest first.
// Rows are locked with SKIP LOCKED so concurrent relays do not double-publish.
func (s *Store) FetchPending(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`
	rows, err := txcontext.Exec(ctx, s.db).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps entries as delivered.
func (s *Store) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	exec := txcontext.Exec(ctx, s.db)
	now := s.clock()
	for _, entryID := range ids {
		if _, err := exec.ExecContext(ctx, `UPDATE outbox SET published_at = $1 WHERE id = $2`, now, entryID); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}

// DB exposes the handle so the relay can open its own transaction.
func (s *Store) DB() *sql.DB {
	return s.db
}
