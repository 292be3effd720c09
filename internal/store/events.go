// ABOUTME: Binding audit log storage operations.
// ABOUTME: Persists registry changes and rebinds, and queries them for the admin view.

package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/vault/internal/services"
)

// Event ops. Registered and unregistered mirror services.Op; rebound marks a
// change of the resolved provider for a kind.
const (
	OpRegistered   = "registered"
	OpUnregistered = "unregistered"
	OpRebound      = "rebound"
)

// BindingEvent is one row of the audit log.
type BindingEvent struct {
	ID             string    `json:"id"`
	Seq            int64     `json:"seq"`
	Timestamp      time.Time `json:"timestamp"`
	Op             string    `json:"op"`
	Kind           string    `json:"kind"`
	Owner          string    `json:"owner,omitempty"`
	Provider       string    `json:"provider,omitempty"`
	Priority       string    `json:"priority,omitempty"`
	RegistrationID uint64    `json:"registration_id,omitempty"`
	FromProvider   string    `json:"from_provider,omitempty"`
	ToProvider     string    `json:"to_provider,omitempty"`
}

// EventQuery filters ListEvents.
type EventQuery struct {
	Limit       int
	Offset      int
	Kind        string
	Op          string
	OwnerPrefix string
}

// EventsFromChange flattens a registry change into audit rows: one per
// record, then one per rebind.
func EventsFromChange(change services.Change) []*BindingEvent {
	events := make([]*BindingEvent, 0, len(change.Records)+len(change.Rebinds))
	for _, rec := range change.Records {
		events = append(events, &BindingEvent{
			ID:             uuid.NewString(),
			Op:             change.Op.String(),
			Kind:           rec.Kind.String(),
			Owner:          rec.Owner,
			Provider:       rec.Provider,
			Priority:       rec.Priority.String(),
			RegistrationID: uint64(rec.ID),
		})
	}
	for _, rb := range change.Rebinds {
		ev := &BindingEvent{
			ID:    uuid.NewString(),
			Op:    OpRebound,
			Kind:  rb.Kind.String(),
			Owner: change.Owner,
		}
		if rb.From != nil {
			ev.FromProvider = rb.From.Provider
		}
		if rb.To != nil {
			ev.ToProvider = rb.To.Provider
			ev.Provider = rb.To.Provider
			ev.Priority = rb.To.Priority.String()
			ev.RegistrationID = uint64(rb.To.ID)
		}
		events = append(events, ev)
	}
	return events
}

// RecordEvents inserts events in one transaction, in order.
func (s *Store) RecordEvents(events []*BindingEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM binding_events`).Scan(&seq); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO binding_events (id, seq, op, kind, owner, provider, priority, registration_id, from_provider, to_provider)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		seq++
		ev.Seq = seq
		if _, err := stmt.Exec(ev.ID, ev.Seq, ev.Op, ev.Kind, ev.Owner, ev.Provider, ev.Priority,
			ev.RegistrationID, ev.FromProvider, ev.ToProvider); err != nil {
			return fmt.Errorf("insert binding event: %w", err)
		}
	}
	return tx.Commit()
}

// ListEvents returns events newest first.
func (s *Store) ListEvents(q *EventQuery) ([]*BindingEvent, error) {
	query := `SELECT id, seq, timestamp, op, kind, owner, provider, priority, registration_id, from_provider, to_provider
	          FROM binding_events WHERE 1=1`
	args := []any{}

	if q.Kind != "" {
		query += " AND kind = ?"
		args = append(args, q.Kind)
	}
	if q.Op != "" {
		query += " AND op = ?"
		args = append(args, q.Op)
	}
	if q.OwnerPrefix != "" {
		query += ` AND owner LIKE ? ESCAPE '\'`
		args = append(args, escapeSQLLike(q.OwnerPrefix)+"%")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	query += " ORDER BY seq DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*BindingEvent
	for rows.Next() {
		ev := &BindingEvent{}
		var timestamp string
		if err := rows.Scan(&ev.ID, &ev.Seq, &timestamp, &ev.Op, &ev.Kind, &ev.Owner, &ev.Provider,
			&ev.Priority, &ev.RegistrationID, &ev.FromProvider, &ev.ToProvider); err != nil {
			return nil, err
		}
		ev.Timestamp = parseTimestamp(timestamp)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountEvents returns the number of events per op.
func (s *Store) CountEvents() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT op, COUNT(*) FROM binding_events GROUP BY op`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var op string
		var n int
		if err := rows.Scan(&op, &n); err != nil {
			return nil, err
		}
		counts[op] = n
	}
	return counts, rows.Err()
}

// parseTimestamp accepts the layouts go-sqlite3 hands back for TIMESTAMP columns.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
