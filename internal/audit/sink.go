package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"crewhub.dev/internal/ids"
)

// MemorySink keeps entries in process.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func (m *MemorySink) Write(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemorySink) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Events returns the recorded event names in order.
func (m *MemorySink) Events() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.entries))
	for i, e := range m.entries {
		out[i] = e.Event
	}
	return out
}

// PGSink stores entries in the audit_events table.
type PGSink struct {
	db *sql.DB
}

func NewPGSink(db *sql.DB) *PGSink { return &PGSink{db: db} }

func (p *PGSink) Write(ctx context.Context, e Entry) error {
	payload, err := json.Marshal(e.Fields)
	if err != nil {
		return fmt.Errorf("audit: encode fields: %w", err)
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	_, err = p.db.ExecContext(ctx, `
insert into audit_events (id, ts, event, request_id, user_id, fields)
values ($1, $2, $3, nullif($4, ''), nullif($5, ''), $6::jsonb)`,
		e.ID, e.Time, e.Event, e.RequestID, e.UserID, string(payload))
	if err != nil {
		return fmt.Errorf("audit: insert %s: %w", e.Event, err)
	}
	return nil
}
