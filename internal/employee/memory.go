package employee

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ RecordStore = (*InMemory)(nil)

// InMemory implements RecordStore with in-process concurrency safety.
type InMemory struct {
	mu   sync.RWMutex
	recs map[string]*Record
	now  func() time.Time
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{recs: make(map[string]*Record), now: time.Now}
}

// WithClock overrides the store clock; tests use it for deterministic timestamps.
func (s *InMemory) WithClock(fn func() time.Time) *InMemory {
	if fn != nil {
		s.now = fn
	}
	return s
}

func (s *InMemory) Get(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

func (s *InMemory) Create(ctx context.Context, rec Record) (Record, error) {
	if rec.Status == "" {
		rec.Status = StatusPending
	}
	if !rec.Status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	if rec.Role == "" {
		rec.Role = RoleEmployee
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.recs[rec.ID]; ok {
		return Record{}, ErrAlreadyExists
	}
	now := s.now().UTC()
	rec.CreatedAt, rec.UpdatedAt = now, now
	rec.Approved = rec.Status == StatusApproved
	rec.ApprovedAt = nil
	if rec.Approved {
		rec.ApprovedAt = &now
	}
	stored := rec
	s.recs[rec.ID] = &stored
	return copyRecord(&stored), nil
}

func (s *InMemory) Update(ctx context.Context, id string, upd Update) (Record, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return Record{}, ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	now := s.now().UTC()
	rec.Profile = upd.Patch.Apply(rec.Profile)
	if upd.Status != nil {
		rec.Status = *upd.Status
		rec.Approved = rec.Status == StatusApproved
		if rec.Approved {
			ts := now
			rec.ApprovedAt = &ts
		}
	}
	rec.UpdatedAt = now
	return copyRecord(rec), nil
}

func (s *InMemory) ListByRole(ctx context.Context, role Role) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, rec := range s.recs {
		if rec.Role == role {
			out = append(out, copyRecord(rec))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Len reports the number of stored records.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}

func copyRecord(rec *Record) Record {
	out := *rec
	if rec.ApprovedAt != nil {
		ts := *rec.ApprovedAt
		out.ApprovedAt = &ts
	}
	return out
}
