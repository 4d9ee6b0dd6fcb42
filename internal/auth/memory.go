package auth

import (
	"context"
	"sync"
	"time"

	"crewhub.dev/internal/ids"
)

var _ AccountStore = (*MemoryStore)(nil)

// MemoryStore is an in-process AccountStore for tests and local runs.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]*Account
	byEmail map[string]string
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]*Account),
		byEmail: make(map[string]string),
		now:     time.Now,
	}
}

func (s *MemoryStore) Create(ctx context.Context, acc *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byEmail[acc.Email]; ok {
		return ErrAlreadyExists
	}
	if acc.ID == "" {
		acc.ID = ids.New()
	}
	if _, ok := s.byID[acc.ID]; ok {
		return ErrAlreadyExists
	}
	now := s.now().UTC()
	acc.CreatedAt, acc.UpdatedAt = now, now
	stored := *acc
	s.byID[acc.ID] = &stored
	s.byEmail[acc.Email] = acc.ID
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *acc
	return &out, nil
}

func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[email]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return s.Find(ctx, id)
}

func (s *MemoryStore) SetDisabled(ctx context.Context, id string, disabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	acc.Disabled = disabled
	acc.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, acc.Email)
	delete(s.byID, id)
	return nil
}

// Len reports the number of stored accounts.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
