package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Service wraps an AccountStore with password handling.
type Service struct {
	store AccountStore
}

func NewService(store AccountStore) *Service {
	return &Service{store: store}
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount hashes secret and stores a new identity, returning its id.
func (s *Service) CreateAccount(ctx context.Context, email, secret, displayName string, disabled bool) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	hash, err := HashPassword(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	acc := &Account{
		Email:        email,
		DisplayName:  strings.TrimSpace(displayName),
		PasswordHash: hash,
		Disabled:     disabled,
	}
	if err := s.store.Create(ctx, acc); err != nil {
		return "", err
	}
	return acc.ID, nil
}

// LookupEmail finds an identity by address. Missing identities yield ErrNotFound.
func (s *Service) LookupEmail(ctx context.Context, email string) (*Account, error) {
	return s.store.FindByEmail(ctx, NormalizeEmail(email))
}

// SetDisabled enables or disables an identity.
func (s *Service) SetDisabled(ctx context.Context, id string, disabled bool) error {
	return s.store.SetDisabled(ctx, id, disabled)
}

// DeleteAccount removes an identity. Only registration compensation uses it.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Authenticate verifies credentials of an enabled identity.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrUnauthorized
	}
	acc, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := VerifyPassword(acc.PasswordHash, password); err != nil {
		return nil, ErrUnauthorized
	}
	if acc.Disabled {
		return nil, ErrDisabled
	}
	return acc, nil
}
