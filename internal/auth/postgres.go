package auth

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"crewhub.dev/internal/ids"
)

const pgUniqueViolation = "23505"

var _ AccountStore = (*PGStore)(nil)

// PGStore implements AccountStore using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, acc *Account) error {
	if acc.ID == "" {
		acc.ID = ids.New()
	}
	err := s.db.QueryRowContext(ctx,
		`insert into accounts(id, email, display_name, password_hash, disabled)
		 values($1,$2,$3,$4,$5) returning created_at, updated_at`,
		acc.ID, acc.Email, acc.DisplayName, acc.PasswordHash, acc.Disabled,
	).Scan(&acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (s *PGStore) Find(ctx context.Context, id string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, display_name, password_hash, disabled, created_at, updated_at
		 from accounts where id=$1`, id)
	return scanAccount(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Account, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, email, display_name, password_hash, disabled, created_at, updated_at
		 from accounts where email=$1`, email)
	return scanAccount(row)
}

func (s *PGStore) SetDisabled(ctx context.Context, id string, disabled bool) error {
	res, err := s.db.ExecContext(ctx,
		`update accounts set disabled=$2, updated_at=now() where id=$1`, id, disabled)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from accounts where id=$1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func scanAccount(row *sql.Row) (*Account, error) {
	var acc Account
	if err := row.Scan(&acc.ID, &acc.Email, &acc.DisplayName, &acc.PasswordHash, &acc.Disabled, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &acc, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
