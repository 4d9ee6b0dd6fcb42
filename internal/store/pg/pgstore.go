package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"crewhub.dev/internal/employee"
)

const pgUniqueViolation = "23505"

const recordColumns = `id, first_name, last_name, email, phone, position, bio, avatar_ref,
	role, status, approved, created_at, approved_at, updated_at`

type Store struct {
	db *sql.DB
}

var _ employee.RecordStore = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Get(ctx context.Context, id string) (employee.Record, error) {
	row := s.db.QueryRowContext(ctx, `select `+recordColumns+` from employees where id=$1`, id)
	return scanRecord(row)
}

func (s *Store) Create(ctx context.Context, rec employee.Record) (employee.Record, error) {
	if rec.Status == "" {
		rec.Status = employee.StatusPending
	}
	if !rec.Status.Valid() {
		return employee.Record{}, employee.ErrInvalidStatus
	}
	if rec.Role == "" {
		rec.Role = employee.RoleEmployee
	}
	row := s.db.QueryRowContext(ctx, `
		insert into employees(id, first_name, last_name, email, phone, position, bio, avatar_ref, role, status, approved, approved_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10::text = 'approved', case when $10::text = 'approved' then now() end)
		returning `+recordColumns,
		rec.ID, rec.FirstName, rec.LastName, rec.Email, rec.Phone, rec.Position, rec.Bio, rec.AvatarRef,
		string(rec.Role), string(rec.Status),
	)
	out, err := scanRecord(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return employee.Record{}, employee.ErrAlreadyExists
		}
		return employee.Record{}, err
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id string, upd employee.Update) (employee.Record, error) {
	var status *string
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return employee.Record{}, employee.ErrInvalidStatus
		}
		v := string(*upd.Status)
		status = &v
	}
	p := upd.Patch
	// approved is derived from status so the two can never disagree.
	row := s.db.QueryRowContext(ctx, `
		update employees set
			first_name  = coalesce($2, first_name),
			last_name   = coalesce($3, last_name),
			phone       = coalesce($4, phone),
			position    = coalesce($5, position),
			bio         = coalesce($6, bio),
			avatar_ref  = coalesce($7, avatar_ref),
			status      = coalesce($8::text, status),
			approved    = coalesce($8::text, status) = 'approved',
			approved_at = case when $8::text = 'approved' then now() else approved_at end,
			updated_at  = now()
		where id=$1
		returning `+recordColumns,
		id, p.FirstName, p.LastName, p.Phone, p.Position, p.Bio, p.AvatarRef, status,
	)
	return scanRecord(row)
}

func (s *Store) ListByRole(ctx context.Context, role employee.Role) ([]employee.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+recordColumns+` from employees where role=$1 order by id`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []employee.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (employee.Record, error) {
	var (
		rec        employee.Record
		role       string
		status     string
		approvedAt sql.NullTime
	)
	err := row.Scan(
		&rec.ID, &rec.FirstName, &rec.LastName, &rec.Email, &rec.Phone, &rec.Position, &rec.Bio, &rec.AvatarRef,
		&role, &status, &rec.Approved, &rec.CreatedAt, &approvedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return employee.Record{}, employee.ErrNotFound
	}
	if err != nil {
		return employee.Record{}, err
	}
	rec.Role = employee.Role(role)
	rec.Status = employee.Status(status)
	if approvedAt.Valid {
		ts := approvedAt.Time
		rec.ApprovedAt = &ts
	}
	return rec, nil
}
