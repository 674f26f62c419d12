package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/pkg/jsontime"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type userRepoPG struct {
	pool querier
}

func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

const userCols = `id, username, email, password_hash, first_name, last_name, date_of_birth,
	blood_group, phone_number, rfid_tag, role, created_at, updated_at`

const (
	pgUniqueViolation = "23505"
	pgStringTooLong   = "22001"
)

var errValueTooLong = apierr.Validation("Value is too long")

// mapWriteErr turns unique-index violations into the matching duplicate error
// and column-width overflows into a validation error.
func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgStringTooLong {
		return errValueTooLong
	}
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		switch pgErr.ConstraintName {
		case "users_email_key":
			return ErrDuplicateEmail
		case "users_username_key":
			return ErrDuplicateUsername
		case "users_rfid_tag_key":
			return ErrDuplicateTag
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func dobArg(d *jsontime.Date) *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	if u.Role == "" {
		u.Role = RoleUser
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO users (
			id, username, email, password_hash, first_name, last_name, date_of_birth,
			blood_group, phone_number, rfid_tag, role
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, dobArg(u.DateOfBirth),
		string(u.BloodGroup), u.PhoneNumber, u.RFIDTag, u.Role,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return mapWriteErr("user create", err)
	}
	return nil
}

func (r *userRepoPG) getBy(ctx context.Context, col string, arg interface{}) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE `+col+` = $1`, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("user get by %s: %w", col, err)
	}
	return u, nil
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *userRepoPG) GetByEmail(ctx context.Context, email string) (*User, error) {
	return r.getBy(ctx, "email", email)
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	return r.getBy(ctx, "username", username)
}

func (r *userRepoPG) GetByTag(ctx context.Context, tag string) (*User, error) {
	return r.getBy(ctx, "rfid_tag", tag)
}

func (r *userRepoPG) UpdateProfile(ctx context.Context, u *User) error {
	err := r.pool.QueryRow(ctx, `
		UPDATE users SET email = $2, first_name = $3, last_name = $4, date_of_birth = $5,
			phone_number = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		u.ID, u.Email, u.FirstName, u.LastName, dobArg(u.DateOfBirth), u.PhoneNumber,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrUserNotFound
		}
		return mapWriteErr("user update profile", err)
	}
	return nil
}

func (r *userRepoPG) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("user update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *userRepoPG) SetTag(ctx context.Context, id uuid.UUID, tag *string) (*User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET rfid_tag = $2, updated_at = NOW() WHERE id = $1 RETURNING `+userCols, id, tag))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, mapWriteErr("user set tag", err)
	}
	return u, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u     User
		dob   *time.Time
		group string
	)
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName, &dob,
		&group, &u.PhoneNumber, &u.RFIDTag, &u.Role, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.BloodGroup = BloodGroup(group)
	if dob != nil {
		d := jsontime.NewDate(*dob)
		u.DateOfBirth = &d
	}
	return &u, nil
}
