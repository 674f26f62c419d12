package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phr/phr/internal/platform/apierr"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type recordRepoPG struct {
	pool querier
}

func NewRecordRepo(pool *pgxpool.Pool) RecordRepository {
	return &recordRepoPG{pool: pool}
}

const recordCols = `id, owner_id, record_type, record_date, facility, payload, notes,
	version, created_at, updated_at`

const pgStringTooLong = "22001"

var errValueTooLong = apierr.Validation("Value is too long")

func mapWriteErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgStringTooLong {
		return errValueTooLong
	}
	return fmt.Errorf("%s: %w", op, err)
}

func payloadArg(p Payload) ([]byte, error) {
	if p == nil {
		return []byte("null"), nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return b, nil
}

func (r *recordRepoPG) Create(ctx context.Context, rec *HealthRecord) error {
	payload, err := payloadArg(rec.Payload)
	if err != nil {
		return err
	}
	rec.ID = uuid.New()

	err = r.pool.QueryRow(ctx, `
		INSERT INTO health_records (id, owner_id, record_type, record_date, facility, payload, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING version, created_at, updated_at`,
		rec.ID, rec.OwnerID, string(rec.RecordType), rec.RecordDate, rec.Facility, payload, rec.Notes,
	).Scan(&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return mapWriteErr("record create", err)
	}
	return nil
}

func scanRecord(row pgx.Row) (*HealthRecord, error) {
	var (
		rec     HealthRecord
		typ     string
		payload []byte
	)
	err := row.Scan(&rec.ID, &rec.OwnerID, &typ, &rec.RecordDate, &rec.Facility, &payload, &rec.Notes,
		&rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}

	rec.RecordType = RecordType(typ)
	if rec.Payload, err = decodePayload(rec.RecordType, payload); err != nil {
		return nil, fmt.Errorf("record %s payload: %w", rec.ID, err)
	}
	return &rec, nil
}

func (r *recordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*HealthRecord, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx,
		`SELECT `+recordCols+` FROM health_records WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("record get: %w", err)
	}
	return rec, nil
}

func (r *recordRepoPG) list(ctx context.Context, sql string, args ...interface{}) ([]*HealthRecord, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("record list: %w", err)
	}
	defer rows.Close()

	out := make([]*HealthRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("record list: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("record list: %w", err)
	}
	return out, nil
}

func (r *recordRepoPG) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*HealthRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM health_records
		WHERE owner_id = $1
		ORDER BY record_date DESC, created_at DESC`, ownerID)
}

func (r *recordRepoPG) ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, t RecordType) ([]*HealthRecord, error) {
	return r.list(ctx, `SELECT `+recordCols+` FROM health_records
		WHERE owner_id = $1 AND record_type = $2
		ORDER BY record_date DESC, created_at DESC`, ownerID, string(t))
}

func (r *recordRepoPG) Update(ctx context.Context, rec *HealthRecord, expectedVersion int) error {
	payload, err := payloadArg(rec.Payload)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx, `
		UPDATE health_records
		SET record_date = $2, facility = $3, notes = $4, payload = $5,
			version = version + 1, updated_at = NOW()
		WHERE id = $1 AND ($6::int = 0 OR version = $6::int)
		RETURNING version, updated_at`,
		rec.ID, rec.RecordDate, rec.Facility, rec.Notes, payload, expectedVersion,
	).Scan(&rec.Version, &rec.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return mapWriteErr("record update", err)
	}

	var exists bool
	if err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM health_records WHERE id = $1)`, rec.ID).Scan(&exists); err != nil {
		return fmt.Errorf("record update: %w", err)
	}
	if exists {
		return ErrVersionConflict
	}
	return ErrRecordNotFound
}

func (r *recordRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM health_records WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("record delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
