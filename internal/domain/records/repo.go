package records

import (
	"context"

	"github.com/google/uuid"

	"github.com/phr/phr/internal/platform/apierr"
)

// ErrMalformedID and ErrRecordNotFound render identically so a caller cannot
// tell a badly shaped id from a missing record.
var (
	ErrMalformedID     = apierr.NotFound("Health record not found")
	ErrRecordNotFound  = apierr.NotFound("Health record not found")
	ErrVersionConflict = apierr.Conflict("Health record was modified by another request")
)

// ParseID parses a record id from a path parameter.
func ParseID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, ErrMalformedID
	}
	return id, nil
}

// RecordRepository persists health records. It does not enforce ownership;
// callers authorize access before reading or mutating a record.
type RecordRepository interface {
	// Create assigns ID, Version, CreatedAt and UpdatedAt.
	Create(ctx context.Context, r *HealthRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*HealthRecord, error)
	// ListByOwner returns records newest first by recordDate, then createdAt.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*HealthRecord, error)
	ListByOwnerAndType(ctx context.Context, ownerID uuid.UUID, t RecordType) ([]*HealthRecord, error)
	// Update writes the mutable fields of r, bumps its version and sets
	// UpdatedAt. With expectedVersion > 0 the write only happens when the
	// stored version matches, otherwise ErrVersionConflict is returned.
	Update(ctx context.Context, r *HealthRecord, expectedVersion int) error
	Delete(ctx context.Context, id uuid.UUID) error
}
