package records

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/internal/platform/auth"
)

// DefaultFacility is used when neither the request nor the configuration
// names one.
const DefaultFacility = "Healthy Family Centre"

var errInvalidType = apierr.Validation("Invalid record type",
	apierr.FieldError{Field: "recordType", Message: "Invalid record type"})

// Service owns the record lifecycle. Every read or mutation of a single
// record loads it once and checks that the caller owns it; roles grant
// nothing here.
type Service struct {
	records  RecordRepository
	facility string
	now      func() time.Time
}

func NewService(records RecordRepository, defaultFacility string) *Service {
	if defaultFacility == "" {
		defaultFacility = DefaultFacility
	}
	return &Service{records: records, facility: defaultFacility, now: time.Now}
}

// authorize loads id and fails with Forbidden unless caller owns it.
func (s *Service) authorize(ctx context.Context, caller *auth.Principal, rawID, denied string) (*HealthRecord, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return nil, err
	}
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err)
	}
	if rec.OwnerID != caller.UserID {
		return nil, apierr.Forbidden(denied)
	}
	return rec, nil
}

func (s *Service) List(ctx context.Context, caller *auth.Principal) ([]*HealthRecord, error) {
	out, err := s.records.ListByOwner(ctx, caller.UserID)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

// ListByType accepts the type as it appears in the URL, escaped or not.
func (s *Service) ListByType(ctx context.Context, caller *auth.Principal, rawType string) ([]*HealthRecord, error) {
	if unescaped, err := url.PathUnescape(rawType); err == nil {
		rawType = unescaped
	}
	t := RecordType(rawType)
	if !t.Valid() {
		return nil, errInvalidType
	}
	out, err := s.records.ListByOwnerAndType(ctx, caller.UserID, t)
	if err != nil {
		return nil, apierr.Internal(err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, caller *auth.Principal, id string) (*HealthRecord, error) {
	return s.authorize(ctx, caller, id, "Not authorized to access this record")
}

// Create stores a new record owned by the caller. The record date defaults
// to now and the facility to the configured default.
func (s *Service) Create(ctx context.Context, caller *auth.Principal, req *CreateRequest) (*HealthRecord, error) {
	rec := &HealthRecord{
		OwnerID:    caller.UserID,
		RecordType: req.RecordType,
		RecordDate: req.RecordDate,
		Facility:   req.Facility,
		Payload:    req.Payload,
		Notes:      req.Notes,
	}
	if rec.RecordDate.IsZero() {
		rec.RecordDate = s.now()
	}
	rec.RecordDate = rec.RecordDate.UTC()
	if rec.Facility == "" {
		rec.Facility = s.facility
	}
	if rec.Payload == nil {
		rec.Payload = newPayload(rec.RecordType)
	}

	if err := s.records.Create(ctx, rec); err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

// Update applies patch to the caller's record. ifMatch > 0 requires the
// stored version to equal it. An empty patch returns the record unchanged.
func (s *Service) Update(ctx context.Context, caller *auth.Principal, id string, patch *Patch, ifMatch int) (*HealthRecord, error) {
	rec, err := s.authorize(ctx, caller, id, "Not authorized to update this record")
	if err != nil {
		return nil, err
	}
	if ifMatch > 0 && rec.Version != ifMatch {
		return nil, ErrVersionConflict
	}
	if patch.Empty() {
		return rec, nil
	}

	if err := patch.Apply(rec); err != nil {
		return nil, err
	}
	if err := s.records.Update(ctx, rec, ifMatch); err != nil {
		return nil, storeErr(err)
	}
	return rec, nil
}

func (s *Service) Delete(ctx context.Context, caller *auth.Principal, id string) error {
	rec, err := s.authorize(ctx, caller, id, "Not authorized to delete this record")
	if err != nil {
		return err
	}
	if err := s.records.Delete(ctx, rec.ID); err != nil {
		return storeErr(err)
	}
	return nil
}

func storeErr(err error) error {
	var e *apierr.Error
	if errors.As(err, &e) {
		return err
	}
	return apierr.Internal(err)
}
