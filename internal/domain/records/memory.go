package records

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRecordRepo is a RecordRepository backed by a map. Records are
// copied on the way in and out. Safe for concurrent use.
type InMemoryRecordRepo struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*HealthRecord
	now     func() time.Time
}

func NewInMemoryRecordRepo() *InMemoryRecordRepo {
	return &InMemoryRecordRepo{records: make(map[uuid.UUID]*HealthRecord), now: time.Now}
}

func (m *InMemoryRecordRepo) Create(_ context.Context, r *HealthRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	r.ID = uuid.New()
	r.Version = 1
	r.CreatedAt = now
	r.UpdatedAt = now
	m.records[r.ID] = cloneRecord(r)
	return nil
}

func (m *InMemoryRecordRepo) GetByID(_ context.Context, id uuid.UUID) (*HealthRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.records[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return cloneRecord(r), nil
}

func (m *InMemoryRecordRepo) list(ownerID uuid.UUID, match func(*HealthRecord) bool) []*HealthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*HealthRecord, 0)
	for _, r := range m.records {
		if r.OwnerID == ownerID && match(r) {
			out = append(out, cloneRecord(r))
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(rs []*HealthRecord) {
	sort.SliceStable(rs, func(i, j int) bool {
		if !rs[i].RecordDate.Equal(rs[j].RecordDate) {
			return rs[i].RecordDate.After(rs[j].RecordDate)
		}
		return rs[i].CreatedAt.After(rs[j].CreatedAt)
	})
}

func (m *InMemoryRecordRepo) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*HealthRecord, error) {
	return m.list(ownerID, func(*HealthRecord) bool { return true }), nil
}

func (m *InMemoryRecordRepo) ListByOwnerAndType(_ context.Context, ownerID uuid.UUID, t RecordType) ([]*HealthRecord, error) {
	return m.list(ownerID, func(r *HealthRecord) bool { return r.RecordType == t }), nil
}

func (m *InMemoryRecordRepo) Update(_ context.Context, r *HealthRecord, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.records[r.ID]
	if !ok {
		return ErrRecordNotFound
	}
	if expectedVersion > 0 && stored.Version != expectedVersion {
		return ErrVersionConflict
	}

	next := cloneRecord(stored)
	next.RecordDate = r.RecordDate
	next.Facility = r.Facility
	next.Notes = r.Notes
	if r.Payload != nil {
		next.Payload = r.Payload.clone()
	}
	next.Version = stored.Version + 1
	next.UpdatedAt = m.now().UTC()
	m.records[r.ID] = next

	r.Version = next.Version
	r.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *InMemoryRecordRepo) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}
