package records

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/phr/phr/pkg/jsontime"
)

// RecordType is the closed set of health record categories.
type RecordType string

const (
	TypeAllergies    RecordType = "Allergies"
	TypeHealthIssues RecordType = "Health Issues"
	TypeDiagnoses    RecordType = "Diagnoses"
	TypeVitals       RecordType = "Vitals"
	TypeMedications  RecordType = "Medications"
)

// RecordTypes lists every valid type in display order.
var RecordTypes = []RecordType{TypeAllergies, TypeHealthIssues, TypeDiagnoses, TypeVitals, TypeMedications}

func (t RecordType) Valid() bool {
	switch t {
	case TypeAllergies, TypeHealthIssues, TypeDiagnoses, TypeVitals, TypeMedications:
		return true
	}
	return false
}

// Payload keys as they appear in the JSON document.
const (
	keyAllergies   = "allergies"
	keyConditions  = "conditions"
	keyVitals      = "vitals"
	keyMedications = "medications"
)

var payloadKeys = []string{keyAllergies, keyConditions, keyVitals, keyMedications}

// PayloadKey returns the document key that carries the payload of t.
func (t RecordType) PayloadKey() string {
	switch t {
	case TypeAllergies:
		return keyAllergies
	case TypeHealthIssues, TypeDiagnoses:
		return keyConditions
	case TypeVitals:
		return keyVitals
	case TypeMedications:
		return keyMedications
	}
	return ""
}

// HealthRecord is one dated entry in a user's health history. RecordType and
// Payload always agree: the payload variant is chosen from the type when the
// record is created and the type never changes afterwards.
type HealthRecord struct {
	ID         uuid.UUID
	OwnerID    uuid.UUID
	RecordType RecordType
	RecordDate time.Time
	Facility   string
	Payload    Payload
	Notes      string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type recordJSON struct {
	ID          uuid.UUID       `json:"_id"`
	OwnerID     uuid.UUID       `json:"user"`
	RecordType  RecordType      `json:"recordType"`
	RecordDate  jsontime.Time   `json:"recordDate"`
	Facility    string          `json:"facility"`
	Allergies   *AllergyList    `json:"allergies,omitempty"`
	Conditions  *ConditionList  `json:"conditions,omitempty"`
	Vitals      *Vitals         `json:"vitals,omitempty"`
	Medications *MedicationList `json:"medications,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	Version     int             `json:"version"`
	CreatedAt   jsontime.Time   `json:"createdAt"`
	UpdatedAt   jsontime.Time   `json:"updatedAt"`
}

// MarshalJSON writes the payload under the single key that matches the
// record type and omits the other three.
func (r *HealthRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		RecordType: r.RecordType,
		RecordDate: jsontime.NewTime(r.RecordDate),
		Facility:   r.Facility,
		Notes:      r.Notes,
		Version:    r.Version,
		CreatedAt:  jsontime.NewTime(r.CreatedAt),
		UpdatedAt:  jsontime.NewTime(r.UpdatedAt),
	}

	p := r.Payload
	if p == nil {
		p = newPayload(r.RecordType)
	}
	switch v := p.(type) {
	case *AllergyList:
		out.Allergies = v.nonNil()
	case *ConditionList:
		out.Conditions = v.nonNil()
	case *Vitals:
		out.Vitals = v
	case *MedicationList:
		out.Medications = v.nonNil()
	}
	return json.Marshal(out)
}

func cloneRecord(r *HealthRecord) *HealthRecord {
	cp := *r
	if r.Payload != nil {
		cp.Payload = r.Payload.clone()
	}
	return &cp
}
