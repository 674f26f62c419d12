package records

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/pkg/jsontime"
)

// Payload is the type-specific body of a record. The concrete types are
// *AllergyList, *ConditionList, *Vitals and *MedicationList.
type Payload interface {
	normalize()
	validate(f *apierr.Fields)
	clone() Payload
}

// newPayload returns an empty payload of the variant used by t, or nil for an
// unknown type.
func newPayload(t RecordType) Payload {
	switch t.PayloadKey() {
	case keyAllergies:
		return &AllergyList{}
	case keyConditions:
		return &ConditionList{}
	case keyVitals:
		return &Vitals{}
	case keyMedications:
		return &MedicationList{}
	}
	return nil
}

// decodePayload decodes raw into the variant of t and normalizes it.
func decodePayload(t RecordType, raw json.RawMessage) (Payload, error) {
	p := newPayload(t)
	if p == nil {
		return nil, fmt.Errorf("no payload for record type %q", t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, err
	}
	p.normalize()
	return p, nil
}

type Severity string

const (
	SeverityMild     Severity = "Mild"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere:
		return true
	}
	return false
}

type Allergy struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity,omitempty"`
}

type AllergyList []Allergy

func (l *AllergyList) normalize() {
	for i := range *l {
		a := &(*l)[i]
		a.Name = strings.TrimSpace(a.Name)
	}
}

func (l *AllergyList) validate(f *apierr.Fields) {
	for i, a := range *l {
		if a.Name == "" {
			f.Add(fmt.Sprintf("allergies[%d].name", i), "Allergy name is required")
		}
		if a.Severity != "" && !a.Severity.Valid() {
			f.Add(fmt.Sprintf("allergies[%d].severity", i), "Severity must be Mild, Moderate or Severe")
		}
	}
}

func (l *AllergyList) clone() Payload {
	cp := append(AllergyList(nil), *l...)
	return &cp
}

func (l *AllergyList) nonNil() *AllergyList {
	if l == nil || *l == nil {
		return &AllergyList{}
	}
	return l
}

// Condition is a health issue or diagnosis. Status is free text such as
// "Active" or "Resolved".
type Condition struct {
	Name    string `json:"name"`
	Status  string `json:"status,omitempty"`
	Details string `json:"details,omitempty"`
}

type ConditionList []Condition

func (l *ConditionList) normalize() {
	for i := range *l {
		c := &(*l)[i]
		c.Name = strings.TrimSpace(c.Name)
		c.Status = strings.TrimSpace(c.Status)
	}
}

func (l *ConditionList) validate(f *apierr.Fields) {
	for i, c := range *l {
		if c.Name == "" {
			f.Add(fmt.Sprintf("conditions[%d].name", i), "Condition name is required")
		}
	}
}

func (l *ConditionList) clone() Payload {
	cp := append(ConditionList(nil), *l...)
	return &cp
}

func (l *ConditionList) nonNil() *ConditionList {
	if l == nil || *l == nil {
		return &ConditionList{}
	}
	return l
}

// Default units applied to vitals readings that arrive without one.
const (
	UnitTemperature     = "°C"
	UnitBloodPressure   = "mmHg"
	UnitHeartRate       = "bpm"
	UnitRespiratoryRate = "breaths/min"
	UnitOxygen          = "%"
	UnitWeight          = "kg"
	UnitHeight          = "cm"
)

type Reading struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit"`
}

type BloodPressure struct {
	Systolic  *float64 `json:"systolic,omitempty"`
	Diastolic *float64 `json:"diastolic,omitempty"`
	Unit      string   `json:"unit"`
}

// Vitals is a set of measurements taken at one visit. Readings that were not
// taken are nil.
type Vitals struct {
	Temperature      *Reading       `json:"temperature,omitempty"`
	BloodPressure    *BloodPressure `json:"bloodPressure,omitempty"`
	HeartRate        *Reading       `json:"heartRate,omitempty"`
	RespiratoryRate  *Reading       `json:"respiratoryRate,omitempty"`
	OxygenSaturation *Reading       `json:"oxygenSaturation,omitempty"`
	Weight           *Reading       `json:"weight,omitempty"`
	Height           *Reading       `json:"height,omitempty"`
}

type namedReading struct {
	name string
	unit string
	r    *Reading
}

func (v *Vitals) readings() []namedReading {
	return []namedReading{
		{"temperature", UnitTemperature, v.Temperature},
		{"heartRate", UnitHeartRate, v.HeartRate},
		{"respiratoryRate", UnitRespiratoryRate, v.RespiratoryRate},
		{"oxygenSaturation", UnitOxygen, v.OxygenSaturation},
		{"weight", UnitWeight, v.Weight},
		{"height", UnitHeight, v.Height},
	}
}

func (v *Vitals) normalize() {
	for _, rd := range v.readings() {
		if rd.r != nil && strings.TrimSpace(rd.r.Unit) == "" {
			rd.r.Unit = rd.unit
		}
	}
	if v.BloodPressure != nil && strings.TrimSpace(v.BloodPressure.Unit) == "" {
		v.BloodPressure.Unit = UnitBloodPressure
	}
}

func nonNegative(f *apierr.Fields, field string, val *float64) {
	if val != nil && *val < 0 {
		f.Add(field, fmt.Sprintf("%s must not be negative", field))
	}
}

func (v *Vitals) validate(f *apierr.Fields) {
	for _, rd := range v.readings() {
		if rd.r != nil {
			nonNegative(f, "vitals."+rd.name+".value", rd.r.Value)
		}
	}
	if o := v.OxygenSaturation; o != nil && o.Value != nil && *o.Value > 100 {
		f.Add("vitals.oxygenSaturation.value", "Oxygen saturation cannot exceed 100%")
	}
	if bp := v.BloodPressure; bp != nil {
		nonNegative(f, "vitals.bloodPressure.systolic", bp.Systolic)
		nonNegative(f, "vitals.bloodPressure.diastolic", bp.Diastolic)
	}
}

func cloneReading(r *Reading) *Reading {
	if r == nil {
		return nil
	}
	cp := *r
	return &cp
}

func (v *Vitals) clone() Payload {
	cp := Vitals{
		Temperature:      cloneReading(v.Temperature),
		HeartRate:        cloneReading(v.HeartRate),
		RespiratoryRate:  cloneReading(v.RespiratoryRate),
		OxygenSaturation: cloneReading(v.OxygenSaturation),
		Weight:           cloneReading(v.Weight),
		Height:           cloneReading(v.Height),
	}
	if v.BloodPressure != nil {
		bp := *v.BloodPressure
		cp.BloodPressure = &bp
	}
	return &cp
}

type Medication struct {
	Name      string         `json:"name"`
	Dosage    string         `json:"dosage,omitempty"`
	Frequency string         `json:"frequency,omitempty"`
	StartDate *jsontime.Time `json:"startDate,omitempty"`
	EndDate   *jsontime.Time `json:"endDate,omitempty"`
}

type MedicationList []Medication

func (l *MedicationList) normalize() {
	for i := range *l {
		m := &(*l)[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.StartDate != nil && m.StartDate.IsZero() {
			m.StartDate = nil
		}
		if m.EndDate != nil && m.EndDate.IsZero() {
			m.EndDate = nil
		}
	}
}

func (l *MedicationList) validate(f *apierr.Fields) {
	for i, m := range *l {
		if m.Name == "" {
			f.Add(fmt.Sprintf("medications[%d].name", i), "Medication name is required")
		}
		if m.StartDate != nil && m.EndDate != nil && m.EndDate.Before(m.StartDate.Time) {
			f.Add(fmt.Sprintf("medications[%d].endDate", i), "End date cannot be before start date")
		}
	}
}

func cloneTime(t *jsontime.Time) *jsontime.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

func (l *MedicationList) clone() Payload {
	cp := append(MedicationList(nil), *l...)
	for i := range cp {
		cp[i].StartDate = cloneTime(cp[i].StartDate)
		cp[i].EndDate = cloneTime(cp[i].EndDate)
	}
	return &cp
}

func (l *MedicationList) nonNil() *MedicationList {
	if l == nil || *l == nil {
		return &MedicationList{}
	}
	return l
}
