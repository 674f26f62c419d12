package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/phr/phr/internal/platform/apierr"
	"github.com/phr/phr/internal/platform/validate"
	"github.com/phr/phr/pkg/jsontime"
)

// facilityRules matches health_records.facility VARCHAR(200).
const facilityRules = "max=200"

// Document is a decoded JSON request body keyed by top-level field.
type Document map[string]json.RawMessage

// field returns the raw value of key, treating null as absent.
func (d Document) field(key string) (json.RawMessage, bool) {
	raw, ok := d[key]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil, false
	}
	return raw, true
}

func (d Document) str(f *apierr.Fields, key string) (string, bool) {
	raw, ok := d.field(key)
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		f.Add(key, fmt.Sprintf("%s must be a string", key))
		return "", false
	}
	return s, true
}

func (d Document) date(f *apierr.Fields, key string) (time.Time, bool) {
	raw, ok := d.field(key)
	if !ok {
		return time.Time{}, false
	}
	var t jsontime.Time
	if err := json.Unmarshal(raw, &t); err != nil || t.IsZero() {
		f.Add(key, "Record date must be a valid date")
		return time.Time{}, false
	}
	return t.Time, true
}

// CreateRequest is a validated new record. The zero RecordDate and empty
// Facility are filled in by the service.
type CreateRequest struct {
	RecordType RecordType
	RecordDate time.Time
	Facility   string
	Notes      string
	Payload    Payload
}

// ParseCreate validates a create body. The payload is read from the key that
// matches recordType; a non-null value under any other payload key is
// rejected. Server-managed fields such as _id, user and version are ignored.
func ParseCreate(doc Document) (*CreateRequest, error) {
	var f apierr.Fields
	req := &CreateRequest{}

	if typ, ok := doc.str(&f, "recordType"); ok {
		req.RecordType = RecordType(strings.TrimSpace(typ))
		switch {
		case req.RecordType == "":
			f.Add("recordType", "Record type is required")
		case !req.RecordType.Valid():
			f.Add("recordType", "Invalid record type")
		}
	} else if _, present := doc.field("recordType"); !present {
		f.Add("recordType", "Record type is required")
	}

	req.RecordDate, _ = doc.date(&f, "recordDate")
	if s, ok := doc.str(&f, "facility"); ok {
		req.Facility = strings.TrimSpace(s)
		validate.Value(&f, "facility", "Facility", req.Facility, facilityRules)
	}
	req.Notes, _ = doc.str(&f, "notes")

	if req.RecordType.Valid() {
		want := req.RecordType.PayloadKey()
		checkForeignPayloads(&f, doc, req.RecordType)
		if raw, ok := doc.field(want); ok {
			p, err := decodePayload(req.RecordType, raw)
			if err != nil {
				f.Add(want, fmt.Sprintf("Invalid %s", want))
			} else {
				p.validate(&f)
				req.Payload = p
			}
		} else {
			req.Payload = newPayload(req.RecordType)
		}
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	return req, nil
}

func checkForeignPayloads(f *apierr.Fields, doc Document, t RecordType) {
	for _, key := range payloadKeys {
		if key == t.PayloadKey() {
			continue
		}
		if _, ok := doc.field(key); ok {
			f.Add(key, fmt.Sprintf("%s cannot be set on a %s record", key, t))
		}
	}
}

// Patch is a partial update. Nil fields are left untouched. The identity,
// owner, type, creation time and version of a record are never patchable.
type Patch struct {
	RecordDate *time.Time
	Facility   *string
	Notes      *string

	payloads Document
}

// ParsePatch validates the format of an update body. Whether a payload key
// fits the record is only known once the record is loaded; see Apply.
func ParsePatch(doc Document) (*Patch, error) {
	var f apierr.Fields
	p := &Patch{}

	if t, ok := doc.date(&f, "recordDate"); ok {
		p.RecordDate = &t
	}
	if s, ok := doc.str(&f, "facility"); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			f.Add("facility", "Facility cannot be empty")
		} else {
			validate.Value(&f, "facility", "Facility", s, facilityRules)
		}
		p.Facility = &s
	}
	if s, ok := doc.str(&f, "notes"); ok {
		p.Notes = &s
	}
	for _, key := range payloadKeys {
		if raw, ok := doc.field(key); ok {
			if p.payloads == nil {
				p.payloads = make(Document)
			}
			p.payloads[key] = raw
		}
	}

	if err := f.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

// Empty reports whether applying p would change nothing.
func (p *Patch) Empty() bool {
	return p == nil || (p.RecordDate == nil && p.Facility == nil && p.Notes == nil && len(p.payloads) == 0)
}

// Apply merges p into r. A payload must target the key of r's type and
// replaces the stored payload wholesale. r is left unmodified on error.
func (p *Patch) Apply(r *HealthRecord) error {
	if p.Empty() {
		return nil
	}

	var f apierr.Fields
	checkForeignPayloads(&f, p.payloads, r.RecordType)

	var payload Payload
	key := r.RecordType.PayloadKey()
	if raw, ok := p.payloads[key]; ok {
		decoded, err := decodePayload(r.RecordType, raw)
		if err != nil {
			f.Add(key, fmt.Sprintf("Invalid %s", key))
		} else {
			decoded.validate(&f)
			payload = decoded
		}
	}
	if err := f.Err(); err != nil {
		return err
	}

	if p.RecordDate != nil {
		r.RecordDate = *p.RecordDate
	}
	if p.Facility != nil {
		r.Facility = *p.Facility
	}
	if p.Notes != nil {
		r.Notes = *p.Notes
	}
	if payload != nil {
		r.Payload = payload
	}
	return nil
}
