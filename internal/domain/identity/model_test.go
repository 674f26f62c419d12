package identity

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestBloodGroup_Valid(t *testing.T) {
	for _, g := range []BloodGroup{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"} {
		if !g.Valid() {
			t.Errorf("%s should be valid", g)
		}
	}
	for _, g := range []BloodGroup{"", "C+", "o+", "AB", "A"} {
		if g.Valid() {
			t.Errorf("%q should be invalid", g)
		}
	}
}

func TestUser_JSONNeverIncludesPassword(t *testing.T) {
	u := &User{ID: uuid.New(), Username: "alice", Email: "a@example.com", PasswordHash: "$2a$10$secret", BloodGroup: BloodOPos}

	for name, v := range map[string]interface{}{
		"user":     u,
		"auth":     AuthResponse{User: u, Token: "tok"},
		"tagLogin": TagLoginResponse{Token: "tok", User: u.TagProfile()},
	} {
		b, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("%s: marshal: %v", name, err)
		}
		if strings.Contains(string(b), "secret") || strings.Contains(strings.ToLower(string(b)), "password") {
			t.Errorf("%s: password leaked: %s", name, b)
		}
	}
}

func TestAuthResponse_FlattensUser(t *testing.T) {
	u := &User{ID: uuid.New(), Username: "alice", Email: "a@example.com", BloodGroup: BloodOPos}
	b, _ := json.Marshal(AuthResponse{User: u, Token: "tok"})

	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	if m["_id"] != u.ID.String() || m["token"] != "tok" || m["bloodGroup"] != "O+" {
		t.Errorf("unexpected auth response %s", b)
	}
}

func TestTagProfile_Fields(t *testing.T) {
	u := &User{ID: uuid.New(), Username: "alice", Email: "a@example.com", PhoneNumber: "555", BloodGroup: BloodBNeg, Role: RoleUser}
	b, _ := json.Marshal(u.TagProfile())

	var m map[string]interface{}
	_ = json.Unmarshal(b, &m)
	if m["id"] != u.ID.String() {
		t.Errorf("tag projection should carry id, got %s", b)
	}
	if _, ok := m["phoneNumber"]; ok {
		t.Errorf("tag projection must be reduced, got %s", b)
	}
}
