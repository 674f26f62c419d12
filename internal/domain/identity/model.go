package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/phr/phr/pkg/jsontime"
)

type BloodGroup string

const (
	BloodAPos  BloodGroup = "A+"
	BloodANeg  BloodGroup = "A-"
	BloodBPos  BloodGroup = "B+"
	BloodBNeg  BloodGroup = "B-"
	BloodABPos BloodGroup = "AB+"
	BloodABNeg BloodGroup = "AB-"
	BloodOPos  BloodGroup = "O+"
	BloodONeg  BloodGroup = "O-"
)

func (b BloodGroup) Valid() bool {
	switch b {
	case BloodAPos, BloodANeg, BloodBPos, BloodBNeg, BloodABPos, BloodABNeg, BloodOPos, BloodONeg:
		return true
	}
	return false
}

const RoleUser = "user"

// User is an account holder. The JSON form is the full projection and never
// includes the password hash.
type User struct {
	ID           uuid.UUID      `json:"_id"`
	Username     string         `json:"username"`
	Email        string         `json:"email"`
	PasswordHash string         `json:"-"`
	FirstName    string         `json:"firstName,omitempty"`
	LastName     string         `json:"lastName,omitempty"`
	DateOfBirth  *jsontime.Date `json:"dateOfBirth,omitempty"`
	BloodGroup   BloodGroup     `json:"bloodGroup"`
	PhoneNumber  string         `json:"phoneNumber,omitempty"`
	RFIDTag      *string        `json:"rfidTag,omitempty"`
	Role         string         `json:"role"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// TagProfile is the reduced projection returned by hardware-tag login.
type TagProfile struct {
	ID         uuid.UUID  `json:"id"`
	Username   string     `json:"username"`
	Email      string     `json:"email"`
	FirstName  string     `json:"firstName,omitempty"`
	LastName   string     `json:"lastName,omitempty"`
	BloodGroup BloodGroup `json:"bloodGroup"`
	Role       string     `json:"role"`
}

func (u *User) TagProfile() TagProfile {
	return TagProfile{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		BloodGroup: u.BloodGroup,
		Role:       u.Role,
	}
}

// AuthResponse is returned by registration and password login: the full
// projection with the token alongside.
type AuthResponse struct {
	*User
	Token string `json:"token"`
}

type TagLoginResponse struct {
	Token string     `json:"token"`
	User  TagProfile `json:"user"`
}

// Request bounds follow the column widths in migrations/001_users.sql.
// Passwords are capped at 72 bytes, the most bcrypt reads.
type RegisterRequest struct {
	Username    string         `json:"username" validate:"required,max=64" label:"Username"`
	Email       string         `json:"email" validate:"required,email,max=254" label:"Email"`
	Password    string         `json:"password" validate:"min=6,max=72,maxbytes=72" label:"Password"`
	BloodGroup  BloodGroup     `json:"bloodGroup" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-" label:"Blood group"`
	FirstName   string         `json:"firstName" validate:"max=100" label:"First name"`
	LastName    string         `json:"lastName" validate:"max=100" label:"Last name"`
	DateOfBirth *jsontime.Date `json:"dateOfBirth"`
	PhoneNumber string         `json:"phoneNumber" validate:"max=32" label:"Phone number"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" label:"Email"`
	Password string `json:"password" validate:"required" label:"Password"`
}

// ProfileUpdate carries the editable profile fields. Empty values leave the
// stored field unchanged.
type ProfileUpdate struct {
	FirstName   string         `json:"firstName" validate:"max=100" label:"First name"`
	LastName    string         `json:"lastName" validate:"max=100" label:"Last name"`
	Email       string         `json:"email" validate:"omitempty,email,max=254" label:"Email"`
	PhoneNumber string         `json:"phoneNumber" validate:"max=32" label:"Phone number"`
	DateOfBirth *jsontime.Date `json:"dateOfBirth"`
}

func (p ProfileUpdate) empty() bool {
	return p.FirstName == "" && p.LastName == "" && p.Email == "" && p.PhoneNumber == "" &&
		(p.DateOfBirth == nil || p.DateOfBirth.IsZero())
}

type PasswordChange struct {
	CurrentPassword string `json:"currentPassword" validate:"required" label:"Current password"`
	NewPassword     string `json:"newPassword" validate:"min=6,max=72,maxbytes=72" label:"Password"`
}

// TagRequest carries a hardware tag. An empty tag is only meaningful when
// assigning, where it clears the tag.
type TagRequest struct {
	RFIDTag string `json:"rfidTag" validate:"max=128" label:"RFID tag"`
}

type tagLogin struct {
	RFIDTag string `json:"rfidTag" validate:"required,max=128" label:"RFID tag"`
}
