package directory

import (
	"time"

	"github.com/google/uuid"
)

// Role is the declared role of a principal. It is set at registration and
// immutable for the lifetime of the principal.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RolePatient, RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// AvailabilityStatus is a doctor's live status.
type AvailabilityStatus string

const (
	AvailabilityActive AvailabilityStatus = "active"
	AvailabilityAway   AvailabilityStatus = "away"
)

func (s AvailabilityStatus) Valid() bool {
	return s == AvailabilityActive || s == AvailabilityAway
}

// Principal is an authenticated user known to the directory.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DoctorRecord is the professional identity of a doctor principal,
// one-to-one with the principal.
type DoctorRecord struct {
	ID                 uuid.UUID          `json:"id"`
	PrincipalID        uuid.UUID          `json:"principal_id"`
	Specialty          *string            `json:"specialty,omitempty"`
	LicenseNumber      *string            `json:"license_number,omitempty"`
	AvailabilityStatus AvailabilityStatus `json:"availability_status"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// PatientRecord is the clinical identity of a patient. PrincipalID is
// optional: staff may create a placeholder record for appointment-only
// bookings before the patient ever registers.
type PatientRecord struct {
	ID           uuid.UUID  `json:"id"`
	PrincipalID  *uuid.UUID `json:"principal_id,omitempty"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Email        *string    `json:"email,omitempty"`
	Phone        *string    `json:"phone,omitempty"`
	BirthDate    *time.Time `json:"birth_date,omitempty"`
	MedicalNotes *string    `json:"medical_notes,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
