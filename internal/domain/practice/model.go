package practice

import (
	"time"

	"github.com/google/uuid"
)

// Permission is a named capability a staff membership can grant.
type Permission string

const (
	PermViewPatients   Permission = "view_patients"
	PermManagePatients Permission = "manage_patients"
	PermManageStaff    Permission = "manage_staff"
	PermScheduleAppts  Permission = "schedule_appointments"
	PermManagePractice Permission = "manage_practice"
)

func (p Permission) Valid() bool {
	switch p {
	case PermViewPatients, PermManagePatients, PermManageStaff, PermScheduleAppts, PermManagePractice:
		return true
	}
	return false
}

// FullPermissionSet returns every defined permission. Granted to the owner
// membership created during onboarding.
func FullPermissionSet() []Permission {
	return []Permission{
		PermViewPatients,
		PermManagePatients,
		PermManageStaff,
		PermScheduleAppts,
		PermManagePractice,
	}
}

// StaffRole is a membership's role within one practice. Distinct from the
// principal's directory role.
type StaffRole string

const (
	StaffAdmin        StaffRole = "admin"
	StaffDoctor       StaffRole = "doctor"
	StaffNurse        StaffRole = "nurse"
	StaffReceptionist StaffRole = "receptionist"
)

func (r StaffRole) Valid() bool {
	switch r {
	case StaffAdmin, StaffDoctor, StaffNurse, StaffReceptionist:
		return true
	}
	return false
}

// MembershipStatus tracks soft deletion of memberships.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// Practice is a medical organization that owns staff and patient assignments.
type Practice struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   *string   `json:"address,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Email     *string   `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StaffMembership affiliates a principal with one practice. At most one
// active membership exists per (principal, practice) pair, enforced by the
// store.
type StaffMembership struct {
	ID          uuid.UUID        `json:"id"`
	PrincipalID uuid.UUID        `json:"principal_id"`
	PracticeID  uuid.UUID        `json:"practice_id"`
	Role        StaffRole        `json:"role"`
	Department  *string          `json:"department,omitempty"`
	Permissions []Permission     `json:"permissions"`
	Status      MembershipStatus `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Allows reports whether the membership grants the action. Admin role allows
// everything regardless of the stored permission set; this mirrors the
// intended product behavior and must not be tightened here.
func (m *StaffMembership) Allows(action Permission) bool {
	if m.Status != MembershipActive {
		return false
	}
	if m.Role == StaffAdmin {
		return true
	}
	for _, p := range m.Permissions {
		if p == action {
			return true
		}
	}
	return false
}

// OnboardingChoice is the one-shot decision a new doctor makes.
type OnboardingChoice string

const (
	ChoiceOwner    OnboardingChoice = "owner"
	ChoiceEmployee OnboardingChoice = "employee"
)
