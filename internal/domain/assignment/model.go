package assignment

import (
	"time"

	"github.com/google/uuid"
)

// AssignmentStatus tracks soft deletion of assignments.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentInactive AssignmentStatus = "inactive"
)

// RequestStatus is the lifecycle of a physician-initiated request.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// PatientAssignment links a patient record to a practice. At most one active
// assignment exists per (patient, practice) pair; a patient may hold active
// assignments to several practices at once.
type PatientAssignment struct {
	ID           uuid.UUID        `json:"id"`
	PatientID    uuid.UUID        `json:"patient_id"`
	PracticeID   uuid.UUID        `json:"practice_id"`
	AssignedBy   uuid.UUID        `json:"assigned_by"`
	AssignedDate time.Time        `json:"assigned_date"`
	Status       AssignmentStatus `json:"status"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// PhysicianPatientRequest is a pending offer from a practice to a patient.
// Accepting it must produce exactly one active PatientAssignment.
type PhysicianPatientRequest struct {
	ID          uuid.UUID     `json:"id"`
	PracticeID  uuid.UUID     `json:"practice_id"`
	PatientID   uuid.UUID     `json:"patient_id"`
	RequestedBy uuid.UUID     `json:"requested_by"`
	Message     *string       `json:"message,omitempty"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"created_at"`
	ReviewedAt  *time.Time    `json:"reviewed_at,omitempty"`
}
