package assignment

import (
	"context"

	"github.com/google/uuid"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *PatientAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientAssignment, error)
	// GetActive returns the single active assignment for the pair, or
	// ErrAssignmentNotFound.
	GetActive(ctx context.Context, patientID, practiceID uuid.UUID) (*PatientAssignment, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit, offset int) ([]*PatientAssignment, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientAssignment, error)
	Update(ctx context.Context, a *PatientAssignment) error
	DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error
}

type RequestRepository interface {
	Create(ctx context.Context, r *PhysicianPatientRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*PhysicianPatientRequest, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID, limit, offset int) ([]*PhysicianPatientRequest, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PhysicianPatientRequest, error)
	Update(ctx context.Context, r *PhysicianPatientRequest) error
	DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error
}
