package directory

import (
	"context"

	"github.com/google/uuid"
)

type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	Update(ctx context.Context, p *Principal) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *DoctorRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*DoctorRecord, error)
	GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*DoctorRecord, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, status AvailabilityStatus) error
	Update(ctx context.Context, d *DoctorRecord) error
	List(ctx context.Context, limit, offset int) ([]*DoctorRecord, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *PatientRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*PatientRecord, error)
	GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*PatientRecord, error)
	Update(ctx context.Context, p *PatientRecord) error
	List(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error)
}
