package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Service struct {
	principals PrincipalRepository
	doctors    DoctorRepository
	patients   PatientRepository
}

func NewService(principals PrincipalRepository, doctors DoctorRepository, patients PatientRepository) *Service {
	return &Service{principals: principals, doctors: doctors, patients: patients}
}

// Resolve loads the directory record for an authenticated principal. A
// missing record is reported as ErrPrincipalNotFound so callers can
// distinguish an incomplete registration from a failed authentication.
func (s *Service) Resolve(ctx context.Context, principalID uuid.UUID) (*Principal, error) {
	return s.principals.GetByID(ctx, principalID)
}

// RegisterInput carries the fields a new principal registers with.
type RegisterInput struct {
	PrincipalID   uuid.UUID `json:"-"`
	Email         string    `json:"email"`
	Role          Role      `json:"role"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Phone         *string   `json:"phone,omitempty"`
	Specialty     *string   `json:"specialty,omitempty"`
	LicenseNumber *string   `json:"license_number,omitempty"`
}

// Register creates the directory record for a freshly authenticated
// principal. Doctors get a DoctorRecord and patients a linked PatientRecord
// alongside the Principal; the role determines which record types may exist
// and is immutable afterwards.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Principal, error) {
	if in.PrincipalID == uuid.Nil {
		return nil, fmt.Errorf("principal id is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, fmt.Errorf("email is required")
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("first_name and last_name are required")
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	p := &Principal{
		ID:        in.PrincipalID,
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Role:      in.Role,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Phone:     in.Phone,
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}

	switch in.Role {
	case RoleDoctor:
		d := &DoctorRecord{
			PrincipalID:   p.ID,
			Specialty:     in.Specialty,
			LicenseNumber: in.LicenseNumber,
		}
		if err := s.doctors.Create(ctx, d); err != nil {
			return nil, fmt.Errorf("creating doctor record: %w", err)
		}
	case RolePatient:
		rec := &PatientRecord{
			PrincipalID: &p.ID,
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			Email:       &p.Email,
			Phone:       p.Phone,
		}
		if err := s.patients.Create(ctx, rec); err != nil {
			return nil, fmt.Errorf("creating patient record: %w", err)
		}
	}

	return p, nil
}

// EnsureDoctorRecord returns the doctor record for the principal, creating
// one when absent. It is idempotent; the specialty and license are only
// applied on first creation.
func (s *Service) EnsureDoctorRecord(ctx context.Context, principalID uuid.UUID, specialty, licenseNumber *string) (*DoctorRecord, error) {
	p, err := s.principals.GetByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Role != RoleDoctor {
		return nil, ErrInvalidRole
	}

	d, err := s.doctors.GetByPrincipal(ctx, principalID)
	if err == nil {
		return d, nil
	}
	if !errors.Is(err, ErrDoctorRecordNotFound) {
		return nil, err
	}

	d = &DoctorRecord{
		PrincipalID:   principalID,
		Specialty:     specialty,
		LicenseNumber: licenseNumber,
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Service) GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error) {
	return s.principals.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *Service) UpdateProfile(ctx context.Context, p *Principal) error {
	if strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.principals.Update(ctx, p)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*DoctorRecord, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) GetDoctorByPrincipal(ctx context.Context, principalID uuid.UUID) (*DoctorRecord, error) {
	return s.doctors.GetByPrincipal(ctx, principalID)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*DoctorRecord, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// CreatePatientRecord creates a clinical record. PrincipalID may be nil for
// placeholder patients booked by staff before the patient registers.
func (s *Service) CreatePatientRecord(ctx context.Context, rec *PatientRecord) error {
	if strings.TrimSpace(rec.FirstName) == "" || strings.TrimSpace(rec.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if rec.PrincipalID != nil {
		p, err := s.principals.GetByID(ctx, *rec.PrincipalID)
		if err != nil {
			return err
		}
		if p.Role != RolePatient {
			return ErrInvalidRole
		}
	}
	return s.patients.Create(ctx, rec)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) GetPatientByPrincipal(ctx context.Context, principalID uuid.UUID) (*PatientRecord, error) {
	return s.patients.GetByPrincipal(ctx, principalID)
}

func (s *Service) UpdatePatientRecord(ctx context.Context, rec *PatientRecord) error {
	if strings.TrimSpace(rec.FirstName) == "" || strings.TrimSpace(rec.LastName) == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	return s.patients.Update(ctx, rec)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	return s.patients.List(ctx, limit, offset)
}
