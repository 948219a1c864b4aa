package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

// -- Mock Principal Repository --

type mockPrincipalRepo struct {
	principals map[uuid.UUID]*Principal
}

func newMockPrincipalRepo() *mockPrincipalRepo {
	return &mockPrincipalRepo{principals: make(map[uuid.UUID]*Principal)}
}

func (m *mockPrincipalRepo) Create(_ context.Context, p *Principal) error {
	for _, existing := range m.principals {
		if existing.Email == p.Email {
			return ErrEmailTaken
		}
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.principals[p.ID] = p
	return nil
}

func (m *mockPrincipalRepo) GetByID(_ context.Context, id uuid.UUID) (*Principal, error) {
	p, ok := m.principals[id]
	if !ok {
		return nil, ErrPrincipalNotFound
	}
	return p, nil
}

func (m *mockPrincipalRepo) GetByEmail(_ context.Context, email string) (*Principal, error) {
	for _, p := range m.principals {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrPrincipalNotFound
}

func (m *mockPrincipalRepo) Update(_ context.Context, p *Principal) error {
	m.principals[p.ID] = p
	return nil
}

// -- Mock Doctor Repository --

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*DoctorRecord
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*DoctorRecord)}
}

func (m *mockDoctorRepo) Create(_ context.Context, d *DoctorRecord) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.AvailabilityStatus == "" {
		d.AvailabilityStatus = AvailabilityActive
	}
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) GetByID(_ context.Context, id uuid.UUID) (*DoctorRecord, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, ErrDoctorRecordNotFound
	}
	return d, nil
}

func (m *mockDoctorRepo) GetByPrincipal(_ context.Context, principalID uuid.UUID) (*DoctorRecord, error) {
	for _, d := range m.doctors {
		if d.PrincipalID == principalID {
			return d, nil
		}
	}
	return nil, ErrDoctorRecordNotFound
}

func (m *mockDoctorRepo) UpdateAvailability(_ context.Context, id uuid.UUID, status AvailabilityStatus) error {
	d, ok := m.doctors[id]
	if !ok {
		return ErrDoctorRecordNotFound
	}
	d.AvailabilityStatus = status
	return nil
}

func (m *mockDoctorRepo) Update(_ context.Context, d *DoctorRecord) error {
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) List(_ context.Context, limit, offset int) ([]*DoctorRecord, int, error) {
	var result []*DoctorRecord
	for _, d := range m.doctors {
		result = append(result, d)
	}
	return result, len(result), nil
}

// -- Mock Patient Repository --

type mockPatientRepo struct {
	patients map[uuid.UUID]*PatientRecord
}

func newMockPatientRepo() *mockPatientRepo {
	return &mockPatientRepo{patients: make(map[uuid.UUID]*PatientRecord)}
}

func (m *mockPatientRepo) Create(_ context.Context, p *PatientRecord) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientRecord, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientRecordNotFound
	}
	return p, nil
}

func (m *mockPatientRepo) GetByPrincipal(_ context.Context, principalID uuid.UUID) (*PatientRecord, error) {
	for _, p := range m.patients {
		if p.PrincipalID != nil && *p.PrincipalID == principalID {
			return p, nil
		}
	}
	return nil, ErrPatientRecordNotFound
}

func (m *mockPatientRepo) Update(_ context.Context, p *PatientRecord) error {
	m.patients[p.ID] = p
	return nil
}

func (m *mockPatientRepo) List(_ context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	var result []*PatientRecord
	for _, p := range m.patients {
		result = append(result, p)
	}
	return result, len(result), nil
}

func newTestService() (*Service, *mockPrincipalRepo, *mockDoctorRepo, *mockPatientRepo) {
	principals := newMockPrincipalRepo()
	doctors := newMockDoctorRepo()
	patients := newMockPatientRepo()
	return NewService(principals, doctors, patients), principals, doctors, patients
}

// -- Tests --

func TestRegister_DoctorCreatesDoctorRecord(t *testing.T) {
	svc, _, doctors, _ := newTestService()
	id := uuid.New()

	p, err := svc.Register(context.Background(), RegisterInput{
		PrincipalID: id,
		Email:       "Doc@Example.com",
		Role:        RoleDoctor,
		FirstName:   "Jordan",
		LastName:    "Lee",
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.Email != "doc@example.com" {
		t.Errorf("email not normalized: %q", p.Email)
	}

	d, err := doctors.GetByPrincipal(context.Background(), id)
	if err != nil {
		t.Fatalf("doctor record missing after doctor registration: %v", err)
	}
	if d.AvailabilityStatus != AvailabilityActive {
		t.Errorf("new doctor status = %q, want active", d.AvailabilityStatus)
	}
}

func TestRegister_PatientCreatesLinkedRecord(t *testing.T) {
	svc, _, _, patients := newTestService()
	id := uuid.New()

	if _, err := svc.Register(context.Background(), RegisterInput{
		PrincipalID: id,
		Email:       "pat@example.com",
		Role:        RolePatient,
		FirstName:   "Sam",
		LastName:    "Rivera",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	rec, err := patients.GetByPrincipal(context.Background(), id)
	if err != nil {
		t.Fatalf("patient record missing after patient registration: %v", err)
	}
	if rec.PrincipalID == nil || *rec.PrincipalID != id {
		t.Error("patient record not linked to principal")
	}
}

func TestRegister_Validation(t *testing.T) {
	svc, _, _, _ := newTestService()

	tests := []struct {
		name string
		in   RegisterInput
	}{
		{"missing email", RegisterInput{PrincipalID: uuid.New(), Role: RolePatient, FirstName: "A", LastName: "B"}},
		{"missing name", RegisterInput{PrincipalID: uuid.New(), Email: "a@b.com", Role: RolePatient}},
		{"bad role", RegisterInput{PrincipalID: uuid.New(), Email: "a@b.com", Role: "superuser", FirstName: "A", LastName: "B"}},
		{"nil principal", RegisterInput{Email: "a@b.com", Role: RolePatient, FirstName: "A", LastName: "B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Register(context.Background(), tt.in); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	svc, _, _, _ := newTestService()

	in := RegisterInput{
		PrincipalID: uuid.New(),
		Email:       "dup@example.com",
		Role:        RolePatient,
		FirstName:   "A",
		LastName:    "B",
	}
	if _, err := svc.Register(context.Background(), in); err != nil {
		t.Fatalf("first register: %v", err)
	}

	in.PrincipalID = uuid.New()
	_, err := svc.Register(context.Background(), in)
	if !errors.Is(err, ErrEmailTaken) {
		t.Errorf("got %v, want ErrEmailTaken", err)
	}
}

func TestResolve_NotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Resolve(context.Background(), uuid.New())
	if !errors.Is(err, ErrPrincipalNotFound) {
		t.Errorf("got %v, want ErrPrincipalNotFound", err)
	}
}

func TestEnsureDoctorRecord_Idempotent(t *testing.T) {
	svc, principals, doctors, _ := newTestService()
	id := uuid.New()
	principals.principals[id] = &Principal{ID: id, Email: "d@x.com", Role: RoleDoctor}

	spec := "cardiology"
	first, err := svc.EnsureDoctorRecord(context.Background(), id, &spec, nil)
	if err != nil {
		t.Fatalf("first ensure: %v", err)
	}

	other := "neurology"
	second, err := svc.EnsureDoctorRecord(context.Background(), id, &other, nil)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if first.ID != second.ID {
		t.Error("ensure created a second doctor record")
	}
	if len(doctors.doctors) != 1 {
		t.Errorf("doctor record count = %d, want 1", len(doctors.doctors))
	}
	if second.Specialty == nil || *second.Specialty != "cardiology" {
		t.Error("second ensure overwrote specialty")
	}
}

func TestEnsureDoctorRecord_RejectsNonDoctor(t *testing.T) {
	svc, principals, _, _ := newTestService()
	id := uuid.New()
	principals.principals[id] = &Principal{ID: id, Email: "p@x.com", Role: RolePatient}

	_, err := svc.EnsureDoctorRecord(context.Background(), id, nil, nil)
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("got %v, want ErrInvalidRole", err)
	}
}

func TestCreatePatientRecord_PlaceholderAllowed(t *testing.T) {
	svc, _, _, _ := newTestService()

	rec := &PatientRecord{FirstName: "Walk", LastName: "In"}
	if err := svc.CreatePatientRecord(context.Background(), rec); err != nil {
		t.Fatalf("placeholder patient rejected: %v", err)
	}
	if rec.PrincipalID != nil {
		t.Error("placeholder record should have nil principal")
	}
}

func TestCreatePatientRecord_RejectsNonPatientPrincipal(t *testing.T) {
	svc, principals, _, _ := newTestService()
	id := uuid.New()
	principals.principals[id] = &Principal{ID: id, Email: "d@x.com", Role: RoleDoctor}

	rec := &PatientRecord{FirstName: "A", LastName: "B", PrincipalID: &id}
	err := svc.CreatePatientRecord(context.Background(), rec)
	if !errors.Is(err, ErrInvalidRole) {
		t.Errorf("got %v, want ErrInvalidRole", err)
	}
}
