package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/domain/practice"
)

// -- Mock Assignment Repository --

type mockAssignmentRepo struct {
	assignments map[uuid.UUID]*PatientAssignment
}

func newMockAssignmentRepo() *mockAssignmentRepo {
	return &mockAssignmentRepo{assignments: make(map[uuid.UUID]*PatientAssignment)}
}

func (m *mockAssignmentRepo) Create(_ context.Context, a *PatientAssignment) error {
	if a.Status == "" {
		a.Status = AssignmentActive
	}
	for _, existing := range m.assignments {
		if existing.PatientID == a.PatientID && existing.PracticeID == a.PracticeID &&
			existing.Status == AssignmentActive && a.Status == AssignmentActive {
			return ErrAlreadyAssigned
		}
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.AssignedDate.IsZero() {
		a.AssignedDate = time.Now()
	}
	m.assignments[a.ID] = a
	return nil
}

func (m *mockAssignmentRepo) GetByID(_ context.Context, id uuid.UUID) (*PatientAssignment, error) {
	a, ok := m.assignments[id]
	if !ok {
		return nil, ErrAssignmentNotFound
	}
	return a, nil
}

func (m *mockAssignmentRepo) GetActive(_ context.Context, patientID, practiceID uuid.UUID) (*PatientAssignment, error) {
	for _, a := range m.assignments {
		if a.PatientID == patientID && a.PracticeID == practiceID && a.Status == AssignmentActive {
			return a, nil
		}
	}
	return nil, ErrAssignmentNotFound
}

func (m *mockAssignmentRepo) ListByPractice(_ context.Context, practiceID uuid.UUID, limit, offset int) ([]*PatientAssignment, int, error) {
	var result []*PatientAssignment
	for _, a := range m.assignments {
		if a.PracticeID == practiceID {
			result = append(result, a)
		}
	}
	return result, len(result), nil
}

func (m *mockAssignmentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PatientAssignment, error) {
	var result []*PatientAssignment
	for _, a := range m.assignments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	return result, nil
}

func (m *mockAssignmentRepo) Update(_ context.Context, a *PatientAssignment) error {
	m.assignments[a.ID] = a
	return nil
}

func (m *mockAssignmentRepo) DeleteByPractice(_ context.Context, practiceID uuid.UUID) error {
	for id, a := range m.assignments {
		if a.PracticeID == practiceID {
			delete(m.assignments, id)
		}
	}
	return nil
}

func (m *mockAssignmentRepo) activeCount(patientID, practiceID uuid.UUID) int {
	n := 0
	for _, a := range m.assignments {
		if a.PatientID == patientID && a.PracticeID == practiceID && a.Status == AssignmentActive {
			n++
		}
	}
	return n
}

// -- Mock Request Repository --

type mockRequestRepo struct {
	requests map[uuid.UUID]*PhysicianPatientRequest
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[uuid.UUID]*PhysicianPatientRequest)}
}

func (m *mockRequestRepo) Create(_ context.Context, r *PhysicianPatientRequest) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = RequestPending
	}
	// Mirrors the partial unique index on pending pairs.
	if r.Status == RequestPending {
		for _, existing := range m.requests {
			if existing.PatientID == r.PatientID && existing.PracticeID == r.PracticeID && existing.Status == RequestPending {
				return ErrRequestPending
			}
		}
	}
	m.requests[r.ID] = r
	return nil
}

func (m *mockRequestRepo) GetByID(_ context.Context, id uuid.UUID) (*PhysicianPatientRequest, error) {
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrRequestNotFound
	}
	return r, nil
}

func (m *mockRequestRepo) ListByPractice(_ context.Context, practiceID uuid.UUID, limit, offset int) ([]*PhysicianPatientRequest, int, error) {
	var result []*PhysicianPatientRequest
	for _, r := range m.requests {
		if r.PracticeID == practiceID {
			result = append(result, r)
		}
	}
	return result, len(result), nil
}

func (m *mockRequestRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*PhysicianPatientRequest, error) {
	var result []*PhysicianPatientRequest
	for _, r := range m.requests {
		if r.PatientID == patientID {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockRequestRepo) Update(_ context.Context, r *PhysicianPatientRequest) error {
	m.requests[r.ID] = r
	return nil
}

func (m *mockRequestRepo) DeleteByPractice(_ context.Context, practiceID uuid.UUID) error {
	for id, r := range m.requests {
		if r.PracticeID == practiceID {
			delete(m.requests, id)
		}
	}
	return nil
}

// -- Mock collaborators --

type mockAuthorizer struct {
	grants map[uuid.UUID]map[uuid.UUID][]practice.Permission // principal -> practice -> perms
}

func newMockAuthorizer() *mockAuthorizer {
	return &mockAuthorizer{grants: make(map[uuid.UUID]map[uuid.UUID][]practice.Permission)}
}

func (m *mockAuthorizer) grant(principalID, practiceID uuid.UUID, perms ...practice.Permission) {
	if m.grants[principalID] == nil {
		m.grants[principalID] = make(map[uuid.UUID][]practice.Permission)
	}
	m.grants[principalID][practiceID] = perms
}

func (m *mockAuthorizer) Authorize(_ context.Context, principalID, practiceID uuid.UUID, action practice.Permission) (bool, error) {
	for _, p := range m.grants[principalID][practiceID] {
		if p == action {
			return true, nil
		}
	}
	return false, nil
}

type mockDir struct {
	principals map[string]*directory.Principal // by email
	records    map[uuid.UUID]*directory.PatientRecord
}

func newMockDir() *mockDir {
	return &mockDir{
		principals: make(map[string]*directory.Principal),
		records:    make(map[uuid.UUID]*directory.PatientRecord),
	}
}

// addPatient registers a patient principal with a linked record and returns
// (principalID, recordID).
func (m *mockDir) addPatient(email string) (uuid.UUID, uuid.UUID) {
	pid := uuid.New()
	m.principals[email] = &directory.Principal{ID: pid, Email: email, Role: directory.RolePatient}
	rec := &directory.PatientRecord{ID: uuid.New(), PrincipalID: &pid}
	m.records[rec.ID] = rec
	return pid, rec.ID
}

func (m *mockDir) GetPrincipalByEmail(_ context.Context, email string) (*directory.Principal, error) {
	p, ok := m.principals[email]
	if !ok {
		return nil, directory.ErrPrincipalNotFound
	}
	return p, nil
}

func (m *mockDir) GetPatientByPrincipal(_ context.Context, principalID uuid.UUID) (*directory.PatientRecord, error) {
	for _, rec := range m.records {
		if rec.PrincipalID != nil && *rec.PrincipalID == principalID {
			return rec, nil
		}
	}
	return nil, directory.ErrPatientRecordNotFound
}

func (m *mockDir) GetPatient(_ context.Context, id uuid.UUID) (*directory.PatientRecord, error) {
	rec, ok := m.records[id]
	if !ok {
		return nil, directory.ErrPatientRecordNotFound
	}
	return rec, nil
}

type fixture struct {
	svc         *Service
	assignments *mockAssignmentRepo
	requests    *mockRequestRepo
	authz       *mockAuthorizer
	dir         *mockDir
}

func newFixture() *fixture {
	assignments := newMockAssignmentRepo()
	requests := newMockRequestRepo()
	authz := newMockAuthorizer()
	dir := newMockDir()
	return &fixture{
		svc:         NewService(assignments, requests, authz, dir, nil, zerolog.Nop()),
		assignments: assignments,
		requests:    requests,
		authz:       authz,
		dir:         dir,
	}
}

// -- Direct add --

func TestAssignPatientDirect(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := f.dir.addPatient("pat@example.com")

	a, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")
	if err != nil {
		t.Fatalf("AssignPatientDirect: %v", err)
	}
	if a.PatientID != recID || a.PracticeID != prac || a.Status != AssignmentActive {
		t.Errorf("assignment = %+v", a)
	}
	if a.AssignedBy != staff {
		t.Errorf("assigned_by = %s, want %s", a.AssignedBy, staff)
	}
}

func TestAssignPatientDirect_PermissionDenied(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermViewPatients) // not manage_patients
	f.dir.addPatient("pat@example.com")

	_, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
}

func TestAssignPatientDirect_UnknownEmail(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)

	_, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "nobody@example.com")
	if !errors.Is(err, directory.ErrPrincipalNotFound) {
		t.Errorf("got %v, want ErrPrincipalNotFound", err)
	}
}

func TestAssignPatientDirect_NonPatientPrincipal(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	f.dir.principals["doc@example.com"] = &directory.Principal{ID: uuid.New(), Role: directory.RoleDoctor}

	_, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "doc@example.com")
	if !errors.Is(err, ErrNotPatient) {
		t.Errorf("got %v, want ErrNotPatient", err)
	}
}

func TestAssignPatientDirect_MissingRecord(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	f.dir.principals["pat@example.com"] = &directory.Principal{ID: uuid.New(), Role: directory.RolePatient}

	_, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")
	if !errors.Is(err, ErrPatientRecordMissing) {
		t.Errorf("got %v, want ErrPatientRecordMissing", err)
	}
}

func TestAssignPatientDirect_DuplicateConflicts(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	f.dir.addPatient("pat@example.com")

	if _, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("got %v, want ErrAlreadyAssigned", err)
	}
}

// -- Request path --

func TestCreateRequest(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := f.dir.addPatient("pat@example.com")
	msg := "Please join"

	req, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, &msg)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if req.Status != RequestPending {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if req.ReviewedAt != nil {
		t.Error("new request has a review timestamp")
	}
}

func TestCreateRequest_BlockedWhenAssigned(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := f.dir.addPatient("pat@example.com")

	if _, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	_, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if !errors.Is(err, ErrAlreadyAssigned) {
		t.Errorf("got %v, want ErrAlreadyAssigned", err)
	}
}

func TestCreateRequest_BlockedWhenPending(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := f.dir.addPatient("pat@example.com")

	if _, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	_, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if !errors.Is(err, ErrRequestPending) {
		t.Errorf("got %v, want ErrRequestPending", err)
	}
}

// blindRequestRepo hides existing rows from list reads, modeling the window
// where a concurrent create has committed after our pre-check read.
type blindRequestRepo struct {
	*mockRequestRepo
}

func (r *blindRequestRepo) ListByPatient(_ context.Context, _ uuid.UUID) ([]*PhysicianPatientRequest, error) {
	return nil, nil
}

func TestCreateRequest_RaceResolvedByStore(t *testing.T) {
	assignments := newMockAssignmentRepo()
	requests := &blindRequestRepo{newMockRequestRepo()}
	authz := newMockAuthorizer()
	dir := newMockDir()
	svc := NewService(assignments, requests, authz, dir, nil, zerolog.Nop())

	staff, prac := uuid.New(), uuid.New()
	authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := dir.addPatient("pat@example.com")

	if _, err := svc.CreateRequest(context.Background(), staff, prac, recID, nil); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	// The pre-check sees nothing; the store's pending-pair uniqueness decides.
	_, err := svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if !errors.Is(err, ErrRequestPending) {
		t.Errorf("got %v, want ErrRequestPending", err)
	}
	if len(requests.requests) != 1 {
		t.Errorf("request count = %d, want 1", len(requests.requests))
	}
}

func TestCreateRequest_AllowedAfterRejection(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	patientPrincipal, recID := f.dir.addPatient("pat@example.com")

	req, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	if _, err := f.svc.RespondToRequest(context.Background(), patientPrincipal, req.ID, false); err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}

	if _, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil); err != nil {
		t.Errorf("second request after rejection: %v", err)
	}
}

func TestRespondToRequest_Accept(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	patientPrincipal, recID := f.dir.addPatient("pat@example.com")

	req, err := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}

	a, err := f.svc.RespondToRequest(context.Background(), patientPrincipal, req.ID, true)
	if err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}
	if a == nil || a.Status != AssignmentActive {
		t.Fatalf("accept returned %+v", a)
	}
	if f.assignments.activeCount(recID, prac) != 1 {
		t.Errorf("active assignments = %d, want exactly 1", f.assignments.activeCount(recID, prac))
	}

	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != RequestAccepted {
		t.Errorf("request status = %s, want accepted", stored.Status)
	}
	if stored.ReviewedAt == nil {
		t.Error("accepted request has no review timestamp")
	}
}

func TestRespondToRequest_Reject(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	patientPrincipal, recID := f.dir.addPatient("pat@example.com")

	req, _ := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)

	a, err := f.svc.RespondToRequest(context.Background(), patientPrincipal, req.ID, false)
	if err != nil {
		t.Fatalf("RespondToRequest: %v", err)
	}
	if a != nil {
		t.Error("reject created an assignment")
	}
	if f.assignments.activeCount(recID, prac) != 0 {
		t.Error("reject left an active assignment")
	}
	stored, _ := f.requests.GetByID(context.Background(), req.ID)
	if stored.Status != RequestRejected || stored.ReviewedAt == nil {
		t.Errorf("rejected request = %+v", stored)
	}
}

func TestRespondToRequest_OnlyAddressedPatient(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	_, recID := f.dir.addPatient("pat@example.com")
	otherPatient, _ := f.dir.addPatient("other@example.com")

	req, _ := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)

	_, err := f.svc.RespondToRequest(context.Background(), otherPatient, req.ID, true)
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
}

func TestRespondToRequest_ReplayRejected(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	patientPrincipal, recID := f.dir.addPatient("pat@example.com")

	req, _ := f.svc.CreateRequest(context.Background(), staff, prac, recID, nil)
	if _, err := f.svc.RespondToRequest(context.Background(), patientPrincipal, req.ID, true); err != nil {
		t.Fatalf("first respond: %v", err)
	}

	_, err := f.svc.RespondToRequest(context.Background(), patientPrincipal, req.ID, true)
	if !errors.Is(err, ErrRequestClosed) {
		t.Errorf("got %v, want ErrRequestClosed", err)
	}
	if f.assignments.activeCount(recID, prac) != 1 {
		t.Error("replay changed the assignment count")
	}
}

// -- Reconciliation --

func TestGetRequest_RepairsAcceptedWithoutAssignment(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermViewPatients)
	_, recID := f.dir.addPatient("pat@example.com")

	// Simulate the partial state a crash between the two writes would
	// leave behind.
	now := time.Now()
	req := &PhysicianPatientRequest{
		ID:          uuid.New(),
		PracticeID:  prac,
		PatientID:   recID,
		RequestedBy: staff,
		Status:      RequestAccepted,
		ReviewedAt:  &now,
	}
	f.requests.requests[req.ID] = req

	got, err := f.svc.GetRequest(context.Background(), staff, req.ID)
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != RequestAccepted {
		t.Errorf("status = %s", got.Status)
	}
	if f.assignments.activeCount(recID, prac) != 1 {
		t.Error("accepted request was not repaired with an assignment")
	}

	// Reading again must not create a second assignment.
	if _, err := f.svc.GetRequest(context.Background(), staff, req.ID); err != nil {
		t.Fatalf("second GetRequest: %v", err)
	}
	if f.assignments.activeCount(recID, prac) != 1 {
		t.Error("repair is not idempotent")
	}
}

// -- Removal --

func TestRemovePatientFromPractice_SoftDeletes(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	f.dir.addPatient("pat@example.com")

	a, _ := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")

	if err := f.svc.RemovePatientFromPractice(context.Background(), staff, a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	kept, err := f.assignments.GetByID(context.Background(), a.ID)
	if err != nil {
		t.Fatal("assignment row was hard-deleted")
	}
	if kept.Status != AssignmentInactive {
		t.Errorf("status = %s, want inactive", kept.Status)
	}

	// Removing again is a no-op.
	if err := f.svc.RemovePatientFromPractice(context.Background(), staff, a.ID); err != nil {
		t.Errorf("second remove: %v", err)
	}
}

func TestRemovePatientFromPractice_AllowsReassignment(t *testing.T) {
	f := newFixture()
	staff, prac := uuid.New(), uuid.New()
	f.authz.grant(staff, prac, practice.PermManagePatients)
	f.dir.addPatient("pat@example.com")

	a, _ := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com")
	if err := f.svc.RemovePatientFromPractice(context.Background(), staff, a.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := f.svc.AssignPatientDirect(context.Background(), staff, prac, "pat@example.com"); err != nil {
		t.Errorf("reassignment after removal failed: %v", err)
	}
}
