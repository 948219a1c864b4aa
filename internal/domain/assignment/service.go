package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/domain/practice"
	"github.com/medpractice/portal/internal/platform/db"
)

// Authorizer answers permission questions against current membership state.
// Implemented by the practice service.
type Authorizer interface {
	Authorize(ctx context.Context, principalID, practiceID uuid.UUID, action practice.Permission) (bool, error)
}

// Directory is the slice of the directory service the workflow needs to
// look up patients.
type Directory interface {
	GetPrincipalByEmail(ctx context.Context, email string) (*directory.Principal, error)
	GetPatientByPrincipal(ctx context.Context, principalID uuid.UUID) (*directory.PatientRecord, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*directory.PatientRecord, error)
}

type Service struct {
	assignments AssignmentRepository
	requests    RequestRepository
	authz       Authorizer
	dir         Directory
	pool        *pgxpool.Pool
	log         zerolog.Logger
}

func NewService(assignments AssignmentRepository, requests RequestRepository, authz Authorizer, dir Directory, pool *pgxpool.Pool, log zerolog.Logger) *Service {
	return &Service{
		assignments: assignments,
		requests:    requests,
		authz:       authz,
		dir:         dir,
		pool:        pool,
		log:         log,
	}
}

func (s *Service) withTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.pool == nil {
		return fn(ctx)
	}
	txCtx, tx, err := db.WithTx(ctx, s.pool)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit
	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Service) requirePermission(ctx context.Context, actor, practiceID uuid.UUID, action practice.Permission) error {
	ok, err := s.authz.Authorize(ctx, actor, practiceID, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// AssignPatientDirect looks a patient up by email and links them to the
// practice immediately, without a request round-trip.
func (s *Service) AssignPatientDirect(ctx context.Context, actor, practiceID uuid.UUID, patientEmail string) (*PatientAssignment, error) {
	if err := s.requirePermission(ctx, actor, practiceID, practice.PermManagePatients); err != nil {
		return nil, err
	}

	principal, err := s.dir.GetPrincipalByEmail(ctx, patientEmail)
	if err != nil {
		return nil, err
	}
	if principal.Role != directory.RolePatient {
		return nil, ErrNotPatient
	}
	rec, err := s.dir.GetPatientByPrincipal(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, directory.ErrPatientRecordNotFound) {
			return nil, ErrPatientRecordMissing
		}
		return nil, err
	}

	a := &PatientAssignment{
		PatientID:  rec.ID,
		PracticeID: practiceID,
		AssignedBy: actor,
		Status:     AssignmentActive,
	}
	if err := s.assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// CreateRequest opens a pending offer from the practice to the patient. A
// pair that is already actively assigned, or that already has a pending
// request, cannot receive another one.
func (s *Service) CreateRequest(ctx context.Context, actor, practiceID, patientID uuid.UUID, message *string) (*PhysicianPatientRequest, error) {
	if err := s.requirePermission(ctx, actor, practiceID, practice.PermManagePatients); err != nil {
		return nil, err
	}
	if _, err := s.dir.GetPatient(ctx, patientID); err != nil {
		return nil, err
	}
	if _, err := s.assignments.GetActive(ctx, patientID, practiceID); err == nil {
		return nil, ErrAlreadyAssigned
	} else if !errors.Is(err, ErrAssignmentNotFound) {
		return nil, err
	}
	existing, err := s.requests.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if r.PracticeID == practiceID && r.Status == RequestPending {
			return nil, ErrRequestPending
		}
	}

	req := &PhysicianPatientRequest{
		PracticeID:  practiceID,
		PatientID:   patientID,
		RequestedBy: actor,
		Message:     message,
		Status:      RequestPending,
	}
	if err := s.requests.Create(ctx, req); err != nil {
		return nil, err
	}
	return req, nil
}

// RespondToRequest records the patient's decision. Only the patient the
// request addresses may respond. Accepting updates the request and creates
// the assignment in one transaction, so an accepted request can never be
// durably observed without its assignment.
func (s *Service) RespondToRequest(ctx context.Context, actor, requestID uuid.UUID, accept bool) (*PatientAssignment, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	rec, err := s.dir.GetPatient(ctx, req.PatientID)
	if err != nil {
		return nil, err
	}
	if rec.PrincipalID == nil || *rec.PrincipalID != actor {
		return nil, ErrPermissionDenied
	}

	if req.Status != RequestPending {
		return nil, ErrRequestClosed
	}

	now := time.Now()
	req.ReviewedAt = &now

	if !accept {
		req.Status = RequestRejected
		if err := s.requests.Update(ctx, req); err != nil {
			return nil, err
		}
		return nil, nil
	}

	req.Status = RequestAccepted
	a := &PatientAssignment{
		PatientID:  req.PatientID,
		PracticeID: req.PracticeID,
		AssignedBy: req.RequestedBy,
		Status:     AssignmentActive,
	}
	err = s.withTx(ctx, func(ctx context.Context) error {
		if err := s.requests.Update(ctx, req); err != nil {
			return err
		}
		if err := s.assignments.Create(ctx, a); err != nil {
			// An active assignment that already exists satisfies the
			// accepted-request invariant; keep it rather than failing.
			if errors.Is(err, ErrAlreadyAssigned) {
				existing, getErr := s.assignments.GetActive(ctx, req.PatientID, req.PracticeID)
				if getErr != nil {
					return err
				}
				a = existing
				return nil
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// reconcile repairs an accepted request that has no matching active
// assignment, which can only arise from a partial write under a
// non-transactional store. The repair is unambiguous, so it is applied
// automatically and logged.
func (s *Service) reconcile(ctx context.Context, req *PhysicianPatientRequest) {
	if req.Status != RequestAccepted {
		return
	}
	_, err := s.assignments.GetActive(ctx, req.PatientID, req.PracticeID)
	if err == nil {
		return
	}
	if !errors.Is(err, ErrAssignmentNotFound) {
		return
	}

	a := &PatientAssignment{
		PatientID:  req.PatientID,
		PracticeID: req.PracticeID,
		AssignedBy: req.RequestedBy,
		Status:     AssignmentActive,
	}
	if createErr := s.assignments.Create(ctx, a); createErr != nil && !errors.Is(createErr, ErrAlreadyAssigned) {
		s.log.Error().Err(createErr).
			Str("request_id", req.ID.String()).
			Msg("failed to repair accepted request without assignment")
		return
	}
	s.log.Warn().
		Str("request_id", req.ID.String()).
		Str("patient_id", req.PatientID.String()).
		Str("practice_id", req.PracticeID.String()).
		Msg("repaired accepted request without assignment")
}

// GetRequest returns a request visible to the actor: either staff with
// view_patients on the practice, or the addressed patient.
func (s *Service) GetRequest(ctx context.Context, actor, requestID uuid.UUID) (*PhysicianPatientRequest, error) {
	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	ok, err := s.authz.Authorize(ctx, actor, req.PracticeID, practice.PermViewPatients)
	if err != nil {
		return nil, err
	}
	if !ok {
		rec, err := s.dir.GetPatient(ctx, req.PatientID)
		if err != nil || rec.PrincipalID == nil || *rec.PrincipalID != actor {
			return nil, ErrPermissionDenied
		}
	}

	s.reconcile(ctx, req)
	return req, nil
}

// ListRequestsForPatient returns the acting patient's own requests.
func (s *Service) ListRequestsForPatient(ctx context.Context, actor uuid.UUID) ([]*PhysicianPatientRequest, error) {
	rec, err := s.dir.GetPatientByPrincipal(ctx, actor)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByPatient(ctx, rec.ID)
	if err != nil {
		return nil, err
	}
	for _, req := range requests {
		s.reconcile(ctx, req)
	}
	return requests, nil
}

func (s *Service) ListRequestsForPractice(ctx context.Context, actor, practiceID uuid.UUID, limit, offset int) ([]*PhysicianPatientRequest, int, error) {
	if err := s.requirePermission(ctx, actor, practiceID, practice.PermViewPatients); err != nil {
		return nil, 0, err
	}
	return s.requests.ListByPractice(ctx, practiceID, limit, offset)
}

// RemovePatientFromPractice soft-deletes the assignment; the row is kept
// for the audit trail.
func (s *Service) RemovePatientFromPractice(ctx context.Context, actor, assignmentID uuid.UUID) error {
	a, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(ctx, actor, a.PracticeID, practice.PermManagePatients); err != nil {
		return err
	}
	if a.Status == AssignmentInactive {
		return nil
	}
	a.Status = AssignmentInactive
	return s.assignments.Update(ctx, a)
}

func (s *Service) ListAssignmentsForPractice(ctx context.Context, actor, practiceID uuid.UUID, limit, offset int) ([]*PatientAssignment, int, error) {
	if err := s.requirePermission(ctx, actor, practiceID, practice.PermViewPatients); err != nil {
		return nil, 0, err
	}
	return s.assignments.ListByPractice(ctx, practiceID, limit, offset)
}

// ListAssignmentsForPatient returns the acting patient's own assignments.
func (s *Service) ListAssignmentsForPatient(ctx context.Context, actor uuid.UUID) ([]*PatientAssignment, error) {
	rec, err := s.dir.GetPatientByPrincipal(ctx, actor)
	if err != nil {
		return nil, err
	}
	return s.assignments.ListByPatient(ctx, rec.ID)
}
