package practice

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medpractice/portal/internal/domain/directory"
	"github.com/medpractice/portal/internal/platform/db"
)

// DirectoryStore is the slice of the directory service the practice engine
// needs: resolving principals and ensuring doctor records exist.
type DirectoryStore interface {
	Resolve(ctx context.Context, principalID uuid.UUID) (*directory.Principal, error)
	EnsureDoctorRecord(ctx context.Context, principalID uuid.UUID, specialty, licenseNumber *string) (*directory.DoctorRecord, error)
}

// AssignmentPurger removes a practice's patient assignments during the
// delete cascade. Implemented by the assignment repository.
type AssignmentPurger interface {
	DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error
}

// RequestPurger removes a practice's patient requests during the delete
// cascade. Implemented by the request repository.
type RequestPurger interface {
	DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error
}

type Service struct {
	practices   PracticeRepository
	memberships MembershipRepository
	dir         DirectoryStore
	assignments AssignmentPurger
	requests    RequestPurger
	pool        *pgxpool.Pool
}

func NewService(practices PracticeRepository, memberships MembershipRepository, dir DirectoryStore, assignments AssignmentPurger, requests RequestPurger, pool *pgxpool.Pool) *Service {
	return &Service{
		practices:   practices,
		memberships: memberships,
		dir:         dir,
		assignments: assignments,
		requests:    requests,
		pool:        pool,
	}
}

// withTx runs fn inside a database transaction threaded through the context.
// With a nil pool (unit tests) fn runs directly against the repositories.
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

// Authorize answers "may principal perform action on practice". Membership
// state is re-read on every call; decisions are never cached, so staff
// changes take effect immediately.
func (s *Service) Authorize(ctx context.Context, principalID, practiceID uuid.UUID, action Permission) (bool, error) {
	m, err := s.memberships.GetActive(ctx, principalID, practiceID)
	if errors.Is(err, ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Allows(action), nil
}

func (s *Service) requirePermission(ctx context.Context, principalID, practiceID uuid.UUID, action Permission) error {
	ok, err := s.Authorize(ctx, principalID, practiceID, action)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPermissionDenied
	}
	return nil
}

// -- Practice CRUD --

// CreatePracticeInput carries the submitted practice fields.
type CreatePracticeInput struct {
	Name    string  `json:"name"`
	Address *string `json:"address,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

// CreatePractice inserts a practice with no membership side effect; owner
// membership creation belongs to CompleteOnboarding.
func (s *Service) CreatePractice(ctx context.Context, in CreatePracticeInput) (*Practice, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, ErrNameRequired
	}
	p := &Practice{
		Name:    strings.TrimSpace(in.Name),
		Address: in.Address,
		Phone:   in.Phone,
		Email:   in.Email,
	}
	if err := s.practices.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) GetPractice(ctx context.Context, id uuid.UUID) (*Practice, error) {
	return s.practices.GetByID(ctx, id)
}

func (s *Service) ListPractices(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	return s.practices.List(ctx, limit, offset)
}

func (s *Service) UpdatePractice(ctx context.Context, actor uuid.UUID, p *Practice) error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrNameRequired
	}
	if err := s.requirePermission(ctx, actor, p.ID, PermManagePractice); err != nil {
		return err
	}
	return s.practices.Update(ctx, p)
}

// DeletePractice cascades: requests, then assignments, then memberships,
// then the practice row, all in one transaction. Deleting an already-deleted
// practice is a no-op, so the existence check runs before the permission
// gate (the actor's membership is gone after the first delete).
func (s *Service) DeletePractice(ctx context.Context, actor, practiceID uuid.UUID) error {
	if _, err := s.practices.GetByID(ctx, practiceID); err != nil {
		if errors.Is(err, ErrPracticeNotFound) {
			return nil
		}
		return err
	}
	if err := s.requirePermission(ctx, actor, practiceID, PermManagePractice); err != nil {
		return err
	}
	return s.withTx(ctx, func(ctx context.Context) error {
		if err := s.requests.DeleteByPractice(ctx, practiceID); err != nil {
			return err
		}
		if err := s.assignments.DeleteByPractice(ctx, practiceID); err != nil {
			return err
		}
		if err := s.memberships.DeleteByPractice(ctx, practiceID); err != nil {
			return err
		}
		return s.practices.Delete(ctx, practiceID)
	})
}

// -- Staff management --

// AddStaffInput carries the fields for a new staff membership.
type AddStaffInput struct {
	PrincipalID uuid.UUID    `json:"principal_id"`
	Role        StaffRole    `json:"role"`
	Department  *string      `json:"department,omitempty"`
	Permissions []Permission `json:"permissions"`
}

func (s *Service) AddStaffMember(ctx context.Context, actor, practiceID uuid.UUID, in AddStaffInput) (*StaffMembership, error) {
	if err := s.requirePermission(ctx, actor, practiceID, PermManageStaff); err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}
	for _, p := range in.Permissions {
		if !p.Valid() {
			return nil, ErrInvalidRole
		}
	}
	if _, err := s.dir.Resolve(ctx, in.PrincipalID); err != nil {
		return nil, err
	}

	m := &StaffMembership{
		PrincipalID: in.PrincipalID,
		PracticeID:  practiceID,
		Role:        in.Role,
		Department:  in.Department,
		Permissions: in.Permissions,
		Status:      MembershipActive,
	}
	if err := s.memberships.Create(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateStaffRole changes a membership's role. Demoting the last active
// admin is rejected so the practice never loses all administrative access.
func (s *Service) UpdateStaffRole(ctx context.Context, actor, staffID uuid.UUID, newRole StaffRole) (*StaffMembership, error) {
	if !newRole.Valid() {
		return nil, ErrInvalidRole
	}
	m, err := s.memberships.GetByID(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if err := s.requirePermission(ctx, actor, m.PracticeID, PermManageStaff); err != nil {
		return nil, err
	}

	if m.Role == StaffAdmin && newRole != StaffAdmin && m.Status == MembershipActive {
		admins, err := s.memberships.CountActiveAdmins(ctx, m.PracticeID)
		if err != nil {
			return nil, err
		}
		if admins <= 1 {
			return nil, ErrLastAdmin
		}
	}

	m.Role = newRole
	if err := s.memberships.Update(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// RemoveStaffMember soft-deletes a membership. Removing the last active
// admin is rejected for the same reason as demotion.
func (s *Service) RemoveStaffMember(ctx context.Context, actor, staffID uuid.UUID) error {
	m, err := s.memberships.GetByID(ctx, staffID)
	if err != nil {
		return err
	}
	if err := s.requirePermission(ctx, actor, m.PracticeID, PermManageStaff); err != nil {
		return err
	}
	if m.Status != MembershipActive {
		return nil
	}

	if m.Role == StaffAdmin {
		admins, err := s.memberships.CountActiveAdmins(ctx, m.PracticeID)
		if err != nil {
			return err
		}
		if admins <= 1 {
			return ErrLastAdmin
		}
	}

	m.Status = MembershipInactive
	return s.memberships.Update(ctx, m)
}

// ListStaff returns all memberships of a practice. The actor must hold an
// active membership there.
func (s *Service) ListStaff(ctx context.Context, actor, practiceID uuid.UUID) ([]*StaffMembership, error) {
	if _, err := s.memberships.GetActive(ctx, actor, practiceID); err != nil {
		if errors.Is(err, ErrMembershipNotFound) {
			return nil, ErrPermissionDenied
		}
		return nil, err
	}
	return s.memberships.ListByPractice(ctx, practiceID)
}

// GetActiveMembership exposes the authoritative membership row for a pair.
func (s *Service) GetActiveMembership(ctx context.Context, principalID, practiceID uuid.UUID) (*StaffMembership, error) {
	return s.memberships.GetActive(ctx, principalID, practiceID)
}

// ListMemberships returns the principal's active memberships across all
// practices.
func (s *Service) ListMemberships(ctx context.Context, principalID uuid.UUID) ([]*StaffMembership, error) {
	return s.memberships.ListActiveByPrincipal(ctx, principalID)
}

// -- Onboarding --

// NeedsPracticeSetup is derived, never stored: true iff the principal is a
// doctor with no active membership anywhere. Recomputed on every call so it
// cannot drift after staff mutations.
func (s *Service) NeedsPracticeSetup(ctx context.Context, principalID uuid.UUID) (bool, error) {
	p, err := s.dir.Resolve(ctx, principalID)
	if err != nil {
		return false, err
	}
	if p.Role != directory.RoleDoctor {
		return false, nil
	}
	memberships, err := s.memberships.ListActiveByPrincipal(ctx, principalID)
	if err != nil {
		return false, err
	}
	return len(memberships) == 0, nil
}

// OnboardingInput carries the fields submitted with the onboarding choice.
type OnboardingInput struct {
	Choice OnboardingChoice `json:"choice"`

	// Practice fields, used by the owner path.
	PracticeName    string  `json:"practice_name"`
	PracticeAddress *string `json:"practice_address,omitempty"`
	PracticePhone   *string `json:"practice_phone,omitempty"`
	PracticeEmail   *string `json:"practice_email,omitempty"`

	// Professional fields, applied to the doctor record if it is created.
	Specialty     *string `json:"specialty,omitempty"`
	LicenseNumber *string `json:"license_number,omitempty"`
}

// CompleteOnboarding executes a doctor's one-shot onboarding choice.
//
// The owner path creates the practice, the doctor record, and the admin
// membership with the full permission set in one transaction, so a partial
// failure can never leave a practice without an admin. The employee path
// only ensures the doctor record; the doctor stays unaffiliated until an
// admin adds them.
func (s *Service) CompleteOnboarding(ctx context.Context, principalID uuid.UUID, in OnboardingInput) (*Practice, error) {
	p, err := s.dir.Resolve(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if p.Role != directory.RoleDoctor {
		return nil, ErrNotDoctor
	}

	existing, err := s.memberships.ListActiveByPrincipal(ctx, principalID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, ErrOnboardingComplete
	}

	switch in.Choice {
	case ChoiceOwner:
		if strings.TrimSpace(in.PracticeName) == "" {
			return nil, ErrNameRequired
		}
		created := &Practice{
			Name:    strings.TrimSpace(in.PracticeName),
			Address: in.PracticeAddress,
			Phone:   in.PracticePhone,
			Email:   in.PracticeEmail,
		}
		err := s.withTx(ctx, func(ctx context.Context) error {
			if err := s.practices.Create(ctx, created); err != nil {
				return err
			}
			if _, err := s.dir.EnsureDoctorRecord(ctx, principalID, in.Specialty, in.LicenseNumber); err != nil {
				return err
			}
			return s.memberships.Create(ctx, &StaffMembership{
				PrincipalID: principalID,
				PracticeID:  created.ID,
				Role:        StaffAdmin,
				Permissions: FullPermissionSet(),
				Status:      MembershipActive,
			})
		})
		if err != nil {
			return nil, err
		}
		return created, nil

	case ChoiceEmployee:
		if _, err := s.dir.EnsureDoctorRecord(ctx, principalID, in.Specialty, in.LicenseNumber); err != nil {
			return nil, err
		}
		return nil, nil

	default:
		return nil, errors.New("choice must be owner or employee")
	}
}
