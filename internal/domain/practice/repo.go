package practice

import (
	"context"

	"github.com/google/uuid"
)

type PracticeRepository interface {
	Create(ctx context.Context, p *Practice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Practice, error)
	Update(ctx context.Context, p *Practice) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*Practice, int, error)
}

type MembershipRepository interface {
	Create(ctx context.Context, m *StaffMembership) error
	GetByID(ctx context.Context, id uuid.UUID) (*StaffMembership, error)
	// GetActive returns the single active membership for the pair, or
	// ErrMembershipNotFound.
	GetActive(ctx context.Context, principalID, practiceID uuid.UUID) (*StaffMembership, error)
	ListActiveByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*StaffMembership, error)
	ListByPractice(ctx context.Context, practiceID uuid.UUID) ([]*StaffMembership, error)
	Update(ctx context.Context, m *StaffMembership) error
	CountActiveAdmins(ctx context.Context, practiceID uuid.UUID) (int, error)
	DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error
}
