package practice

import "errors"

var (
	ErrPracticeNotFound   = errors.New("practice not found")
	ErrMembershipNotFound = errors.New("staff membership not found")

	// ErrPermissionDenied means the acting principal holds no active
	// membership granting the attempted action on the practice.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDuplicateMembership means an active membership already exists for
	// the (principal, practice) pair.
	ErrDuplicateMembership = errors.New("active membership already exists")

	// ErrLastAdmin means the operation would leave the practice with no
	// active admin membership.
	ErrLastAdmin = errors.New("practice must retain at least one active admin")

	// ErrOnboardingComplete means the doctor already holds an active
	// membership and the onboarding choice cannot be replayed.
	ErrOnboardingComplete = errors.New("onboarding already complete")

	ErrNotDoctor    = errors.New("principal is not a doctor")
	ErrNameRequired = errors.New("practice name is required")
	ErrInvalidRole  = errors.New("invalid staff role")
)
