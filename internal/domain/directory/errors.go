package directory

import "errors"

var (
	// ErrPrincipalNotFound means no directory record exists for an otherwise
	// authenticated principal. Callers must treat this as a partially
	// completed registration, not as an authentication failure.
	ErrPrincipalNotFound = errors.New("principal not found")

	ErrDoctorRecordNotFound  = errors.New("doctor record not found")
	ErrPatientRecordNotFound = errors.New("patient record not found")

	ErrEmailTaken    = errors.New("email already registered")
	ErrInvalidRole   = errors.New("invalid role")
	ErrInvalidStatus = errors.New("invalid availability status")
)
