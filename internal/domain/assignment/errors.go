package assignment

import "errors"

var (
	ErrAssignmentNotFound = errors.New("patient assignment not found")
	ErrRequestNotFound    = errors.New("request not found")

	// ErrAlreadyAssigned means an active assignment already exists for the
	// (patient, practice) pair.
	ErrAlreadyAssigned = errors.New("patient already assigned to practice")

	// ErrRequestPending means a pending request already exists for the
	// (patient, practice) pair.
	ErrRequestPending = errors.New("request already pending for patient")

	// ErrRequestClosed means the request was already accepted or rejected.
	ErrRequestClosed = errors.New("request already reviewed")

	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotPatient means the looked-up principal exists but is not a
	// patient.
	ErrNotPatient = errors.New("principal is not a patient")

	// ErrPatientRecordMissing means the patient principal exists but has no
	// clinical record yet.
	ErrPatientRecordMissing = errors.New("patient record missing for principal")
)
