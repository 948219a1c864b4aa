package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medpractice/portal/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// -- Assignment Repository --

type assignmentRepoPG struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepo(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pool: pool}
}

func (r *assignmentRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const assignmentCols = `id, patient_id, practice_id, assigned_by, assigned_date, status, created_at, updated_at`

func (r *assignmentRepoPG) Create(ctx context.Context, a *PatientAssignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Status == "" {
		a.Status = AssignmentActive
	}
	// The partial unique index on (patient_id, practice_id) WHERE
	// status='active' is the sole concurrency control: the losing writer of
	// a race gets a conflict, never a silent overwrite.
	if a.AssignedDate.IsZero() {
		a.AssignedDate = time.Now()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_assignment (id, patient_id, practice_id, assigned_by, assigned_date, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		a.ID, a.PatientID, a.PracticeID, a.AssignedBy, a.AssignedDate, a.Status,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyAssigned
	}
	return err
}

func (r *assignmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientAssignment, error) {
	a, err := scanAssignment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+assignmentCols+` FROM patient_assignment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	return a, err
}

func (r *assignmentRepoPG) GetActive(ctx context.Context, patientID, practiceID uuid.UUID) (*PatientAssignment, error) {
	a, err := scanAssignment(r.conn(ctx).QueryRow(ctx, `
		SELECT `+assignmentCols+` FROM patient_assignment
		WHERE patient_id = $1 AND practice_id = $2 AND status = 'active'`,
		patientID, practiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrAssignmentNotFound
	}
	return a, err
}

func (r *assignmentRepoPG) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit, offset int) ([]*PatientAssignment, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM patient_assignment WHERE practice_id = $1`, practiceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignmentCols+` FROM patient_assignment
		WHERE practice_id = $1 ORDER BY assigned_date DESC LIMIT $2 OFFSET $3`,
		practiceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	assignments, err := collectAssignments(rows)
	return assignments, total, err
}

func (r *assignmentRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PatientAssignment, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignmentCols+` FROM patient_assignment
		WHERE patient_id = $1 ORDER BY assigned_date DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAssignments(rows)
}

func (r *assignmentRepoPG) Update(ctx context.Context, a *PatientAssignment) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_assignment SET status=$2, updated_at=NOW() WHERE id = $1`,
		a.ID, a.Status,
	)
	return err
}

func (r *assignmentRepoPG) DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM patient_assignment WHERE practice_id = $1`, practiceID)
	return err
}

func scanAssignment(row pgx.Row) (*PatientAssignment, error) {
	var a PatientAssignment
	err := row.Scan(&a.ID, &a.PatientID, &a.PracticeID, &a.AssignedBy, &a.AssignedDate, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func collectAssignments(rows pgx.Rows) ([]*PatientAssignment, error) {
	var assignments []*PatientAssignment
	for rows.Next() {
		var a PatientAssignment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.PracticeID, &a.AssignedBy, &a.AssignedDate, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		assignments = append(assignments, &a)
	}
	return assignments, rows.Err()
}

// -- Request Repository --

type requestRepoPG struct {
	pool *pgxpool.Pool
}

func NewRequestRepo(pool *pgxpool.Pool) RequestRepository {
	return &requestRepoPG{pool: pool}
}

func (r *requestRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const requestCols = `id, practice_id, patient_id, requested_by, message, status, created_at, reviewed_at`

func (r *requestRepoPG) Create(ctx context.Context, req *PhysicianPatientRequest) error {
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	if req.Status == "" {
		req.Status = RequestPending
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO physician_patient_request (id, practice_id, patient_id, requested_by, message, status)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		req.ID, req.PracticeID, req.PatientID, req.RequestedBy, req.Message, req.Status,
	)
	// The partial unique index on pending (patient, practice) pairs decides
	// races between concurrent creates; the loser lands here.
	if isUniqueViolation(err) {
		return ErrRequestPending
	}
	return err
}

func (r *requestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PhysicianPatientRequest, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestCols+` FROM physician_patient_request WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestNotFound
	}
	return req, err
}

func (r *requestRepoPG) ListByPractice(ctx context.Context, practiceID uuid.UUID, limit, offset int) ([]*PhysicianPatientRequest, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM physician_patient_request WHERE practice_id = $1`, practiceID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM physician_patient_request
		WHERE practice_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		practiceID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	requests, err := collectRequests(rows)
	return requests, total, err
}

func (r *requestRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*PhysicianPatientRequest, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+requestCols+` FROM physician_patient_request
		WHERE patient_id = $1 ORDER BY created_at DESC`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (r *requestRepoPG) Update(ctx context.Context, req *PhysicianPatientRequest) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE physician_patient_request SET status=$2, reviewed_at=$3 WHERE id = $1`,
		req.ID, req.Status, req.ReviewedAt,
	)
	return err
}

func (r *requestRepoPG) DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM physician_patient_request WHERE practice_id = $1`, practiceID)
	return err
}

func scanRequest(row pgx.Row) (*PhysicianPatientRequest, error) {
	var req PhysicianPatientRequest
	err := row.Scan(&req.ID, &req.PracticeID, &req.PatientID, &req.RequestedBy, &req.Message, &req.Status, &req.CreatedAt, &req.ReviewedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func collectRequests(rows pgx.Rows) ([]*PhysicianPatientRequest, error) {
	var requests []*PhysicianPatientRequest
	for rows.Next() {
		var req PhysicianPatientRequest
		if err := rows.Scan(&req.ID, &req.PracticeID, &req.PatientID, &req.RequestedBy, &req.Message, &req.Status, &req.CreatedAt, &req.ReviewedAt); err != nil {
			return nil, err
		}
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}
