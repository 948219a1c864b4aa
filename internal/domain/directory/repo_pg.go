package directory

import (
	"context"
	"errors"

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

// -- Principal Repository --

type principalRepoPG struct {
	pool *pgxpool.Pool
}

func NewPrincipalRepo(pool *pgxpool.Pool) PrincipalRepository {
	return &principalRepoPG{pool: pool}
}

func (r *principalRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const principalCols = `id, email, role, first_name, last_name, phone, created_at, updated_at`

func (r *principalRepoPG) Create(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO principal (id, email, role, first_name, last_name, phone)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Email, p.Role, p.FirstName, p.LastName, p.Phone,
	)
	if isUniqueViolation(err) {
		return ErrEmailTaken
	}
	return err
}

func (r *principalRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	p, err := scanPrincipal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+principalCols+` FROM principal WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	return p, err
}

func (r *principalRepoPG) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	p, err := scanPrincipal(r.conn(ctx).QueryRow(ctx,
		`SELECT `+principalCols+` FROM principal WHERE email = $1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrincipalNotFound
	}
	return p, err
}

func (r *principalRepoPG) Update(ctx context.Context, p *Principal) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE principal SET first_name=$2, last_name=$3, phone=$4, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Phone,
	)
	return err
}

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	err := row.Scan(&p.ID, &p.Email, &p.Role, &p.FirstName, &p.LastName, &p.Phone, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Doctor Repository --

type doctorRepoPG struct {
	pool *pgxpool.Pool
}

func NewDoctorRepo(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const doctorCols = `id, principal_id, specialty, license_number, availability_status, created_at, updated_at`

func (r *doctorRepoPG) Create(ctx context.Context, d *DoctorRecord) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.AvailabilityStatus == "" {
		d.AvailabilityStatus = AvailabilityActive
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctor_record (id, principal_id, specialty, license_number, availability_status)
		VALUES ($1,$2,$3,$4,$5)`,
		d.ID, d.PrincipalID, d.Specialty, d.LicenseNumber, d.AvailabilityStatus,
	)
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*DoctorRecord, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorRecordNotFound
	}
	return d, err
}

func (r *doctorRepoPG) GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*DoctorRecord, error) {
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctor_record WHERE principal_id = $1`, principalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorRecordNotFound
	}
	return d, err
}

func (r *doctorRepoPG) UpdateAvailability(ctx context.Context, id uuid.UUID, status AvailabilityStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_record SET availability_status=$2, updated_at=NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDoctorRecordNotFound
	}
	return nil
}

func (r *doctorRepoPG) Update(ctx context.Context, d *DoctorRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE doctor_record SET specialty=$2, license_number=$3, updated_at=NOW()
		WHERE id = $1`,
		d.ID, d.Specialty, d.LicenseNumber,
	)
	return err
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*DoctorRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM doctor_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+doctorCols+` FROM doctor_record ORDER BY created_at LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var doctors []*DoctorRecord
	for rows.Next() {
		d, err := scanDoctorRows(rows)
		if err != nil {
			return nil, 0, err
		}
		doctors = append(doctors, d)
	}
	return doctors, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*DoctorRecord, error) {
	var d DoctorRecord
	err := row.Scan(&d.ID, &d.PrincipalID, &d.Specialty, &d.LicenseNumber, &d.AvailabilityStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func scanDoctorRows(rows pgx.Rows) (*DoctorRecord, error) {
	var d DoctorRecord
	err := rows.Scan(&d.ID, &d.PrincipalID, &d.Specialty, &d.LicenseNumber, &d.AvailabilityStatus, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// -- Patient Repository --

type patientRepoPG struct {
	pool *pgxpool.Pool
}

func NewPatientRepo(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, principal_id, first_name, last_name, email, phone, birth_date, medical_notes, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *PatientRecord) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patient_record (id, principal_id, first_name, last_name, email, phone, birth_date, medical_notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		p.ID, p.PrincipalID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.MedicalNotes,
	)
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*PatientRecord, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient_record WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientRecordNotFound
	}
	return p, err
}

func (r *patientRepoPG) GetByPrincipal(ctx context.Context, principalID uuid.UUID) (*PatientRecord, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patient_record WHERE principal_id = $1`, principalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPatientRecordNotFound
	}
	return p, err
}

func (r *patientRepoPG) Update(ctx context.Context, p *PatientRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE patient_record SET first_name=$2, last_name=$3, email=$4, phone=$5,
			birth_date=$6, medical_notes=$7, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.BirthDate, p.MedicalNotes,
	)
	return err
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*PatientRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM patient_record`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+patientCols+` FROM patient_record ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var patients []*PatientRecord
	for rows.Next() {
		p, err := scanPatientRows(rows)
		if err != nil {
			return nil, 0, err
		}
		patients = append(patients, p)
	}
	return patients, total, rows.Err()
}

func scanPatient(row pgx.Row) (*PatientRecord, error) {
	var p PatientRecord
	err := row.Scan(&p.ID, &p.PrincipalID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.BirthDate, &p.MedicalNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatientRows(rows pgx.Rows) (*PatientRecord, error) {
	var p PatientRecord
	err := rows.Scan(&p.ID, &p.PrincipalID, &p.FirstName, &p.LastName, &p.Email, &p.Phone,
		&p.BirthDate, &p.MedicalNotes, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
