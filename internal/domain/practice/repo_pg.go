package practice

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

// -- Practice Repository --

type practiceRepoPG struct {
	pool *pgxpool.Pool
}

func NewPracticeRepo(pool *pgxpool.Pool) PracticeRepository {
	return &practiceRepoPG{pool: pool}
}

func (r *practiceRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const practiceCols = `id, name, address, phone, email, created_at, updated_at`

func (r *practiceRepoPG) Create(ctx context.Context, p *Practice) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO practice (id, name, address, phone, email)
		VALUES ($1,$2,$3,$4,$5)`,
		p.ID, p.Name, p.Address, p.Phone, p.Email,
	)
	return err
}

func (r *practiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Practice, error) {
	p, err := scanPractice(r.conn(ctx).QueryRow(ctx,
		`SELECT `+practiceCols+` FROM practice WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPracticeNotFound
	}
	return p, err
}

func (r *practiceRepoPG) Update(ctx context.Context, p *Practice) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE practice SET name=$2, address=$3, phone=$4, email=$5, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.Address, p.Phone, p.Email,
	)
	return err
}

func (r *practiceRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM practice WHERE id = $1`, id)
	return err
}

func (r *practiceRepoPG) List(ctx context.Context, limit, offset int) ([]*Practice, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM practice`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+practiceCols+` FROM practice ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var practices []*Practice
	for rows.Next() {
		var p Practice
		if err := rows.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		practices = append(practices, &p)
	}
	return practices, total, rows.Err()
}

func scanPractice(row pgx.Row) (*Practice, error) {
	var p Practice
	err := row.Scan(&p.ID, &p.Name, &p.Address, &p.Phone, &p.Email, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// -- Membership Repository --

type membershipRepoPG struct {
	pool *pgxpool.Pool
}

func NewMembershipRepo(pool *pgxpool.Pool) MembershipRepository {
	return &membershipRepoPG{pool: pool}
}

func (r *membershipRepoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const membershipCols = `id, principal_id, practice_id, role, department, permissions, status, created_at, updated_at`

func (r *membershipRepoPG) Create(ctx context.Context, m *StaffMembership) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.Status == "" {
		m.Status = MembershipActive
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO staff_membership (id, principal_id, practice_id, role, department, permissions, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.PrincipalID, m.PracticeID, m.Role, m.Department, permissionStrings(m.Permissions), m.Status,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateMembership
	}
	return err
}

func (r *membershipRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*StaffMembership, error) {
	m, err := scanMembership(r.conn(ctx).QueryRow(ctx,
		`SELECT `+membershipCols+` FROM staff_membership WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	return m, err
}

func (r *membershipRepoPG) GetActive(ctx context.Context, principalID, practiceID uuid.UUID) (*StaffMembership, error) {
	m, err := scanMembership(r.conn(ctx).QueryRow(ctx, `
		SELECT `+membershipCols+` FROM staff_membership
		WHERE principal_id = $1 AND practice_id = $2 AND status = 'active'`,
		principalID, practiceID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrMembershipNotFound
	}
	return m, err
}

func (r *membershipRepoPG) ListActiveByPrincipal(ctx context.Context, principalID uuid.UUID) ([]*StaffMembership, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+membershipCols+` FROM staff_membership
		WHERE principal_id = $1 AND status = 'active' ORDER BY created_at`,
		principalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (r *membershipRepoPG) ListByPractice(ctx context.Context, practiceID uuid.UUID) ([]*StaffMembership, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+membershipCols+` FROM staff_membership
		WHERE practice_id = $1 ORDER BY created_at`,
		practiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMemberships(rows)
}

func (r *membershipRepoPG) Update(ctx context.Context, m *StaffMembership) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE staff_membership SET role=$2, department=$3, permissions=$4, status=$5, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Role, m.Department, permissionStrings(m.Permissions), m.Status,
	)
	return err
}

func (r *membershipRepoPG) CountActiveAdmins(ctx context.Context, practiceID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM staff_membership
		WHERE practice_id = $1 AND role = 'admin' AND status = 'active'`,
		practiceID).Scan(&n)
	return n, err
}

func (r *membershipRepoPG) DeleteByPractice(ctx context.Context, practiceID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM staff_membership WHERE practice_id = $1`, practiceID)
	return err
}

func scanMembership(row pgx.Row) (*StaffMembership, error) {
	var m StaffMembership
	var perms []string
	err := row.Scan(&m.ID, &m.PrincipalID, &m.PracticeID, &m.Role, &m.Department, &perms, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.Permissions = permissionsFromStrings(perms)
	return &m, nil
}

func collectMemberships(rows pgx.Rows) ([]*StaffMembership, error) {
	var memberships []*StaffMembership
	for rows.Next() {
		var m StaffMembership
		var perms []string
		if err := rows.Scan(&m.ID, &m.PrincipalID, &m.PracticeID, &m.Role, &m.Department, &perms, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		m.Permissions = permissionsFromStrings(perms)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

func permissionStrings(perms []Permission) []string {
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

func permissionsFromStrings(perms []string) []Permission {
	out := make([]Permission, len(perms))
	for i, p := range perms {
		out[i] = Permission(p)
	}
	return out
}
