package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"parcelhub/hierarchy"
	"parcelhub/models"
)

// hierarchyLockKey serializes parent edits so two concurrent updates cannot
// close a cycle that neither of them sees on its own.
const hierarchyLockKey = 7_340_001

const packageColumns = `
	p.id, p.guide_number, p.nro_master, p.name, p.address, p.city, p.province,
	p.phone_number, p.notes, p.hashtags, p.status, p.parent_id, p.pull_id,
	p.destiny, p.transport_agency_id, COALESCE(a.name, ''), p.agency_guide_number,
	p.created_at, p.updated_at
`

const packageFrom = `
	FROM package p
	LEFT JOIN transport_agency a ON a.id = p.transport_agency_id
`

type PostgresPackageRepo struct {
	DB *sql.DB
}

var _ PackageRepository = (*PostgresPackageRepo)(nil)

func NewPostgresPackageRepo(db *sql.DB) *PostgresPackageRepo {
	return &PostgresPackageRepo{DB: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPackage(row rowScanner) (*models.Package, error) {
	var (
		p                         models.Package
		parentID, pullID, destiny sql.NullString
		agencyID, agencyGuide     sql.NullString
		agencyName                string
		updatedAt                 sql.NullTime
	)
	err := row.Scan(
		&p.ID, &p.GuideNumber, &p.NroMaster, &p.Name, &p.Address, &p.City, &p.Province,
		&p.PhoneNumber, &p.Notes, &p.Hashtags, &p.Status, &parentID, &pullID,
		&destiny, &agencyID, &agencyName, &agencyGuide,
		&p.CreatedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ParentID = nullString(parentID)
	p.PullID = nullString(pullID)
	p.Destiny = nullString(destiny)
	p.AgencyGuideNumber = nullString(agencyGuide)
	if agencyID.Valid {
		p.TransportAgency = &models.AgencyRef{ID: agencyID.String, Name: agencyName}
	}
	if updatedAt.Valid {
		p.UpdatedAt = &updatedAt.Time
	}
	return &p, nil
}

func (r *PostgresPackageRepo) GetPackage(ctx context.Context, id string) (*models.Package, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	row := r.DB.QueryRowContext(ctx, `SELECT `+packageColumns+packageFrom+` WHERE p.id = $1`, id)
	p, err := scanPackage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return p, err
}

func (r *PostgresPackageRepo) GetPackagesByIDs(ctx context.Context, ids []string) ([]*models.Package, error) {
	valid := validUUIDs(ids)
	if len(valid) == 0 {
		return []*models.Package{}, nil
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+packageColumns+packageFrom+` WHERE p.id = ANY($1::uuid[])`, pq.Array(valid))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPackages(rows)
}

func (r *PostgresPackageRepo) ListPackages(ctx context.Context, filter models.PackageFilter) ([]*models.Package, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.ParentID != nil {
		add("p.parent_id::text = $%d", *filter.ParentID)
	}
	if filter.WithoutParent {
		where = append(where, "p.parent_id IS NULL")
	}
	if filter.WithoutPull {
		where = append(where, "p.pull_id IS NULL")
	}
	if filter.PullID != nil {
		add("p.pull_id::text = $%d", *filter.PullID)
	}
	if filter.Status != "" {
		add("p.status = $%d", string(filter.Status))
	}
	if len(filter.ExcludeIDs) > 0 {
		add("NOT (p.id::text = ANY($%d))", pq.Array(filter.ExcludeIDs))
	}

	query := `SELECT ` + packageColumns + packageFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.guide_number"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPackages(rows)
}

func (r *PostgresPackageRepo) CreatePackage(ctx context.Context, p *models.Package) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusNotReceived
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	return insertPackage(ctx, r.DB, p)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPackage(ctx context.Context, db execer, p *models.Package) error {
	var agencyID *string
	if !p.TransportAgency.IsZero() {
		agencyID = &p.TransportAgency.ID
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO package(
			id, guide_number, nro_master, name, address, city, province, phone_number,
			notes, hashtags, status, parent_id, pull_id, destiny, transport_agency_id,
			agency_guide_number, created_at
		)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		p.ID, p.GuideNumber, p.NroMaster, p.Name, p.Address, p.City, p.Province, p.PhoneNumber,
		p.Notes, p.Hashtags, string(p.Status), p.ParentID, p.PullID, p.Destiny, agencyID,
		p.AgencyGuideNumber, p.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return ErrDuplicateGuide
		case "foreign_key_violation":
			return fmt.Errorf("%s: %w", pqErr.Constraint, ErrNotFound)
		}
	}
	return err
}

// InsertParent runs under the same advisory lock as UpdatePackageParent.
func (r *PostgresPackageRepo) InsertParent(ctx context.Context, parent *models.Package, childID string) (*models.Package, error) {
	if uuid.Validate(childID) != nil {
		return nil, fmt.Errorf("package %s: %w", childID, ErrNotFound)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, hierarchyLockKey); err != nil {
		return nil, err
	}

	child, err := scanPackage(tx.QueryRowContext(ctx,
		`SELECT `+packageColumns+packageFrom+` WHERE p.id = $1 FOR UPDATE OF p`, childID))
	if err == sql.ErrNoRows {
		child, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkInsertParent(child, childID); err != nil {
		return nil, err
	}

	var hasChildren bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM package WHERE parent_id = $1)`, child.ID).Scan(&hasChildren); err != nil {
		return nil, err
	}
	if hasChildren {
		return nil, fmt.Errorf("package %s: %w", child.GuideNumber, ErrHasChildren)
	}

	now := time.Now().UTC()
	prepareParent(parent, now)
	if err := insertPackage(ctx, tx, parent); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE package SET parent_id = $1, updated_at = $2 WHERE id = $3`, parent.ID, now, child.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	pid := parent.ID
	child.ParentID = &pid
	child.UpdatedAt = &now
	return child, nil
}

func (r *PostgresPackageRepo) UpdatePackageParent(ctx context.Context, id string, parentID *string) (*models.Package, error) {
	if uuid.Validate(id) != nil {
		return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, hierarchyLockKey); err != nil {
		return nil, err
	}

	node, err := scanPackage(tx.QueryRowContext(ctx,
		`SELECT `+packageColumns+packageFrom+` WHERE p.id = $1 FOR UPDATE OF p`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	snap := hierarchy.NewSnapshot(node)
	var parent *models.Package
	if parentID != nil && *parentID != "" {
		if uuid.Validate(*parentID) != nil {
			return nil, fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
		}
		chain, err := loadAncestry(ctx, tx, *parentID)
		if err != nil {
			return nil, err
		}
		if len(chain) == 0 {
			return nil, fmt.Errorf("parent %s: %w", *parentID, ErrNotFound)
		}
		snap.Add(chain...)
		parent = chain[0]
	}
	if err := checkParentEdit(snap, node, parent); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var newParent *string
	if parent != nil {
		newParent = &parent.ID
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE package SET parent_id = $1, updated_at = $2 WHERE id = $3`, newParent, now, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	node.ParentID = newParent
	node.UpdatedAt = &now
	return node, nil
}

// loadAncestry returns id followed by its ancestors, id and parent only.
// UNION (not UNION ALL) stops the recursion on corrupt cyclic data.
func loadAncestry(ctx context.Context, tx *sql.Tx, id string) ([]*models.Package, error) {
	rows, err := tx.QueryContext(ctx, `
		WITH RECURSIVE chain(id, parent_id) AS (
			SELECT id, parent_id FROM package WHERE id = $1
			UNION
			SELECT p.id, p.parent_id FROM package p JOIN chain c ON p.id = c.parent_id
		)
		SELECT id, parent_id FROM chain
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var first *models.Package
	var rest []*models.Package
	for rows.Next() {
		var p models.Package
		var parent sql.NullString
		if err := rows.Scan(&p.ID, &parent); err != nil {
			return nil, err
		}
		p.ParentID = nullString(parent)
		if p.ID == id {
			first = &p
			continue
		}
		rest = append(rest, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if first == nil {
		return nil, nil
	}
	return append([]*models.Package{first}, rest...), nil
}

func (r *PostgresPackageRepo) GuideNumberExists(ctx context.Context, guide string) (bool, error) {
	var exists bool
	err := r.DB.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM package WHERE guide_number = $1)`, guide).Scan(&exists)
	return exists, err
}

func collectPackages(rows *sql.Rows) ([]*models.Package, error) {
	out := []*models.Package{}
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func validUUIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range uniqueIDs(ids) {
		if uuid.Validate(id) == nil {
			out = append(out, id)
		}
	}
	return out
}
