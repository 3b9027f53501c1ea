package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"parcelhub/models"
)

type PostgresLogisticsRepo struct {
	DB *sql.DB
}

var _ LogisticsRepository = (*PostgresLogisticsRepo)(nil)

func NewPostgresLogisticsRepo(db *sql.DB) *PostgresLogisticsRepo {
	return &PostgresLogisticsRepo{DB: db}
}

func agencyArg(a *models.AgencyRef) *string {
	if a.IsZero() {
		return nil
	}
	return &a.ID
}

func agencyRef(id sql.NullString, name string) *models.AgencyRef {
	if !id.Valid {
		return nil
	}
	return &models.AgencyRef{ID: id.String, Name: name}
}

func (r *PostgresLogisticsRepo) GetPull(ctx context.Context, id string) (*models.Pull, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	var (
		pull                     models.Pull
		batchID, agencyID, guide sql.NullString
		agencyName               string
		updatedAt                sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT pl.id, pl.common_destiny, pl.size, pl.batch_id, pl.transport_agency_id,
		       COALESCE(a.name, ''), pl.guide_number, pl.created_at, pl.updated_at,
		       (SELECT COUNT(*) FROM package p WHERE p.pull_id = pl.id)
		FROM pull pl
		LEFT JOIN transport_agency a ON a.id = pl.transport_agency_id
		WHERE pl.id = $1
	`, id).Scan(
		&pull.ID, &pull.CommonDestiny, &pull.Size, &batchID, &agencyID,
		&agencyName, &guide, &pull.CreatedAt, &updatedAt, &pull.PackageCount,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	pull.BatchID = nullString(batchID)
	pull.GuideNumber = nullString(guide)
	pull.TransportAgency = agencyRef(agencyID, agencyName)
	if updatedAt.Valid {
		pull.UpdatedAt = &updatedAt.Time
	}
	return &pull, nil
}

func (r *PostgresLogisticsRepo) GetBatch(ctx context.Context, id string) (*models.Batch, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}

	var (
		b               models.Batch
		agencyID, guide sql.NullString
		agencyName      string
		updatedAt       sql.NullTime
	)
	err := r.DB.QueryRowContext(ctx, `
		SELECT b.id, b.destiny, b.transport_agency_id, COALESCE(a.name, ''),
		       b.guide_number, b.created_at, b.updated_at
		FROM batch b
		LEFT JOIN transport_agency a ON a.id = b.transport_agency_id
		WHERE b.id = $1
	`, id).Scan(&b.ID, &b.Destiny, &agencyID, &agencyName, &guide, &b.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	b.GuideNumber = nullString(guide)
	b.TransportAgency = agencyRef(agencyID, agencyName)
	if updatedAt.Valid {
		b.UpdatedAt = &updatedAt.Time
	}
	return &b, nil
}

func (r *PostgresLogisticsRepo) GetAgency(ctx context.Context, id string) (*models.TransportAgency, error) {
	if uuid.Validate(id) != nil {
		return nil, nil
	}
	var a models.TransportAgency
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, phone_number, email, active, created_at
		FROM transport_agency WHERE id = $1
	`, id).Scan(&a.ID, &a.Name, &a.PhoneNumber, &a.Email, &a.Active, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresLogisticsRepo) ListAgencies(ctx context.Context) ([]*models.TransportAgency, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, name, phone_number, email, active, created_at
		FROM transport_agency ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*models.TransportAgency{}
	for rows.Next() {
		var a models.TransportAgency
		if err := rows.Scan(&a.ID, &a.Name, &a.PhoneNumber, &a.Email, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (r *PostgresLogisticsRepo) CreateAgency(ctx context.Context, a *models.TransportAgency) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO transport_agency(id, name, phone_number, email, active, created_at)
		VALUES($1,$2,$3,$4,$5,$6)
	`, a.ID, a.Name, a.PhoneNumber, a.Email, a.Active, a.CreatedAt)
	return err
}

func (r *PostgresLogisticsRepo) CreatePull(ctx context.Context, pull *models.Pull) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertPull(ctx, tx, pull); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresLogisticsRepo) BulkSetPackagePull(ctx context.Context, pullID string, packageIDs []string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	if uuid.Validate(pullID) == nil {
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM pull WHERE id = $1)`, pullID).Scan(&exists); err != nil {
			return err
		}
	}
	if !exists {
		return fmt.Errorf("pull %s: %w", pullID, ErrNotFound)
	}

	if err := bagPackages(ctx, tx, pullID, packageIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *PostgresLogisticsRepo) CreateBatchWithPulls(ctx context.Context, batch *models.Batch, drafts []models.PullDraft) ([]*models.Pull, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO batch(id, destiny, transport_agency_id, guide_number, created_at)
		VALUES($1,$2,$3,$4,$5)
	`, batch.ID, batch.Destiny, agencyArg(batch.TransportAgency), batch.GuideNumber, batch.CreatedAt); err != nil {
		return nil, err
	}

	pulls := make([]*models.Pull, 0, len(drafts))
	for _, d := range drafts {
		batchID := batch.ID
		pull := &models.Pull{CommonDestiny: batch.Destiny, Size: d.Size, BatchID: &batchID}
		if err := insertPull(ctx, tx, pull); err != nil {
			return nil, err
		}
		if err := bagPackages(ctx, tx, pull.ID, d.PackageIDs); err != nil {
			return nil, err
		}
		pull.PackageCount = len(d.PackageIDs)
		pulls = append(pulls, pull)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return pulls, nil
}

func insertPull(ctx context.Context, tx *sql.Tx, pull *models.Pull) error {
	if !pull.Size.Valid() {
		return fmt.Errorf("invalid pull size %q", pull.Size)
	}
	if pull.ID == "" {
		pull.ID = uuid.NewString()
	}
	if pull.CreatedAt.IsZero() {
		pull.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pull(id, common_destiny, size, batch_id, transport_agency_id, guide_number, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7)
	`, pull.ID, pull.CommonDestiny, string(pull.Size), pull.BatchID,
		agencyArg(pull.TransportAgency), pull.GuideNumber, pull.CreatedAt)
	return err
}

// bagPackages locks the packages, refuses missing or already bagged ones and
// points the rest at pullID.
func bagPackages(ctx context.Context, tx *sql.Tx, pullID string, ids []string) error {
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return nil
	}
	valid := validUUIDs(ids)
	if len(valid) != len(ids) {
		return fmt.Errorf("package ids: %w", ErrNotFound)
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, guide_number, pull_id FROM package
		WHERE id = ANY($1::uuid[])
		FOR UPDATE
	`, pq.Array(valid))
	if err != nil {
		return err
	}
	found := 0
	for rows.Next() {
		var id, guide string
		var current sql.NullString
		if err := rows.Scan(&id, &guide, &current); err != nil {
			rows.Close()
			return err
		}
		if current.Valid {
			rows.Close()
			return fmt.Errorf("package %s: %w", guide, ErrPackageInPull)
		}
		found++
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	if found != len(valid) {
		return fmt.Errorf("%d of %d packages: %w", len(valid)-found, len(valid), ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE package SET pull_id = $1, updated_at = $2
		WHERE id = ANY($3::uuid[])
	`, pullID, time.Now().UTC(), pq.Array(valid))
	return err
}
