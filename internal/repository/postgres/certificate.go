package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

const certificateColumns = `
	id, donor_id, request_id, number, donation_date, blood_group, units,
	status, created_at, updated_at, deleted_at
`

func (r *certificateRepository) Create(ctx context.Context, cert *model.Certificate) error {
	query := `
		INSERT INTO certificates (
			id, donor_id, request_id, donation_date, blood_group, units,
			status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	cert.CreatedAt = time.Now()
	cert.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		cert.ID,
		cert.DonorID,
		cert.RequestID,
		cert.DonationDate,
		cert.BloodGroup,
		cert.Units,
		cert.Status,
		cert.CreatedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create certificate: %w", err)
	}
	return nil
}

func (r *certificateRepository) Get(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE id = $1 AND deleted_at IS NULL
	`
	var cert model.Certificate
	err := r.db.GetContext(ctx, &cert, query, id)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &cert, nil
}

func (r *certificateRepository) GetByDonorAndRequest(ctx context.Context, donorID, requestID uuid.UUID) (*model.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE donor_id = $1 AND request_id = $2 AND deleted_at IS NULL
	`
	var cert model.Certificate
	err := r.db.GetContext(ctx, &cert, query, donorID, requestID)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return &cert, nil
}

func (r *certificateRepository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE donor_id = $1 AND deleted_at IS NULL
		ORDER BY donation_date DESC
	`
	var certs []*model.Certificate
	err := r.db.SelectContext(ctx, &certs, query, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certs, nil
}

func (r *certificateRepository) ListByStatus(ctx context.Context, status model.CertificateStatus) ([]*model.Certificate, error) {
	query := `
		SELECT ` + certificateColumns + `
		FROM certificates
		WHERE status = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC
	`
	var certs []*model.Certificate
	err := r.db.SelectContext(ctx, &certs, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list certificates: %w", err)
	}
	return certs, nil
}

func (r *certificateRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CertificateStatus) error {
	query := `
		UPDATE certificates
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, to, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update certificate status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetGenerated stamps the number and advances approved->generated in a single
// conditional write; a concurrent duplicate generate finds zero rows instead
// of allocating a second number.
func (r *certificateRepository) SetGenerated(ctx context.Context, id uuid.UUID, number string) error {
	query := `
		UPDATE certificates
		SET status = $1, number = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.CertificateStatusGenerated, number, time.Now(), id, model.CertificateStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to mark certificate generated: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *certificateRepository) NextSerial(ctx context.Context) (int64, error) {
	var serial int64
	err := r.db.GetContext(ctx, &serial, `SELECT nextval('certificate_serial')`)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate certificate serial: %w", err)
	}
	return serial, nil
}
