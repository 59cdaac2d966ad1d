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

const donorColumns = `
	id, user_id, blood_group, available, last_donation_at,
	created_at, updated_at, deleted_at
`

func (r *donorRepository) Create(ctx context.Context, donor *model.Donor) error {
	query := `
		INSERT INTO donors (id, user_id, blood_group, available, last_donation_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	donor.CreatedAt = time.Now()
	donor.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		donor.ID,
		donor.UserID,
		donor.BloodGroup,
		donor.Available,
		donor.LastDonationAt,
		donor.CreatedAt,
		donor.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create donor: %w", err)
	}
	return nil
}

func (r *donorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	query := `
		SELECT ` + donorColumns + `
		FROM donors
		WHERE id = $1 AND deleted_at IS NULL
	`
	var donor model.Donor
	err := r.db.GetContext(ctx, &donor, query, id)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}
	return &donor, nil
}

func (r *donorRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	query := `
		SELECT ` + donorColumns + `
		FROM donors
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	var donor model.Donor
	err := r.db.GetContext(ctx, &donor, query, userID)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor by user: %w", err)
	}
	return &donor, nil
}

func (r *donorRepository) Update(ctx context.Context, donor *model.Donor) error {
	query := `
		UPDATE donors
		SET available = $1, last_donation_at = $2, updated_at = $3
		WHERE id = $4 AND deleted_at IS NULL
	`
	donor.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		donor.Available,
		donor.LastDonationAt,
		donor.UpdatedAt,
		donor.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update donor: %w", err)
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

func (r *donorRepository) SetLastDonation(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE donors
		SET last_donation_at = $1, updated_at = $2
		WHERE id = $3 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, at, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set last donation: %w", err)
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

func (r *donorRepository) ListAvailableByGroup(ctx context.Context, group model.BloodGroup) ([]*model.Donor, error) {
	query := `
		SELECT ` + donorColumns + `
		FROM donors
		WHERE blood_group = $1 AND available = TRUE AND deleted_at IS NULL
	`
	var donors []*model.Donor
	err := r.db.SelectContext(ctx, &donors, query, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list donors: %w", err)
	}
	return donors, nil
}
