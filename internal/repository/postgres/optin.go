package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

// Create inserts the opt-in row. The unique index on (donor_id, request_id)
// is the final arbiter under concurrency: a race past the application-level
// existence check surfaces here as ErrDuplicate, never as a generic failure.
func (r *optInRepository) Create(ctx context.Context, optIn *model.OptIn) error {
	query := `
		INSERT INTO opt_ins (id, donor_id, request_id, created_at)
		VALUES ($1, $2, $3, $4)
	`
	optIn.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		optIn.ID,
		optIn.DonorID,
		optIn.RequestID,
		optIn.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("failed to create opt-in: %w", err)
	}
	return nil
}

func (r *optInRepository) Exists(ctx context.Context, donorID, requestID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM opt_ins
			WHERE donor_id = $1 AND request_id = $2
		)
	`
	var exists bool
	err := r.db.GetContext(ctx, &exists, query, donorID, requestID)
	if err != nil {
		return false, fmt.Errorf("failed to check opt-in existence: %w", err)
	}
	return exists, nil
}

// ListByRequest returns the candidate pool in insertion order; no entrant is
// privileged, the admin chooses.
func (r *optInRepository) ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*model.OptedInDonor, error) {
	query := `
		SELECT o.id AS optin_id,
			   o.donor_id,
			   d.user_id AS donor_user_id,
			   u.name,
			   d.blood_group,
			   o.created_at AS opted_in_at
		FROM opt_ins o
		JOIN donors d ON d.id = o.donor_id
		JOIN users u ON u.id = d.user_id
		WHERE o.request_id = $1
		ORDER BY o.created_at ASC
	`
	var donors []*model.OptedInDonor
	err := r.db.SelectContext(ctx, &donors, query, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opted-in donors: %w", err)
	}
	return donors, nil
}

func (r *optInRepository) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.OptIn, error) {
	query := `
		SELECT id, donor_id, request_id, created_at
		FROM opt_ins
		WHERE donor_id = $1
		ORDER BY created_at DESC
	`
	var optIns []*model.OptIn
	err := r.db.SelectContext(ctx, &optIns, query, donorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list opt-ins: %w", err)
	}
	return optIns, nil
}
