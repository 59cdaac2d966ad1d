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

const bloodRequestColumns = `
	id, requester_id, blood_group, units, urgency, scheduled_at,
	hospital, location, notes, status, reject_reason,
	assigned_donor_id, assigned_at, proof_photo_ref,
	created_at, updated_at, deleted_at
`

func (r *bloodRequestRepository) Create(ctx context.Context, req *model.BloodRequest) error {
	query := `
		INSERT INTO blood_requests (
			id, requester_id, blood_group, units, urgency, scheduled_at,
			hospital, location, notes, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		req.ID,
		req.RequesterID,
		req.BloodGroup,
		req.Units,
		req.Urgency,
		req.ScheduledAt,
		req.Hospital,
		req.Location,
		req.Notes,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create blood request: %w", err)
	}
	return nil
}

func (r *bloodRequestRepository) Get(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	query := `
		SELECT ` + bloodRequestColumns + `
		FROM blood_requests
		WHERE id = $1 AND deleted_at IS NULL
	`
	var req model.BloodRequest
	err := r.db.GetContext(ctx, &req, query, id)
	if err == sql.ErrNoRows {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blood request: %w", err)
	}
	return &req, nil
}

func (r *bloodRequestRepository) List(ctx context.Context, filters *model.BloodRequestFilters, page *model.Pagination) ([]*model.BloodRequest, error) {
	query := `
		SELECT ` + bloodRequestColumns + `
		FROM blood_requests
		WHERE deleted_at IS NULL
	`
	args := []interface{}{}
	argCount := 1

	if filters != nil {
		if filters.Status != nil {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, *filters.Status)
			argCount++
		}
		if filters.Urgency != nil {
			query += fmt.Sprintf(" AND urgency = $%d", argCount)
			args = append(args, *filters.Urgency)
			argCount++
		}
		if filters.BloodGroup != nil {
			query += fmt.Sprintf(" AND blood_group = $%d", argCount)
			args = append(args, *filters.BloodGroup)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	if page != nil {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
		args = append(args, page.Limit(), page.Offset())
	}

	var requests []*model.BloodRequest
	err := r.db.SelectContext(ctx, &requests, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list blood requests: %w", err)
	}
	return requests, nil
}

func (r *bloodRequestRepository) ListOpenByGroup(ctx context.Context, group model.BloodGroup) ([]*model.BloodRequest, error) {
	query := `
		SELECT ` + bloodRequestColumns + `
		FROM blood_requests
		WHERE deleted_at IS NULL
		AND status = $1
		AND blood_group = $2
		AND scheduled_at > NOW()
		ORDER BY scheduled_at ASC
	`
	var requests []*model.BloodRequest
	err := r.db.SelectContext(ctx, &requests, query, model.RequestStatusApproved, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list open requests: %w", err)
	}
	return requests, nil
}

// UpdateStatus applies a guarded transition: the row is only written when its
// current status still equals the expected source status.
func (r *bloodRequestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, rejectReason *string) error {
	query := `
		UPDATE blood_requests
		SET status = $1, reject_reason = COALESCE($2, reject_reason), updated_at = $3
		WHERE id = $4 AND status = $5 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, to, rejectReason, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to update request status: %w", err)
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

func (r *bloodRequestRepository) SetAssignment(ctx context.Context, id uuid.UUID, donorID uuid.UUID, at time.Time) error {
	query := `
		UPDATE blood_requests
		SET assigned_donor_id = $1, assigned_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, donorID, at, time.Now(), id, model.RequestStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to set assignment: %w", err)
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

func (r *bloodRequestRepository) MarkDonated(ctx context.Context, id uuid.UUID, photoRef string) error {
	query := `
		UPDATE blood_requests
		SET status = $1, proof_photo_ref = $2, updated_at = $3
		WHERE id = $4 AND status = $5 AND assigned_donor_id IS NOT NULL AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, model.RequestStatusDonated, photoRef, time.Now(), id, model.RequestStatusApproved)
	if err != nil {
		return fmt.Errorf("failed to mark request donated: %w", err)
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

// SoftDelete preserves the row so opt-ins and certificates keep a resolvable
// reference.
func (r *bloodRequestRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE blood_requests
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete blood request: %w", err)
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
