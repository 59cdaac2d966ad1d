// Package donor manages donor profiles. Reads go through a short-lived
// in-process cache; eligibility decisions never do, they always hit the
// repository through the workflow services.
package donor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/lifeflow-api/internal/eligibility"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
)

const (
	cacheTTL     = 30 * time.Second
	cacheCleanup = 5 * time.Minute
)

// Eligibility is the donor-facing view of the cooldown state.
type Eligibility struct {
	Eligible       bool       `json:"eligible"`
	LastDonationAt *time.Time `json:"last_donation_at,omitempty"`
	NextEligibleAt *time.Time `json:"next_eligible_at,omitempty"`
}

type Service struct {
	donors repository.DonorRepository
	optIns repository.OptInRepository
	cache  *gocache.Cache
	logger *logger.Logger

	cooldownMonths int
	now            func() time.Time
}

func NewService(
	donors repository.DonorRepository,
	optIns repository.OptInRepository,
	logger *logger.Logger,
	cooldownMonths int,
) *Service {
	if cooldownMonths <= 0 {
		cooldownMonths = eligibility.DefaultCooldownMonths
	}
	return &Service{
		donors:         donors,
		optIns:         optIns,
		cache:          gocache.New(cacheTTL, cacheCleanup),
		logger:         logger,
		cooldownMonths: cooldownMonths,
		now:            time.Now,
	}
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Donor, error) {
	if cached, ok := s.cache.Get(id.String()); ok {
		return cached.(*model.Donor), nil
	}

	donor, err := s.donors.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}

	s.cache.Set(id.String(), donor, cacheTTL)
	return donor, nil
}

func (s *Service) GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error) {
	donor, err := s.donors.GetByUserID(ctx, userID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor by user: %w", err)
	}
	return donor, nil
}

// Update applies profile changes, currently the availability preference.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in *model.UpdateDonorRequest) (*model.Donor, error) {
	donor, err := s.donors.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}

	if in.Available != nil {
		donor.Available = *in.Available
	}

	if err := s.donors.Update(ctx, donor); err != nil {
		return nil, fmt.Errorf("failed to update donor: %w", err)
	}
	s.cache.Delete(id.String())

	s.logger.Info("donor profile updated",
		"donor_id", id.String(),
		"available", donor.Available)
	return donor, nil
}

// Eligibility reports whether the donor may donate now, and when they next
// can if not. Always computed from the repository record.
func (s *Service) Eligibility(ctx context.Context, id uuid.UUID) (*Eligibility, error) {
	donor, err := s.donors.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}

	now := s.now()
	result := &Eligibility{
		Eligible:       eligibility.CanDonate(donor.LastDonationAt, now, s.cooldownMonths),
		LastDonationAt: donor.LastDonationAt,
	}
	if !result.Eligible {
		next := eligibility.NextEligibleAt(donor.LastDonationAt, now, s.cooldownMonths)
		result.NextEligibleAt = &next
	}
	return result, nil
}

// History returns the donor's opt-in history, newest first as stored.
func (s *Service) History(ctx context.Context, id uuid.UUID) ([]*model.OptIn, error) {
	return s.optIns.ListByDonor(ctx, id)
}
