// Package assignment binds an approved request to one donor from its opt-in
// pool and handles reassignment up to the cutoff before the scheduled time.
package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
)

// DefaultReassignCutoff is how long before the scheduled time the assignment
// freezes.
const DefaultReassignCutoff = 3 * time.Hour

type Service struct {
	requests repository.BloodRequestRepository
	optIns   repository.OptInRepository
	donors   repository.DonorRepository
	users    repository.UserRepository
	fanout   notification.Dispatcher
	logger   *logger.Logger

	cutoff time.Duration
	now    func() time.Time
}

func NewService(
	requests repository.BloodRequestRepository,
	optIns repository.OptInRepository,
	donors repository.DonorRepository,
	users repository.UserRepository,
	fanout notification.Dispatcher,
	logger *logger.Logger,
	cutoff time.Duration,
) *Service {
	if cutoff <= 0 {
		cutoff = DefaultReassignCutoff
	}
	return &Service{
		requests: requests,
		optIns:   optIns,
		donors:   donors,
		users:    users,
		fanout:   fanout,
		logger:   logger,
		cutoff:   cutoff,
		now:      time.Now,
	}
}

// Assign picks the given donor from the request's opt-in pool as the first
// assignment. The request must be approved and not already assigned.
func (s *Service) Assign(ctx context.Context, requestID, donorID uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusApproved {
		return nil, apperrors.InvalidTransition("request", string(req.Status), string(model.RequestStatusApproved))
	}
	if req.AssignedDonorID != nil {
		return nil, apperrors.Precondition("request already has an assigned donor, use reassign")
	}

	return s.assign(ctx, req, donorID)
}

// Reassign replaces the assigned donor with another candidate from the pool.
// Allowed only while the current moment is strictly before the cutoff ahead
// of the scheduled time; at the cutoff exactly, the window is closed.
func (s *Service) Reassign(ctx context.Context, requestID, donorID uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.getRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusApproved {
		return nil, apperrors.InvalidTransition("request", string(req.Status), string(model.RequestStatusApproved))
	}
	if req.AssignedDonorID == nil {
		return nil, apperrors.Precondition("request has no assigned donor yet, use assign")
	}
	if *req.AssignedDonorID == donorID {
		return nil, apperrors.Precondition("donor is already assigned to this request")
	}

	deadline := req.ScheduledAt.Add(-s.cutoff)
	if !s.now().Before(deadline) {
		return nil, apperrors.ReassignmentWindowClosed(
			fmt.Sprintf("reassignment closed %s before the scheduled time", s.cutoff))
	}

	return s.assign(ctx, req, donorID)
}

func (s *Service) assign(ctx context.Context, req *model.BloodRequest, donorID uuid.UUID) (*model.BloodRequest, error) {
	inPool, err := s.optIns.Exists(ctx, donorID, req.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check opt-in pool: %w", err)
	}
	if !inPool {
		return nil, apperrors.Precondition("donor has not opted in to this request")
	}

	at := s.now()
	if err := s.requests.SetAssignment(ctx, req.ID, donorID, at); err != nil {
		if err == repository.ErrNotFound {
			current, gerr := s.getRequest(ctx, req.ID)
			if gerr != nil {
				return nil, gerr
			}
			return nil, apperrors.InvalidTransition("request", string(current.Status), string(model.RequestStatusApproved))
		}
		return nil, fmt.Errorf("failed to set assignment: %w", err)
	}

	req.AssignedDonorID = &donorID
	req.AssignedAt = &at

	if rcpt, ok := s.donorRecipient(ctx, donorID); ok {
		s.fanout.Dispatch(&notification.Message{
			Recipients:  []notification.Recipient{rcpt},
			Type:        model.NotificationTypeDonorAssigned,
			Title:       "You have been selected to donate",
			Body:        fmt.Sprintf("Please donate at %s", req.Hospital),
			Metadata:    model.JSONMap{"request_id": req.ID.String()},
			Hospital:    req.Hospital,
			ScheduledAt: req.ScheduledAt,
		})
	}

	s.logger.Info("donor assigned",
		"request_id", req.ID.String(),
		"donor_id", donorID.String())
	return req, nil
}

// Candidates returns the opt-in pool for a request in the order donors
// opted in.
func (s *Service) Candidates(ctx context.Context, requestID uuid.UUID) ([]*model.OptedInDonor, error) {
	if _, err := s.getRequest(ctx, requestID); err != nil {
		return nil, err
	}
	return s.optIns.ListByRequest(ctx, requestID)
}

func (s *Service) getRequest(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("blood request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blood request: %w", err)
	}
	return req, nil
}

func (s *Service) donorRecipient(ctx context.Context, donorID uuid.UUID) (notification.Recipient, bool) {
	donor, err := s.donors.Get(ctx, donorID)
	if err != nil {
		s.logger.Error(err, "failed to resolve donor", "donor_id", donorID.String())
		return notification.Recipient{}, false
	}
	user, err := s.users.Get(ctx, donor.UserID)
	if err != nil {
		s.logger.Error(err, "failed to resolve donor user", "user_id", donor.UserID.String())
		return notification.Recipient{}, false
	}
	return notification.Recipient{UserID: user.ID, Email: user.Email}, true
}
