// Package request implements the blood request lifecycle, the only place
// request status and the assignment pointer are mutated. Every transition is
// guarded by a conditional write against the stored status, so concurrent
// conflicting transitions resolve to one winner and one typed error.
package request

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/eligibility"
	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	"github.com/jwalitptl/lifeflow-api/internal/service/notification"
	apperrors "github.com/jwalitptl/lifeflow-api/pkg/errors"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/metrics"
)

// CertificateIssuer is the certificate pipeline as seen from the lifecycle:
// donation completion emits exactly one issuance.
type CertificateIssuer interface {
	IssueForDonation(ctx context.Context, req *model.BloodRequest, donationDate time.Time) (*model.Certificate, error)
}

type Service struct {
	requests repository.BloodRequestRepository
	donors   repository.DonorRepository
	users    repository.UserRepository
	outbox   repository.OutboxRepository
	certs    CertificateIssuer
	fanout   notification.Dispatcher
	logger   *logger.Logger

	cooldownMonths int
	now            func() time.Time
}

func NewService(
	requests repository.BloodRequestRepository,
	donors repository.DonorRepository,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	certs CertificateIssuer,
	fanout notification.Dispatcher,
	logger *logger.Logger,
	cooldownMonths int,
) *Service {
	if cooldownMonths <= 0 {
		cooldownMonths = eligibility.DefaultCooldownMonths
	}
	return &Service{
		requests:       requests,
		donors:         donors,
		users:          users,
		outbox:         outbox,
		certs:          certs,
		fanout:         fanout,
		logger:         logger,
		cooldownMonths: cooldownMonths,
		now:            time.Now,
	}
}

// Submit validates the request data, creates the request in pending state and
// notifies all admins.
func (s *Service) Submit(ctx context.Context, requesterID uuid.UUID, in *model.CreateBloodRequestRequest) (*model.BloodRequest, error) {
	group := model.BloodGroup(in.BloodGroup)
	if !group.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid blood group %q", in.BloodGroup))
	}
	if in.Units < model.MinUnits || in.Units > model.MaxUnits {
		return nil, apperrors.Validation(fmt.Sprintf("units must be between %d and %d", model.MinUnits, model.MaxUnits))
	}
	urgency := model.Urgency(in.Urgency)
	if !urgency.Valid() {
		return nil, apperrors.Validation(fmt.Sprintf("invalid urgency %q", in.Urgency))
	}
	if !in.ScheduledAt.After(s.now()) {
		return nil, apperrors.Validation("scheduled time must be in the future")
	}

	req := &model.BloodRequest{
		RequesterID: requesterID,
		BloodGroup:  group,
		Units:       in.Units,
		Urgency:     urgency,
		ScheduledAt: in.ScheduledAt,
		Hospital:    in.Hospital,
		Location:    in.Location,
		Status:      model.RequestStatusPending,
	}
	req.ID = uuid.New()
	if in.Notes != "" {
		notes := in.Notes
		req.Notes = &notes
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create blood request: %w", err)
	}

	s.emitEvent(ctx, "request.created", req)
	s.fanout.Dispatch(&notification.Message{
		Recipients: s.adminRecipients(ctx),
		Type:       model.NotificationTypeRequestCreated,
		Title:      "New blood request",
		Body:       fmt.Sprintf("%s request for %d unit(s) at %s awaits review", req.BloodGroup, req.Units, req.Hospital),
		Metadata:   model.JSONMap{"request_id": req.ID.String()},
	})

	s.logger.Info("blood request submitted",
		"request_id", req.ID.String(),
		"blood_group", string(req.BloodGroup),
		"urgency", string(req.Urgency))
	return req, nil
}

// Approve moves a pending request to approved and notifies every eligible
// donor of the matching blood group.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.transition(ctx, id, model.RequestStatusPending, model.RequestStatusApproved, nil)
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, "request.approved", req)
	if recipients := s.eligibleDonorRecipients(ctx, req); len(recipients) > 0 {
		s.fanout.Dispatch(&notification.Message{
			Recipients:  recipients,
			Type:        model.NotificationTypeRequestApproved,
			Title:       "A blood request needs your help",
			Body:        fmt.Sprintf("%s blood needed at %s", req.BloodGroup, req.Hospital),
			Metadata:    model.JSONMap{"request_id": req.ID.String()},
			Hospital:    req.Hospital,
			ScheduledAt: req.ScheduledAt,
		})
	}

	return req, nil
}

// Reject moves a pending request to rejected, recording the reason.
func (s *Service) Reject(ctx context.Context, id uuid.UUID, reason string) (*model.BloodRequest, error) {
	req, err := s.transition(ctx, id, model.RequestStatusPending, model.RequestStatusRejected, &reason)
	if err != nil {
		return nil, err
	}

	s.emitEvent(ctx, "request.rejected", req)
	if requester, err := s.users.Get(ctx, req.RequesterID); err == nil {
		s.fanout.Dispatch(&notification.Message{
			Recipients: []notification.Recipient{{UserID: requester.ID, Email: requester.Email}},
			Type:       model.NotificationTypeRequestRejected,
			Title:      "Blood request rejected",
			Body:       fmt.Sprintf("Your request was rejected: %s", reason),
			Metadata:   model.JSONMap{"request_id": req.ID.String()},
		})
	}

	return req, nil
}

// MarkDonated completes the workflow: the request must be approved with an
// assigned donor and a proof photo. On success the donor's cooldown restarts
// and exactly one certificate is issued.
func (s *Service) MarkDonated(ctx context.Context, id uuid.UUID, photoRef string) (*model.BloodRequest, error) {
	if photoRef == "" {
		return nil, apperrors.Validation("proof photo is required")
	}

	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != model.RequestStatusApproved {
		return nil, apperrors.InvalidTransition("request", string(req.Status), string(model.RequestStatusApproved))
	}
	if req.AssignedDonorID == nil {
		return nil, apperrors.Precondition("request has no assigned donor")
	}

	if err := s.requests.MarkDonated(ctx, id, photoRef); err != nil {
		if err == repository.ErrNotFound {
			// Lost a race: re-read so the error reflects what actually happened.
			return nil, s.staleTransitionError(ctx, id, model.RequestStatusApproved)
		}
		return nil, fmt.Errorf("failed to mark request donated: %w", err)
	}

	donationDate := s.now()
	req.Status = model.RequestStatusDonated
	metrics.RequestTransitions.WithLabelValues(
		string(model.RequestStatusApproved), string(model.RequestStatusDonated)).Inc()
	ref := photoRef
	req.ProofPhotoRef = &ref

	if err := s.donors.SetLastDonation(ctx, *req.AssignedDonorID, donationDate); err != nil {
		s.logger.Error(err, "failed to update donor last donation",
			"donor_id", req.AssignedDonorID.String())
	}

	cert, err := s.certs.IssueForDonation(ctx, req, donationDate)
	if err != nil {
		return nil, fmt.Errorf("failed to issue certificate: %w", err)
	}

	s.emitEvent(ctx, "request.donated", req)
	if rcpt, ok := s.donorRecipient(ctx, *req.AssignedDonorID); ok {
		s.fanout.Dispatch(&notification.Message{
			Recipients: []notification.Recipient{rcpt},
			Type:       model.NotificationTypeDonationComplete,
			Title:      "Donation recorded",
			Body:       "Thank you! Your donation has been recorded and a certificate is being prepared.",
			Metadata: model.JSONMap{
				"request_id":     req.ID.String(),
				"certificate_id": cert.ID.String(),
			},
		})
	}

	s.logger.Info("donation completed",
		"request_id", req.ID.String(),
		"donor_id", req.AssignedDonorID.String(),
		"certificate_id", cert.ID.String())
	return req, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	req, err := s.requests.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("blood request", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get blood request: %w", err)
	}
	return req, nil
}

func (s *Service) List(ctx context.Context, filters *model.BloodRequestFilters, page *model.Pagination) ([]*model.BloodRequest, error) {
	if page != nil {
		page.Normalize()
	}
	return s.requests.List(ctx, filters, page)
}

// ListOpenForDonor returns approved, future requests the donor can opt into,
// recomputing eligibility instead of trusting the stored availability flag.
func (s *Service) ListOpenForDonor(ctx context.Context, donorID uuid.UUID) ([]*model.BloodRequest, error) {
	donor, err := s.donors.Get(ctx, donorID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("donor", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get donor: %w", err)
	}

	open, err := s.requests.ListOpenByGroup(ctx, donor.BloodGroup)
	if err != nil {
		return nil, err
	}

	now := s.now()
	var matches []*model.BloodRequest
	for _, req := range open {
		if eligibility.MatchesRequest(donor, req, now, s.cooldownMonths) {
			matches = append(matches, req)
		}
	}
	return matches, nil
}

// Delete soft-deletes a request so opt-ins and certificates keep a resolvable
// reference.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.requests.SoftDelete(ctx, id); err != nil {
		if err == repository.ErrNotFound {
			return apperrors.NotFound("blood request", err)
		}
		return fmt.Errorf("failed to delete blood request: %w", err)
	}
	return nil
}

// transition re-reads the current status, then applies the guarded write. The
// conditional update is what makes concurrent conflicting transitions safe;
// the initial read exists to produce a precise error.
func (s *Service) transition(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, rejectReason *string) (*model.BloodRequest, error) {
	req, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != from {
		return nil, apperrors.InvalidTransition("request", string(req.Status), string(from))
	}

	if err := s.requests.UpdateStatus(ctx, id, from, to, rejectReason); err != nil {
		if err == repository.ErrNotFound {
			return nil, s.staleTransitionError(ctx, id, from)
		}
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}

	req.Status = to
	if rejectReason != nil {
		req.RejectReason = rejectReason
	}
	metrics.RequestTransitions.WithLabelValues(string(from), string(to)).Inc()

	s.logger.Info("request transitioned",
		"request_id", id.String(),
		"from", string(from),
		"to", string(to))
	return req, nil
}

func (s *Service) staleTransitionError(ctx context.Context, id uuid.UUID, required model.RequestStatus) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return apperrors.InvalidTransition("request", string(current.Status), string(required))
}

func (s *Service) adminRecipients(ctx context.Context) []notification.Recipient {
	admins, err := s.users.ListAdmins(ctx)
	if err != nil {
		s.logger.Error(err, "failed to list admin recipients")
		return nil
	}
	recipients := make([]notification.Recipient, 0, len(admins))
	for _, a := range admins {
		recipients = append(recipients, notification.Recipient{UserID: a.ID, Email: a.Email, Admin: true})
	}
	return recipients
}

func (s *Service) eligibleDonorRecipients(ctx context.Context, req *model.BloodRequest) []notification.Recipient {
	donors, err := s.donors.ListAvailableByGroup(ctx, req.BloodGroup)
	if err != nil {
		s.logger.Error(err, "failed to list donors for fan-out",
			"request_id", req.ID.String())
		return nil
	}

	now := s.now()
	var recipients []notification.Recipient
	for _, d := range donors {
		if !eligibility.CanDonate(d.LastDonationAt, now, s.cooldownMonths) {
			continue
		}
		if rcpt, ok := s.userRecipient(ctx, d.UserID); ok {
			recipients = append(recipients, rcpt)
		}
	}
	return recipients
}

func (s *Service) donorRecipient(ctx context.Context, donorID uuid.UUID) (notification.Recipient, bool) {
	donor, err := s.donors.Get(ctx, donorID)
	if err != nil {
		s.logger.Error(err, "failed to resolve donor recipient", "donor_id", donorID.String())
		return notification.Recipient{}, false
	}
	return s.userRecipient(ctx, donor.UserID)
}

func (s *Service) userRecipient(ctx context.Context, userID uuid.UUID) (notification.Recipient, bool) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		s.logger.Error(err, "failed to resolve recipient", "user_id", userID.String())
		return notification.Recipient{}, false
	}
	return notification.Recipient{UserID: user.ID, Email: user.Email}, true
}

// emitEvent records a domain event in the outbox; the worker publishes it to
// the realtime broker. Failures are logged, never propagated.
func (s *Service) emitEvent(ctx context.Context, eventType string, req *model.BloodRequest) {
	payload, err := json.Marshal(req)
	if err != nil {
		s.logger.Error(err, "failed to marshal outbox payload", "event_type", eventType)
		return
	}
	if err := s.outbox.Create(ctx, &model.OutboxEvent{
		EventType: eventType,
		Payload:   payload,
	}); err != nil {
		s.logger.Error(err, "failed to record outbox event", "event_type", eventType)
	}
}
