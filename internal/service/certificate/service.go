// Package certificate implements the donation certificate pipeline. A
// certificate is created in pending state when a donation completes, approved
// by an admin, then generated exactly once with a sequential number.
package certificate

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
	"github.com/jwalitptl/lifeflow-api/pkg/metrics"
)

type Service struct {
	certs  repository.CertificateRepository
	donors repository.DonorRepository
	users  repository.UserRepository
	fanout notification.Dispatcher
	logger *logger.Logger
}

func NewService(
	certs repository.CertificateRepository,
	donors repository.DonorRepository,
	users repository.UserRepository,
	fanout notification.Dispatcher,
	logger *logger.Logger,
) *Service {
	return &Service{
		certs:  certs,
		donors: donors,
		users:  users,
		fanout: fanout,
		logger: logger,
	}
}

// IssueForDonation creates the pending certificate for a completed donation.
// Called by the request lifecycle exactly once per donation; the unique
// (donor_id, request_id) constraint backs that up.
func (s *Service) IssueForDonation(ctx context.Context, req *model.BloodRequest, donationDate time.Time) (*model.Certificate, error) {
	if req.AssignedDonorID == nil {
		return nil, apperrors.Precondition("request has no assigned donor")
	}

	cert := &model.Certificate{
		DonorID:      *req.AssignedDonorID,
		RequestID:    req.ID,
		DonationDate: donationDate,
		BloodGroup:   req.BloodGroup,
		Units:        req.Units,
		Status:       model.CertificateStatusPending,
	}
	cert.ID = uuid.New()

	if err := s.certs.Create(ctx, cert); err != nil {
		if err == repository.ErrDuplicate {
			return s.certs.GetByDonorAndRequest(ctx, *req.AssignedDonorID, req.ID)
		}
		return nil, fmt.Errorf("failed to create certificate: %w", err)
	}
	metrics.CertificatesIssued.Inc()

	s.logger.Info("certificate issued",
		"certificate_id", cert.ID.String(),
		"donor_id", cert.DonorID.String())
	return cert, nil
}

// Approve moves a pending certificate to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status != model.CertificateStatusPending {
		return nil, apperrors.InvalidTransition("certificate", string(cert.Status), string(model.CertificateStatusPending))
	}

	err = s.certs.UpdateStatus(ctx, id, model.CertificateStatusPending, model.CertificateStatusApproved)
	if err == repository.ErrNotFound {
		current, gerr := s.Get(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperrors.InvalidTransition("certificate", string(current.Status), string(model.CertificateStatusPending))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to approve certificate: %w", err)
	}

	cert.Status = model.CertificateStatusApproved
	return cert, nil
}

// Generate allocates the certificate number and moves approved to generated.
// Idempotent: generating an already generated certificate returns it
// unchanged, with the number allocated the first time.
func (s *Service) Generate(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status == model.CertificateStatusGenerated {
		return cert, nil
	}
	if cert.Status != model.CertificateStatusApproved {
		return nil, apperrors.InvalidTransition("certificate", string(cert.Status), string(model.CertificateStatusApproved))
	}

	serial, err := s.certs.NextSerial(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate certificate number: %w", err)
	}
	number := fmt.Sprintf("LF-%d-%06d", cert.DonationDate.Year(), serial)

	if err := s.certs.SetGenerated(ctx, id, number); err != nil {
		if err == repository.ErrNotFound {
			// Either a concurrent generate won, or the certificate went
			// elsewhere. Re-read and report what actually happened. The
			// skipped serial is an acceptable gap in the sequence.
			current, gerr := s.Get(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			if current.Status == model.CertificateStatusGenerated {
				return current, nil
			}
			return nil, apperrors.InvalidTransition("certificate", string(current.Status), string(model.CertificateStatusApproved))
		}
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}

	cert.Status = model.CertificateStatusGenerated
	cert.Number = &number

	s.notifyDonor(ctx, cert)

	s.logger.Info("certificate generated",
		"certificate_id", cert.ID.String(),
		"number", number)
	return cert, nil
}

// ApproveAndGenerate is the single-step admin action: approve then generate.
func (s *Service) ApproveAndGenerate(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	if _, err := s.Approve(ctx, id); err != nil {
		return nil, err
	}
	return s.Generate(ctx, id)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Certificate, error) {
	cert, err := s.certs.Get(ctx, id)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("certificate", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get certificate: %w", err)
	}
	return cert, nil
}

func (s *Service) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Certificate, error) {
	return s.certs.ListByDonor(ctx, donorID)
}

// ListPending returns certificates awaiting admin review.
func (s *Service) ListPending(ctx context.Context) ([]*model.Certificate, error) {
	return s.certs.ListByStatus(ctx, model.CertificateStatusPending)
}

func (s *Service) notifyDonor(ctx context.Context, cert *model.Certificate) {
	donor, err := s.donors.Get(ctx, cert.DonorID)
	if err != nil {
		s.logger.Error(err, "failed to resolve donor for certificate", "donor_id", cert.DonorID.String())
		return
	}
	user, err := s.users.Get(ctx, donor.UserID)
	if err != nil {
		s.logger.Error(err, "failed to resolve donor user", "user_id", donor.UserID.String())
		return
	}

	number := ""
	if cert.Number != nil {
		number = *cert.Number
	}
	s.fanout.Dispatch(&notification.Message{
		Recipients: []notification.Recipient{{UserID: user.ID, Email: user.Email}},
		Type:       model.NotificationTypeCertificateReady,
		Title:      "Your donation certificate is ready",
		Body:       fmt.Sprintf("Certificate %s has been generated", number),
		Metadata: model.JSONMap{
			"certificate_id": cert.ID.String(),
			"number":         number,
		},
		CertificateNumber: number,
	})
}
