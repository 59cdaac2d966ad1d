package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
)

// Sentinel errors shared by all implementations. Services translate these
// into user-facing typed errors at their boundary.
var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint, notably the (donor_id, request_id) pair on opt-ins.
	ErrDuplicate = errors.New("duplicate record")
)

// All repository interfaces in one file
type (
	UserRepository interface {
		Create(ctx context.Context, user *model.User) error
		Get(ctx context.Context, id uuid.UUID) (*model.User, error)
		GetByEmail(ctx context.Context, email string) (*model.User, error)
		ListAdmins(ctx context.Context) ([]*model.User, error)
	}

	DonorRepository interface {
		Create(ctx context.Context, donor *model.Donor) error
		Get(ctx context.Context, id uuid.UUID) (*model.Donor, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*model.Donor, error)
		Update(ctx context.Context, donor *model.Donor) error
		// SetLastDonation records the donation date that restarts the cooldown.
		SetLastDonation(ctx context.Context, id uuid.UUID, at time.Time) error
		// ListAvailableByGroup returns available donors with the given blood
		// group; callers still filter through the eligibility calculator.
		ListAvailableByGroup(ctx context.Context, group model.BloodGroup) ([]*model.Donor, error)
	}

	BloodRequestRepository interface {
		Create(ctx context.Context, req *model.BloodRequest) error
		Get(ctx context.Context, id uuid.UUID) (*model.BloodRequest, error)
		List(ctx context.Context, filters *model.BloodRequestFilters, page *model.Pagination) ([]*model.BloodRequest, error)
		ListOpenByGroup(ctx context.Context, group model.BloodGroup) ([]*model.BloodRequest, error)
		// UpdateStatus conditionally moves a request from one status to
		// another; returns ErrNotFound when no row matched the expected
		// current status, so concurrent conflicting transitions lose cleanly.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RequestStatus, rejectReason *string) error
		// SetAssignment overwrites the assignment pointer; guarded on the
		// approved status so the pointer invariant holds.
		SetAssignment(ctx context.Context, id uuid.UUID, donorID uuid.UUID, at time.Time) error
		// MarkDonated moves approved->donated, requiring an assigned donor.
		MarkDonated(ctx context.Context, id uuid.UUID, photoRef string) error
		SoftDelete(ctx context.Context, id uuid.UUID) error
	}

	OptInRepository interface {
		// Create inserts the opt-in row; returns ErrDuplicate if the
		// (donor_id, request_id) pair already exists.
		Create(ctx context.Context, optIn *model.OptIn) error
		Exists(ctx context.Context, donorID, requestID uuid.UUID) (bool, error)
		// ListByRequest returns the candidate pool in insertion order.
		ListByRequest(ctx context.Context, requestID uuid.UUID) ([]*model.OptedInDonor, error)
		ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.OptIn, error)
	}

	CertificateRepository interface {
		Create(ctx context.Context, cert *model.Certificate) error
		Get(ctx context.Context, id uuid.UUID) (*model.Certificate, error)
		GetByDonorAndRequest(ctx context.Context, donorID, requestID uuid.UUID) (*model.Certificate, error)
		ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*model.Certificate, error)
		ListByStatus(ctx context.Context, status model.CertificateStatus) ([]*model.Certificate, error)
		// UpdateStatus conditionally advances the certificate; ErrNotFound
		// when the current status does not match.
		UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.CertificateStatus) error
		// SetGenerated stamps the allocated number and moves approved->generated
		// in one conditional write.
		SetGenerated(ctx context.Context, id uuid.UUID, number string) error
		// NextSerial allocates the next value of the certificate number
		// sequence.
		NextSerial(ctx context.Context) (int64, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error)
		MarkRead(ctx context.Context, id, recipientID uuid.UUID) error
		MarkAllRead(ctx context.Context, recipientID uuid.UUID) error
		CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		MarkProcessed(ctx context.Context, id uuid.UUID) error
		MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}
)
