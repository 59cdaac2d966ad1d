package notification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
	"github.com/jwalitptl/lifeflow-api/pkg/logger"
	"github.com/jwalitptl/lifeflow-api/pkg/metrics"
)

// Recipient identifies one fan-out target. Email is optional; an empty value
// means in-app/push only.
type Recipient struct {
	UserID uuid.UUID
	Email  string
	Admin  bool
}

// Message is one fan-out effect produced by a workflow mutation. The mutation
// commits first; messages are dispatched afterwards, best effort.
type Message struct {
	Recipients []Recipient
	Type       model.NotificationType
	Title      string
	Body       string
	Metadata   model.JSONMap

	// Optional template data for typed emails.
	Hospital          string
	ScheduledAt       time.Time
	CertificateNumber string
}

// Dispatcher is what the workflow services see: a sink for effects that can
// never fail their caller.
type Dispatcher interface {
	Dispatch(msgs ...*Message)
}

// Emailer is the outbound email collaborator.
type Emailer interface {
	SendRequestApproved(ctx context.Context, to, hospital string, scheduledAt time.Time) error
	SendDonorAssigned(ctx context.Context, to, hospital string, scheduledAt time.Time) error
	SendCertificateReady(ctx context.Context, to, number string) error
	SendCustom(ctx context.Context, to, subject, body string) error
}

// Pusher is the realtime broadcast collaborator.
type Pusher interface {
	EmitToAdmins(ctx context.Context, event string, payload interface{}) error
	EmitToDonor(ctx context.Context, userID uuid.UUID, event string, payload interface{}) error
}

type Service struct {
	repo   repository.NotificationRepository
	email  Emailer
	push   Pusher
	logger *logger.Logger
}

func NewService(repo repository.NotificationRepository, email Emailer, push Pusher, logger *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		email:  email,
		push:   push,
		logger: logger,
	}
}

// Dispatch fans out messages asynchronously. Failures are logged and never
// reach the caller; by the time effects run, the state change that produced
// them has already committed.
func (s *Service) Dispatch(msgs ...*Message) {
	go func() {
		ctx := context.Background()
		for _, msg := range msgs {
			s.deliver(ctx, msg)
		}
	}()
}

func (s *Service) deliver(ctx context.Context, msg *Message) {
	for _, rcpt := range msg.Recipients {
		n := &model.Notification{
			ID:          uuid.New(),
			RecipientID: rcpt.UserID,
			Type:        msg.Type,
			Title:       msg.Title,
			Message:     msg.Body,
			Metadata:    msg.Metadata,
		}
		if err := s.repo.Create(ctx, n); err != nil {
			metrics.FanoutFailures.WithLabelValues("store").Inc()
			s.logger.Error(err, "failed to store notification",
				"recipient_id", rcpt.UserID.String(),
				"type", string(msg.Type))
		}

		if err := s.emitPush(ctx, rcpt, msg); err != nil {
			metrics.FanoutFailures.WithLabelValues("push").Inc()
			s.logger.Error(err, "failed to push notification",
				"recipient_id", rcpt.UserID.String(),
				"type", string(msg.Type))
		}

		if rcpt.Email != "" {
			if err := s.sendEmail(ctx, rcpt.Email, msg); err != nil {
				metrics.FanoutFailures.WithLabelValues("email").Inc()
				s.logger.Error(err, "failed to email notification",
					"recipient", rcpt.Email,
					"type", string(msg.Type))
			}
		}
	}
}

func (s *Service) emitPush(ctx context.Context, rcpt Recipient, msg *Message) error {
	payload := map[string]interface{}{
		"title":    msg.Title,
		"message":  msg.Body,
		"metadata": msg.Metadata,
	}
	if rcpt.Admin {
		return s.push.EmitToAdmins(ctx, string(msg.Type), payload)
	}
	return s.push.EmitToDonor(ctx, rcpt.UserID, string(msg.Type), payload)
}

func (s *Service) sendEmail(ctx context.Context, to string, msg *Message) error {
	switch msg.Type {
	case model.NotificationTypeRequestApproved:
		return s.email.SendRequestApproved(ctx, to, msg.Hospital, msg.ScheduledAt)
	case model.NotificationTypeDonorAssigned:
		return s.email.SendDonorAssigned(ctx, to, msg.Hospital, msg.ScheduledAt)
	case model.NotificationTypeCertificateReady:
		return s.email.SendCertificateReady(ctx, to, msg.CertificateNumber)
	default:
		return s.email.SendCustom(ctx, to, msg.Title, msg.Body)
	}
}

// Read-side API used by the notifications endpoints.

func (s *Service) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	return s.repo.ListByRecipient(ctx, recipientID, unreadOnly)
}

func (s *Service) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	return s.repo.MarkRead(ctx, id, recipientID)
}

func (s *Service) MarkAllRead(ctx context.Context, recipientID uuid.UUID) error {
	return s.repo.MarkAllRead(ctx, recipientID)
}

func (s *Service) CountUnread(ctx context.Context, recipientID uuid.UUID) (int, error) {
	return s.repo.CountUnread(ctx, recipientID)
}
