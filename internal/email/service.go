package email

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/gomail.v2"
)

type Service interface {
	SendRequestApproved(ctx context.Context, to, hospital string, scheduledAt time.Time) error
	SendDonorAssigned(ctx context.Context, to, hospital string, scheduledAt time.Time) error
	SendCertificateReady(ctx context.Context, to, number string) error
	SendCustom(ctx context.Context, to, subject, body string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpService struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPService(cfg Config) Service {
	return &smtpService{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

func (s *smtpService) SendRequestApproved(ctx context.Context, to, hospital string, scheduledAt time.Time) error {
	body := fmt.Sprintf(
		"A blood request matching your blood group was approved.\n\nHospital: %s\nScheduled: %s\n\nOpen the app to opt in.",
		hospital, scheduledAt.Format(time.RFC1123),
	)
	return s.send(ctx, to, "A blood request needs your help", body)
}

func (s *smtpService) SendDonorAssigned(ctx context.Context, to, hospital string, scheduledAt time.Time) error {
	body := fmt.Sprintf(
		"You have been selected as the donor for a blood request.\n\nHospital: %s\nScheduled: %s\n\nThank you for donating.",
		hospital, scheduledAt.Format(time.RFC1123),
	)
	return s.send(ctx, to, "You have been assigned to a donation", body)
}

func (s *smtpService) SendCertificateReady(ctx context.Context, to, number string) error {
	body := fmt.Sprintf(
		"Your donation certificate %s has been generated and is available in the app.\n\nThank you for saving lives.",
		number,
	)
	return s.send(ctx, to, "Your donation certificate is ready", body)
}

func (s *smtpService) SendCustom(ctx context.Context, to, subject, body string) error {
	return s.send(ctx, to, subject, body)
}

func (s *smtpService) send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}
	return nil
}
