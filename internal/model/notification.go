package model

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationTypeRequestCreated   NotificationType = "request_created"
	NotificationTypeRequestApproved  NotificationType = "request_approved"
	NotificationTypeRequestRejected  NotificationType = "request_rejected"
	NotificationTypeDonorOptedIn     NotificationType = "donor_opted_in"
	NotificationTypeDonorAssigned    NotificationType = "donor_assigned"
	NotificationTypeDonationComplete NotificationType = "donation_complete"
	NotificationTypeCertificateReady NotificationType = "certificate_ready"
)

// Notification is a per-recipient fan-out record. It is created as a side
// effect of workflow events and never mutates core entities; only the read
// flag changes after creation.
type Notification struct {
	ID          uuid.UUID        `db:"id" json:"id"`
	RecipientID uuid.UUID        `db:"recipient_id" json:"recipient_id"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Metadata    JSONMap          `db:"metadata" json:"metadata,omitempty"`
	Read        bool             `db:"read" json:"read"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}
