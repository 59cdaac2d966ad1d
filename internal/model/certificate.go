package model

import (
	"time"

	"github.com/google/uuid"
)

type CertificateStatus string

const (
	CertificateStatusPending   CertificateStatus = "pending"
	CertificateStatusApproved  CertificateStatus = "approved"
	CertificateStatusGenerated CertificateStatus = "generated"
)

// Certificate is created when a request reaches its donated state, one per
// (donor, request) pair. The certificate number is allocated exactly once,
// during generation.
type Certificate struct {
	Base
	DonorID      uuid.UUID         `db:"donor_id" json:"donor_id"`
	RequestID    uuid.UUID         `db:"request_id" json:"request_id"`
	Number       *string           `db:"number" json:"number,omitempty"`
	DonationDate time.Time         `db:"donation_date" json:"donation_date"`
	BloodGroup   BloodGroup        `db:"blood_group" json:"blood_group"`
	Units        int               `db:"units" json:"units"`
	Status       CertificateStatus `db:"status" json:"status"`
}
