package model

import (
	"time"

	"github.com/google/uuid"
)

// Donor is the donor profile attached to a user account. The Available flag
// is an advisory preference; actual eligibility is always recomputed from
// LastDonationAt by the eligibility package.
type Donor struct {
	Base
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	BloodGroup     BloodGroup `db:"blood_group" json:"blood_group"`
	Available      bool       `db:"available" json:"available"`
	LastDonationAt *time.Time `db:"last_donation_at" json:"last_donation_at,omitempty"`
}

type UpdateDonorRequest struct {
	Available *bool `json:"available"`
}
