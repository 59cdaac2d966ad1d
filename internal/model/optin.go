package model

import (
	"time"

	"github.com/google/uuid"
)

// OptIn records a donor's willingness to donate for a specific request.
// Rows are immutable; the (donor_id, request_id) pair is unique and the
// database constraint on it is the final arbiter under concurrent opt-ins.
type OptIn struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DonorID   uuid.UUID `db:"donor_id" json:"donor_id"`
	RequestID uuid.UUID `db:"request_id" json:"request_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// OptedInDonor is an opt-in row joined with donor identity, forming the
// candidate pool admins assign from.
type OptedInDonor struct {
	OptInID     uuid.UUID  `db:"optin_id" json:"optin_id"`
	DonorID     uuid.UUID  `db:"donor_id" json:"donor_id"`
	DonorUserID uuid.UUID  `db:"donor_user_id" json:"donor_user_id"`
	Name        string     `db:"name" json:"name"`
	BloodGroup  BloodGroup `db:"blood_group" json:"blood_group"`
	OptedInAt   time.Time  `db:"opted_in_at" json:"opted_in_at"`
}
