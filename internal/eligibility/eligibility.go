// Package eligibility is the single source of truth for whether a donor can
// donate now. Every matching and assignment decision goes through these
// functions; the stored availability flag is never trusted on its own.
package eligibility

import (
	"time"

	"github.com/jwalitptl/lifeflow-api/internal/model"
)

// DefaultCooldownMonths is the period a donor must wait between donations.
const DefaultCooldownMonths = 3

// CanDonate reports whether a donor with the given last-donation date may
// donate at now. A donor who has never donated is always eligible. The donor
// becomes eligible again at the exact instant the cooldown elapses.
func CanDonate(lastDonation *time.Time, now time.Time, cooldownMonths int) bool {
	if lastDonation == nil {
		return true
	}
	return !now.Before(lastDonation.AddDate(0, cooldownMonths, 0))
}

// NextEligibleAt returns when the donor becomes eligible again, or the zero
// time if the donor is already eligible.
func NextEligibleAt(lastDonation *time.Time, now time.Time, cooldownMonths int) time.Time {
	if lastDonation == nil {
		return time.Time{}
	}
	at := lastDonation.AddDate(0, cooldownMonths, 0)
	if now.Before(at) {
		return at
	}
	return time.Time{}
}

// MatchesRequest reports whether the donor is an eligible candidate for the
// request: blood groups match, the donor is within cooldown rules and marked
// available, and the request is open for opt-ins.
func MatchesRequest(donor *model.Donor, req *model.BloodRequest, now time.Time, cooldownMonths int) bool {
	if donor.BloodGroup != req.BloodGroup {
		return false
	}
	if !donor.Available {
		return false
	}
	if !CanDonate(donor.LastDonationAt, now, cooldownMonths) {
		return false
	}
	return req.Status == model.RequestStatusApproved
}
