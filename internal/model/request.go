package model

import (
	"time"

	"github.com/google/uuid"
)

type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

// BloodGroups is the fixed ABO/Rh set.
var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg,
	BloodGroupOPos, BloodGroupONeg,
}

func (g BloodGroup) Valid() bool {
	for _, bg := range BloodGroups {
		if g == bg {
			return true
		}
	}
	return false
}

type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyMedium   Urgency = "medium"
	UrgencyHigh     Urgency = "high"
	UrgencyCritical Urgency = "critical"
)

var urgencyRank = map[Urgency]int{
	UrgencyLow:      0,
	UrgencyMedium:   1,
	UrgencyHigh:     2,
	UrgencyCritical: 3,
}

func (u Urgency) Valid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// Less reports whether u is less urgent than other.
func (u Urgency) Less(other Urgency) bool {
	return urgencyRank[u] < urgencyRank[other]
}

type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
	RequestStatusDonated  RequestStatus = "donated"
)

const (
	MinUnits = 1
	MaxUnits = 10
)

// BloodRequest is the central workflow entity. Status and the assignment
// pointer are only ever mutated through the request lifecycle service.
type BloodRequest struct {
	Base
	RequesterID     uuid.UUID     `db:"requester_id" json:"requester_id"`
	BloodGroup      BloodGroup    `db:"blood_group" json:"blood_group"`
	Units           int           `db:"units" json:"units"`
	Urgency         Urgency       `db:"urgency" json:"urgency"`
	ScheduledAt     time.Time     `db:"scheduled_at" json:"scheduled_at"`
	Hospital        string        `db:"hospital" json:"hospital"`
	Location        string        `db:"location" json:"location"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	Status          RequestStatus `db:"status" json:"status"`
	RejectReason    *string       `db:"reject_reason" json:"reject_reason,omitempty"`
	AssignedDonorID *uuid.UUID    `db:"assigned_donor_id" json:"assigned_donor_id,omitempty"`
	AssignedAt      *time.Time    `db:"assigned_at" json:"assigned_at,omitempty"`
	ProofPhotoRef   *string       `db:"proof_photo_ref" json:"proof_photo_ref,omitempty"`
}

type CreateBloodRequestRequest struct {
	BloodGroup  string    `json:"blood_group" binding:"required,bloodgroup"`
	Units       int       `json:"units" binding:"required,min=1,max=10"`
	Urgency     string    `json:"urgency" binding:"required,urgency"`
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
	Hospital    string    `json:"hospital" binding:"required"`
	Location    string    `json:"location" binding:"required"`
	Notes       string    `json:"notes"`
}

type RejectRequestRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type AssignDonorRequest struct {
	DonorID uuid.UUID `json:"donor_id" binding:"required"`
}

type BloodRequestFilters struct {
	Status     *RequestStatus
	Urgency    *Urgency
	BloodGroup *BloodGroup
}
