// Package memory provides in-memory implementations of the repository
// interfaces, mirroring the postgres contracts including conditional writes
// and duplicate detection. They back the service tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

type UserRepository struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*model.User
}

func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[uuid.UUID]*model.User)}
}

func (r *UserRepository) Create(_ context.Context, user *model.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *UserRepository) Get(_ context.Context, id uuid.UUID) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *UserRepository) ListAdmins(_ context.Context) ([]*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var admins []*model.User
	for _, u := range r.users {
		if u.Role == model.UserRoleAdmin {
			cp := *u
			admins = append(admins, &cp)
		}
	}
	return admins, nil
}

type DonorRepository struct {
	mu     sync.RWMutex
	donors map[uuid.UUID]*model.Donor
}

func NewDonorRepository() *DonorRepository {
	return &DonorRepository{donors: make(map[uuid.UUID]*model.Donor)}
}

func (r *DonorRepository) Create(_ context.Context, donor *model.Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.donors {
		if d.UserID == donor.UserID {
			return repository.ErrDuplicate
		}
	}
	donor.CreatedAt = time.Now()
	donor.UpdatedAt = time.Now()
	cp := *donor
	r.donors[donor.ID] = &cp
	return nil
}

func (r *DonorRepository) Get(_ context.Context, id uuid.UUID) (*model.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.donors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *DonorRepository) GetByUserID(_ context.Context, userID uuid.UUID) (*model.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.donors {
		if d.UserID == userID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *DonorRepository) Update(_ context.Context, donor *model.Donor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.donors[donor.ID]; !ok {
		return repository.ErrNotFound
	}
	donor.UpdatedAt = time.Now()
	cp := *donor
	r.donors[donor.ID] = &cp
	return nil
}

func (r *DonorRepository) SetLastDonation(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.donors[id]
	if !ok {
		return repository.ErrNotFound
	}
	t := at
	d.LastDonationAt = &t
	d.UpdatedAt = time.Now()
	return nil
}

func (r *DonorRepository) ListAvailableByGroup(_ context.Context, group model.BloodGroup) ([]*model.Donor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var donors []*model.Donor
	for _, d := range r.donors {
		if d.BloodGroup == group && d.Available {
			cp := *d
			donors = append(donors, &cp)
		}
	}
	return donors, nil
}

type BloodRequestRepository struct {
	mu       sync.RWMutex
	requests map[uuid.UUID]*model.BloodRequest
}

func NewBloodRequestRepository() *BloodRequestRepository {
	return &BloodRequestRepository{requests: make(map[uuid.UUID]*model.BloodRequest)}
}

func (r *BloodRequestRepository) Create(_ context.Context, req *model.BloodRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req.CreatedAt = time.Now()
	req.UpdatedAt = time.Now()
	cp := *req
	r.requests[req.ID] = &cp
	return nil
}

func (r *BloodRequestRepository) Get(_ context.Context, id uuid.UUID) (*model.BloodRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.requests[id]
	if !ok || req.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (r *BloodRequestRepository) List(_ context.Context, filters *model.BloodRequestFilters, page *model.Pagination) ([]*model.BloodRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*model.BloodRequest
	for _, req := range r.requests {
		if req.DeletedAt != nil {
			continue
		}
		if filters != nil {
			if filters.Status != nil && req.Status != *filters.Status {
				continue
			}
			if filters.Urgency != nil && req.Urgency != *filters.Urgency {
				continue
			}
			if filters.BloodGroup != nil && req.BloodGroup != *filters.BloodGroup {
				continue
			}
		}
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if page != nil {
		start := page.Offset()
		if start > len(out) {
			start = len(out)
		}
		end := start + page.Limit()
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (r *BloodRequestRepository) ListOpenByGroup(_ context.Context, group model.BloodGroup) ([]*model.BloodRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	now := time.Now()
	var out []*model.BloodRequest
	for _, req := range r.requests {
		if req.DeletedAt != nil {
			continue
		}
		if req.Status == model.RequestStatusApproved && req.BloodGroup == group && req.ScheduledAt.After(now) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *BloodRequestRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.RequestStatus, rejectReason *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.DeletedAt != nil || req.Status != from {
		return repository.ErrNotFound
	}
	req.Status = to
	if rejectReason != nil {
		req.RejectReason = rejectReason
	}
	req.UpdatedAt = time.Now()
	return nil
}

func (r *BloodRequestRepository) SetAssignment(_ context.Context, id uuid.UUID, donorID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.DeletedAt != nil || req.Status != model.RequestStatusApproved {
		return repository.ErrNotFound
	}
	d := donorID
	t := at
	req.AssignedDonorID = &d
	req.AssignedAt = &t
	req.UpdatedAt = time.Now()
	return nil
}

func (r *BloodRequestRepository) MarkDonated(_ context.Context, id uuid.UUID, photoRef string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.DeletedAt != nil || req.Status != model.RequestStatusApproved || req.AssignedDonorID == nil {
		return repository.ErrNotFound
	}
	ref := photoRef
	req.Status = model.RequestStatusDonated
	req.ProofPhotoRef = &ref
	req.UpdatedAt = time.Now()
	return nil
}

func (r *BloodRequestRepository) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok || req.DeletedAt != nil {
		return repository.ErrNotFound
	}
	now := time.Now()
	req.DeletedAt = &now
	return nil
}
