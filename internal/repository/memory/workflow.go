package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/lifeflow-api/internal/model"
	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

type optInKey struct {
	donorID   uuid.UUID
	requestID uuid.UUID
}

type OptInRepository struct {
	mu     sync.Mutex
	byKey  map[optInKey]*model.OptIn
	donors map[uuid.UUID]*model.OptedInDonor
	order  []*model.OptIn
}

func NewOptInRepository() *OptInRepository {
	return &OptInRepository{
		byKey:  make(map[optInKey]*model.OptIn),
		donors: make(map[uuid.UUID]*model.OptedInDonor),
	}
}

// RegisterDonorIdentity seeds the donor identity used for candidate joins.
func (r *OptInRepository) RegisterDonorIdentity(donorID, userID uuid.UUID, name string, group model.BloodGroup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.donors[donorID] = &model.OptedInDonor{
		DonorID:     donorID,
		DonorUserID: userID,
		Name:        name,
		BloodGroup:  group,
	}
}

// Create enforces the (donor_id, request_id) uniqueness the same way the
// database constraint does.
func (r *OptInRepository) Create(_ context.Context, optIn *model.OptIn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := optInKey{optIn.DonorID, optIn.RequestID}
	if _, ok := r.byKey[key]; ok {
		return repository.ErrDuplicate
	}
	optIn.CreatedAt = time.Now()
	cp := *optIn
	r.byKey[key] = &cp
	r.order = append(r.order, &cp)
	return nil
}

func (r *OptInRepository) Exists(_ context.Context, donorID, requestID uuid.UUID) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.byKey[optInKey{donorID, requestID}]
	return ok, nil
}

func (r *OptInRepository) ListByRequest(_ context.Context, requestID uuid.UUID) ([]*model.OptedInDonor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OptedInDonor
	for _, o := range r.order {
		if o.RequestID != requestID {
			continue
		}
		entry := &model.OptedInDonor{
			OptInID:   o.ID,
			DonorID:   o.DonorID,
			OptedInAt: o.CreatedAt,
		}
		if ident, ok := r.donors[o.DonorID]; ok {
			entry.DonorUserID = ident.DonorUserID
			entry.Name = ident.Name
			entry.BloodGroup = ident.BloodGroup
		}
		out = append(out, entry)
	}
	return out, nil
}

func (r *OptInRepository) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*model.OptIn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OptIn
	for _, o := range r.order {
		if o.DonorID == donorID {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

type CertificateRepository struct {
	mu     sync.Mutex
	certs  map[uuid.UUID]*model.Certificate
	order  []uuid.UUID
	serial int64
}

func NewCertificateRepository() *CertificateRepository {
	return &CertificateRepository{certs: make(map[uuid.UUID]*model.Certificate)}
}

func (r *CertificateRepository) Create(_ context.Context, cert *model.Certificate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.DonorID == cert.DonorID && c.RequestID == cert.RequestID {
			return repository.ErrDuplicate
		}
	}
	cert.CreatedAt = time.Now()
	cert.UpdatedAt = time.Now()
	cp := *cert
	r.certs[cert.ID] = &cp
	r.order = append(r.order, cert.ID)
	return nil
}

func (r *CertificateRepository) Get(_ context.Context, id uuid.UUID) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *CertificateRepository) GetByDonorAndRequest(_ context.Context, donorID, requestID uuid.UUID) (*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.certs {
		if c.DonorID == donorID && c.RequestID == requestID {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *CertificateRepository) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Certificate
	for _, id := range r.order {
		if c := r.certs[id]; c.DonorID == donorID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *CertificateRepository) ListByStatus(_ context.Context, status model.CertificateStatus) ([]*model.Certificate, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Certificate
	for _, id := range r.order {
		if c := r.certs[id]; c.Status == status {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *CertificateRepository) UpdateStatus(_ context.Context, id uuid.UUID, from, to model.CertificateStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok || c.Status != from {
		return repository.ErrNotFound
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	return nil
}

func (r *CertificateRepository) SetGenerated(_ context.Context, id uuid.UUID, number string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.certs[id]
	if !ok || c.Status != model.CertificateStatusApproved {
		return repository.ErrNotFound
	}
	n := number
	c.Status = model.CertificateStatusGenerated
	c.Number = &n
	c.UpdatedAt = time.Now()
	return nil
}

func (r *CertificateRepository) NextSerial(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.serial++
	return r.serial, nil
}

type NotificationRepository struct {
	mu            sync.Mutex
	notifications []*model.Notification
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

func (r *NotificationRepository) Create(_ context.Context, n *model.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.CreatedAt = time.Now()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r *NotificationRepository) ListByRecipient(_ context.Context, recipientID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.Notification
	for _, n := range r.notifications {
		if n.RecipientID != recipientID {
			continue
		}
		if unreadOnly && n.Read {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	return out, nil
}

func (r *NotificationRepository) MarkRead(_ context.Context, id, recipientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id && n.RecipientID == recipientID {
			n.Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *NotificationRepository) MarkAllRead(_ context.Context, recipientID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

func (r *NotificationRepository) CountUnread(_ context.Context, recipientID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

type OutboxRepository struct {
	mu     sync.Mutex
	events []*model.OutboxEvent
}

func NewOutboxRepository() *OutboxRepository {
	return &OutboxRepository{}
}

func (r *OutboxRepository) Create(_ context.Context, event *model.OutboxEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	event.ID = uuid.New()
	event.Status = model.OutboxStatusPending
	event.CreatedAt = time.Now()
	event.UpdatedAt = time.Now()
	cp := *event
	r.events = append(r.events, &cp)
	return nil
}

func (r *OutboxRepository) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.events {
		if e.Status != model.OutboxStatusPending {
			continue
		}
		cp := *e
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (r *OutboxRepository) MarkProcessed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			now := time.Now()
			e.Status = model.OutboxStatusProcessed
			e.ProcessedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *OutboxRepository) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e.ID == id {
			msg := errMsg
			e.Status = model.OutboxStatusFailed
			e.ErrorMessage = &msg
			e.RetryCount++
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *OutboxRepository) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var kept []*model.OutboxEvent
	var deleted int64
	for _, e := range r.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.events = kept
	return deleted, nil
}
