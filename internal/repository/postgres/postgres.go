package postgres

import (
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/lifeflow-api/internal/repository"
)

type userRepository struct {
	db *sqlx.DB
}

type donorRepository struct {
	db *sqlx.DB
}

type bloodRequestRepository struct {
	db *sqlx.DB
}

type optInRepository struct {
	db *sqlx.DB
}

type certificateRepository struct {
	db *sqlx.DB
}

type notificationRepository struct {
	db *sqlx.DB
}

type outboxRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) repository.UserRepository {
	return &userRepository{db: db}
}

func NewDonorRepository(db *sqlx.DB) repository.DonorRepository {
	return &donorRepository{db: db}
}

func NewBloodRequestRepository(db *sqlx.DB) repository.BloodRequestRepository {
	return &bloodRequestRepository{db: db}
}

func NewOptInRepository(db *sqlx.DB) repository.OptInRepository {
	return &optInRepository{db: db}
}

func NewCertificateRepository(db *sqlx.DB) repository.CertificateRepository {
	return &certificateRepository{db: db}
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{db: db}
}

// isUniqueViolation reports whether err is a postgres unique constraint
// violation (class 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
