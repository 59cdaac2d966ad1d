package postgres

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// RunMigrations applies the schema. Statements are idempotent so both the API
// and the worker can run them on startup.
func RunMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'donor',
			phone VARCHAR(50),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS donors (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL UNIQUE REFERENCES users(id),
			blood_group VARCHAR(3) NOT NULL,
			available BOOLEAN NOT NULL DEFAULT TRUE,
			last_donation_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS blood_requests (
			id UUID PRIMARY KEY,
			requester_id UUID NOT NULL REFERENCES users(id),
			blood_group VARCHAR(3) NOT NULL,
			units INTEGER NOT NULL CHECK (units BETWEEN 1 AND 10),
			urgency VARCHAR(10) NOT NULL,
			scheduled_at TIMESTAMPTZ NOT NULL,
			hospital VARCHAR(255) NOT NULL,
			location VARCHAR(255) NOT NULL,
			notes TEXT,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			reject_reason TEXT,
			assigned_donor_id UUID REFERENCES donors(id),
			assigned_at TIMESTAMPTZ,
			proof_photo_ref VARCHAR(255),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ
		)`,

		`CREATE TABLE IF NOT EXISTS opt_ins (
			id UUID PRIMARY KEY,
			donor_id UUID NOT NULL REFERENCES donors(id),
			request_id UUID NOT NULL REFERENCES blood_requests(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (donor_id, request_id)
		)`,

		`CREATE TABLE IF NOT EXISTS certificates (
			id UUID PRIMARY KEY,
			donor_id UUID NOT NULL REFERENCES donors(id),
			request_id UUID NOT NULL REFERENCES blood_requests(id),
			number VARCHAR(32) UNIQUE,
			donation_date TIMESTAMPTZ NOT NULL,
			blood_group VARCHAR(3) NOT NULL,
			units INTEGER NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			deleted_at TIMESTAMPTZ,
			UNIQUE (donor_id, request_id)
		)`,

		`CREATE SEQUENCE IF NOT EXISTS certificate_serial`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			recipient_id UUID NOT NULL REFERENCES users(id),
			type VARCHAR(32) NOT NULL,
			title VARCHAR(255) NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS outbox_events (
			id UUID PRIMARY KEY,
			event_type VARCHAR(64) NOT NULL,
			payload JSONB NOT NULL,
			status VARCHAR(10) NOT NULL DEFAULT 'pending',
			error_message TEXT,
			retry_count INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			processed_at TIMESTAMPTZ
		)`,

		`CREATE INDEX IF NOT EXISTS idx_blood_requests_status ON blood_requests(status)`,
		`CREATE INDEX IF NOT EXISTS idx_blood_requests_group_status ON blood_requests(blood_group, status)`,
		`CREATE INDEX IF NOT EXISTS idx_donors_group_available ON donors(blood_group, available)`,
		`CREATE INDEX IF NOT EXISTS idx_opt_ins_request ON opt_ins(request_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_certificates_donor ON certificates(donor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox_events(status, created_at)`,
	}

	for _, migration := range migrations {
		if _, err := db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
