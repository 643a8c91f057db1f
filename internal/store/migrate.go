package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema. Statements are idempotent so the command can
// run on every deploy.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id           UUID PRIMARY KEY,
		display_name TEXT NOT NULL,
		email        TEXT NOT NULL UNIQUE,
		role         TEXT NOT NULL CHECK (role IN ('patient', 'doctor')),
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS appointments (
		id                  UUID PRIMARY KEY,
		patient_id          UUID NOT NULL REFERENCES users (id),
		doctor_id           UUID NOT NULL REFERENCES users (id),
		start_time          TIMESTAMPTZ NOT NULL,
		status              TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'accepted', 'declined', 'cancelled', 'completed')),
		notes               TEXT,
		payment_status      TEXT NOT NULL DEFAULT 'pending'
			CHECK (payment_status IN ('pending', 'paid', 'failed', 'refunded', 'partial_refund')),
		amount              BIGINT NOT NULL DEFAULT 0,
		currency            TEXT NOT NULL DEFAULT 'INR',
		gateway_order_id    TEXT,
		gateway_payment_id  TEXT,
		refund_id           TEXT,
		refund_amount       BIGINT,
		refunded_at         TIMESTAMPTZ,
		cancelled_at        TIMESTAMPTZ,
		cancellation_reason TEXT,
		created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_appointments_start_time ON appointments (start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_appointments_gateway_order ON appointments (gateway_order_id)`,

	`CREATE TABLE IF NOT EXISTS payment_records (
		id                 UUID PRIMARY KEY,
		appointment_id     UUID NOT NULL REFERENCES appointments (id),
		gateway_payment_id TEXT NOT NULL UNIQUE,
		gateway_order_id   TEXT NOT NULL,
		amount             BIGINT NOT NULL,
		currency           TEXT NOT NULL,
		status             TEXT NOT NULL
			CHECK (status IN ('captured', 'authorized', 'refunded')),
		method             TEXT NOT NULL DEFAULT '',
		raw_payload        JSONB,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE TABLE IF NOT EXISTS reminders (
		id             UUID PRIMARY KEY,
		appointment_id UUID NOT NULL REFERENCES appointments (id),
		kind           TEXT NOT NULL,
		scheduled_for  TIMESTAMPTZ NOT NULL,
		status         TEXT NOT NULL DEFAULT 'pending'
			CHECK (status IN ('pending', 'sent', 'failed', 'skipped')),
		error_message  TEXT,
		sent_at        TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (appointment_id, kind)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders (scheduled_for) WHERE status = 'pending'`,
}
