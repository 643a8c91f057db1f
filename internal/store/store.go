// Package store is the PostgreSQL persistence layer for appointments,
// payment ledger rows and reminder records. The service packages consume it
// through their own narrow interfaces; this type implements the union.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medora-health/medora_backend/internal/model"
)

type Store struct {
	db *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// ---------------------------------------------------------------------------
// Appointments
// ---------------------------------------------------------------------------

const appointmentColumns = `
	id, patient_id, doctor_id, start_time, status, notes,
	payment_status, amount, currency, gateway_order_id, gateway_payment_id,
	refund_id, refund_amount, refunded_at,
	cancelled_at, cancellation_reason, created_at, updated_at`

func scanAppointment(row pgx.Row) (*model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID, &a.PatientID, &a.DoctorID, &a.StartTime, &a.Status, &a.Notes,
		&a.PaymentStatus, &a.Amount, &a.Currency, &a.GatewayOrderID, &a.GatewayPaymentID,
		&a.RefundID, &a.RefundAmount, &a.RefundedAt,
		&a.CancelledAt, &a.CancellationReason, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan appointment: %w", err)
	}
	return &a, nil
}

func (s *Store) GetAppointment(ctx context.Context, id uuid.UUID) (*model.Appointment, error) {
	row := s.db.QueryRow(ctx,
		`SELECT`+appointmentColumns+` FROM appointments WHERE id = $1`, id)
	return scanAppointment(row)
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, start_time, status, notes, payment_status, amount, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.PatientID, a.DoctorID, a.StartTime, a.Status, a.Notes,
		a.PaymentStatus, a.Amount, a.Currency,
	)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (s *Store) ListAppointments(ctx context.Context, status *model.AppointmentStatus, limit, offset int) ([]*model.Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments`
	args := []any{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += fmt.Sprintf(` ORDER BY start_time DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

// ListUpcomingAcceptedAppointments returns accepted appointments starting
// between now and until. The reminder safety net uses it to re-materialize
// rows lost to a dropped accepted event.
func (s *Store) ListUpcomingAcceptedAppointments(ctx context.Context, until time.Time) ([]*model.Appointment, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+appointmentColumns+`
		FROM appointments
		WHERE status = 'accepted' AND start_time > NOW() AND start_time <= $1
		ORDER BY start_time`,
		until)
	if err != nil {
		return nil, fmt.Errorf("list upcoming accepted: %w", err)
	}
	defer rows.Close()

	var appts []*model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (s *Store) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status model.AppointmentStatus, reason *string) error {
	var err error
	if status == model.AppointmentCancelled {
		_, err = s.db.Exec(ctx, `
			UPDATE appointments
			SET status = $2, cancellation_reason = $3, cancelled_at = NOW(), updated_at = NOW()
			WHERE id = $1`, id, status, reason)
	} else {
		_, err = s.db.Exec(ctx, `
			UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	}
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	return nil
}

// UpdateAppointmentPayment writes only the payment attribute set. Nil patch
// fields leave the column untouched.
func (s *Store) UpdateAppointmentPayment(ctx context.Context, id uuid.UUID, patch model.PaymentPatch) error {
	sets := []string{"updated_at = NOW()"}
	args := []any{id}

	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.PaymentStatus != nil {
		add("payment_status", *patch.PaymentStatus)
	}
	if patch.Amount != nil {
		add("amount", *patch.Amount)
	}
	if patch.Currency != nil {
		add("currency", *patch.Currency)
	}
	if patch.GatewayOrderID != nil {
		add("gateway_order_id", *patch.GatewayOrderID)
	}
	if patch.GatewayPaymentID != nil {
		add("gateway_payment_id", *patch.GatewayPaymentID)
	}
	if patch.RefundID != nil {
		add("refund_id", *patch.RefundID)
	}
	if patch.RefundAmount != nil {
		add("refund_amount", *patch.RefundAmount)
	}
	if patch.RefundedAt != nil {
		add("refunded_at", *patch.RefundedAt)
	}

	query := fmt.Sprintf(`UPDATE appointments SET %s WHERE id = $1`, strings.Join(sets, ", "))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update appointment payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Payment ledger
// ---------------------------------------------------------------------------

func (s *Store) InsertPaymentRecord(ctx context.Context, r *model.PaymentRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO payment_records
			(id, appointment_id, gateway_payment_id, gateway_order_id, amount, currency, status, method, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		r.ID, r.AppointmentID, r.GatewayPaymentID, r.GatewayOrderID,
		r.Amount, r.Currency, r.Status, r.Method, r.RawPayload,
	)
	if err != nil {
		return fmt.Errorf("insert payment record: %w", err)
	}
	return nil
}

func (s *Store) UpdatePaymentRecordStatus(ctx context.Context, gatewayPaymentID string, status model.PaymentRecordStatus) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE payment_records SET status = $2 WHERE gateway_payment_id = $1`,
		gatewayPaymentID, status)
	if err != nil {
		return fmt.Errorf("update payment record status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrNotFound
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reminders
// ---------------------------------------------------------------------------

const reminderColumns = `
	id, appointment_id, kind, scheduled_for, status, error_message, sent_at, created_at`

func scanReminder(row pgx.Row) (*model.ReminderRecord, error) {
	var r model.ReminderRecord
	err := row.Scan(
		&r.ID, &r.AppointmentID, &r.Kind, &r.ScheduledFor,
		&r.Status, &r.ErrorMessage, &r.SentAt, &r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("scan reminder: %w", err)
	}
	return &r, nil
}

func (s *Store) GetReminder(ctx context.Context, appointmentID uuid.UUID, kind string) (*model.ReminderRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT`+reminderColumns+` FROM reminders WHERE appointment_id = $1 AND kind = $2`,
		appointmentID, kind)
	return scanReminder(row)
}

func (s *Store) InsertReminder(ctx context.Context, r *model.ReminderRecord) error {
	// ON CONFLICT backstops the scheduler's existence check: a concurrent
	// double-schedule still results in a single row per (appointment, kind).
	_, err := s.db.Exec(ctx, `
		INSERT INTO reminders (id, appointment_id, kind, scheduled_for, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (appointment_id, kind) DO NOTHING`,
		r.ID, r.AppointmentID, r.Kind, r.ScheduledFor, r.Status,
	)
	if err != nil {
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

func (s *Store) QueryDueReminders(ctx context.Context, from, to time.Time) ([]*model.ReminderRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+reminderColumns+`
		FROM reminders
		WHERE status = 'pending' AND scheduled_for > $1 AND scheduled_for <= $2
		ORDER BY scheduled_for`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("query due reminders: %w", err)
	}
	defer rows.Close()

	var due []*model.ReminderRecord
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, r)
	}
	return due, rows.Err()
}

// UpdateReminderStatus conditionally moves a reminder out of pending.
// Returns false when the row had already left pending; the caller treats
// that as "already processed", not as an error.
func (s *Store) UpdateReminderStatus(ctx context.Context, id uuid.UUID, status model.ReminderStatus, errorMessage *string, sentAt *time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders
		SET status = $2, error_message = $3, sent_at = $4
		WHERE id = $1 AND status = 'pending'`,
		id, status, errorMessage, sentAt)
	if err != nil {
		return false, fmt.Errorf("update reminder status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// BulkSkipPendingReminders flips every still-pending reminder of an
// appointment to skipped. Terminal rows are untouched.
func (s *Store) BulkSkipPendingReminders(ctx context.Context, appointmentID uuid.UUID, reason string) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE reminders
		SET status = 'skipped', error_message = $2
		WHERE appointment_id = $1 AND status = 'pending'`,
		appointmentID, reason)
	if err != nil {
		return 0, fmt.Errorf("bulk skip reminders: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *Store) ResolveUserDisplayName(ctx context.Context, id uuid.UUID) (string, error) {
	var name string
	err := s.db.QueryRow(ctx, `SELECT display_name FROM users WHERE id = $1`, id).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("resolve display name: %w", err)
	}
	return name, nil
}

func (s *Store) ResolveUserEmail(ctx context.Context, id uuid.UUID) (string, error) {
	var email string
	err := s.db.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, id).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", model.ErrNotFound
		}
		return "", fmt.Errorf("resolve email: %w", err)
	}
	return email, nil
}
