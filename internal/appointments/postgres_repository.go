package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists appointments in the relational database.
type PostgresStore struct {
	db db
}

// NewPostgresStore initializes a store backed by pgxpool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("appointments: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

// NewPostgresStoreWithDB allows injecting a mocked connection for tests.
func NewPostgresStoreWithDB(db db) *PostgresStore {
	return &PostgresStore{db: db}
}

const appointmentColumns = `
	id, code, patient_id, COALESCE(doctor_id, ''), COALESCE(room, ''),
	to_char(date, 'YYYY-MM-DD'), COALESCE(to_char(time, 'HH24:MI'), ''),
	duration_mins, is_walk_in, COALESCE(queue_number, 0),
	COALESCE(estimated_wait_mins, 0), status, COALESCE(reason, ''),
	COALESCE(notes, ''), created_at, COALESCE(created_by, '')`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(
		&a.ID, &a.Code, &a.PatientID, &a.DoctorID, &a.Room,
		&a.Date, &a.Time,
		&a.DurationMins, &a.IsWalkIn, &a.QueueNumber,
		&a.EstimatedWaitMins, &a.Status, &a.Reason,
		&a.Notes, &a.CreatedAt, &a.CreatedBy,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByID fetches a single appointment.
func (s *PostgresStore) FindByID(ctx context.Context, id string) (*Appointment, error) {
	query := `SELECT` + appointmentColumns + ` FROM appointments WHERE id = $1`
	appt, err := scanAppointment(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "appointment", ID: id}
		}
		return nil, fmt.Errorf("appointments: select by id: %w", err)
	}
	return appt, nil
}

// FindByDoctorAndDate returns the doctor's appointments for one calendar day,
// ordered by time-of-day.
func (s *PostgresStore) FindByDoctorAndDate(ctx context.Context, doctorID, date string) ([]*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND date = $2::date
		ORDER BY time`
	rows, err := s.db.Query(ctx, query, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: select by doctor and date: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

// FindWalkInsByDate returns the day's walk-ins ordered by queue number.
func (s *PostgresStore) FindWalkInsByDate(ctx context.Context, date string) ([]*Appointment, error) {
	query := `SELECT` + appointmentColumns + `
		FROM appointments
		WHERE is_walk_in AND date = $1::date
		ORDER BY queue_number`
	rows, err := s.db.Query(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("appointments: select walk-ins: %w", err)
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func collectAppointments(rows pgx.Rows) ([]*Appointment, error) {
	var out []*Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("appointments: scan row: %w", err)
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}

// Insert stores a new appointment, assigning its id and human-readable code.
func (s *PostgresStore) Insert(ctx context.Context, appt *Appointment) (*Appointment, error) {
	id := uuid.New()
	code := buildCode(appt.Date, id)
	query := `
		INSERT INTO appointments (
			id, code, patient_id, doctor_id, room, date, time, duration_mins,
			is_walk_in, queue_number, estimated_wait_mins, status, reason, notes, created_by
		) VALUES (
			$1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6::date, NULLIF($7, '')::time, $8,
			$9, NULLIF($10, 0), NULLIF($11, 0), $12, NULLIF($13, ''), NULLIF($14, ''), NULLIF($15, '')
		)
		RETURNING created_at
	`
	cp := *appt
	cp.ID = id.String()
	cp.Code = code
	if err := s.db.QueryRow(ctx, query,
		cp.ID, cp.Code, cp.PatientID, cp.DoctorID, cp.Room, cp.Date, cp.Time, cp.DurationMins,
		cp.IsWalkIn, cp.QueueNumber, cp.EstimatedWaitMins, cp.Status, cp.Reason, cp.Notes, cp.CreatedBy,
	).Scan(&cp.CreatedAt); err != nil {
		return nil, fmt.Errorf("appointments: insert: %w", err)
	}
	return &cp, nil
}

// ConditionalUpdateStatus applies the new status only when the stored status
// still matches the expected one. A lost race or a table violation surfaces
// as a ConflictError carrying the actual current status.
func (s *PostgresStore) ConditionalUpdateStatus(ctx context.Context, id string, expected, next Status) (*Appointment, error) {
	query := `
		UPDATE appointments SET status = $3
		WHERE id = $1 AND status = $2
		RETURNING` + appointmentColumns
	appt, err := scanAppointment(s.db.QueryRow(ctx, query, id, expected, next))
	if err == nil {
		return appt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("appointments: conditional update: %w", err)
	}

	// The guarded write matched nothing: either the row is gone or another
	// writer moved the status first.
	var current Status
	if err := s.db.QueryRow(ctx, `SELECT status FROM appointments WHERE id = $1`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Resource: "appointment", ID: id}
		}
		return nil, fmt.Errorf("appointments: reload status: %w", err)
	}
	return nil, &ConflictError{Current: current, Requested: next}
}

// ReserveNextQueueNumber atomically increments and returns the walk-in
// counter for the date. The upsert serializes concurrent reservations on the
// counter row, so two simultaneous walk-ins never share a number.
func (s *PostgresStore) ReserveNextQueueNumber(ctx context.Context, date string) (int, error) {
	query := `
		INSERT INTO walkin_counters (clinic_day, last_number)
		VALUES ($1::date, 1)
		ON CONFLICT (clinic_day)
		DO UPDATE SET last_number = walkin_counters.last_number + 1
		RETURNING last_number
	`
	var n int
	if err := s.db.QueryRow(ctx, query, date).Scan(&n); err != nil {
		return 0, fmt.Errorf("appointments: reserve queue number: %w", err)
	}
	return n, nil
}

func buildCode(date string, id uuid.UUID) string {
	compact := strings.ReplaceAll(date, "-", "")
	short := strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:6])
	return fmt.Sprintf("APT-%s-%s", compact, short)
}
