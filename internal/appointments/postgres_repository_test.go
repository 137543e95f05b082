package appointments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var appointmentTestColumns = []string{
	"id", "code", "patient_id", "doctor_id", "room",
	"date", "time", "duration_mins", "is_walk_in", "queue_number",
	"estimated_wait_mins", "status", "reason", "notes", "created_at", "created_by",
}

func TestPostgresStoreFindByDoctorAndDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows(appointmentTestColumns).
		AddRow("id-1", "APT-20240601-AAAAAA", "p1", "d1", "",
			"2024-06-01", "09:00", 30, false, 0,
			0, StatusConfirmed, "checkup", "", time.Now(), "staff-1").
		AddRow("id-2", "APT-20240601-BBBBBB", "p2", "d1", "2",
			"2024-06-01", "10:00", 30, false, 0,
			0, StatusScheduled, "", "", time.Now(), "staff-1")
	mock.ExpectQuery("SELECT .+ FROM appointments").
		WithArgs("d1", "2024-06-01").
		WillReturnRows(rows)

	store := NewPostgresStoreWithDB(mock)
	appts, err := store.FindByDoctorAndDate(context.Background(), "d1", "2024-06-01")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(appts))
	}
	if appts[0].Time != "09:00" || appts[0].Status != StatusConfirmed {
		t.Fatalf("unexpected first row: %+v", appts[0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreInsert(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now().UTC()
	mock.ExpectQuery("INSERT INTO appointments").
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	store := NewPostgresStoreWithDB(mock)
	created, err := store.Insert(context.Background(), &Appointment{
		PatientID: "p1", DoctorID: "d1", Date: "2024-06-01", Time: "09:00",
		DurationMins: 30, Status: StatusScheduled,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if created.ID == "" || created.Code == "" {
		t.Fatalf("expected id and code assigned, got %+v", created)
	}
	if !created.CreatedAt.Equal(createdAt) {
		t.Fatalf("expected created_at from store, got %s", created.CreatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreConditionalUpdateApplies(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	rows := pgxmock.NewRows(appointmentTestColumns).
		AddRow("id-1", "APT-20240601-AAAAAA", "p1", "d1", "",
			"2024-06-01", "09:00", 30, false, 0,
			0, StatusConfirmed, "", "", time.Now(), "")
	mock.ExpectQuery("UPDATE appointments SET status").
		WithArgs("id-1", StatusScheduled, StatusConfirmed).
		WillReturnRows(rows)

	store := NewPostgresStoreWithDB(mock)
	updated, err := store.ConditionalUpdateStatus(context.Background(), "id-1", StatusScheduled, StatusConfirmed)
	if err != nil {
		t.Fatalf("conditional update: %v", err)
	}
	if updated.Status != StatusConfirmed {
		t.Fatalf("expected confirmed, got %s", updated.Status)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreConditionalUpdateConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE appointments SET status").
		WithArgs("id-1", StatusScheduled, StatusCancelled).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow(StatusConfirmed))

	store := NewPostgresStoreWithDB(mock)
	_, err = store.ConditionalUpdateStatus(context.Background(), "id-1", StatusScheduled, StatusCancelled)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.Current != StatusConfirmed || conflict.Requested != StatusCancelled {
		t.Fatalf("unexpected conflict detail: %+v", conflict)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreConditionalUpdateNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("UPDATE appointments SET status").
		WithArgs("missing", StatusScheduled, StatusConfirmed).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT status FROM appointments").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	store := NewPostgresStoreWithDB(mock)
	_, err = store.ConditionalUpdateStatus(context.Background(), "missing", StatusScheduled, StatusConfirmed)
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresStoreReserveNextQueueNumber(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery("INSERT INTO walkin_counters").
		WithArgs("2024-06-01").
		WillReturnRows(pgxmock.NewRows([]string{"last_number"}).AddRow(4))

	store := NewPostgresStoreWithDB(mock)
	n, err := store.ReserveNextQueueNumber(context.Background(), "2024-06-01")
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4, got %d", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
